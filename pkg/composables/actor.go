package composables

import (
	"context"

	"github.com/pactline/pactline/pkg/constants"
)

const (
	ActorTypeInternal = "internal"
	ActorTypeClient   = "client"
	ActorTypeSystem   = "system"
)

// Actor identifies who is performing an operation, for history attribution.
// Internal operations carry the authenticated user; public link actions carry
// the client identity recovered from the commitment's client snapshot.
type Actor struct {
	Type  string
	Name  string
	Email string
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, constants.ActorKey, actor)
}

func UseActor(ctx context.Context) Actor {
	if actor, ok := ctx.Value(constants.ActorKey).(Actor); ok {
		return actor
	}
	return Actor{Type: ActorTypeSystem, Name: "system"}
}
