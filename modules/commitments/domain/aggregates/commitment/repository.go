package commitment

import (
	"context"

	"github.com/google/uuid"

	"github.com/pactline/pactline/pkg/serrors"
)

var (
	ErrNotFound = serrors.NewError(serrors.CodeNotFound, "commitment not found", "Commitments.Errors.NotFound")
	// ErrStale is returned when an optimistic write loses: the row's status
	// moved, or the version was frozen, between read and write.
	ErrStale = serrors.NewError(serrors.CodeConcurrentModification, "commitment was modified concurrently", "Commitments.Errors.Concurrent")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Commitment, error)
	// FindByRoot returns every member of a version chain ordered by version.
	FindByRoot(ctx context.Context, rootID uuid.UUID) ([]*Commitment, error)
	Create(ctx context.Context, c *Commitment) error
	// Update persists c only if the stored row still carries expectedStatus
	// and is not frozen; otherwise ErrStale. This is the serialization point
	// for concurrent transitions on the same commitment.
	Update(ctx context.Context, c *Commitment, expectedStatus Status) error
	// Freeze seals a version. Exactly one caller can win; a second freeze
	// attempt gets ErrStale.
	Freeze(ctx context.Context, id uuid.UUID) error
}
