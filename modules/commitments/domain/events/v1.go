package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicCommitmentChangedV1 = "commitments.changed.v1"
	EventVersionV1           = 1
)

// CommitmentEventV1 is published on the event bus after a lifecycle
// transition commits, and relayed best-effort to notification delivery.
type CommitmentEventV1 struct {
	EventID      uuid.UUID `json:"event_id"`
	EventVersion int       `json:"event_version"`
	CommitmentID uuid.UUID `json:"commitment_id"`
	RootID       uuid.UUID `json:"root_commitment_id"`
	Version      int       `json:"version"`
	ChangeType   string    `json:"change_type"`
	FromStatus   string    `json:"from_status,omitempty"`
	ToStatus     string    `json:"to_status"`
	ActorType    string    `json:"actor_type"`
	ActorName    string    `json:"actor_name,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	// Link carries the freshly issued public token URL when the transition
	// produced one (approval or acceptance sends).
	Link string `json:"link,omitempty"`
}
