package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types written by lifecycle operations and consumed by the timeline.
const (
	TypeCreated         = "created"
	TypeSent            = "sent"
	TypeReminder        = "reminder"
	TypeApproved        = "approved"
	TypeChangeRequested = "change-requested"
	TypeChangeAccepted  = "change-accepted"
	TypeChangeRejected  = "change-rejected"
	TypeDelivered       = "delivered"
	TypeAcceptanceSent  = "acceptance-sent"
	TypeAccepted        = "accepted"
	TypeFixRequested    = "fix-requested"
	TypeClosed          = "closed"
	TypeCancelled       = "cancelled"
)

// Event is one append-only history record. Seq is the insertion order within
// a commitment and serves as the stable tie-break when timestamps collide.
type Event struct {
	Seq          int64     `json:"seq"`
	CommitmentID uuid.UUID `json:"commitment_id"`
	Type         string    `json:"type"`
	Actor        string    `json:"actor"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Repository interface {
	Append(ctx context.Context, event Event) error
	// ListByCommitment returns events in insertion order.
	ListByCommitment(ctx context.Context, commitmentID uuid.UUID) ([]Event, error)
}
