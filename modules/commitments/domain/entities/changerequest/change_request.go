package changerequest

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusOpen     = "OPEN"
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
)

// RequestedBy identifies the client who raised the objection, denormalized
// from the commitment's client snapshot at request time.
type RequestedBy struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ChangeRequest is a client's formal objection to a commitment awaiting
// approval. It resolves exactly once, into ACCEPTED (new version minted) or
// REJECTED (commitment returns to the approval gate), and is immutable after.
type ChangeRequest struct {
	ID                uuid.UUID   `json:"id"`
	CommitmentID      uuid.UUID   `json:"commitment_id"`
	CommitmentVersion int         `json:"commitment_version"`
	Status            string      `json:"status"`
	Reason            string      `json:"reason"`
	RequestedBy       RequestedBy `json:"requested_by"`
	CreatedAt         time.Time   `json:"created_at"`
	ResolvedAt        *time.Time  `json:"resolved_at,omitempty"`
}
