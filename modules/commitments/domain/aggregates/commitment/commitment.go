package commitment

import (
	"time"

	"github.com/google/uuid"
)

// Commitment is one version of a service agreement. Versions sharing a root
// id form a chain; exactly one member of the chain is current (not frozen) at
// any instant. A superseded version is frozen and never mutated again.
type Commitment struct {
	id         uuid.UUID
	rootID     uuid.UUID
	previousID *uuid.UUID
	version    int
	status     Status
	frozen     bool

	terms           Terms
	changeRequestID *uuid.UUID

	createdAt      time.Time
	approvalSentAt *time.Time
	approvedAt     *time.Time
	deliveredAt    *time.Time
	acceptedAt     *time.Time
	updatedAt      time.Time
}

// New creates version 1 of a chain. The commitment is its own root.
func New(terms Terms, now time.Time) *Commitment {
	id := uuid.New()
	return &Commitment{
		id:        id,
		rootID:    id,
		version:   1,
		status:    StatusDraft,
		terms:     terms,
		createdAt: now,
		updatedAt: now,
	}
}

func Hydrate(
	id, rootID uuid.UUID,
	previousID *uuid.UUID,
	version int,
	status Status,
	frozen bool,
	terms Terms,
	changeRequestID *uuid.UUID,
	createdAt time.Time,
	approvalSentAt, approvedAt, deliveredAt, acceptedAt *time.Time,
	updatedAt time.Time,
) *Commitment {
	return &Commitment{
		id:              id,
		rootID:          rootID,
		previousID:      previousID,
		version:         version,
		status:          status,
		frozen:          frozen,
		terms:           terms,
		changeRequestID: changeRequestID,
		createdAt:       createdAt,
		approvalSentAt:  approvalSentAt,
		approvedAt:      approvedAt,
		deliveredAt:     deliveredAt,
		acceptedAt:      acceptedAt,
		updatedAt:       updatedAt,
	}
}

func (c *Commitment) ID() uuid.UUID               { return c.id }
func (c *Commitment) RootID() uuid.UUID           { return c.rootID }
func (c *Commitment) PreviousID() *uuid.UUID      { return c.previousID }
func (c *Commitment) Version() int                { return c.version }
func (c *Commitment) Status() Status              { return c.status }
func (c *Commitment) Frozen() bool                { return c.frozen }
func (c *Commitment) Terms() Terms                { return c.terms }
func (c *Commitment) ChangeRequestID() *uuid.UUID { return c.changeRequestID }
func (c *Commitment) CreatedAt() time.Time        { return c.createdAt }
func (c *Commitment) ApprovalSentAt() *time.Time  { return c.approvalSentAt }
func (c *Commitment) ApprovedAt() *time.Time      { return c.approvedAt }
func (c *Commitment) DeliveredAt() *time.Time     { return c.deliveredAt }
func (c *Commitment) AcceptedAt() *time.Time      { return c.acceptedAt }
func (c *Commitment) UpdatedAt() time.Time        { return c.updatedAt }

// NextVersion mints the successor commitment after a change request is
// accepted: same root, version+1, terms copied with overrides applied, all
// progress timestamps reset. The caller freezes the receiver.
func (c *Commitment) NextVersion(startStatus Status, overrides *TermsOverrides, now time.Time) *Commitment {
	prevID := c.id
	next := &Commitment{
		id:         uuid.New(),
		rootID:     c.rootID,
		previousID: &prevID,
		version:    c.version + 1,
		status:     startStatus,
		terms:      c.terms.applyOverrides(overrides),
		createdAt:  now,
		updatedAt:  now,
	}
	if startStatus == StatusAwaitingClientApproval {
		sent := now
		next.approvalSentAt = &sent
	}
	return next
}

// MarkFrozen seals a superseded version. Frozen commitments stay readable for
// history but accept no further mutation.
func (c *Commitment) MarkFrozen(now time.Time) {
	c.frozen = true
	c.updatedAt = now
}
