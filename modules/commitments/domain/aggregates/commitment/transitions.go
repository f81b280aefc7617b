package commitment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pactline/pactline/pkg/serrors"
)

func errInvalidTransition(op string, from Status) *serrors.BaseError {
	return serrors.NewError(
		serrors.CodeInvalidStateTransition,
		fmt.Sprintf("cannot %s a commitment in status %s", op, from),
		"Commitments.Errors.InvalidStateTransition",
	).WithTemplateData(map[string]string{"operation": op, "status": string(from)})
}

func errFrozen(op string) *serrors.BaseError {
	return serrors.NewError(
		serrors.CodeInvalidStateTransition,
		fmt.Sprintf("cannot %s a superseded commitment version", op),
		"Commitments.Errors.Frozen",
	).WithTemplateData(map[string]string{"operation": op})
}

// Every transition validates its guard before touching any field. A guard
// failure leaves the aggregate untouched, updatedAt included.

// SendApproval moves the commitment in front of the client. Re-sending while
// already awaiting approval refreshes approvalSentAt without a status change.
func (c *Commitment) SendApproval(now time.Time) error {
	if c.frozen {
		return errFrozen("send approval for")
	}
	switch c.status {
	case StatusDraft, StatusInternalReview, StatusAwaitingClientApproval:
	default:
		return errInvalidTransition("send approval for", c.status)
	}
	c.status = StatusAwaitingClientApproval
	sent := now
	c.approvalSentAt = &sent
	c.updatedAt = now
	return nil
}

func (c *Commitment) Approve(now time.Time) error {
	if c.frozen {
		return errFrozen("approve")
	}
	if c.status != StatusAwaitingClientApproval {
		return errInvalidTransition("approve", c.status)
	}
	c.status = StatusInProgress
	approved := now
	c.approvedAt = &approved
	c.updatedAt = now
	return nil
}

// MarkChangeRequested records that an open change request now gates this
// version. At most one change request may be open at a time.
func (c *Commitment) MarkChangeRequested(changeRequestID uuid.UUID, now time.Time) error {
	if c.frozen {
		return errFrozen("request changes on")
	}
	if c.status != StatusAwaitingClientApproval {
		return errInvalidTransition("request changes on", c.status)
	}
	if c.changeRequestID != nil {
		return serrors.NewError(
			serrors.CodeInvalidStateTransition,
			"a change request is already open for this commitment",
			"Commitments.Errors.ChangeRequestOpen",
		)
	}
	c.status = StatusChangeRequestCreated
	c.changeRequestID = &changeRequestID
	c.updatedAt = now
	return nil
}

// ReturnToApproval reverts a rejected change request back to the approval
// gate. No version bump happens on this path.
func (c *Commitment) ReturnToApproval(now time.Time) error {
	if c.frozen {
		return errFrozen("reopen approval for")
	}
	if c.status != StatusChangeRequestCreated {
		return errInvalidTransition("reopen approval for", c.status)
	}
	c.status = StatusAwaitingClientApproval
	c.changeRequestID = nil
	c.updatedAt = now
	return nil
}

// MarkDelivered completes the work. When the approval rules waive explicit
// acceptance, the commitment lands in ACCEPTED directly with
// acceptedAt == deliveredAt.
func (c *Commitment) MarkDelivered(now time.Time) error {
	if c.frozen {
		return errFrozen("deliver")
	}
	if c.status != StatusInProgress {
		return errInvalidTransition("deliver", c.status)
	}
	delivered := now
	c.deliveredAt = &delivered
	if c.terms.Rules.AcceptanceRequired {
		c.status = StatusDelivered
	} else {
		c.status = StatusAccepted
		c.acceptedAt = &delivered
	}
	c.updatedAt = now
	return nil
}

func (c *Commitment) Accept(now time.Time) error {
	if c.frozen {
		return errFrozen("accept")
	}
	if c.status != StatusDelivered {
		return errInvalidTransition("accept", c.status)
	}
	c.status = StatusAccepted
	accepted := now
	c.acceptedAt = &accepted
	c.updatedAt = now
	return nil
}

// RequestFix is the informal counterpart to a change request: the client
// sends the delivery back with a comment and the commitment reverts to
// IN_PROGRESS. No change request entity and no version bump are involved.
func (c *Commitment) RequestFix(now time.Time) error {
	if c.frozen {
		return errFrozen("request a fix on")
	}
	if c.status != StatusDelivered {
		return errInvalidTransition("request a fix on", c.status)
	}
	c.status = StatusInProgress
	c.deliveredAt = nil
	c.updatedAt = now
	return nil
}

func (c *Commitment) Close(now time.Time) error {
	if c.frozen {
		return errFrozen("close")
	}
	if c.status != StatusAccepted {
		return errInvalidTransition("close", c.status)
	}
	c.status = StatusClosed
	c.updatedAt = now
	return nil
}

// Cancel is allowed from any state except CLOSED.
func (c *Commitment) Cancel(now time.Time) error {
	if c.frozen {
		return errFrozen("cancel")
	}
	if c.status == StatusClosed {
		return errInvalidTransition("cancel", c.status)
	}
	c.status = StatusCancelled
	c.updatedAt = now
	return nil
}
