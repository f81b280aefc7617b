package commitment

import "time"

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// RiskLevel is a display-only classification computed from canonical state.
// It is never persisted, so stored and displayed truth cannot drift.
func RiskLevel(c *Commitment, now time.Time) string {
	if c.status == StatusCancelled {
		return RiskLow
	}
	if c.status == StatusChangeRequestCreated {
		return RiskHigh
	}

	overdue := 0
	for _, pt := range c.terms.PaymentTerms {
		if pt.Status == PaymentStatusOverdue {
			overdue++
			continue
		}
		if pt.Status == PaymentStatusPending && pt.DueAt != nil && pt.DueAt.Before(now) {
			overdue++
		}
	}
	for _, m := range c.terms.Milestones {
		if m.Status == MilestoneStatusBlocked {
			overdue++
			continue
		}
		if m.Status != MilestoneStatusCompleted && m.DueAt != nil && m.DueAt.Before(now) {
			overdue++
		}
	}

	switch {
	case overdue > 1:
		return RiskHigh
	case overdue == 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Progress returns a 0-100 completion percentage derived from status and the
// per-item milestone/deliverable states.
func Progress(c *Commitment) int {
	switch c.status {
	case StatusDraft, StatusInternalReview:
		return 0
	case StatusAwaitingClientApproval, StatusChangeRequestCreated:
		return 10
	case StatusAccepted, StatusClosed:
		return 100
	case StatusCancelled:
		return 0
	}

	// IN_PROGRESS and DELIVERED scale with item completion between 20 and 90.
	total := len(c.terms.Milestones) + len(c.terms.Deliverables)
	if total == 0 {
		if c.status == StatusDelivered {
			return 90
		}
		return 20
	}

	done := 0
	for _, m := range c.terms.Milestones {
		if m.Status == MilestoneStatusCompleted {
			done++
		}
	}
	for _, d := range c.terms.Deliverables {
		if d.Status == DeliverableStatusDelivered || d.Status == DeliverableStatusAccepted {
			done++
		}
	}

	pct := 20 + (70*done)/total
	if c.status == StatusDelivered && pct < 90 {
		return 90
	}
	return pct
}
