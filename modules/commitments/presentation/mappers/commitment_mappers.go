package mappers

import (
	"time"

	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
)

type CommitmentResponse struct {
	ID               uuid.UUID                 `json:"id"`
	RootID           uuid.UUID                 `json:"root_id"`
	PreviousID       *uuid.UUID                `json:"previous_id,omitempty"`
	Version          int                       `json:"version"`
	Status           string                    `json:"status"`
	Frozen           bool                      `json:"frozen"`
	Title            string                    `json:"title"`
	ScopeTitle       string                    `json:"scope_title,omitempty"`
	ScopeDescription string                    `json:"scope_description,omitempty"`
	Amount           string                    `json:"amount"`
	AmountMinor      int64                     `json:"amount_minor"`
	Currency         string                    `json:"currency"`
	Attachments      []commitment.Attachment   `json:"attachments,omitempty"`
	PaymentTerms     []commitment.PaymentTerm  `json:"payment_terms,omitempty"`
	Milestones       []commitment.Milestone    `json:"milestones,omitempty"`
	Deliverables     []commitment.Deliverable  `json:"deliverables,omitempty"`
	ApprovalRules    commitment.ApprovalRules  `json:"approval_rules"`
	AssignedToUserID uuid.UUID                 `json:"assigned_to_user_id"`
	ClientID         uuid.UUID                 `json:"client_id"`
	Client           commitment.ClientSnapshot `json:"client"`
	ChangeRequestID  *uuid.UUID                `json:"change_request_id,omitempty"`
	RiskLevel        string                    `json:"risk_level"`
	Progress         int                       `json:"progress"`
	CreatedAt        time.Time                 `json:"created_at"`
	ApprovalSentAt   *time.Time                `json:"approval_sent_at,omitempty"`
	ApprovedAt       *time.Time                `json:"approved_at,omitempty"`
	DeliveredAt      *time.Time                `json:"delivered_at,omitempty"`
	AcceptedAt       *time.Time                `json:"accepted_at,omitempty"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func CommitmentToResponse(c *commitment.Commitment) CommitmentResponse {
	terms := c.Terms()
	out := CommitmentResponse{
		ID:               c.ID(),
		RootID:           c.RootID(),
		PreviousID:       c.PreviousID(),
		Version:          c.Version(),
		Status:           string(c.Status()),
		Frozen:           c.Frozen(),
		Title:            terms.Title,
		ScopeTitle:       terms.ScopeTitle,
		ScopeDescription: terms.ScopeDescription,
		Attachments:      terms.Attachments,
		PaymentTerms:     terms.PaymentTerms,
		Milestones:       terms.Milestones,
		Deliverables:     terms.Deliverables,
		ApprovalRules:    terms.Rules,
		AssignedToUserID: terms.AssignedToUserID,
		ClientID:         terms.ClientID,
		Client:           terms.ClientSnapshot,
		ChangeRequestID:  c.ChangeRequestID(),
		RiskLevel:        commitment.RiskLevel(c, time.Now().UTC()),
		Progress:         commitment.Progress(c),
		CreatedAt:        c.CreatedAt(),
		ApprovalSentAt:   c.ApprovalSentAt(),
		ApprovedAt:       c.ApprovedAt(),
		DeliveredAt:      c.DeliveredAt(),
		AcceptedAt:       c.AcceptedAt(),
		UpdatedAt:        c.UpdatedAt(),
	}
	if terms.Amount != nil {
		out.Amount = terms.Amount.Display()
		out.AmountMinor = terms.Amount.Amount()
		out.Currency = terms.Amount.Currency().Code
	}
	return out
}

type ChangeRequestResponse struct {
	ID                uuid.UUID                 `json:"id"`
	CommitmentID      uuid.UUID                 `json:"commitment_id"`
	CommitmentVersion int                       `json:"commitment_version"`
	Status            string                    `json:"status"`
	Reason            string                    `json:"reason"`
	RequestedBy       changerequest.RequestedBy `json:"requested_by"`
	CreatedAt         time.Time                 `json:"created_at"`
	ResolvedAt        *time.Time                `json:"resolved_at,omitempty"`
}

func ChangeRequestToResponse(cr *changerequest.ChangeRequest) ChangeRequestResponse {
	return ChangeRequestResponse{
		ID:                cr.ID,
		CommitmentID:      cr.CommitmentID,
		CommitmentVersion: cr.CommitmentVersion,
		Status:            cr.Status,
		Reason:            cr.Reason,
		RequestedBy:       cr.RequestedBy,
		CreatedAt:         cr.CreatedAt,
		ResolvedAt:        cr.ResolvedAt,
	}
}
