package dtos

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/pkg/constants"
)

type AttachmentDTO struct {
	URL       string            `json:"url" validate:"required,url"`
	SecureURL string            `json:"secure_url" validate:"omitempty,url"`
	PublicID  string            `json:"public_id"`
	Metadata  map[string]string `json:"metadata"`
}

type PaymentTermDTO struct {
	Text        string     `json:"text" validate:"required"`
	AmountMinor *int64     `json:"amount_minor" validate:"omitempty,gte=0"`
	DueAt       *time.Time `json:"due_at"`
}

type MilestoneDTO struct {
	Text  string     `json:"text" validate:"required"`
	DueAt *time.Time `json:"due_at"`
}

type DeliverableDTO struct {
	Text string `json:"text" validate:"required"`
}

type ApprovalRulesDTO struct {
	Approver            string `json:"approver" validate:"omitempty,oneof=CLIENT_ONLY BOTH_PARTIES"`
	ReApprovalOnChanges *bool  `json:"re_approval_on_changes"`
	AcceptanceRequired  *bool  `json:"acceptance_required"`
}

type ClientDTO struct {
	ID    uuid.UUID `json:"id" validate:"required"`
	Name  string    `json:"name" validate:"required"`
	Email string    `json:"email" validate:"required,email"`
	Phone string    `json:"phone"`
}

type CreateCommitmentDTO struct {
	Title            string            `json:"title" validate:"required,max=255"`
	ScopeTitle       string            `json:"scope_title" validate:"max=255"`
	ScopeDescription string            `json:"scope_description"`
	AmountMinor      int64             `json:"amount_minor" validate:"gte=0"`
	Currency         string            `json:"currency" validate:"required,len=3"`
	Attachments      []AttachmentDTO   `json:"attachments" validate:"omitempty,dive"`
	PaymentTerms     []PaymentTermDTO  `json:"payment_terms" validate:"omitempty,dive"`
	Milestones       []MilestoneDTO    `json:"milestones" validate:"omitempty,dive"`
	Deliverables     []DeliverableDTO  `json:"deliverables" validate:"omitempty,dive"`
	Rules            *ApprovalRulesDTO `json:"approval_rules"`
	AssignedToUserID uuid.UUID         `json:"assigned_to_user_id" validate:"required"`
	Client           ClientDTO         `json:"client" validate:"required"`
}

func (d *CreateCommitmentDTO) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.ScopeTitle = strings.TrimSpace(d.ScopeTitle)
	d.Currency = strings.ToUpper(strings.TrimSpace(d.Currency))
	d.Client.Name = strings.TrimSpace(d.Client.Name)
	d.Client.Email = strings.TrimSpace(d.Client.Email)
}

func (d *CreateCommitmentDTO) Ok() (map[string]string, bool) {
	d.Normalize()
	errs := constants.Validate.Struct(d)
	if errs == nil {
		return map[string]string{}, true
	}
	out := map[string]string{}
	for _, err := range errs.(validator.ValidationErrors) {
		out[err.Field()] = err.Tag()
	}
	return out, false
}

func (d *CreateCommitmentDTO) ToTerms() commitment.Terms {
	terms := commitment.Terms{
		Title:            d.Title,
		ScopeTitle:       d.ScopeTitle,
		ScopeDescription: d.ScopeDescription,
		Amount:           money.New(d.AmountMinor, d.Currency),
		AssignedToUserID: d.AssignedToUserID,
		ClientID:         d.Client.ID,
		ClientSnapshot: commitment.ClientSnapshot{
			Name:  d.Client.Name,
			Email: d.Client.Email,
			Phone: d.Client.Phone,
		},
		Rules: commitment.ApprovalRules{
			Approver:            commitment.ApproverClientOnly,
			ReApprovalOnChanges: true,
			AcceptanceRequired:  true,
		},
	}
	if d.Rules != nil {
		if d.Rules.Approver != "" {
			terms.Rules.Approver = d.Rules.Approver
		}
		if d.Rules.ReApprovalOnChanges != nil {
			terms.Rules.ReApprovalOnChanges = *d.Rules.ReApprovalOnChanges
		}
		if d.Rules.AcceptanceRequired != nil {
			terms.Rules.AcceptanceRequired = *d.Rules.AcceptanceRequired
		}
	}
	for _, a := range d.Attachments {
		terms.Attachments = append(terms.Attachments, commitment.Attachment{
			URL:       a.URL,
			SecureURL: a.SecureURL,
			PublicID:  a.PublicID,
			Metadata:  a.Metadata,
		})
	}
	for _, p := range d.PaymentTerms {
		pt := commitment.PaymentTerm{
			Text:   strings.TrimSpace(p.Text),
			Status: commitment.PaymentStatusPending,
			DueAt:  p.DueAt,
		}
		if p.AmountMinor != nil {
			pt.Amount = money.New(*p.AmountMinor, d.Currency)
		}
		terms.PaymentTerms = append(terms.PaymentTerms, pt)
	}
	for _, m := range d.Milestones {
		terms.Milestones = append(terms.Milestones, commitment.Milestone{
			Text:   strings.TrimSpace(m.Text),
			Status: commitment.MilestoneStatusNotStarted,
			DueAt:  m.DueAt,
		})
	}
	for _, del := range d.Deliverables {
		terms.Deliverables = append(terms.Deliverables, commitment.Deliverable{
			Text:   strings.TrimSpace(del.Text),
			Status: commitment.DeliverableStatusNotStarted,
		})
	}
	return terms
}
