package dtos

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/go-playground/validator/v10"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/pkg/constants"
)

// TermsOverridesDTO is the optional payload attached when accepting a change
// request. Absent fields keep the current version's value.
type TermsOverridesDTO struct {
	Title            *string          `json:"title" validate:"omitempty,max=255"`
	ScopeTitle       *string          `json:"scope_title" validate:"omitempty,max=255"`
	ScopeDescription *string          `json:"scope_description"`
	AmountMinor      *int64           `json:"amount_minor" validate:"omitempty,gte=0"`
	Currency         string           `json:"currency" validate:"omitempty,len=3"`
	Attachments      []AttachmentDTO  `json:"attachments" validate:"omitempty,dive"`
	PaymentTerms     []PaymentTermDTO `json:"payment_terms" validate:"omitempty,dive"`
	Milestones       []MilestoneDTO   `json:"milestones" validate:"omitempty,dive"`
	Deliverables     []DeliverableDTO `json:"deliverables" validate:"omitempty,dive"`
}

type ResolveChangeRequestDTO struct {
	Overrides *TermsOverridesDTO `json:"overrides" validate:"omitempty"`
}

func (d *ResolveChangeRequestDTO) Ok() (map[string]string, bool) {
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

// ToOverrides needs the current currency so bare amount overrides keep it.
func (d *ResolveChangeRequestDTO) ToOverrides(currentCurrency string) *commitment.TermsOverrides {
	if d.Overrides == nil {
		return nil
	}
	o := d.Overrides
	out := &commitment.TermsOverrides{
		Title:            o.Title,
		ScopeTitle:       o.ScopeTitle,
		ScopeDescription: o.ScopeDescription,
	}
	if o.AmountMinor != nil {
		code := o.Currency
		if code == "" {
			code = currentCurrency
		}
		out.Amount = money.New(*o.AmountMinor, strings.ToUpper(code))
	}
	for _, a := range o.Attachments {
		out.Attachments = append(out.Attachments, commitment.Attachment{
			URL:       a.URL,
			SecureURL: a.SecureURL,
			PublicID:  a.PublicID,
			Metadata:  a.Metadata,
		})
	}
	for _, p := range o.PaymentTerms {
		pt := commitment.PaymentTerm{
			Text:   strings.TrimSpace(p.Text),
			Status: commitment.PaymentStatusPending,
			DueAt:  p.DueAt,
		}
		if p.AmountMinor != nil {
			code := o.Currency
			if code == "" {
				code = currentCurrency
			}
			pt.Amount = money.New(*p.AmountMinor, strings.ToUpper(code))
		}
		out.PaymentTerms = append(out.PaymentTerms, pt)
	}
	for _, m := range o.Milestones {
		out.Milestones = append(out.Milestones, commitment.Milestone{
			Text:   strings.TrimSpace(m.Text),
			Status: commitment.MilestoneStatusNotStarted,
			DueAt:  m.DueAt,
		})
	}
	for _, del := range o.Deliverables {
		out.Deliverables = append(out.Deliverables, commitment.Deliverable{
			Text:   strings.TrimSpace(del.Text),
			Status: commitment.DeliverableStatusNotStarted,
		})
	}
	return out
}

// PublicActionDTO is the body posted from a token-gated public page.
type PublicActionDTO struct {
	Action  string `json:"action" validate:"required"`
	Comment string `json:"comment"`
}

func (d *PublicActionDTO) Normalize() {
	d.Action = strings.TrimSpace(strings.ToLower(d.Action))
	d.Comment = strings.TrimSpace(d.Comment)
}
