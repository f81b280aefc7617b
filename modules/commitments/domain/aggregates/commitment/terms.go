package commitment

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusPaid      = "PAID"
	PaymentStatusOverdue   = "OVERDUE"
	PaymentStatusCancelled = "CANCELLED"
)

const (
	MilestoneStatusNotStarted = "NOT_STARTED"
	MilestoneStatusInProgress = "IN_PROGRESS"
	MilestoneStatusCompleted  = "COMPLETED"
	MilestoneStatusBlocked    = "BLOCKED"
)

const (
	DeliverableStatusNotStarted = "NOT_STARTED"
	DeliverableStatusInProgress = "IN_PROGRESS"
	DeliverableStatusDelivered  = "DELIVERED"
	DeliverableStatusAccepted   = "ACCEPTED"
	DeliverableStatusRejected   = "REJECTED"
)

const (
	ApproverClientOnly  = "CLIENT_ONLY"
	ApproverBothParties = "BOTH_PARTIES"
)

// Attachment is an opaque reference into external file storage.
type Attachment struct {
	URL       string            `json:"url"`
	SecureURL string            `json:"secure_url,omitempty"`
	PublicID  string            `json:"public_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type PaymentTerm struct {
	Text   string       `json:"text"`
	Status string       `json:"status"`
	DueAt  *time.Time   `json:"due_at,omitempty"`
	PaidAt *time.Time   `json:"paid_at,omitempty"`
	Amount *money.Money `json:"amount,omitempty"`
}

type Milestone struct {
	Text        string     `json:"text"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Deliverable struct {
	Text   string `json:"text"`
	Status string `json:"status"`
}

type ApprovalRules struct {
	Approver            string `json:"approver"`
	ReApprovalOnChanges bool   `json:"re_approval_on_changes"`
	AcceptanceRequired  bool   `json:"acceptance_required"`
}

// ClientSnapshot is a denormalized copy of client identity taken at creation
// time, kept on every version so history renders correctly even if the client
// record changes later.
type ClientSnapshot struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Terms groups everything a new version copies (and a change-request accept
// may override) from its predecessor.
type Terms struct {
	Title            string
	ScopeTitle       string
	ScopeDescription string
	Amount           *money.Money
	Attachments      []Attachment
	PaymentTerms     []PaymentTerm
	Milestones       []Milestone
	Deliverables     []Deliverable
	Rules            ApprovalRules
	AssignedToUserID uuid.UUID
	ClientID         uuid.UUID
	ClientSnapshot   ClientSnapshot
}

// TermsOverrides carries the optional field replacements applied when an
// accepted change request mints the next version. Nil pointers mean "keep".
type TermsOverrides struct {
	Title            *string
	ScopeTitle       *string
	ScopeDescription *string
	Amount           *money.Money
	Attachments      []Attachment
	PaymentTerms     []PaymentTerm
	Milestones       []Milestone
	Deliverables     []Deliverable
}

func (t Terms) applyOverrides(o *TermsOverrides) Terms {
	if o == nil {
		return t
	}
	if o.Title != nil {
		t.Title = *o.Title
	}
	if o.ScopeTitle != nil {
		t.ScopeTitle = *o.ScopeTitle
	}
	if o.ScopeDescription != nil {
		t.ScopeDescription = *o.ScopeDescription
	}
	if o.Amount != nil {
		t.Amount = o.Amount
	}
	if o.Attachments != nil {
		t.Attachments = o.Attachments
	}
	if o.PaymentTerms != nil {
		t.PaymentTerms = o.PaymentTerms
	}
	if o.Milestones != nil {
		t.Milestones = o.Milestones
	}
	if o.Deliverables != nil {
		t.Deliverables = o.Deliverables
	}
	return t
}
