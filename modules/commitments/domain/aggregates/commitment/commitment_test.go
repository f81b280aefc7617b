package commitment

import (
	"testing"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactline/pactline/pkg/serrors"
)

func testTerms() Terms {
	return Terms{
		Title:  "Website redesign",
		Amount: money.New(250000, money.USD),
		Rules: ApprovalRules{
			Approver:            ApproverClientOnly,
			ReApprovalOnChanges: true,
			AcceptanceRequired:  true,
		},
		ClientSnapshot: ClientSnapshot{Name: "Acme", Email: "ops@acme.test"},
	}
}

func TestParseStatus(t *testing.T) {
	t.Run("canonical values pass through", func(t *testing.T) {
		got, err := ParseStatus("IN_PROGRESS")
		require.NoError(t, err)
		require.Equal(t, StatusInProgress, got)
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		got, err := ParseStatus("  draft ")
		require.NoError(t, err)
		require.Equal(t, StatusDraft, got)
	})

	t.Run("maps legacy aliases", func(t *testing.T) {
		for raw, want := range map[string]Status{
			"PENDING_APPROVAL":   StatusAwaitingClientApproval,
			"CHANGE_REQUESTED":   StatusChangeRequestCreated,
			"PENDING_ACCEPTANCE": StatusDelivered,
			"COMPLETED":          StatusAccepted,
		} {
			got, err := ParseStatus(raw)
			require.NoError(t, err)
			require.Equal(t, want, got, raw)
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		_, err := ParseStatus("SHIPPED")
		require.Error(t, err)
		require.Equal(t, serrors.CodeValidation, serrors.Code(err))
	})
}

func TestNew(t *testing.T) {
	now := time.Now().UTC()
	c := New(testTerms(), now)

	require.Equal(t, 1, c.Version())
	require.Equal(t, StatusDraft, c.Status())
	require.Equal(t, c.ID(), c.RootID())
	require.Nil(t, c.PreviousID())
	require.False(t, c.Frozen())
}

func TestTransitions(t *testing.T) {
	now := time.Now().UTC()

	t.Run("happy path to closed", func(t *testing.T) {
		c := New(testTerms(), now)

		require.NoError(t, c.SendApproval(now))
		require.Equal(t, StatusAwaitingClientApproval, c.Status())
		require.NotNil(t, c.ApprovalSentAt())

		require.NoError(t, c.Approve(now))
		require.Equal(t, StatusInProgress, c.Status())
		require.NotNil(t, c.ApprovedAt())

		require.NoError(t, c.MarkDelivered(now))
		require.Equal(t, StatusDelivered, c.Status())
		require.NotNil(t, c.DeliveredAt())
		require.Nil(t, c.AcceptedAt())

		require.NoError(t, c.Accept(now))
		require.Equal(t, StatusAccepted, c.Status())
		require.NotNil(t, c.AcceptedAt())

		require.NoError(t, c.Close(now))
		require.Equal(t, StatusClosed, c.Status())
	})

	t.Run("delivery auto-accepts when acceptance is waived", func(t *testing.T) {
		terms := testTerms()
		terms.Rules.AcceptanceRequired = false
		c := New(terms, now)
		require.NoError(t, c.SendApproval(now))
		require.NoError(t, c.Approve(now))

		require.NoError(t, c.MarkDelivered(now))
		require.Equal(t, StatusAccepted, c.Status())
		require.NotNil(t, c.AcceptedAt())
		require.Equal(t, c.DeliveredAt(), c.AcceptedAt())
	})

	t.Run("resend refreshes approvalSentAt without status change", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.SendApproval(now))
		first := *c.ApprovalSentAt()

		later := now.Add(time.Hour)
		require.NoError(t, c.SendApproval(later))
		require.Equal(t, StatusAwaitingClientApproval, c.Status())
		require.True(t, c.ApprovalSentAt().After(first))
	})

	t.Run("guard failure leaves aggregate untouched", func(t *testing.T) {
		c := New(testTerms(), now)
		before := c.UpdatedAt()

		err := c.Accept(now.Add(time.Hour))
		require.Error(t, err)
		require.Equal(t, serrors.CodeInvalidStateTransition, serrors.Code(err))
		require.Equal(t, StatusDraft, c.Status())
		require.Equal(t, before, c.UpdatedAt())
	})

	t.Run("request fix reverts to in progress and clears deliveredAt", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.SendApproval(now))
		require.NoError(t, c.Approve(now))
		require.NoError(t, c.MarkDelivered(now))

		require.NoError(t, c.RequestFix(now))
		require.Equal(t, StatusInProgress, c.Status())
		require.Nil(t, c.DeliveredAt())
	})

	t.Run("cancel allowed from any state except closed", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.Cancel(now))
		require.Equal(t, StatusCancelled, c.Status())

		closed := New(testTerms(), now)
		require.NoError(t, closed.SendApproval(now))
		require.NoError(t, closed.Approve(now))
		require.NoError(t, closed.MarkDelivered(now))
		require.NoError(t, closed.Accept(now))
		require.NoError(t, closed.Close(now))
		require.Error(t, closed.Cancel(now))
	})

	t.Run("frozen version rejects every mutation", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.SendApproval(now))
		c.MarkFrozen(now)

		require.Error(t, c.Approve(now))
		require.Error(t, c.SendApproval(now))
		require.Error(t, c.Cancel(now))
		require.Equal(t, StatusAwaitingClientApproval, c.Status())
	})
}

func TestMarkChangeRequested(t *testing.T) {
	now := time.Now().UTC()
	crID := newTestUUID(t)

	t.Run("moves to change request created", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.SendApproval(now))

		require.NoError(t, c.MarkChangeRequested(crID, now))
		require.Equal(t, StatusChangeRequestCreated, c.Status())
		require.NotNil(t, c.ChangeRequestID())
		require.Equal(t, crID, *c.ChangeRequestID())
	})

	t.Run("rejects a second open change request", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.SendApproval(now))
		require.NoError(t, c.MarkChangeRequested(crID, now))
		require.NoError(t, c.ReturnToApproval(now))
		require.Nil(t, c.ChangeRequestID())

		require.NoError(t, c.MarkChangeRequested(crID, now))
		err := c.MarkChangeRequested(newTestUUID(t), now)
		require.Error(t, err)
	})

	t.Run("only allowed while awaiting approval", func(t *testing.T) {
		c := New(testTerms(), now)
		require.Error(t, c.MarkChangeRequested(crID, now))
	})
}

func TestNextVersion(t *testing.T) {
	now := time.Now().UTC()
	c := New(testTerms(), now)
	require.NoError(t, c.SendApproval(now))
	require.NoError(t, c.MarkChangeRequested(newTestUUID(t), now))

	t.Run("chains off the same root with reset timestamps", func(t *testing.T) {
		later := now.Add(time.Hour)
		next := c.NextVersion(StatusAwaitingClientApproval, nil, later)

		require.Equal(t, c.RootID(), next.RootID())
		require.Equal(t, c.Version()+1, next.Version())
		require.NotNil(t, next.PreviousID())
		require.Equal(t, c.ID(), *next.PreviousID())
		require.NotEqual(t, c.ID(), next.ID())
		require.Nil(t, next.ApprovedAt())
		require.Nil(t, next.DeliveredAt())
		require.Nil(t, next.AcceptedAt())
		require.Nil(t, next.ChangeRequestID())
		require.NotNil(t, next.ApprovalSentAt())
	})

	t.Run("draft start skips the approval stamp", func(t *testing.T) {
		next := c.NextVersion(StatusDraft, nil, now)
		require.Equal(t, StatusDraft, next.Status())
		require.Nil(t, next.ApprovalSentAt())
	})

	t.Run("applies overrides and keeps the rest", func(t *testing.T) {
		title := "Website redesign v2"
		amount := money.New(300000, money.USD)
		next := c.NextVersion(StatusDraft, &TermsOverrides{Title: &title, Amount: amount}, now)

		require.Equal(t, title, next.Terms().Title)
		require.True(t, mustEquals(t, amount, next.Terms().Amount))
		require.Equal(t, c.Terms().ClientSnapshot, next.Terms().ClientSnapshot)
		require.Equal(t, c.Terms().Rules, next.Terms().Rules)
	})
}

func TestRiskLevel(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-24 * time.Hour)

	t.Run("open change request is high risk", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.SendApproval(now))
		require.NoError(t, c.MarkChangeRequested(newTestUUID(t), now))
		assert.Equal(t, RiskHigh, RiskLevel(c, now))
	})

	t.Run("cancelled is always low", func(t *testing.T) {
		c := New(testTerms(), now)
		require.NoError(t, c.Cancel(now))
		assert.Equal(t, RiskLow, RiskLevel(c, now))
	})

	t.Run("one overdue item is medium, more is high", func(t *testing.T) {
		terms := testTerms()
		terms.PaymentTerms = []PaymentTerm{{Text: "deposit", Status: PaymentStatusPending, DueAt: &past}}
		one := New(terms, now)
		assert.Equal(t, RiskMedium, RiskLevel(one, now))

		terms.Milestones = []Milestone{{Text: "wireframes", Status: MilestoneStatusInProgress, DueAt: &past}}
		two := New(terms, now)
		assert.Equal(t, RiskHigh, RiskLevel(two, now))
	})

	t.Run("paid and completed items do not count", func(t *testing.T) {
		terms := testTerms()
		terms.PaymentTerms = []PaymentTerm{{Text: "deposit", Status: PaymentStatusPaid, DueAt: &past}}
		terms.Milestones = []Milestone{{Text: "wireframes", Status: MilestoneStatusCompleted, DueAt: &past}}
		c := New(terms, now)
		assert.Equal(t, RiskLow, RiskLevel(c, now))
	})
}

func TestProgress(t *testing.T) {
	now := time.Now().UTC()

	advance := func(t *testing.T, terms Terms, to Status) *Commitment {
		t.Helper()
		c := New(terms, now)
		switch to {
		case StatusDraft:
		case StatusAwaitingClientApproval:
			require.NoError(t, c.SendApproval(now))
		case StatusInProgress:
			require.NoError(t, c.SendApproval(now))
			require.NoError(t, c.Approve(now))
		case StatusDelivered:
			require.NoError(t, c.SendApproval(now))
			require.NoError(t, c.Approve(now))
			require.NoError(t, c.MarkDelivered(now))
		case StatusAccepted:
			require.NoError(t, c.SendApproval(now))
			require.NoError(t, c.Approve(now))
			require.NoError(t, c.MarkDelivered(now))
			require.NoError(t, c.Accept(now))
		}
		return c
	}

	t.Run("status floors", func(t *testing.T) {
		terms := testTerms()
		assert.Equal(t, 0, Progress(advance(t, terms, StatusDraft)))
		assert.Equal(t, 10, Progress(advance(t, terms, StatusAwaitingClientApproval)))
		assert.Equal(t, 20, Progress(advance(t, terms, StatusInProgress)))
		assert.Equal(t, 90, Progress(advance(t, terms, StatusDelivered)))
		assert.Equal(t, 100, Progress(advance(t, terms, StatusAccepted)))
	})

	t.Run("scales with completed items", func(t *testing.T) {
		terms := testTerms()
		terms.Milestones = []Milestone{
			{Text: "wireframes", Status: MilestoneStatusCompleted},
			{Text: "build", Status: MilestoneStatusInProgress},
		}
		c := advance(t, terms, StatusInProgress)
		assert.Equal(t, 20+(70*1)/2, Progress(c))
	})
}

func newTestUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func mustEquals(t *testing.T, a, b *money.Money) bool {
	t.Helper()
	eq, err := a.Equals(b)
	require.NoError(t, err)
	return eq
}
