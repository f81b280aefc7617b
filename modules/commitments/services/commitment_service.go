package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/modules/commitments/domain/entities/history"
	"github.com/pactline/pactline/modules/commitments/domain/events"
	"github.com/pactline/pactline/pkg/composables"
	"github.com/pactline/pactline/pkg/eventbus"
	"github.com/pactline/pactline/pkg/serrors"
)

type CommitmentService struct {
	repo           commitment.Repository
	changeRequests changerequest.Repository
	history        history.Repository
	tokens         TokenService
	publisher      eventbus.EventBus
	publicOrigin   string
}

func NewCommitmentService(
	repo commitment.Repository,
	changeRequests changerequest.Repository,
	historyRepo history.Repository,
	tokens TokenService,
	publisher eventbus.EventBus,
	publicOrigin string,
) *CommitmentService {
	return &CommitmentService{
		repo:           repo,
		changeRequests: changeRequests,
		history:        historyRepo,
		tokens:         tokens,
		publisher:      publisher,
		publicOrigin:   publicOrigin,
	}
}

func (s *CommitmentService) GetByID(ctx context.Context, id uuid.UUID) (*commitment.Commitment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CommitmentService) ListChangeRequests(ctx context.Context, commitmentID uuid.UUID) ([]*changerequest.ChangeRequest, error) {
	if _, err := s.repo.GetByID(ctx, commitmentID); err != nil {
		return nil, err
	}
	return s.changeRequests.ListByCommitment(ctx, commitmentID)
}

func (s *CommitmentService) Create(ctx context.Context, terms commitment.Terms) (*commitment.Commitment, error) {
	if strings.TrimSpace(terms.Title) == "" {
		return nil, serrors.NewFieldRequiredError("title", "Commitments.Fields.title")
	}
	if terms.Amount == nil {
		return nil, serrors.NewFieldRequiredError("amount", "Commitments.Fields.amount")
	}
	if terms.ClientSnapshot.Email == "" {
		return nil, serrors.NewFieldRequiredError("client_email", "Commitments.Fields.client_email")
	}
	if terms.Rules.Approver == "" {
		terms.Rules.Approver = commitment.ApproverClientOnly
	}

	now := time.Now().UTC()
	c := commitment.New(terms, now)

	created, err := inTx(ctx, func(txCtx context.Context) (*commitment.Commitment, error) {
		if err := s.repo.Create(txCtx, c); err != nil {
			return nil, err
		}
		if err := s.appendHistory(txCtx, c.ID(), history.TypeCreated, "commitment created", now); err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChange(ctx, created, "created", "", created.Status(), "")
	return created, nil
}

// SendApproval issues (or re-issues) the client approval link. Re-sending
// while already awaiting approval refreshes approvalSentAt and records a
// reminder instead of a second send.
func (s *CommitmentService) SendApproval(ctx context.Context, id uuid.UUID) (*commitment.Commitment, string, error) {
	now := time.Now().UTC()

	type result struct {
		c      *commitment.Commitment
		from   commitment.Status
		resend bool
	}
	out, err := inTx(ctx, func(txCtx context.Context) (result, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return result{}, err
		}
		from := c.Status()
		resend := from == commitment.StatusAwaitingClientApproval
		if err := c.SendApproval(now); err != nil {
			return result{}, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return result{}, err
		}
		eventType := history.TypeSent
		message := "approval requested from client"
		if resend {
			eventType = history.TypeReminder
			message = "approval reminder sent to client"
		}
		if err := s.appendHistory(txCtx, c.ID(), eventType, message, now); err != nil {
			return result{}, err
		}
		return result{c: c, from: from, resend: resend}, nil
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(out.c.ID(), out.c.Version(), PurposeApproval)
	if err != nil {
		return nil, "", err
	}

	changeType := "approval_sent"
	if out.resend {
		changeType = "approval_reminder"
	}
	s.publishChange(ctx, out.c, changeType, out.from, out.c.Status(), s.approvalLink(token))
	return out.c, token, nil
}

// Approve is the client's positive answer to an approval link. The token's
// bound version must still be the current one.
func (s *CommitmentService) Approve(ctx context.Context, id uuid.UUID, expectedVersion int) (*commitment.Commitment, error) {
	now := time.Now().UTC()

	c, err := inTx(ctx, func(txCtx context.Context) (*commitment.Commitment, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if c.Version() != expectedVersion {
			return nil, ErrTokenVersionMismatch
		}
		from := c.Status()
		if err := c.Approve(now); err != nil {
			return nil, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return nil, err
		}
		if err := s.appendHistory(txCtx, c.ID(), history.TypeApproved, "client approved the commitment", now); err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChange(ctx, c, "approved", commitment.StatusAwaitingClientApproval, c.Status(), "")
	return c, nil
}

// RequestChange records the client's formal objection: a change request is
// opened and the commitment waits for the provider to resolve it.
func (s *CommitmentService) RequestChange(ctx context.Context, id uuid.UUID, expectedVersion int, reason string) (*changerequest.ChangeRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, serrors.NewFieldRequiredError("reason", "ChangeRequests.Fields.reason")
	}
	now := time.Now().UTC()
	actor := composables.UseActor(ctx)

	type result struct {
		c  *commitment.Commitment
		cr *changerequest.ChangeRequest
	}
	out, err := inTx(ctx, func(txCtx context.Context) (result, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return result{}, err
		}
		if c.Version() != expectedVersion {
			return result{}, ErrTokenVersionMismatch
		}
		if c.Status() != commitment.StatusAwaitingClientApproval {
			return result{}, serrors.NewError(
				serrors.CodeInvalidStateTransition,
				fmt.Sprintf("cannot request changes on a commitment in status %s", c.Status()),
				"Commitments.Errors.InvalidStateTransition",
			)
		}
		if open, err := s.changeRequests.FindOpenByCommitment(txCtx, id); err != nil {
			return result{}, err
		} else if open != nil {
			return result{}, serrors.NewError(
				serrors.CodeInvalidStateTransition,
				"a change request is already open for this commitment",
				"Commitments.Errors.ChangeRequestOpen",
			)
		}

		cr, err := s.changeRequests.Create(txCtx, &changerequest.ChangeRequest{
			ID:                uuid.New(),
			CommitmentID:      c.ID(),
			CommitmentVersion: c.Version(),
			Status:            changerequest.StatusOpen,
			Reason:            strings.TrimSpace(reason),
			RequestedBy: changerequest.RequestedBy{
				Type:  actor.Type,
				Name:  actor.Name,
				Email: actor.Email,
			},
			CreatedAt: now,
		})
		if err != nil {
			return result{}, err
		}

		from := c.Status()
		if err := c.MarkChangeRequested(cr.ID, now); err != nil {
			return result{}, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return result{}, err
		}
		if err := s.appendHistory(txCtx, c.ID(), history.TypeChangeRequested, cr.Reason, now); err != nil {
			return result{}, err
		}
		return result{c: c, cr: cr}, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChange(ctx, out.c, "change_requested", commitment.StatusAwaitingClientApproval, out.c.Status(), "")
	return out.cr, nil
}

func (s *CommitmentService) MarkDelivered(ctx context.Context, id uuid.UUID) (*commitment.Commitment, error) {
	now := time.Now().UTC()

	c, err := inTx(ctx, func(txCtx context.Context) (*commitment.Commitment, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		from := c.Status()
		if err := c.MarkDelivered(now); err != nil {
			return nil, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return nil, err
		}
		if err := s.appendHistory(txCtx, c.ID(), history.TypeDelivered, "work delivered", now); err != nil {
			return nil, err
		}
		// Acceptance waived: the delivery is the acceptance.
		if c.Status() == commitment.StatusAccepted {
			if err := s.appendHistory(txCtx, c.ID(), history.TypeAccepted, "accepted automatically (no acceptance required)", now); err != nil {
				return nil, err
			}
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChange(ctx, c, "delivered", commitment.StatusInProgress, c.Status(), "")
	return c, nil
}

// SendAcceptance issues the acceptance link. It never changes the
// commitment's status.
func (s *CommitmentService) SendAcceptance(ctx context.Context, id uuid.UUID, resend bool) (*commitment.Commitment, string, error) {
	now := time.Now().UTC()

	c, err := inTx(ctx, func(txCtx context.Context) (*commitment.Commitment, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if c.Status() != commitment.StatusDelivered {
			return nil, serrors.NewError(
				serrors.CodeInvalidStateTransition,
				fmt.Sprintf("cannot send acceptance for a commitment in status %s", c.Status()),
				"Commitments.Errors.InvalidStateTransition",
			)
		}
		if !c.Terms().Rules.AcceptanceRequired {
			return nil, serrors.NewError(
				serrors.CodeInvalidStateTransition,
				"acceptance is not required for this commitment",
				"Commitments.Errors.AcceptanceNotRequired",
			)
		}
		eventType := history.TypeAcceptanceSent
		message := "acceptance requested from client"
		if resend {
			eventType = history.TypeReminder
			message = "acceptance reminder sent to client"
		}
		if err := s.appendHistory(txCtx, c.ID(), eventType, message, now); err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(c.ID(), c.Version(), PurposeAcceptance)
	if err != nil {
		return nil, "", err
	}

	changeType := "acceptance_sent"
	if resend {
		changeType = "acceptance_reminder"
	}
	s.publishChange(ctx, c, changeType, c.Status(), c.Status(), s.acceptanceLink(token))
	return c, token, nil
}

func (s *CommitmentService) Accept(ctx context.Context, id uuid.UUID, expectedVersion int, comment string) (*commitment.Commitment, error) {
	now := time.Now().UTC()

	c, err := inTx(ctx, func(txCtx context.Context) (*commitment.Commitment, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if c.Version() != expectedVersion {
			return nil, ErrTokenVersionMismatch
		}
		from := c.Status()
		if err := c.Accept(now); err != nil {
			return nil, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return nil, err
		}
		message := "client accepted the delivery"
		if comment = strings.TrimSpace(comment); comment != "" {
			message = comment
		}
		if err := s.appendHistory(txCtx, c.ID(), history.TypeAccepted, message, now); err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChange(ctx, c, "accepted", commitment.StatusDelivered, c.Status(), "")
	return c, nil
}

// RequestFix reverts a delivery to IN_PROGRESS with only a comment. Unlike
// RequestChange there is no change request entity and no provider resolution
// step; the two mechanisms are intentionally different.
func (s *CommitmentService) RequestFix(ctx context.Context, id uuid.UUID, expectedVersion int, comment string) (*commitment.Commitment, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, serrors.NewFieldRequiredError("comment", "Commitments.Fields.fix_comment")
	}
	now := time.Now().UTC()

	c, err := inTx(ctx, func(txCtx context.Context) (*commitment.Commitment, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return nil, err
		}
		if c.Version() != expectedVersion {
			return nil, ErrTokenVersionMismatch
		}
		from := c.Status()
		if err := c.RequestFix(now); err != nil {
			return nil, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return nil, err
		}
		if err := s.appendHistory(txCtx, c.ID(), history.TypeFixRequested, strings.TrimSpace(comment), now); err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChange(ctx, c, "fix_requested", commitment.StatusDelivered, c.Status(), "")
	return c, nil
}

func (s *CommitmentService) Close(ctx context.Context, id uuid.UUID) (*commitment.Commitment, error) {
	return s.simpleTransition(ctx, id, "close",
		func(c *commitment.Commitment, now time.Time) error { return c.Close(now) },
		history.TypeClosed, "commitment closed")
}

func (s *CommitmentService) Cancel(ctx context.Context, id uuid.UUID) (*commitment.Commitment, error) {
	return s.simpleTransition(ctx, id, "cancel",
		func(c *commitment.Commitment, now time.Time) error { return c.Cancel(now) },
		history.TypeCancelled, "commitment cancelled")
}

func (s *CommitmentService) simpleTransition(
	ctx context.Context,
	id uuid.UUID,
	changeType string,
	apply func(c *commitment.Commitment, now time.Time) error,
	eventType, message string,
) (*commitment.Commitment, error) {
	now := time.Now().UTC()

	type result struct {
		c    *commitment.Commitment
		from commitment.Status
	}
	out, err := inTx(ctx, func(txCtx context.Context) (result, error) {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return result{}, err
		}
		from := c.Status()
		if err := apply(c, now); err != nil {
			return result{}, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return result{}, err
		}
		if err := s.appendHistory(txCtx, c.ID(), eventType, message, now); err != nil {
			return result{}, err
		}
		return result{c: c, from: from}, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishChange(ctx, out.c, changeType, out.from, out.c.Status(), "")
	return out.c, nil
}

func (s *CommitmentService) appendHistory(ctx context.Context, commitmentID uuid.UUID, eventType, message string, at time.Time) error {
	actor := composables.UseActor(ctx)
	return s.history.Append(ctx, history.Event{
		CommitmentID: commitmentID,
		Type:         eventType,
		Actor:        formatActor(actor),
		Message:      message,
		CreatedAt:    at,
	})
}

func (s *CommitmentService) publishChange(ctx context.Context, c *commitment.Commitment, changeType string, from, to commitment.Status, link string) {
	actor := composables.UseActor(ctx)
	s.publisher.Publish(events.CommitmentEventV1{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		CommitmentID: c.ID(),
		RootID:       c.RootID(),
		Version:      c.Version(),
		ChangeType:   changeType,
		FromStatus:   string(from),
		ToStatus:     string(to),
		ActorType:    actor.Type,
		ActorName:    actor.Name,
		OccurredAt:   time.Now().UTC(),
		Link:         link,
	})
}

func (s *CommitmentService) approvalLink(token string) string {
	return fmt.Sprintf("%s/public/approvals/%s", s.publicOrigin, token)
}

func (s *CommitmentService) acceptanceLink(token string) string {
	return fmt.Sprintf("%s/public/acceptances/%s", s.publicOrigin, token)
}

func formatActor(actor composables.Actor) string {
	if actor.Name == "" {
		return actor.Type
	}
	return fmt.Sprintf("%s:%s", actor.Type, actor.Name)
}
