package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/modules/commitments/domain/entities/history"
	"github.com/pactline/pactline/modules/commitments/domain/events"
	"github.com/pactline/pactline/pkg/composables"
	"github.com/pactline/pactline/pkg/configuration"
	"github.com/pactline/pactline/pkg/eventbus"
	"github.com/pactline/pactline/pkg/serrors"
)

// ResolutionService resolves open change requests: accepting one mints the
// next version of the chain and freezes the current one; rejecting returns
// the commitment to the approval gate unchanged.
type ResolutionService struct {
	repo           commitment.Repository
	changeRequests changerequest.Repository
	history        history.Repository
	tokens         TokenService
	publisher      eventbus.EventBus
	// resolutionStatus is the status a freshly minted version starts in,
	// either AWAITING_CLIENT_APPROVAL (auto re-send) or DRAFT.
	resolutionStatus commitment.Status
	publicOrigin     string
}

func NewResolutionService(
	repo commitment.Repository,
	changeRequests changerequest.Repository,
	historyRepo history.Repository,
	tokens TokenService,
	publisher eventbus.EventBus,
	resolutionPolicy string,
	publicOrigin string,
) *ResolutionService {
	status := commitment.StatusAwaitingClientApproval
	if resolutionPolicy == configuration.ResolutionDraft {
		status = commitment.StatusDraft
	}
	return &ResolutionService{
		repo:             repo,
		changeRequests:   changeRequests,
		history:          historyRepo,
		tokens:           tokens,
		publisher:        publisher,
		resolutionStatus: status,
		publicOrigin:     publicOrigin,
	}
}

// AcceptChangeRequest atomically marks the change request ACCEPTED, freezes
// the current version and creates its successor. Of two concurrent
// resolutions exactly one wins; the loser performs no mutation.
func (s *ResolutionService) AcceptChangeRequest(
	ctx context.Context,
	commitmentID, changeRequestID uuid.UUID,
	overrides *commitment.TermsOverrides,
) (*commitment.Commitment, error) {
	now := time.Now().UTC()
	actor := composables.UseActor(ctx)

	type result struct {
		old  *commitment.Commitment
		next *commitment.Commitment
	}
	out, err := inTx(ctx, func(txCtx context.Context) (result, error) {
		cr, err := s.changeRequests.GetByID(txCtx, changeRequestID)
		if err != nil {
			return result{}, err
		}
		if cr.CommitmentID != commitmentID {
			return result{}, serrors.NewError(
				serrors.CodeValidation,
				"change request does not belong to this commitment",
				"ChangeRequests.Errors.CommitmentMismatch",
			)
		}
		// Resolve first: the conditional flip on OPEN is what decides the
		// winner between two concurrent resolution attempts.
		if _, err := s.changeRequests.Resolve(txCtx, changeRequestID, changerequest.StatusAccepted); err != nil {
			return result{}, err
		}

		cur, err := s.repo.GetByID(txCtx, commitmentID)
		if err != nil {
			return result{}, err
		}
		next := cur.NextVersion(s.resolutionStatus, overrides, now)
		if err := s.repo.Freeze(txCtx, cur.ID()); err != nil {
			return result{}, err
		}
		if err := s.repo.Create(txCtx, next); err != nil {
			return result{}, err
		}

		if err := s.history.Append(txCtx, history.Event{
			CommitmentID: cur.ID(),
			Type:         history.TypeChangeAccepted,
			Actor:        formatActor(actor),
			Message:      "change request accepted; new version created",
			CreatedAt:    now,
		}); err != nil {
			return result{}, err
		}
		if next.Status() == commitment.StatusAwaitingClientApproval {
			if err := s.history.Append(txCtx, history.Event{
				CommitmentID: next.ID(),
				Type:         history.TypeSent,
				Actor:        formatActor(actor),
				Message:      "revised version sent for approval",
				CreatedAt:    now,
			}); err != nil {
				return result{}, err
			}
		}
		return result{old: cur, next: next}, nil
	})
	if err != nil {
		return nil, err
	}

	link := ""
	if out.next.Status() == commitment.StatusAwaitingClientApproval {
		token, err := s.tokens.Issue(out.next.ID(), out.next.Version(), PurposeApproval)
		if err != nil {
			return nil, err
		}
		link = s.publicOrigin + "/public/approvals/" + token
	}

	s.publisher.Publish(events.CommitmentEventV1{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		CommitmentID: out.next.ID(),
		RootID:       out.next.RootID(),
		Version:      out.next.Version(),
		ChangeType:   "change_request_accepted",
		FromStatus:   string(commitment.StatusChangeRequestCreated),
		ToStatus:     string(out.next.Status()),
		ActorType:    actor.Type,
		ActorName:    actor.Name,
		OccurredAt:   now,
		Link:         link,
	})
	return out.next, nil
}

// RejectChangeRequest closes the change request and puts the same version
// back in front of the client. No version bump, no new document.
func (s *ResolutionService) RejectChangeRequest(ctx context.Context, commitmentID, changeRequestID uuid.UUID) (*commitment.Commitment, error) {
	now := time.Now().UTC()
	actor := composables.UseActor(ctx)

	c, err := inTx(ctx, func(txCtx context.Context) (*commitment.Commitment, error) {
		cr, err := s.changeRequests.GetByID(txCtx, changeRequestID)
		if err != nil {
			return nil, err
		}
		if cr.CommitmentID != commitmentID {
			return nil, serrors.NewError(
				serrors.CodeValidation,
				"change request does not belong to this commitment",
				"ChangeRequests.Errors.CommitmentMismatch",
			)
		}
		if _, err := s.changeRequests.Resolve(txCtx, changeRequestID, changerequest.StatusRejected); err != nil {
			return nil, err
		}

		c, err := s.repo.GetByID(txCtx, commitmentID)
		if err != nil {
			return nil, err
		}
		from := c.Status()
		if err := c.ReturnToApproval(now); err != nil {
			return nil, err
		}
		if err := s.repo.Update(txCtx, c, from); err != nil {
			return nil, err
		}
		if err := s.history.Append(txCtx, history.Event{
			CommitmentID: c.ID(),
			Type:         history.TypeChangeRejected,
			Actor:        formatActor(actor),
			Message:      "change request rejected",
			CreatedAt:    now,
		}); err != nil {
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.CommitmentEventV1{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		CommitmentID: c.ID(),
		RootID:       c.RootID(),
		Version:      c.Version(),
		ChangeType:   "change_request_rejected",
		FromStatus:   string(commitment.StatusChangeRequestCreated),
		ToStatus:     string(c.Status()),
		ActorType:    actor.Type,
		ActorName:    actor.Name,
		OccurredAt:   now,
	})
	return c, nil
}

// ListVersions returns the whole chain ordered by version, oldest first.
func (s *ResolutionService) ListVersions(ctx context.Context, rootID uuid.UUID) ([]*commitment.Commitment, error) {
	versions, err := s.repo.FindByRoot(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, commitment.ErrNotFound
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version() < versions[j].Version() })
	return versions, nil
}

// CurrentVersion returns the single non-frozen member of the chain.
func (s *ResolutionService) CurrentVersion(ctx context.Context, rootID uuid.UUID) (*commitment.Commitment, error) {
	versions, err := s.ListVersions(ctx, rootID)
	if err != nil {
		return nil, err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].Frozen() {
			return versions[i], nil
		}
	}
	return nil, commitment.ErrNotFound
}
