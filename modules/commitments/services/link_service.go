package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/pkg/composables"
	"github.com/pactline/pactline/pkg/serrors"
)

// Public link actions. The action vocabulary is part of the wire contract.
const (
	ActionApprove       = "approve"
	ActionRequestChange = "request_change"
	ActionAccept        = "accept"
	ActionRequestFix    = "request_fix"
)

// LinkService is the token-gated facade public (unauthenticated) callers go
// through. Tokens are verified both when the page is loaded and again at the
// moment an action is submitted, closing the window between read and write.
type LinkService struct {
	tokens      TokenService
	repo        commitment.Repository
	commitments *CommitmentService
}

func NewLinkService(tokens TokenService, repo commitment.Repository, commitments *CommitmentService) *LinkService {
	return &LinkService{tokens: tokens, repo: repo, commitments: commitments}
}

// Snapshot is the commitment view trimmed for client display. Internal
// assignment data never crosses the public boundary.
type Snapshot struct {
	ID               uuid.UUID                `json:"id"`
	Version          int                      `json:"version"`
	Status           string                   `json:"status"`
	Title            string                   `json:"title"`
	ScopeTitle       string                   `json:"scope_title,omitempty"`
	ScopeDescription string                   `json:"scope_description,omitempty"`
	Amount           string                   `json:"amount"`
	Currency         string                   `json:"currency"`
	Attachments      []commitment.Attachment  `json:"attachments,omitempty"`
	PaymentTerms     []commitment.PaymentTerm `json:"payment_terms,omitempty"`
	Milestones       []commitment.Milestone   `json:"milestones,omitempty"`
	Deliverables     []commitment.Deliverable `json:"deliverables,omitempty"`
	ApprovalSentAt   *time.Time               `json:"approval_sent_at,omitempty"`
	DeliveredAt      *time.Time               `json:"delivered_at,omitempty"`
}

// LinkInfo is what the public page renders. VersionOK=false means the link
// points at a superseded version: the page shows "this link is outdated"
// rather than a hard error.
type LinkInfo struct {
	OK         bool                      `json:"ok"`
	Purpose    string                    `json:"purpose"`
	VersionOK  bool                      `json:"version_ok"`
	Commitment Snapshot                  `json:"commitment"`
	Client     commitment.ClientSnapshot `json:"client"`
}

func (s *LinkService) GetApprovalInfo(ctx context.Context, token string) (*LinkInfo, error) {
	return s.linkInfo(ctx, token, PurposeApproval)
}

func (s *LinkService) GetAcceptanceInfo(ctx context.Context, token string) (*LinkInfo, error) {
	return s.linkInfo(ctx, token, PurposeAcceptance)
}

func (s *LinkService) linkInfo(ctx context.Context, token, wantPurpose string) (*LinkInfo, error) {
	claims, err := s.verify(token, wantPurpose)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, claims.CommitmentID)
	if err != nil {
		return nil, err
	}
	return &LinkInfo{
		OK:         true,
		Purpose:    claims.Purpose,
		VersionOK:  claims.Version == c.Version(),
		Commitment: snapshotOf(c),
		Client:     c.Terms().ClientSnapshot,
	}, nil
}

// PostApproval applies the client's answer to an approval link. The token is
// re-verified here, at write time.
func (s *LinkService) PostApproval(ctx context.Context, token, action, comment string) (*commitment.Commitment, *changerequest.ChangeRequest, error) {
	claims, err := s.verify(token, PurposeApproval)
	if err != nil {
		return nil, nil, err
	}
	ctx, err = s.asClient(ctx, claims.CommitmentID)
	if err != nil {
		return nil, nil, err
	}

	switch action {
	case ActionApprove:
		c, err := s.commitments.Approve(ctx, claims.CommitmentID, claims.Version)
		return c, nil, err
	case ActionRequestChange:
		cr, err := s.commitments.RequestChange(ctx, claims.CommitmentID, claims.Version, comment)
		return nil, cr, err
	default:
		return nil, nil, errUnknownAction(action)
	}
}

// PostAcceptance applies the client's answer to an acceptance link.
func (s *LinkService) PostAcceptance(ctx context.Context, token, action, comment string) (*commitment.Commitment, error) {
	claims, err := s.verify(token, PurposeAcceptance)
	if err != nil {
		return nil, err
	}
	ctx, err = s.asClient(ctx, claims.CommitmentID)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionAccept:
		return s.commitments.Accept(ctx, claims.CommitmentID, claims.Version, comment)
	case ActionRequestFix:
		return s.commitments.RequestFix(ctx, claims.CommitmentID, claims.Version, comment)
	default:
		return nil, errUnknownAction(action)
	}
}

func (s *LinkService) verify(token, wantPurpose string) (TokenClaims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return TokenClaims{}, err
	}
	if claims.Expired {
		return TokenClaims{}, ErrTokenExpired
	}
	if claims.Purpose != wantPurpose {
		return TokenClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// asClient attributes the action to the client recorded on the commitment.
func (s *LinkService) asClient(ctx context.Context, commitmentID uuid.UUID) (context.Context, error) {
	c, err := s.repo.GetByID(ctx, commitmentID)
	if err != nil {
		return ctx, err
	}
	snap := c.Terms().ClientSnapshot
	return composables.WithActor(ctx, composables.Actor{
		Type:  composables.ActorTypeClient,
		Name:  snap.Name,
		Email: snap.Email,
	}), nil
}

func snapshotOf(c *commitment.Commitment) Snapshot {
	terms := c.Terms()
	amount := ""
	currencyCode := ""
	if terms.Amount != nil {
		amount = terms.Amount.Display()
		currencyCode = terms.Amount.Currency().Code
	} else {
		currencyCode = money.EUR
	}
	return Snapshot{
		ID:               c.ID(),
		Version:          c.Version(),
		Status:           string(c.Status()),
		Title:            terms.Title,
		ScopeTitle:       terms.ScopeTitle,
		ScopeDescription: terms.ScopeDescription,
		Amount:           amount,
		Currency:         currencyCode,
		Attachments:      terms.Attachments,
		PaymentTerms:     terms.PaymentTerms,
		Milestones:       terms.Milestones,
		Deliverables:     terms.Deliverables,
		ApprovalSentAt:   c.ApprovalSentAt(),
		DeliveredAt:      c.DeliveredAt(),
	}
}

func errUnknownAction(action string) error {
	return serrors.NewError(
		serrors.CodeValidation,
		fmt.Sprintf("unknown action: %q", action),
		"Commitments.Errors.UnknownAction",
	).WithTemplateData(map[string]string{"action": action})
}
