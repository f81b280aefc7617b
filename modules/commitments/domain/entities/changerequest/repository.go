package changerequest

import (
	"context"

	"github.com/google/uuid"

	"github.com/pactline/pactline/pkg/serrors"
)

var (
	ErrNotFound        = serrors.NewError(serrors.CodeNotFound, "change request not found", "ChangeRequests.Errors.NotFound")
	ErrAlreadyResolved = serrors.NewError(serrors.CodeChangeRequestAlreadyResolved, "change request is already resolved", "ChangeRequests.Errors.AlreadyResolved")
)

type Repository interface {
	Create(ctx context.Context, cr *ChangeRequest) (*ChangeRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ChangeRequest, error)
	// FindOpenByCommitment returns the OPEN change request for a commitment,
	// or nil when none exists.
	FindOpenByCommitment(ctx context.Context, commitmentID uuid.UUID) (*ChangeRequest, error)
	ListByCommitment(ctx context.Context, commitmentID uuid.UUID) ([]*ChangeRequest, error)
	// Resolve flips OPEN to the given terminal status. When two resolutions
	// race, exactly one succeeds; the loser gets ErrAlreadyResolved.
	Resolve(ctx context.Context, id uuid.UUID, status string) (*ChangeRequest, error)
}
