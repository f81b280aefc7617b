package services

import (
	"context"
	"testing"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/pkg/configuration"
	"github.com/pactline/pactline/pkg/serrors"
)

func setupWithOpenChangeRequest(t *testing.T, env *testEnv) (*commitment.Commitment, *changerequest.ChangeRequest) {
	t.Helper()
	ctx := context.Background()
	created, err := env.commitments.Create(ctx, validTerms())
	require.NoError(t, err)
	_, _, err = env.commitments.SendApproval(ctx, created.ID())
	require.NoError(t, err)
	cr, err := env.commitments.RequestChange(ctx, created.ID(), 1, "needs a smaller scope")
	require.NoError(t, err)
	return created, cr
}

func TestResolutionService_AcceptChangeRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("mints the next version and freezes the old one", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		created, cr := setupWithOpenChangeRequest(t, env)

		title := "Brand refresh, phase one"
		next, err := env.resolutions.AcceptChangeRequest(ctx, created.ID(), cr.ID, &commitment.TermsOverrides{
			Title:  &title,
			Amount: money.New(300000, money.USD),
		})
		require.NoError(t, err)
		require.Equal(t, 2, next.Version())
		require.Equal(t, created.RootID(), next.RootID())
		require.Equal(t, commitment.StatusAwaitingClientApproval, next.Status())
		require.NotNil(t, next.ApprovalSentAt())
		require.Equal(t, title, next.Terms().Title)
		require.Equal(t, created.Terms().ClientSnapshot, next.Terms().ClientSnapshot)

		old, err := env.commitments.GetByID(ctx, created.ID())
		require.NoError(t, err)
		require.True(t, old.Frozen())

		resolved, err := env.requests.GetByID(ctx, cr.ID)
		require.NoError(t, err)
		require.Equal(t, changerequest.StatusAccepted, resolved.Status)
		require.NotNil(t, resolved.ResolvedAt)
		require.False(t, resolved.ResolvedAt.Before(resolved.CreatedAt))
	})

	t.Run("draft policy starts the new version unsent", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionDraft)
		created, cr := setupWithOpenChangeRequest(t, env)

		next, err := env.resolutions.AcceptChangeRequest(ctx, created.ID(), cr.ID, nil)
		require.NoError(t, err)
		require.Equal(t, commitment.StatusDraft, next.Status())
		require.Nil(t, next.ApprovalSentAt())
	})

	t.Run("second resolution attempt loses", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		created, cr := setupWithOpenChangeRequest(t, env)

		_, err := env.resolutions.AcceptChangeRequest(ctx, created.ID(), cr.ID, nil)
		require.NoError(t, err)

		_, err = env.resolutions.AcceptChangeRequest(ctx, created.ID(), cr.ID, nil)
		require.Error(t, err)
		require.Equal(t, serrors.CodeChangeRequestAlreadyResolved, serrors.Code(err))

		_, err = env.resolutions.RejectChangeRequest(ctx, created.ID(), cr.ID)
		require.Error(t, err)
		require.Equal(t, serrors.CodeChangeRequestAlreadyResolved, serrors.Code(err))
	})

	t.Run("rejects a change request from another commitment", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		created, _ := setupWithOpenChangeRequest(t, env)
		otherEnvCommitment, otherCR := setupWithOpenChangeRequest(t, env)
		_ = otherEnvCommitment

		_, err := env.resolutions.AcceptChangeRequest(ctx, created.ID(), otherCR.ID, nil)
		require.Error(t, err)
		require.Equal(t, serrors.CodeValidation, serrors.Code(err))
	})

	t.Run("unknown change request", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		created, _ := setupWithOpenChangeRequest(t, env)
		_, err := env.resolutions.AcceptChangeRequest(ctx, created.ID(), uuid.New(), nil)
		require.Error(t, err)
		require.Equal(t, serrors.CodeNotFound, serrors.Code(err))
	})
}

func TestResolutionService_RejectChangeRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
	created, cr := setupWithOpenChangeRequest(t, env)

	back, err := env.resolutions.RejectChangeRequest(ctx, created.ID(), cr.ID)
	require.NoError(t, err)
	require.Equal(t, commitment.StatusAwaitingClientApproval, back.Status())
	require.Equal(t, 1, back.Version())
	require.Nil(t, back.ChangeRequestID())
	require.False(t, back.Frozen())

	resolved, err := env.requests.GetByID(ctx, cr.ID)
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusRejected, resolved.Status)

	// The client can object again after a rejection.
	again, err := env.commitments.RequestChange(ctx, created.ID(), 1, "still too broad")
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusOpen, again.Status)
}

func TestResolutionService_Versions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
	created, cr := setupWithOpenChangeRequest(t, env)

	next, err := env.resolutions.AcceptChangeRequest(ctx, created.ID(), cr.ID, nil)
	require.NoError(t, err)

	t.Run("lists the chain oldest first", func(t *testing.T) {
		versions, err := env.resolutions.ListVersions(ctx, created.RootID())
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 1, versions[0].Version())
		assert.Equal(t, 2, versions[1].Version())
		assert.True(t, versions[0].Frozen())
		assert.False(t, versions[1].Frozen())
		require.NotNil(t, versions[1].PreviousID())
		assert.Equal(t, versions[0].ID(), *versions[1].PreviousID())
	})

	t.Run("current version is the non-frozen member", func(t *testing.T) {
		current, err := env.resolutions.CurrentVersion(ctx, created.RootID())
		require.NoError(t, err)
		require.Equal(t, next.ID(), current.ID())
	})

	t.Run("unknown root", func(t *testing.T) {
		_, err := env.resolutions.ListVersions(ctx, uuid.New())
		require.Error(t, err)
		require.Equal(t, serrors.CodeNotFound, serrors.Code(err))
	})

	t.Run("frozen version refuses further transitions", func(t *testing.T) {
		_, err := env.commitments.Approve(ctx, created.ID(), 1)
		require.Error(t, err)
	})
}
