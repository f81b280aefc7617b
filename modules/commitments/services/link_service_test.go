package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/pkg/composables"
	"github.com/pactline/pactline/pkg/configuration"
	"github.com/pactline/pactline/pkg/serrors"
)

func TestLinkService_GetApprovalInfo(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, configuration.ResolutionAwaitingApproval)

	created, err := env.commitments.Create(ctx, validTerms())
	require.NoError(t, err)
	_, token, err := env.commitments.SendApproval(ctx, created.ID())
	require.NoError(t, err)

	t.Run("valid token renders the public snapshot", func(t *testing.T) {
		info, err := env.links.GetApprovalInfo(ctx, token)
		require.NoError(t, err)
		require.True(t, info.OK)
		require.True(t, info.VersionOK)
		require.Equal(t, PurposeApproval, info.Purpose)
		assert.Equal(t, created.ID(), info.Commitment.ID)
		assert.Equal(t, "Brand refresh", info.Commitment.Title)
		assert.Equal(t, "Globex", info.Client.Name)
	})

	t.Run("garbage token is invalid", func(t *testing.T) {
		_, err := env.links.GetApprovalInfo(ctx, "not-a-token")
		require.Error(t, err)
		require.Equal(t, serrors.CodeTokenInvalid, serrors.Code(err))
	})

	t.Run("acceptance endpoint refuses an approval token", func(t *testing.T) {
		_, err := env.links.GetAcceptanceInfo(ctx, token)
		require.Error(t, err)
		require.Equal(t, serrors.CodeTokenInvalid, serrors.Code(err))
	})

	t.Run("superseded version reports a version mismatch, not an error", func(t *testing.T) {
		cr, err := env.commitments.RequestChange(ctx, created.ID(), 1, "rework the scope")
		require.NoError(t, err)
		_, err = env.resolutions.AcceptChangeRequest(ctx, created.ID(), cr.ID, nil)
		require.NoError(t, err)

		info, err := env.links.GetApprovalInfo(ctx, token)
		require.NoError(t, err)
		require.False(t, info.VersionOK)
	})
}

func TestLinkService_PostApproval(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, env *testEnv) (*commitment.Commitment, string) {
		t.Helper()
		created, err := env.commitments.Create(ctx, validTerms())
		require.NoError(t, err)
		_, token, err := env.commitments.SendApproval(ctx, created.ID())
		require.NoError(t, err)
		return created, token
	}

	t.Run("approve action moves the commitment to in progress", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		created, token := issue(t, env)

		updated, cr, err := env.links.PostApproval(ctx, token, ActionApprove, "")
		require.NoError(t, err)
		require.Nil(t, cr)
		require.Equal(t, commitment.StatusInProgress, updated.Status())

		// The history entry is attributed to the client, not the system.
		events, err := env.history.ListByCommitment(ctx, created.ID())
		require.NoError(t, err)
		last := events[len(events)-1]
		assert.Contains(t, last.Actor, "client:")
		assert.Contains(t, last.Actor, "Globex")
	})

	t.Run("request_change action opens a change request", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		created, token := issue(t, env)

		updated, cr, err := env.links.PostApproval(ctx, token, ActionRequestChange, "too expensive")
		require.NoError(t, err)
		require.Nil(t, updated)
		require.NotNil(t, cr)
		require.Equal(t, changerequest.StatusOpen, cr.Status)
		require.Equal(t, "too expensive", cr.Reason)
		require.Equal(t, composables.ActorTypeClient, cr.RequestedBy.Type)

		reloaded, err := env.commitments.GetByID(ctx, created.ID())
		require.NoError(t, err)
		require.Equal(t, commitment.StatusChangeRequestCreated, reloaded.Status())
	})

	t.Run("expired token is distinguishable", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		_, token := issue(t, env)
		env.tokens.expire(token)

		_, _, err := env.links.PostApproval(ctx, token, ActionApprove, "")
		require.Error(t, err)
		require.Equal(t, serrors.CodeTokenExpired, serrors.Code(err))
	})

	t.Run("unknown action", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		_, token := issue(t, env)
		_, _, err := env.links.PostApproval(ctx, token, "escalate", "")
		require.Error(t, err)
		require.Equal(t, serrors.CodeValidation, serrors.Code(err))
	})

	t.Run("token bound to a superseded version cannot act", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		created, token := issue(t, env)

		cr, err := env.commitments.RequestChange(ctx, created.ID(), 1, "needs rework")
		require.NoError(t, err)
		_, err = env.resolutions.AcceptChangeRequest(ctx, created.ID(), cr.ID, nil)
		require.NoError(t, err)

		_, _, err = env.links.PostApproval(ctx, token, ActionApprove, "")
		require.Error(t, err)
	})
}

func TestLinkService_PostAcceptance(t *testing.T) {
	ctx := context.Background()

	deliver := func(t *testing.T, env *testEnv) (*commitment.Commitment, string) {
		t.Helper()
		created, err := env.commitments.Create(ctx, validTerms())
		require.NoError(t, err)
		_, approvalToken, err := env.commitments.SendApproval(ctx, created.ID())
		require.NoError(t, err)
		_, _, err = env.links.PostApproval(ctx, approvalToken, ActionApprove, "")
		require.NoError(t, err)
		_, err = env.commitments.MarkDelivered(ctx, created.ID())
		require.NoError(t, err)
		_, token, err := env.commitments.SendAcceptance(ctx, created.ID(), false)
		require.NoError(t, err)
		return created, token
	}

	t.Run("accept action closes the delivery loop", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		_, token := deliver(t, env)

		updated, err := env.links.PostAcceptance(ctx, token, ActionAccept, "ship it")
		require.NoError(t, err)
		require.Equal(t, commitment.StatusAccepted, updated.Status())
	})

	t.Run("request_fix reverts to in progress", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		_, token := deliver(t, env)

		updated, err := env.links.PostAcceptance(ctx, token, ActionRequestFix, "missing the mobile variant")
		require.NoError(t, err)
		require.Equal(t, commitment.StatusInProgress, updated.Status())
		require.Nil(t, updated.DeliveredAt())
	})

	t.Run("request_fix without a comment fails", func(t *testing.T) {
		env := newTestEnv(t, configuration.ResolutionAwaitingApproval)
		_, token := deliver(t, env)

		_, err := env.links.PostAcceptance(ctx, token, ActionRequestFix, "")
		require.Error(t, err)
		require.Equal(t, serrors.CodeValidation, serrors.Code(err))
	})
}
