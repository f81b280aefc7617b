package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/modules/commitments/domain/entities/history"
	"github.com/pactline/pactline/pkg/configuration"
)

func entryKinds(entries []TimelineEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Kind)
	}
	return out
}

func TestReconstructTimeline(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	terms := validTerms()

	t.Run("log entries are the backbone", func(t *testing.T) {
		c := commitment.New(terms, base)
		logs := []history.Event{
			{Seq: 1, CommitmentID: c.ID(), Type: history.TypeCreated, CreatedAt: base},
			{Seq: 2, CommitmentID: c.ID(), Type: history.TypeSent, CreatedAt: base.Add(time.Hour)},
			{Seq: 3, CommitmentID: c.ID(), Type: history.TypeApproved, CreatedAt: base.Add(2 * time.Hour)},
		}
		entries := ReconstructTimeline(c, logs, nil, OldestFirst)
		assert.Equal(t,
			[]string{history.TypeCreated, history.TypeSent, history.TypeApproved},
			entryKinds(entries))
	})

	t.Run("backfills from timestamps when the log is empty", func(t *testing.T) {
		c := commitment.New(terms, base)
		require.NoError(t, c.SendApproval(base.Add(time.Hour)))
		require.NoError(t, c.Approve(base.Add(2*time.Hour)))
		require.NoError(t, c.MarkDelivered(base.Add(3*time.Hour)))

		entries := ReconstructTimeline(c, nil, nil, OldestFirst)
		assert.Equal(t,
			[]string{history.TypeCreated, history.TypeSent, history.TypeApproved, history.TypeDelivered},
			entryKinds(entries))
	})

	t.Run("log entry suppresses the backfill of the same kind", func(t *testing.T) {
		c := commitment.New(terms, base)
		require.NoError(t, c.SendApproval(base.Add(time.Hour)))

		logs := []history.Event{
			{Seq: 1, CommitmentID: c.ID(), Type: history.TypeSent, Actor: "internal:sam", CreatedAt: base.Add(time.Hour)},
		}
		entries := ReconstructTimeline(c, logs, nil, OldestFirst)
		sent := 0
		for _, e := range entries {
			if e.Kind == history.TypeSent {
				sent++
			}
		}
		assert.Equal(t, 1, sent)
	})

	t.Run("change requests contribute reason lines", func(t *testing.T) {
		c := commitment.New(terms, base)
		requests := []*changerequest.ChangeRequest{
			{CommitmentID: c.ID(), Reason: "shrink the scope", CreatedAt: base.Add(time.Hour)},
		}
		entries := ReconstructTimeline(c, nil, requests, OldestFirst)
		require.Len(t, entries, 2)
		assert.Equal(t, history.TypeChangeRequested, entries[1].Kind)
		assert.Equal(t, "shrink the scope", entries[1].Subtitle)
	})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		c := commitment.New(terms, base)
		logs := []history.Event{
			{Seq: 1, CommitmentID: c.ID(), Type: history.TypeCreated, CreatedAt: base},
			{Seq: 2, CommitmentID: c.ID(), Type: history.TypeSent, CreatedAt: base},
			{Seq: 3, CommitmentID: c.ID(), Type: history.TypeReminder, CreatedAt: base},
		}
		first := ReconstructTimeline(c, logs, nil, OldestFirst)
		second := ReconstructTimeline(c, logs, nil, OldestFirst)
		assert.Equal(t, first, second)
	})

	t.Run("equal timestamps keep insertion order", func(t *testing.T) {
		c := commitment.New(terms, base)
		logs := []history.Event{
			{Seq: 1, CommitmentID: c.ID(), Type: history.TypeCreated, CreatedAt: base},
			{Seq: 2, CommitmentID: c.ID(), Type: history.TypeSent, CreatedAt: base},
		}
		oldest := ReconstructTimeline(c, logs, nil, OldestFirst)
		assert.Equal(t, []string{history.TypeCreated, history.TypeSent}, entryKinds(oldest))

		newest := ReconstructTimeline(c, logs, nil, NewestFirst)
		assert.Equal(t, []string{history.TypeSent, history.TypeCreated}, entryKinds(newest))
	})

	t.Run("newest first reverses oldest first", func(t *testing.T) {
		c := commitment.New(terms, base)
		logs := []history.Event{
			{Seq: 1, CommitmentID: c.ID(), Type: history.TypeCreated, CreatedAt: base},
			{Seq: 2, CommitmentID: c.ID(), Type: history.TypeSent, CreatedAt: base.Add(time.Hour)},
			{Seq: 3, CommitmentID: c.ID(), Type: history.TypeApproved, CreatedAt: base.Add(2 * time.Hour)},
		}
		oldest := ReconstructTimeline(c, logs, nil, OldestFirst)
		newest := ReconstructTimeline(c, logs, nil, NewestFirst)
		require.Equal(t, len(oldest), len(newest))
		for i := range oldest {
			assert.Equal(t, oldest[i].Kind, newest[len(newest)-1-i].Kind)
		}
	})
}

func TestTimelineService_GetTimeline(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, configuration.ResolutionAwaitingApproval)

	created, err := env.commitments.Create(ctx, validTerms())
	require.NoError(t, err)
	_, _, err = env.commitments.SendApproval(ctx, created.ID())
	require.NoError(t, err)
	_, err = env.commitments.Approve(ctx, created.ID(), 1)
	require.NoError(t, err)
	_, err = env.commitments.MarkDelivered(ctx, created.ID())
	require.NoError(t, err)

	entries, err := env.timelines.GetTimeline(ctx, created.ID(), OldestFirst)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{history.TypeCreated, history.TypeSent, history.TypeApproved, history.TypeDelivered},
		entryKinds(entries))

	for _, e := range entries {
		assert.NotEmpty(t, e.Title)
		assert.False(t, e.At.IsZero())
	}

	t.Run("unknown commitment", func(t *testing.T) {
		_, err := env.timelines.GetTimeline(ctx, uuid.New(), OldestFirst)
		require.Error(t, err)
	})
}
