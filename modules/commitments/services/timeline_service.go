package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/modules/commitments/domain/entities/history"
)

type TimelineOrder string

const (
	OldestFirst TimelineOrder = "oldest_first"
	NewestFirst TimelineOrder = "newest_first"
)

// TimelineEntry is one row of the derived audit narrative.
type TimelineEntry struct {
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	At       time.Time `json:"at"`

	seq int64
}

// TimelineService derives the audit timeline from commitment timestamps, the
// append-only history log and change-request records. It is read-only and
// recomputes fresh on every call; nothing is cached.
type TimelineService struct {
	repo           commitment.Repository
	history        history.Repository
	changeRequests changerequest.Repository
}

func NewTimelineService(repo commitment.Repository, historyRepo history.Repository, changeRequests changerequest.Repository) *TimelineService {
	return &TimelineService{repo: repo, history: historyRepo, changeRequests: changeRequests}
}

func (s *TimelineService) GetTimeline(ctx context.Context, commitmentID uuid.UUID, order TimelineOrder) ([]TimelineEntry, error) {
	c, err := s.repo.GetByID(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	logs, err := s.history.ListByCommitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	requests, err := s.changeRequests.ListByCommitment(ctx, commitmentID)
	if err != nil {
		return nil, err
	}
	return ReconstructTimeline(c, logs, requests, order), nil
}

// ReconstructTimeline is pure and deterministic: the same inputs always
// produce the same ordered output. History log entries are the backbone;
// commitment timestamps fill gaps for transitions that predate the log, and
// change requests contribute their reason lines.
func ReconstructTimeline(
	c *commitment.Commitment,
	logs []history.Event,
	requests []*changerequest.ChangeRequest,
	order TimelineOrder,
) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(logs)+len(requests)+5)
	seq := int64(0)
	nextSeq := func() int64 { seq++; return seq }

	logged := make(map[string]bool, len(logs))
	for _, e := range logs {
		logged[e.Type] = true
		entries = append(entries, TimelineEntry{
			Kind:     e.Type,
			Title:    timelineTitle(e.Type),
			Subtitle: subtitleFor(e),
			At:       e.CreatedAt,
			seq:      nextSeq(),
		})
	}

	// Backfill from aggregate timestamps whenever the log has no entry of
	// the matching kind (older rows written before history logging).
	backfill := func(kind string, at *time.Time) {
		if at == nil || logged[kind] {
			return
		}
		entries = append(entries, TimelineEntry{
			Kind:  kind,
			Title: timelineTitle(kind),
			At:    *at,
			seq:   nextSeq(),
		})
	}
	created := c.CreatedAt()
	backfill(history.TypeCreated, &created)
	backfill(history.TypeSent, c.ApprovalSentAt())
	backfill(history.TypeApproved, c.ApprovedAt())
	backfill(history.TypeDelivered, c.DeliveredAt())
	backfill(history.TypeAccepted, c.AcceptedAt())

	if !logged[history.TypeChangeRequested] {
		for _, cr := range requests {
			entries = append(entries, TimelineEntry{
				Kind:     history.TypeChangeRequested,
				Title:    timelineTitle(history.TypeChangeRequested),
				Subtitle: cr.Reason,
				At:       cr.CreatedAt,
				seq:      nextSeq(),
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if order == NewestFirst {
			if !a.At.Equal(b.At) {
				return a.At.After(b.At)
			}
			return a.seq > b.seq
		}
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		return a.seq < b.seq
	})
	return entries
}

func timelineTitle(kind string) string {
	switch kind {
	case history.TypeCreated:
		return "Commitment created"
	case history.TypeSent:
		return "Sent for approval"
	case history.TypeReminder:
		return "Reminder sent"
	case history.TypeApproved:
		return "Approved by client"
	case history.TypeChangeRequested:
		return "Change requested"
	case history.TypeChangeAccepted:
		return "Change request accepted"
	case history.TypeChangeRejected:
		return "Change request rejected"
	case history.TypeDelivered:
		return "Work delivered"
	case history.TypeAcceptanceSent:
		return "Sent for acceptance"
	case history.TypeAccepted:
		return "Accepted by client"
	case history.TypeFixRequested:
		return "Fix requested"
	case history.TypeClosed:
		return "Commitment closed"
	case history.TypeCancelled:
		return "Commitment cancelled"
	default:
		return kind
	}
}

func subtitleFor(e history.Event) string {
	if e.Message != "" {
		return e.Message
	}
	return e.Actor
}
