package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/modules/commitments/domain/entities/history"
)

// memCommitmentRepo mimics the optimistic-concurrency contract of the real
// repository: it stores detached copies and Update succeeds only when the
// stored row still carries the expected status and is not frozen.
type memCommitmentRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*commitment.Commitment
}

func newMemCommitmentRepo() *memCommitmentRepo {
	return &memCommitmentRepo{rows: map[uuid.UUID]*commitment.Commitment{}}
}

func cloneCommitment(c *commitment.Commitment) *commitment.Commitment {
	return commitment.Hydrate(
		c.ID(), c.RootID(), c.PreviousID(), c.Version(), c.Status(), c.Frozen(),
		c.Terms(), c.ChangeRequestID(), c.CreatedAt(),
		c.ApprovalSentAt(), c.ApprovedAt(), c.DeliveredAt(), c.AcceptedAt(),
		c.UpdatedAt(),
	)
}

func (r *memCommitmentRepo) GetByID(_ context.Context, id uuid.UUID) (*commitment.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, commitment.ErrNotFound
	}
	return cloneCommitment(c), nil
}

func (r *memCommitmentRepo) FindByRoot(_ context.Context, rootID uuid.UUID) ([]*commitment.Commitment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*commitment.Commitment
	for _, c := range r.rows {
		if c.RootID() == rootID {
			out = append(out, cloneCommitment(c))
		}
	}
	return out, nil
}

func (r *memCommitmentRepo) Create(_ context.Context, c *commitment.Commitment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID()]; ok {
		return fmt.Errorf("duplicate commitment id %s", c.ID())
	}
	r.rows[c.ID()] = cloneCommitment(c)
	return nil
}

func (r *memCommitmentRepo) Update(_ context.Context, c *commitment.Commitment, expectedStatus commitment.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[c.ID()]
	if !ok {
		return commitment.ErrNotFound
	}
	if stored.Status() != expectedStatus || stored.Frozen() {
		return commitment.ErrStale
	}
	r.rows[c.ID()] = cloneCommitment(c)
	return nil
}

func (r *memCommitmentRepo) Freeze(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[id]
	if !ok {
		return commitment.ErrNotFound
	}
	if stored.Frozen() {
		return commitment.ErrStale
	}
	frozen := cloneCommitment(stored)
	frozen.MarkFrozen(stored.UpdatedAt())
	r.rows[id] = frozen
	return nil
}

type memChangeRequestRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*changerequest.ChangeRequest
}

func newMemChangeRequestRepo() *memChangeRequestRepo {
	return &memChangeRequestRepo{rows: map[uuid.UUID]*changerequest.ChangeRequest{}}
}

func (r *memChangeRequestRepo) Create(_ context.Context, cr *changerequest.ChangeRequest) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *cr
	r.rows[cr.ID] = &copied
	return cr, nil
}

func (r *memChangeRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cr, ok := r.rows[id]
	if !ok {
		return nil, changerequest.ErrNotFound
	}
	copied := *cr
	return &copied, nil
}

func (r *memChangeRequestRepo) FindOpenByCommitment(_ context.Context, commitmentID uuid.UUID) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cr := range r.rows {
		if cr.CommitmentID == commitmentID && cr.Status == changerequest.StatusOpen {
			copied := *cr
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memChangeRequestRepo) ListByCommitment(_ context.Context, commitmentID uuid.UUID) ([]*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*changerequest.ChangeRequest
	for _, cr := range r.rows {
		if cr.CommitmentID == commitmentID {
			copied := *cr
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memChangeRequestRepo) Resolve(_ context.Context, id uuid.UUID, status string) (*changerequest.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cr, ok := r.rows[id]
	if !ok {
		return nil, changerequest.ErrNotFound
	}
	if cr.Status != changerequest.StatusOpen {
		return nil, changerequest.ErrAlreadyResolved
	}
	cr.Status = status
	resolved := time.Now().UTC()
	cr.ResolvedAt = &resolved
	copied := *cr
	return &copied, nil
}

type memHistoryRepo struct {
	mu     sync.Mutex
	nextID int64
	events []history.Event
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{}
}

func (r *memHistoryRepo) Append(_ context.Context, event history.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.Seq = r.nextID
	r.events = append(r.events, event)
	return nil
}

func (r *memHistoryRepo) ListByCommitment(_ context.Context, commitmentID uuid.UUID) ([]history.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []history.Event
	for _, e := range r.events {
		if e.CommitmentID == commitmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memHistoryRepo) kinds(commitmentID uuid.UUID) []string {
	events, _ := r.ListByCommitment(context.Background(), commitmentID)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

// fakeTokenService hands out deterministic tokens and remembers the claims
// each one was bound to.
type fakeTokenService struct {
	mu     sync.Mutex
	nextID int
	issued map[string]TokenClaims
}

func newFakeTokenService() *fakeTokenService {
	return &fakeTokenService{issued: map[string]TokenClaims{}}
}

func (s *fakeTokenService) Issue(commitmentID uuid.UUID, version int, purpose string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	token := fmt.Sprintf("tok-%d", s.nextID)
	s.issued[token] = TokenClaims{CommitmentID: commitmentID, Version: version, Purpose: purpose}
	return token, nil
}

func (s *fakeTokenService) Verify(token string) (TokenClaims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims, ok := s.issued[token]
	if !ok {
		return TokenClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *fakeTokenService) expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := s.issued[token]
	claims.Expired = true
	s.issued[token] = claims
}
