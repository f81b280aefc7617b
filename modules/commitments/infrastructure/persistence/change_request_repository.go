package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pactline/pactline/modules/commitments/domain/entities/changerequest"
	"github.com/pactline/pactline/pkg/composables"
)

const (
	changeRequestFindQuery = `
        SELECT
            cr.id,
            cr.commitment_id,
            cr.commitment_version,
            cr.status,
            cr.reason,
            cr.requested_by,
            cr.created_at,
            cr.resolved_at
        FROM change_requests cr`

	changeRequestInsertQuery = `
        INSERT INTO change_requests (
            id, commitment_id, commitment_version, status, reason, requested_by, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	// The status predicate makes resolution first-wins under concurrency: the
	// row flips out of OPEN exactly once.
	changeRequestResolveQuery = `
        UPDATE change_requests SET status = $2, resolved_at = $3
        WHERE id = $1 AND status = 'OPEN'
        RETURNING id, commitment_id, commitment_version, status, reason, requested_by, created_at, resolved_at`

	changeRequestExistsQuery = `SELECT 1 FROM change_requests WHERE id = $1`
)

type ChangeRequestRepository struct{}

func NewChangeRequestRepository() changerequest.Repository {
	return &ChangeRequestRepository{}
}

func (r *ChangeRequestRepository) Create(ctx context.Context, cr *changerequest.ChangeRequest) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	requestedBy, err := json.Marshal(cr.RequestedBy)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, changeRequestInsertQuery,
		pgUUID(cr.ID),
		pgUUID(cr.CommitmentID),
		int32(cr.CommitmentVersion),
		cr.Status,
		cr.Reason,
		requestedBy,
		pgTime(cr.CreatedAt),
	)
	if err != nil {
		return nil, errors.Wrap(err, "inserting change request")
	}
	return cr, nil
}

func (r *ChangeRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	cr, err := scanChangeRequest(tx.QueryRow(ctx, changeRequestFindQuery+` WHERE cr.id = $1`, pgUUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, changerequest.ErrNotFound
	}
	return cr, err
}

func (r *ChangeRequestRepository) FindOpenByCommitment(ctx context.Context, commitmentID uuid.UUID) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	cr, err := scanChangeRequest(tx.QueryRow(ctx,
		changeRequestFindQuery+` WHERE cr.commitment_id = $1 AND cr.status = 'OPEN'`,
		pgUUID(commitmentID),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cr, err
}

func (r *ChangeRequestRepository) ListByCommitment(ctx context.Context, commitmentID uuid.UUID) ([]*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx,
		changeRequestFindQuery+` WHERE cr.commitment_id = $1 ORDER BY cr.created_at, cr.id`,
		pgUUID(commitmentID),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying change requests")
	}
	defer rows.Close()

	var out []*changerequest.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *ChangeRequestRepository) Resolve(ctx context.Context, id uuid.UUID, status string) (*changerequest.ChangeRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	cr, err := scanChangeRequest(tx.QueryRow(ctx, changeRequestResolveQuery,
		pgUUID(id), status, pgTime(time.Now().UTC())))
	if errors.Is(err, pgx.ErrNoRows) {
		var one int
		if err := tx.QueryRow(ctx, changeRequestExistsQuery, pgUUID(id)).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, changerequest.ErrNotFound
			}
			return nil, err
		}
		return nil, changerequest.ErrAlreadyResolved
	}
	return cr, err
}

func scanChangeRequest(row rowScanner) (*changerequest.ChangeRequest, error) {
	var (
		id, commitmentID      pgtype.UUID
		version               int32
		status, reason        string
		requestedByRaw        []byte
		createdAt, resolvedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &commitmentID, &version, &status, &reason, &requestedByRaw, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}
	cr := &changerequest.ChangeRequest{
		ID:                asUUID(id),
		CommitmentID:      asUUID(commitmentID),
		CommitmentVersion: int(version),
		Status:            status,
		Reason:            reason,
		CreatedAt:         asTime(createdAt),
		ResolvedAt:        asTimePtr(resolvedAt),
	}
	if err := json.Unmarshal(requestedByRaw, &cr.RequestedBy); err != nil {
		return nil, errors.Wrap(err, "decoding requested_by")
	}
	return cr, nil
}
