package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pactline/pactline/modules/commitments/domain/entities/history"
	"github.com/pactline/pactline/pkg/composables"
)

const (
	historyInsertQuery = `
        INSERT INTO commitment_history (
            commitment_id, event_type, actor, message, created_at
        ) VALUES ($1, $2, $3, $4, $5)`

	historySelectQuery = `
        SELECT h.seq, h.commitment_id, h.event_type, h.actor, h.message, h.created_at
        FROM commitment_history h
        WHERE h.commitment_id = $1
        ORDER BY h.seq`
)

type HistoryRepository struct{}

func NewHistoryRepository() history.Repository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Append(ctx context.Context, event history.Event) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, historyInsertQuery,
		pgUUID(event.CommitmentID),
		event.Type,
		event.Actor,
		event.Message,
		pgTime(event.CreatedAt),
	)
	return errors.Wrap(err, "appending history event")
}

func (r *HistoryRepository) ListByCommitment(ctx context.Context, commitmentID uuid.UUID) ([]history.Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, historySelectQuery, pgUUID(commitmentID))
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	defer rows.Close()

	var out []history.Event
	for rows.Next() {
		var (
			e         history.Event
			cid       pgtype.UUID
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&e.Seq, &cid, &e.Type, &e.Actor, &e.Message, &createdAt); err != nil {
			return nil, err
		}
		e.CommitmentID = asUUID(cid)
		e.CreatedAt = asTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
