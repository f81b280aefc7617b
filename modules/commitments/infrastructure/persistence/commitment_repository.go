package persistence

import (
	"context"
	"encoding/json"

	"github.com/Rhymond/go-money"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pactline/pactline/modules/commitments/domain/aggregates/commitment"
	"github.com/pactline/pactline/pkg/composables"
)

const (
	commitmentFindQuery = `
        SELECT
            c.id,
            c.root_id,
            c.previous_id,
            c.version,
            c.status,
            c.frozen,
            c.title,
            c.scope_title,
            c.scope_description,
            c.amount,
            c.currency,
            c.attachments,
            c.payment_terms,
            c.milestones,
            c.deliverables,
            c.approval_rules,
            c.assigned_to_user_id,
            c.client_id,
            c.client_snapshot,
            c.change_request_id,
            c.created_at,
            c.approval_sent_at,
            c.approved_at,
            c.delivered_at,
            c.accepted_at,
            c.updated_at
        FROM commitments c`

	commitmentInsertQuery = `
        INSERT INTO commitments (
            id, root_id, previous_id, version, status, frozen,
            title, scope_title, scope_description, amount, currency,
            attachments, payment_terms, milestones, deliverables, approval_rules,
            assigned_to_user_id, client_id, client_snapshot, change_request_id,
            created_at, approval_sent_at, approved_at, delivered_at, accepted_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8, $9, $10, $11,
            $12, $13, $14, $15, $16,
            $17, $18, $19, $20,
            $21, $22, $23, $24, $25, $26
        )`

	// The status predicate is the optimistic-concurrency check: a transition
	// persists only when the row still carries the status the caller read.
	commitmentUpdateQuery = `
        UPDATE commitments SET
            status = $2,
            attachments = $3,
            payment_terms = $4,
            milestones = $5,
            deliverables = $6,
            change_request_id = $7,
            approval_sent_at = $8,
            approved_at = $9,
            delivered_at = $10,
            accepted_at = $11,
            updated_at = $12
        WHERE id = $1 AND status = $13 AND NOT frozen`

	commitmentFreezeQuery = `
        UPDATE commitments SET frozen = TRUE, updated_at = NOW()
        WHERE id = $1 AND NOT frozen`

	commitmentExistsQuery = `SELECT 1 FROM commitments WHERE id = $1`
)

type CommitmentRepository struct{}

func NewCommitmentRepository() commitment.Repository {
	return &CommitmentRepository{}
}

func (r *CommitmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*commitment.Commitment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, commitmentFindQuery+` WHERE c.id = $1`, pgUUID(id))
	c, err := scanCommitment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, commitment.ErrNotFound
	}
	return c, err
}

func (r *CommitmentRepository) FindByRoot(ctx context.Context, rootID uuid.UUID) ([]*commitment.Commitment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, commitmentFindQuery+` WHERE c.root_id = $1 ORDER BY c.version`, pgUUID(rootID))
	if err != nil {
		return nil, errors.Wrap(err, "querying version chain")
	}
	defer rows.Close()

	var out []*commitment.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CommitmentRepository) Create(ctx context.Context, c *commitment.Commitment) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	terms := c.Terms()
	attachments, paymentTerms, milestones, deliverables, rules, client, err := marshalTerms(terms)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, commitmentInsertQuery,
		pgUUID(c.ID()),
		pgUUID(c.RootID()),
		pgUUIDPtr(c.PreviousID()),
		int32(c.Version()),
		string(c.Status()),
		c.Frozen(),
		terms.Title,
		terms.ScopeTitle,
		terms.ScopeDescription,
		amountMinor(terms.Amount),
		currencyCode(terms.Amount),
		attachments,
		paymentTerms,
		milestones,
		deliverables,
		rules,
		pgUUID(terms.AssignedToUserID),
		pgUUID(terms.ClientID),
		client,
		pgUUIDPtr(c.ChangeRequestID()),
		pgTime(c.CreatedAt()),
		pgTimePtr(c.ApprovalSentAt()),
		pgTimePtr(c.ApprovedAt()),
		pgTimePtr(c.DeliveredAt()),
		pgTimePtr(c.AcceptedAt()),
		pgTime(c.UpdatedAt()),
	)
	return errors.Wrap(err, "inserting commitment")
}

func (r *CommitmentRepository) Update(ctx context.Context, c *commitment.Commitment, expectedStatus commitment.Status) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	terms := c.Terms()
	attachments, paymentTerms, milestones, deliverables, _, _, err := marshalTerms(terms)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, commitmentUpdateQuery,
		pgUUID(c.ID()),
		string(c.Status()),
		attachments,
		paymentTerms,
		milestones,
		deliverables,
		pgUUIDPtr(c.ChangeRequestID()),
		pgTimePtr(c.ApprovalSentAt()),
		pgTimePtr(c.ApprovedAt()),
		pgTimePtr(c.DeliveredAt()),
		pgTimePtr(c.AcceptedAt()),
		pgTime(c.UpdatedAt()),
		string(expectedStatus),
	)
	if err != nil {
		return errors.Wrap(err, "updating commitment")
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, c.ID())
	}
	return nil
}

func (r *CommitmentRepository) Freeze(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, commitmentFreezeQuery, pgUUID(id))
	if err != nil {
		return errors.Wrap(err, "freezing commitment")
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

func (r *CommitmentRepository) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	var one int
	if err := tx.QueryRow(ctx, commitmentExistsQuery, pgUUID(id)).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return commitment.ErrNotFound
		}
		return err
	}
	return commitment.ErrStale
}

func marshalTerms(terms commitment.Terms) (attachments, paymentTerms, milestones, deliverables, rules, client []byte, err error) {
	if attachments, err = json.Marshal(terms.Attachments); err != nil {
		return
	}
	if paymentTerms, err = json.Marshal(terms.PaymentTerms); err != nil {
		return
	}
	if milestones, err = json.Marshal(terms.Milestones); err != nil {
		return
	}
	if deliverables, err = json.Marshal(terms.Deliverables); err != nil {
		return
	}
	if rules, err = json.Marshal(terms.Rules); err != nil {
		return
	}
	client, err = json.Marshal(terms.ClientSnapshot)
	return
}

func amountMinor(m *money.Money) int64 {
	if m == nil {
		return 0
	}
	return m.Amount()
}

func currencyCode(m *money.Money) string {
	if m == nil {
		return money.EUR
	}
	return m.Currency().Code
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitment(row rowScanner) (*commitment.Commitment, error) {
	var (
		id, rootID, previousID, assignedTo, clientID, changeRequestID pgtype.UUID
		version                                                      int32
		status                                                       string
		frozen                                                       bool
		title, scopeTitle, scopeDescription                          string
		amount                                                       int64
		currency                                                     string
		attachmentsRaw, paymentTermsRaw, milestonesRaw               []byte
		deliverablesRaw, rulesRaw, clientRaw                         []byte
		createdAt, approvalSentAt, approvedAt                        pgtype.Timestamptz
		deliveredAt, acceptedAt, updatedAt                           pgtype.Timestamptz
	)
	if err := row.Scan(
		&id, &rootID, &previousID, &version, &status, &frozen,
		&title, &scopeTitle, &scopeDescription, &amount, &currency,
		&attachmentsRaw, &paymentTermsRaw, &milestonesRaw, &deliverablesRaw, &rulesRaw,
		&assignedTo, &clientID, &clientRaw, &changeRequestID,
		&createdAt, &approvalSentAt, &approvedAt, &deliveredAt, &acceptedAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	terms := commitment.Terms{
		Title:            title,
		ScopeTitle:       scopeTitle,
		ScopeDescription: scopeDescription,
		Amount:           money.New(amount, currency),
		AssignedToUserID: asUUID(assignedTo),
		ClientID:         asUUID(clientID),
	}
	if err := json.Unmarshal(attachmentsRaw, &terms.Attachments); err != nil {
		return nil, errors.Wrap(err, "decoding attachments")
	}
	if err := json.Unmarshal(paymentTermsRaw, &terms.PaymentTerms); err != nil {
		return nil, errors.Wrap(err, "decoding payment terms")
	}
	if err := json.Unmarshal(milestonesRaw, &terms.Milestones); err != nil {
		return nil, errors.Wrap(err, "decoding milestones")
	}
	if err := json.Unmarshal(deliverablesRaw, &terms.Deliverables); err != nil {
		return nil, errors.Wrap(err, "decoding deliverables")
	}
	if err := json.Unmarshal(rulesRaw, &terms.Rules); err != nil {
		return nil, errors.Wrap(err, "decoding approval rules")
	}
	if err := json.Unmarshal(clientRaw, &terms.ClientSnapshot); err != nil {
		return nil, errors.Wrap(err, "decoding client snapshot")
	}

	parsedStatus, err := commitment.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	return commitment.Hydrate(
		asUUID(id),
		asUUID(rootID),
		asUUIDPtr(previousID),
		int(version),
		parsedStatus,
		frozen,
		terms,
		asUUIDPtr(changeRequestID),
		asTime(createdAt),
		asTimePtr(approvalSentAt),
		asTimePtr(approvedAt),
		asTimePtr(deliveredAt),
		asTimePtr(acceptedAt),
		asTime(updatedAt),
	), nil
}
