package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const engagementColumns = `id, request_id, practitioner_id, requester_id, state, scheduled_at, slot_id,
	gift_id, cancellation_reason, completed_at, audit, created_at`

func scanEngagement(row pgx.Row) (*model.Engagement, error) {
	var e model.Engagement
	err := row.Scan(
		&e.ID,
		&e.RequestID,
		&e.PractitionerID,
		&e.RequesterID,
		&e.State,
		&e.ScheduledAt,
		&e.SlotID,
		&e.GiftID,
		&e.CancellationReason,
		&e.CompletedAt,
		&e.Audit,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *Queries) CreateEngagement(ctx context.Context, e *model.Engagement) error {
	query := `
		INSERT INTO engagements (request_id, practitioner_id, requester_id, state, scheduled_at, slot_id, gift_id, audit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	if e.Audit == nil {
		e.Audit = []model.AuditEntry{}
	}

	err := q.db.QueryRow(ctx, query,
		e.RequestID,
		e.PractitionerID,
		e.RequesterID,
		e.State,
		e.ScheduledAt,
		e.SlotID,
		e.GiftID,
		e.Audit,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create engagement: %w", errDuplicate(err))
		}
		return fmt.Errorf("create engagement: %w", err)
	}

	return nil
}

func (q *Queries) getEngagement(ctx context.Context, id uuid.UUID, lock string) (*model.Engagement, error) {
	query := `SELECT ` + engagementColumns + ` FROM engagements WHERE id = $1 ` + lock

	e, err := scanEngagement(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get engagement: %w", err)
	}
	return e, nil
}

func (q *Queries) GetEngagement(ctx context.Context, id uuid.UUID) (*model.Engagement, error) {
	return q.getEngagement(ctx, id, "")
}

func (q *Queries) LockEngagement(ctx context.Context, id uuid.UUID) (*model.Engagement, error) {
	return q.getEngagement(ctx, id, "FOR UPDATE")
}

// UpdateEngagement журнал только дополняется: audit || [entry]
func (q *Queries) UpdateEngagement(ctx context.Context, e *model.Engagement, entry model.AuditEntry) error {
	query := `
		UPDATE engagements
		SET state = $1,
		    scheduled_at = $2,
		    cancellation_reason = $3,
		    completed_at = $4,
		    audit = audit || $5::jsonb
		WHERE id = $6
		RETURNING audit
	`

	err := q.db.QueryRow(ctx, query,
		e.State,
		e.ScheduledAt,
		e.CancellationReason,
		e.CompletedAt,
		[]model.AuditEntry{entry},
		e.ID,
	).Scan(&e.Audit)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("engagement not found")
		}
		return fmt.Errorf("update engagement: %w", err)
	}

	return nil
}

func (q *Queries) ListEngagementsByUser(ctx context.Context, userID uuid.UUID) ([]*model.Engagement, error) {
	query := `
		SELECT ` + engagementColumns + `
		FROM engagements
		WHERE practitioner_id = $1 OR requester_id = $1
		ORDER BY created_at DESC
	`

	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	defer rows.Close()

	out := []*model.Engagement{}
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagements: %w", err)
	}
	return out, nil
}
