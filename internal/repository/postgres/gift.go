package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const giftColumns = `id, offer_id, sponsor_id, units, used, status, valid_until, note, created_at`

// Пригодный пул: активен, есть остаток, не истёк
const giftEligible = `offer_id = $1
	AND status = 'active'
	AND used < units
	AND (valid_until IS NULL OR valid_until > $2)`

func scanGift(row pgx.Row) (*model.Gift, error) {
	var g model.Gift
	err := row.Scan(
		&g.ID,
		&g.OfferID,
		&g.SponsorID,
		&g.Units,
		&g.Used,
		&g.Status,
		&g.ValidUntil,
		&g.Note,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (q *Queries) CreateGift(ctx context.Context, gift *model.Gift) error {
	query := `
		INSERT INTO offer_gifts (offer_id, sponsor_id, units, used, status, valid_until, note)
		VALUES ($1, $2, $3, 0, 'active', $4, $5)
		RETURNING id, used, status, created_at
	`

	err := q.db.QueryRow(ctx, query,
		gift.OfferID,
		gift.SponsorID,
		gift.Units,
		gift.ValidUntil,
		gift.Note,
	).Scan(&gift.ID, &gift.Used, &gift.Status, &gift.CreatedAt)
	if err != nil {
		return fmt.Errorf("create gift: %w", err)
	}

	return nil
}

func (q *Queries) ListGifts(ctx context.Context, offerID uuid.UUID) ([]*model.Gift, error) {
	query := `SELECT ` + giftColumns + ` FROM offer_gifts WHERE offer_id = $1 ORDER BY created_at ASC`

	rows, err := q.db.Query(ctx, query, offerID)
	if err != nil {
		return nil, fmt.Errorf("list gifts: %w", err)
	}
	defer rows.Close()

	gifts := []*model.Gift{}
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, fmt.Errorf("scan gift: %w", err)
		}
		gifts = append(gifts, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gifts: %w", err)
	}

	return gifts, nil
}

// LockNextGift при wait=true Postgres после ожидания перепроверяет WHERE
// и может вернуть пустой результат, тогда вызывающий повторяет попытку
func (q *Queries) LockNextGift(ctx context.Context, offerID uuid.UUID, at time.Time, wait bool) (*model.Gift, error) {
	lock := "FOR UPDATE SKIP LOCKED"
	if wait {
		lock = "FOR UPDATE"
	}

	query := `
		SELECT ` + giftColumns + `
		FROM offer_gifts
		WHERE ` + giftEligible + `
		ORDER BY created_at ASC, id ASC
		LIMIT 1
		` + lock

	gift, err := scanGift(q.db.QueryRow(ctx, query, offerID, at))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock next gift: %w", err)
	}
	return gift, nil
}

func (q *Queries) UpdateGiftUsage(ctx context.Context, gift *model.Gift) error {
	query := `UPDATE offer_gifts SET used = $1, status = $2 WHERE id = $3`

	result, err := q.db.Exec(ctx, query, gift.Used, gift.Status, gift.ID)
	if err != nil {
		return fmt.Errorf("update gift usage: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("gift not found")
	}

	return nil
}

func (q *Queries) SumAvailableGiftUnits(ctx context.Context, offerID uuid.UUID, at time.Time) (int, error) {
	query := `SELECT COALESCE(SUM(GREATEST(units - used, 0)), 0) FROM offer_gifts WHERE ` + giftEligible

	var n int
	if err := q.db.QueryRow(ctx, query, offerID, at).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum available gifts: %w", err)
	}
	return n, nil
}
