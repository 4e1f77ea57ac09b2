package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, offer_id, start_at, end_at, capacity, reserved, status, note, created_at`

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(
		&s.ID,
		&s.OfferID,
		&s.StartAt,
		&s.EndAt,
		&s.Capacity,
		&s.Reserved,
		&s.Status,
		&s.Note,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSlots(rows pgx.Rows) ([]*model.Slot, error) {
	defer rows.Close()

	slots := []*model.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return slots, nil
}

func (q *Queries) CreateSlot(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO offer_slots (offer_id, start_at, end_at, capacity, reserved, status, note)
		VALUES ($1, $2, $3, $4, 0, 'open', $5)
		RETURNING id, reserved, status, created_at
	`

	err := q.db.QueryRow(ctx, query,
		slot.OfferID,
		slot.StartAt,
		slot.EndAt,
		slot.Capacity,
		slot.Note,
	).Scan(&slot.ID, &slot.Reserved, &slot.Status, &slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

func (q *Queries) GetSlot(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM offer_slots WHERE id = $1`

	slot, err := scanSlot(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (q *Queries) ListSlots(ctx context.Context, f model.SlotFilter) ([]*model.Slot, error) {
	conds := []string{"offer_id = $1"}
	args := []any{f.OfferID}

	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("start_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("start_at < $%d", len(args)))
	}
	if f.OnlyOpen {
		conds = append(conds, "status = 'open'")
	}
	if f.Bookable {
		conds = append(conds, "reserved < capacity")
	}

	query := `SELECT ` + slotColumns + ` FROM offer_slots WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY start_at ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return collectSlots(rows)
}

func (q *Queries) NextSlots(ctx context.Context, offerIDs []uuid.UUID, after time.Time, perOffer int) (map[uuid.UUID][]*model.Slot, error) {
	result := make(map[uuid.UUID][]*model.Slot, len(offerIDs))
	if len(offerIDs) == 0 || perOffer <= 0 {
		return result, nil
	}

	query := `
		SELECT ` + slotColumns + `
		FROM (
			SELECT s.*, ROW_NUMBER() OVER (PARTITION BY s.offer_id ORDER BY s.start_at) AS rn
			FROM offer_slots s
			WHERE s.offer_id = ANY($1)
			  AND s.status = 'open'
			  AND s.reserved < s.capacity
			  AND s.start_at > $2
		) ranked
		WHERE rn <= $3
		ORDER BY offer_id, start_at
	`

	rows, err := q.db.Query(ctx, query, offerIDs, after, perOffer)
	if err != nil {
		return nil, fmt.Errorf("next slots: %w", err)
	}
	slots, err := collectSlots(rows)
	if err != nil {
		return nil, err
	}

	for _, s := range slots {
		result[s.OfferID] = append(result[s.OfferID], s)
	}
	return result, nil
}

func (q *Queries) ListCalendarSlots(ctx context.Context, f model.CalendarFilter) ([]*model.CalendarSlot, error) {
	where, args := offerWhere(f.Offers)
	// offerWhere работает без алиаса, поэтому фильтр предложений применяется в подзапросе
	args = append(args, f.From, f.To)

	query := fmt.Sprintf(`
		SELECT o.id, o.title, o.owner_id, o.region, s.id, s.start_at, s.end_at, s.capacity, s.reserved
		FROM offer_slots s
		JOIN (SELECT id, title, owner_id, region FROM offers WHERE %s) o ON o.id = s.offer_id
		WHERE s.status = 'open'
		  AND s.reserved < s.capacity
		  AND s.start_at >= $%d
		  AND s.start_at < $%d
		ORDER BY s.start_at ASC
	`, where, len(args)-1, len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calendar slots: %w", err)
	}
	defer rows.Close()

	out := []*model.CalendarSlot{}
	for rows.Next() {
		var c model.CalendarSlot
		if err := rows.Scan(
			&c.OfferID, &c.OfferTitle, &c.OwnerID, &c.Region,
			&c.SlotID, &c.StartAt, &c.EndAt, &c.Capacity, &c.Reserved,
		); err != nil {
			return nil, fmt.Errorf("scan calendar slot: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calendar slots: %w", err)
	}
	return out, nil
}

// ConditionalUpdateSlot одно выражение UPDATE: предикат и пересчёт статуса атомарны
func (q *Queries) ConditionalUpdateSlot(ctx context.Context, id uuid.UUID, pred model.SlotPredicate, delta model.SlotDelta) (*model.Slot, bool, error) {
	query := `
		UPDATE offer_slots
		SET reserved = CASE
				WHEN $2::boolean OR status = 'cancelled' THEN reserved
				ELSE GREATEST(reserved + $3::int, 0)
			END,
			status = CASE
				WHEN $2::boolean OR status = 'cancelled' THEN 'cancelled'
				WHEN GREATEST(reserved + $3::int, 0) >= capacity THEN 'full'
				ELSE 'open'
			END
		WHERE id = $1
		  AND ($4::uuid IS NULL OR offer_id = $4::uuid)
		  AND (NOT $5::boolean OR status <> 'cancelled')
		  AND (NOT $6::boolean OR reserved + $3::int <= capacity)
		RETURNING ` + slotColumns

	var offerID *uuid.UUID
	if pred.OfferID != uuid.Nil {
		offerID = &pred.OfferID
	}

	slot, err := scanSlot(q.db.QueryRow(ctx, query,
		id,
		delta.Cancel,
		delta.Reserved,
		offerID,
		pred.NotCancelled,
		pred.HasCapacity,
	))
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("update slot: %w", err)
	}
	return slot, true, nil
}
