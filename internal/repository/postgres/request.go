package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `r.id, r.offer_id, r.requester_id, r.message, r.preferred_times, r.status,
	r.decline_reason, r.created_at, r.updated_at`

func scanRequest(row pgx.Row, withOffer bool) (*model.Request, error) {
	var r model.Request
	dest := []any{
		&r.ID,
		&r.OfferID,
		&r.RequesterID,
		&r.Message,
		&r.PreferredTimes,
		&r.Status,
		&r.DeclineReason,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
	if withOffer {
		dest = append(dest, &r.OfferTitle, &r.OfferOwnerID)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *Queries) CreateRequest(ctx context.Context, req *model.Request) error {
	query := `
		INSERT INTO offer_requests (offer_id, requester_id, message, preferred_times, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, status, created_at, updated_at
	`

	if req.PreferredTimes == nil {
		req.PreferredTimes = []model.TimeWindow{}
	}

	err := q.db.QueryRow(ctx, query,
		req.OfferID,
		req.RequesterID,
		req.Message,
		req.PreferredTimes,
	).Scan(&req.ID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	return nil
}

func (q *Queries) getRequest(ctx context.Context, id uuid.UUID, lock string) (*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM offer_requests r WHERE r.id = $1 ` + lock

	req, err := scanRequest(q.db.QueryRow(ctx, query, id), false)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (q *Queries) GetRequest(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return q.getRequest(ctx, id, "")
}

// LockRequest SELECT ... FOR UPDATE, имеет смысл только внутри транзакции
func (q *Queries) LockRequest(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return q.getRequest(ctx, id, "FOR UPDATE")
}

func (q *Queries) TransitionRequest(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, declineReason string, at time.Time) (bool, error) {
	query := `
		UPDATE offer_requests
		SET status = $1, decline_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := q.db.Exec(ctx, query, to, declineReason, at, id, from)
	if err != nil {
		return false, fmt.Errorf("update request status: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

func (q *Queries) listRequests(ctx context.Context, query string, args ...any) ([]*model.Request, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	reqs := []*model.Request{}
	for rows.Next() {
		r, err := scanRequest(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return reqs, nil
}

func (q *Queries) ListRequestsByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.Request, error) {
	query := `
		SELECT ` + requestColumns + `, o.title, o.owner_id
		FROM offer_requests r
		JOIN offers o ON o.id = r.offer_id
		WHERE r.requester_id = $1
		ORDER BY r.created_at DESC
	`
	return q.listRequests(ctx, query, requesterID)
}

func (q *Queries) ListRequestsForOwner(ctx context.Context, ownerID uuid.UUID, onlyPending bool) ([]*model.Request, error) {
	query := `
		SELECT ` + requestColumns + `, o.title, o.owner_id
		FROM offer_requests r
		JOIN offers o ON o.id = r.offer_id
		WHERE o.owner_id = $1
		  AND (NOT $2::boolean OR r.status = 'pending')
		ORDER BY r.created_at DESC
	`
	return q.listRequests(ctx, query, ownerID, onlyPending)
}
