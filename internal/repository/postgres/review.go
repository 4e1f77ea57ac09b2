package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
)

func (q *Queries) CreateReview(ctx context.Context, review *model.Review) error {
	query := `
		INSERT INTO reviews (offer_id, engagement_id, reviewer_id, stars, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := q.db.QueryRow(ctx, query,
		review.OfferID,
		review.EngagementID,
		review.ReviewerID,
		review.Stars,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create review: %w", errDuplicate(err))
		}
		return fmt.Errorf("create review: %w", err)
	}

	return nil
}

func (q *Queries) ListReviews(ctx context.Context, offerID uuid.UUID, limit, offset int) ([]*model.Review, error) {
	query := `
		SELECT id, offer_id, engagement_id, reviewer_id, stars, comment, created_at
		FROM reviews
		WHERE offer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := q.db.Query(ctx, query, offerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*model.Review{}
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.OfferID, &r.EngagementID, &r.ReviewerID, &r.Stars, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, nil
}
