package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const offerColumns = `id, owner_id, type, title, description, fee_type, tags, languages, region,
	visibility, avg_stars, ratings_count, views, created_at`

func scanOffer(row pgx.Row) (*model.Offer, error) {
	var o model.Offer
	err := row.Scan(
		&o.ID,
		&o.OwnerID,
		&o.Type,
		&o.Title,
		&o.Description,
		&o.FeeType,
		&o.Tags,
		&o.Languages,
		&o.Region,
		&o.Visibility,
		&o.AvgStars,
		&o.RatingsCount,
		&o.Views,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (q *Queries) CreateOffer(ctx context.Context, offer *model.Offer) error {
	query := `
		INSERT INTO offers (owner_id, type, title, description, fee_type, tags, languages, region, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	if offer.Tags == nil {
		offer.Tags = []string{}
	}
	if offer.Languages == nil {
		offer.Languages = []string{}
	}

	err := q.db.QueryRow(ctx, query,
		offer.OwnerID,
		offer.Type,
		offer.Title,
		offer.Description,
		offer.FeeType,
		offer.Tags,
		offer.Languages,
		offer.Region,
		offer.Visibility,
	).Scan(&offer.ID, &offer.CreatedAt)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	return nil
}

func (q *Queries) GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	offer, err := scanOffer(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return offer, nil
}

// offerWhere собирает условия фильтра каталога, нумерация параметров с 1
func offerWhere(f model.OfferFilter) (string, []any) {
	conds := []string{"visibility = 'public'"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Query != "" {
		add("(title ILIKE $%[1]d OR description ILIKE $%[1]d)", "%"+f.Query+"%")
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Tag != "" {
		add("$%d = ANY(tags)", f.Tag)
	}
	if f.FeeType != "" {
		add("fee_type = $%d", f.FeeType)
	}
	if f.Region != "" {
		add("region = $%d", f.Region)
	}
	if f.Language != "" {
		add("$%d = ANY(languages)", f.Language)
	}

	return strings.Join(conds, " AND "), args
}

func offerOrder(sort model.OfferSort) string {
	switch sort {
	case model.OfferSortRating:
		return "avg_stars DESC, ratings_count DESC, created_at DESC"
	case model.OfferSortPopular:
		return "views DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

func (q *Queries) ListOffers(ctx context.Context, filter model.OfferFilter) ([]*model.Offer, error) {
	where, args := offerWhere(filter)
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM offers
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, offerColumns, where, offerOrder(filter.Sort), len(args)-1, len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := []*model.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}

	return offers, nil
}

func (q *Queries) RefreshOfferAggregates(ctx context.Context) (int64, error) {
	query := `
		UPDATE offers o
		SET avg_stars = COALESCE(r.avg_stars, 0),
		    ratings_count = COALESCE(r.cnt, 0)
		FROM offers o2
		LEFT JOIN (
			SELECT offer_id, ROUND(AVG(stars)::numeric, 2) AS avg_stars, COUNT(*) AS cnt
			FROM reviews
			GROUP BY offer_id
		) r ON r.offer_id = o2.id
		WHERE o.id = o2.id
		  AND (o.avg_stars IS DISTINCT FROM COALESCE(r.avg_stars, 0)
		       OR o.ratings_count IS DISTINCT FROM COALESCE(r.cnt, 0))
	`

	tag, err := q.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("refresh offer aggregates: %w", err)
	}
	return tag.RowsAffected(), nil
}
