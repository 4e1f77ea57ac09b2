package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
)

func (q *Queries) UpsertUserByTelegramID(ctx context.Context, user *model.User) error {
	return q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		for id, existing := range d.users {
			if existing.TelegramID != user.TelegramID {
				continue
			}
			old := existing
			existing.Username = user.Username
			existing.FirstName = user.FirstName
			existing.LastName = user.LastName
			existing.LanguageCode = user.LanguageCode
			d.users[id] = existing
			t.record(func() { d.users[id] = old })

			user.ID = existing.ID
			user.CreatedAt = existing.CreatedAt
			return nil
		}

		id, now := d.nextLocked()
		user.ID = id
		user.CreatedAt = now
		d.users[id] = *user
		t.record(func() { delete(d.users, id) })
		return nil
	})
}

func (q *Queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func cloneOffer(o model.Offer) *model.Offer {
	o.Tags = slices.Clone(o.Tags)
	o.Languages = slices.Clone(o.Languages)
	o.NextSlots = nil
	return &o
}

func (q *Queries) CreateOffer(ctx context.Context, offer *model.Offer) error {
	return q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		id, now := d.nextLocked()
		offer.ID = id
		offer.CreatedAt = now
		if offer.Tags == nil {
			offer.Tags = []string{}
		}
		if offer.Languages == nil {
			offer.Languages = []string{}
		}
		d.offers[id] = *cloneOffer(*offer)
		t.record(func() { delete(d.offers, id) })
		return nil
	})
}

func (q *Queries) GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.offers[id]
	if !ok {
		return nil, nil
	}
	return cloneOffer(o), nil
}

// matchOffer повторяет offerWhere из postgres-реализации
func matchOffer(o model.Offer, f model.OfferFilter) bool {
	if o.Visibility != model.VisibilityPublic {
		return false
	}
	if f.Query != "" {
		needle := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(o.Title), needle) &&
			!strings.Contains(strings.ToLower(o.Description), needle) {
			return false
		}
	}
	if f.Type != "" && o.Type != f.Type {
		return false
	}
	if f.Tag != "" && !slices.Contains(o.Tags, f.Tag) {
		return false
	}
	if f.FeeType != "" && o.FeeType != f.FeeType {
		return false
	}
	if f.Region != "" && o.Region != f.Region {
		return false
	}
	if f.Language != "" && !slices.Contains(o.Languages, f.Language) {
		return false
	}
	return true
}

func (q *Queries) ListOffers(ctx context.Context, filter model.OfferFilter) ([]*model.Offer, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	offers := []*model.Offer{}
	for _, o := range d.offers {
		if matchOffer(o, filter) {
			offers = append(offers, cloneOffer(o))
		}
	}

	newer := func(a, b *model.Offer) bool { return d.before(b.ID, b.CreatedAt, a.ID, a.CreatedAt) }
	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		switch filter.Sort {
		case model.OfferSortRating:
			if a.AvgStars != b.AvgStars {
				return a.AvgStars > b.AvgStars
			}
			if a.RatingsCount != b.RatingsCount {
				return a.RatingsCount > b.RatingsCount
			}
		case model.OfferSortPopular:
			if a.Views != b.Views {
				return a.Views > b.Views
			}
		}
		return newer(a, b)
	})

	return page(offers, filter.Limit, filter.Offset), nil
}

func (q *Queries) RefreshOfferAggregates(ctx context.Context) (int64, error) {
	var changed int64
	err := q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		sums := make(map[uuid.UUID]int)
		counts := make(map[uuid.UUID]int)
		for _, r := range d.reviews {
			sums[r.OfferID] += r.Stars
			counts[r.OfferID]++
		}

		for id, o := range d.offers {
			avg := 0.0
			if n := counts[id]; n > 0 {
				avg = math.Round(float64(sums[id])/float64(n)*100) / 100
			}
			if o.AvgStars == avg && o.RatingsCount == counts[id] {
				continue
			}
			old := o
			o.AvgStars = avg
			o.RatingsCount = counts[id]
			d.offers[id] = o
			t.record(func() { d.offers[id] = old })
			changed++
		}
		return nil
	})
	return changed, err
}

func (q *Queries) CreateReview(ctx context.Context, review *model.Review) error {
	return q.exec(func(t *txn) error {
		d := q.db
		d.mu.Lock()
		defer d.mu.Unlock()

		for _, r := range d.reviews {
			if r.EngagementID == review.EngagementID ||
				(r.OfferID == review.OfferID && r.ReviewerID == review.ReviewerID) {
				return fmt.Errorf("create review: %w", repository.ErrDuplicate)
			}
		}

		id, now := d.nextLocked()
		review.ID = id
		review.CreatedAt = now
		d.reviews[id] = *review
		t.record(func() { delete(d.reviews, id) })
		return nil
	})
}

func (q *Queries) ListReviews(ctx context.Context, offerID uuid.UUID, limit, offset int) ([]*model.Review, error) {
	d := q.db
	d.mu.Lock()
	defer d.mu.Unlock()

	reviews := []*model.Review{}
	for _, r := range d.reviews {
		if r.OfferID == offerID {
			reviews = append(reviews, &r)
		}
	}
	sort.Slice(reviews, func(i, j int) bool {
		return d.before(reviews[j].ID, reviews[j].CreatedAt, reviews[i].ID, reviews[i].CreatedAt)
	})

	return page(reviews, limit, offset), nil
}
