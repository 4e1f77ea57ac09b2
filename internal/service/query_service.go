package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultPageSize         = 20
	maxOfferPageSize        = 50
	maxOfferWithSlotsPage   = 100
	defaultLimitSlots       = 3
	maxAvailabilityDays     = 62
	defaultAvailabilityDays = 14
)

// QueryService выборки только для чтения
type QueryService struct {
	store repository.Store
	now   func() time.Time
}

// Page нумерация с 1
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize(maxSize int) (limit, offset int) {
	size := p.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxSize)
	page := max(p.Page, 1)
	return size, (page - 1) * size
}

func (s *QueryService) ListOffers(ctx context.Context, filter model.OfferFilter, page Page) ([]*model.Offer, error) {
	switch filter.Sort {
	case "", model.OfferSortNew, model.OfferSortRating, model.OfferSortPopular:
	default:
		return nil, fmt.Errorf("%w: sort must be new, rating or popular", ErrInvalidArgument)
	}
	filter.Limit, filter.Offset = page.normalize(maxOfferPageSize)
	return s.store.ListOffers(ctx, filter)
}

// OffersWithNextSlots каталог с ближайшими слотами, limitSlots 0..12
func (s *QueryService) OffersWithNextSlots(ctx context.Context, filter model.OfferFilter, page Page, limitSlots *int) ([]*model.Offer, error) {
	perOffer := defaultLimitSlots
	if limitSlots != nil {
		perOffer = clamp(*limitSlots, 0, maxNextSlots)
	}

	filter.Limit, filter.Offset = page.normalize(maxOfferWithSlotsPage)
	offers, err := s.store.ListOffers(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}
	next, err := s.store.NextSlots(ctx, ids, s.now(), perOffer)
	if err != nil {
		return nil, err
	}

	for _, o := range offers {
		o.NextSlots = next[o.ID]
		if o.NextSlots == nil {
			o.NextSlots = []*model.Slot{}
		}
	}
	return offers, nil
}

// AvailabilityByDay открытые слоты, сгруппированные по дню (UTC). from и to включительно.
func (s *QueryService) AvailabilityByDay(ctx context.Context, from, to *time.Time, filter model.OfferFilter) ([]model.DaySlots, error) {
	start := startOfDay(s.now())
	if from != nil {
		start = startOfDay(*from)
	}
	end := start.AddDate(0, 0, defaultAvailabilityDays)
	if to != nil {
		end = startOfDay(*to).AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: to must not be before from", ErrInvalidArgument)
	}
	if end.Sub(start) > maxAvailabilityDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range is limited to %d days", ErrInvalidArgument, maxAvailabilityDays)
	}

	slots, err := s.store.ListCalendarSlots(ctx, model.CalendarFilter{Offers: filter, From: start, To: end})
	if err != nil {
		return nil, err
	}

	days := []model.DaySlots{}
	for _, cs := range slots {
		day := cs.StartAt.UTC().Format(time.DateOnly)
		if n := len(days); n == 0 || days[n-1].Day != day {
			days = append(days, model.DaySlots{Day: day})
		}
		days[len(days)-1].Slots = append(days[len(days)-1].Slots, cs)
	}
	return days, nil
}
