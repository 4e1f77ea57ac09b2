// Package service бизнес-логика: учёт слотов и подарочных пулов, заявки, встречи, отзывы и выборки
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Services набор сервисов поверх одного хранилища
type Services struct {
	Slots       *SlotLedger
	Gifts       *GiftLedger
	Requests    *RequestService
	Engagements *EngagementService
	Reviews     *ReviewService
	Offers      *OfferService
	Query       *QueryService
	Users       *UserService
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock подменяет часы (для тестов)
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(store repository.Store, logger *zap.Logger, opts ...Option) *Services {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	now := func() time.Time { return o.now().UTC() }

	slots := &SlotLedger{store: store, logger: logger, now: now}
	gifts := &GiftLedger{store: store, logger: logger, now: now}

	return &Services{
		Slots: slots,
		Gifts: gifts,
		Requests: &RequestService{
			store: store, slots: slots, gifts: gifts, logger: logger, now: now,
		},
		Engagements: &EngagementService{store: store, slots: slots, logger: logger, now: now},
		Reviews:     &ReviewService{store: store, logger: logger},
		Offers:      &OfferService{store: store, logger: logger},
		Query:       &QueryService{store: store, now: now},
		Users:       NewUserService(store, logger),
	}
}

func requireActor(actor uuid.UUID) error {
	if actor == uuid.Nil {
		return fmt.Errorf("%w: authentication required", ErrForbidden)
	}
	return nil
}

// loadOffer offer или ErrNotFound
func loadOffer(ctx context.Context, q repository.Queries, offerID uuid.UUID) (*model.Offer, error) {
	offer, err := q.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	if offer == nil {
		return nil, fmt.Errorf("%w: offer %s", ErrNotFound, offerID)
	}
	return offer, nil
}

// loadOwnedOffer offer, которым владеет actor
func loadOwnedOffer(ctx context.Context, q repository.Queries, offerID, actor uuid.UUID) (*model.Offer, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	offer, err := loadOffer(ctx, q, offerID)
	if err != nil {
		return nil, err
	}
	if offer.OwnerID != actor {
		return nil, fmt.Errorf("%w: only the offer owner can do this", ErrForbidden)
	}
	return offer, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
