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

// maxConsumeAttempts сколько раз повторять выбор пула, если ожидаемый пул исчерпали параллельно
const maxConsumeAttempts = 16

// GiftLedger единственный, кто меняет used и статус подарочного пула
type GiftLedger struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// ConsumeOne списывает одну единицу из самого старого пригодного пула.
// Сначала пропускает заблокированные пулы; ждёт только если свободных нет.
func (l *GiftLedger) ConsumeOne(ctx context.Context, q repository.Queries, offerID uuid.UUID) (uuid.UUID, error) {
	at := l.now()

	for attempt := 0; attempt < maxConsumeAttempts; attempt++ {
		gift, err := q.LockNextGift(ctx, offerID, at, false)
		if err != nil {
			return uuid.Nil, fmt.Errorf("lock gift: %w", err)
		}
		if gift == nil {
			// Все пригодные пулы заняты другими транзакциями, ждём самый старый.
			// Без ожидания N параллельных списаний при N единицах могли бы получить отказ.
			gift, err = q.LockNextGift(ctx, offerID, at, true)
			if err != nil {
				return uuid.Nil, fmt.Errorf("lock gift: %w", err)
			}
		}

		if gift != nil {
			gift.Used++
			if gift.Used >= gift.Units {
				gift.Status = model.GiftStatusExhausted
			}
			if err := q.UpdateGiftUsage(ctx, gift); err != nil {
				return uuid.Nil, err
			}
			return gift.ID, nil
		}

		left, err := q.SumAvailableGiftUnits(ctx, offerID, at)
		if err != nil {
			return uuid.Nil, err
		}
		if left == 0 {
			break
		}
	}

	return uuid.Nil, fmt.Errorf("%w: offer %s", ErrNoSponsoredSeatsAvailable, offerID)
}

// Available остаток единиц. Только для отображения, списание не гарантирует.
func (l *GiftLedger) Available(ctx context.Context, offerID uuid.UUID) (int, error) {
	if _, err := loadOffer(ctx, l.store, offerID); err != nil {
		return 0, err
	}
	return l.store.SumAvailableGiftUnits(ctx, offerID, l.now())
}

type CreateGiftInput struct {
	Units      int
	Note       string
	ValidUntil *time.Time
}

// Create спонсор (actor) оплачивает пул сессий для предложения
func (l *GiftLedger) Create(ctx context.Context, actor, offerID uuid.UUID, in CreateGiftInput) (*model.Gift, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.Units <= 0 {
		return nil, fmt.Errorf("%w: units must be positive", ErrInvalidArgument)
	}
	if in.ValidUntil != nil && !in.ValidUntil.After(l.now()) {
		return nil, fmt.Errorf("%w: valid_until must be in the future", ErrInvalidArgument)
	}
	if _, err := loadOffer(ctx, l.store, offerID); err != nil {
		return nil, err
	}

	gift := &model.Gift{
		OfferID:    offerID,
		SponsorID:  actor,
		Units:      in.Units,
		Note:       in.Note,
		ValidUntil: in.ValidUntil,
	}
	if err := l.store.CreateGift(ctx, gift); err != nil {
		return nil, err
	}

	l.logger.Info("Gift pool created",
		zap.String("gift_id", gift.ID.String()),
		zap.String("offer_id", offerID.String()),
		zap.String("sponsor_id", actor.String()),
		zap.Int("units", gift.Units),
	)
	return gift, nil
}

func (l *GiftLedger) List(ctx context.Context, offerID uuid.UUID) ([]*model.Gift, error) {
	if _, err := loadOffer(ctx, l.store, offerID); err != nil {
		return nil, err
	}
	return l.store.ListGifts(ctx, offerID)
}
