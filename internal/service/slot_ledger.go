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

const (
	maxNextSlots     = 12
	defaultNextSlots = 5
)

// SlotLedger единственный, кто меняет reserved и статус слота
type SlotLedger struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// Reserve занимает место в слоте одним условным UPDATE.
// Работает в транзакции вызывающего (q).
func (l *SlotLedger) Reserve(ctx context.Context, q repository.Queries, slotID, offerID uuid.UUID) (time.Time, error) {
	slot, applied, err := q.ConditionalUpdateSlot(ctx, slotID,
		model.SlotPredicate{OfferID: offerID, NotCancelled: true, HasCapacity: true},
		model.SlotDelta{Reserved: 1},
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("reserve slot: %w", err)
	}
	if applied {
		return slot.StartAt, nil
	}

	// Не применилось: отличаем отсутствующий слот от занятого
	existing, err := q.GetSlot(ctx, slotID)
	if err != nil {
		return time.Time{}, fmt.Errorf("get slot: %w", err)
	}
	if existing == nil {
		return time.Time{}, fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
	}
	return time.Time{}, fmt.Errorf("%w: slot %s", ErrSlotUnavailable, slotID)
}

// Release возвращает место. На отменённом слоте ничего не меняет.
func (l *SlotLedger) Release(ctx context.Context, q repository.Queries, slotID uuid.UUID) error {
	_, applied, err := q.ConditionalUpdateSlot(ctx, slotID, model.SlotPredicate{}, model.SlotDelta{Reserved: -1})
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if !applied {
		l.logger.Warn("Released slot not found", zap.String("slot_id", slotID.String()))
	}
	return nil
}

// Cancel отменяет слот. Идемпотентно, занятые места не освобождаются.
func (l *SlotLedger) Cancel(ctx context.Context, slotID, offerID, actor uuid.UUID) (*model.Slot, error) {
	var slot *model.Slot
	err := l.store.InTx(ctx, func(q repository.Queries) error {
		if _, err := loadOwnedOffer(ctx, q, offerID, actor); err != nil {
			return err
		}

		updated, applied, err := q.ConditionalUpdateSlot(ctx, slotID,
			model.SlotPredicate{OfferID: offerID},
			model.SlotDelta{Cancel: true},
		)
		if err != nil {
			return fmt.Errorf("cancel slot: %w", err)
		}
		if !applied {
			return fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
		}
		slot = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Slot cancelled",
		zap.String("slot_id", slotID.String()),
		zap.String("offer_id", offerID.String()),
		zap.Int("reserved", slot.Reserved),
	)
	return slot, nil
}

type CreateSlotInput struct {
	StartAt  time.Time
	EndAt    time.Time
	Capacity int // 0 - по умолчанию 1
	Note     string
}

func (l *SlotLedger) Create(ctx context.Context, actor, offerID uuid.UUID, in CreateSlotInput) (*model.Slot, error) {
	if in.StartAt.IsZero() || in.EndAt.IsZero() || !in.EndAt.After(in.StartAt) {
		return nil, fmt.Errorf("%w: end_at must be after start_at", ErrInvalidArgument)
	}
	if in.Capacity == 0 {
		in.Capacity = 1
	}
	if in.Capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be at least 1", ErrInvalidArgument)
	}

	if _, err := loadOwnedOffer(ctx, l.store, offerID, actor); err != nil {
		return nil, err
	}

	slot := &model.Slot{
		OfferID:  offerID,
		StartAt:  in.StartAt.UTC(),
		EndAt:    in.EndAt.UTC(),
		Capacity: in.Capacity,
		Note:     in.Note,
	}
	if err := l.store.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	l.logger.Info("Slot created",
		zap.String("slot_id", slot.ID.String()),
		zap.String("offer_id", offerID.String()),
		zap.Time("start_at", slot.StartAt),
		zap.Int("capacity", slot.Capacity),
	)
	return slot, nil
}

// SlotRange границы - календарные даты UTC, обе включительно
type SlotRange struct {
	From     *time.Time
	To       *time.Time
	OnlyOpen bool
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ListOpen слоты предложения в диапазоне дат
func (l *SlotLedger) ListOpen(ctx context.Context, offerID uuid.UUID, r SlotRange) ([]*model.Slot, error) {
	if _, err := loadOffer(ctx, l.store, offerID); err != nil {
		return nil, err
	}

	filter := model.SlotFilter{OfferID: offerID, OnlyOpen: r.OnlyOpen}
	if r.From != nil {
		from := startOfDay(*r.From)
		filter.From = &from
	}
	if r.To != nil {
		to := startOfDay(*r.To).AddDate(0, 0, 1)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, fmt.Errorf("%w: to must not be before from", ErrInvalidArgument)
	}

	return l.store.ListSlots(ctx, filter)
}

// NextSlots ближайшие бронируемые слоты, limit приводится к 1..12
func (l *SlotLedger) NextSlots(ctx context.Context, offerID uuid.UUID, limit int) ([]*model.Slot, error) {
	if limit == 0 {
		limit = defaultNextSlots
	}
	limit = clamp(limit, 1, maxNextSlots)

	if _, err := loadOffer(ctx, l.store, offerID); err != nil {
		return nil, err
	}

	next, err := l.store.NextSlots(ctx, []uuid.UUID{offerID}, l.now(), limit)
	if err != nil {
		return nil, err
	}
	if slots := next[offerID]; slots != nil {
		return slots, nil
	}
	return []*model.Slot{}, nil
}
