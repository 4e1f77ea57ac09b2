// Package repository описывает контракт хранилища. Реализации: postgres (pgx) и memory.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
)

// ErrDuplicate нарушение уникальности при вставке
var ErrDuplicate = errors.New("duplicate row")

// Геттеры возвращают (nil, nil), если строки нет.

type UserQueries interface {
	// UpsertUserByTelegramID создаёт пользователя или обновляет профиль существующего
	UpsertUserByTelegramID(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type OfferQueries interface {
	CreateOffer(ctx context.Context, offer *model.Offer) error
	GetOffer(ctx context.Context, id uuid.UUID) (*model.Offer, error)
	// ListOffers только публичные предложения
	ListOffers(ctx context.Context, filter model.OfferFilter) ([]*model.Offer, error)
	// RefreshOfferAggregates пересчитывает avg_stars и ratings_count по отзывам
	RefreshOfferAggregates(ctx context.Context) (int64, error)
}

type SlotQueries interface {
	CreateSlot(ctx context.Context, slot *model.Slot) error
	GetSlot(ctx context.Context, id uuid.UUID) (*model.Slot, error)
	ListSlots(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error)
	// NextSlots ближайшие бронируемые слоты (start_at > after) для каждого предложения
	NextSlots(ctx context.Context, offerIDs []uuid.UUID, after time.Time, perOffer int) (map[uuid.UUID][]*model.Slot, error)
	// ListCalendarSlots открытые незаполненные слоты публичных предложений
	ListCalendarSlots(ctx context.Context, filter model.CalendarFilter) ([]*model.CalendarSlot, error)
	// ConditionalUpdateSlot атомарно проверяет предикат и применяет изменение.
	// applied=false, slot=nil: строка не существует или предикат не выполнен.
	ConditionalUpdateSlot(ctx context.Context, id uuid.UUID, pred model.SlotPredicate, delta model.SlotDelta) (*model.Slot, bool, error)
}

type GiftQueries interface {
	CreateGift(ctx context.Context, gift *model.Gift) error
	ListGifts(ctx context.Context, offerID uuid.UUID) ([]*model.Gift, error)
	// LockNextGift блокирует самый старый пригодный пул.
	// wait=false пропускает строки, заблокированные другими транзакциями.
	// wait=true ждёт самый старый пригодный пул и перепроверяет его; nil если он перестал быть пригодным.
	LockNextGift(ctx context.Context, offerID uuid.UUID, at time.Time, wait bool) (*model.Gift, error)
	// UpdateGiftUsage записывает used и status заблокированной строки
	UpdateGiftUsage(ctx context.Context, gift *model.Gift) error
	SumAvailableGiftUnits(ctx context.Context, offerID uuid.UUID, at time.Time) (int, error)
}

type RequestQueries interface {
	CreateRequest(ctx context.Context, req *model.Request) error
	GetRequest(ctx context.Context, id uuid.UUID) (*model.Request, error)
	LockRequest(ctx context.Context, id uuid.UUID) (*model.Request, error)
	// TransitionRequest меняет статус только если текущий равен from
	TransitionRequest(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, declineReason string, at time.Time) (bool, error)
	ListRequestsByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.Request, error)
	ListRequestsForOwner(ctx context.Context, ownerID uuid.UUID, onlyPending bool) ([]*model.Request, error)
}

type EngagementQueries interface {
	// CreateEngagement ErrDuplicate если по заявке уже есть встреча
	CreateEngagement(ctx context.Context, e *model.Engagement) error
	GetEngagement(ctx context.Context, id uuid.UUID) (*model.Engagement, error)
	LockEngagement(ctx context.Context, id uuid.UUID) (*model.Engagement, error)
	// UpdateEngagement пишет state, scheduled_at, cancellation_reason, completed_at и дописывает entry в журнал
	UpdateEngagement(ctx context.Context, e *model.Engagement, entry model.AuditEntry) error
	ListEngagementsByUser(ctx context.Context, userID uuid.UUID) ([]*model.Engagement, error)
}

type ReviewQueries interface {
	// CreateReview ErrDuplicate при повторном отзыве
	CreateReview(ctx context.Context, review *model.Review) error
	ListReviews(ctx context.Context, offerID uuid.UUID, limit, offset int) ([]*model.Review, error)
}

// Queries все операции хранилища. Работают либо в автокоммите, либо внутри InTx.
type Queries interface {
	UserQueries
	OfferQueries
	SlotQueries
	GiftQueries
	RequestQueries
	EngagementQueries
	ReviewQueries

	// InTx выполняет fn в транзакции. Внутри транзакции открывает savepoint:
	// ошибка fn откатывает только вложенную область.
	InTx(ctx context.Context, fn func(q Queries) error) error
}

type Store interface {
	Queries
	Ping(ctx context.Context) error
}
