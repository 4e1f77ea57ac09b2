package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusOpen      SlotStatus = "open"
	SlotStatusFull      SlotStatus = "full"
	SlotStatusCancelled SlotStatus = "cancelled"
)

type Slot struct {
	ID        uuid.UUID  `json:"id"`
	OfferID   uuid.UUID  `json:"offer_id"`
	StartAt   time.Time  `json:"start_at"`
	EndAt     time.Time  `json:"end_at"`
	Capacity  int        `json:"capacity"`
	Reserved  int        `json:"reserved"`
	Status    SlotStatus `json:"status"`
	Note      string     `json:"note"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsBookable проверяет что в слоте есть свободное место
func (s *Slot) IsBookable() bool {
	return s.Status != SlotStatusCancelled && s.Reserved < s.Capacity
}

// SlotPredicate условие, которое хранилище проверяет атомарно вместе с обновлением
type SlotPredicate struct {
	OfferID      uuid.UUID // uuid.Nil - не проверять принадлежность
	NotCancelled bool
	HasCapacity  bool // reserved + delta <= capacity
}

// SlotDelta изменение слота. Статус пересчитывается хранилищем:
// cancelled остаётся cancelled, full при reserved == capacity, иначе open.
type SlotDelta struct {
	Reserved int // +1 бронь, -1 освобождение (не ниже нуля)
	Cancel   bool
}

// SlotFilter выборка слотов одного предложения
type SlotFilter struct {
	OfferID  uuid.UUID
	From     *time.Time // start_at >= From
	To       *time.Time // start_at < To
	OnlyOpen bool       // status = 'open'
	Bookable bool       // дополнительно reserved < capacity
	Limit    int        // 0 - без ограничения
}

// CalendarSlot слот вместе с данными предложения для календаря по дням
type CalendarSlot struct {
	OfferID    uuid.UUID `json:"offer_id"`
	OfferTitle string    `json:"offer_title"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Region     string    `json:"region"`
	SlotID     uuid.UUID `json:"slot_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Capacity   int       `json:"capacity"`
	Reserved   int       `json:"reserved"`
}

// CalendarFilter открытые слоты публичных предложений в диапазоне [From, To)
type CalendarFilter struct {
	Offers OfferFilter
	From   time.Time
	To     time.Time
}

// DaySlots слоты одного календарного дня (UTC)
type DaySlots struct {
	Day   string          `json:"day"`
	Slots []*CalendarSlot `json:"slots"`
}
