package model

import (
	"time"

	"github.com/google/uuid"
)

type GiftStatus string

const (
	GiftStatusActive    GiftStatus = "active"
	GiftStatusExhausted GiftStatus = "exhausted"
	GiftStatusCancelled GiftStatus = "cancelled"
)

// Gift пул оплаченных спонсором сессий для одного предложения
type Gift struct {
	ID         uuid.UUID  `json:"id"`
	OfferID    uuid.UUID  `json:"offer_id"`
	SponsorID  uuid.UUID  `json:"sponsor_id"`
	Units      int        `json:"units"`
	Used       int        `json:"used"`
	Status     GiftStatus `json:"status"`
	ValidUntil *time.Time `json:"valid_until"` // nil = бессрочно
	Note       string     `json:"note"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsEligible проверяет можно ли списать из пула единицу в момент at
func (g *Gift) IsEligible(at time.Time) bool {
	if g.Status != GiftStatusActive || g.Used >= g.Units {
		return false
	}
	if g.ValidUntil != nil && !at.Before(*g.ValidUntil) {
		return false
	}
	return true
}

// Remaining количество несписанных единиц
func (g *Gift) Remaining() int {
	if g.Used >= g.Units {
		return 0
	}
	return g.Units - g.Used
}
