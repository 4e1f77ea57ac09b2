package model

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID           uuid.UUID `json:"id"`
	OfferID      uuid.UUID `json:"offer_id"`
	EngagementID uuid.UUID `json:"engagement_id"`
	ReviewerID   uuid.UUID `json:"reviewer_id"`
	Stars        int       `json:"stars"`
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"created_at"`
}
