package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusDeclined  RequestStatus = "declined"
	RequestStatusWithdrawn RequestStatus = "withdrawn"
)

// TimeWindow предпочтительное время, которое указал заявитель
type TimeWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Timezone string    `json:"tz,omitempty"`
}

// Request обращение заявителя к предложению
type Request struct {
	ID             uuid.UUID     `json:"id"`
	OfferID        uuid.UUID     `json:"offer_id"`
	RequesterID    uuid.UUID     `json:"requester_id"`
	Message        string        `json:"message"`
	PreferredTimes []TimeWindow  `json:"preferred_times"`
	Status         RequestStatus `json:"status"`
	DeclineReason  string        `json:"decline_reason"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`

	// Для списков "мои заявки" (не из таблицы offer_requests)
	OfferTitle   string    `json:"offer_title,omitempty"`
	OfferOwnerID uuid.UUID `json:"owner_id,omitempty"`
}

// IsPending проверяет что решение по заявке ещё не принято
func (r *Request) IsPending() bool {
	return r.Status == RequestStatusPending
}

type RequestBox string

const (
	RequestBoxSent     RequestBox = "sent"
	RequestBoxReceived RequestBox = "received"
)
