package model

import (
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Offer опубликованная услуга практика
type Offer struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Type         string     `json:"type"` // legal | psychological | career | other
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	FeeType      string     `json:"fee_type"` // free | paid | sliding
	Tags         []string   `json:"tags"`
	Languages    []string   `json:"languages"`
	Region       string     `json:"region"`
	Visibility   Visibility `json:"visibility"`
	AvgStars     float64    `json:"avg_stars"`
	RatingsCount int        `json:"ratings_count"`
	Views        int        `json:"views"`
	CreatedAt    time.Time  `json:"created_at"`

	// Заполняется только проекциями (не из таблицы offers)
	NextSlots []*Slot `json:"next_slots,omitempty"`
}

type OfferSort string

const (
	OfferSortNew     OfferSort = "new"
	OfferSortRating  OfferSort = "rating"
	OfferSortPopular OfferSort = "popular"
)

// OfferFilter фильтр публичного каталога
type OfferFilter struct {
	Query    string
	Type     string
	Tag      string
	FeeType  string
	Region   string
	Language string
	Sort     OfferSort
	Limit    int
	Offset   int
}
