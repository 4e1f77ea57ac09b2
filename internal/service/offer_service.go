package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OfferService struct {
	store  repository.Store
	logger *zap.Logger
}

type CreateOfferInput struct {
	Type        string
	Title       string
	Description string
	FeeType     string
	Tags        []string
	Languages   []string
	Region      string
	Visibility  model.Visibility
}

func (s *OfferService) Create(ctx context.Context, actor uuid.UUID, in CreateOfferInput) (*model.Offer, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}

	offer := &model.Offer{
		OwnerID:     actor,
		Type:        defaultString(in.Type, "other"),
		Title:       title,
		Description: in.Description,
		FeeType:     defaultString(in.FeeType, "free"),
		Tags:        in.Tags,
		Languages:   in.Languages,
		Region:      in.Region,
		Visibility:  in.Visibility,
	}
	switch offer.Visibility {
	case "":
		offer.Visibility = model.VisibilityPublic
	case model.VisibilityPublic, model.VisibilityPrivate:
	default:
		return nil, fmt.Errorf("%w: visibility must be public or private", ErrInvalidArgument)
	}

	if err := s.store.CreateOffer(ctx, offer); err != nil {
		return nil, err
	}

	s.logger.Info("Offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("owner_id", actor.String()),
		zap.String("title", offer.Title),
	)
	return offer, nil
}

// Get приватное предложение видит только владелец
func (s *OfferService) Get(ctx context.Context, id, actor uuid.UUID) (*model.Offer, error) {
	offer, err := loadOffer(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if offer.Visibility == model.VisibilityPrivate && offer.OwnerID != actor {
		return nil, fmt.Errorf("%w: offer %s", ErrNotFound, id)
	}
	return offer, nil
}

// RefreshAggregates пересчёт рейтингов, вызывается планировщиком
func (s *OfferService) RefreshAggregates(ctx context.Context) (int64, error) {
	n, err := s.store.RefreshOfferAggregates(ctx)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
