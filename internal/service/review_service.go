package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxReviewPage = 100

type ReviewService struct {
	store  repository.Store
	logger *zap.Logger
}

type CreateReviewInput struct {
	Stars   int
	Comment string
}

// Create отзыв оставляет заявитель по завершённой встрече, один раз
func (s *ReviewService) Create(ctx context.Context, engagementID, actor uuid.UUID, in CreateReviewInput) (*model.Review, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if in.Stars < 1 || in.Stars > 5 {
		return nil, fmt.Errorf("%w: stars must be between 1 and 5", ErrInvalidArgument)
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return nil, fmt.Errorf("%w: comment is required", ErrInvalidArgument)
	}

	e, err := s.store.GetEngagement(ctx, engagementID)
	if err != nil {
		return nil, fmt.Errorf("get engagement: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: engagement %s", ErrNotFound, engagementID)
	}
	if e.RequesterID != actor {
		return nil, fmt.Errorf("%w: only the requester can review", ErrForbidden)
	}
	if e.State != model.EngagementStateCompleted {
		return nil, fmt.Errorf("%w: engagement is %s", ErrInvalidStateTransition, e.State)
	}

	req, err := s.store.GetRequest(ctx, e.RequestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, e.RequestID)
	}

	review := &model.Review{
		OfferID:      req.OfferID,
		EngagementID: e.ID,
		ReviewerID:   actor,
		Stars:        in.Stars,
		Comment:      comment,
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: offer %s", ErrAlreadyReviewed, req.OfferID)
		}
		return nil, err
	}

	s.logger.Info("Review created",
		zap.String("review_id", review.ID.String()),
		zap.String("offer_id", review.OfferID.String()),
		zap.Int("stars", review.Stars),
	)
	return review, nil
}

func (s *ReviewService) List(ctx context.Context, offerID uuid.UUID, limit, offset int) ([]*model.Review, error) {
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, maxReviewPage)
	offset = max(offset, 0)

	if _, err := loadOffer(ctx, s.store, offerID); err != nil {
		return nil, err
	}
	return s.store.ListReviews(ctx, offerID, limit, offset)
}
