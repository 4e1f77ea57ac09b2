package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestService жизненный цикл заявок и атомарное принятие
type RequestService struct {
	store  repository.Store
	slots  *SlotLedger
	gifts  *GiftLedger
	logger *zap.Logger
	now    func() time.Time
}

type CreateRequestInput struct {
	OfferID        uuid.UUID
	Message        string
	PreferredTimes []model.TimeWindow
}

func (s *RequestService) Create(ctx context.Context, actor uuid.UUID, in CreateRequestInput) (*model.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidArgument)
	}
	for _, w := range in.PreferredTimes {
		if !w.End.After(w.Start) {
			return nil, fmt.Errorf("%w: preferred time end must be after start", ErrInvalidArgument)
		}
	}
	if _, err := loadOffer(ctx, s.store, in.OfferID); err != nil {
		return nil, err
	}

	req := &model.Request{
		OfferID:        in.OfferID,
		RequesterID:    actor,
		Message:        in.Message,
		PreferredTimes: in.PreferredTimes,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Request created",
		zap.String("request_id", req.ID.String()),
		zap.String("offer_id", in.OfferID.String()),
		zap.String("requester_id", actor.String()),
	)
	return req, nil
}

// ListMine заявки пользователя: отправленные им или пришедшие на его предложения
func (s *RequestService) ListMine(ctx context.Context, actor uuid.UUID, box model.RequestBox) ([]*model.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	switch box {
	case model.RequestBoxSent, "":
		return s.store.ListRequestsByRequester(ctx, actor)
	case model.RequestBoxReceived:
		return s.store.ListRequestsForOwner(ctx, actor, false)
	default:
		return nil, fmt.Errorf("%w: box must be sent or received", ErrInvalidArgument)
	}
}

// ListPendingReceived ожидающие решения заявки на предложения пользователя
func (s *RequestService) ListPendingReceived(ctx context.Context, actor uuid.UUID) ([]*model.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListRequestsForOwner(ctx, actor, true)
}

type AcceptInput struct {
	SlotID  *uuid.UUID
	UseGift bool
}

// Accept принимает заявку в одной транзакции: бронь слота, списание подарка,
// смена статуса заявки и создание встречи. Ошибка списания подарка не прерывает принятие.
func (s *RequestService) Accept(ctx context.Context, requestID, actor uuid.UUID, in AcceptInput) (*model.Engagement, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var engagement *model.Engagement
	var giftErr error
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		req, err := lockRequest(ctx, q, requestID)
		if err != nil {
			return err
		}
		offer, err := loadOffer(ctx, q, req.OfferID)
		if err != nil {
			return err
		}
		if offer.OwnerID != actor {
			return fmt.Errorf("%w: only the offer owner can accept", ErrForbidden)
		}
		if !req.IsPending() {
			return fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, req.Status)
		}

		var scheduledAt *time.Time
		if in.SlotID != nil {
			start, err := s.slots.Reserve(ctx, q, *in.SlotID, offer.ID)
			if err != nil {
				return err
			}
			scheduledAt = &start
		}

		var giftID *uuid.UUID
		if in.UseGift {
			// Savepoint: неудачное списание откатывается, принятие продолжается без подарка
			err := q.InTx(ctx, func(sp repository.Queries) error {
				id, err := s.gifts.ConsumeOne(ctx, sp, offer.ID)
				if err != nil {
					return err
				}
				giftID = &id
				return nil
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return fmt.Errorf("consume gift: %w", ctxErr)
				}
				giftID = nil
				giftErr = err
			}
		}

		now := s.now()
		ok, err := q.TransitionRequest(ctx, req.ID, model.RequestStatusPending, model.RequestStatusAccepted, "", now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: request is no longer pending", ErrInvalidStateTransition)
		}

		state := model.EngagementStateAccepted
		if scheduledAt != nil {
			state = model.EngagementStateScheduled
		}
		detail := map[string]string{}
		if in.SlotID != nil {
			detail["slot_id"] = in.SlotID.String()
		}
		if giftID != nil {
			detail["gift_id"] = giftID.String()
		}

		engagement = &model.Engagement{
			RequestID:      req.ID,
			PractitionerID: offer.OwnerID,
			RequesterID:    req.RequesterID,
			State:          state,
			ScheduledAt:    scheduledAt,
			SlotID:         in.SlotID,
			GiftID:         giftID,
			Audit: []model.AuditEntry{{
				At:     now,
				Actor:  actor,
				Action: model.AuditActionAccept,
				Detail: detail,
			}},
		}
		if err := q.CreateEngagement(ctx, engagement); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("%w: engagement already exists for request", ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if giftErr != nil {
		s.logger.Warn("Gift not consumed on accept",
			zap.String("request_id", requestID.String()),
			zap.Error(giftErr),
		)
	}
	s.logger.Info("Request accepted",
		zap.String("request_id", requestID.String()),
		zap.String("engagement_id", engagement.ID.String()),
		zap.String("state", string(engagement.State)),
		zap.Bool("gift_used", engagement.GiftID != nil),
	)
	return engagement, nil
}

// Decline отклонить может только владелец предложения
func (s *RequestService) Decline(ctx context.Context, requestID, actor uuid.UUID, reason string) (*model.Request, error) {
	return s.finish(ctx, requestID, actor, model.RequestStatusDeclined, reason)
}

// Withdraw отозвать может только автор заявки
func (s *RequestService) Withdraw(ctx context.Context, requestID, actor uuid.UUID) (*model.Request, error) {
	return s.finish(ctx, requestID, actor, model.RequestStatusWithdrawn, "")
}

func (s *RequestService) finish(ctx context.Context, requestID, actor uuid.UUID, to model.RequestStatus, reason string) (*model.Request, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var result *model.Request
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		req, err := lockRequest(ctx, q, requestID)
		if err != nil {
			return err
		}

		switch to {
		case model.RequestStatusDeclined:
			offer, err := loadOffer(ctx, q, req.OfferID)
			if err != nil {
				return err
			}
			if offer.OwnerID != actor {
				return fmt.Errorf("%w: only the offer owner can decline", ErrForbidden)
			}
		case model.RequestStatusWithdrawn:
			if req.RequesterID != actor {
				return fmt.Errorf("%w: only the requester can withdraw", ErrForbidden)
			}
		}

		if !req.IsPending() {
			return fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, req.Status)
		}

		now := s.now()
		ok, err := q.TransitionRequest(ctx, req.ID, model.RequestStatusPending, to, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: request is no longer pending", ErrInvalidStateTransition)
		}

		req.Status = to
		req.DeclineReason = reason
		req.UpdatedAt = now
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Request closed",
		zap.String("request_id", requestID.String()),
		zap.String("status", string(to)),
	)
	return result, nil
}

func lockRequest(ctx context.Context, q repository.Queries, id uuid.UUID) (*model.Request, error) {
	req, err := q.LockRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return req, nil
}
