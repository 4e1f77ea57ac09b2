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

// EngagementService переходы встречи, каждый дописывает одну запись в журнал
type EngagementService struct {
	store  repository.Store
	slots  *SlotLedger
	logger *zap.Logger
	now    func() time.Time
}

// Get встречу видят только её участники
func (s *EngagementService) Get(ctx context.Context, id, actor uuid.UUID) (*model.Engagement, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	e, err := s.store.GetEngagement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get engagement: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: engagement %s", ErrNotFound, id)
	}
	if !e.IsParty(actor) {
		return nil, fmt.Errorf("%w: not a party of this engagement", ErrForbidden)
	}
	return e, nil
}

func (s *EngagementService) ListMine(ctx context.Context, actor uuid.UUID) ([]*model.Engagement, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.store.ListEngagementsByUser(ctx, actor)
}

// Schedule назначает или переносит время. Только практик, из accepted или scheduled.
func (s *EngagementService) Schedule(ctx context.Context, id, actor uuid.UUID, at time.Time) (*model.Engagement, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_at is required", ErrInvalidArgument)
	}
	at = at.UTC()

	return s.transition(ctx, id, actor, model.AuditActionSchedule, func(e *model.Engagement) (map[string]string, error) {
		if actor != e.PractitionerID {
			return nil, fmt.Errorf("%w: only the practitioner can schedule", ErrForbidden)
		}
		if !e.IsOpen() {
			return nil, fmt.Errorf("%w: engagement is %s", ErrInvalidStateTransition, e.State)
		}
		e.State = model.EngagementStateScheduled
		e.ScheduledAt = &at
		return map[string]string{"scheduled_at": at.Format(time.RFC3339)}, nil
	}, nil)
}

// Complete только практик, только из scheduled
func (s *EngagementService) Complete(ctx context.Context, id, actor uuid.UUID) (*model.Engagement, error) {
	return s.transition(ctx, id, actor, model.AuditActionComplete, func(e *model.Engagement) (map[string]string, error) {
		if actor != e.PractitionerID {
			return nil, fmt.Errorf("%w: only the practitioner can complete", ErrForbidden)
		}
		if e.State != model.EngagementStateScheduled {
			return nil, fmt.Errorf("%w: engagement is %s", ErrInvalidStateTransition, e.State)
		}
		now := s.now()
		e.State = model.EngagementStateCompleted
		e.CompletedAt = &now
		return nil, nil
	}, nil)
}

// Cancel любая из сторон. Привязанный слот освобождается в той же транзакции.
func (s *EngagementService) Cancel(ctx context.Context, id, actor uuid.UUID, reason string) (*model.Engagement, error) {
	return s.transition(ctx, id, actor, model.AuditActionCancel, func(e *model.Engagement) (map[string]string, error) {
		if !e.IsParty(actor) {
			return nil, fmt.Errorf("%w: not a party of this engagement", ErrForbidden)
		}
		if !e.IsOpen() {
			return nil, fmt.Errorf("%w: engagement is %s", ErrInvalidStateTransition, e.State)
		}
		e.State = model.EngagementStateCancelled
		e.CancellationReason = reason
		detail := map[string]string{}
		if reason != "" {
			detail["reason"] = reason
		}
		return detail, nil
	}, func(ctx context.Context, q repository.Queries, e *model.Engagement) error {
		if e.SlotID == nil {
			return nil
		}
		return s.slots.Release(ctx, q, *e.SlotID)
	})
}

type mutateFunc func(e *model.Engagement) (map[string]string, error)
type afterFunc func(ctx context.Context, q repository.Queries, e *model.Engagement) error

// transition блокирует строку встречи, применяет mutate, пишет журнал, затем after в той же транзакции
func (s *EngagementService) transition(ctx context.Context, id, actor uuid.UUID, action string, mutate mutateFunc, after afterFunc) (*model.Engagement, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var result *model.Engagement
	err := s.store.InTx(ctx, func(q repository.Queries) error {
		e, err := q.LockEngagement(ctx, id)
		if err != nil {
			return fmt.Errorf("lock engagement: %w", err)
		}
		if e == nil {
			return fmt.Errorf("%w: engagement %s", ErrNotFound, id)
		}

		detail, err := mutate(e)
		if err != nil {
			return err
		}

		entry := model.AuditEntry{At: s.now(), Actor: actor, Action: action, Detail: detail}
		if err := q.UpdateEngagement(ctx, e, entry); err != nil {
			return err
		}
		if after != nil {
			if err := after(ctx, q, e); err != nil {
				return err
			}
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Engagement updated",
		zap.String("engagement_id", id.String()),
		zap.String("action", action),
		zap.String("state", string(result.State)),
	)
	return result, nil
}
