package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/offer_broker/internal/controller/keyboard"
	"github.com/Freeeeeet/offer_broker/internal/controller/state"
	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/Freeeeeet/offer_broker/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Форматы callback data: action:uuid
const (
	AcceptRequest      = "accept_request"
	AcceptWithGift     = "accept_gift"
	DeclineRequest     = "decline_request"
	WithdrawRequest    = "withdraw_request"
	CompleteEngagement = "complete_eng"
	CancelEngagement   = "cancel_eng"
)

var knownActions = map[string]bool{
	AcceptRequest:      true,
	AcceptWithGift:     true,
	DeclineRequest:     true,
	WithdrawRequest:    true,
	CompleteEngagement: true,
	CancelEngagement:   true,
}

func callbackData(action string, id uuid.UUID) string {
	return action + ":" + id.String()
}

// parseCallback "accept_request:<uuid>" -> ("accept_request", uuid)
func parseCallback(data string) (string, uuid.UUID, error) {
	action, raw, ok := strings.Cut(data, ":")
	if !ok || !knownActions[action] {
		return "", uuid.Nil, fmt.Errorf("%w: %q", errInvalidFormat, data)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("%w: %q", errInvalidFormat, data)
	}
	return action, id, nil
}

// HandleCallbackQuery обрабатывает нажатия на inline кнопки
func (h *Handlers) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}

	h.logger.Info("Routing callback",
		zap.String("data", cb.Data),
		zap.Int64("telegram_id", cb.From.ID),
	)

	action, id, err := parseCallback(cb.Data)
	if err != nil {
		h.answer(ctx, b, cb.ID, userMessage(err), true)
		return
	}
	actor, err := h.actor(ctx, cb.From.ID)
	if err != nil {
		h.answer(ctx, b, cb.ID, userMessage(err), true)
		return
	}

	var chatID int64
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
	}

	// Отказ и отмена спрашивают причину следующим сообщением
	switch action {
	case DeclineRequest:
		h.dialogs.Begin(cb.From.ID, state.StateDeclineReason, id)
		h.answer(ctx, b, cb.ID, "", false)
		h.sendMessage(ctx, b, chatID, "✍️ Напишите причину отказа или отправьте /skip.", nil)
		return
	case CancelEngagement:
		h.dialogs.Begin(cb.From.ID, state.StateCancelReason, id)
		h.answer(ctx, b, cb.ID, "", false)
		h.sendMessage(ctx, b, chatID, "✍️ Напишите причину отмены или отправьте /skip.", nil)
		return
	}

	reply, err := h.perform(ctx, actor, action, id)
	if err != nil {
		h.logFailure(err, action, id)
		h.answer(ctx, b, cb.ID, userMessage(err), true)
		return
	}
	h.answer(ctx, b, cb.ID, "", false)

	if msg := cb.Message.Message; msg != nil {
		_, err := b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ID,
			Text:      msg.Text + "\n\n" + reply,
		})
		if err != nil {
			h.logger.Warn("Failed to edit message", zap.Error(err))
		}
	}
}

// perform выполняет действие кнопки, возвращает текст результата
func (h *Handlers) perform(ctx context.Context, actor uuid.UUID, action string, id uuid.UUID) (string, error) {
	switch action {
	case AcceptRequest, AcceptWithGift:
		eng, err := h.svc.Requests.Accept(ctx, id, actor, service.AcceptInput{UseGift: action == AcceptWithGift})
		if err != nil {
			return "", err
		}
		reply := "✅ Заявка принята. Встреча #" + shortID(eng.ID)
		switch {
		case eng.GiftID != nil:
			reply += "\n🎁 Использовано подарочное место"
		case action == AcceptWithGift:
			reply += "\n⚠️ Подарочных мест не осталось, встреча без подарка"
		}
		return reply, nil
	case WithdrawRequest:
		if _, err := h.svc.Requests.Withdraw(ctx, id, actor); err != nil {
			return "", err
		}
		return "↩️ Заявка отозвана", nil
	case CompleteEngagement:
		if _, err := h.svc.Engagements.Complete(ctx, id, actor); err != nil {
			return "", err
		}
		return "✔️ Встреча завершена", nil
	default:
		return "", fmt.Errorf("%w: %s", errInvalidFormat, action)
	}
}

// finishDialog применяет введённую причину к объекту диалога
func (h *Handlers) finishDialog(ctx context.Context, actor uuid.UUID, d state.Dialog, reason string) (string, error) {
	switch d.State {
	case state.StateDeclineReason:
		if _, err := h.svc.Requests.Decline(ctx, d.TargetID, actor, reason); err != nil {
			return "", err
		}
		return "🚫 Заявка отклонена", nil
	case state.StateCancelReason:
		if _, err := h.svc.Engagements.Cancel(ctx, d.TargetID, actor, reason); err != nil {
			return "", err
		}
		return "❌ Встреча отменена", nil
	default:
		return "", fmt.Errorf("%w: dialog %s", errInvalidFormat, d.State)
	}
}

func (h *Handlers) logFailure(err error, action string, id uuid.UUID) {
	// Ожидаемые отказы (занято, не ваше) логировать как ошибки незачем
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrForbidden) ||
		errors.Is(err, service.ErrInvalidStateTransition) || errors.Is(err, service.ErrConflict) {
		h.logger.Info("Action rejected", zap.String("action", action), zap.String("id", id.String()), zap.Error(err))
		return
	}
	h.logger.Error("Action failed", zap.String("action", action), zap.String("id", id.String()), zap.Error(err))
}

// requestKeyboard кнопки владельца для ожидающей заявки
func requestKeyboard(r *model.Request) models.ReplyMarkup {
	return keyboard.NewBuilder().
		Row(
			keyboard.Button("✅ Принять", callbackData(AcceptRequest, r.ID)),
			keyboard.Button("🎁 С подарком", callbackData(AcceptWithGift, r.ID)),
		).
		Row(keyboard.Button("🚫 Отклонить", callbackData(DeclineRequest, r.ID))).
		Build()
}

// sentKeyboard заявитель может отозвать только ожидающую заявку
func sentKeyboard(r *model.Request) models.ReplyMarkup {
	kb := keyboard.NewBuilder()
	if r.IsPending() {
		kb.Row(keyboard.Button("↩️ Отозвать", callbackData(WithdrawRequest, r.ID)))
	}
	return kb.Build()
}

// engagementKeyboard завершить может специалист из scheduled, отменить любой участник открытой встречи
func engagementKeyboard(e *model.Engagement, viewer uuid.UUID) models.ReplyMarkup {
	kb := keyboard.NewBuilder()
	if e.State == model.EngagementStateScheduled && e.PractitionerID == viewer {
		kb.Row(keyboard.Button("✔️ Завершить", callbackData(CompleteEngagement, e.ID)))
	}
	if e.IsOpen() {
		kb.Row(keyboard.Button("❌ Отменить", callbackData(CancelEngagement, e.ID)))
	}
	return kb.Build()
}
