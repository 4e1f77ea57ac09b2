// Package handlers команды и inline-кнопки Telegram-бота
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/offer_broker/internal/controller/state"
	"github.com/Freeeeeet/offer_broker/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxListed сколько элементов списка показывать отдельными сообщениями
const maxListed = 10

var errNotRegistered = errors.New("user is not registered")

// Handlers содержит все зависимости для обработки команд и кнопок
type Handlers struct {
	svc     *service.Services
	dialogs *state.Manager
	logger  *zap.Logger
}

func NewHandlers(svc *service.Services, dialogs *state.Manager, logger *zap.Logger) *Handlers {
	return &Handlers{
		svc:     svc,
		dialogs: dialogs,
		logger:  logger,
	}
}

// actor внутренний id пользователя по Telegram id
func (h *Handlers) actor(ctx context.Context, telegramID int64) (uuid.UUID, error) {
	user, err := h.svc.Users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return uuid.Nil, errNotRegistered
	}
	return user.ID, nil
}

// requireActor как actor, но сам отвечает пользователю при ошибке
func (h *Handlers) requireActor(ctx context.Context, b *bot.Bot, msg *models.Message) (uuid.UUID, bool) {
	id, err := h.actor(ctx, msg.From.ID)
	if err != nil {
		if !errors.Is(err, errNotRegistered) {
			h.logger.Error("Failed to get user", zap.Int64("telegram_id", msg.From.ID), zap.Error(err))
		}
		h.sendMessage(ctx, b, msg.Chat.ID, userMessage(err), nil)
		return uuid.Nil, false
	}
	return id, true
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

func (h *Handlers) answer(ctx context.Context, b *bot.Bot, callbackID, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}
