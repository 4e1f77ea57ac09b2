package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/offer_broker/internal/controller/state"
	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const helpText = "📚 Справка по командам:\n\n" +
	"/start - Начать работу с ботом\n" +
	"/requests - Заявки на мои предложения\n" +
	"/sent - Мои отправленные заявки\n" +
	"/engagements - Мои встречи\n" +
	"/cancel - Прервать ввод причины\n" +
	"/help - Показать эту справку\n\n" +
	"Предложения, слоты и подарочные места создаются через веб-интерфейс."

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	from := update.Message.From
	user, err := h.svc.Users.RegisterUser(ctx, from.ID, from.Username, from.FirstName, from.LastName, from.LanguageCode)
	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.", nil)
		return
	}

	name := user.FirstName
	if name == "" {
		name = user.Username
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, fmt.Sprintf(
		"👋 Привет, %s!\n\nЗдесь приходят заявки на ваши консультации и уведомления о встречах.\n\n%s",
		name, helpText,
	), nil)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText, nil)
}

// HandleRequests ожидающие заявки на предложения пользователя, с кнопками решения
func (h *Handlers) HandleRequests(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	actor, ok := h.requireActor(ctx, b, update.Message)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	reqs, err := h.svc.Requests.ListPendingReceived(ctx, actor)
	if err != nil {
		h.logger.Error("Failed to list received requests", zap.Error(err))
		h.sendMessage(ctx, b, chatID, userMessage(err), nil)
		return
	}
	if len(reqs) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 Новых заявок нет.", nil)
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf("📥 Ожидают решения: %d", len(reqs)), nil)
	for _, r := range reqs[:min(len(reqs), maxListed)] {
		h.sendMessage(ctx, b, chatID, formatRequest(r), requestKeyboard(r))
	}
}

// HandleSent заявки, отправленные пользователем
func (h *Handlers) HandleSent(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	actor, ok := h.requireActor(ctx, b, update.Message)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	reqs, err := h.svc.Requests.ListMine(ctx, actor, model.RequestBoxSent)
	if err != nil {
		h.logger.Error("Failed to list sent requests", zap.Error(err))
		h.sendMessage(ctx, b, chatID, userMessage(err), nil)
		return
	}
	if len(reqs) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 Вы ещё не отправляли заявок.", nil)
		return
	}
	for _, r := range reqs[:min(len(reqs), maxListed)] {
		h.sendMessage(ctx, b, chatID, formatRequest(r), sentKeyboard(r))
	}
}

// HandleEngagements встречи пользователя в любой роли
func (h *Handlers) HandleEngagements(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	actor, ok := h.requireActor(ctx, b, update.Message)
	if !ok {
		return
	}
	chatID := update.Message.Chat.ID

	list, err := h.svc.Engagements.ListMine(ctx, actor)
	if err != nil {
		h.logger.Error("Failed to list engagements", zap.Error(err))
		h.sendMessage(ctx, b, chatID, userMessage(err), nil)
		return
	}
	if len(list) == 0 {
		h.sendMessage(ctx, b, chatID, "📭 Встреч пока нет.", nil)
		return
	}
	for _, e := range list[:min(len(list), maxListed)] {
		h.sendMessage(ctx, b, chatID, formatEngagement(e, actor), engagementKeyboard(e, actor))
	}
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.dialogs.Get(telegramID).State == state.StateNone {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Нет активных операций для отмены.", nil)
		return
	}
	h.dialogs.Clear(telegramID)
	h.sendMessage(ctx, b, update.Message.Chat.ID, "✅ Операция прервана.", nil)
}

// HandleTextMessage ввод причины для начатого кнопкой диалога
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	text := strings.TrimSpace(msg.Text)
	// Команды обрабатываются своими handlers, кроме /skip
	if strings.HasPrefix(text, "/") && text != "/skip" {
		return
	}

	d, ok := h.dialogs.Take(msg.From.ID)
	if !ok {
		return
	}
	if text == "/skip" {
		text = ""
	}

	actor, ok := h.requireActor(ctx, b, msg)
	if !ok {
		return
	}
	reply, err := h.finishDialog(ctx, actor, d, text)
	if err != nil {
		h.logFailure(err, string(d.State), d.TargetID)
		h.sendMessage(ctx, b, msg.Chat.ID, userMessage(err), nil)
		return
	}
	h.sendMessage(ctx, b, msg.Chat.ID, reply, nil)
}
