package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/model"
	"github.com/google/uuid"
)

type statusDisplay struct {
	Emoji string
	Text  string
}

func requestStatusDisplay(s model.RequestStatus) statusDisplay {
	displays := map[model.RequestStatus]statusDisplay{
		model.RequestStatusPending:   {"⏳", "Ожидает решения"},
		model.RequestStatusAccepted:  {"✅", "Принята"},
		model.RequestStatusDeclined:  {"🚫", "Отклонена"},
		model.RequestStatusWithdrawn: {"↩️", "Отозвана"},
	}
	if d, ok := displays[s]; ok {
		return d
	}
	return statusDisplay{"❓", "Неизвестно"}
}

func engagementStateDisplay(s model.EngagementState) statusDisplay {
	displays := map[model.EngagementState]statusDisplay{
		model.EngagementStateAccepted:  {"🤝", "Принята, время не назначено"},
		model.EngagementStateScheduled: {"📅", "Назначена"},
		model.EngagementStateCompleted: {"✔️", "Завершена"},
		model.EngagementStateCancelled: {"❌", "Отменена"},
	}
	if d, ok := displays[s]; ok {
		return d
	}
	return statusDisplay{"❓", "Неизвестно"}
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04") + " UTC"
}

// shortID первые 8 символов uuid
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func formatRequest(r *model.Request) string {
	d := requestStatusDisplay(r.Status)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Заявка #%s\n", d.Emoji, shortID(r.ID))
	if r.OfferTitle != "" {
		fmt.Fprintf(&sb, "📌 %s\n", r.OfferTitle)
	}
	fmt.Fprintf(&sb, "📊 Статус: %s\n", d.Text)
	fmt.Fprintf(&sb, "💬 %s\n", r.Message)
	for _, w := range r.PreferredTimes {
		fmt.Fprintf(&sb, "🕒 %s - %s\n", formatDateTime(w.Start), formatDateTime(w.End))
	}
	if r.DeclineReason != "" {
		fmt.Fprintf(&sb, "📝 Причина: %s\n", r.DeclineReason)
	}
	fmt.Fprintf(&sb, "📅 Создана: %s", formatDateTime(r.CreatedAt))
	return sb.String()
}

func formatEngagement(e *model.Engagement, viewer uuid.UUID) string {
	d := engagementStateDisplay(e.State)

	role := "заявитель"
	if e.PractitionerID == viewer {
		role = "специалист"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Встреча #%s (вы %s)\n", d.Emoji, shortID(e.ID), role)
	fmt.Fprintf(&sb, "📊 Статус: %s\n", d.Text)
	if e.ScheduledAt != nil {
		fmt.Fprintf(&sb, "🕒 Время: %s\n", formatDateTime(*e.ScheduledAt))
	}
	if e.GiftID != nil {
		sb.WriteString("🎁 Оплачена подарком\n")
	}
	if e.CancellationReason != "" {
		fmt.Fprintf(&sb, "📝 Причина отмены: %s\n", e.CancellationReason)
	}
	fmt.Fprintf(&sb, "📅 Создана: %s", formatDateTime(e.CreatedAt))
	return sb.String()
}
