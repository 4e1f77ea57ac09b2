package state

import "github.com/google/uuid"

// UserState текущий шаг диалога пользователя
type UserState string

const (
	StateNone UserState = "" // Нет активного диалога

	// Владелец вводит причину отказа по заявке
	StateDeclineReason UserState = "decline_reason"
	// Участник вводит причину отмены встречи
	StateCancelReason UserState = "cancel_reason"
)

// Dialog состояние и объект, к которому относится ввод
type Dialog struct {
	State    UserState
	TargetID uuid.UUID
}
