package handlers

import (
	"errors"

	"github.com/Freeeeeet/offer_broker/internal/service"
)

var errInvalidFormat = errors.New("invalid callback format")

// userMessage текст ошибки для пользователя
func userMessage(err error) string {
	switch {
	case errors.Is(err, errNotRegistered):
		return "❌ Пользователь не найден. Используйте /start для регистрации."
	case errors.Is(err, errInvalidFormat):
		return "❌ Неверный формат данных"
	case errors.Is(err, service.ErrNotFound):
		return "❌ Не найдено"
	case errors.Is(err, service.ErrForbidden):
		return "❌ У вас нет доступа к этому действию"
	case errors.Is(err, service.ErrInvalidArgument):
		return "❌ Некорректные данные"
	case errors.Is(err, service.ErrInvalidStateTransition):
		return "⚠️ Действие уже недоступно: статус изменился"
	case errors.Is(err, service.ErrSlotUnavailable):
		return "⚠️ В этом слоте больше нет мест"
	case errors.Is(err, service.ErrNoSponsoredSeatsAvailable):
		return "⚠️ Подарочные места закончились"
	case errors.Is(err, service.ErrAlreadyReviewed):
		return "⚠️ Отзыв уже оставлен"
	case errors.Is(err, service.ErrConflict):
		return "⚠️ Заявка уже обработана"
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}
