package common

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/service"
)

// Общие ошибки для обработчиков
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNoMessage     = errors.New("no message in callback")
	ErrInvalidFormat = errors.New("invalid callback format")
)

// fieldNames - поля форм по-русски
var fieldNames = map[string]string{
	"date":       "дата",
	"start_time": "время начала",
	"end_time":   "время окончания",
	"birth_date": "дата рождения",
	"name":       "имя",
	"role":       "роль",
}

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		field, ok := fieldNames[ve.Field]
		if !ok {
			field = ve.Field
		}
		return fmt.Sprintf("❌ Некорректное поле «%s»: %s", field, ve.Reason)
	case errors.Is(err, ledger.ErrSlotWithdrawn):
		return "❌ Специалист отменил этот слот, выберите другой"
	case errors.Is(err, ledger.ErrSlotUnavailable):
		return "⏱ Этот слот только что заняли, выберите другой"
	case errors.Is(err, ledger.ErrStoreUnavailable):
		return "⚠️ Сервис временно недоступен, попробуйте ещё раз через минуту"
	case errors.Is(err, ledger.ErrUnauthorized):
		return "❌ Эта функция недоступна для вашей роли"
	case errors.Is(err, ledger.ErrNotFound):
		return "❌ Слот не найден"
	case errors.Is(err, service.ErrAlreadyBooked):
		return "❌ У вас уже есть запись к этому специалисту"
	case errors.Is(err, service.ErrNoActiveBooking):
		return "❌ Активной записи нет"
	case errors.Is(err, service.ErrProfessionalMissing):
		return "❌ Специалист не найден"
	case errors.Is(err, ErrUserNotFound), errors.Is(err, service.ErrProfileNotFound):
		return "❌ Пользователь не найден. Используйте /start"
	case errors.Is(err, service.ErrTelegramRegistered):
		return "❌ Аккаунт уже зарегистрирован с другой ролью"
	case errors.Is(err, ErrNoMessage):
		return "❌ Ошибка обработки сообщения"
	case errors.Is(err, ErrInvalidFormat):
		return "❌ Неверный формат данных"
	default:
		return "❌ Произошла ошибка"
	}
}

// IsExpected - ошибка вызвана действием пользователя, а не сбоем; такие не логируются как ошибки
func IsExpected(err error) bool {
	if ledger.IsValidation(err) {
		return true
	}
	for _, target := range []error{
		ledger.ErrSlotUnavailable, ledger.ErrUnauthorized, ledger.ErrNotFound,
		service.ErrAlreadyBooked, service.ErrNoActiveBooking, service.ErrTelegramRegistered,
		service.ErrProfessionalMissing, service.ErrProfileNotFound,
		ErrUserNotFound, ErrInvalidFormat, ErrNoMessage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
