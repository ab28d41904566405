package keyboard

import "github.com/go-telegram/bot/models"

// BackButton создаёт кнопку "Назад"
func BackButton(callbackData string) models.InlineKeyboardButton {
	return Button("⬅️ Назад", callbackData)
}

// BackToMainButton создаёт кнопку "В главное меню"
func BackToMainButton() models.InlineKeyboardButton {
	return Button("🏠 В главное меню", "back_to_main")
}

// CancelButton создаёт кнопку "Отмена"
func CancelButton(callbackData string) models.InlineKeyboardButton {
	return Button("❌ Отмена", callbackData)
}

// ConfirmCancelButtons - ряд Подтвердить/Отмена
func ConfirmCancelButtons(confirmCallback, cancelCallback string) []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{
		Button("✅ Подтвердить", confirmCallback),
		CancelButton(cancelCallback),
	}
}

// AddBackButton добавляет кнопку "Назад" к builder
func (b *Builder) AddBackButton(callbackData string) *Builder {
	return b.Row(BackButton(callbackData))
}

// AddBackToMainButton добавляет кнопку "В главное меню" к builder
func (b *Builder) AddBackToMainButton() *Builder {
	return b.Row(BackToMainButton())
}
