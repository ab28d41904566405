package state

// UserState представляет текущее состояние пользователя в диалоге
type UserState string

const (
	StateNone UserState = "" // Нет активного состояния

	// Регистрация пациента: ожидаем дату рождения
	StateRegisterBirthDate UserState = "register_birth_date"

	// Публикация слота специалистом: "YYYY-MM-DD HH:MM HH:MM"
	StateAddSlot UserState = "add_slot"
)

// Ключи временных данных диалога
const (
	KeyLastDate = "last_date" // дата последнего опубликованного слота
)

// UserData хранит временные данные пользователя во время диалога
type UserData struct {
	State UserState
	Data  map[string]any // Временные данные для текущего диалога
}
