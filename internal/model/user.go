package model

import "time"

type Role string

const (
	RolePatient      Role = "patient"
	RoleProfessional Role = "professional"
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleProfessional
}

type AgeCategory string

const (
	AgeYouth  AgeCategory = "youth"
	AgeAdult  AgeCategory = "adult"
	AgeSenior AgeCategory = "senior"
)

// Profile - профиль пользователя (пациента или специалиста)
type Profile struct {
	UID          string    `json:"uid"`
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	BirthDate    string    `json:"birth_date,omitempty"` // YYYY-MM-DD, только у пациентов
	TelegramID   *int64    `json:"telegram_id,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Age возвращает полных лет на дату now. ok=false, если дата рождения не задана или некорректна.
func Age(birthDate string, now time.Time) (int, bool) {
	if birthDate == "" {
		return 0, false
	}
	b, err := time.Parse(DateLayout, birthDate)
	if err != nil {
		return 0, false
	}

	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	return age, true
}

// CategoryForAge: младше 17 - youth, 17-59 - adult, от 60 - senior
func CategoryForAge(age int) AgeCategory {
	switch {
	case age < 17:
		return AgeYouth
	case age < 60:
		return AgeAdult
	default:
		return AgeSenior
	}
}

// AgeCategory вычисляется при каждом чтении и нигде не хранится.
// Без даты рождения профиль считается взрослым.
func (p *Profile) AgeCategory(now time.Time) AgeCategory {
	age, ok := Age(p.BirthDate, now)
	if !ok {
		return AgeAdult
	}
	return CategoryForAge(age)
}
