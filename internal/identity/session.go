// Package identity - кто вызывает операцию и в какой роли
package identity

import "github.com/Freeeeeet/felanocare/internal/model"

// Session - аутентифицированный пользователь. Передаётся явно в каждый вызов.
type Session struct {
	UserID string
	Role   model.Role
}

func (s Session) Valid() bool {
	return s.UserID != "" && s.Role.Valid()
}

func (s Session) IsPatient() bool {
	return s.Valid() && s.Role == model.RolePatient
}

func (s Session) IsProfessional() bool {
	return s.Valid() && s.Role == model.RoleProfessional
}

// Is проверяет, что сессия принадлежит пользователю uid в роли role
func (s Session) Is(uid string, role model.Role) bool {
	return s.Valid() && s.UserID == uid && s.Role == role
}
