package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

const minPasswordLen = 6

// ProfileService - регистрация, вход и профили пользователей
type ProfileService struct {
	profiles store.ProfileStore
	logger   *zap.Logger
	now      func() time.Time
	cost     int
}

func NewProfileService(profiles store.ProfileStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

// SignupPatient регистрирует пациента по email и паролю
func (s *ProfileService) SignupPatient(ctx context.Context, name, email, password, birthDate string) (*model.Profile, error) {
	if err := s.validateBirthDate(birthDate, true); err != nil {
		return nil, err
	}
	return s.signup(ctx, model.RolePatient, name, email, password, birthDate)
}

// SignupProfessional регистрирует специалиста по email и паролю
func (s *ProfileService) SignupProfessional(ctx context.Context, name, email, password string) (*model.Profile, error) {
	return s.signup(ctx, model.RoleProfessional, name, email, password, "")
}

func (s *ProfileService) signup(ctx context.Context, role model.Role, name, email, password, birthDate string) (*model.Profile, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, &ledger.ValidationError{Field: "name", Reason: "required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &ledger.ValidationError{Field: "email", Reason: "invalid address"}
	}
	if len(password) < minPasswordLen {
		return nil, &ledger.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile := &model.Profile{
		Role:         role,
		Name:         name,
		Email:        email,
		BirthDate:    birthDate,
		PasswordHash: string(hash),
	}

	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("New user registered",
		zap.String("uid", profile.UID),
		zap.String("role", string(role)),
	)

	return profile, nil
}

// Login проверяет email и пароль
func (s *ProfileService) Login(ctx context.Context, email, password string) (*model.Profile, error) {
	profile, err := s.profiles.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get profile by email: %w", err)
	}

	if profile.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return profile, nil
}

// RegisterTelegram регистрирует пользователя бота. Повторная регистрация обновляет имя.
func (s *ProfileService) RegisterTelegram(ctx context.Context, telegramID int64, name string, role model.Role, birthDate string) (*model.Profile, error) {
	if !role.Valid() {
		return nil, &ledger.ValidationError{Field: "role", Reason: "expected patient or professional"}
	}
	if err := s.validateBirthDate(birthDate, false); err != nil {
		return nil, err
	}

	existing, err := s.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	// Если пользователь уже существует, обновляем данные
	if existing != nil {
		if existing.Role != role {
			return nil, ErrTelegramRegistered
		}
		if name = strings.TrimSpace(name); name != "" {
			existing.Name = name
		}
		if birthDate != "" {
			existing.BirthDate = birthDate
		}
		if err := s.profiles.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		s.logger.Info("User updated", zap.Int64("telegram_id", telegramID), zap.String("uid", existing.UID))
		return existing, nil
	}

	if role == model.RolePatient && birthDate == "" {
		return nil, &ledger.ValidationError{Field: "birth_date", Reason: "required"}
	}
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("user%d", telegramID)
	}

	profile := &model.Profile{
		Role:       role,
		Name:       name,
		BirthDate:  birthDate,
		TelegramID: &telegramID,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrTelegramRegistered
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("New user registered",
		zap.String("uid", profile.UID),
		zap.Int64("telegram_id", telegramID),
		zap.String("role", string(role)),
	)

	return profile, nil
}

// GetByTelegramID получает профиль по Telegram ID; nil, если пользователь не зарегистрирован
func (s *ProfileService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error) {
	profile, err := s.profiles.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by telegram id: %w", err)
	}
	return profile, nil
}

// Get получает профиль по UID
func (s *ProfileService) Get(ctx context.Context, uid string) (*model.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile меняет имя и дату рождения владельца сессии
func (s *ProfileService) UpdateProfile(ctx context.Context, sess identity.Session, name, birthDate string) (*model.Profile, error) {
	if !sess.Valid() {
		return nil, ledger.ErrUnauthorized
	}
	profile, err := s.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		profile.Name = name
	}
	if birthDate != "" {
		if err := s.validateBirthDate(birthDate, true); err != nil {
			return nil, err
		}
		profile.BirthDate = birthDate
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// ListProfessionals возвращает специалистов по имени
func (s *ProfileService) ListProfessionals(ctx context.Context) ([]*model.Profile, error) {
	profiles, err := s.profiles.ListByRole(ctx, model.RoleProfessional)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	return profiles, nil
}

// AgeCategory вычисляет возрастную группу на текущую дату
func (s *ProfileService) AgeCategory(p *model.Profile) model.AgeCategory {
	return p.AgeCategory(s.now())
}

// Session строит сессию по роли из профиля
func (s *ProfileService) Session(ctx context.Context, uid string) (identity.Session, error) {
	profile, err := s.Get(ctx, uid)
	if err != nil {
		return identity.Session{}, err
	}
	return identity.Session{UserID: profile.UID, Role: profile.Role}, nil
}

func (s *ProfileService) validateBirthDate(birthDate string, required bool) error {
	if birthDate == "" {
		if required {
			return &ledger.ValidationError{Field: "birth_date", Reason: "required"}
		}
		return nil
	}

	b, err := time.Parse(model.DateLayout, birthDate)
	if err != nil {
		return &ledger.ValidationError{Field: "birth_date", Reason: "expected YYYY-MM-DD"}
	}
	if b.After(s.now()) {
		return &ledger.ValidationError{Field: "birth_date", Reason: "must not be in the future"}
	}
	return nil
}
