package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/repository/base"
	"github.com/Freeeeeet/felanocare/internal/store"
)

const profileColumns = `uid, role, name, COALESCE(email, ''), COALESCE(to_char(birth_date, 'YYYY-MM-DD'), ''),
	telegram_id, password_hash, created_at`

type ProfileRepository struct {
	*base.Repository
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новый профиль
func (r *ProfileRepository) Create(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO profiles (uid, role, name, email, birth_date, telegram_id, password_hash)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7)
		RETURNING created_at
	`

	uid := p.UID
	if uid == "" {
		uid = uuid.NewString()
	}

	err := r.QueryRow(
		ctx, query,
		uid,
		string(p.Role),
		p.Name,
		base.NullString(p.Email),
		base.NullString(p.BirthDate),
		p.TelegramID,
		p.PasswordHash,
	).Scan(&p.CreatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("create profile: %w", err)
	}

	p.UID = uid
	return nil
}

// GetByID получает профиль по UID
func (r *ProfileRepository) GetByID(ctx context.Context, uid string) (*model.Profile, error) {
	return r.getOne(ctx, "get profile by id", `uid = $1`, uid)
}

// GetByEmail ищет профиль по email без учёта регистра
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	return r.getOne(ctx, "get profile by email", `lower(email) = lower($1)`, email)
}

// GetByTelegramID получает профиль по Telegram ID
func (r *ProfileRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error) {
	return r.getOne(ctx, "get profile by telegram id", `telegram_id = $1`, telegramID)
}

// ListByRole возвращает профили роли, отсортированные по имени
func (r *ProfileRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE role = $1 ORDER BY name, uid`

	rows, err := r.Query(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("list profiles by role: %w", err)
	}
	defer rows.Close()

	profiles := make([]*model.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

// Update обновляет изменяемые поля профиля; роль и email не меняются
func (r *ProfileRepository) Update(ctx context.Context, p *model.Profile) error {
	query := `
		UPDATE profiles
		SET name = $2, birth_date = $3::date, telegram_id = $4, password_hash = $5
		WHERE uid = $1
	`

	affected, err := r.ExecAffected(ctx, query,
		p.UID,
		p.Name,
		base.NullString(p.BirthDate),
		p.TelegramID,
		p.PasswordHash,
	)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (r *ProfileRepository) getOne(ctx context.Context, op, where string, arg any) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + where

	p, err := scanProfile(r.QueryRow(ctx, query, arg))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(
		&p.UID,
		&p.Role,
		&p.Name,
		&p.Email,
		&p.BirthDate,
		&p.TelegramID,
		&p.PasswordHash,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
