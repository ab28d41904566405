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

// JournalChangesChannel - канал NOTIFY триггера journals_notify_change, payload - user_id
const JournalChangesChannel = "journal_changes"

// JournalRepository - дневник в PostgreSQL
type JournalRepository struct {
	*base.Repository
	hub *store.Hub
}

func NewJournalRepository(pool *pgxpool.Pool, hub *store.Hub) *JournalRepository {
	return &JournalRepository{
		Repository: base.NewRepository(pool),
		hub:        hub,
	}
}

// Add сохраняет запись
func (r *JournalRepository) Add(ctx context.Context, e *model.JournalEntry) error {
	query := `
		INSERT INTO journals (id, user_id, text)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	id := uuid.NewString()
	if err := r.QueryRow(ctx, query, id, e.UserID, e.Text).Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	e.ID = id
	return nil
}

// ListByUser получает записи автора, сначала свежие
func (r *JournalRepository) ListByUser(ctx context.Context, userID string) ([]*model.JournalEntry, error) {
	query := `
		SELECT id, user_id, text, created_at
		FROM journals
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.JournalEntry, error) {
		var e model.JournalEntry
		err := row.Scan(&e.ID, &e.UserID, &e.Text, &e.CreatedAt)
		return &e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	return entries, nil
}

// Watch подписывается на уведомления канала journal_changes для автора
func (r *JournalRepository) Watch(_ context.Context, userID string) (store.Subscription, error) {
	return r.hub.Subscribe(userID), nil
}
