package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/metrics"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

const maxJournalText = 5000

// JournalService - личный дневник настроения. Каждый видит только свои записи.
type JournalService struct {
	journals store.JournalStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewJournalService(journals store.JournalStore, m *metrics.Metrics, logger *zap.Logger) *JournalService {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{
		journals: journals,
		metrics:  m,
		logger:   logger,
	}
}

// Add сохраняет запись от имени сессии. Пустой текст отклоняется.
func (s *JournalService) Add(ctx context.Context, sess identity.Session, text string) (*model.JournalEntry, error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("add journal entry: %w", ledger.ErrUnauthorized)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ledger.ValidationError{Field: "text", Reason: "required"}
	}
	if utf8.RuneCountInString(text) > maxJournalText {
		return nil, &ledger.ValidationError{Field: "text", Reason: fmt.Sprintf("must be at most %d characters", maxJournalText)}
	}

	e := &model.JournalEntry{UserID: sess.UserID, Text: text}
	if err := s.journals.Add(ctx, e); err != nil {
		return nil, unavailable("add journal entry", err)
	}

	s.logger.Debug("Journal entry added", zap.String("uid", sess.UserID), zap.String("entry_id", e.ID))
	return e, nil
}

// Entries - записи сессии, сначала свежие
func (s *JournalService) Entries(ctx context.Context, sess identity.Session) ([]model.JournalEntry, error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("list journal: %w", ledger.ErrUnauthorized)
	}
	return s.load(ctx, sess.UserID)
}

// Watch - живая лента дневника сессии
func (s *JournalService) Watch(ctx context.Context, sess identity.Session) (*ledger.Stream[[]model.JournalEntry], error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("watch journal: %w", ledger.ErrUnauthorized)
	}

	sub, err := s.journals.Watch(ctx, sess.UserID)
	if err != nil {
		return nil, unavailable("watch journal", err)
	}
	return ledger.Follow(ctx, sub, ledger.StreamOptions{
		Name:    "journal",
		Key:     sess.UserID,
		Metrics: s.metrics,
		Logger:  s.logger,
	}, func(ctx context.Context) ([]model.JournalEntry, error) {
		return s.load(ctx, sess.UserID)
	}, func(a, b []model.JournalEntry) bool {
		return slices.EqualFunc(a, b, func(x, y model.JournalEntry) bool {
			return x.ID == y.ID && x.Text == y.Text
		})
	}), nil
}

func (s *JournalService) load(ctx context.Context, userID string) ([]model.JournalEntry, error) {
	entries, err := s.journals.ListByUser(ctx, userID)
	if err != nil {
		return nil, unavailable("list journal", err)
	}
	result := make([]model.JournalEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, *e)
	}
	return result, nil
}
