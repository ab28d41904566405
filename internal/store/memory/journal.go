package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// JournalStore - дневник в памяти. Подписки по автору записи.
type JournalStore struct {
	mu      sync.RWMutex
	entries map[string]model.JournalEntry
	hub     *store.Hub
	now     func() time.Time
}

func NewJournalStore() *JournalStore {
	return &JournalStore{
		entries: make(map[string]model.JournalEntry),
		hub:     store.NewHub(),
		now:     time.Now,
	}
}

func (s *JournalStore) Hub() *store.Hub {
	return s.hub
}

func (s *JournalStore) Add(_ context.Context, e *model.JournalEntry) error {
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.entries[e.ID] = *e
	s.mu.Unlock()

	s.hub.Notify(e.UserID)
	return nil
}

func (s *JournalStore) ListByUser(_ context.Context, userID string) ([]*model.JournalEntry, error) {
	s.mu.RLock()
	result := make([]*model.JournalEntry, 0)
	for _, e := range s.entries {
		if e.UserID == userID {
			c := e
			result = append(result, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Newer(result[j]) })
	return result, nil
}

func (s *JournalStore) Watch(_ context.Context, userID string) (store.Subscription, error) {
	return s.hub.Subscribe(userID), nil
}
