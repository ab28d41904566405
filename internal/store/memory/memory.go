// Package memory - хранилище в памяти процесса для тестов и локального запуска без БД
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// SlotStore хранит слоты в map под одним мьютексом; UpdateIf выполняется под блокировкой
type SlotStore struct {
	mu    sync.RWMutex
	slots map[string]*model.Slot
	hub   *store.Hub
	now   func() time.Time
}

func NewSlotStore() *SlotStore {
	return &SlotStore{
		slots: make(map[string]*model.Slot),
		hub:   store.NewHub(),
		now:   time.Now,
	}
}

// Hub возвращает хаб уведомлений (нужен тестам для имитации сбоев)
func (s *SlotStore) Hub() *store.Hub {
	return s.hub
}

// Put кладёт слот как есть, без генерации ID. Используется для подготовки данных.
func (s *SlotStore) Put(slot *model.Slot) {
	s.mu.Lock()
	s.slots[slot.ID] = slot.Clone()
	s.mu.Unlock()

	s.hub.Notify(slot.OwnerID)
}

func (s *SlotStore) Insert(_ context.Context, slot *model.Slot) error {
	slot.ID = uuid.NewString()
	slot.CreatedAt = s.now().UTC()

	s.mu.Lock()
	s.slots[slot.ID] = slot.Clone()
	s.mu.Unlock()

	s.hub.Notify(slot.OwnerID)
	return nil
}

func (s *SlotStore) Get(_ context.Context, slotID string) (*model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slot.Clone(), nil
}

func (s *SlotStore) UpdateIf(_ context.Context, slotID string, cond store.Condition, upd store.Update) (*model.Slot, error) {
	s.mu.Lock()
	slot, ok := s.slots[slotID]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	if !cond.Holds(slot) {
		s.mu.Unlock()
		return nil, store.ErrConditionFailed
	}
	upd.Apply(slot)
	result := slot.Clone()
	s.mu.Unlock()

	s.hub.Notify(result.OwnerID)
	return result, nil
}

func (s *SlotStore) Query(_ context.Context, f store.Filter) ([]*model.Slot, error) {
	s.mu.RLock()
	result := make([]*model.Slot, 0)
	for _, slot := range s.slots {
		if f.Match(slot) {
			result = append(result, slot.Clone())
		}
	}
	s.mu.RUnlock()

	f.Sort(result)
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (s *SlotStore) Watch(_ context.Context, ownerID string) (store.Subscription, error) {
	return s.hub.Subscribe(ownerID), nil
}

func (s *SlotStore) Ping(context.Context) error {
	return nil
}

// ProfileStore - профили в памяти
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*model.Profile
	now      func() time.Time
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*model.Profile),
		now:      time.Now,
	}
}

func (s *ProfileStore) Create(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.profiles {
		if p.Email != "" && strings.EqualFold(existing.Email, p.Email) {
			return store.ErrConflict
		}
		if p.TelegramID != nil && existing.TelegramID != nil && *existing.TelegramID == *p.TelegramID {
			return store.ErrConflict
		}
	}

	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	p.CreatedAt = s.now().UTC()
	s.profiles[p.UID] = cloneProfile(p)
	return nil
}

func (s *ProfileStore) GetByID(_ context.Context, uid string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *ProfileStore) GetByEmail(_ context.Context, email string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if p.Email != "" && strings.EqualFold(p.Email, email) {
			return cloneProfile(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *ProfileStore) GetByTelegramID(_ context.Context, telegramID int64) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.profiles {
		if p.TelegramID != nil && *p.TelegramID == telegramID {
			return cloneProfile(p), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *ProfileStore) ListByRole(_ context.Context, role model.Role) ([]*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Profile, 0)
	for _, p := range s.profiles {
		if p.Role == role {
			result = append(result, cloneProfile(p))
		}
	}
	sortProfiles(result)
	return result, nil
}

func (s *ProfileStore) Update(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[p.UID]
	if !ok {
		return store.ErrNotFound
	}
	// роль и email не меняются после создания
	updated := cloneProfile(p)
	existing.Name = updated.Name
	existing.BirthDate = updated.BirthDate
	existing.TelegramID = updated.TelegramID
	existing.PasswordHash = updated.PasswordHash
	return nil
}

func cloneProfile(p *model.Profile) *model.Profile {
	c := *p
	if p.TelegramID != nil {
		id := *p.TelegramID
		c.TelegramID = &id
	}
	return &c
}

func sortProfiles(ps []*model.Profile) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].UID < ps[j].UID
	})
}
