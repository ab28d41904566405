package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// ProductStore - каталог аптеки в памяти
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]*model.Product
	hub      *store.Hub
	now      func() time.Time
}

func NewProductStore() *ProductStore {
	return &ProductStore{
		products: make(map[string]*model.Product),
		hub:      store.NewHub(),
		now:      time.Now,
	}
}

func (s *ProductStore) Hub() *store.Hub {
	return s.hub
}

func (s *ProductStore) Create(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	if _, ok := s.products[p.ID]; ok {
		s.mu.Unlock()
		return store.ErrConflict
	}
	p.CreatedAt = s.now().UTC()
	s.products[p.ID] = p.Clone()
	s.mu.Unlock()

	s.hub.Notify(p.ID)
	return nil
}

func (s *ProductStore) Get(_ context.Context, id string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *ProductStore) Exists(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.products[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (s *ProductStore) List(_ context.Context) ([]*model.Product, error) {
	s.mu.RLock()
	result := make([]*model.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *ProductStore) SetStock(_ context.Context, id string, price int64, stock int) (*model.Product, error) {
	s.mu.Lock()
	p, ok := s.products[id]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	p.Price = price
	p.Stock = stock
	result := p.Clone()
	s.mu.Unlock()

	s.hub.Notify(id)
	return result, nil
}

func (s *ProductStore) Watch(context.Context) (store.Subscription, error) {
	return s.hub.Subscribe(store.AllOwners), nil
}
