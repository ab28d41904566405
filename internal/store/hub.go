package store

import (
	"sync"
)

// AllOwners - тема, подписчики которой получают изменения любых владельцев
const AllOwners = ""

// Hub раздаёт уведомления об изменениях подписчикам по владельцу (owner id -> подписчики)
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*hubSub]struct{}
}

// NewHub создаёт пустой хаб
func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*hubSub]struct{}),
	}
}

// Subscribe регистрирует подписчика на изменения владельца
func (h *Hub) Subscribe(ownerID string) Subscription {
	sub := &hubSub{
		hub:   h,
		topic: ownerID,
		ch:    make(chan struct{}, 1),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[ownerID] == nil {
		h.topics[ownerID] = make(map[*hubSub]struct{})
	}
	h.topics[ownerID][sub] = struct{}{}

	return sub
}

// Notify сигнализирует подписчикам владельца и подписчикам всех владельцев.
// Сигналы склеиваются: подписчик, не успевший прочитать, получит один сигнал.
func (h *Hub) Notify(ownerID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[ownerID] {
		sub.signal()
	}
	if ownerID != AllOwners {
		for sub := range h.topics[AllOwners] {
			sub.signal()
		}
	}
}

// NotifyAll сигнализирует всем подписчикам. Нужен после восстановления
// источника уведомлений: изменения за время разрыва могли не дойти.
func (h *Hub) NotifyAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, subs := range h.topics {
		for sub := range subs {
			sub.signal()
		}
	}
}

// Fail завершает все текущие подписки с ошибкой
func (h *Hub) Fail(err error) {
	h.mu.Lock()
	topics := h.topics
	h.topics = make(map[string]map[*hubSub]struct{})
	h.mu.Unlock()

	for _, subs := range topics {
		for sub := range subs {
			sub.terminate(err)
		}
	}
}

// Count возвращает число подписчиков владельца
func (h *Hub) Count(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[ownerID])
}

func (h *Hub) remove(sub *hubSub) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.topic)
		}
	}
}

type hubSub struct {
	hub   *Hub
	topic string
	ch    chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *hubSub) C() <-chan struct{} { return s.ch }

func (s *hubSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *hubSub) Close() {
	s.hub.remove(s)
	s.terminate(nil)
}

func (s *hubSub) signal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *hubSub) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}
