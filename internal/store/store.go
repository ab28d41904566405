// Package store описывает коллаборатор "документное хранилище": слоты,
// сгруппированные по владельцу, профили пользователей и живые подписки на изменения.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/Freeeeeet/felanocare/internal/model"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrConditionFailed = errors.New("update condition failed")
	ErrConflict        = errors.New("document already exists")
)

// Order - сортировка результатов запроса
type Order int

const (
	OrderAsc  Order = iota // date, start_time, id по возрастанию
	OrderDesc              // date, start_time, id по убыванию
)

// Filter - равенства и диапазоны по полям слота. Пустые поля не фильтруют.
type Filter struct {
	OwnerID    string
	PatientID  string
	Date       string
	DateFrom   string // date >= DateFrom
	DateBefore string // date < DateBefore
	Booked     *bool
	Canceled   *bool
	Order      Order
	Limit      int
}

// Match проверяет слот против фильтра
func (f Filter) Match(s *model.Slot) bool {
	if f.OwnerID != "" && s.OwnerID != f.OwnerID {
		return false
	}
	if f.PatientID != "" && !s.HeldBy(f.PatientID) {
		return false
	}
	if f.Date != "" && s.Date != f.Date {
		return false
	}
	if f.DateFrom != "" && s.Date < f.DateFrom {
		return false
	}
	if f.DateBefore != "" && s.Date >= f.DateBefore {
		return false
	}
	if f.Booked != nil && s.Booked != *f.Booked {
		return false
	}
	if f.Canceled != nil && s.Canceled != *f.Canceled {
		return false
	}
	return true
}

// Sort упорядочивает слоты согласно Order
func (f Filter) Sort(slots []*model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if f.Order == OrderDesc {
			return slots[j].Less(slots[i])
		}
		return slots[i].Less(slots[j])
	})
}

// Condition - равенства, которые должны выполняться в момент применения обновления
type Condition struct {
	OwnerID   string
	PatientID string
	Booked    *bool
	Canceled  *bool
}

// Holds проверяет условие на текущем состоянии слота
func (c Condition) Holds(s *model.Slot) bool {
	if c.OwnerID != "" && s.OwnerID != c.OwnerID {
		return false
	}
	if c.PatientID != "" && !s.HeldBy(c.PatientID) {
		return false
	}
	if c.Booked != nil && s.Booked != *c.Booked {
		return false
	}
	if c.Canceled != nil && s.Canceled != *c.Canceled {
		return false
	}
	return true
}

// Update - изменяемые поля. ClearPatient обнуляет patient_id.
type Update struct {
	Booked       *bool
	Canceled     *bool
	PatientID    *string
	ClearPatient bool
}

// Apply применяет обновление к слоту
func (u Update) Apply(s *model.Slot) {
	if u.Booked != nil {
		s.Booked = *u.Booked
	}
	if u.Canceled != nil {
		s.Canceled = *u.Canceled
	}
	if u.PatientID != nil {
		p := *u.PatientID
		s.PatientID = &p
	}
	if u.ClearPatient {
		s.PatientID = nil
	}
}

// Bool - указатель на значение для Filter/Condition/Update
func Bool(v bool) *bool { return &v }

// String - указатель на строку для Update
func String(v string) *string { return &v }

// Subscription - сигнал об изменениях документов владельца.
// C() закрывается при завершении подписки; Err() != nil, если она оборвалась из-за сбоя.
type Subscription interface {
	C() <-chan struct{}
	Err() error
	Close()
}

// SlotStore - слоты по пути owner/{ownerId}/availability/{slotId}
type SlotStore interface {
	// Insert назначает ID и CreatedAt
	Insert(ctx context.Context, slot *model.Slot) error
	Get(ctx context.Context, slotID string) (*model.Slot, error)
	// UpdateIf атомарно применяет upd, только если cond выполняется
	UpdateIf(ctx context.Context, slotID string, cond Condition, upd Update) (*model.Slot, error)
	Query(ctx context.Context, f Filter) ([]*model.Slot, error)
	// Watch подписывается на изменения слотов владельца; "" - на всех владельцев
	Watch(ctx context.Context, ownerID string) (Subscription, error)
	Ping(ctx context.Context) error
}

// ProfileStore - таблица профилей пользователей
type ProfileStore interface {
	Create(ctx context.Context, p *model.Profile) error
	GetByID(ctx context.Context, uid string) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.Profile, error)
	ListByRole(ctx context.Context, role model.Role) ([]*model.Profile, error)
	Update(ctx context.Context, p *model.Profile) error
}

// JournalStore - записи дневника по пути journals/{entryId}, сгруппированные по автору
type JournalStore interface {
	// Add назначает ID и CreatedAt
	Add(ctx context.Context, e *model.JournalEntry) error
	// ListByUser - записи автора, сначала свежие
	ListByUser(ctx context.Context, userID string) ([]*model.JournalEntry, error)
	Watch(ctx context.Context, userID string) (Subscription, error)
}

// ProductStore - каталог аптеки. ID позиции задаёт вызывающий.
type ProductStore interface {
	// Create возвращает ErrConflict, если позиция с таким ID уже есть
	Create(ctx context.Context, p *model.Product) error
	Get(ctx context.Context, id string) (*model.Product, error)
	// Exists - какие из ids уже есть в каталоге
	Exists(ctx context.Context, ids []string) (map[string]bool, error)
	// List - весь каталог по имени
	List(ctx context.Context) ([]*model.Product, error)
	// SetStock меняет цену и остаток
	SetStock(ctx context.Context, id string, price int64, stock int) (*model.Product, error)
	// Watch сигналит о любом изменении каталога
	Watch(ctx context.Context) (Subscription, error)
}
