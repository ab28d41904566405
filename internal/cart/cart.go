// Package cart - корзина аптечных товаров пациента на время сессии
package cart

import (
	"sync"
)

// Item - позиция корзины. Цена в центах.
type Item struct {
	ProductID string `json:"product_id"`
	UnitPrice int64  `json:"unit_price"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
}

// Cart хранит позиции в порядке добавления
type Cart struct {
	mu    sync.Mutex
	items []Item
}

// Add добавляет одну единицу товара; повторное добавление увеличивает количество
func (c *Cart) Add(productID string, unitPrice int64, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity++
			return
		}
	}
	c.items = append(c.items, Item{
		ProductID: productID,
		UnitPrice: unitPrice,
		Category:  category,
		Quantity:  1,
	})
}

// Remove убирает одну единицу товара; false, если товара в корзине нет
func (c *Cart) Remove(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		if c.items[i].Quantity > 1 {
			c.items[i].Quantity--
		} else {
			c.items = append(c.items[:i], c.items[i+1:]...)
		}
		return true
	}
	return false
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// Items возвращает копию позиций
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Total - сумма по корзине в центах
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, it := range c.items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}

// Registry - корзины по пользователям. Корзина живёт до выхода из сессии.
type Registry struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*Cart)}
}

// For возвращает корзину пользователя, создавая её при первом обращении
func (r *Registry) For(uid string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[uid]
	if !ok {
		c = &Cart{}
		r.carts[uid] = c
	}
	return c
}

// Drop удаляет корзину при выходе пользователя
func (r *Registry) Drop(uid string) {
	r.mu.Lock()
	delete(r.carts, uid)
	r.mu.Unlock()
}
