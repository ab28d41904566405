// Package events публикует события жизненного цикла слотов во внешний поток
package events

import (
	"context"
	"time"
)

type Type string

const (
	SlotPublished Type = "slot.published"
	SlotClaimed   Type = "slot.claimed"
	SlotReleased  Type = "slot.released"
	SlotWithdrawn Type = "slot.withdrawn"
)

// SlotEvent - событие по слоту. Ключ партиционирования - OwnerID.
type SlotEvent struct {
	Type       Type      `json:"type"`
	SlotID     string    `json:"slot_id"`
	OwnerID    string    `json:"owner_id"`
	PatientID  string    `json:"patient_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher доставляет события; ошибки доставки не влияют на операции леджера
type Publisher interface {
	Publish(ctx context.Context, e SlotEvent) error
	Close()
}

// Nop отбрасывает события (Kafka не настроена)
type Nop struct{}

func (Nop) Publish(context.Context, SlotEvent) error { return nil }
func (Nop) Close()                                   {}
