package ledger

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// DuplicateBooking - пациент держит несколько действующих броней у одного специалиста
type DuplicateBooking struct {
	OwnerID   string
	PatientID string
	SlotIDs   []string
}

// Audit - сводка по всему реестру для фоновой проверки
type Audit struct {
	ByStatus   map[model.SlotStatus]int
	Duplicates []DuplicateBooking
}

// Audit пересчитывает статусы и ищет двойные брони. Вызывается планировщиком, без сессии.
func (l *Ledger) Audit(ctx context.Context) (*Audit, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.audit")
	defer span.End()

	slots, err := l.slots.Query(ctx, store.Filter{})
	if err != nil {
		fail(span, err)
		return nil, storeErr("audit slots", err)
	}

	type key struct{ owner, patient string }

	a := &Audit{ByStatus: map[model.SlotStatus]int{
		model.SlotStatusAvailable: 0,
		model.SlotStatusBooked:    0,
		model.SlotStatusCanceled:  0,
	}}
	held := make(map[key][]string)

	for _, s := range slots {
		a.ByStatus[s.Status()]++
		if s.IsActiveBooking() && s.PatientID != nil {
			k := key{s.OwnerID, *s.PatientID}
			held[k] = append(held[k], s.ID)
		}
	}

	for k, ids := range held {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		a.Duplicates = append(a.Duplicates, DuplicateBooking{OwnerID: k.owner, PatientID: k.patient, SlotIDs: ids})
	}
	sort.Slice(a.Duplicates, func(i, j int) bool {
		if a.Duplicates[i].OwnerID != a.Duplicates[j].OwnerID {
			return a.Duplicates[i].OwnerID < a.Duplicates[j].OwnerID
		}
		return a.Duplicates[i].PatientID < a.Duplicates[j].PatientID
	})

	for _, d := range a.Duplicates {
		l.logger.Warn("Duplicate active bookings",
			zap.String("owner_id", d.OwnerID),
			zap.String("patient_id", d.PatientID),
			zap.Strings("slot_ids", d.SlotIDs))
	}
	for status, n := range a.ByStatus {
		l.metrics.SlotsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}

	return a, nil
}

// Ping проверяет доступность хранилища
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.slots.Ping(ctx); err != nil {
		return storeErr("ping store", err)
	}
	return nil
}
