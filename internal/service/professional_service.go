package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// Stats - счётчики слотов специалиста по статусам
type Stats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Booked    int `json:"booked"`
	Canceled  int `json:"canceled"`
}

// DashboardEntry - слот журнала; у забронированных указано имя пациента
type DashboardEntry struct {
	Slot        model.Slot       `json:"slot"`
	Status      model.SlotStatus `json:"status"`
	PatientName string           `json:"patient_name,omitempty"`
}

type Dashboard struct {
	Stats   Stats            `json:"stats"`
	Entries []DashboardEntry `json:"entries"`
}

// ProfessionalService - сценарии специалиста
type ProfessionalService struct {
	ledger   *ledger.Ledger
	profiles store.ProfileStore
	logger   *zap.Logger
}

func NewProfessionalService(l *ledger.Ledger, profiles store.ProfileStore, logger *zap.Logger) *ProfessionalService {
	return &ProfessionalService{
		ledger:   l,
		profiles: profiles,
		logger:   logger,
	}
}

// Dashboard возвращает статистику по всем слотам и записи, отобранные фильтром
func (s *ProfessionalService) Dashboard(ctx context.Context, sess identity.Session, f ledger.SlotFilter) (*Dashboard, error) {
	all, err := s.ledger.OwnerSlots(ctx, sess, sess.UserID, ledger.SlotFilter{})
	if err != nil {
		return nil, err
	}

	selected := all
	if f != (ledger.SlotFilter{}) {
		if selected, err = s.ledger.OwnerSlots(ctx, sess, sess.UserID, f); err != nil {
			return nil, err
		}
	}

	d := &Dashboard{
		Stats:   computeStats(all),
		Entries: make([]DashboardEntry, 0, len(selected)),
	}

	names := newNameCache(s.profiles)
	for _, slot := range selected {
		entry := DashboardEntry{Slot: slot, Status: slot.Status()}
		if slot.PatientID != nil {
			name, err := names.get(ctx, *slot.PatientID)
			if err != nil {
				return nil, err
			}
			entry.PatientName = name
		}
		d.Entries = append(d.Entries, entry)
	}

	return d, nil
}

// Publish публикует слот от имени специалиста
func (s *ProfessionalService) Publish(ctx context.Context, sess identity.Session, date, startTime, endTime string) (*model.Slot, error) {
	return s.ledger.PublishSlot(ctx, sess, sess.UserID, date, startTime, endTime)
}

// Withdraw отзывает свой слот
func (s *ProfessionalService) Withdraw(ctx context.Context, sess identity.Session, slotID string) error {
	return s.ledger.WithdrawSlot(ctx, sess, sess.UserID, slotID)
}

// Release снимает бронь пациента со своего слота
func (s *ProfessionalService) Release(ctx context.Context, sess identity.Session, slotID string) error {
	return s.ledger.ReleaseSlot(ctx, sess, slotID)
}

func computeStats(slots []model.Slot) Stats {
	st := Stats{Total: len(slots)}
	for _, slot := range slots {
		switch slot.Status() {
		case model.SlotStatusAvailable:
			st.Available++
		case model.SlotStatusBooked:
			st.Booked++
		case model.SlotStatusCanceled:
			st.Canceled++
		}
	}
	return st
}
