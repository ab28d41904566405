package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// Appointment - слот пациента с именем специалиста
type Appointment struct {
	Slot             model.Slot `json:"slot"`
	ProfessionalName string     `json:"professional_name"`
}

// Overview - сводка пациента: ближайший приём, история и счётчики
type Overview struct {
	Next          *Appointment  `json:"next"`
	History       []Appointment `json:"history"`
	BookedCount   int           `json:"booked_count"`
	CanceledCount int           `json:"canceled_count"`
}

// BookingService - сценарии пациента поверх реестра
type BookingService struct {
	ledger   *ledger.Ledger
	profiles store.ProfileStore
	logger   *zap.Logger
}

func NewBookingService(l *ledger.Ledger, profiles store.ProfileStore, logger *zap.Logger) *BookingService {
	return &BookingService{
		ledger:   l,
		profiles: profiles,
		logger:   logger,
	}
}

// Book бронирует слот специалиста. У пациента может быть только одна
// действующая бронь у одного специалиста.
func (s *BookingService) Book(ctx context.Context, sess identity.Session, ownerID, slotID string) error {
	if !sess.IsPatient() {
		return ledger.ErrUnauthorized
	}

	slot, err := s.ledger.Slot(ctx, sess, slotID)
	if err != nil {
		return err
	}
	if slot.OwnerID != ownerID {
		return fmt.Errorf("book slot %s: %w", slotID, ledger.ErrNotFound)
	}

	existing, err := s.ledger.ActiveBooking(ctx, sess, ownerID, sess.UserID)
	if err != nil {
		return fmt.Errorf("check active booking: %w", err)
	}
	if existing != nil {
		return ErrAlreadyBooked
	}

	if err := s.ledger.ClaimSlot(ctx, sess, slotID, sess.UserID); err != nil {
		return err
	}

	s.logger.Info("Booking created",
		zap.String("slot_id", slotID),
		zap.String("owner_id", ownerID),
		zap.String("patient_id", sess.UserID),
	)
	return nil
}

// CancelBooking снимает действующую бронь пациента у специалиста
func (s *BookingService) CancelBooking(ctx context.Context, sess identity.Session, ownerID string) error {
	if !sess.IsPatient() {
		return ledger.ErrUnauthorized
	}

	booking, err := s.ledger.ActiveBooking(ctx, sess, ownerID, sess.UserID)
	if err != nil {
		return fmt.Errorf("get active booking: %w", err)
	}
	if booking == nil {
		return ErrNoActiveBooking
	}

	if err := s.ledger.ReleaseSlot(ctx, sess, booking.ID); err != nil {
		return err
	}

	s.logger.Info("Booking cancelled",
		zap.String("slot_id", booking.ID),
		zap.String("owner_id", ownerID),
		zap.String("patient_id", sess.UserID),
	)
	return nil
}

// Overview собирает сводку пациента на дату today (YYYY-MM-DD)
func (s *BookingService) Overview(ctx context.Context, sess identity.Session, today string) (*Overview, error) {
	if err := ledger.ValidateDate(today); err != nil {
		return nil, err
	}

	slots, err := s.ledger.PatientSlots(ctx, sess, sess.UserID)
	if err != nil {
		return nil, err
	}

	names := newNameCache(s.profiles)
	ov := &Overview{History: make([]Appointment, 0)}

	for _, slot := range slots {
		if slot.Canceled {
			ov.CanceledCount++
		} else {
			ov.BookedCount++
		}

		switch {
		case slot.Date < today:
			name, err := names.get(ctx, slot.OwnerID)
			if err != nil {
				return nil, err
			}
			ov.History = append(ov.History, Appointment{Slot: slot, ProfessionalName: name})
		case slot.IsActiveBooking() && ov.Next == nil:
			// слоты отсортированы по возрастанию, первый подходящий - ближайший
			name, err := names.get(ctx, slot.OwnerID)
			if err != nil {
				return nil, err
			}
			ov.Next = &Appointment{Slot: slot, ProfessionalName: name}
		}
	}

	sort.SliceStable(ov.History, func(i, j int) bool {
		return ov.History[j].Slot.Less(&ov.History[i].Slot)
	})

	return ov, nil
}

const unknownName = "Unknown"

// nameCache подтягивает имена профилей по uid не более одного раза за запрос
type nameCache struct {
	profiles store.ProfileStore
	names    map[string]string
}

func newNameCache(profiles store.ProfileStore) *nameCache {
	return &nameCache{profiles: profiles, names: make(map[string]string)}
}

func (c *nameCache) get(ctx context.Context, uid string) (string, error) {
	if name, ok := c.names[uid]; ok {
		return name, nil
	}

	name := unknownName
	p, err := c.profiles.GetByID(ctx, uid)
	switch {
	case err == nil:
		name = p.Name
	case errors.Is(err, store.ErrNotFound):
	default:
		return "", fmt.Errorf("get profile %s: %w", uid, err)
	}

	c.names[uid] = name
	return name, nil
}
