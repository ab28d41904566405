package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
)

// SlotFilter - выборка для журнала специалиста
type SlotFilter struct {
	Date       string
	DateFrom   string
	DateBefore string
	Status     model.SlotStatus // "" - все статусы
}

func (f SlotFilter) apply(sf *store.Filter) error {
	sf.Date = f.Date
	sf.DateFrom = f.DateFrom
	sf.DateBefore = f.DateBefore

	switch f.Status {
	case "":
	case model.SlotStatusAvailable:
		sf.Booked, sf.Canceled = store.Bool(false), store.Bool(false)
	case model.SlotStatusBooked:
		sf.Booked, sf.Canceled = store.Bool(true), store.Bool(false)
	case model.SlotStatusCanceled:
		sf.Canceled = store.Bool(true)
	default:
		return &ValidationError{Field: "status", Reason: "expected available, booked or canceled"}
	}
	return nil
}

// Slot возвращает слот по id
func (l *Ledger) Slot(ctx context.Context, sess identity.Session, slotID string) (*model.Slot, error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("get slot: %w", ErrUnauthorized)
	}
	slot, err := l.slots.Get(ctx, slotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get slot %s: %w", slotID, ErrNotFound)
		}
		return nil, storeErr("get slot", err)
	}
	return slot, nil
}

// AvailableSlots - свободные слоты владельца по (date, start_time)
func (l *Ledger) AvailableSlots(ctx context.Context, sess identity.Session, ownerID string) ([]model.Slot, error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("available slots: %w", ErrUnauthorized)
	}
	if err := requireID("owner_id", ownerID); err != nil {
		return nil, err
	}
	return l.query(ctx, "available slots", store.Filter{
		OwnerID:  ownerID,
		Booked:   store.Bool(false),
		Canceled: store.Bool(false),
	})
}

// SlotsForDate - свободные слоты владельца на дату
func (l *Ledger) SlotsForDate(ctx context.Context, sess identity.Session, ownerID, date string) ([]model.Slot, error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("slots for date: %w", ErrUnauthorized)
	}
	if err := requireID("owner_id", ownerID); err != nil {
		return nil, err
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	return l.query(ctx, "slots for date", store.Filter{
		OwnerID:  ownerID,
		Date:     date,
		Booked:   store.Bool(false),
		Canceled: store.Bool(false),
	})
}

// AvailableDates - даты, на которые есть хотя бы один свободный слот
func (l *Ledger) AvailableDates(ctx context.Context, sess identity.Session, ownerID string) ([]string, error) {
	slots, err := l.AvailableSlots(ctx, sess, ownerID)
	if err != nil {
		return nil, err
	}
	return distinctDates(slots), nil
}

// ActiveBooking возвращает действующую бронь пациента у специалиста или nil.
// Несколько броней - нарушение инварианта: берётся слот с меньшим id.
func (l *Ledger) ActiveBooking(ctx context.Context, sess identity.Session, ownerID, patientID string) (*model.Slot, error) {
	if err := bookingArgs("active booking", sess, ownerID, patientID); err != nil {
		return nil, err
	}
	if !canSeeBooking(sess, ownerID, patientID) {
		return nil, fmt.Errorf("active booking: %w", ErrUnauthorized)
	}

	slots, err := l.query(ctx, "active booking", store.Filter{
		OwnerID:   ownerID,
		PatientID: patientID,
		Booked:    store.Bool(true),
		Canceled:  store.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}

	pick := slots[0]
	for _, s := range slots[1:] {
		if s.ID < pick.ID {
			pick = s
		}
	}

	if len(slots) > 1 {
		l.metrics.BookingAnomalies.Inc()
		l.logger.Warn("Patient holds several active bookings",
			zap.String("owner_id", ownerID),
			zap.String("patient_id", patientID),
			zap.Int("count", len(slots)),
			zap.String("picked_slot_id", pick.ID))
	}

	return &pick, nil
}

// OwnerSlots - журнал специалиста: все его слоты с фильтром по дате и статусу
func (l *Ledger) OwnerSlots(ctx context.Context, sess identity.Session, ownerID string, f SlotFilter) ([]model.Slot, error) {
	if err := requireID("owner_id", ownerID); err != nil {
		return nil, err
	}
	if !sess.Is(ownerID, model.RoleProfessional) {
		return nil, fmt.Errorf("owner slots: %w", ErrUnauthorized)
	}

	sf := store.Filter{OwnerID: ownerID}
	if err := f.apply(&sf); err != nil {
		return nil, err
	}
	return l.query(ctx, "owner slots", sf)
}

// PatientSlots - все слоты пациента у всех специалистов, включая отозванные
func (l *Ledger) PatientSlots(ctx context.Context, sess identity.Session, patientID string) ([]model.Slot, error) {
	if err := requireID("patient_id", patientID); err != nil {
		return nil, err
	}
	if !sess.Is(patientID, model.RolePatient) {
		return nil, fmt.Errorf("patient slots: %w", ErrUnauthorized)
	}
	return l.query(ctx, "patient slots", store.Filter{PatientID: patientID})
}

// ListAvailableSlots - живой поток свободных слотов владельца
func (l *Ledger) ListAvailableSlots(ctx context.Context, sess identity.Session, ownerID string) (*Stream[[]model.Slot], error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("list available slots: %w", ErrUnauthorized)
	}
	if err := requireID("owner_id", ownerID); err != nil {
		return nil, err
	}
	return watch(ctx, l, "available_slots", ownerID, func(ctx context.Context) ([]model.Slot, error) {
		return l.AvailableSlots(ctx, sess, ownerID)
	}, slotsEqual)
}

// ListSlotsForDate - живой поток свободных слотов на дату
func (l *Ledger) ListSlotsForDate(ctx context.Context, sess identity.Session, ownerID, date string) (*Stream[[]model.Slot], error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("list slots for date: %w", ErrUnauthorized)
	}
	if err := requireID("owner_id", ownerID); err != nil {
		return nil, err
	}
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	return watch(ctx, l, "slots_for_date", ownerID, func(ctx context.Context) ([]model.Slot, error) {
		return l.SlotsForDate(ctx, sess, ownerID, date)
	}, slotsEqual)
}

// ListAvailableDates - живой поток дат со свободными слотами
func (l *Ledger) ListAvailableDates(ctx context.Context, sess identity.Session, ownerID string) (*Stream[[]string], error) {
	if !sess.Valid() {
		return nil, fmt.Errorf("list available dates: %w", ErrUnauthorized)
	}
	if err := requireID("owner_id", ownerID); err != nil {
		return nil, err
	}
	return watch(ctx, l, "available_dates", ownerID, func(ctx context.Context) ([]string, error) {
		return l.AvailableDates(ctx, sess, ownerID)
	}, slices.Equal[[]string])
}

// FindActiveBookingForPatient - живой поток действующей брони пациента (nil - брони нет)
func (l *Ledger) FindActiveBookingForPatient(ctx context.Context, sess identity.Session, ownerID, patientID string) (*Stream[*model.Slot], error) {
	if err := bookingArgs("find active booking", sess, ownerID, patientID); err != nil {
		return nil, err
	}
	if !canSeeBooking(sess, ownerID, patientID) {
		return nil, fmt.Errorf("find active booking: %w", ErrUnauthorized)
	}
	return watch(ctx, l, "active_booking", ownerID, func(ctx context.Context) (*model.Slot, error) {
		return l.ActiveBooking(ctx, sess, ownerID, patientID)
	}, (*model.Slot).Equal)
}

func (l *Ledger) query(ctx context.Context, op string, f store.Filter) ([]model.Slot, error) {
	found, err := l.slots.Query(ctx, f)
	if err != nil {
		return nil, storeErr(op, err)
	}

	out := make([]model.Slot, 0, len(found))
	for _, s := range found {
		out = append(out, *s)
	}
	return out, nil
}

// requireID отсекает пустой идентификатор: в фильтре хранилища пустое поле
// означает "без фильтра", а подписка на "" получает изменения всех владельцев.
func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	return nil
}

func bookingArgs(op string, sess identity.Session, ownerID, patientID string) error {
	if !sess.Valid() {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	if err := requireID("owner_id", ownerID); err != nil {
		return err
	}
	return requireID("patient_id", patientID)
}

func canSeeBooking(sess identity.Session, ownerID, patientID string) bool {
	return sess.Is(patientID, model.RolePatient) || sess.Is(ownerID, model.RoleProfessional)
}

func distinctDates(slots []model.Slot) []string {
	dates := make([]string, 0, len(slots))
	for _, s := range slots {
		if len(dates) == 0 || dates[len(dates)-1] != s.Date {
			dates = append(dates, s.Date)
		}
	}
	return dates
}

func slotsEqual(a, b []model.Slot) bool {
	return slices.EqualFunc(a, b, func(x, y model.Slot) bool {
		return x.Equal(&y)
	})
}
