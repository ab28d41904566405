package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store/memory"
)

type env struct {
	profiles     *ProfileService
	bookings     *BookingService
	professional *ProfessionalService
	ledger       *ledger.Ledger
	slots        *memory.SlotStore
	store        *memory.ProfileStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	slots := memory.NewSlotStore()
	profiles := memory.NewProfileStore()
	l := ledger.New(slots, nil, nil, logger)

	ps := NewProfileService(profiles, logger)
	ps.cost = bcrypt.MinCost
	ps.now = func() time.Time { return time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC) }

	return &env{
		profiles:     ps,
		bookings:     NewBookingService(l, profiles, logger),
		professional: NewProfessionalService(l, profiles, logger),
		ledger:       l,
		slots:        slots,
		store:        profiles,
	}
}

func (e *env) professionalSession(t *testing.T, name string) identity.Session {
	t.Helper()
	p, err := e.profiles.SignupProfessional(context.Background(), name, name+"@clinic.test", "secret1")
	require.NoError(t, err)
	return identity.Session{UserID: p.UID, Role: p.Role}
}

func (e *env) patientSession(t *testing.T, name string) identity.Session {
	t.Helper()
	p, err := e.profiles.SignupPatient(context.Background(), name, name+"@mail.test", "secret1", "1990-01-01")
	require.NoError(t, err)
	return identity.Session{UserID: p.UID, Role: p.Role}
}

func TestProfileService_SignupAndLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.profiles.SignupPatient(ctx, " Alice ", "alice@mail.test", "secret1", "2010-03-01")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, model.RolePatient, p.Role)
	assert.NotEqual(t, "secret1", p.PasswordHash)
	assert.Equal(t, model.AgeYouth, e.profiles.AgeCategory(p))

	_, err = e.profiles.SignupPatient(ctx, "Alice 2", "ALICE@mail.test", "secret1", "2010-03-01")
	assert.ErrorIs(t, err, ErrEmailTaken)

	logged, err := e.profiles.Login(ctx, "alice@mail.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, p.UID, logged.UID)

	_, err = e.profiles.Login(ctx, "alice@mail.test", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.profiles.Login(ctx, "nobody@mail.test", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := e.profiles.Session(ctx, p.UID)
	require.NoError(t, err)
	assert.Equal(t, identity.Session{UserID: p.UID, Role: model.RolePatient}, sess)

	_, err = e.profiles.Session(ctx, "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfileService_SignupValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		user      string
		email     string
		password  string
		birthDate string
		field     string
	}{
		{"empty name", "", "a@mail.test", "secret1", "1990-01-01", "name"},
		{"bad email", "A", "not-an-email", "secret1", "1990-01-01", "email"},
		{"short password", "A", "a@mail.test", "123", "1990-01-01", "password"},
		{"missing birth date", "A", "a@mail.test", "secret1", "", "birth_date"},
		{"malformed birth date", "A", "a@mail.test", "secret1", "01/01/1990", "birth_date"},
		{"future birth date", "A", "a@mail.test", "secret1", "2030-01-01", "birth_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.profiles.SignupPatient(ctx, tt.user, tt.email, tt.password, tt.birthDate)
			var ve *ledger.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestProfileService_RegisterTelegram(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	none, err := e.profiles.GetByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, none)

	p, err := e.profiles.RegisterTelegram(ctx, 42, "Bob", model.RolePatient, "1950-07-01")
	require.NoError(t, err)
	assert.Equal(t, model.AgeSenior, e.profiles.AgeCategory(p))

	again, err := e.profiles.RegisterTelegram(ctx, 42, "Bobby", model.RolePatient, "")
	require.NoError(t, err)
	assert.Equal(t, p.UID, again.UID)
	assert.Equal(t, "Bobby", again.Name)
	assert.Equal(t, "1950-07-01", again.BirthDate)

	_, err = e.profiles.RegisterTelegram(ctx, 42, "Bob", model.RoleProfessional, "")
	assert.ErrorIs(t, err, ErrTelegramRegistered)

	_, err = e.profiles.RegisterTelegram(ctx, 43, "Eve", model.RolePatient, "")
	assert.True(t, ledger.IsValidation(err))

	pro, err := e.profiles.RegisterTelegram(ctx, 44, "Dr. House", model.RoleProfessional, "")
	require.NoError(t, err)

	list, err := e.profiles.ListProfessionals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pro.UID, list[0].UID)
}

func TestProfileService_UpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := e.patientSession(t, "carol")

	p, err := e.profiles.UpdateProfile(ctx, sess, "Carol", "2000-02-29")
	require.NoError(t, err)
	assert.Equal(t, "Carol", p.Name)
	assert.Equal(t, "2000-02-29", p.BirthDate)

	_, err = e.profiles.UpdateProfile(ctx, sess, "", "tomorrow")
	assert.True(t, ledger.IsValidation(err))

	_, err = e.profiles.UpdateProfile(ctx, identity.Session{}, "X", "")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

func TestBookingService_SingleActiveBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pro := e.professionalSession(t, "house")
	patient := e.patientSession(t, "alice")

	first, err := e.professional.Publish(ctx, pro, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)
	second, err := e.professional.Publish(ctx, pro, "2025-06-01", "10:00", "11:00")
	require.NoError(t, err)

	require.NoError(t, e.bookings.Book(ctx, patient, pro.UserID, first.ID))
	assert.ErrorIs(t, e.bookings.Book(ctx, patient, pro.UserID, second.ID), ErrAlreadyBooked)

	// бронь у другого специалиста разрешена
	other := e.professionalSession(t, "wilson")
	otherSlot, err := e.professional.Publish(ctx, other, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)
	require.NoError(t, e.bookings.Book(ctx, patient, other.UserID, otherSlot.ID))

	// слот другого специалиста под чужим ownerID не бронируется
	assert.ErrorIs(t, e.bookings.Book(ctx, patient, pro.UserID, otherSlot.ID), ledger.ErrNotFound)

	require.NoError(t, e.bookings.CancelBooking(ctx, patient, pro.UserID))
	assert.ErrorIs(t, e.bookings.CancelBooking(ctx, patient, pro.UserID), ErrNoActiveBooking)

	require.NoError(t, e.bookings.Book(ctx, patient, pro.UserID, second.ID))

	assert.ErrorIs(t, e.bookings.Book(ctx, pro, pro.UserID, first.ID), ledger.ErrUnauthorized)
}

func TestBookingService_TakenSlot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pro := e.professionalSession(t, "house")
	alice := e.patientSession(t, "alice")
	bob := e.patientSession(t, "bob")

	slot, err := e.professional.Publish(ctx, pro, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)

	require.NoError(t, e.bookings.Book(ctx, alice, pro.UserID, slot.ID))
	assert.ErrorIs(t, e.bookings.Book(ctx, bob, pro.UserID, slot.ID), ledger.ErrSlotUnavailable)
}

func TestBookingService_Overview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pro := e.professionalSession(t, "house")
	patient := e.patientSession(t, "alice")
	pid := patient.UserID

	put := func(id, date string, canceled bool) {
		e.slots.Put(&model.Slot{
			ID: id, OwnerID: pro.UserID, Date: date, StartTime: "09:00", EndTime: "10:00",
			Booked: true, Canceled: canceled, PatientID: &pid,
		})
	}
	put("old-1", "2025-04-01", false)
	put("old-2", "2025-05-01", true)
	put("next", "2025-06-01", false)
	put("later", "2025-06-10", false)
	put("gone", "2025-05-25", true)
	e.slots.Put(&model.Slot{ID: "orphan", OwnerID: "deleted-pro", Date: "2025-03-01", StartTime: "09:00", EndTime: "10:00", Booked: true, PatientID: &pid})

	ov, err := e.bookings.Overview(ctx, patient, "2025-05-20")
	require.NoError(t, err)

	require.NotNil(t, ov.Next)
	assert.Equal(t, "next", ov.Next.Slot.ID)
	assert.Equal(t, "house", ov.Next.ProfessionalName)

	require.Len(t, ov.History, 3)
	assert.Equal(t, "old-2", ov.History[0].Slot.ID)
	assert.Equal(t, "old-1", ov.History[1].Slot.ID)
	assert.Equal(t, "orphan", ov.History[2].Slot.ID)
	assert.Equal(t, "Unknown", ov.History[2].ProfessionalName)

	assert.Equal(t, 4, ov.BookedCount)
	assert.Equal(t, 2, ov.CanceledCount)

	_, err = e.bookings.Overview(ctx, patient, "20.05.2025")
	assert.True(t, ledger.IsValidation(err))
}

func TestProfessionalService_Dashboard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pro := e.professionalSession(t, "house")
	alice := e.patientSession(t, "alice")

	free, err := e.professional.Publish(ctx, pro, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)
	booked, err := e.professional.Publish(ctx, pro, "2025-06-01", "10:00", "11:00")
	require.NoError(t, err)
	withdrawn, err := e.professional.Publish(ctx, pro, "2025-06-02", "09:00", "10:00")
	require.NoError(t, err)

	require.NoError(t, e.bookings.Book(ctx, alice, pro.UserID, booked.ID))
	require.NoError(t, e.professional.Withdraw(ctx, pro, withdrawn.ID))

	d, err := e.professional.Dashboard(ctx, pro, ledger.SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Available: 1, Booked: 1, Canceled: 1}, d.Stats)
	require.Len(t, d.Entries, 3)
	assert.Equal(t, free.ID, d.Entries[0].Slot.ID)
	assert.Equal(t, "alice", d.Entries[1].PatientName)
	assert.Equal(t, model.SlotStatusCanceled, d.Entries[2].Status)

	onlyBooked, err := e.professional.Dashboard(ctx, pro, ledger.SlotFilter{Status: model.SlotStatusBooked})
	require.NoError(t, err)
	assert.Equal(t, 3, onlyBooked.Stats.Total)
	require.Len(t, onlyBooked.Entries, 1)
	assert.Equal(t, booked.ID, onlyBooked.Entries[0].Slot.ID)

	require.NoError(t, e.professional.Release(ctx, pro, booked.ID))
	d, err = e.professional.Dashboard(ctx, pro, ledger.SlotFilter{Date: "2025-06-01"})
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Available: 2, Booked: 0, Canceled: 1}, d.Stats)
	assert.Len(t, d.Entries, 2)

	_, err = e.professional.Dashboard(ctx, alice, ledger.SlotFilter{})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}
