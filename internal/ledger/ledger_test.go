package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Freeeeeet/felanocare/internal/events"
	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/metrics"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/store"
	"github.com/Freeeeeet/felanocare/internal/store/memory"
)

var (
	pro      = identity.Session{UserID: "pro-1", Role: model.RoleProfessional}
	otherPro = identity.Session{UserID: "pro-2", Role: model.RoleProfessional}
	alice    = identity.Session{UserID: "alice", Role: model.RolePatient}
	bob      = identity.Session{UserID: "bob", Role: model.RolePatient}
)

type recorder struct {
	mu     sync.Mutex
	events []events.SlotEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.SlotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) Close() {}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ledger  *Ledger
	slots   *memory.SlotStore
	events  *recorder
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	slots := memory.NewSlotStore()
	rec := &recorder{}
	m := metrics.NewUnregistered()
	return &fixture{
		ledger:  New(slots, rec, m, zaptest.NewLogger(t)),
		slots:   slots,
		events:  rec,
		metrics: m,
	}
}

func (f *fixture) publish(t *testing.T, date, start, end string) *model.Slot {
	t.Helper()
	slot, err := f.ledger.PublishSlot(context.Background(), pro, pro.UserID, date, start, end)
	require.NoError(t, err)
	return slot
}

func recv[T any](t *testing.T, s *Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C():
		require.True(t, ok, "stream closed unexpectedly: %v", s.Err())
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no emission from stream")
	}
	var zero T
	return zero
}

func assertQuiet[T any](t *testing.T, s *Stream[T]) {
	t.Helper()
	select {
	case v := <-s.C():
		t.Fatalf("unexpected emission: %v", v)
	case <-time.After(100 * time.Millisecond):
	}
}

func ids(slots []model.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.ID)
	}
	return out
}

func TestPublishSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot, err := f.ledger.PublishSlot(ctx, pro, pro.UserID, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)
	assert.NotEmpty(t, slot.ID)
	assert.Equal(t, model.SlotStatusAvailable, slot.Status())
	assert.Nil(t, slot.PatientID)

	stored, err := f.slots.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.Equal(slot))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SlotsPublished))

	assert.Eventually(t, func() bool {
		return len(f.events.types()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []events.Type{events.SlotPublished}, f.events.types())
}

func TestPublishSlot_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name             string
		date, start, end string
		field            string
	}{
		{"empty date", "", "09:00", "10:00", "date"},
		{"malformed date", "01.06.2025", "09:00", "10:00", "date"},
		{"empty start", "2025-06-01", "", "10:00", "start_time"},
		{"malformed start", "2025-06-01", "9am", "10:00", "start_time"},
		{"empty end", "2025-06-01", "09:00", "", "end_time"},
		{"end before start", "2025-06-01", "10:00", "09:00", "end_time"},
		{"end equals start", "2025-06-01", "10:00", "10:00", "end_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.PublishSlot(context.Background(), pro, pro.UserID, tt.date, tt.start, tt.end)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	all, err := f.slots.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPublishSlot_Unauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.PublishSlot(ctx, alice, pro.UserID, "2025-06-01", "09:00", "10:00")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.ledger.PublishSlot(ctx, otherPro, pro.UserID, "2025-06-01", "09:00", "10:00")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.ledger.PublishSlot(ctx, identity.Session{}, pro.UserID, "2025-06-01", "09:00", "10:00")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClaimSlot_ExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	slot := f.publish(t, "2025-06-01", "09:00", "10:00")

	const patients = 24
	var (
		wg      sync.WaitGroup
		results = make([]error, patients)
		start   = make(chan struct{})
	)
	for i := 0; i < patients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess := identity.Session{UserID: fmt.Sprintf("patient-%d", i), Role: model.RolePatient}
			<-start
			results[i] = f.ledger.ClaimSlot(context.Background(), sess, slot.ID, sess.UserID)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	winner := ""
	for i, err := range results {
		if err == nil {
			winners++
			winner = fmt.Sprintf("patient-%d", i)
			continue
		}
		assert.ErrorIs(t, err, ErrSlotUnavailable)
		assert.NotErrorIs(t, err, ErrSlotWithdrawn)
	}
	require.Equal(t, 1, winners)

	stored, err := f.slots.Get(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.Booked)
	assert.True(t, stored.HeldBy(winner))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SlotClaims.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, float64(patients-1), testutil.ToFloat64(f.metrics.SlotClaims.WithLabelValues(metrics.ResultUnavailable)))
}

func TestClaimSlot_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publish(t, "2025-06-01", "09:00", "10:00")

	err := f.ledger.ClaimSlot(ctx, alice, "missing", alice.UserID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.ledger.ClaimSlot(ctx, alice, slot.ID, bob.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = f.ledger.ClaimSlot(ctx, pro, slot.ID, pro.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))
	err = f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestLedgerScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := f.publish(t, "2025-06-01", "09:00", "10:00")

	available, err := f.ledger.AvailableSlots(ctx, alice, pro.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{slot.ID}, ids(available))

	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))

	available, err = f.ledger.AvailableSlots(ctx, alice, pro.UserID)
	require.NoError(t, err)
	assert.Empty(t, available)

	booking, err := f.ledger.ActiveBooking(ctx, alice, pro.UserID, alice.UserID)
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, slot.ID, booking.ID)

	err = f.ledger.ClaimSlot(ctx, bob, slot.ID, bob.UserID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	require.NoError(t, f.ledger.ReleaseSlot(ctx, alice, slot.ID))

	available, err = f.ledger.AvailableSlots(ctx, bob, pro.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{slot.ID}, ids(available))

	booking, err = f.ledger.ActiveBooking(ctx, alice, pro.UserID, alice.UserID)
	require.NoError(t, err)
	assert.Nil(t, booking)

	require.NoError(t, f.ledger.WithdrawSlot(ctx, pro, pro.UserID, slot.ID))

	available, err = f.ledger.AvailableSlots(ctx, bob, pro.UserID)
	require.NoError(t, err)
	assert.Empty(t, available)

	err = f.ledger.ClaimSlot(ctx, bob, slot.ID, bob.UserID)
	assert.ErrorIs(t, err, ErrSlotWithdrawn)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	assert.Eventually(t, func() bool {
		return len(f.events.types()) == 4
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []events.Type{
		events.SlotPublished, events.SlotClaimed, events.SlotReleased, events.SlotWithdrawn,
	}, f.events.types())
}

func TestReleaseSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent on unbooked slot", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, "2025-06-01", "09:00", "10:00")

		require.NoError(t, f.ledger.ReleaseSlot(ctx, alice, slot.ID))
		require.NoError(t, f.ledger.ReleaseSlot(ctx, pro, slot.ID))

		stored, err := f.slots.Get(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SlotStatusAvailable, stored.Status())
		assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.SlotReleases))
	})

	t.Run("patient cannot release another booking", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, "2025-06-01", "09:00", "10:00")
		require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))

		err := f.ledger.ReleaseSlot(ctx, bob, slot.ID)
		assert.ErrorIs(t, err, ErrUnauthorized)

		stored, err := f.slots.Get(ctx, slot.ID)
		require.NoError(t, err)
		assert.True(t, stored.HeldBy(alice.UserID))
	})

	t.Run("owner releases patient booking", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, "2025-06-01", "09:00", "10:00")
		require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))

		assert.ErrorIs(t, f.ledger.ReleaseSlot(ctx, otherPro, slot.ID), ErrUnauthorized)
		require.NoError(t, f.ledger.ReleaseSlot(ctx, pro, slot.ID))

		stored, err := f.slots.Get(ctx, slot.ID)
		require.NoError(t, err)
		assert.False(t, stored.Booked)
		assert.Nil(t, stored.PatientID)
	})

	t.Run("withdrawn slot", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, "2025-06-01", "09:00", "10:00")
		require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))
		require.NoError(t, f.ledger.WithdrawSlot(ctx, pro, pro.UserID, slot.ID))

		assert.ErrorIs(t, f.ledger.ReleaseSlot(ctx, alice, slot.ID), ErrSlotWithdrawn)
		assert.ErrorIs(t, f.ledger.ReleaseSlot(ctx, pro, slot.ID), ErrSlotWithdrawn)

		stored, err := f.slots.Get(ctx, slot.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SlotStatusCanceled, stored.Status())
		assert.True(t, stored.HeldBy(alice.UserID))
	})

	t.Run("missing slot", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.ledger.ReleaseSlot(ctx, alice, "missing"), ErrNotFound)
	})

	t.Run("event carries released patient", func(t *testing.T) {
		f := newFixture(t)
		slot := f.publish(t, "2025-06-01", "09:00", "10:00")
		require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))
		require.NoError(t, f.ledger.ReleaseSlot(ctx, alice, slot.ID))

		assert.Eventually(t, func() bool {
			f.events.mu.Lock()
			defer f.events.mu.Unlock()
			for _, e := range f.events.events {
				if e.Type == events.SlotReleased {
					return e.PatientID == alice.UserID
				}
			}
			return false
		}, time.Second, 10*time.Millisecond)
	})
}

func TestWithdrawSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publish(t, "2025-06-01", "09:00", "10:00")

	assert.ErrorIs(t, f.ledger.WithdrawSlot(ctx, otherPro, otherPro.UserID, slot.ID), ErrUnauthorized)
	assert.ErrorIs(t, f.ledger.WithdrawSlot(ctx, otherPro, pro.UserID, slot.ID), ErrUnauthorized)
	assert.ErrorIs(t, f.ledger.WithdrawSlot(ctx, alice, pro.UserID, slot.ID), ErrUnauthorized)
	assert.ErrorIs(t, f.ledger.WithdrawSlot(ctx, pro, pro.UserID, "missing"), ErrNotFound)

	require.NoError(t, f.ledger.WithdrawSlot(ctx, pro, pro.UserID, slot.ID))
	require.NoError(t, f.ledger.WithdrawSlot(ctx, pro, pro.UserID, slot.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SlotWithdrawals))

	assert.ErrorIs(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID), ErrSlotWithdrawn)
	assert.ErrorIs(t, f.ledger.ReleaseSlot(ctx, pro, slot.ID), ErrSlotWithdrawn)
}

func TestAvailableSlots_Ordering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late := f.publish(t, "2025-06-02", "09:00", "10:00")
	afternoon := f.publish(t, "2025-06-01", "14:00", "15:00")
	morning := f.publish(t, "2025-06-01", "09:00", "10:00")
	booked := f.publish(t, "2025-06-01", "11:00", "12:00")
	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, booked.ID, alice.UserID))

	// чужой слот в выдачу не попадает
	_, err := f.ledger.PublishSlot(ctx, otherPro, otherPro.UserID, "2025-06-01", "08:00", "09:00")
	require.NoError(t, err)

	available, err := f.ledger.AvailableSlots(ctx, bob, pro.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{morning.ID, afternoon.ID, late.ID}, ids(available))

	forDate, err := f.ledger.SlotsForDate(ctx, bob, pro.UserID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, []string{morning.ID, afternoon.ID}, ids(forDate))

	dates, err := f.ledger.AvailableDates(ctx, bob, pro.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, dates)

	_, err = f.ledger.SlotsForDate(ctx, bob, pro.UserID, "June 1")
	assert.True(t, IsValidation(err))
}

func TestOwnerAndPatientSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free := f.publish(t, "2025-06-01", "09:00", "10:00")
	booked := f.publish(t, "2025-06-01", "10:00", "11:00")
	canceled := f.publish(t, "2025-06-02", "09:00", "10:00")
	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, booked.ID, alice.UserID))
	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, canceled.ID, alice.UserID))
	require.NoError(t, f.ledger.WithdrawSlot(ctx, pro, pro.UserID, canceled.ID))

	all, err := f.ledger.OwnerSlots(ctx, pro, pro.UserID, SlotFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{free.ID, booked.ID, canceled.ID}, ids(all))

	onlyBooked, err := f.ledger.OwnerSlots(ctx, pro, pro.UserID, SlotFilter{Status: model.SlotStatusBooked})
	require.NoError(t, err)
	assert.Equal(t, []string{booked.ID}, ids(onlyBooked))

	onlyCanceled, err := f.ledger.OwnerSlots(ctx, pro, pro.UserID, SlotFilter{Status: model.SlotStatusCanceled})
	require.NoError(t, err)
	assert.Equal(t, []string{canceled.ID}, ids(onlyCanceled))

	byDate, err := f.ledger.OwnerSlots(ctx, pro, pro.UserID, SlotFilter{Date: "2025-06-02"})
	require.NoError(t, err)
	assert.Equal(t, []string{canceled.ID}, ids(byDate))

	_, err = f.ledger.OwnerSlots(ctx, pro, pro.UserID, SlotFilter{Status: "lost"})
	assert.True(t, IsValidation(err))

	_, err = f.ledger.OwnerSlots(ctx, otherPro, pro.UserID, SlotFilter{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	mine, err := f.ledger.PatientSlots(ctx, alice, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{booked.ID, canceled.ID}, ids(mine))

	_, err = f.ledger.PatientSlots(ctx, bob, alice.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestActiveBooking_Anomaly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patient := alice.UserID

	f.slots.Put(&model.Slot{ID: "b", OwnerID: pro.UserID, Date: "2025-06-01", StartTime: "09:00", EndTime: "10:00", Booked: true, PatientID: &patient})
	f.slots.Put(&model.Slot{ID: "a", OwnerID: pro.UserID, Date: "2025-06-02", StartTime: "09:00", EndTime: "10:00", Booked: true, PatientID: &patient})

	booking, err := f.ledger.ActiveBooking(ctx, alice, pro.UserID, patient)
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, "a", booking.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingAnomalies))

	// специалист видит бронь пациента, посторонние - нет
	_, err = f.ledger.ActiveBooking(ctx, pro, pro.UserID, patient)
	require.NoError(t, err)
	_, err = f.ledger.ActiveBooking(ctx, bob, pro.UserID, patient)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.ledger.ActiveBooking(ctx, otherPro, pro.UserID, patient)
	assert.ErrorIs(t, err, ErrUnauthorized)

	audit, err := f.ledger.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, audit.Duplicates, 1)
	assert.Equal(t, []string{"a", "b"}, audit.Duplicates[0].SlotIDs)
	assert.Equal(t, 2, audit.ByStatus[model.SlotStatusBooked])
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SlotsByStatus.WithLabelValues(string(model.SlotStatusBooked))))
}

func TestListAvailableSlots_Stream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.publish(t, "2025-06-01", "09:00", "10:00")

	stream, err := f.ledger.ListAvailableSlots(ctx, alice, pro.UserID)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, []string{first.ID}, ids(recv(t, stream)))

	second := f.publish(t, "2025-06-01", "08:00", "09:00")
	assert.Equal(t, []string{second.ID, first.ID}, ids(recv(t, stream)))

	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, first.ID, alice.UserID))
	assert.Equal(t, []string{second.ID}, ids(recv(t, stream)))

	// отзыв занятого слота не меняет свободные слоты - повторного снимка нет
	require.NoError(t, f.ledger.WithdrawSlot(ctx, pro, pro.UserID, first.ID))
	assertQuiet(t, stream)

	// изменения другого специалиста сюда не доходят
	_, err = f.ledger.PublishSlot(ctx, otherPro, otherPro.UserID, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)
	assertQuiet(t, stream)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveStreams))
	stream.Close()
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveStreams))
	assert.NoError(t, stream.Err())

	_, ok := <-stream.C()
	assert.False(t, ok)
}

func TestListSlotsForDate_Stream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, "2025-06-02", "09:00", "10:00")

	_, err := f.ledger.ListSlotsForDate(ctx, alice, pro.UserID, "bad")
	assert.True(t, IsValidation(err))

	stream, err := f.ledger.ListSlotsForDate(ctx, alice, pro.UserID, "2025-06-01")
	require.NoError(t, err)
	defer stream.Close()

	assert.Empty(t, recv(t, stream))

	slot := f.publish(t, "2025-06-01", "09:00", "10:00")
	assert.Equal(t, []string{slot.ID}, ids(recv(t, stream)))

	// слот на другую дату не меняет снимок
	f.publish(t, "2025-06-03", "09:00", "10:00")
	assertQuiet(t, stream)
}

func TestListAvailableDates_Stream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, "2025-06-02", "09:00", "10:00")

	stream, err := f.ledger.ListAvailableDates(ctx, bob, pro.UserID)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, []string{"2025-06-02"}, recv(t, stream))

	f.publish(t, "2025-06-01", "09:00", "10:00")
	assert.Equal(t, []string{"2025-06-01", "2025-06-02"}, recv(t, stream))

	// ещё один слот на ту же дату - список дат тот же
	f.publish(t, "2025-06-01", "11:00", "12:00")
	assertQuiet(t, stream)
}

func TestFindActiveBookingForPatient_Stream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.publish(t, "2025-06-01", "09:00", "10:00")

	_, err := f.ledger.FindActiveBookingForPatient(ctx, bob, pro.UserID, alice.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	stream, err := f.ledger.FindActiveBookingForPatient(ctx, alice, pro.UserID, alice.UserID)
	require.NoError(t, err)
	defer stream.Close()

	assert.Nil(t, recv(t, stream))

	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))
	booking := recv(t, stream)
	require.NotNil(t, booking)
	assert.Equal(t, slot.ID, booking.ID)

	require.NoError(t, f.ledger.ReleaseSlot(ctx, alice, slot.ID))
	assert.Nil(t, recv(t, stream))
}

func TestStream_EndsWithErrorWhenSubscriptionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publish(t, "2025-06-01", "09:00", "10:00")

	stream, err := f.ledger.ListAvailableSlots(ctx, alice, pro.UserID)
	require.NoError(t, err)
	recv(t, stream)

	f.slots.Hub().Fail(errors.New("listener connection lost"))

	select {
	case _, ok := <-stream.C():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate")
	}
	<-stream.Done()
	assert.ErrorIs(t, stream.Err(), ErrStoreUnavailable)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveStreams))
}

func TestStream_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := f.ledger.ListAvailableSlots(ctx, alice, pro.UserID)
	require.NoError(t, err)
	recv(t, stream)

	cancel()
	<-stream.Done()
	assert.NoError(t, stream.Err())
	assert.Equal(t, 0, f.slots.Hub().Count(pro.UserID))
}

type brokenStore struct {
	*memory.SlotStore
	err error
}

func (b brokenStore) Query(context.Context, store.Filter) ([]*model.Slot, error) {
	return nil, b.err
}

func (b brokenStore) UpdateIf(context.Context, string, store.Condition, store.Update) (*model.Slot, error) {
	return nil, b.err
}

func TestStoreFailuresSurfaceAsUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	l := New(brokenStore{SlotStore: memory.NewSlotStore(), err: cause}, nil, nil, nil)
	ctx := context.Background()

	_, err := l.AvailableSlots(ctx, alice, pro.UserID)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)

	err = l.ClaimSlot(ctx, alice, "any", alice.UserID)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	stream, err := l.ListAvailableSlots(ctx, alice, pro.UserID)
	require.NoError(t, err)
	<-stream.Done()
	assert.ErrorIs(t, stream.Err(), ErrStoreUnavailable)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	m := metrics.NewUnregistered()
	l := New(memory.NewSlotStore(), rec, m, nil)

	_, err := l.PublishSlot(context.Background(), pro, pro.UserID, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EventsPublished.WithLabelValues(metrics.ResultError)) == 1
	}, time.Second, 10*time.Millisecond)
}

func closed[T any](s *Stream[T], err error) error {
	if s != nil {
		s.Close()
	}
	return err
}

func TestQueriesRequireIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slot := f.publish(t, "2025-06-01", "09:00", "10:00")
	_, err := f.ledger.PublishSlot(ctx, otherPro, otherPro.UserID, "2025-06-01", "11:00", "12:00")
	require.NoError(t, err)
	require.NoError(t, f.ledger.ClaimSlot(ctx, alice, slot.ID, alice.UserID))

	tests := []struct {
		name  string
		field string
		call  func() error
	}{
		{"available slots", "owner_id", func() error {
			_, err := f.ledger.AvailableSlots(ctx, alice, "")
			return err
		}},
		{"slots for date", "owner_id", func() error {
			_, err := f.ledger.SlotsForDate(ctx, alice, "", "2025-06-01")
			return err
		}},
		{"available dates", "owner_id", func() error {
			_, err := f.ledger.AvailableDates(ctx, alice, " ")
			return err
		}},
		{"active booking without patient", "patient_id", func() error {
			_, err := f.ledger.ActiveBooking(ctx, pro, pro.UserID, "")
			return err
		}},
		{"active booking without owner", "owner_id", func() error {
			_, err := f.ledger.ActiveBooking(ctx, alice, "", alice.UserID)
			return err
		}},
		{"owner slots", "owner_id", func() error {
			_, err := f.ledger.OwnerSlots(ctx, pro, "", SlotFilter{})
			return err
		}},
		{"patient slots", "patient_id", func() error {
			_, err := f.ledger.PatientSlots(ctx, alice, "")
			return err
		}},
		{"list available slots", "owner_id", func() error {
			return closed(f.ledger.ListAvailableSlots(ctx, alice, ""))
		}},
		{"list slots for date", "owner_id", func() error {
			return closed(f.ledger.ListSlotsForDate(ctx, alice, "", "2025-06-01"))
		}},
		{"list available dates", "owner_id", func() error {
			return closed(f.ledger.ListAvailableDates(ctx, alice, ""))
		}},
		{"find active booking", "patient_id", func() error {
			return closed(f.ledger.FindActiveBookingForPatient(ctx, pro, pro.UserID, ""))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			require.ErrorAs(t, tt.call(), &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, "required", ve.Reason)
		})
	}

	assert.Zero(t, testutil.ToFloat64(f.metrics.BookingAnomalies))
}

// handoverStore передаёт бронь другому пациенту сразу после первого чтения
type handoverStore struct {
	store.SlotStore
	once sync.Once
	swap func()
}

func (s *handoverStore) Get(ctx context.Context, slotID string) (*model.Slot, error) {
	slot, err := s.SlotStore.Get(ctx, slotID)
	s.once.Do(s.swap)
	return slot, err
}

func TestReleaseSlot_HolderChangedAfterRead(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewSlotStore()
	rec := &recorder{}

	var slotID string
	hs := &handoverStore{SlotStore: mem}
	hs.swap = func() {
		_, err := mem.UpdateIf(ctx, slotID, store.Condition{}, store.Update{PatientID: store.String(bob.UserID)})
		require.NoError(t, err)
	}
	l := New(hs, rec, metrics.NewUnregistered(), zaptest.NewLogger(t))

	slot, err := l.PublishSlot(ctx, pro, pro.UserID, "2025-06-01", "09:00", "10:00")
	require.NoError(t, err)
	slotID = slot.ID
	require.NoError(t, l.ClaimSlot(ctx, alice, slot.ID, alice.UserID))

	err = l.ReleaseSlot(ctx, pro, slot.ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	stored, err := mem.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.HeldBy(bob.UserID), "бронь нового пациента не снята")

	assert.Eventually(t, func() bool {
		return len(rec.types()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.NotContains(t, rec.types(), events.SlotReleased)
}
