package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/felanocare/internal/identity"
	"github.com/Freeeeeet/felanocare/internal/ledger"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/service"
	"github.com/Freeeeeet/felanocare/internal/store/memory"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &ledger.ValidationError{Field: "end_time", Reason: "must be after start_time"}, "время окончания"},
		{"unknown field", &ledger.ValidationError{Field: "zip", Reason: "bad"}, "«zip»"},
		{"taken", fmt.Errorf("claim: %w", ledger.ErrSlotUnavailable), "только что заняли"},
		{"withdrawn", ledger.ErrSlotWithdrawn, "отменил"},
		{"store", fmt.Errorf("query: %w", ledger.ErrStoreUnavailable), "попробуйте ещё раз"},
		{"role", ledger.ErrUnauthorized, "недоступна"},
		{"already booked", service.ErrAlreadyBooked, "уже есть запись"},
		{"not registered", ErrUserNotFound, "/start"},
		{"other", errors.New("boom"), "Произошла ошибка"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, ErrorMessage(tt.err), tt.want)
		})
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs("date:abc:2025-06-02", CallbackDate, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "2025-06-02"}, args)

	for _, data := range []string{"date:abc", "date::2025-06-02", "doc:abc", "date:"} {
		_, err := ParseArgs(data, CallbackDate, 2)
		assert.ErrorIs(t, err, ErrInvalidFormat, data)
	}
}

func TestScreensFitCallbackLimit(t *testing.T) {
	owner := uuid.NewString()
	pro := &model.Profile{UID: owner, Name: "Dr. House", Role: model.RoleProfessional}
	slot := model.Slot{ID: uuid.NewString(), OwnerID: owner, Date: "2025-06-02", StartTime: "09:00", EndTime: "09:30"}

	var keyboards []*models.InlineKeyboardMarkup
	_, kb := ProfessionalsScreen([]*model.Profile{pro})
	keyboards = append(keyboards, kb)
	_, kb = ProfessionalCard(pro, nil, []string{"2025-06-02", "2025-06-03"})
	keyboards = append(keyboards, kb)
	_, kb = ProfessionalCard(pro, &slot, nil)
	keyboards = append(keyboards, kb)
	_, kb = SlotsScreen(owner, pro.Name, slot.Date, []model.Slot{slot})
	keyboards = append(keyboards, kb)

	booked := slot
	booked.ID = uuid.NewString()
	booked.Booked = true
	_, kb = DashboardScreen(&service.Dashboard{Entries: []service.DashboardEntry{
		{Slot: slot, Status: model.SlotStatusAvailable},
		{Slot: booked, Status: model.SlotStatusBooked, PatientName: "Ann"},
	}})
	keyboards = append(keyboards, kb)

	for _, kb := range keyboards {
		for _, row := range kb.InlineKeyboard {
			for _, b := range row {
				assert.LessOrEqual(t, len(b.CallbackData), MaxCallbackData, b.CallbackData)
			}
		}
	}
}

func TestProfessionalCard(t *testing.T) {
	pro := &model.Profile{UID: "p1", Name: "Dr. Who"}

	text, kb := ProfessionalCard(pro, nil, nil)
	assert.Contains(t, text, "Свободных слотов нет")
	assert.Len(t, kb.InlineKeyboard, 1)

	text, kb = ProfessionalCard(pro, nil, []string{"2025-06-02", "2025-06-03", "2025-06-04"})
	assert.Contains(t, text, "3 дня")
	assert.Equal(t, "date:p1:2025-06-02", kb.InlineKeyboard[0][0].CallbackData)
	assert.Len(t, kb.InlineKeyboard, 3, "две строки дат и назад")

	booking := &model.Slot{ID: "s1", Date: "2025-06-02", StartTime: "09:00", EndTime: "09:30"}
	text, kb = ProfessionalCard(pro, booking, []string{"2025-06-03"})
	assert.Contains(t, text, "Вы записаны")
	assert.Equal(t, "cancel_booking:p1", kb.InlineKeyboard[0][0].CallbackData)
}

func TestDashboardScreen(t *testing.T) {
	d := &service.Dashboard{
		Stats: service.Stats{Total: 3, Available: 1, Booked: 1, Canceled: 1},
		Entries: []service.DashboardEntry{
			{Slot: model.Slot{ID: "a", Date: "2025-06-02", StartTime: "09:00", EndTime: "09:30"}, Status: model.SlotStatusAvailable},
			{Slot: model.Slot{ID: "b", Date: "2025-06-02", StartTime: "10:00", EndTime: "10:30"}, Status: model.SlotStatusBooked, PatientName: "Ann"},
			{Slot: model.Slot{ID: "c", Date: "2025-06-03", StartTime: "10:00", EndTime: "10:30"}, Status: model.SlotStatusCanceled},
		},
	}

	text, kb := DashboardScreen(d)
	assert.Contains(t, text, "Всего: 3")
	assert.Contains(t, text, "Ann")
	require.Len(t, kb.InlineKeyboard, 3, "два слота и обновить")
	assert.Len(t, kb.InlineKeyboard[0], 1)
	assert.Equal(t, "release:b", kb.InlineKeyboard[1][1].CallbackData)
	assert.Equal(t, CallbackMySlots, kb.InlineKeyboard[2][0].CallbackData)
}

func TestOverviewText(t *testing.T) {
	ov := &service.Overview{
		Next: &service.Appointment{
			Slot:             model.Slot{Date: "2025-06-02", StartTime: "09:00", EndTime: "09:30", Booked: true},
			ProfessionalName: "Dr. Who",
		},
		BookedCount: 2,
	}
	text := OverviewText(ov)
	assert.Contains(t, text, "Ближайший приём")
	assert.Contains(t, text, "Dr. Who")
	assert.Contains(t, text, "2 записи")

	text = OverviewText(&service.Overview{})
	assert.Contains(t, text, "/doctors")
}

type fakeEditor struct {
	mu    sync.Mutex
	edits []string
}

func (f *fakeEditor) EditMessageText(_ context.Context, p *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, p.Text)
	return &models.Message{ID: p.MessageID}, nil
}

func (f *fakeEditor) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeEditor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

type liveEnv struct {
	slots   *memory.SlotStore
	ledger  *ledger.Ledger
	pro     identity.Session
	patient identity.Session
}

func newLiveEnv() *liveEnv {
	slots := memory.NewSlotStore()
	return &liveEnv{
		slots:   slots,
		ledger:  ledger.New(slots, nil, nil, zap.NewNop()),
		pro:     identity.Session{UserID: "pro-1", Role: model.RoleProfessional},
		patient: identity.Session{UserID: "pat-1", Role: model.RolePatient},
	}
}

func (e *liveEnv) opener(date string) SlotsOpener {
	return func(ctx context.Context) (*ledger.Stream[[]model.Slot], error) {
		return e.ledger.ListSlotsForDate(ctx, e.patient, e.pro.UserID, date)
	}
}

func render(slots []model.Slot) (string, *models.InlineKeyboardMarkup) {
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.StartTime)
	}
	return "slots:" + strings.Join(times, ","), nil
}

func TestLiveViewFollowsLedger(t *testing.T) {
	e := newLiveEnv()
	ctx := context.Background()
	_, err := e.ledger.PublishSlot(ctx, e.pro, e.pro.UserID, "2025-06-02", "09:00", "09:30")
	require.NoError(t, err)

	ed := &fakeEditor{}
	live := NewLiveViews(time.Minute, zap.NewNop())
	defer live.Close()

	require.NoError(t, live.Start(ctx, ed, 10, 100, e.opener("2025-06-02"), render))
	assert.Eventually(t, func() bool { return ed.last() == "slots:09:00" }, 2*time.Second, 10*time.Millisecond)

	s2, err := e.ledger.PublishSlot(ctx, e.pro, e.pro.UserID, "2025-06-02", "10:00", "10:30")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return ed.last() == "slots:09:00,10:00" }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.ledger.ClaimSlot(ctx, e.patient, s2.ID, e.patient.UserID))
	assert.Eventually(t, func() bool { return ed.last() == "slots:09:00" }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, live.Active())

	live.Stop(10)
	assert.Equal(t, 0, live.Active())

	edits := ed.count()
	_, err = e.ledger.PublishSlot(ctx, e.pro, e.pro.UserID, "2025-06-02", "11:00", "11:30")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, edits, ed.count(), "остановленный экран не правит сообщение")
}

func TestLiveViewReplacedPerChat(t *testing.T) {
	e := newLiveEnv()
	ctx := context.Background()
	live := NewLiveViews(time.Minute, zap.NewNop())
	defer live.Close()

	require.NoError(t, live.Start(ctx, &fakeEditor{}, 1, 1, e.opener("2025-06-02"), render))
	require.NoError(t, live.Start(ctx, &fakeEditor{}, 1, 2, e.opener("2025-06-03"), render))
	require.NoError(t, live.Start(ctx, &fakeEditor{}, 2, 3, e.opener("2025-06-03"), render))
	assert.Equal(t, 2, live.Active())

	live.Close()
	assert.Equal(t, 0, live.Active())
}

func TestLiveViewTimeout(t *testing.T) {
	e := newLiveEnv()
	live := NewLiveViews(50*time.Millisecond, zap.NewNop())

	ed := &fakeEditor{}
	require.NoError(t, live.Start(context.Background(), ed, 1, 1, e.opener("2025-06-02"), render))
	assert.Eventually(t, func() bool { return live.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
	// кнопки последнего снимка не остаются на экране
	assert.Equal(t, LiveExpiredText(), ed.last())
}

func TestLiveViewStopDoesNotMarkExpired(t *testing.T) {
	e := newLiveEnv()
	ed := &fakeEditor{}
	live := NewLiveViews(time.Minute, zap.NewNop())

	require.NoError(t, live.Start(context.Background(), ed, 1, 1, e.opener("2025-06-02"), render))
	assert.Eventually(t, func() bool { return ed.last() == "slots:" }, 2*time.Second, 10*time.Millisecond)

	live.Stop(1)
	assert.Equal(t, "slots:", ed.last())
}

func TestLiveViewStreamFailure(t *testing.T) {
	e := newLiveEnv()
	ed := &fakeEditor{}
	live := NewLiveViews(time.Minute, zap.NewNop())
	defer live.Close()

	require.NoError(t, live.Start(context.Background(), ed, 1, 1, e.opener("2025-06-02"), render))
	assert.Eventually(t, func() bool { return ed.last() == "slots:" }, 2*time.Second, 10*time.Millisecond)

	e.slots.Hub().Fail(errors.New("listener lost"))
	assert.Eventually(t, func() bool { return ed.last() == StreamBrokenText() }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return live.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLiveViewOpenError(t *testing.T) {
	e := newLiveEnv()
	live := NewLiveViews(time.Minute, zap.NewNop())

	open := func(ctx context.Context) (*ledger.Stream[[]model.Slot], error) {
		return e.ledger.ListSlotsForDate(ctx, e.patient, e.pro.UserID, "not-a-date")
	}
	err := live.Start(context.Background(), &fakeEditor{}, 1, 1, open, render)
	assert.True(t, ledger.IsValidation(err))
	assert.Equal(t, 0, live.Active())
}
