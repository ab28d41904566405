package formatting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Freeeeeet/felanocare/internal/model"
)

func TestPluralizeSlots(t *testing.T) {
	cases := map[int]string{
		0: "слотов", 1: "слот", 2: "слота", 4: "слота", 5: "слотов",
		11: "слотов", 12: "слотов", 21: "слот", 22: "слота", 111: "слотов",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeSlots(n), "n=%d", n)
	}
	assert.Equal(t, "записи", PluralizeBookings(3))
	assert.Equal(t, "дней", PluralizeDates(7))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "02.06.2025", FormatDate("2025-06-02"))
	assert.Equal(t, "02.06.2025 (Пн)", FormatDateWithWeekday("2025-06-02"))
	assert.Equal(t, "garbage", FormatDateWithWeekday("garbage"))

	s := &model.Slot{Date: "2025-06-01", StartTime: "09:00", EndTime: "09:30"}
	assert.Equal(t, "01.06.2025 (Вс) 09:00-09:30", FormatSlot(s))
}

func TestGetSlotStatusDisplay(t *testing.T) {
	assert.Equal(t, "🟢", GetSlotStatusDisplay(model.SlotStatusAvailable).Emoji)
	assert.Equal(t, "Отменён", GetSlotStatusDisplay(model.SlotStatusCanceled).Text)
	assert.Equal(t, "❓", GetSlotStatusDisplay("lost").Emoji)
}
