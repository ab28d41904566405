package formatting

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/felanocare/internal/model"
)

// FormatDate переводит YYYY-MM-DD в 02.01.2006; некорректная дата выводится как есть
func FormatDate(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02.01.2006")
}

// FormatDateWithWeekday форматирует дату с коротким днём недели: "02.06.2025 (Пн)"
func FormatDateWithWeekday(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s (%s)", t.Format("02.01.2006"), GetWeekdayShort(int(t.Weekday())))
}

// FormatTimeRange форматирует интервал слота
func FormatTimeRange(start, end string) string {
	return fmt.Sprintf("%s-%s", start, end)
}

// FormatSlot - дата и время слота одной строкой
func FormatSlot(s *model.Slot) string {
	return fmt.Sprintf("%s %s", FormatDateWithWeekday(s.Date), FormatTimeRange(s.StartTime, s.EndTime))
}

// GetWeekdayShort возвращает короткое название дня недели
func GetWeekdayShort(weekday int) string {
	names := []string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}
	if weekday >= 0 && weekday < len(names) {
		return names[weekday]
	}
	return "?"
}
