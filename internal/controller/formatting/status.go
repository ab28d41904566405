package formatting

import "github.com/Freeeeeet/felanocare/internal/model"

// SlotStatusDisplay представляет отображение статуса слота
type SlotStatusDisplay struct {
	Emoji string
	Text  string
}

// GetSlotStatusDisplay возвращает emoji и текст для статуса слота
func GetSlotStatusDisplay(status model.SlotStatus) SlotStatusDisplay {
	displays := map[model.SlotStatus]SlotStatusDisplay{
		model.SlotStatusAvailable: {"🟢", "Свободен"},
		model.SlotStatusBooked:    {"🔴", "Занят"},
		model.SlotStatusCanceled:  {"⚫️", "Отменён"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return SlotStatusDisplay{"❓", "Неизвестно"}
}

// GetAgeCategoryText - возрастная группа по-русски
func GetAgeCategoryText(c model.AgeCategory) string {
	switch c {
	case model.AgeYouth:
		return "подросток"
	case model.AgeSenior:
		return "старший возраст"
	default:
		return "взрослый"
	}
}
