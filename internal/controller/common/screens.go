package common

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/felanocare/internal/controller/formatting"
	"github.com/Freeeeeet/felanocare/internal/controller/keyboard"
	"github.com/Freeeeeet/felanocare/internal/model"
	"github.com/Freeeeeet/felanocare/internal/service"
)

// Экраны бота: чистые функции от данных к тексту и клавиатуре

const (
	historyLimit   = 5
	dashboardLimit = 10
)

// WelcomeText - приветствие зарегистрированного пользователя
func WelcomeText(p *model.Profile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 Привет, %s!\n\n", p.Name)
	sb.WriteString("FelanoCare - запись к специалистам.\n\n")
	if p.Role == model.RoleProfessional {
		sb.WriteString("/addslot - Опубликовать слот\n" +
			"/myslots - Мои слоты и статистика\n")
	} else {
		sb.WriteString("/doctors - Записаться к специалисту\n" +
			"/mybooking - Мои записи\n")
	}
	sb.WriteString("/help - Справка")
	return sb.String()
}

// HelpText - справка по командам
func HelpText() string {
	return "📚 Справка по командам:\n\n" +
		"/start - Регистрация и главное меню\n" +
		"/cancel - Отменить текущий диалог\n\n" +
		"Для пациентов:\n" +
		"/doctors - Список специалистов и свободное время\n" +
		"/mybooking - Ближайший приём и история\n\n" +
		"Для специалистов:\n" +
		"/addslot - Опубликовать слот (ГГГГ-ММ-ДД ЧЧ:ММ ЧЧ:ММ)\n" +
		"/myslots - Журнал слотов со статистикой"
}

// RoleChoiceScreen - выбор роли при первой регистрации
func RoleChoiceScreen(name string) (string, *models.InlineKeyboardMarkup) {
	text := fmt.Sprintf("👋 Привет, %s!\n\nДобро пожаловать в FelanoCare. Кто вы?", name)
	kb := keyboard.NewBuilder().
		Row(keyboard.Button("🙋 Пациент", CallbackRegister+string(model.RolePatient))).
		Row(keyboard.Button("🩺 Специалист", CallbackRegister+string(model.RoleProfessional))).
		Build()
	return text, kb
}

// BirthDatePrompt - запрос даты рождения пациента
func BirthDatePrompt() string {
	return "📅 Отправьте дату рождения в формате ГГГГ-ММ-ДД, например 1990-05-17.\n\n/cancel - отменить регистрацию"
}

// AddSlotPrompt - запрос параметров нового слота
func AddSlotPrompt() string {
	return "➕ Отправьте слот в формате:\nГГГГ-ММ-ДД ЧЧ:ММ ЧЧ:ММ\n\nНапример: 2025-06-02 09:00 09:30\n\n/cancel - отменить"
}

// ProfessionalsScreen - список специалистов
func ProfessionalsScreen(pros []*model.Profile) (string, *models.InlineKeyboardMarkup) {
	if len(pros) == 0 {
		return "😔 Пока нет ни одного специалиста.", nil
	}

	kb := keyboard.NewBuilder()
	for _, p := range pros {
		kb.Row(keyboard.Button("🩺 "+p.Name, CallbackDoctor+p.UID))
	}
	return "Выберите специалиста:", kb.Build()
}

// ProfessionalCard - карточка специалиста: действующая запись или свободные даты
func ProfessionalCard(pro *model.Profile, booking *model.Slot, dates []string) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🩺 %s\n\n", pro.Name)

	kb := keyboard.NewBuilder()
	switch {
	case booking != nil:
		fmt.Fprintf(&sb, "✅ Вы записаны: %s", formatting.FormatSlot(booking))
		kb.Row(keyboard.Button("❌ Отменить запись", CallbackCancelBooking+pro.UID))
	case len(dates) == 0:
		sb.WriteString("😔 Свободных слотов нет.")
	default:
		fmt.Fprintf(&sb, "Свободное время есть в %d %s. Выберите дату:", len(dates), formatting.PluralizeDates(len(dates)))
		buttons := make([]models.InlineKeyboardButton, 0, len(dates))
		for _, d := range dates {
			buttons = append(buttons, keyboard.Button(formatting.FormatDateWithWeekday(d), CallbackDate+pro.UID+":"+d))
		}
		kb.Grid(2, buttons...)
	}
	kb.AddBackButton(CallbackDoctors)
	return sb.String(), kb.Build()
}

// SlotsScreen - свободные слоты специалиста на дату
func SlotsScreen(ownerID, ownerName, date string, slots []model.Slot) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🩺 %s\n📅 %s\n\n", ownerName, formatting.FormatDateWithWeekday(date))

	kb := keyboard.NewBuilder()
	if len(slots) == 0 {
		sb.WriteString("😔 На эту дату свободных слотов не осталось.")
	} else {
		fmt.Fprintf(&sb, "Свободно %d %s. Нажмите, чтобы записаться:", len(slots), formatting.PluralizeSlots(len(slots)))
		buttons := make([]models.InlineKeyboardButton, 0, len(slots))
		for _, s := range slots {
			buttons = append(buttons, keyboard.Button(formatting.FormatTimeRange(s.StartTime, s.EndTime), CallbackClaim+s.ID))
		}
		kb.Grid(3, buttons...)
	}
	kb.AddBackButton(CallbackDoctor + ownerID)
	return sb.String(), kb.Build()
}

// BookedText - подтверждение записи
func BookedText(ownerName string, slot *model.Slot) string {
	return fmt.Sprintf("✅ Вы записаны!\n\n🩺 %s\n🕐 %s", ownerName, formatting.FormatSlot(slot))
}

// StreamBrokenText - живой список перестал обновляться
func StreamBrokenText() string {
	return "⚠️ Список перестал обновляться. Откройте дату заново через /doctors."
}

// LiveExpiredText - живой список закрыт по таймауту
func LiveExpiredText() string {
	return "⌛️ Список устарел и больше не обновляется. Откройте дату заново через /doctors."
}

// OverviewText - сводка пациента
func OverviewText(ov *service.Overview) string {
	var sb strings.Builder
	sb.WriteString("📋 Мои записи\n\n")

	if ov.Next != nil {
		fmt.Fprintf(&sb, "Ближайший приём:\n🩺 %s\n🕐 %s\n\n", ov.Next.ProfessionalName, formatting.FormatSlot(&ov.Next.Slot))
	} else {
		sb.WriteString("Предстоящих приёмов нет. Записаться: /doctors\n\n")
	}

	fmt.Fprintf(&sb, "Всего: %d %s, отменено специалистом: %d\n",
		ov.BookedCount, formatting.PluralizeBookings(ov.BookedCount), ov.CanceledCount)

	if len(ov.History) > 0 {
		sb.WriteString("\nИстория:\n")
		for i, a := range ov.History {
			if i == historyLimit {
				fmt.Fprintf(&sb, "... и ещё %d\n", len(ov.History)-historyLimit)
				break
			}
			status := formatting.GetSlotStatusDisplay(a.Slot.Status())
			fmt.Fprintf(&sb, "%s %s - %s\n", status.Emoji, formatting.FormatSlot(&a.Slot), a.ProfessionalName)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// DashboardScreen - журнал специалиста: статистика и ближайшие слоты с действиями
func DashboardScreen(d *service.Dashboard) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Мои слоты\n\nВсего: %d | 🟢 %d | 🔴 %d | ⚫️ %d\n",
		d.Stats.Total, d.Stats.Available, d.Stats.Booked, d.Stats.Canceled)

	kb := keyboard.NewBuilder()
	shown := 0
	for _, e := range d.Entries {
		if e.Status == model.SlotStatusCanceled {
			continue
		}
		if shown == dashboardLimit {
			sb.WriteString("...\n")
			break
		}
		shown++

		status := formatting.GetSlotStatusDisplay(e.Status)
		line := fmt.Sprintf("%s %s", status.Emoji, formatting.FormatSlot(&e.Slot))
		if e.PatientName != "" {
			line += " - " + e.PatientName
		}
		fmt.Fprintf(&sb, "\n%d. %s", shown, line)

		row := []models.InlineKeyboardButton{
			keyboard.Button(fmt.Sprintf("%d. 🗑 Отозвать", shown), CallbackWithdraw+e.Slot.ID),
		}
		if e.Status == model.SlotStatusBooked {
			row = append(row, keyboard.Button(fmt.Sprintf("%d. 🔓 Освободить", shown), CallbackRelease+e.Slot.ID))
		}
		kb.Row(row...)
	}
	if shown == 0 {
		sb.WriteString("\nПредстоящих слотов нет. Опубликовать: /addslot")
	}
	kb.Row(keyboard.Button("🔄 Обновить", CallbackMySlots))
	return sb.String(), kb.Build()
}
