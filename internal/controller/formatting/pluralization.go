package formatting

// plural выбирает форму слова для числа: one (1, 21), few (2-4, 22-24), many (остальные)
func plural(count int, one, few, many string) string {
	if count < 0 {
		count = -count
	}
	if count%10 == 1 && count%100 != 11 {
		return one
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return few
	}
	return many
}

// PluralizeSlots возвращает правильное склонение слова "слот"
func PluralizeSlots(count int) string {
	return plural(count, "слот", "слота", "слотов")
}

// PluralizeBookings возвращает правильное склонение слова "запись"
func PluralizeBookings(count int) string {
	return plural(count, "запись", "записи", "записей")
}

// PluralizeDates возвращает правильное склонение слова "день"
func PluralizeDates(count int) string {
	return plural(count, "день", "дня", "дней")
}
