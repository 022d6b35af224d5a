package entitlement

import "time"

// GrantSpec задаёт размер нового гранта: либо длительность в днях,
// либо фиксированная дата окончания. Заполняется ровно одно поле.
type GrantSpec struct {
	DurationDays *int       // Длительность гранта в днях
	FixedEndsAt  *time.Time // Абсолютная дата окончания гранта
}

// Window — вычисленное окно нового гранта.
type Window struct {
	StartsAt    time.Time // Начало действия гранта
	EndsAt      time.Time // Конец действия гранта, исключительно
	NoExtension bool      // Грант не добавляет времени; запись создавать не нужно
}

// ComputeGrantWindow вычисляет окно нового гранта с учётом уже имеющегося
// доступа: если currentProUntil строго в будущем, грант пристраивается к нему,
// иначе начинается с now. Гранты никогда не идут параллельно с уже оплаченным
// временем и никогда его не сокращают.
//
// Для длительности EndsAt = StartsAt + дни; для фиксированной даты
// EndsAt = max(FixedEndsAt, StartsAt). Если окно пустое или спецификация
// не заполнена, выставляется NoExtension — вызывающая сторона обязана
// пропустить создание записи и ограничиться событием в журнале.
func ComputeGrantWindow(now time.Time, currentProUntil *time.Time, spec GrantSpec) Window {
	startsAt := now
	if currentProUntil != nil && currentProUntil.After(now) {
		startsAt = *currentProUntil
	}

	w := Window{StartsAt: startsAt}
	switch {
	case spec.DurationDays != nil:
		w.EndsAt = startsAt.AddDate(0, 0, *spec.DurationDays)
	case spec.FixedEndsAt != nil:
		w.EndsAt = *spec.FixedEndsAt
		if w.EndsAt.Before(startsAt) {
			w.EndsAt = startsAt
		}
	default:
		w.EndsAt = startsAt
	}
	w.NoExtension = !w.EndsAt.After(w.StartsAt)
	return w
}
