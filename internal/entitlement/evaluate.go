package entitlement

import (
	"sort"
	"time"
)

// Interval описывает полуинтервал [StartsAt, EndsAt), в течение которого
// источник Source предоставляет пользователю Pro-доступ.
type Interval struct {
	Source    Source     // Источник доступа
	StartsAt  time.Time  // Начало действия, включительно
	EndsAt    time.Time  // Конец действия, исключительно
	SourceID  string     // Идентификатор записи-источника, может быть пустым
	CreatedAt *time.Time // Время создания записи-источника, может быть nil
}

// Contains сообщает, попадает ли момент t в интервал.
func (iv Interval) Contains(t time.Time) bool {
	return !iv.StartsAt.After(t) && t.Before(iv.EndsAt)
}

// Status — результат вычисления текущего Pro-статуса пользователя.
type Status struct {
	IsPro           bool       `json:"is_pro"`                      // Есть ли доступ сейчас
	ProUntil        *time.Time `json:"pro_until,omitempty"`         // Конец непрерывного окна доступа; nil для внутренних пользователей
	EffectiveSource Source     `json:"effective_source,omitempty"`  // Источник, показываемый пользователю
	Sources         []Interval `json:"sources,omitempty"`           // Все активные интервалы, для аудита
	NextProStartsAt *time.Time `json:"next_pro_starts_at,omitempty"` // Начало ближайшего будущего окна, если доступа сейчас нет
}

// mergedWindow — непересекающееся окно, полученное слиянием исходных интервалов.
type mergedWindow struct {
	startsAt time.Time
	endsAt   time.Time
}

// Evaluate вычисляет Pro-статус на момент now из набора интервалов.
//
// Для внутренних пользователей (isInternal) доступ безусловный: интервалы
// не рассматриваются вовсе, ProUntil отсутствует.
//
// Иначе интервалы с EndsAt > now сортируются по (StartsAt, EndsAt) и сливаются
// в непересекающиеся окна; соприкасающиеся окна считаются одним. Статус
// определяется окном, содержащим now. EffectiveSource выбирается из исходных
// интервалов, которые заканчиваются ровно на границе текущего окна:
// побеждает наименьший приоритет источника, затем более ранний CreatedAt,
// затем лексикографически меньший SourceID.
func Evaluate(now time.Time, isInternal bool, intervals []Interval) Status {
	if isInternal {
		return Status{
			IsPro:           true,
			EffectiveSource: SourceInternalBypass,
			Sources:         []Interval{},
		}
	}

	active := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.EndsAt.After(now) {
			active = append(active, iv)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if !active[i].StartsAt.Equal(active[j].StartsAt) {
			return active[i].StartsAt.Before(active[j].StartsAt)
		}
		return active[i].EndsAt.Before(active[j].EndsAt)
	})

	var merged []mergedWindow
	for _, iv := range active {
		if len(merged) > 0 && !iv.StartsAt.After(merged[len(merged)-1].endsAt) {
			last := &merged[len(merged)-1]
			if iv.EndsAt.After(last.endsAt) {
				last.endsAt = iv.EndsAt
			}
			continue
		}
		merged = append(merged, mergedWindow{startsAt: iv.StartsAt, endsAt: iv.EndsAt})
	}

	result := Status{Sources: active}

	var current *mergedWindow
	for i := range merged {
		if !merged[i].startsAt.After(now) && now.Before(merged[i].endsAt) {
			current = &merged[i]
			break
		}
	}

	if current == nil {
		for _, w := range merged {
			if w.startsAt.After(now) {
				start := w.startsAt
				result.NextProStartsAt = &start
				break
			}
		}
		return result
	}

	until := current.endsAt
	result.IsPro = true
	result.ProUntil = &until
	result.EffectiveSource = pickEffectiveSource(active, *current)
	return result
}

// pickEffectiveSource выбирает интервал, определяющий отображаемый источник
// текущего окна: из перекрывающих окно интервалов с EndsAt, равным границе
// окна, берётся интервал с наименьшим приоритетом источника.
func pickEffectiveSource(active []Interval, w mergedWindow) Source {
	var best *Interval
	for i := range active {
		iv := &active[i]
		if !iv.EndsAt.Equal(w.endsAt) {
			continue
		}
		if !iv.StartsAt.Before(w.endsAt) || !iv.EndsAt.After(w.startsAt) {
			continue
		}
		if best == nil || lessEffective(iv, best) {
			best = iv
		}
	}
	if best == nil {
		return ""
	}
	return best.Source
}

// lessEffective сообщает, предпочтительнее ли интервал a интервала b
// в качестве эффективного источника.
func lessEffective(a, b *Interval) bool {
	if a.Source.Priority() != b.Source.Priority() {
		return a.Source.Priority() < b.Source.Priority()
	}
	switch {
	case a.CreatedAt != nil && b.CreatedAt != nil && !a.CreatedAt.Equal(*b.CreatedAt):
		return a.CreatedAt.Before(*b.CreatedAt)
	case a.CreatedAt != nil && b.CreatedAt == nil:
		return true
	case a.CreatedAt == nil && b.CreatedAt != nil:
		return false
	}
	return a.SourceID < b.SourceID
}
