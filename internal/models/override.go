package models

import (
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
)

// EntitlementKeyPro — единственный ключ способности, которым управляет движок.
const EntitlementKeyPro = "pro"

// OverrideSource — тип источника, создавшего оверрайд.
type OverrideSource string

// Возможные источники оверрайдов.
const (
	OverrideSourceAdmin        OverrideSource = "admin"
	OverrideSourcePromotion    OverrideSource = "promotion"
	OverrideSourcePendingGrant OverrideSource = "pending_grant"
	OverrideSourceMigration    OverrideSource = "migration"
	OverrideSourceSystem       OverrideSource = "system"
)

// IntervalSource переводит источник оверрайда в источник интервала
// для вычислителя статуса.
func (s OverrideSource) IntervalSource() entitlement.Source {
	switch s {
	case OverrideSourceAdmin:
		return entitlement.SourceAdminOverride
	case OverrideSourcePromotion:
		return entitlement.SourcePromotion
	case OverrideSourcePendingGrant:
		return entitlement.SourcePendingGrant
	case OverrideSourceMigration:
		return entitlement.SourceMigration
	case OverrideSourceSystem:
		return entitlement.SourceSystem
	default:
		return entitlement.SourceSystem
	}
}

// EntitlementOverride — интервал Pro-доступа, выданный вне подписки:
// администратором, промоакцией или отложенным грантом. Записи не удаляются;
// единственное допустимое изменение после начала действия — сокращение
// EndsAt до текущего момента при досрочном отзыве.
type EntitlementOverride struct {
	ID               int64
	UserUID          string         // Получатель доступа
	EntitlementKey   string         // Ключ способности, сейчас всегда EntitlementKeyPro
	StartsAt         time.Time      // Начало действия, включительно
	EndsAt           time.Time      // Конец действия, исключительно
	SourceType       OverrideSource // Кто выдал оверрайд
	SourceID         *string        // Ссылка на запись-источник, если есть
	Reason           string         // Человекочитаемая причина выдачи
	GrantedByUserUID *string        // Администратор, выдавший доступ
	CreatedAt        time.Time
}

// Interval представляет оверрайд в виде интервала для вычислителя статуса.
func (o *EntitlementOverride) Interval() entitlement.Interval {
	created := o.CreatedAt
	sourceID := ""
	if o.SourceID != nil {
		sourceID = *o.SourceID
	}
	return entitlement.Interval{
		Source:    o.SourceType.IntervalSource(),
		StartsAt:  o.StartsAt,
		EndsAt:    o.EndsAt,
		SourceID:  sourceID,
		CreatedAt: &created,
	}
}
