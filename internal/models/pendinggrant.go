package models

import (
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
)

// PendingEntitlementGrant — отложенный грант Pro-доступа, адресованный
// по хэшу электронной почты: получатель может ещё не иметь учётной записи.
// Забор гранта одноразовый и терминальный: после заполнения ClaimedAt
// запись больше не изменяется.
type PendingEntitlementGrant struct {
	ID                int64
	EmailHash         string     // HMAC-хэш нормализованного адреса
	HashVersion       int        // Версия секрета, которым получен хэш
	GrantDurationDays *int       // Длительность гранта в днях
	GrantFixedEndsAt  *time.Time // Абсолютный конец гранта
	ClaimValidFrom    *time.Time // Начало окна, в котором грант можно забрать
	ClaimValidTo      *time.Time // Конец окна забора, исключительно
	IsActive          bool
	ClaimedAt         *time.Time // Когда грант был забран
	ClaimedByUserUID  *string    // Кто забрал грант
	ClaimSource       *string    // Откуда пришёл забор: login, signup и т.п.
	Reason            string     // Причина выдачи
	CreatedByUserUID  *string    // Администратор, создавший грант
	CreatedAt         time.Time
}

// GrantSpec возвращает спецификацию гранта.
func (g *PendingEntitlementGrant) GrantSpec() entitlement.GrantSpec {
	return entitlement.GrantSpec{
		DurationDays: g.GrantDurationDays,
		FixedEndsAt:  g.GrantFixedEndsAt,
	}
}

// IsClaimableAt сообщает, можно ли забрать грант в момент now.
func (g *PendingEntitlementGrant) IsClaimableAt(now time.Time) bool {
	if !g.IsActive || g.ClaimedAt != nil {
		return false
	}
	if g.ClaimValidFrom != nil && now.Before(*g.ClaimValidFrom) {
		return false
	}
	if g.ClaimValidTo != nil && !now.Before(*g.ClaimValidTo) {
		return false
	}
	return true
}

// TrialUse отмечает, что пользователь уже использовал пробный период.
// Значимо само существование строки, вставка идёт с ON CONFLICT DO NOTHING.
type TrialUse struct {
	UserUID   string
	CreatedAt time.Time
}
