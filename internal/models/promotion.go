package models

import (
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
)

// Promotion — промоакция, дающая Pro-доступ по коду. Открытый код не
// хранится: только HMAC-хэш с версией секрета и отображаемый префикс.
// Заполнено ровно одно из полей GrantDurationDays и GrantFixedEndsAt:
// длительность пристраивается к текущему Pro-времени пользователя,
// фиксированная дата задаёт абсолютный конец доступа.
type Promotion struct {
	ID                    int64
	CodeHash              string     // HMAC-хэш нормализованного кода
	HashVersion           int        // Версия секрета, которым получен хэш
	CodePrefix            string     // Первая группа символов кода, для списков
	GrantDurationDays     *int       // Длительность гранта в днях
	GrantFixedEndsAt      *time.Time // Абсолютный конец гранта
	ValidFrom             *time.Time // Начало окна действия кода
	ValidTo               *time.Time // Конец окна действия кода, исключительно
	MaxRedemptions        *int       // Предел активаций, nil — без предела
	PerUserMaxRedemptions int        // Предел на пользователя, в этой версии всегда 1
	RedemptionCount       int        // Сколько раз код уже активирован
	IsActive              bool
	CreatedAt             time.Time
}

// GrantSpec возвращает спецификацию гранта промоакции.
func (p *Promotion) GrantSpec() entitlement.GrantSpec {
	return entitlement.GrantSpec{
		DurationDays: p.GrantDurationDays,
		FixedEndsAt:  p.GrantFixedEndsAt,
	}
}

// IsRedeemableAt сообщает, действует ли код в момент now:
// код включён и попадает в окно действия. Предел активаций
// проверяется отдельно, под блокировкой строки.
func (p *Promotion) IsRedeemableAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidTo != nil && !now.Before(*p.ValidTo) {
		return false
	}
	return true
}

// RedemptionCapReached сообщает, исчерпан ли предел активаций.
func (p *Promotion) RedemptionCapReached() bool {
	return p.MaxRedemptions != nil && p.RedemptionCount >= *p.MaxRedemptions
}

// PromotionRedemption — факт активации промоакции пользователем.
// Уникальность пары (PromotionID, UserUID) обеспечивается хранилищем:
// конфликт вставки означает повторную активацию, а не ошибку.
type PromotionRedemption struct {
	ID          int64
	PromotionID int64
	UserUID     string
	CreatedAt   time.Time
}
