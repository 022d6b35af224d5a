// Package storage описывает контракты хранилища движка Pro-доступа.
// Store открывает транзакции и выполняет чтения вне транзакций;
// Tx — операции над строками внутри открытой транзакции, включая
// явные блокировки строк (SELECT ... FOR UPDATE) и условные вставки
// (INSERT ... ON CONFLICT DO NOTHING). Сервисы зависят от этих интерфейсов,
// реализация живёт в пакете repository.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/codehash"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// ErrDuplicateCodeHash возвращается InsertPromotion при коллизии хэша кода.
var ErrDuplicateCodeHash = errors.New("promotion code hash already exists")

// Store — корневой интерфейс хранилища.
type Store interface {
	// WithTx открывает транзакцию, выполняет fn и фиксирует её.
	// Любая ошибка fn откатывает транзакцию целиком.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// GetSubscription возвращает подписку пользователя без блокировки.
	// (nil, nil), если подписки нет.
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)

	// ListOverrides возвращает оверрайды пользователя с EndsAt > endsAfter.
	ListOverrides(ctx context.Context, userUID string, endsAfter time.Time) ([]*models.EntitlementOverride, error)

	// FindExpiredSubscriptions возвращает идентификаторы пользователей,
	// чья подписка просрочена: trialing с прошедшим trial_ends_at либо
	// active с прошедшим current_period_ends_at.
	FindExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]string, error)

	// FindTrialsExpiringWithin возвращает пробные подписки, заканчивающиеся
	// в интервале [now, now+within).
	FindTrialsExpiringWithin(ctx context.Context, now time.Time, within time.Duration) ([]*models.Subscription, error)

	// FindExpiredActivePromotionIDs возвращает включённые промоакции
	// с прошедшим valid_to.
	FindExpiredActivePromotionIDs(ctx context.Context, now time.Time, limit int) ([]int64, error)

	// FindExpiredActivePendingGrantIDs возвращает включённые незабранные
	// гранты с прошедшим claim_valid_to.
	FindExpiredActivePendingGrantIDs(ctx context.Context, now time.Time, limit int) ([]int64, error)
}

// Tx — операции внутри одной транзакции. Блокирующие методы (*ForUpdate)
// берут исключительную блокировку строк до конца транзакции.
type Tx interface {
	// LockUser берёт транзакционную advisory-блокировку по идентификатору
	// пользователя. Команды, добавляющие доступ, берут её первой: у
	// пользователя без строки подписки FOR UPDATE ничего не блокирует,
	// и без неё два конкурирующих гранта посчитают окна от одного
	// и того же currentProUntil.
	LockUser(ctx context.Context, userUID string) error

	// Подписки.
	GetSubscriptionForUpdate(ctx context.Context, userUID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	// MarkSubscriptionEnded переводит подписку в ended по compare-and-set:
	// срабатывает только из статусов trialing и active. Возвращает false,
	// если подписка уже завершена параллельным проходом.
	MarkSubscriptionEnded(ctx context.Context, userUID string, endedAt time.Time) (bool, error)
	// InsertTrialUse отмечает использование пробного периода.
	// false — строка уже существовала, пробный период уже был использован.
	InsertTrialUse(ctx context.Context, userUID string) (bool, error)

	// Оверрайды.
	InsertOverride(ctx context.Context, o *models.EntitlementOverride) error
	GetOverrideForUpdate(ctx context.Context, id int64) (*models.EntitlementOverride, error)
	ListOverrides(ctx context.Context, userUID string, endsAfter time.Time) ([]*models.EntitlementOverride, error)
	// ShortenOverride сокращает EndsAt оверрайда до endsAt. Запись не удаляется.
	ShortenOverride(ctx context.Context, id int64, endsAt time.Time) error

	// Промоакции.
	InsertPromotion(ctx context.Context, p *models.Promotion) error
	GetPromotionForUpdate(ctx context.Context, id int64) (*models.Promotion, error)
	// GetPromotionByHashForUpdate ищет промоакцию по хэшам кода всех версий
	// секретов. (nil, nil), если код неизвестен.
	GetPromotionByHashForUpdate(ctx context.Context, hashes []codehash.Hash) (*models.Promotion, error)
	// SetPromotionActive включает или отключает промоакцию.
	// false — состояние уже было таким, изменения не произошло.
	SetPromotionActive(ctx context.Context, id int64, active bool) (bool, error)
	// InsertPromotionRedemption вставляет факт активации с ON CONFLICT DO
	// NOTHING по (promotion_id, user_uid). false — пользователь уже
	// активировал этот код.
	InsertPromotionRedemption(ctx context.Context, promotionID int64, userUID string) (bool, error)
	IncrementPromotionRedemptions(ctx context.Context, id int64) error

	// Отложенные гранты.
	InsertPendingGrant(ctx context.Context, g *models.PendingEntitlementGrant) error
	GetPendingGrantForUpdate(ctx context.Context, id int64) (*models.PendingEntitlementGrant, error)
	SetPendingGrantActive(ctx context.Context, id int64, active bool) (bool, error)
	// ListClaimableGrantsForUpdate блокирует и возвращает все незабранные
	// активные гранты с подходящим окном забора по любому из хэшей адреса,
	// старые первыми.
	ListClaimableGrantsForUpdate(ctx context.Context, hashes []codehash.Hash, now time.Time) ([]*models.PendingEntitlementGrant, error)
	// ClaimPendingGrant отмечает грант забранным с защитой claimed_at IS NULL.
	// false — грант уже забран параллельной операцией.
	ClaimPendingGrant(ctx context.Context, id int64, userUID, source string, claimedAt time.Time) (bool, error)

	// Журнал событий. Записи только добавляются.
	AppendEvent(ctx context.Context, ev *models.BillingEvent) error
	// AppendEventIdempotent добавляет событие с ON CONFLICT DO NOTHING
	// по паре (provider, external_event_id). false — событие уже записано.
	AppendEventIdempotent(ctx context.Context, ev *models.BillingEvent) (bool, error)
}
