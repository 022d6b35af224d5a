package models

import (
	"encoding/json"
	"time"
)

// EventType — тип события журнала биллинга, закрытое перечисление.
type EventType string

// Типы событий журнала.
const (
	EventTrialStarted              EventType = "trial_started"
	EventCancelScheduled           EventType = "cancel_scheduled"
	EventCancelUnscheduled         EventType = "cancel_unscheduled"
	EventSubscriptionEnded         EventType = "subscription_ended"
	EventTrialExpiringSoonNotified EventType = "trial_expiring_soon_notified"
	EventPromotionCreated          EventType = "promotion_created"
	EventPromotionEnabled          EventType = "promotion_enabled"
	EventPromotionDisabled         EventType = "promotion_disabled"
	EventPromotionRedeemed         EventType = "promotion_redeemed"
	EventPendingGrantCreated       EventType = "pending_grant_created"
	EventPendingGrantEnabled       EventType = "pending_grant_enabled"
	EventPendingGrantDisabled      EventType = "pending_grant_disabled"
	EventPendingGrantClaimed       EventType = "pending_grant_claimed"
	EventOverrideGranted           EventType = "override_granted"
	EventOverrideExtended          EventType = "override_extended"
	EventOverrideRevoked           EventType = "override_revoked"
)

// Типы сущностей, к которым относятся события.
const (
	EntitySubscription = "subscription"
	EntityPromotion    = "promotion"
	EntityPendingGrant = "pending_grant"
	EntityOverride     = "override"
)

// Источники событий журнала.
const (
	EventSourceUser        = "user"
	EventSourceAdmin       = "admin"
	EventSourceMaintenance = "maintenance"
)

// BillingEvent — запись журнала событий биллинга. Журнал только дописывается:
// записи никогда не обновляются и не удаляются — это единственный механизм
// аудита и защиты от повторной обработки. Пара (Provider, ExternalEventID)
// уникальна и служит идемпотентным ключом для внешних событий и маркеров.
type BillingEvent struct {
	ID              int64
	Source          string          // Кто породил событие: user, admin, maintenance
	Type            EventType       // Тип перехода
	EntityType      string          // Тип затронутой сущности
	EntityID        string          // Идентификатор сущности
	UserUID         *string         // Затронутый пользователь, если применимо
	Payload         json.RawMessage // Детали события
	Provider        *string         // Внешний провайдер для идемпотентной вставки
	ExternalEventID *string         // Идентификатор события у провайдера
	CreatedAt       time.Time
}
