package models

import "time"

// NotificationKind — вид уведомления пользователю.
type NotificationKind string

// Виды уведомлений, публикуемых после фиксации транзакций.
const (
	NotifyCancelScheduled   NotificationKind = "cancel_scheduled"
	NotifySubscriptionEnded NotificationKind = "subscription_ended"
	NotifyTrialExpiringSoon NotificationKind = "trial_expiring_soon"
)

// Notification — сообщение для сервиса отправки писем. Публикуется в брокер
// после коммита; ошибки публикации логируются и не влияют на результат команды.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	UserUID string           `json:"user_uid"`
	Email   string           `json:"email"`
	EndsAt  *time.Time       `json:"ends_at,omitempty"` // Граница окна, о которой сообщаем
}
