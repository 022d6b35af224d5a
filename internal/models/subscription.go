// Package models содержит доменные структуры биллинга: подписку, оверрайды
// Pro-доступа, промоакции, отложенные гранты и записи журнала событий.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import "time"

// SubscriptionStatus — статус подписки пользователя.
type SubscriptionStatus string

// Возможные статусы подписки. Статус ended терминальный:
// дальнейшие переходы запрещены.
const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionEnded    SubscriptionStatus = "ended"
)

// Subscription — подписка пользователя, не более одной строки на пользователя.
// В зависимости от статуса значимо ровно одно из окон: пробное
// (TrialStartsAt/TrialEndsAt) или оплаченного периода
// (CurrentPeriodStartsAt/CurrentPeriodEndsAt).
type Subscription struct {
	UserUID               string             // Владелец подписки
	Email                 string             // Контактный адрес для уведомлений жизненного цикла
	Status                SubscriptionStatus // Текущий статус
	PlanKey               string             // Ключ тарифного плана
	TrialStartsAt         *time.Time         // Начало пробного периода
	TrialEndsAt           *time.Time         // Конец пробного периода, исключительно
	CurrentPeriodStartsAt *time.Time         // Начало оплаченного периода
	CurrentPeriodEndsAt   *time.Time         // Конец оплаченного периода, исключительно
	CancelAtPeriodEnd     bool               // Отмена запланирована на конец периода
	CanceledAt            *time.Time         // Когда была запланирована отмена
	EndedAt               *time.Time         // Когда подписка завершилась
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ActiveWindow возвращает границы значимого окна подписки в зависимости
// от статуса. Для завершённой подписки окна нет.
func (s *Subscription) ActiveWindow() (startsAt, endsAt *time.Time) {
	switch s.Status {
	case SubscriptionTrialing:
		return s.TrialStartsAt, s.TrialEndsAt
	case SubscriptionActive:
		return s.CurrentPeriodStartsAt, s.CurrentPeriodEndsAt
	default:
		return nil, nil
	}
}
