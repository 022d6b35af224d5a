package models

import (
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
)

// Результаты команд. Признаки Already* означают идемпотентный повтор:
// операция уже была выполнена ранее, повторный вызов успешен и ничего
// не изменил.

// StartTrialResult — результат запуска пробного периода.
type StartTrialResult struct {
	Subscription *Subscription `json:"subscription"`
}

// ScheduleCancelResult — результат планирования отмены подписки.
type ScheduleCancelResult struct {
	AlreadyScheduled bool `json:"already_scheduled"`
}

// ResumeResult — результат снятия запланированной отмены.
type ResumeResult struct {
	AlreadyResumed bool `json:"already_resumed"`
}

// RedeemResult — результат активации промокода.
type RedeemResult struct {
	AlreadyRedeemed bool                 `json:"already_redeemed"`
	NoExtension     bool                 `json:"no_extension"`
	Override        *EntitlementOverride `json:"override,omitempty"`
	ProUntil        *time.Time           `json:"pro_until,omitempty"`
}

// CreatePromotionResult — результат создания промоакции.
// Открытый код возвращается единственный раз и нигде не сохраняется.
type CreatePromotionResult struct {
	Promotion *Promotion `json:"promotion"`
	Code      string     `json:"code"`
}

// TogglePromotionResult — результат включения или отключения промоакции.
type TogglePromotionResult struct {
	Changed bool `json:"changed"`
}

// CreatePendingGrantResult — результат создания отложенного гранта.
type CreatePendingGrantResult struct {
	Grant *PendingEntitlementGrant `json:"grant"`
}

// TogglePendingGrantResult — результат включения или отключения гранта.
type TogglePendingGrantResult struct {
	Changed bool `json:"changed"`
}

// ClaimedGrant — один забранный грант и созданный по нему оверрайд.
type ClaimedGrant struct {
	Grant    *PendingEntitlementGrant `json:"grant"`
	Override *EntitlementOverride     `json:"override,omitempty"`
}

// ClaimGrantsResult — результат забора всех подходящих отложенных грантов.
type ClaimGrantsResult struct {
	Claimed []ClaimedGrant `json:"claimed"`
}

// OverrideResult — результат выдачи или продления оверрайда.
type OverrideResult struct {
	Override *EntitlementOverride `json:"override"`
}

// RevokeOverrideResult — результат отзыва оверрайда.
type RevokeOverrideResult struct {
	AlreadyRevoked bool                 `json:"already_revoked"`
	Override       *EntitlementOverride `json:"override,omitempty"`
}

// MaintenanceStats — счётчики одного прохода обслуживающей задачи.
type MaintenanceStats struct {
	EndedSubscriptions    int `json:"ended_subscriptions"`
	TrialNoticesSent      int `json:"trial_notices_sent"`
	DisabledPromotions    int `json:"disabled_promotions"`
	DisabledPendingGrants int `json:"disabled_pending_grants"`
}

// Total возвращает суммарное число затронутых записей.
func (s MaintenanceStats) Total() int {
	return s.EndedSubscriptions + s.TrialNoticesSent + s.DisabledPromotions + s.DisabledPendingGrants
}

// ProStatus — снимок состояния для отображения: подписка плюс вычисленный
// Pro-статус. Сам статус никогда не хранится, он выводится при каждом чтении.
type ProStatus struct {
	Subscription *Subscription      `json:"subscription,omitempty"`
	Entitlement  entitlement.Status `json:"entitlement"`
}
