// Package billing содержит транзакционные команды движка Pro-доступа:
// пробный период, отмена и возобновление подписки, промоакции, отложенные
// гранты и административные оверрайды. Каждая команда выполняет переход
// состояния и ровно одну запись журнала в одной транзакции; инвалидация
// кеша и уведомления идут после коммита и не влияют на результат.
package billing

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/codehash"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

// Cache описывает инвалидацию кеша статуса по пользователю.
type Cache interface {
	// InvalidateUser удаляет закешированный статус пользователя.
	InvalidateUser(userUID string) error
}

// Notifier публикует уведомления пользователям в брокер.
type Notifier interface {
	PublishNotification(n models.Notification) error
}

// Service реализует команды биллинга поверх транзакционного хранилища.
type Service struct {
	store     storage.Store
	cache     Cache
	notifier  Notifier
	hasher    *codehash.Hasher
	log       *slog.Logger
	trialDays int
}

// New создает новый экземпляр Service.
func New(store storage.Store, cache Cache, notifier Notifier, hasher *codehash.Hasher, log *slog.Logger, trialDays int) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		notifier:  notifier,
		hasher:    hasher,
		log:       log,
		trialDays: trialDays,
	}
}

// invalidateStatus сбрасывает кеш статуса после коммита. Ошибка кеша
// не откатывает уже зафиксированный переход, только пишется в лог.
func (s *Service) invalidateStatus(userUID string) {
	if err := s.cache.InvalidateUser(userUID); err != nil {
		s.log.Warn("failed to invalidate status cache",
			slog.String("user_uid", userUID), sl.Err(err))
	}
}

// notify отправляет уведомление после коммита. Ошибки публикации
// проглатываются: доставка писем не входит в контракт команды.
func (s *Service) notify(n models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishNotification(n); err != nil {
		s.log.Error("failed to publish notification",
			slog.String("kind", string(n.Kind)),
			slog.String("user_uid", n.UserUID), sl.Err(err))
	}
}

// currentProUntil вычисляет текущую границу Pro-доступа пользователя
// под блокировкой его строк. Используется калькулятором окна гранта
// для пристраивания нового доступа к существующему.
func currentProUntil(sub *models.Subscription, overrides []*models.EntitlementOverride, now time.Time) *time.Time {
	status := entitlement.Evaluate(now, false, models.AssembleIntervals(sub, overrides))
	return status.ProUntil
}

// eventPayload сериализует детали события журнала.
func eventPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
