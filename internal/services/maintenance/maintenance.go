// Package maintenance реализует обслуживающий проход движка Pro-доступа:
// завершение просроченных подписок, уведомления о скором конце пробного
// периода и отключение истёкших промоакций и отложенных грантов.
// Каждая строка обрабатывается в отдельной короткой транзакции, повторный
// запуск прохода безопасен.
package maintenance

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

// batchSize ограничивает число строк, обрабатываемых одним проходом.
const batchSize = 500

// markerProvider — значение provider для идемпотентных маркеров журнала.
const markerProvider = "maintenance"

var processedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "entitlement_maintenance_processed_total",
	Help: "Rows affected by maintenance sweep passes.",
}, []string{"pass"})

// Cache описывает инвалидацию кеша статуса по пользователю.
type Cache interface {
	InvalidateUser(userUID string) error
}

// Notifier публикует уведомления пользователям в брокер.
type Notifier interface {
	PublishNotification(n models.Notification) error
}

// Service выполняет обслуживающие проходы по хранилищу.
type Service struct {
	store            storage.Store
	cache            Cache
	notifier         Notifier
	log              *slog.Logger
	expiringSoonDays int
}

// New создает новый экземпляр Service.
func New(store storage.Store, cache Cache, notifier Notifier, log *slog.Logger, expiringSoonDays int) *Service {
	return &Service{
		store:            store,
		cache:            cache,
		notifier:         notifier,
		log:              log,
		expiringSoonDays: expiringSoonDays,
	}
}

// Run запускает проход сразу и далее по тикеру до отмены контекста.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	stats, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("maintenance sweep failed", sl.Err(err))
		return
	}
	s.log.Info("maintenance sweep finished",
		slog.Int("ended_subscriptions", stats.EndedSubscriptions),
		slog.Int("trial_notices_sent", stats.TrialNoticesSent),
		slog.Int("disabled_promotions", stats.DisabledPromotions),
		slog.Int("disabled_pending_grants", stats.DisabledPendingGrants))
}

// RunOnce выполняет три независимых прохода и возвращает счётчики.
// Ошибка отдельной строки не прерывает проход: строка будет подхвачена
// следующим запуском.
func (s *Service) RunOnce(ctx context.Context) (models.MaintenanceStats, error) {
	var stats models.MaintenanceStats

	ended, err := s.finalizeExpiredSubscriptions(ctx)
	if err != nil {
		return stats, err
	}
	stats.EndedSubscriptions = ended
	processedTotal.WithLabelValues("ended_subscriptions").Add(float64(ended))

	notices, err := s.notifyExpiringTrials(ctx)
	if err != nil {
		return stats, err
	}
	stats.TrialNoticesSent = notices
	processedTotal.WithLabelValues("trial_notices").Add(float64(notices))

	promos, err := s.disableExpiredPromotions(ctx)
	if err != nil {
		return stats, err
	}
	stats.DisabledPromotions = promos
	processedTotal.WithLabelValues("disabled_promotions").Add(float64(promos))

	grants, err := s.disableExpiredPendingGrants(ctx)
	if err != nil {
		return stats, err
	}
	stats.DisabledPendingGrants = grants
	processedTotal.WithLabelValues("disabled_pending_grants").Add(float64(grants))

	return stats, nil
}

// finalizeExpiredSubscriptions переводит просроченные подписки в ended.
// Момент завершения равен границе окна, а не времени запуска прохода.
// Compare-and-set по статусу защищает от параллельного прохода.
func (s *Service) finalizeExpiredSubscriptions(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	uids, err := s.store.FindExpiredSubscriptions(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, uid := range uids {
		var email string
		var windowEndsAt *time.Time
		endedHere := false

		err := s.store.WithTx(ctx, func(tx storage.Tx) error {
			sub, err := tx.GetSubscriptionForUpdate(ctx, uid)
			if err != nil {
				return err
			}
			if sub == nil || sub.Status == models.SubscriptionEnded {
				return nil
			}
			_, endsAt := sub.ActiveWindow()
			if endsAt == nil || endsAt.After(now) {
				return nil
			}

			ok, err := tx.MarkSubscriptionEnded(ctx, uid, *endsAt)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			endedHere = true
			email = sub.Email
			windowEndsAt = endsAt

			return tx.AppendEvent(ctx, &models.BillingEvent{
				Source:     models.EventSourceMaintenance,
				Type:       models.EventSubscriptionEnded,
				EntityType: models.EntitySubscription,
				EntityID:   uid,
				UserUID:    &uid,
			})
		})
		if err != nil {
			s.log.Error("failed to finalize subscription",
				slog.String("user_uid", uid), sl.Err(err))
			continue
		}
		if !endedHere {
			continue
		}

		count++
		s.invalidateStatus(uid)
		s.notify(models.Notification{
			Kind:    models.NotifySubscriptionEnded,
			UserUID: uid,
			Email:   email,
			EndsAt:  windowEndsAt,
		})
	}
	return count, nil
}

// notifyExpiringTrials рассылает уведомления о скором конце пробного периода.
// Идемпотентность обеспечивает маркер в журнале событий: письмо уходит
// только если маркер был вставлен этим проходом.
func (s *Service) notifyExpiringTrials(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	within := time.Duration(s.expiringSoonDays) * 24 * time.Hour

	subs, err := s.store.FindTrialsExpiringWithin(ctx, now, within)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, sub := range subs {
		uid := sub.UserUID
		externalEventID := "trial_expiring_soon_notified:" + uid
		provider := markerProvider
		inserted := false

		err := s.store.WithTx(ctx, func(tx storage.Tx) error {
			ok, err := tx.AppendEventIdempotent(ctx, &models.BillingEvent{
				Source:          models.EventSourceMaintenance,
				Type:            models.EventTrialExpiringSoonNotified,
				EntityType:      models.EntitySubscription,
				EntityID:        uid,
				UserUID:         &uid,
				Provider:        &provider,
				ExternalEventID: &externalEventID,
			})
			if err != nil {
				return err
			}
			inserted = ok
			return nil
		})
		if err != nil {
			s.log.Error("failed to insert trial notice marker",
				slog.String("user_uid", uid), sl.Err(err))
			continue
		}
		if !inserted {
			continue
		}

		count++
		s.notify(models.Notification{
			Kind:    models.NotifyTrialExpiringSoon,
			UserUID: uid,
			Email:   sub.Email,
			EndsAt:  sub.TrialEndsAt,
		})
	}
	return count, nil
}

func (s *Service) disableExpiredPromotions(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	ids, err := s.store.FindExpiredActivePromotionIDs(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		changed := false
		err := s.store.WithTx(ctx, func(tx storage.Tx) error {
			ok, err := tx.SetPromotionActive(ctx, id, false)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			changed = true
			return tx.AppendEvent(ctx, &models.BillingEvent{
				Source:     models.EventSourceMaintenance,
				Type:       models.EventPromotionDisabled,
				EntityType: models.EntityPromotion,
				EntityID:   strconv.FormatInt(id, 10),
			})
		})
		if err != nil {
			s.log.Error("failed to disable expired promotion",
				slog.Int64("promotion_id", id), sl.Err(err))
			continue
		}
		if changed {
			count++
		}
	}
	return count, nil
}

func (s *Service) disableExpiredPendingGrants(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	ids, err := s.store.FindExpiredActivePendingGrantIDs(ctx, now, batchSize)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		changed := false
		err := s.store.WithTx(ctx, func(tx storage.Tx) error {
			ok, err := tx.SetPendingGrantActive(ctx, id, false)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			changed = true
			return tx.AppendEvent(ctx, &models.BillingEvent{
				Source:     models.EventSourceMaintenance,
				Type:       models.EventPendingGrantDisabled,
				EntityType: models.EntityPendingGrant,
				EntityID:   strconv.FormatInt(id, 10),
			})
		})
		if err != nil {
			s.log.Error("failed to disable expired pending grant",
				slog.Int64("grant_id", id), sl.Err(err))
			continue
		}
		if changed {
			count++
		}
	}
	return count, nil
}

func (s *Service) invalidateStatus(userUID string) {
	if err := s.cache.InvalidateUser(userUID); err != nil {
		s.log.Warn("failed to invalidate status cache",
			slog.String("user_uid", userUID), sl.Err(err))
	}
}

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
