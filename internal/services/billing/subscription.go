package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

// StartTrial запускает пробный период пользователя. Почта должна быть
// подтверждена, пользователь не должен уже иметь Pro-доступ, пробный
// период одноразовый на весь срок жизни учётной записи.
func (s *Service) StartTrial(ctx context.Context, userUID, email string, emailVerified bool) (*models.StartTrialResult, error) {
	const op = "billing.StartTrial"

	if !emailVerified {
		return nil, models.NewCommandError(models.CodeEmailNotVerified, "email must be verified to start a trial")
	}

	now := time.Now().UTC()
	var result models.StartTrialResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		sub, err := tx.GetSubscriptionForUpdate(ctx, userUID)
		if err != nil {
			return err
		}
		overrides, err := tx.ListOverrides(ctx, userUID, now)
		if err != nil {
			return err
		}
		status := entitlement.Evaluate(now, false, models.AssembleIntervals(sub, overrides))
		if status.IsPro {
			return models.NewCommandError(models.CodeAlreadyPro, "user already has pro access")
		}

		inserted, err := tx.InsertTrialUse(ctx, userUID)
		if err != nil {
			return err
		}
		if !inserted {
			return models.NewCommandError(models.CodeTrialAlreadyUsed, "trial was already used")
		}

		trialEndsAt := now.AddDate(0, 0, s.trialDays)
		next := &models.Subscription{
			UserUID:       userUID,
			Email:         email,
			Status:        models.SubscriptionTrialing,
			TrialStartsAt: &now,
			TrialEndsAt:   &trialEndsAt,
		}
		if sub != nil {
			next.PlanKey = sub.PlanKey
		}
		if err := tx.UpsertSubscription(ctx, next); err != nil {
			return err
		}
		result.Subscription = next

		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceUser,
			Type:       models.EventTrialStarted,
			EntityType: models.EntitySubscription,
			EntityID:   userUID,
			UserUID:    &userUID,
			Payload: eventPayload(map[string]any{
				"trial_starts_at": now,
				"trial_ends_at":   trialEndsAt,
			}),
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateStatus(userUID)
	s.log.Info("trial started", slog.String("user_uid", userUID))
	return &result, nil
}

// ScheduleCancelAtPeriodEnd планирует отмену подписки на конец текущего
// окна. Повторный вызов идемпотентен: возвращает AlreadyScheduled без
// новой записи журнала и без повторного письма.
func (s *Service) ScheduleCancelAtPeriodEnd(ctx context.Context, userUID string) (*models.ScheduleCancelResult, error) {
	const op = "billing.ScheduleCancelAtPeriodEnd"

	now := time.Now().UTC()
	var result models.ScheduleCancelResult
	var email string
	var windowEndsAt *time.Time

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		sub, err := tx.GetSubscriptionForUpdate(ctx, userUID)
		if err != nil {
			return err
		}
		if err := checkSubscriptionActive(sub, now); err != nil {
			return err
		}
		if sub.CancelAtPeriodEnd {
			result.AlreadyScheduled = true
			return nil
		}

		_, endsAt := sub.ActiveWindow()
		sub.CancelAtPeriodEnd = true
		sub.CanceledAt = &now
		if err := tx.UpsertSubscription(ctx, sub); err != nil {
			return err
		}
		email = sub.Email
		windowEndsAt = endsAt

		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceUser,
			Type:       models.EventCancelScheduled,
			EntityType: models.EntitySubscription,
			EntityID:   userUID,
			UserUID:    &userUID,
			Payload:    eventPayload(map[string]any{"ends_at": endsAt}),
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !result.AlreadyScheduled {
		s.invalidateStatus(userUID)
		s.notify(models.Notification{
			Kind:    models.NotifyCancelScheduled,
			UserUID: userUID,
			Email:   email,
			EndsAt:  windowEndsAt,
		})
	}
	return &result, nil
}

// ResumeSubscription снимает запланированную отмену. Идемпотентна:
// если отмена не планировалась, возвращает AlreadyResumed.
func (s *Service) ResumeSubscription(ctx context.Context, userUID string) (*models.ResumeResult, error) {
	const op = "billing.ResumeSubscription"

	now := time.Now().UTC()
	var result models.ResumeResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		sub, err := tx.GetSubscriptionForUpdate(ctx, userUID)
		if err != nil {
			return err
		}
		if err := checkSubscriptionActive(sub, now); err != nil {
			return err
		}
		if !sub.CancelAtPeriodEnd {
			result.AlreadyResumed = true
			return nil
		}

		sub.CancelAtPeriodEnd = false
		sub.CanceledAt = nil
		if err := tx.UpsertSubscription(ctx, sub); err != nil {
			return err
		}

		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceUser,
			Type:       models.EventCancelUnscheduled,
			EntityType: models.EntitySubscription,
			EntityID:   userUID,
			UserUID:    &userUID,
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !result.AlreadyResumed {
		s.invalidateStatus(userUID)
	}
	return &result, nil
}

// checkSubscriptionActive проверяет, что подписка существует, не завершена
// и её значимое окно ещё не истекло.
func checkSubscriptionActive(sub *models.Subscription, now time.Time) error {
	if sub == nil {
		return models.NewCommandError(models.CodeNotFound, "subscription not found")
	}
	if sub.Status == models.SubscriptionEnded {
		return models.NewCommandError(models.CodeSubscriptionEnded, "subscription already ended")
	}
	_, endsAt := sub.ActiveWindow()
	if endsAt == nil || !endsAt.After(now) {
		return models.NewCommandError(models.CodeNotActive, "subscription window already elapsed")
	}
	return nil
}
