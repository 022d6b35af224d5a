package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

const subscriptionColumns = `user_uid, email, status, plan_key, trial_starts_at, trial_ends_at,
		      current_period_starts_at, current_period_ends_at, cancel_at_period_end,
		      canceled_at, ended_at, created_at, updated_at`

func scanSubscription(row *sql.Row) (*models.Subscription, error) {
	var s models.Subscription
	var trialStarts, trialEnds, periodStarts, periodEnds, canceledAt, endedAt sql.NullTime
	err := row.Scan(&s.UserUID, &s.Email, &s.Status, &s.PlanKey, &trialStarts, &trialEnds,
		&periodStarts, &periodEnds, &s.CancelAtPeriodEnd, &canceledAt, &endedAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.TrialStartsAt = timePtr(trialStarts)
	s.TrialEndsAt = timePtr(trialEnds)
	s.CurrentPeriodStartsAt = timePtr(periodStarts)
	s.CurrentPeriodEndsAt = timePtr(periodEnds)
	s.CanceledAt = timePtr(canceledAt)
	s.EndedAt = timePtr(endedAt)
	return &s, nil
}

func getSubscription(ctx context.Context, q querier, userUID string, forUpdate bool) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sub, err := scanSubscription(q.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// GetSubscription возвращает подписку пользователя без блокировки.
func (s *Storage) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sub, err := getSubscription(ctx, s.DB, userUID, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// LockUser берёт advisory-блокировку по идентификатору пользователя
// до конца транзакции. У пользователя без строки подписки FOR UPDATE
// блокировать нечего, поэтому конкурирующие выдачи доступа
// сериализуются этой блокировкой.
func (t *Tx) LockUser(ctx context.Context, userUID string) error {
	const op = "storage.LockUser"
	_, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscriptionForUpdate возвращает подписку пользователя, блокируя
// строку до конца транзакции.
func (t *Tx) GetSubscriptionForUpdate(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionForUpdate"
	sub, err := getSubscription(ctx, t.tx, userUID, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// UpsertSubscription вставляет или целиком обновляет единственную строку
// подписки пользователя.
func (t *Tx) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.UpsertSubscription"

	query := `INSERT INTO subscriptions (user_uid, email, status, plan_key, trial_starts_at, trial_ends_at,
			      current_period_starts_at, current_period_ends_at, cancel_at_period_end,
			      canceled_at, ended_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
			  ON CONFLICT (user_uid) DO UPDATE SET
			      email = EXCLUDED.email,
			      status = EXCLUDED.status,
			      plan_key = EXCLUDED.plan_key,
			      trial_starts_at = EXCLUDED.trial_starts_at,
			      trial_ends_at = EXCLUDED.trial_ends_at,
			      current_period_starts_at = EXCLUDED.current_period_starts_at,
			      current_period_ends_at = EXCLUDED.current_period_ends_at,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      canceled_at = EXCLUDED.canceled_at,
			      ended_at = EXCLUDED.ended_at,
			      updated_at = now()
			  RETURNING created_at, updated_at`
	err := t.tx.QueryRowContext(ctx, query,
		sub.UserUID, sub.Email, sub.Status, sub.PlanKey, nullTime(sub.TrialStartsAt), nullTime(sub.TrialEndsAt),
		nullTime(sub.CurrentPeriodStartsAt), nullTime(sub.CurrentPeriodEndsAt), sub.CancelAtPeriodEnd,
		nullTime(sub.CanceledAt), nullTime(sub.EndedAt)).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkSubscriptionEnded переводит подписку в терминальный статус ended.
// Compare-and-set по статусу защищает от двойного завершения при
// наложении параллельных проходов обслуживающей задачи.
func (t *Tx) MarkSubscriptionEnded(ctx context.Context, userUID string, endedAt time.Time) (bool, error) {
	const op = "storage.MarkSubscriptionEnded"

	query := `UPDATE subscriptions
			  SET status = 'ended', ended_at = $1, updated_at = now()
			  WHERE user_uid = $2
			    AND status IN ('trialing', 'active')`
	res, err := t.tx.ExecContext(ctx, query, endedAt, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// InsertTrialUse отмечает, что пользователь использовал пробный период.
// Возвращает false, если отметка уже существовала.
func (t *Tx) InsertTrialUse(ctx context.Context, userUID string) (bool, error) {
	const op = "storage.InsertTrialUse"

	query := `INSERT INTO trial_uses (user_uid)
			  VALUES ($1)
			  ON CONFLICT (user_uid) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// FindExpiredSubscriptions возвращает идентификаторы пользователей
// с просроченными подписками.
func (s *Storage) FindExpiredSubscriptions(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const op = "storage.FindExpiredSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid
			  FROM subscriptions
			  WHERE (status = 'trialing' AND trial_ends_at <= $1)
			     OR (status = 'active' AND current_period_ends_at <= $1)
			  ORDER BY user_uid
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, uid)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindTrialsExpiringWithin возвращает пробные подписки, заканчивающиеся
// в интервале [now, now+within).
func (s *Storage) FindTrialsExpiringWithin(ctx context.Context, now time.Time, within time.Duration) ([]*models.Subscription, error) {
	const op = "storage.FindTrialsExpiringWithin"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE status = 'trialing'
			    AND trial_ends_at >= $1
			    AND trial_ends_at < $2
			  ORDER BY trial_ends_at`
	rows, err := s.DB.QueryContext(ctx, query, now, now.Add(within))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var sub models.Subscription
		var trialStarts, trialEnds, periodStarts, periodEnds, canceledAt, endedAt sql.NullTime
		if err := rows.Scan(&sub.UserUID, &sub.Email, &sub.Status, &sub.PlanKey, &trialStarts, &trialEnds,
			&periodStarts, &periodEnds, &sub.CancelAtPeriodEnd, &canceledAt, &endedAt,
			&sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sub.TrialStartsAt = timePtr(trialStarts)
		sub.TrialEndsAt = timePtr(trialEnds)
		sub.CurrentPeriodStartsAt = timePtr(periodStarts)
		sub.CurrentPeriodEndsAt = timePtr(periodEnds)
		sub.CanceledAt = timePtr(canceledAt)
		sub.EndedAt = timePtr(endedAt)
		result = append(result, &sub)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
