package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

// OverrideRequest — параметры административной выдачи Pro-доступа.
type OverrideRequest struct {
	UserUID           string
	GrantDurationDays *int
	GrantFixedEndsAt  *time.Time
	Reason            string
	GrantedByUserUID  *string
}

// GrantAdminOverride выдаёт пользователю Pro-доступ решением администратора.
func (s *Service) GrantAdminOverride(ctx context.Context, req OverrideRequest) (*models.OverrideResult, error) {
	return s.upsertAdminOverride(ctx, req, models.EventOverrideGranted)
}

// ExtendAdminOverride продлевает Pro-доступ пользователя. Отличается от
// выдачи только типом записи журнала: новый интервал в обоих случаях
// пристраивается к текущей границе Pro-времени.
func (s *Service) ExtendAdminOverride(ctx context.Context, req OverrideRequest) (*models.OverrideResult, error) {
	return s.upsertAdminOverride(ctx, req, models.EventOverrideExtended)
}

func (s *Service) upsertAdminOverride(ctx context.Context, req OverrideRequest, eventType models.EventType) (*models.OverrideResult, error) {
	const op = "billing.upsertAdminOverride"

	if err := checkGrantSpec(req.GrantDurationDays, req.GrantFixedEndsAt); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var result models.OverrideResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockUser(ctx, req.UserUID); err != nil {
			return err
		}
		sub, err := tx.GetSubscriptionForUpdate(ctx, req.UserUID)
		if err != nil {
			return err
		}
		overrides, err := tx.ListOverrides(ctx, req.UserUID, now)
		if err != nil {
			return err
		}
		proUntil := currentProUntil(sub, overrides, now)

		window := entitlement.ComputeGrantWindow(now, proUntil, entitlement.GrantSpec{
			DurationDays: req.GrantDurationDays,
			FixedEndsAt:  req.GrantFixedEndsAt,
		})

		entityID := ""
		if !window.NoExtension {
			override := &models.EntitlementOverride{
				UserUID:          req.UserUID,
				EntitlementKey:   models.EntitlementKeyPro,
				StartsAt:         window.StartsAt,
				EndsAt:           window.EndsAt,
				SourceType:       models.OverrideSourceAdmin,
				Reason:           req.Reason,
				GrantedByUserUID: req.GrantedByUserUID,
			}
			if err := tx.InsertOverride(ctx, override); err != nil {
				return err
			}
			result.Override = override
			entityID = strconv.FormatInt(override.ID, 10)
		}

		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceAdmin,
			Type:       eventType,
			EntityType: models.EntityOverride,
			EntityID:   entityID,
			UserUID:    &req.UserUID,
			Payload: eventPayload(map[string]any{
				"no_extension": window.NoExtension,
				"starts_at":    window.StartsAt,
				"ends_at":      window.EndsAt,
				"reason":       req.Reason,
			}),
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateStatus(req.UserUID)
	s.log.Info("admin override applied",
		slog.String("user_uid", req.UserUID),
		slog.String("event_type", string(eventType)))
	return &result, nil
}

// RevokeAdminOverride досрочно отзывает оверрайд, сокращая его конец до
// текущего момента. Строка не удаляется: история выдач сохраняется.
// Отзыв уже истёкшего оверрайда идемпотентен.
func (s *Service) RevokeAdminOverride(ctx context.Context, id int64, adminUID *string) (*models.RevokeOverrideResult, error) {
	const op = "billing.RevokeAdminOverride"

	now := time.Now().UTC()
	var result models.RevokeOverrideResult
	var userUID string

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		override, err := tx.GetOverrideForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if override == nil {
			return models.NewCommandError(models.CodeNotFound, "override not found")
		}
		if !override.StartsAt.Before(now) {
			return models.NewCommandError(models.CodeInvalidState, "override has not started yet")
		}
		userUID = override.UserUID
		if !override.EndsAt.After(now) {
			result.AlreadyRevoked = true
			result.Override = override
			return nil
		}

		if err := tx.ShortenOverride(ctx, id, now); err != nil {
			return err
		}
		override.EndsAt = now
		result.Override = override

		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceAdmin,
			Type:       models.EventOverrideRevoked,
			EntityType: models.EntityOverride,
			EntityID:   strconv.FormatInt(id, 10),
			UserUID:    &override.UserUID,
			Payload:    eventPayload(map[string]any{"revoked_at": now}),
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !result.AlreadyRevoked {
		s.invalidateStatus(userUID)
		s.log.Info("admin override revoked", slog.Int64("override_id", id))
	}
	return &result, nil
}
