package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/entitlement"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/promocode"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

// maxCodeGenerationAttempts — попытки сгенерировать код без коллизии хэша.
const maxCodeGenerationAttempts = 5

// CreatePromotionRequest — параметры новой промоакции. Заполняется ровно
// одно из полей GrantDurationDays и GrantFixedEndsAt.
type CreatePromotionRequest struct {
	GrantDurationDays     *int
	GrantFixedEndsAt      *time.Time
	ValidFrom             *time.Time
	ValidTo               *time.Time
	MaxRedemptions        *int
	PerUserMaxRedemptions int
	CreatedByUserUID      *string
}

// RedeemPromotionForUser активирует промокод для пользователя. Повторная
// активация того же кода тем же пользователем идемпотентна: возвращает
// AlreadyRedeemed без изменения счётчиков и без нового оверрайда.
func (s *Service) RedeemPromotionForUser(ctx context.Context, userUID, code string) (*models.RedeemResult, error) {
	const op = "billing.RedeemPromotionForUser"

	hashes := s.hasher.CodeHashes(code)

	now := time.Now().UTC()
	var result models.RedeemResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockUser(ctx, userUID); err != nil {
			return err
		}
		promo, err := tx.GetPromotionByHashForUpdate(ctx, hashes)
		if err != nil {
			return err
		}
		if promo == nil {
			return models.NewCommandError(models.CodePromoNotFound, "promotion code is not recognized")
		}
		if !promo.IsRedeemableAt(now) {
			return models.NewCommandError(models.CodePromoInactive, "promotion is disabled or outside its validity window")
		}
		if promo.RedemptionCapReached() {
			return models.NewCommandError(models.CodePromoMaxRedemptions, "promotion redemption cap reached")
		}

		inserted, err := tx.InsertPromotionRedemption(ctx, promo.ID, userUID)
		if err != nil {
			return err
		}
		if !inserted {
			result.AlreadyRedeemed = true
			return nil
		}

		sub, err := tx.GetSubscriptionForUpdate(ctx, userUID)
		if err != nil {
			return err
		}
		overrides, err := tx.ListOverrides(ctx, userUID, now)
		if err != nil {
			return err
		}
		proUntil := currentProUntil(sub, overrides, now)

		window := entitlement.ComputeGrantWindow(now, proUntil, promo.GrantSpec())
		result.NoExtension = window.NoExtension
		result.ProUntil = proUntil

		if err := tx.IncrementPromotionRedemptions(ctx, promo.ID); err != nil {
			return err
		}

		if !window.NoExtension {
			sourceID := "promotion:" + strconv.FormatInt(promo.ID, 10)
			override := &models.EntitlementOverride{
				UserUID:        userUID,
				EntitlementKey: models.EntitlementKeyPro,
				StartsAt:       window.StartsAt,
				EndsAt:         window.EndsAt,
				SourceType:     models.OverrideSourcePromotion,
				SourceID:       &sourceID,
				Reason:         "promotion " + promo.CodePrefix,
			}
			if err := tx.InsertOverride(ctx, override); err != nil {
				return err
			}
			result.Override = override
			result.ProUntil = &window.EndsAt
		}

		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceUser,
			Type:       models.EventPromotionRedeemed,
			EntityType: models.EntityPromotion,
			EntityID:   strconv.FormatInt(promo.ID, 10),
			UserUID:    &userUID,
			Payload: eventPayload(map[string]any{
				"no_extension": window.NoExtension,
				"starts_at":    window.StartsAt,
				"ends_at":      window.EndsAt,
			}),
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !result.AlreadyRedeemed {
		s.invalidateStatus(userUID)
		s.log.Info("promotion redeemed",
			slog.String("user_uid", userUID),
			slog.Bool("no_extension", result.NoExtension))
	}
	return &result, nil
}

// CreatePromotion создаёт промоакцию и возвращает открытый код один раз.
// При коллизии хэша кода генерация повторяется ограниченное число раз.
func (s *Service) CreatePromotion(ctx context.Context, req CreatePromotionRequest) (*models.CreatePromotionResult, error) {
	const op = "billing.CreatePromotion"

	if req.PerUserMaxRedemptions != 1 {
		return nil, models.NewCommandError(models.CodeInvalidPerUserLimit, "per-user redemption limit must equal 1")
	}
	if err := checkGrantSpec(req.GrantDurationDays, req.GrantFixedEndsAt); err != nil {
		return nil, err
	}

	var result models.CreatePromotionResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		for attempt := 0; attempt < maxCodeGenerationAttempts; attempt++ {
			code, err := promocode.Generate()
			if err != nil {
				return err
			}
			hash := s.hasher.HashCode(code)

			promo := &models.Promotion{
				CodeHash:              hash.Value,
				HashVersion:           hash.Version,
				CodePrefix:            promocode.Prefix(code),
				GrantDurationDays:     req.GrantDurationDays,
				GrantFixedEndsAt:      req.GrantFixedEndsAt,
				ValidFrom:             req.ValidFrom,
				ValidTo:               req.ValidTo,
				MaxRedemptions:        req.MaxRedemptions,
				PerUserMaxRedemptions: req.PerUserMaxRedemptions,
				IsActive:              true,
			}
			if err := tx.InsertPromotion(ctx, promo); err != nil {
				if errors.Is(err, storage.ErrDuplicateCodeHash) {
					continue
				}
				return err
			}

			result.Promotion = promo
			result.Code = code

			return tx.AppendEvent(ctx, &models.BillingEvent{
				Source:     models.EventSourceAdmin,
				Type:       models.EventPromotionCreated,
				EntityType: models.EntityPromotion,
				EntityID:   strconv.FormatInt(promo.ID, 10),
				UserUID:    req.CreatedByUserUID,
				Payload:    eventPayload(map[string]any{"code_prefix": promo.CodePrefix}),
			})
		}
		return models.NewCommandError(models.CodeCodeGenerationFailed, "could not generate a unique promotion code")
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("promotion created",
		slog.Int64("promotion_id", result.Promotion.ID),
		slog.String("code_prefix", result.Promotion.CodePrefix))
	return &result, nil
}

// DisablePromotion отключает промоакцию. Повторное отключение идемпотентно.
func (s *Service) DisablePromotion(ctx context.Context, id int64, adminUID *string) (*models.TogglePromotionResult, error) {
	return s.setPromotionActive(ctx, id, adminUID, false)
}

// EnablePromotion включает промоакцию. Повторное включение идемпотентно.
func (s *Service) EnablePromotion(ctx context.Context, id int64, adminUID *string) (*models.TogglePromotionResult, error) {
	return s.setPromotionActive(ctx, id, adminUID, true)
}

func (s *Service) setPromotionActive(ctx context.Context, id int64, adminUID *string, active bool) (*models.TogglePromotionResult, error) {
	const op = "billing.setPromotionActive"

	var result models.TogglePromotionResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		promo, err := tx.GetPromotionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if promo == nil {
			return models.NewCommandError(models.CodeNotFound, "promotion not found")
		}

		changed, err := tx.SetPromotionActive(ctx, id, active)
		if err != nil {
			return err
		}
		result.Changed = changed
		if !changed {
			return nil
		}

		eventType := models.EventPromotionDisabled
		if active {
			eventType = models.EventPromotionEnabled
		}
		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceAdmin,
			Type:       eventType,
			EntityType: models.EntityPromotion,
			EntityID:   strconv.FormatInt(id, 10),
			UserUID:    adminUID,
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// checkGrantSpec проверяет, что задано ровно одно из полей длительности
// и фиксированного конца гранта.
func checkGrantSpec(durationDays *int, fixedEndsAt *time.Time) error {
	if (durationDays == nil) == (fixedEndsAt == nil) {
		return models.NewCommandError(models.CodeInvalidState,
			"exactly one of grant duration and fixed end must be set")
	}
	return nil
}
