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

// CreatePendingGrantRequest — параметры отложенного гранта. Получатель
// задаётся адресом почты, учётной записи у него может ещё не быть.
type CreatePendingGrantRequest struct {
	Email             string
	GrantDurationDays *int
	GrantFixedEndsAt  *time.Time
	ClaimValidFrom    *time.Time
	ClaimValidTo      *time.Time
	Reason            string
	CreatedByUserUID  *string
}

// CreatePendingGrant создаёт отложенный грант, адресованный по хэшу почты.
func (s *Service) CreatePendingGrant(ctx context.Context, req CreatePendingGrantRequest) (*models.CreatePendingGrantResult, error) {
	const op = "billing.CreatePendingGrant"

	if err := checkGrantSpec(req.GrantDurationDays, req.GrantFixedEndsAt); err != nil {
		return nil, err
	}
	hash := s.hasher.HashEmail(req.Email)

	var result models.CreatePendingGrantResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		grant := &models.PendingEntitlementGrant{
			EmailHash:         hash.Value,
			HashVersion:       hash.Version,
			GrantDurationDays: req.GrantDurationDays,
			GrantFixedEndsAt:  req.GrantFixedEndsAt,
			ClaimValidFrom:    req.ClaimValidFrom,
			ClaimValidTo:      req.ClaimValidTo,
			IsActive:          true,
			Reason:            req.Reason,
			CreatedByUserUID:  req.CreatedByUserUID,
		}
		if err := tx.InsertPendingGrant(ctx, grant); err != nil {
			return err
		}
		result.Grant = grant

		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceAdmin,
			Type:       models.EventPendingGrantCreated,
			EntityType: models.EntityPendingGrant,
			EntityID:   strconv.FormatInt(grant.ID, 10),
			UserUID:    req.CreatedByUserUID,
			Payload:    eventPayload(map[string]any{"reason": req.Reason}),
		})
	})
	if err != nil {
		if models.CommandErrorCode(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("pending grant created", slog.Int64("grant_id", result.Grant.ID))
	return &result, nil
}

// DisablePendingGrant отключает отложенный грант. Идемпотентна.
func (s *Service) DisablePendingGrant(ctx context.Context, id int64, adminUID *string) (*models.TogglePendingGrantResult, error) {
	return s.setPendingGrantActive(ctx, id, adminUID, false)
}

// EnablePendingGrant включает отложенный грант. Идемпотентна.
func (s *Service) EnablePendingGrant(ctx context.Context, id int64, adminUID *string) (*models.TogglePendingGrantResult, error) {
	return s.setPendingGrantActive(ctx, id, adminUID, true)
}

func (s *Service) setPendingGrantActive(ctx context.Context, id int64, adminUID *string, active bool) (*models.TogglePendingGrantResult, error) {
	const op = "billing.setPendingGrantActive"

	var result models.TogglePendingGrantResult

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		grant, err := tx.GetPendingGrantForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if grant == nil {
			return models.NewCommandError(models.CodeNotFound, "pending grant not found")
		}

		changed, err := tx.SetPendingGrantActive(ctx, id, active)
		if err != nil {
			return err
		}
		result.Changed = changed
		if !changed {
			return nil
		}

		eventType := models.EventPendingGrantDisabled
		if active {
			eventType = models.EventPendingGrantEnabled
		}
		return tx.AppendEvent(ctx, &models.BillingEvent{
			Source:     models.EventSourceAdmin,
			Type:       eventType,
			EntityType: models.EntityPendingGrant,
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

// ClaimPendingGrantsForUser забирает все подходящие отложенные гранты
// пользователя, старые первыми. Каждый забранный грант пристраивается
// к уже накопленному Pro-времени, включая гранты, забранные этим же
// вызовом. Отсутствие подходящих грантов не ошибка: результат пустой.
func (s *Service) ClaimPendingGrantsForUser(ctx context.Context, userUID, email, source string) (*models.ClaimGrantsResult, error) {
	const op = "billing.ClaimPendingGrantsForUser"

	result := &models.ClaimGrantsResult{}
	hashes := s.hasher.EmailHashes(email)

	now := time.Now().UTC()

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockUser(ctx, userUID); err != nil {
			return err
		}
		grants, err := tx.ListClaimableGrantsForUpdate(ctx, hashes, now)
		if err != nil {
			return err
		}
		if len(grants) == 0 {
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

		for _, grant := range grants {
			claimed, err := tx.ClaimPendingGrant(ctx, grant.ID, userUID, source, now)
			if err != nil {
				return err
			}
			if !claimed {
				// Параллельный забор успел первым, грант пропускается.
				continue
			}

			window := entitlement.ComputeGrantWindow(now, proUntil, grant.GrantSpec())

			claimedGrant := models.ClaimedGrant{Grant: grant}
			if !window.NoExtension {
				sourceID := "pending_grant:" + strconv.FormatInt(grant.ID, 10)
				override := &models.EntitlementOverride{
					UserUID:        userUID,
					EntitlementKey: models.EntitlementKeyPro,
					StartsAt:       window.StartsAt,
					EndsAt:         window.EndsAt,
					SourceType:     models.OverrideSourcePendingGrant,
					SourceID:       &sourceID,
					Reason:         grant.Reason,
				}
				if err := tx.InsertOverride(ctx, override); err != nil {
					return err
				}
				claimedGrant.Override = override
				proUntil = &window.EndsAt
			}
			result.Claimed = append(result.Claimed, claimedGrant)

			err = tx.AppendEvent(ctx, &models.BillingEvent{
				Source:     models.EventSourceUser,
				Type:       models.EventPendingGrantClaimed,
				EntityType: models.EntityPendingGrant,
				EntityID:   strconv.FormatInt(grant.ID, 10),
				UserUID:    &userUID,
				Payload: eventPayload(map[string]any{
					"claim_source": source,
					"no_extension": window.NoExtension,
					"starts_at":    window.StartsAt,
					"ends_at":      window.EndsAt,
				}),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(result.Claimed) > 0 {
		s.invalidateStatus(userUID)
		s.log.Info("pending grants claimed",
			slog.String("user_uid", userUID),
			slog.Int("count", len(result.Claimed)))
	}
	return result, nil
}
