package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/codehash"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

const promotionColumns = `id, code_hash, hash_version, code_prefix, grant_duration_days,
		      grant_fixed_ends_at, valid_from, valid_to, max_redemptions,
		      per_user_max_redemptions, redemption_count, is_active, created_at`

func scanPromotion(scan func(dest ...any) error) (*models.Promotion, error) {
	var p models.Promotion
	var durationDays, maxRedemptions sql.NullInt64
	var fixedEndsAt, validFrom, validTo sql.NullTime
	err := scan(&p.ID, &p.CodeHash, &p.HashVersion, &p.CodePrefix, &durationDays,
		&fixedEndsAt, &validFrom, &validTo, &maxRedemptions,
		&p.PerUserMaxRedemptions, &p.RedemptionCount, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.GrantDurationDays = intPtr(durationDays)
	p.GrantFixedEndsAt = timePtr(fixedEndsAt)
	p.ValidFrom = timePtr(validFrom)
	p.ValidTo = timePtr(validTo)
	p.MaxRedemptions = intPtr(maxRedemptions)
	return &p, nil
}

// InsertPromotion создаёт промоакцию и заполняет её ID и CreatedAt.
// Коллизия хэша кода возвращается как storage.ErrDuplicateCodeHash,
// чтобы вызывающая сторона могла сгенерировать новый код.
func (t *Tx) InsertPromotion(ctx context.Context, p *models.Promotion) error {
	const op = "storage.InsertPromotion"

	query := `INSERT INTO promotions (code_hash, hash_version, code_prefix, grant_duration_days,
			      grant_fixed_ends_at, valid_from, valid_to, max_redemptions,
			      per_user_max_redemptions, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT (code_hash) DO NOTHING
			  RETURNING id, created_at`
	err := t.tx.QueryRowContext(ctx, query,
		p.CodeHash, p.HashVersion, p.CodePrefix, nullInt(p.GrantDurationDays),
		nullTime(p.GrantFixedEndsAt), nullTime(p.ValidFrom), nullTime(p.ValidTo),
		nullInt(p.MaxRedemptions), p.PerUserMaxRedemptions, p.IsActive).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicateCodeHash)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPromotionForUpdate возвращает промоакцию, блокируя строку до конца
// транзакции. (nil, nil), если промоакции нет.
func (t *Tx) GetPromotionForUpdate(ctx context.Context, id int64) (*models.Promotion, error) {
	const op = "storage.GetPromotionForUpdate"

	query := `SELECT ` + promotionColumns + `
			  FROM promotions
			  WHERE id = $1
			  FOR UPDATE`
	row := t.tx.QueryRowContext(ctx, query, id)
	p, err := scanPromotion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetPromotionByHashForUpdate ищет промоакцию по хэшам кода всех версий
// секретов и блокирует найденную строку. (nil, nil), если код неизвестен.
func (t *Tx) GetPromotionByHashForUpdate(ctx context.Context, hashes []codehash.Hash) (*models.Promotion, error) {
	const op = "storage.GetPromotionByHashForUpdate"

	query := `SELECT ` + promotionColumns + `
			  FROM promotions
			  WHERE code_hash = $1 AND hash_version = $2
			  FOR UPDATE`
	for _, h := range hashes {
		row := t.tx.QueryRowContext(ctx, query, h.Value, h.Version)
		p, err := scanPromotion(row.Scan)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return p, nil
	}
	return nil, nil
}

// SetPromotionActive включает или отключает промоакцию.
// Возвращает false, если состояние уже было таким.
func (t *Tx) SetPromotionActive(ctx context.Context, id int64, active bool) (bool, error) {
	const op = "storage.SetPromotionActive"

	query := `UPDATE promotions
			  SET is_active = $1
			  WHERE id = $2
			    AND is_active <> $1`
	res, err := t.tx.ExecContext(ctx, query, active, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// InsertPromotionRedemption вставляет факт активации промоакции.
// Возвращает false, если пользователь уже активировал этот код:
// уникальность (promotion_id, user_uid) обеспечивает хранилище.
func (t *Tx) InsertPromotionRedemption(ctx context.Context, promotionID int64, userUID string) (bool, error) {
	const op = "storage.InsertPromotionRedemption"

	query := `INSERT INTO promotion_redemptions (promotion_id, user_uid)
			  VALUES ($1, $2)
			  ON CONFLICT (promotion_id, user_uid) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query, promotionID, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// IncrementPromotionRedemptions увеличивает счётчик активаций.
func (t *Tx) IncrementPromotionRedemptions(ctx context.Context, id int64) error {
	const op = "storage.IncrementPromotionRedemptions"

	query := `UPDATE promotions
			  SET redemption_count = redemption_count + 1
			  WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindExpiredActivePromotionIDs возвращает включённые промоакции
// с прошедшим окном действия.
func (s *Storage) FindExpiredActivePromotionIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	const op = "storage.FindExpiredActivePromotionIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id
			  FROM promotions
			  WHERE is_active = true
			    AND valid_to IS NOT NULL
			    AND valid_to <= $1
			  ORDER BY id
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
