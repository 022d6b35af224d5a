package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

const overrideColumns = `id, user_uid, entitlement_key, starts_at, ends_at, source_type,
		      source_id, reason, granted_by_user_uid, created_at`

func scanOverride(scan func(dest ...any) error) (*models.EntitlementOverride, error) {
	var o models.EntitlementOverride
	var sourceID, grantedBy sql.NullString
	err := scan(&o.ID, &o.UserUID, &o.EntitlementKey, &o.StartsAt, &o.EndsAt,
		&o.SourceType, &sourceID, &o.Reason, &grantedBy, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.SourceID = stringPtr(sourceID)
	o.GrantedByUserUID = stringPtr(grantedBy)
	return &o, nil
}

// InsertOverride создаёт новый оверрайд и заполняет его ID и CreatedAt.
func (t *Tx) InsertOverride(ctx context.Context, o *models.EntitlementOverride) error {
	const op = "storage.InsertOverride"

	query := `INSERT INTO entitlement_overrides (user_uid, entitlement_key, starts_at, ends_at,
			      source_type, source_id, reason, granted_by_user_uid)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id, created_at`
	err := t.tx.QueryRowContext(ctx, query,
		o.UserUID, o.EntitlementKey, o.StartsAt, o.EndsAt, o.SourceType,
		nullString(o.SourceID), o.Reason, nullString(o.GrantedByUserUID)).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetOverrideForUpdate возвращает оверрайд, блокируя строку до конца
// транзакции. (nil, nil), если оверрайда нет.
func (t *Tx) GetOverrideForUpdate(ctx context.Context, id int64) (*models.EntitlementOverride, error) {
	const op = "storage.GetOverrideForUpdate"

	query := `SELECT ` + overrideColumns + `
			  FROM entitlement_overrides
			  WHERE id = $1
			  FOR UPDATE`
	row := t.tx.QueryRowContext(ctx, query, id)
	o, err := scanOverride(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

// ShortenOverride сокращает время действия оверрайда до endsAt.
// Запись никогда не удаляется: история выдач сохраняется.
func (t *Tx) ShortenOverride(ctx context.Context, id int64, endsAt time.Time) error {
	const op = "storage.ShortenOverride"

	query := `UPDATE entitlement_overrides
			  SET ends_at = $1
			  WHERE id = $2`
	if _, err := t.tx.ExecContext(ctx, query, endsAt, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func listOverrides(ctx context.Context, q querier, userUID string, endsAfter time.Time) ([]*models.EntitlementOverride, error) {
	query := `SELECT ` + overrideColumns + `
			  FROM entitlement_overrides
			  WHERE user_uid = $1
			    AND ends_at > $2
			  ORDER BY starts_at, id`
	rows, err := q.QueryContext(ctx, query, userUID, endsAfter)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.EntitlementOverride
	for rows.Next() {
		o, err := scanOverride(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// ListOverrides возвращает оверрайды пользователя с EndsAt > endsAfter.
func (s *Storage) ListOverrides(ctx context.Context, userUID string, endsAfter time.Time) ([]*models.EntitlementOverride, error) {
	const op = "storage.ListOverrides"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := listOverrides(ctx, s.DB, userUID, endsAfter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListOverrides возвращает оверрайды пользователя внутри транзакции.
func (t *Tx) ListOverrides(ctx context.Context, userUID string, endsAfter time.Time) ([]*models.EntitlementOverride, error) {
	const op = "storage.Tx.ListOverrides"
	result, err := listOverrides(ctx, t.tx, userUID, endsAfter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
