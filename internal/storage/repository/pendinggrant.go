package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/codehash"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

const pendingGrantColumns = `id, email_hash, hash_version, grant_duration_days, grant_fixed_ends_at,
		      claim_valid_from, claim_valid_to, is_active, claimed_at, claimed_by_user_uid,
		      claim_source, reason, created_by_user_uid, created_at`

func scanPendingGrant(scan func(dest ...any) error) (*models.PendingEntitlementGrant, error) {
	var g models.PendingEntitlementGrant
	var durationDays sql.NullInt64
	var fixedEndsAt, claimFrom, claimTo, claimedAt sql.NullTime
	var claimedBy, claimSource, createdBy sql.NullString
	err := scan(&g.ID, &g.EmailHash, &g.HashVersion, &durationDays, &fixedEndsAt,
		&claimFrom, &claimTo, &g.IsActive, &claimedAt, &claimedBy,
		&claimSource, &g.Reason, &createdBy, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.GrantDurationDays = intPtr(durationDays)
	g.GrantFixedEndsAt = timePtr(fixedEndsAt)
	g.ClaimValidFrom = timePtr(claimFrom)
	g.ClaimValidTo = timePtr(claimTo)
	g.ClaimedAt = timePtr(claimedAt)
	g.ClaimedByUserUID = stringPtr(claimedBy)
	g.ClaimSource = stringPtr(claimSource)
	g.CreatedByUserUID = stringPtr(createdBy)
	return &g, nil
}

// InsertPendingGrant создаёт отложенный грант и заполняет его ID и CreatedAt.
func (t *Tx) InsertPendingGrant(ctx context.Context, g *models.PendingEntitlementGrant) error {
	const op = "storage.InsertPendingGrant"

	query := `INSERT INTO pending_entitlement_grants (email_hash, hash_version, grant_duration_days,
			      grant_fixed_ends_at, claim_valid_from, claim_valid_to, is_active,
			      reason, created_by_user_uid)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id, created_at`
	err := t.tx.QueryRowContext(ctx, query,
		g.EmailHash, g.HashVersion, nullInt(g.GrantDurationDays), nullTime(g.GrantFixedEndsAt),
		nullTime(g.ClaimValidFrom), nullTime(g.ClaimValidTo), g.IsActive,
		g.Reason, nullString(g.CreatedByUserUID)).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPendingGrantForUpdate возвращает грант, блокируя строку до конца
// транзакции. (nil, nil), если гранта нет.
func (t *Tx) GetPendingGrantForUpdate(ctx context.Context, id int64) (*models.PendingEntitlementGrant, error) {
	const op = "storage.GetPendingGrantForUpdate"

	query := `SELECT ` + pendingGrantColumns + `
			  FROM pending_entitlement_grants
			  WHERE id = $1
			  FOR UPDATE`
	row := t.tx.QueryRowContext(ctx, query, id)
	g, err := scanPendingGrant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

// SetPendingGrantActive включает или отключает грант.
// Возвращает false, если состояние уже было таким.
func (t *Tx) SetPendingGrantActive(ctx context.Context, id int64, active bool) (bool, error) {
	const op = "storage.SetPendingGrantActive"

	query := `UPDATE pending_entitlement_grants
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

// ListClaimableGrantsForUpdate блокирует и возвращает незабранные активные
// гранты с подходящим окном забора по любому из хэшей адреса, старые первыми.
func (t *Tx) ListClaimableGrantsForUpdate(ctx context.Context, hashes []codehash.Hash, now time.Time) ([]*models.PendingEntitlementGrant, error) {
	const op = "storage.ListClaimableGrantsForUpdate"

	if len(hashes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(hashes))
	args := []any{now}
	for _, h := range hashes {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, h.Value, h.Version)
	}

	query := `SELECT ` + pendingGrantColumns + `
			  FROM pending_entitlement_grants
			  WHERE (email_hash, hash_version) IN (` + strings.Join(placeholders, ", ") + `)
			    AND is_active = true
			    AND claimed_at IS NULL
			    AND (claim_valid_from IS NULL OR claim_valid_from <= $1)
			    AND (claim_valid_to IS NULL OR claim_valid_to > $1)
			  ORDER BY created_at, id
			  FOR UPDATE`
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PendingEntitlementGrant
	for rows.Next() {
		g, err := scanPendingGrant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ClaimPendingGrant отмечает грант забранным. Защита claimed_at IS NULL
// исключает двойной забор даже при гонке двух транзакций на одной строке.
func (t *Tx) ClaimPendingGrant(ctx context.Context, id int64, userUID, source string, claimedAt time.Time) (bool, error) {
	const op = "storage.ClaimPendingGrant"

	query := `UPDATE pending_entitlement_grants
			  SET claimed_at = $1, claimed_by_user_uid = $2, claim_source = $3
			  WHERE id = $4
			    AND claimed_at IS NULL`
	res, err := t.tx.ExecContext(ctx, query, claimedAt, userUID, source, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// FindExpiredActivePendingGrantIDs возвращает включённые незабранные гранты
// с прошедшим окном забора.
func (s *Storage) FindExpiredActivePendingGrantIDs(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	const op = "storage.FindExpiredActivePendingGrantIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id
			  FROM pending_entitlement_grants
			  WHERE is_active = true
			    AND claimed_at IS NULL
			    AND claim_valid_to IS NOT NULL
			    AND claim_valid_to <= $1
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
