package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// AppendEvent добавляет запись в журнал событий. Журнал только дописывается:
// обновлений и удалений нет ни в одном методе хранилища.
func (t *Tx) AppendEvent(ctx context.Context, ev *models.BillingEvent) error {
	const op = "storage.AppendEvent"

	query := `INSERT INTO billing_events (source, event_type, entity_type, entity_id,
			      user_uid, payload, provider, external_event_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id, created_at`
	err := t.tx.QueryRowContext(ctx, query,
		ev.Source, ev.Type, ev.EntityType, ev.EntityID, nullString(ev.UserUID),
		ev.Payload, nullString(ev.Provider), nullString(ev.ExternalEventID)).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AppendEventIdempotent добавляет событие с идемпотентным ключом
// (provider, external_event_id). Возвращает false, если событие с таким
// ключом уже записано — повторная обработка внешнего события или маркера.
func (t *Tx) AppendEventIdempotent(ctx context.Context, ev *models.BillingEvent) (bool, error) {
	const op = "storage.AppendEventIdempotent"

	query := `INSERT INTO billing_events (source, event_type, entity_type, entity_id,
			      user_uid, payload, provider, external_event_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (provider, external_event_id) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query,
		ev.Source, ev.Type, ev.EntityType, ev.EntityID, nullString(ev.UserUID),
		ev.Payload, nullString(ev.Provider), nullString(ev.ExternalEventID))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}
