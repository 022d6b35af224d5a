// Package repository реализует хранилище движка Pro-доступа на PostgreSQL:
// подписки, оверрайды, промоакции, отложенные гранты и журнал событий.
// Блокировки строк берутся через SELECT ... FOR UPDATE, условные вставки —
// через INSERT ... ON CONFLICT DO NOTHING с проверкой числа затронутых строк,
// чтобы конфликт и успех различались без второго запроса.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/entitlement-engine/internal/storage"
)

// querier объединяет *sql.DB и *sql.Tx, чтобы запросы к строкам
// можно было выполнять и в транзакции, и вне её.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует контракт storage.Store.
type Storage struct {
	DB *sql.DB
}

// Tx реализует контракт storage.Tx поверх открытой транзакции.
type Tx struct {
	tx *sql.Tx
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// WithTx открывает транзакцию, выполняет fn и фиксирует её.
// При ошибке fn или коммита транзакция откатывается.
func (s *Storage) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	const op = "storage.WithTx"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%s: rollback after %w: %v", op, err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(s *Storage) error {
	var exists bool
	err := s.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table subscriptions missing or query error: %w", err)
	}
	return nil
}

// nullTime преобразует *time.Time в sql.NullTime для параметров запросов.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr преобразует sql.NullTime в *time.Time после сканирования.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullString преобразует *string в sql.NullString для параметров запросов.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr преобразует sql.NullString в *string после сканирования.
func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// nullInt преобразует *int в sql.NullInt64 для параметров запросов.
func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// intPtr преобразует sql.NullInt64 в *int после сканирования.
func intPtr(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}
