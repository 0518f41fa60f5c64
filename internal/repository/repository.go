// Пакет repository: SQL-доступ к companies, candidates и jobs через pgx.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound: записи нет либо ссылка на несуществующую компанию.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict: нарушение уникальности.
	ErrConflict = errors.New("конфликт: запись уже существует")
	// ErrInvalid: нарушение CHECK-ограничения (например, статус вакансии).
	ErrInvalid = errors.New("значение нарушает ограничение схемы")
)

// DBTX: общий интерфейс *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// wrapErr переводит ошибку драйвера в ошибку слоя. Имя нарушенного
// ограничения сохраняется в тексте для логов.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		case pgerrcode.CheckViolation:
			return fmt.Errorf("%w: %s", ErrInvalid, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
