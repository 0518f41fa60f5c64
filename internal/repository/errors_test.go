package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     error
		wantText string
	}{
		{"нет строк", pgx.ErrNoRows, ErrNotFound, ""},
		{"уникальность", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "companies_owner_id_key"}, ErrConflict, "companies_owner_id_key"},
		{"внешний ключ", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "jobs_company_id_fkey"}), ErrNotFound, "jobs_company_id_fkey"},
		{"check", &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "jobs_status_check"}, ErrInvalid, "jobs_status_check"},
		{"прочая ошибка PostgreSQL", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, nil, "операция"},
		{"сеть", errors.New("connection reset"), nil, "операция: connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapErr("операция", tt.err)
			if tt.want != nil && !errors.Is(got, tt.want) {
				t.Errorf("wrapErr = %v, ожидалось %v", got, tt.want)
			}
			if tt.want == nil && !errors.Is(got, tt.err) {
				t.Errorf("исходная ошибка должна сохраняться: %v", got)
			}
			if tt.wantText != "" && !strings.Contains(got.Error(), tt.wantText) {
				t.Errorf("текст %q не содержит %q", got.Error(), tt.wantText)
			}
		})
	}

	if wrapErr("операция", nil) != nil {
		t.Error("wrapErr(nil) должен возвращать nil")
	}
}
