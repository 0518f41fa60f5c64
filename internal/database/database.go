// Пакет database: пул PostgreSQL, встроенные миграции схемы jobboard
// и проверка готовности для /health/ready.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/jobboard/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// connsPerPrefetch: сколько соединений резервируется на один слот
// prefetch: параллельно рендерится несколько страниц.
const connsPerPrefetch = 4

// PoolConfig строит конфигурацию пула для jobboard.
// Размер пула зависит от JB_PREFETCH_CONCURRENCY, statement_timeout
// не даёт брошенным prefetch-запросам занимать соединение дольше таймаута.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	poolCfg.MaxConns = int32(max(cfg.PrefetchConcurrency*connsPerPrefetch, 4))
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	params := poolCfg.ConnConfig.RuntimeParams
	params["application_name"] = "jobboard"
	if cfg.PrefetchTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt((2 * cfg.PrefetchTimeout).Milliseconds(), 10)
	}
	return poolCfg, nil
}

// Connect создаёт пул подключений и проверяет доступность PostgreSQL.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return pool, nil
}

// Migrate применяет встроенные миграции (companies, candidates, jobs).
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// Pool: операции пула, нужные проверке готовности.
type Pool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReadinessChecker: готовность PostgreSQL: соединение и состояние схемы.
type ReadinessChecker struct {
	pool    Pool
	timeout time.Duration
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool, timeout: 3 * time.Second}
}

// CheckReady возвращает "fail", если база недоступна или схема не создана,
// и "degraded", если последняя миграция прервана (dirty).
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}

	var (
		version int64
		dirty   bool
	)
	err := c.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "fail", "схема не создана: миграции не применялись"
	case err != nil:
		return "fail", fmt.Sprintf("ошибка чтения версии схемы: %v", err)
	case dirty:
		return "degraded", fmt.Sprintf("миграция %d прервана, схема в состоянии dirty", version)
	}
	return "ok", fmt.Sprintf("схема версии %d", version)
}
