// Пакет dbtest поднимает PostgreSQL в Docker (testcontainers) для
// интеграционных тестов. Без TEST_INTEGRATION тесты пропускаются.
package dbtest

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/bigkaa/jobboard/internal/config"
	"github.com/bigkaa/jobboard/internal/database"
)

const image = "docker.io/postgres:17-alpine"

// Config запускает чистый контейнер и возвращает конфигурацию с
// параметрами подключения к нему. Контейнер удаляется по окончании теста.
func Config(t *testing.T) *config.Config {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("TEST_INTEGRATION не задана, интеграционный тест пропущен")
	}

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("jobboard_test"),
		postgres.WithUsername("jobboard"),
		postgres.WithPassword("test-password"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("контейнер PostgreSQL не запустился: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("адрес контейнера: %v", err)
	}
	return fromURL(t, dsn)
}

func fromURL(t *testing.T, dsn string) *config.Config {
	t.Helper()
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("адрес контейнера %q: %v", dsn, err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("порт контейнера %q: %v", u.Port(), err)
	}
	password, _ := u.User.Password()

	return &config.Config{
		DBHost:              u.Hostname(),
		DBPort:              port,
		DBName:              u.Path[1:],
		DBUser:              u.User.Username(),
		DBPassword:          password,
		DBSSLMode:           "disable",
		PrefetchConcurrency: 1,
	}
}

// Pool возвращает пул к контейнеру с применёнными миграциями.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg := Config(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("миграции: %v", err)
	}
	pool, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("подключение: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
