// dephealth.go: граф зависимостей jobboard для topologymetrics.
//
// PostgreSQL критичен: без него не строится ни одна страница. Keycloak
// некритичен: публичные страницы и уже выданные сессии работают без него,
// недоступен только вход. Метрики app_dependency_health и
// app_dependency_latency_seconds отдаются на /metrics.
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для Keycloak
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig: параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID: имя вершины графа текущего приложения
	ServiceID string
	// Group: имя группы в метриках (JB_DEPHEALTH_GROUP)
	Group string
	// DB: *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PGConnURL: URL PostgreSQL (только для лейблов метрик)
	PGConnURL string
	// KeycloakJWKSURL: URL JWKS endpoint Keycloak
	KeycloakJWKSURL string
	// CheckInterval: интервал проверки (JB_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
	// Registerer: Prometheus registerer (nil - глобальный)
	Registerer prometheus.Registerer
}

// DephealthService: сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PGConnURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
		// /health у Keycloak слушает только management-порт,
		// поэтому проверяется JWKS endpoint realm.
		dephealth.HTTP("keycloak-jwks",
			dephealth.FromURL(cfg.KeycloakJWKSURL),
			dephealth.WithHTTPHealthPath(jwksHealthPath(cfg.KeycloakJWKSURL)),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		),
	}
	if cfg.Registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(cfg.Registerer))
	}

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// jwksHealthPath извлекает path из JWKS URL; по умолчанию /health.
func jwksHealthPath(jwksURL string) string {
	if parsed, err := url.Parse(jwksURL); err == nil && parsed.Path != "" {
		return parsed.Path
	}
	return "/health"
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Int("dependencies", 2))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ: имя зависимости, значение - true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// DependencyChecker: readiness зависимости по последним результатам dephealth.
type DependencyChecker struct {
	ds   *DephealthService
	name string
}

// Checker возвращает проверку готовности зависимости name ("keycloak-jwks", "postgresql").
func (ds *DephealthService) Checker(name string) *DependencyChecker {
	return &DependencyChecker{ds: ds, name: name}
}

// CheckReady возвращает "ok", "degraded" (проверка ещё не выполнялась) или "fail".
func (c *DependencyChecker) CheckReady() (status string, message string) {
	return dependencyStatus(c.ds.Health(), c.name)
}

// dependencyStatus ищет зависимость по имени; ключи dephealth могут
// содержать endpoint после двоеточия.
func dependencyStatus(health map[string]bool, name string) (string, string) {
	found := false
	for key, ok := range health {
		if key != name && !strings.HasPrefix(key, name+":") {
			continue
		}
		found = true
		if !ok {
			return "fail", name + " недоступен"
		}
	}
	if !found {
		return "degraded", "проверка " + name + " ещё не выполнялась"
	}
	return "ok", name + " доступен"
}
