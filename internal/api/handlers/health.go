// health.go: health endpoints jobboard.
// /health/ready различает критичные зависимости (PostgreSQL: без неё не
// работает ни одна страница) и некритичные (Keycloak: без него страницы
// отдаются в анонимной оболочке).
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/jobboard/internal/config"
)

const serviceName = "jobboard"

// Статусы проверок.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker: проверка готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// dependency: зависимость в readiness probe.
type dependency struct {
	name     string
	checker  ReadinessChecker
	critical bool
}

// HealthHandler: обработчик health endpoints.
type HealthHandler struct {
	deps        []dependency
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// pgChecker: PostgreSQL (критичная), kcChecker - Keycloak JWKS.
// nil-проверка считается "fail".
func NewHealthHandler(pgChecker, kcChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		deps: []dependency{
			{name: "postgresql", checker: pgChecker, critical: true},
			{name: "keycloak", checker: kcChecker},
		},
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	// Critical: при fail страница не может быть отдана вообще
	Critical bool `json:"critical"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks"`
}

// HealthLive: liveness probe. 200, пока процесс отвечает.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady: readiness probe. 503 только при отказе критичной
// зависимости; отказ Keycloak даёт 200 со статусом degraded.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    make(map[string]healthCheckResult, len(h.deps)),
	}

	for _, d := range h.deps {
		res := check(d)
		resp.Checks[d.name] = res
		resp.Status = worse(resp.Status, effective(res))
	}

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetMetrics: Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func check(d dependency) healthCheckResult {
	if d.checker == nil {
		return healthCheckResult{Status: statusFail, Message: "не инициализирован", Critical: d.critical}
	}
	status, msg := d.checker.CheckReady()
	return healthCheckResult{Status: status, Message: msg, Critical: d.critical}
}

// effective: вклад проверки в итоговый статус: отказ некритичной
// зависимости понижает итог только до degraded.
func effective(r healthCheckResult) string {
	if r.Status == statusFail && !r.Critical {
		return statusDegraded
	}
	return r.Status
}

func worse(a, b string) string {
	rank := map[string]int{statusOK: 0, statusDegraded: 1, statusFail: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
