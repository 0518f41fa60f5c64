// Пакет config: конфигурация jobboard из переменных окружения JB_*.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version задаётся при сборке через -ldflags.
var Version = "dev"

// Config: параметры запуска jobboard.
type Config struct {
	Port      int
	LogLevel  slog.Level
	LogFormat string

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// KeycloakURL используется сервером (обмен кода, JWKS),
	// KeycloakBrowserURL: в редиректах браузера. Пустой браузерный
	// адрес означает, что оба совпадают.
	KeycloakURL        string
	KeycloakBrowserURL string
	KeycloakRealm      string
	OIDCClientID       string
	CACertPath         string

	// JWTIssuer и JWTJWKSURL по умолчанию выводятся из KeycloakURL и realm.
	JWTIssuer           string
	JWTJWKSURL          string
	JWTLeeway           time.Duration
	JWKSRefreshInterval time.Duration

	RoleAdminGroups     []string
	RoleCompanyGroups   []string
	RoleCandidateGroups []string

	// SessionSecret пустой: ключ генерируется при старте.
	SessionSecret         string
	SessionTTL            time.Duration
	SessionResolveTimeout time.Duration

	PrefetchTimeout     time.Duration
	PrefetchConcurrency int
	// QueryCacheSize 0 отключает кэш результатов.
	QueryCacheSize int
	QueryCacheTTL  time.Duration

	// CORSAllowedOrigins открывает /api браузерным клиентам с других origin.
	CORSAllowedOrigins []string

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	ShutdownTimeout time.Duration
}

// Load читает конфигурацию. Ошибки не прерывают разбор: возвращаются
// все проблемы сразу, по одной на переменную.
func Load() (*Config, error) {
	e := &env{}
	cfg := &Config{
		Port:      e.intIn("JB_PORT", 8080, 1, 65535),
		LogLevel:  e.logLevel("JB_LOG_LEVEL", slog.LevelInfo),
		LogFormat: e.oneOf("JB_LOG_FORMAT", "json", "text"),

		DBHost:     e.required("JB_DB_HOST"),
		DBPort:     e.intIn("JB_DB_PORT", 5432, 1, 65535),
		DBName:     e.required("JB_DB_NAME"),
		DBUser:     e.required("JB_DB_USER"),
		DBPassword: e.required("JB_DB_PASSWORD"),
		DBSSLMode:  e.oneOf("JB_DB_SSL_MODE", "disable", "require", "verify-ca", "verify-full"),

		KeycloakURL:        strings.TrimRight(e.required("JB_KEYCLOAK_URL"), "/"),
		KeycloakBrowserURL: strings.TrimRight(e.str("JB_KEYCLOAK_BROWSER_URL", ""), "/"),
		KeycloakRealm:      e.str("JB_KEYCLOAK_REALM", "jobboard"),
		OIDCClientID:       e.str("JB_OIDC_CLIENT_ID", "jobboard-web"),
		CACertPath:         e.str("JB_CA_CERT_PATH", ""),

		JWTLeeway:           e.duration("JB_JWT_LEEWAY", 30*time.Second, 0),
		JWKSRefreshInterval: e.duration("JB_JWKS_REFRESH_INTERVAL", 15*time.Minute, time.Second),

		RoleAdminGroups:     parseCSV(e.str("JB_ROLE_ADMIN_GROUPS", "jobboard-admins")),
		RoleCompanyGroups:   parseCSV(e.str("JB_ROLE_COMPANY_GROUPS", "jobboard-companies")),
		RoleCandidateGroups: parseCSV(e.str("JB_ROLE_CANDIDATE_GROUPS", "jobboard-candidates")),

		SessionSecret:         e.str("JB_SESSION_SECRET", ""),
		SessionTTL:            e.duration("JB_SESSION_TTL", 12*time.Hour, time.Minute),
		SessionResolveTimeout: e.duration("JB_SESSION_RESOLVE_TIMEOUT", 2*time.Second, time.Millisecond),

		PrefetchTimeout:     e.duration("JB_PREFETCH_TIMEOUT", 3*time.Second, time.Millisecond),
		PrefetchConcurrency: e.intIn("JB_PREFETCH_CONCURRENCY", 4, 1, 64),
		QueryCacheSize:      e.intIn("JB_QUERY_CACHE_SIZE", 1000, 0, 1_000_000),
		QueryCacheTTL:       e.duration("JB_QUERY_CACHE_TTL", 30*time.Second, 0),

		CORSAllowedOrigins: parseCSV(e.str("JB_CORS_ALLOWED_ORIGINS", "")),

		DephealthGroup:         e.str("JB_DEPHEALTH_GROUP", "jobboard"),
		DephealthCheckInterval: e.duration("JB_DEPHEALTH_CHECK_INTERVAL", 15*time.Second, time.Second),

		ShutdownTimeout: e.duration("JB_SHUTDOWN_TIMEOUT", 5*time.Second, 0),
	}

	realm := cfg.KeycloakURL + "/realms/" + url.PathEscape(cfg.KeycloakRealm)
	cfg.JWTIssuer = e.str("JB_JWT_ISSUER", realm)
	cfg.JWTJWKSURL = e.str("JB_JWT_JWKS_URL", realm+"/protocol/openid-connect/certs")

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("конфигурация: %w", err)
	}
	return cfg, nil
}

// DatabaseURL: адрес PostgreSQL для pgxpool и меток topologymetrics.
func (c *Config) DatabaseURL() string {
	return c.databaseURL("postgres")
}

// MigrateURL: тот же адрес со схемой драйвера pgx5 golang-migrate.
func (c *Config) MigrateURL() string {
	return c.databaseURL("pgx5")
}

func (c *Config) databaseURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + strconv.Itoa(c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// SecureCookies: ставить ли cookie флаг Secure. Решается по схеме
// адреса Keycloak, который видит браузер.
func (c *Config) SecureCookies() bool {
	u := c.KeycloakBrowserURL
	if u == "" {
		u = c.KeycloakURL
	}
	return strings.HasPrefix(u, "https://")
}

// SetupLogger создаёт логгер в формате JB_LOG_FORMAT и делает его
// логгером по умолчанию.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(slog.String("version", Version))
	slog.SetDefault(logger)
	return logger
}

// env читает переменные окружения и копит ошибки разбора.
type env struct {
	errs []error
}

func (e *env) fail(key, format string, args ...any) {
	e.errs = append(e.errs, fmt.Errorf("%s: "+format, append([]any{key}, args...)...))
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) required(key string) string {
	v := e.str(key, "")
	if v == "" {
		e.fail(key, "обязательная переменная не задана")
	}
	return v
}

// oneOf возвращает значение из allowed; первое значение - умолчание.
func (e *env) oneOf(key string, allowed ...string) string {
	v := e.str(key, allowed[0])
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	e.fail(key, "недопустимое значение %q, допустимые: %s", v, strings.Join(allowed, ", "))
	return allowed[0]
}

func (e *env) intIn(key string, def, lo, hi int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, "некорректное целое число %q", raw)
		return def
	}
	if n < lo || n > hi {
		e.fail(key, "значение %d вне диапазона %d-%d", n, lo, hi)
		return def
	}
	return n
}

// duration разбирает длительность в формате Go (30s, 15m, 1h).
// Значение меньше minimum считается ошибкой.
func (e *env) duration(key string, def, minimum time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, "некорректная длительность %q, формат Go: 30s, 15m, 1h", raw)
		return def
	}
	if d < minimum {
		e.fail(key, "значение %s меньше минимального %s", d, minimum)
		return def
	}
	return d
}

func (e *env) logLevel(key string, def slog.Level) slog.Level {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	if strings.EqualFold(raw, "warning") {
		raw = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		e.fail(key, "недопустимый уровень %q, допустимые: debug, info, warn, error", raw)
		return def
	}
	return level
}

// parseCSV делит строку по запятым, отбрасывая пустые элементы.
func parseCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
