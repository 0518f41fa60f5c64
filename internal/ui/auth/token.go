// token.go: проверка JWT Keycloak через JWKS.
// Используется bearer-аутентификацией RPC и OIDC callback перед созданием сессии.
package auth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/jobboard/internal/domain/role"
)

// keycloakClaims: raw claims из Keycloak JWT.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string       `json:"preferred_username"`
	Email             string       `json:"email"`
	RealmAccess       *realmAccess `json:"realm_access,omitempty"`
	Groups            []string     `json:"groups,omitempty"`
}

// realmAccess: вложенная структура realm_access в Keycloak JWT.
type realmAccess struct {
	Roles []string `json:"roles"`
}

// Claims: проверенные данные токена.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	Groups    []string
	Role      role.Role
	ExpiresAt time.Time
}

// TokenVerifierConfig: параметры проверки JWT.
type TokenVerifierConfig struct {
	// JWKSURL: URL JWKS endpoint Keycloak.
	JWKSURL string
	// CACertPath: опциональный CA-сертификат для TLS к Keycloak.
	CACertPath string
	// Issuer: ожидаемый iss (пусто - не проверяется).
	Issuer string
	// RefreshInterval: интервал обновления ключей JWKS.
	RefreshInterval time.Duration
	// Leeway: допустимое отклонение часов.
	Leeway time.Duration
	// Groups: маппинг групп IdP в роли.
	Groups role.GroupMapping
}

// TokenVerifier: проверка подписи и claims JWT.
type TokenVerifier struct {
	jwks    keyfunc.Keyfunc
	issuer  string
	leeway  time.Duration
	mapping role.GroupMapping
	logger  *slog.Logger
}

// NewTokenVerifier создаёт проверку JWT с JWKS из Keycloak.
// Ключи обновляются в фоне; старт не требует доступности Keycloak.
func NewTokenVerifier(cfg TokenVerifierConfig, logger *slog.Logger) (*TokenVerifier, error) {
	httpClient := http.DefaultClient
	if cfg.CACertPath != "" {
		var err error
		httpClient, err = HTTPClientWithCA(cfg.CACertPath, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", cfg.CACertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", cfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq: стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", cfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewTokenVerifierWithKeyfunc(k, cfg.Issuer, cfg.Leeway, cfg.Groups, logger), nil
}

// NewTokenVerifierWithKeyfunc создаёт проверку с готовой keyfunc.
// Используется в тестах для подстановки JWKS.
func NewTokenVerifierWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	leeway time.Duration,
	mapping role.GroupMapping,
	logger *slog.Logger,
) *TokenVerifier {
	return &TokenVerifier{
		jwks:    kf,
		issuer:  issuer,
		leeway:  leeway,
		mapping: mapping,
		logger:  logger.With(slog.String("component", "token_verifier")),
	}
}

// Verify проверяет подпись (RS256), срок действия и issuer токена.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	raw := &keycloakClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, raw, v.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("невалидный токен: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("невалидный токен")
	}

	subject, err := raw.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("отсутствует sub в токене")
	}

	var realmRoles []string
	if raw.RealmAccess != nil {
		realmRoles = raw.RealmAccess.Roles
	}

	c := &Claims{
		Subject:  subject,
		Username: raw.PreferredUsername,
		Email:    raw.Email,
		Groups:   raw.Groups,
		Role:     role.FromClaims(raw.Groups, realmRoles, v.mapping),
	}
	if raw.ExpiresAt != nil {
		c.ExpiresAt = raw.ExpiresAt.Time
	}
	return c, nil
}

// HTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func HTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}
