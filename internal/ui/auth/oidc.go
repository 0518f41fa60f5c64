// oidc.go: вход через Keycloak: Authorization Code Flow с PKCE (RFC 7636)
// для публичного клиента jobboard-web.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxTokenResponse: ограничение на размер ответа token endpoint.
const maxTokenResponse = 1 << 20

// loginScopes: groups нужен для определения роли (см. role.FromGroups).
const loginScopes = "openid profile email groups"

// OIDCConfig: конфигурация OIDC-клиента.
type OIDCConfig struct {
	// KeycloakURL: базовый URL Keycloak для backend (token exchange).
	KeycloakURL string
	// BrowserKeycloakURL: внешний URL Keycloak для browser redirects
	// (authorize, logout). Пустой - KeycloakURL.
	BrowserKeycloakURL string
	Realm              string
	// ClientID: публичный клиент без client_secret.
	ClientID string
	// HTTPClient: HTTP-клиент (nil - создаётся новый с Timeout).
	HTTPClient *http.Client
	Timeout    time.Duration
}

// OIDCClient: клиент OIDC endpoints realm'а jobboard.
type OIDCClient struct {
	clientID   string
	browser    string
	backend    string
	httpClient *http.Client
}

func endpointBase(keycloakURL, realm string) string {
	return strings.TrimRight(keycloakURL, "/") + "/realms/" + url.PathEscape(realm) + "/protocol/openid-connect"
}

// NewOIDCClient создаёт OIDC-клиент. Token exchange идёт на backend URL
// (внутренний DNS кластера), authorize и logout - на browser URL.
func NewOIDCClient(cfg OIDCConfig) *OIDCClient {
	browserURL := cfg.BrowserKeycloakURL
	if browserURL == "" {
		browserURL = cfg.KeycloakURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &OIDCClient{
		clientID:   cfg.ClientID,
		browser:    endpointBase(browserURL, cfg.Realm),
		backend:    endpointBase(cfg.KeycloakURL, cfg.Realm),
		httpClient: httpClient,
	}
}

// LoginAttempt: одноразовые параметры одного входа. State и CodeVerifier
// сохраняются в state cookie до callback.
type LoginAttempt struct {
	State         string
	CodeVerifier  string
	CodeChallenge string
}

// NewLoginAttempt генерирует state (16 байт) и пару PKCE S256 (32 байта).
func NewLoginAttempt() (*LoginAttempt, error) {
	state, err := randomToken(16)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации state: %w", err)
	}
	verifier, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации code_verifier: %w", err)
	}
	hash := sha256.Sum256([]byte(verifier))
	return &LoginAttempt{
		State:         state,
		CodeVerifier:  verifier,
		CodeChallenge: base64.RawURLEncoding.EncodeToString(hash[:]),
	}, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthRequest: параметры redirect на страницу входа Keycloak.
type AuthRequest struct {
	RedirectURI   string
	State         string
	CodeChallenge string
	// Locale: язык интерфейса jobboard; страница входа Keycloak
	// показывается на нём же (ui_locales).
	Locale string
}

// AuthorizeURL формирует URL страницы входа.
func (c *OIDCClient) AuthorizeURL(req AuthRequest) string {
	params := url.Values{
		"client_id":             {c.clientID},
		"response_type":         {"code"},
		"redirect_uri":          {req.RedirectURI},
		"state":                 {req.State},
		"scope":                 {loginScopes},
		"code_challenge":        {req.CodeChallenge},
		"code_challenge_method": {"S256"},
	}
	if req.Locale != "" {
		params.Set("ui_locales", req.Locale)
	}
	return c.browser + "/auth?" + params.Encode()
}

// LogoutURL формирует URL выхода из Keycloak (RP-initiated logout).
func (c *OIDCClient) LogoutURL(idTokenHint, postLogoutRedirectURI string) string {
	params := url.Values{
		"client_id":                {c.clientID},
		"post_logout_redirect_uri": {postLogoutRedirectURI},
	}
	if idTokenHint != "" {
		params.Set("id_token_hint", idTokenHint)
	}
	return c.browser + "/logout?" + params.Encode()
}

// TokenResponse: ответ token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  //nolint:gosec // G117: структура токена OAuth2
	RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	IDToken      string `json:"id_token"`
}

// TokenError: отказ token endpoint (RFC 6749, 5.2).
type TokenError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *TokenError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("token endpoint: %s (HTTP %d)", e.Code, e.Status)
	}
	return fmt.Sprintf("token endpoint: %s: %s (HTTP %d)", e.Code, e.Description, e.Status)
}

// IsInvalidGrant: код просрочен или уже использован; вход нужно начать заново.
func IsInvalidGrant(err error) bool {
	var te *TokenError
	return errors.As(err, &te) && te.Code == "invalid_grant"
}

// ExchangeCode обменивает authorization code на токены.
func (c *OIDCClient) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.backend+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации OIDC
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		te := &TokenError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, te); jsonErr != nil || te.Code == "" {
			te.Code = "http_error"
			te.Description = http.StatusText(resp.StatusCode)
		}
		return nil, te
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("ошибка парсинга token response: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, errors.New("token endpoint не вернул access_token")
	}
	return &tokens, nil
}
