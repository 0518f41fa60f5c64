// auth.go: вход через Keycloak OIDC (Authorization Code + PKCE) и выход.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/ui/auth"
	"github.com/bigkaa/jobboard/internal/ui/i18n"
)

// TokenVerifier проверяет access token перед созданием сессии.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

// OIDCProvider: операции OIDC-клиента, нужные обработчикам входа.
type OIDCProvider interface {
	AuthorizeURL(req auth.AuthRequest) string
	LogoutURL(idTokenHint, postLogoutRedirectURI string) string
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*auth.TokenResponse, error)
}

// AuthHandler: обработчики входа и выхода.
type AuthHandler struct {
	oidc     OIDCProvider
	sessions *auth.SessionManager
	verifier TokenVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthHandler создаёт AuthHandler.
func NewAuthHandler(
	oidc OIDCProvider,
	sessions *auth.SessionManager,
	verifier TokenVerifier,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		oidc:     oidc,
		sessions: sessions,
		verifier: verifier,
		logger:   logger.With(slog.String("component", "ui_auth")),
		now:      time.Now,
	}
}

// HandleLogin: GET /auth/login?returnTo=
// Генерирует PKCE и state, сохраняет их в зашифрованном cookie
// и перенаправляет на Keycloak.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	attempt, err := auth.NewLoginAttempt()
	if err != nil {
		h.logger.Error("Ошибка генерации параметров входа", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	returnTo := safeReturnTo(r.URL.Query().Get("returnTo"))
	if err := h.sessions.SetStateCookie(w, attempt.State, attempt.CodeVerifier, returnTo); err != nil {
		h.logger.Error("Ошибка сохранения state cookie", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.oidc.AuthorizeURL(auth.AuthRequest{
		RedirectURI:   callbackURI(r),
		State:         attempt.State,
		CodeChallenge: attempt.CodeChallenge,
		Locale:        i18n.LangFromContext(r.Context()),
	}), http.StatusFound)
}

// HandleCallback: GET /auth/callback
// Обменивает code на токены, проверяет подпись access token через JWKS
// и создаёт сессию.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		h.logger.Warn("Keycloak вернул ошибку авторизации",
			slog.String("error", errCode),
			slog.String("description", q.Get("error_description")),
		)
		http.Error(w, "Ошибка авторизации: "+errCode, http.StatusBadRequest)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		http.Error(w, "Отсутствует code или state", http.StatusBadRequest)
		return
	}

	verifier, returnTo, err := h.sessions.PopStateCookie(w, r, state)
	if err != nil {
		h.logger.Warn("Некорректное состояние входа", slog.String("error", err.Error()))
		http.Error(w, "Сессия авторизации истекла, попробуйте ещё раз", http.StatusBadRequest)
		return
	}

	tokens, err := h.oidc.ExchangeCode(r.Context(), code, callbackURI(r), verifier)
	if auth.IsInvalidGrant(err) {
		// Код просрочен или уже обменян (повторный callback, кнопка «назад»).
		h.logger.Info("Код авторизации недействителен, вход начинается заново", slog.String("error", err.Error()))
		restart := "/auth/login"
		if returnTo != "" {
			restart += "?returnTo=" + url.QueryEscape(returnTo)
		}
		http.Redirect(w, r, restart, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Error("Ошибка обмена code на токены", slog.String("error", err.Error()))
		http.Error(w, "Ошибка аутентификации", http.StatusBadGateway)
		return
	}

	claims, err := h.verifier.Verify(r.Context(), tokens.AccessToken)
	if err != nil {
		h.logger.Warn("Access token не прошёл проверку", slog.String("error", err.Error()))
		http.Error(w, "Ошибка аутентификации", http.StatusUnauthorized)
		return
	}

	data := &auth.SessionData{
		Subject:   claims.Subject,
		Username:  claims.Username,
		Email:     claims.Email,
		Role:      claims.Role,
		Groups:    claims.Groups,
		ExpiresAt: h.now().Add(h.sessions.TTL()).Unix(),
		IDToken:   tokens.IDToken,
	}
	if err := h.sessions.SetSessionCookie(w, data); err != nil {
		h.logger.Error("Ошибка установки session cookie", slog.String("error", err.Error()))
		http.Error(w, "Ошибка создания сессии", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Пользователь аутентифицирован",
		slog.String("username", claims.Username),
		slog.String("role", claims.Role.String()),
	)

	if returnTo == "" {
		returnTo = roleHome(claims.Role)
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// HandleLogout: POST /auth/logout
// Удаляет сессию и перенаправляет на logout Keycloak.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var idToken string
	if data, err := h.sessions.GetSessionFromRequest(r); err == nil && data != nil {
		idToken = data.IDToken
	}
	h.sessions.ClearSessionCookie(w)

	h.logger.Info("Пользователь выполняет logout")
	http.Redirect(w, r, h.oidc.LogoutURL(idToken, baseURL(r)+"/"), http.StatusFound)
}

// roleHome: стартовая страница роли после входа.
func roleHome(r role.Role) string {
	switch r {
	case role.Company:
		return "/company"
	case role.Candidate:
		return "/candidate"
	case role.Admin:
		return "/admin"
	default:
		return "/"
	}
}

// safeReturnTo допускает только локальные пути.
func safeReturnTo(s string) string {
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return ""
	}
	return s
}

func callbackURI(r *http.Request) string {
	return baseURL(r) + "/auth/callback"
}

// baseURL: scheme + host запроса с учётом X-Forwarded-* от reverse proxy.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = fh
	}
	return scheme + "://" + host
}
