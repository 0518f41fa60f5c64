// resolver.go: определение сессии входящего запроса.
// Resolve никогда не возвращает ошибку: любая неудача провайдера,
// таймаут или panic дают анонимную сессию.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/jobboard/internal/domain/role"
)

// Ошибки провайдеров сессий.
var (
	// ErrNoSession: провайдер не нашёл в запросе своих данных (нет cookie/заголовка).
	ErrNoSession = errors.New("сессия отсутствует")
	// ErrSessionExpired: сессия найдена, но истекла.
	ErrSessionExpired = errors.New("сессия истекла")
)

// Identity: аутентифицированный пользователь.
type Identity struct {
	// ID: sub пользователя в Keycloak.
	ID       string
	Username string
	Email    string
}

// Session: результат определения сессии запроса.
// Нулевое значение: анонимный пользователь.
type Session struct {
	Identity *Identity
	Role     role.Role
}

// Anonymous: сессия без пользователя и роли.
var Anonymous = Session{}

// Subject возвращает ID пользователя или пустую строку.
func (s Session) Subject() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// Authenticated: есть пользователь.
func (s Session) Authenticated() bool {
	return s.Identity != nil
}

// Provider: источник сессии (cookie, bearer token).
// Возвращает ErrNoSession, если запрос не содержит данных этого провайдера.
type Provider interface {
	Lookup(ctx context.Context, r *http.Request) (Session, error)
}

// Resolver: определение сессии с ограничением по времени.
type Resolver struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewResolver создаёт Resolver. Провайдеры опрашиваются по порядку,
// первый нашедший данные определяет результат.
func NewResolver(timeout time.Duration, logger *slog.Logger, providers ...Provider) *Resolver {
	return &Resolver{
		providers: providers,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "session_resolver")),
	}
}

type resolveResult struct {
	session Session
	err     error
}

// Resolve определяет сессию запроса. Не пишет cookies и не меняет состояние.
func (rs *Resolver) Resolve(r *http.Request) Session {
	ctx, cancel := context.WithTimeout(r.Context(), rs.timeout)
	defer cancel()

	// Буфер 1: горутина не блокируется, если результат уже никому не нужен.
	ch := make(chan resolveResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- resolveResult{err: fmt.Errorf("panic в провайдере сессии: %v", p)}
			}
		}()
		s, err := rs.lookup(ctx, r)
		ch <- resolveResult{session: s, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			if !errors.Is(res.err, ErrNoSession) {
				rs.logger.Debug("Сессия не определена, анонимный доступ",
					slog.String("error", res.err.Error()),
				)
			}
			return Anonymous
		}
		return normalize(res.session)
	case <-ctx.Done():
		rs.logger.Debug("Таймаут определения сессии, анонимный доступ",
			slog.Duration("timeout", rs.timeout),
		)
		return Anonymous
	}
}

func (rs *Resolver) lookup(ctx context.Context, r *http.Request) (Session, error) {
	for _, p := range rs.providers {
		s, err := p.Lookup(ctx, r)
		if errors.Is(err, ErrNoSession) {
			continue
		}
		return s, err
	}
	return Anonymous, ErrNoSession
}

// normalize: роль без пользователя не имеет смысла, неизвестная роль - Anonymous.
// Результат: копия, не разделяющая память с провайдером.
func normalize(s Session) Session {
	if s.Identity == nil {
		return Anonymous
	}
	id := *s.Identity
	r := s.Role
	if !r.Valid() {
		r = role.Anonymous
	}
	return Session{Identity: &id, Role: r}
}

// --- Провайдеры ---

// CookieProvider: сессия из зашифрованного cookie.
type CookieProvider struct {
	sessions *SessionManager
	now      func() time.Time
}

// NewCookieProvider создаёт провайдер cookie-сессий.
func NewCookieProvider(sessions *SessionManager) *CookieProvider {
	return &CookieProvider{sessions: sessions, now: time.Now}
}

// Lookup дешифрует cookie и проверяет срок сессии.
func (p *CookieProvider) Lookup(_ context.Context, r *http.Request) (Session, error) {
	data, err := p.sessions.GetSessionFromRequest(r)
	if err != nil {
		return Anonymous, err
	}
	if data == nil {
		return Anonymous, ErrNoSession
	}
	if data.IsExpired(p.now()) {
		return Anonymous, ErrSessionExpired
	}
	if data.Subject == "" {
		return Anonymous, errors.New("сессия без sub")
	}
	return Session{
		Identity: &Identity{ID: data.Subject, Username: data.Username, Email: data.Email},
		Role:     data.Role,
	}, nil
}

// BearerProvider: сессия из заголовка Authorization: Bearer <JWT>.
type BearerProvider struct {
	verifier *TokenVerifier
}

// NewBearerProvider создаёт провайдер bearer-токенов.
func NewBearerProvider(verifier *TokenVerifier) *BearerProvider {
	return &BearerProvider{verifier: verifier}
}

// Lookup проверяет bearer-токен через JWKS.
func (p *BearerProvider) Lookup(ctx context.Context, r *http.Request) (Session, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Anonymous, ErrNoSession
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Anonymous, errors.New("неверный формат Authorization: ожидается Bearer <token>")
	}

	claims, err := p.verifier.Verify(ctx, token)
	if err != nil {
		return Anonymous, err
	}
	return Session{
		Identity: &Identity{ID: claims.Subject, Username: claims.Username, Email: claims.Email},
		Role:     claims.Role,
	}, nil
}

// --- Контекст ---

type contextKey struct{}

// WithSession помещает сессию в контекст запроса.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext возвращает сессию из контекста или Anonymous.
func FromContext(ctx context.Context) Session {
	if s, ok := ctx.Value(contextKey{}).(Session); ok {
		return s
	}
	return Anonymous
}
