// Пакет middleware: HTTP middleware веб-интерфейса jobboard.
// session.go: определение сессии запроса и проверка роли.
package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/ui/auth"
)

// SessionResolver определяет сессию запроса. Не возвращает ошибок:
// сбой определения: анонимная сессия.
type SessionResolver interface {
	Resolve(r *http.Request) auth.Session
}

// Session: middleware, помещающее сессию запроса в контекст.
// Применяется ко всем маршрутам: страницы и RPC читают её через auth.FromContext.
func Session(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := resolver.Resolve(r)
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), s)))
		})
	}
}

// RoleGate: проверка роли для закрытых разделов UI.
type RoleGate struct {
	forbidden http.Handler
	logger    *slog.Logger
}

// NewRoleGate создаёт RoleGate. forbidden рендерит ответ 403.
func NewRoleGate(forbidden http.Handler, logger *slog.Logger) *RoleGate {
	return &RoleGate{
		forbidden: forbidden,
		logger:    logger.With(slog.String("component", "ui_role_gate")),
	}
}

// Require пропускает только перечисленные роли.
// Гость перенаправляется на вход с возвратом на текущую страницу.
// Вошедший пользователь с другой или нераспознанной ролью получает 403.
func (g *RoleGate) Require(roles ...role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := auth.FromContext(r.Context())

			if !s.Authenticated() {
				http.Redirect(w, r, LoginURL(returnPath(r)), http.StatusSeeOther)
				return
			}

			if !s.Role.OneOf(roles...) {
				g.logger.Info("Доступ к разделу запрещён",
					slog.String("path", r.URL.Path),
					slog.String("subject", s.Subject()),
					slog.String("role", s.Role.String()),
				)
				g.forbidden.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL: адрес входа с возвратом на returnTo.
func LoginURL(returnTo string) string {
	if returnTo == "" || returnTo == "/" {
		return "/auth/login"
	}
	return "/auth/login?" + url.Values{"returnTo": {returnTo}}.Encode()
}

// returnPath: куда вернуться после входа. Для POST возврат на форму
// бессмыслен, поэтому используется раздел (/company, /candidate).
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet {
		return r.URL.RequestURI()
	}
	return sectionRoot(r.URL.Path)
}

func sectionRoot(path string) string {
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return path
}
