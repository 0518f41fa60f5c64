// logging.go: журнал HTTP-запросов jobboard.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger пишет одну запись на запрос. Уровень выбирается по
// статусу ответа: 5xx - ERROR, 4xx - WARN, пробы и /metrics - DEBUG,
// остальное: INFO. Атрибут route содержит шаблон маршрута chi, а не
// фактический путь, чтобы записи одной страницы группировались.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routeOf(r)),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			}
			if q := chi.URLParam(r, "query"); q != "" {
				attrs = append(attrs, slog.String("query", q))
			}

			logger.LogAttrs(r.Context(), levelFor(r.URL.Path, status), "HTTP запрос", attrs...)
		})
	}
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case path == "/health/live" || path == "/health/ready" || path == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// routeOf возвращает шаблон сработавшего маршрута. Вызывается после
// обработки запроса: до этого chi ещё не заполнил контекст маршрута.
func routeOf(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}
