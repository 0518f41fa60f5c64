// Пакет pages: серверный рендеринг страниц jobboard.
//
// Страница описывается Spec: список prefetch и представление. Renderer
// проводит запрос через конечный автомат
// ResolvingSession → RenderingShell → Prefetching → Hydrated | PartiallyFailed →
// Delivered | DeliveredWithClientFallback, отдавая 200 в обоих финальных
// состояниях. Ошибка рендеринга: 500.
package pages

//go:generate templ generate

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/jobboard/internal/query"
	"github.com/bigkaa/jobboard/internal/ui/auth"
	"github.com/bigkaa/jobboard/internal/ui/i18n"
	"github.com/bigkaa/jobboard/internal/ui/layout"
	"github.com/bigkaa/jobboard/internal/ui/prefetch"
)

// State: состояние рендеринга страницы.
type State string

const (
	StateResolvingSession            State = "resolving_session"
	StateRenderingShell              State = "rendering_shell"
	StatePrefetching                 State = "prefetching"
	StateHydrated                    State = "hydrated"
	StatePartiallyFailed             State = "partially_failed"
	StateDelivered                   State = "delivered"
	StateDeliveredWithClientFallback State = "delivered_with_client_fallback"
	// StateRenderFailed: ошибка рендеринга, ответ 500.
	StateRenderFailed State = "render_failed"
)

// Request: запрос prefetch страницы.
type Request struct {
	Name   string
	Params query.Params
}

// Spec: описание страницы.
type Spec struct {
	// Name: метка страницы в метриках и логах.
	Name string
	// TitleKey: ключ i18n заголовка.
	TitleKey string
	// Prefetch: запросы, выполняемые до рендеринга представления.
	Prefetch []Request
	// View читает кэш prefetch из контекста.
	View templ.Component
	// Status: HTTP-статус ответа; 0 - 200.
	Status int
	// StatusFor уточняет статус по итогу prefetch; 0 - без изменений.
	StatusFor func(prefetch.Result) int
}

// Renderer: рендеринг страниц с prefetch.
type Renderer struct {
	exec   prefetch.Executor
	opts   prefetch.Options
	logger *slog.Logger
}

// NewRenderer создаёт Renderer.
func NewRenderer(exec prefetch.Executor, opts prefetch.Options, logger *slog.Logger) *Renderer {
	return &Renderer{
		exec:   exec,
		opts:   opts,
		logger: logger.With(slog.String("component", "pages")),
	}
}

// Render рендерит страницу в буфер и отправляет её целиком.
// Сессия уже разрешена middleware и лежит в контексте запроса.
// Возвращает финальное состояние.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, spec Spec) State {
	start := time.Now()
	ctx := r.Context()
	trace := newTrace(rd.logger, spec.Name)

	sess := auth.FromContext(ctx)
	trace.to(StateRenderingShell)

	b := prefetch.New(ctx, rd.exec, query.Principal{ID: sess.Subject(), Role: sess.Role}, rd.opts, rd.logger)
	for _, req := range spec.Prefetch {
		b.Schedule(req.Name, req.Params)
	}
	trace.to(StatePrefetching)

	var result prefetch.Result
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		result = b.Wait()
		if result.Failed() > 0 {
			trace.to(StatePartiallyFailed)
		} else {
			trace.to(StateHydrated)
		}
		ctx = prefetch.WithResult(prefetch.WithCache(ctx, b.Cache()), result)
		if spec.View == nil {
			return nil
		}
		return spec.View.Render(ctx, w)
	})

	page := layout.Document(
		i18n.T(ctx, spec.TitleKey),
		layout.Shell(sess.Role, sess.Identity, content),
		b.Dehydrate,
	)

	var buf bytes.Buffer
	if err := page.Render(ctx, &buf); err != nil {
		trace.to(StateRenderFailed)
		pageRendersTotal.WithLabelValues(spec.Name, string(StateRenderFailed)).Inc()
		rd.logger.Error("Ошибка рендеринга страницы",
			slog.String("page", spec.Name),
			slog.String("error", err.Error()),
		)
		writeRenderFailure(ctx, w)
		return StateRenderFailed
	}

	status := http.StatusOK
	if spec.Status != 0 {
		status = spec.Status
	}
	if spec.StatusFor != nil {
		if s := spec.StatusFor(result); s != 0 {
			status = s
		}
	}

	final := StateDelivered
	if result.Failed() > 0 {
		final = StateDeliveredWithClientFallback
	}
	trace.to(final)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "private, no-cache")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("Клиент не дочитал страницу",
			slog.String("page", spec.Name),
			slog.String("error", err.Error()),
		)
	}

	pageRendersTotal.WithLabelValues(spec.Name, string(final)).Inc()
	pageRenderDuration.WithLabelValues(spec.Name).Observe(time.Since(start).Seconds())
	return final
}

func writeRenderFailure(ctx context.Context, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusInternalServerError)
	_ = renderFailure().Render(ctx, w)
}

// trace: журнал переходов состояния (DEBUG).
type trace struct {
	logger *slog.Logger
	page   string
	state  State
}

func newTrace(logger *slog.Logger, page string) *trace {
	return &trace{logger: logger, page: page, state: StateResolvingSession}
}

func (t *trace) to(next State) {
	t.logger.Debug("Переход состояния страницы",
		slog.String("page", t.page),
		slog.String("from", string(t.state)),
		slog.String("to", string(next)),
	)
	t.state = next
}
