// Пакет server: HTTP-сервер jobboard с graceful shutdown.
// Без TLS: TLS termination выполняется на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bigkaa/jobboard/internal/api/handlers"
	"github.com/bigkaa/jobboard/internal/api/middleware"
	"github.com/bigkaa/jobboard/internal/config"
	"github.com/bigkaa/jobboard/internal/domain/role"
	uihandlers "github.com/bigkaa/jobboard/internal/ui/handlers"
	"github.com/bigkaa/jobboard/internal/ui/i18n"
	uimiddleware "github.com/bigkaa/jobboard/internal/ui/middleware"
	"github.com/bigkaa/jobboard/internal/ui/static"
)

// Handlers: обработчики, подключаемые к маршрутизатору.
type Handlers struct {
	Health   *handlers.HealthHandler
	RPC      *handlers.RPCHandler
	Pages    *uihandlers.PageHandler
	Forms    *uihandlers.FormHandler
	Auth     *uihandlers.AuthHandler
	Sessions uimiddleware.SessionResolver

	// APIOrigins: origin'ы браузерных клиентов, которым разрешено
	// обращаться к /api с bearer-токеном. Пусто - CORS не включается.
	APIOrigins []string
}

// Server: HTTP-сервер jobboard.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(logger, h),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты jobboard.
//
// Порядок middleware: RequestID → RealIP → метрики → логирование →
// Recoverer → язык → сессия. Сессия определяется для каждого запроса
// и никогда не прерывает его: сбой IdP даёт анонимную сессию.
func NewRouter(logger *slog.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(i18n.Middleware())
	r.Use(uimiddleware.Session(h.Sessions))

	// Пробы и метрики
	r.Get("/health/live", h.Health.HealthLive)
	r.Get("/health/ready", h.Health.HealthReady)
	r.Get("/metrics", h.Health.GetMetrics)

	r.Handle("/static/*", static.Handler())

	// RPC для клиентской догрузки и внешних клиентов с bearer-токеном
	r.Route("/api", func(r chi.Router) {
		if len(h.APIOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: h.APIOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders: []string{"Authorization", "Accept", "Accept-Language"},
				MaxAge:         600,
			}))
		}
		r.Get("/openapi.json", h.RPC.OpenAPI)
		r.Get("/rpc/{query}", h.RPC.Execute)
	})

	// Публичные страницы
	r.Get("/", h.Pages.Home)
	r.Get("/jobs", h.Pages.Jobs)
	r.Get("/jobs/{jobId}", h.Pages.Job)
	r.Post("/set-language", uihandlers.HandleSetLanguage)

	// Вход и выход
	r.Get("/auth/login", h.Auth.HandleLogin)
	r.Get("/auth/callback", h.Auth.HandleCallback)
	r.Post("/auth/logout", h.Auth.HandleLogout)

	gate := uimiddleware.NewRoleGate(http.HandlerFunc(h.Pages.Forbidden), logger)

	r.Route("/company", func(r chi.Router) {
		r.Use(gate.Require(role.Company))
		r.Get("/", h.Pages.CompanyDashboard)
		r.Post("/profile", h.Forms.SaveCompanyProfile)
		r.Post("/jobs", h.Forms.CreateJob)
		r.Post("/jobs/{jobId}/close", h.Forms.CloseJob)
	})

	r.Route("/candidate", func(r chi.Router) {
		r.Use(gate.Require(role.Candidate))
		r.Get("/", h.Pages.CandidateDashboard)
		r.Post("/profile", h.Forms.SaveCandidateProfile)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(gate.Require(role.Admin))
		r.Get("/", h.Pages.AdminDashboard)
	})

	r.NotFound(h.Pages.NotFound)

	return r
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
