// Точка входа jobboard: веб-приложение подбора персонала с ролевым доступом.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает каталог запросов, проверку JWT и OIDC-клиент Keycloak,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/bigkaa/jobboard/internal/api/handlers"
	"github.com/bigkaa/jobboard/internal/config"
	"github.com/bigkaa/jobboard/internal/database"
	"github.com/bigkaa/jobboard/internal/domain/role"
	"github.com/bigkaa/jobboard/internal/query"
	"github.com/bigkaa/jobboard/internal/repository"
	"github.com/bigkaa/jobboard/internal/server"
	"github.com/bigkaa/jobboard/internal/service"
	"github.com/bigkaa/jobboard/internal/ui/auth"
	uihandlers "github.com/bigkaa/jobboard/internal/ui/handlers"
	"github.com/bigkaa/jobboard/internal/ui/i18n"
	"github.com/bigkaa/jobboard/internal/ui/pages"
	"github.com/bigkaa/jobboard/internal/ui/prefetch"
)

func main() {
	// 0. Локальный .env (только для разработки)
	envErr := godotenv.Load()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("jobboard запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)
	if envErr == nil {
		logger.Info("Переменные окружения дополнены из .env")
	}

	// 3. Каталоги переводов
	bundle := i18n.Init(logger)
	if err := i18n.LoadFromEmbedFS(bundle, logger); err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Repositories и Services
	companyRepo := repository.NewCompanyRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	jobRepo := repository.NewJobRepository(pool)

	companiesSvc := service.NewCompanyService(companyRepo, logger)
	candidatesSvc := service.NewCandidateService(candidateRepo, logger)
	jobsSvc := service.NewJobService(jobRepo, companyRepo, logger)
	statsSvc := service.NewStatsService(companyRepo, candidateRepo, jobRepo)

	// 7. Каталог запросов: OpenAPI-валидация + LRU-кэш результатов
	doc, err := query.LoadDocument()
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-документа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	specJSON, err := doc.MarshalJSON()
	if err != nil {
		logger.Error("Ошибка сериализации OpenAPI-документа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.QueryCacheSize == 0 {
		logger.Info("Кэш результатов запросов отключён (JB_QUERY_CACHE_SIZE=0)")
	}
	executor, err := query.NewExecutor(
		query.Catalog(query.Sources{
			Jobs:       jobsSvc,
			Companies:  companiesSvc,
			Candidates: candidatesSvc,
			Stats:      statsSvc,
		}),
		query.NewValidator(doc),
		query.NewResultCache(cfg.QueryCacheSize, cfg.QueryCacheTTL),
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания каталога запросов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Проверка JWT (Bearer) и UI-сессии
	verifier, err := auth.NewTokenVerifier(auth.TokenVerifierConfig{
		JWKSURL:         cfg.JWTJWKSURL,
		CACertPath:      cfg.CACertPath,
		Issuer:          cfg.JWTIssuer,
		RefreshInterval: cfg.JWKSRefreshInterval,
		Leeway:          cfg.JWTLeeway,
		Groups: role.GroupMapping{
			AdminGroups:     cfg.RoleAdminGroups,
			CompanyGroups:   cfg.RoleCompanyGroups,
			CandidateGroups: cfg.RoleCandidateGroups,
		},
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания проверки JWT", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Проверка JWT инициализирована",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	sessionMgr, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SecureCookies(), cfg.SessionTTL)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("JB_SESSION_SECRET не задан, сессии не сохраняются между рестартами")
	}

	resolver := auth.NewResolver(cfg.SessionResolveTimeout, logger,
		auth.NewCookieProvider(sessionMgr),
		auth.NewBearerProvider(verifier),
	)

	// 9. OIDC-клиент (Authorization Code + PKCE)
	oidcCfg := auth.OIDCConfig{
		KeycloakURL:        cfg.KeycloakURL,
		BrowserKeycloakURL: cfg.KeycloakBrowserURL,
		Realm:              cfg.KeycloakRealm,
		ClientID:           cfg.OIDCClientID,
	}
	if cfg.CACertPath != "" {
		oidcCfg.HTTPClient, err = auth.HTTPClientWithCA(cfg.CACertPath, 30*time.Second)
		if err != nil {
			logger.Error("Ошибка загрузки CA-сертификата", slog.String("path", cfg.CACertPath), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	oidcClient := auth.NewOIDCClient(oidcCfg)

	// 10. topologymetrics: мониторинг зависимостей (PostgreSQL + Keycloak)
	var kcChecker handlers.ReadinessChecker
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:       "jobboard",
		Group:           cfg.DephealthGroup,
		DB:              pgDB,
		PGConnURL:       cfg.DatabaseURL(),
		KeycloakJWKSURL: cfg.JWTJWKSURL,
		CheckInterval:   cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
		kcChecker = dephealthSvc.Checker("keycloak-jwks")
	}

	// 11. Handlers
	renderer := pages.NewRenderer(executor, prefetch.Options{
		Timeout:     cfg.PrefetchTimeout,
		Concurrency: cfg.PrefetchConcurrency,
	}, logger)
	pageHandler := uihandlers.NewPageHandler(renderer)

	h := server.Handlers{
		Health:     handlers.NewHealthHandler(database.NewReadinessChecker(pool), kcChecker),
		RPC:        handlers.NewRPCHandler(executor, specJSON, logger),
		Pages:      pageHandler,
		Forms:      uihandlers.NewFormHandler(companiesSvc, jobsSvc, candidatesSvc, executor, pageHandler, logger),
		Auth:       uihandlers.NewAuthHandler(oidcClient, sessionMgr, verifier, logger),
		Sessions:   resolver,
		APIOrigins: cfg.CORSAllowedOrigins,
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("jobboard остановлен")
}
