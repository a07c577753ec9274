package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"taskManager/internal/config"
	"taskManager/internal/handlers"
	"taskManager/internal/logger"
	"taskManager/internal/metrics"
	"taskManager/internal/middleware"
	"taskManager/internal/repository/task/inmemory"
	"taskManager/internal/repository/task/postgres"
	"taskManager/internal/repository/task/sqlite"
	"taskManager/internal/service"
	"taskManager/internal/telemetry"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "task-manager"

const telemetryShutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	repository service.TaskRepository // интерфейс!
	service    handlers.TaskService
	metrics    *metrics.Metrics
	shutdowns  []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// InitLogger нужен отдельно для команд, которым не нужен весь сервер
func (a *App) InitLogger() error {
	if err := logger.Init(a.config.Logging); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})
	return nil
}

func (a *App) Init(ctx context.Context) error {
	if err := a.InitLogger(); err != nil {
		return err
	}

	logger.Info("App: Конфигурация загружена", zap.String("config", a.config.Redacted()))

	if err := a.initTelemetry(ctx); err != nil {
		a.Shutdown()
		return err
	}

	repository, err := a.openRepository(ctx)
	if err != nil {
		a.Shutdown()
		return err
	}
	a.repository = repository

	a.service = service.NewTaskService(a.repository)
	a.metrics = metrics.New()
	a.router = a.newRouter(handlers.NewTaskHandler(a.service))

	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      otelhttp.NewHandler(a.router, serviceName),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	logger.Info("App: Приложение инициализировано",
		zap.String("repository", a.config.Repository.Type),
		zap.String("addr", a.server.Addr))
	return nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	shutdown, err := telemetry.Init(ctx, a.config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("инициализация трассировки: %w", err)
	}

	a.shutdowns = append(a.shutdowns, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("App: Ошибка остановки трассировки", err)
		}
	})
	return nil
}

func (a *App) openRepository(ctx context.Context) (service.TaskRepository, error) {
	switch a.config.Repository.Type {
	case config.RepositoryPostgres:
		storage, err := postgres.New(ctx, a.config.Database)
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		a.shutdowns = append(a.shutdowns, storage.Close)

		if a.config.Database.MigrateOnStart {
			if err := storage.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return storage, nil

	case config.RepositorySQLite:
		storage, err := sqlite.New(a.config.Repository.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.shutdowns = append(a.shutdowns, storage.Close)
		return storage, nil

	case config.RepositoryInMemory:
		logger.Warn("App: Данные хранятся в памяти и пропадут после остановки")
		return inmemory.NewTaskStorage(), nil
	}

	return nil, fmt.Errorf("неизвестный тип хранилища %q", a.config.Repository.Type)
}

func (a *App) newRouter(taskHandler *handlers.TaskHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Location", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimit(a.config.Server.RateLimitRPM))

	taskHandler.Routes(r)
	r.Get("/health", taskHandler.HealthCheck)

	if a.config.Metrics.Enabled {
		r.Method(http.MethodGet, a.config.Metrics.Path, a.metrics.Handler())
	}

	return r
}

// Handler - готовый обработчик со всеми middleware, без запуска сервера
func (a *App) Handler() http.Handler {
	if a.server == nil {
		return nil
	}
	return a.server.Handler
}

// Run обслуживает запросы, пока не отменён ctx, затем корректно останавливается
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("приложение не инициализировано")
	}
	defer a.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP: Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("запуск сервера: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("HTTP: Остановка сервера", zap.Duration("timeout", a.config.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("остановка сервера: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Migrate применяет (up) или откатывает миграции PostgreSQL
func (a *App) Migrate(ctx context.Context, up bool) error {
	if a.config.Repository.Type != config.RepositoryPostgres {
		return fmt.Errorf("миграции доступны только для repository.type=%s", config.RepositoryPostgres)
	}
	defer a.Shutdown()

	storage, err := postgres.New(ctx, a.config.Database)
	if err != nil {
		return fmt.Errorf("подключение к postgres: %w", err)
	}
	defer storage.Close()

	if up {
		return storage.Migrate(ctx)
	}
	return storage.Down(ctx)
}

// Shutdown выполняет зарегистрированные функции в обратном порядке
func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
