package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"todoList/internal/cache"
	"todoList/internal/config"
	"todoList/internal/handlers"
	"todoList/internal/logger"
	"todoList/internal/middleware"
	"todoList/internal/remote"
	"todoList/internal/repository/task/filecache"
	"todoList/internal/repository/task/postgres"
	"todoList/internal/repository/task/sqlite"
	"todoList/internal/service"
	"todoList/internal/worker"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	cache     *cache.Cache
	remote    *remote.Client
	service   *service.SyncService
	worker    *worker.SyncWorker
	health    handlers.HealthChecker
	shutdowns []func() // функции для graceful shutdown, вызываются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init собирает хранилище, клиент сервера и сервис, затем загружает список.
// При ошибке уже открытые ресурсы закрываются.
func (a *App) Init(ctx context.Context) (*App, error) {
	backend, err := a.initBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.cache = cache.New(backend)
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Cache: Остановка очереди сохранения...")
		a.cache.Close()
	})

	var remoteClient service.RemoteClient
	if a.config.Remote.Enabled {
		client, err := remote.New(a.config.Remote.BaseURL, a.config.Remote.Token,
			remote.WithDeviceID(a.config.Remote.DeviceID),
			remote.WithListTimeout(a.config.Remote.ListTimeout),
			remote.WithRequestTimeout(a.config.Remote.RequestTimeout),
		)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("создание клиента сервера: %w", err)
		}
		a.remote = client
		remoteClient = client
		logger.Info("Remote: Синхронизация включена",
			zap.String("base_url", a.config.Remote.BaseURL),
			zap.String("device_id", client.DeviceID()))
	} else {
		logger.Info("Remote: Сервер не настроен, работаем только локально")
	}

	a.service = service.NewSyncService(a.cache, remoteClient,
		service.WithListName(a.config.Storage.Name),
		service.WithFormat(a.config.StorageFormat()),
		service.WithMerge(a.config.Sync.MergeServerRecords),
	)

	if err := a.service.Bootstrap(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("загрузка списка: %w", err)
	}

	a.worker = worker.NewSyncWorker(a.service, &a.config.Sync.Interval, &a.config.Sync.BackoffMax)
	return a, nil
}

func (a *App) initBackend(ctx context.Context) (cache.Backend, error) {
	storage := a.config.Storage

	switch storage.Type {
	case config.StorageSQLite:
		db, err := sqlite.Open(ctx, storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("подключение к SQLite: %w", err)
		}
		a.health = db.HealthCheck
		a.shutdowns = append(a.shutdowns, func() {
			logger.Info("Repository: Закрытие SQLite...")
			if err := db.Close(); err != nil {
				logger.Error("Repository: Ошибка закрытия SQLite", err)
			}
		})
		return db, nil

	case config.StoragePostgres:
		db, err := postgres.New(ctx, storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("подключение к PostgreSQL: %w", err)
		}
		a.shutdowns = append(a.shutdowns, func() {
			logger.Info("Repository: Закрытие пула PostgreSQL...")
			_ = db.Close()
		})
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("миграции PostgreSQL: %w", err)
		}
		a.health = db.HealthCheck
		return db, nil

	default:
		if err := os.MkdirAll(storage.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("создание каталога %s: %w", storage.Dir, err)
		}
		return filecache.NewOS(storage.Dir), nil
	}
}

func (a *App) Service() *service.SyncService {
	return a.service
}

func (a *App) Cache() *cache.Cache {
	return a.cache
}

func (a *App) Config() *config.Config {
	return a.config
}

// Router собирает HTTP-фасад. Повторный вызов возвращает тот же роутер.
func (a *App) Router() http.Handler {
	if a.router != nil {
		return a.router
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recover)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIdHeader},
		ExposedHeaders:   []string{middleware.RequestIdHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	handlers.NewTaskHandler(a.service, handlers.WithHealthCheck(a.health)).Routes(r)

	a.router = r
	return r
}

// Run запускает HTTP-сервер и фоновую синхронизацию и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP: Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP-сервер: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		logger.Info("HTTP: Остановка сервера...")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("остановка HTTP-сервера: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close освобождает ресурсы в порядке, обратном созданию.
func (a *App) Close() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
