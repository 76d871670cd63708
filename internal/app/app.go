// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bissquit/stockwatch/api/openapi"
	"github.com/bissquit/stockwatch/internal/config"
	"github.com/bissquit/stockwatch/internal/identity/jwt"
	"github.com/bissquit/stockwatch/internal/ingest"
	"github.com/bissquit/stockwatch/internal/ingest/discord"
	"github.com/bissquit/stockwatch/internal/ingest/httpsource"
	"github.com/bissquit/stockwatch/internal/notifications"
	"github.com/bissquit/stockwatch/internal/notifications/telegram"
	"github.com/bissquit/stockwatch/internal/pkg/cache"
	"github.com/bissquit/stockwatch/internal/pkg/ctxlog"
	"github.com/bissquit/stockwatch/internal/pkg/httputil"
	"github.com/bissquit/stockwatch/internal/pkg/metrics"
	"github.com/bissquit/stockwatch/internal/pkg/mongodb"
	"github.com/bissquit/stockwatch/internal/pkg/postgres"
	"github.com/bissquit/stockwatch/internal/stock"
	stockmemory "github.com/bissquit/stockwatch/internal/stock/memory"
	stockmongodb "github.com/bissquit/stockwatch/internal/stock/mongodb"
	stockpostgres "github.com/bissquit/stockwatch/internal/stock/postgres"
	"github.com/bissquit/stockwatch/internal/subscriptions"
	submemory "github.com/bissquit/stockwatch/internal/subscriptions/memory"
	submongodb "github.com/bissquit/stockwatch/internal/subscriptions/mongodb"
	subpostgres "github.com/bissquit/stockwatch/internal/subscriptions/postgres"
	"github.com/bissquit/stockwatch/internal/version"
	"github.com/bissquit/stockwatch/migrations"
)

const metricsInterval = 15 * time.Second

// App represents the application instance.
type App struct {
	config *config.Config
	logger *slog.Logger

	db          *pgxpool.Pool
	mongoClient *mongo.Client
	cache       cache.Cache

	stock         *stock.Service
	subscriptions *subscriptions.Service
	worker        *notifications.Worker
	poller        *ingest.Poller
	listener      *discord.Listener

	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
	}

	stockRepo, subsRepo, err := app.openStorage()
	if err != nil {
		app.closeStorage()
		return nil, err
	}

	c, err := app.openCache()
	if err != nil {
		app.closeStorage()
		return nil, err
	}
	app.cache = c

	normalizer := stock.NewNormalizer(nil, cfg.Ingest.BonusItems)
	app.stock = stock.NewService(stockRepo, normalizer, c, cfg.Cache.TTL)
	app.subscriptions = subscriptions.NewService(subsRepo, app.stock.Catalog())

	var submitter ingest.Submitter
	if cfg.Notifications.Enabled {
		worker, err := app.setupNotifications()
		if err != nil {
			_ = app.closeResources()
			return nil, err
		}
		app.worker = worker
		submitter = worker
	} else {
		slog.Warn("notifications are disabled: new stock will not be announced")
	}

	pipeline := ingest.NewPipeline(app.stock, submitter)
	app.setupIngestion(pipeline)

	authenticator, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Issuer:    cfg.JWT.Issuer,
	})
	if err != nil {
		_ = app.closeResources()
		return nil, fmt.Errorf("create authenticator: %w", err)
	}

	app.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(authenticator),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func (a *App) openStorage() (stock.Repository, subscriptions.Repository, error) {
	cfg := a.config

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.Connect(context.Background(), postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			return nil, nil, err
		}
		a.db = db

		if cfg.Database.MigrateOnStart {
			if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
				return nil, nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		return stockpostgres.NewRepository(db), subpostgres.NewRepository(db), nil

	case config.DriverMongoDB:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoDB.ConnectTimeout+10*time.Second)
		defer cancel()

		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:             cfg.MongoDB.URI,
			Database:        cfg.MongoDB.Database,
			MaxPoolSize:     cfg.MongoDB.MaxPoolSize,
			MinPoolSize:     cfg.MongoDB.MinPoolSize,
			MaxConnIdleTime: cfg.MongoDB.MaxConnIdleTime,
			ConnectTimeout:  cfg.MongoDB.ConnectTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		a.mongoClient = client

		stockRepo := stockmongodb.NewRepository(db)
		subsRepo := submongodb.NewRepository(db)
		if err := stockRepo.EnsureIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("create stock indexes: %w", err)
		}
		if err := subsRepo.EnsureIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("create subscription indexes: %w", err)
		}
		return stockRepo, subsRepo, nil

	case config.DriverMemory:
		slog.Warn("using in-memory storage: data is lost on restart")
		return stockmemory.NewRepository(), submemory.NewRepository(), nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func (a *App) openCache() (cache.Cache, error) {
	switch a.config.Cache.Driver {
	case config.CacheRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:      a.config.Cache.Redis.Addr,
			Password:  a.config.Cache.Redis.Password,
			DB:        a.config.Cache.Redis.DB,
			KeyPrefix: a.config.Cache.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return r, nil
	case config.CacheMemory:
		return cache.NewMemory(time.Minute), nil
	}
	return cache.Noop{}, nil
}

func (a *App) setupNotifications() (*notifications.Worker, error) {
	cfg := a.config.Notifications

	var sender notifications.Sender
	if cfg.Telegram.Enabled {
		telegramSender, err := telegram.NewSender(telegram.Config{
			Enabled:   true,
			BotToken:  cfg.Telegram.BotToken,
			RateLimit: cfg.Telegram.RateLimit,
			Timeout:   cfg.Telegram.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create telegram sender: %w", err)
		}
		sender = telegramSender
	} else {
		slog.Warn("telegram sender is disabled: notifications will only be logged")
		sender = notifications.NewLogSender(a.logger)
	}

	renderer, err := notifications.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	notifier := notifications.NewNotifier(notifications.NotifierConfig{
		Concurrency: cfg.Worker.Concurrency,
		SendTimeout: cfg.Worker.SendTimeout,
	}, a.subscriptions, a.stock.Catalog(), renderer, sender)

	return notifications.NewWorker(notifications.WorkerConfig{
		QueueSize: cfg.Worker.QueueSize,
	}, notifier), nil
}

func (a *App) setupIngestion(pipeline *ingest.Pipeline) {
	cfg := a.config.Ingest

	if cfg.Poll.Enabled {
		client := httpsource.NewClient(httpsource.Config{
			URL:       cfg.Poll.URL,
			Timeout:   cfg.Poll.Timeout,
			UserAgent: version.UserAgent(),
		})
		a.poller = ingest.NewPoller(ingest.PollerConfig{Interval: cfg.Poll.Interval}, client, pipeline)
	}

	if cfg.Discord.Enabled {
		a.listener = discord.NewListener(discord.Config{
			Token:        cfg.Discord.Token,
			ChannelIDs:   cfg.Discord.ChannelIDs,
			AuthorMarker: cfg.Discord.AuthorMarker,
			TitleMarker:  cfg.Discord.TitleMarker,
		}, discord.IngesterFunc(func(ctx context.Context, rec stock.Record) error {
			_, err := pipeline.IngestEvent(ctx, rec)
			return err
		}))
	}

	slog.Info("ingestion configured",
		"poll_enabled", cfg.Poll.Enabled,
		"discord_enabled", cfg.Discord.Enabled,
		"bonus_items", len(cfg.BonusItems),
	)
}

// Run starts the HTTP servers, the notification worker and the ingestion loops.
// It returns nil when ctx is cancelled and an error when a server or an ingestion
// loop fails; the caller is expected to call Shutdown in both cases.
func (a *App) Run(ctx context.Context) error {
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	a.metricsCancel = metricsCancel

	go metrics.CollectPeriodically(metricsCtx, metricsInterval, a.collectMetrics)

	if a.worker != nil {
		a.worker.Start(ctx)
	}

	ingestCtx, ingestCancel := context.WithCancel(ctx)
	defer ingestCancel()

	errCh := make(chan error, 3)

	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		a.logger.Info("starting server",
			"host", a.config.Server.Host,
			"port", a.config.Server.Port,
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	if a.poller != nil {
		go func() {
			if err := a.poller.Run(ingestCtx); err != nil {
				errCh <- fmt.Errorf("stock poller: %w", err)
			}
		}()
	}

	if a.listener != nil {
		go func() {
			if err := a.listener.Run(ingestCtx); err != nil {
				errCh <- fmt.Errorf("discord listener: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		a.logger.Error("fatal error, stopping", "error", err)
		return err
	}
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	if a.metricsCancel != nil {
		a.metricsCancel()
	}

	if a.worker != nil {
		a.worker.Stop()
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func(name string, srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}(name, srv)
	}

	wg.Wait()

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var err error
	if a.cache != nil {
		if cerr := a.cache.Close(); cerr != nil {
			err = fmt.Errorf("close cache: %w", cerr)
		}
	}
	a.closeStorage()
	return err
}

func (a *App) closeStorage() {
	if a.db != nil {
		a.db.Close()
	}
	if a.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			slog.Warn("failed to disconnect from mongodb", "error", err)
		}
	}
}

func (a *App) collectMetrics(ctx context.Context) {
	if a.db != nil {
		metrics.RecordDBPoolMetrics(a.db)
	}

	n, err := a.stock.ActiveCount(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to count active snapshots", "error", err)
		}
		return
	}
	stock.RecordActiveCount(n)
	if n > 1 {
		slog.Error("more than one active snapshot", "count", n)
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// StockService returns the snapshot service. Used in tests.
func (a *App) StockService() *stock.Service {
	return a.stock
}

func (a *App) setupRouter(auth httputil.TokenValidator) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	stockHandler := stock.NewHandler(a.stock)
	subscriptionsHandler := subscriptions.NewHandler(a.subscriptions)

	r.Route("/api/v1", func(r chi.Router) {
		stockHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(auth))
			subscriptionsHandler.RegisterRoutes(r)
		})
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) ping(ctx context.Context) error {
	switch {
	case a.db != nil:
		if err := a.db.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	case a.mongoClient != nil:
		if err := a.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("ping mongodb: %w", err)
		}
	}

	if p, ok := a.cache.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping cache: %w", err)
		}
	}
	return nil
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
