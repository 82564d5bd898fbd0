package sketchlogo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/sketch-logo/internal/cache"
	"github.com/magabrotheeeer/sketch-logo/internal/config"
	"github.com/magabrotheeeer/sketch-logo/internal/http/middlewarectx"
	"github.com/magabrotheeeer/sketch-logo/internal/imagegen"
	"github.com/magabrotheeeer/sketch-logo/internal/lib/jwt"
	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/metrics"
	"github.com/magabrotheeeer/sketch-logo/internal/migrations"
	"github.com/magabrotheeeer/sketch-logo/internal/rabbitmq"
	"github.com/magabrotheeeer/sketch-logo/internal/reconciliation"
	authservice "github.com/magabrotheeeer/sketch-logo/internal/services/auth"
	"github.com/magabrotheeeer/sketch-logo/internal/services/generation"
	"github.com/magabrotheeeer/sketch-logo/internal/services/ledger"
	"github.com/magabrotheeeer/sketch-logo/internal/services/session"
	"github.com/magabrotheeeer/sketch-logo/internal/storage/repository"
)

// App HTTP-сервер сервиса вместе с его ресурсами.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	amqp   *amqp.Connection
}

// New подключает хранилище, кэш, брокер и модель и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "sketchlogo.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	version, err := migrations.Run(db.DB, cfg.MigrationsPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("migrations applied", slog.Uint64("version", uint64(version)))

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	generator, err := imagegen.New(ctx, cfg.Gemini)
	if err != nil {
		_ = db.Close()
		_ = cacheRedis.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	var reporter generation.Reporter = reconciliation.NewLogReporter(logger)
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.amqp = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.LedgerExchange, rabbitmq.GetLedgerQueues())
		if err != nil {
			app.closeResources()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		reporter = reconciliation.NewPublisher(ch, logger)
	} else {
		logger.Warn("rabbitmq url is empty, commit failures are only logged")
	}

	m := metrics.New()
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	ledgerService := ledger.New(db, cacheRedis, logger, cfg.Ledger.ProfileCacheTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:      logger,
		Sessions:    session.New(jwtMaker),
		Auth:        authservice.NewAuthService(db, jwtMaker),
		Ledger:      ledgerService,
		Generation:  generation.New(ledgerService, generator, reporter, m, logger, cfg.Ledger.GenerationTimeout),
		Health:      db,
		Metrics:     m.Handler(),
		UserLimiter: middlewarectx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		AuthLimiter: middlewarectx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		TokenTTL:    cfg.TokenTTL,
	})

	// WriteTimeout должен покрывать вызов модели.
	writeTimeout := max(cfg.TimeoutHTTP, cfg.Ledger.GenerationTimeout+5*time.Second)
	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: writeTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run запускает сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeResources()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.closeResources()
		return err
	}
}

func (a *App) closeResources() {
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
