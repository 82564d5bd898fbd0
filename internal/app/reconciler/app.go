// Package reconciler запускает потребителя событий о несохранённых списаниях.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/sketch-logo/internal/config"
	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/migrations"
	"github.com/magabrotheeeer/sketch-logo/internal/rabbitmq"
	"github.com/magabrotheeeer/sketch-logo/internal/reconciliation"
	"github.com/magabrotheeeer/sketch-logo/internal/storage/repository"
)

const storeTimeout = 5 * time.Second

// App процесс сверки: очередь ledger.reconciliation и журнал в PostgreSQL.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	db     *repository.Storage
	worker *reconciliation.Worker
	logger *slog.Logger
}

// New подключает хранилище и брокер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "reconciler.New"
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: rabbitmq url is not set", op)
	}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.LedgerExchange, rabbitmq.GetLedgerQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:   conn,
		ch:     ch,
		db:     db,
		worker: reconciliation.NewWorker(db, logger, storeTimeout),
		logger: logger,
	}, nil
}

// Run потребляет очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.ReconciliationQueue, a.worker.Handle)
	if err != nil {
		a.logger.Error("failed to start reconciliation consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("reconciler shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}
