// Package reconciliation сообщает о генерациях, списание которых не удалось
// сохранить, и дозаписывает такие списания из очереди.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
	"github.com/magabrotheeeer/sketch-logo/internal/rabbitmq"
)

// Publisher публикует события в exchange ledger с ключом commit_failed.
type Publisher struct {
	publish func(exchange, routingKey string, message any) error
	log     *slog.Logger
}

// NewPublisher создает Publisher поверх настроенного канала RabbitMQ.
func NewPublisher(ch *amqp.Channel, log *slog.Logger) *Publisher {
	return &Publisher{
		publish: func(exchange, routingKey string, message any) error {
			return rabbitmq.PublishMessage(ch, exchange, routingKey, message)
		},
		log: log,
	}
}

// Report публикует событие о несохранённом списании.
func (p *Publisher) Report(ctx context.Context, f models.CommitFailure) error {
	const op = "reconciliation.Report"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if err := p.publish(rabbitmq.LedgerExchange, rabbitmq.CommitFailedKey, f); err != nil {
		p.log.Error("failed to publish commit failure",
			slog.String("request_id", f.RequestID), sl.Email(f.UserEmail), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	p.log.Info("commit failure published", slog.String("request_id", f.RequestID), sl.Email(f.UserEmail))
	return nil
}

// LogReporter только пишет событие в лог. Используется, когда брокер не настроен.
type LogReporter struct {
	log *slog.Logger
}

// NewLogReporter создает LogReporter.
func NewLogReporter(log *slog.Logger) *LogReporter {
	return &LogReporter{log: log}
}

// Report записывает событие в лог на уровне error.
func (r *LogReporter) Report(_ context.Context, f models.CommitFailure) error {
	r.log.Error("ledger commit failed, manual reconciliation required",
		slog.String("request_id", f.RequestID),
		sl.Email(f.UserEmail),
		slog.Time("occurred_at", f.OccurredAt),
		slog.String("error", f.Error),
	)
	return nil
}
