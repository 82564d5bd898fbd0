package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// Store хранит события для ручной сверки.
type Store interface {
	SaveCommitFailure(ctx context.Context, f models.CommitFailure) (bool, error)
	CountPendingReconciliations(ctx context.Context, email string) (int, error)
}

// Worker складывает события commit_failed в журнал сверки.
// Списание повторно не выполняется: запрос мог быть применён хранилищем
// до обрыва соединения.
type Worker struct {
	store   Store
	log     *slog.Logger
	timeout time.Duration
}

// NewWorker создает Worker.
func NewWorker(store Store, log *slog.Logger, timeout time.Duration) *Worker {
	return &Worker{store: store, log: log, timeout: timeout}
}

// Handle обрабатывает одно сообщение очереди.
//
// Нечитаемые события подтверждаются без повторов; ошибка хранилища
// возвращает сообщение в очередь.
func (w *Worker) Handle(body []byte) error {
	const op = "reconciliation.Handle"
	log := w.log.With(slog.String("op", op))

	var f models.CommitFailure
	if err := json.Unmarshal(body, &f); err != nil {
		log.Error("dropping malformed event", sl.Err(err))
		return nil
	}
	if f.UserEmail == "" || f.RequestID == "" {
		log.Error("dropping incomplete event", slog.String("request_id", f.RequestID))
		return nil
	}
	log = log.With(slog.String("request_id", f.RequestID), sl.Email(f.UserEmail))

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	inserted, err := w.store.SaveCommitFailure(ctx, f)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		log.Info("event already recorded")
		return nil
	}

	pending, err := w.store.CountPendingReconciliations(ctx, f.UserEmail)
	if err != nil {
		log.Warn("failed to count pending reconciliations", sl.Err(err))
		return nil
	}
	log.Warn("commit failure recorded for reconciliation", slog.Int("pending_for_user", pending))
	return nil
}
