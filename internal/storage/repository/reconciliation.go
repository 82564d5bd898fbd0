package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// SaveCommitFailure сохраняет событие несохранённого списания для ручной сверки.
// Повторная доставка того же события ничего не меняет.
func (s *Storage) SaveCommitFailure(ctx context.Context, f models.CommitFailure) (inserted bool, err error) {
	const op = "storage.SaveCommitFailure"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO ledger_reconciliation (request_id, user_email, occurred_at, error)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (request_id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query, f.RequestID, f.UserEmail, f.OccurredAt, f.Error)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// CountPendingReconciliations возвращает число неразобранных событий пользователя.
func (s *Storage) CountPendingReconciliations(ctx context.Context, email string) (int, error) {
	const op = "storage.CountPendingReconciliations"
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_reconciliation WHERE user_email = $1 AND resolved_at IS NULL`, email).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
