package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

const uniqueViolation = "23505"

// CreateUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, first_name, last_name, password_hash, plan_type, generations_left)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING uid;`
	err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.PlanType.String(), user.GenerationsLeft).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", fmt.Errorf("%s: %w", op, models.ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, first_name, last_name, password_hash, plan_type, generations_left
			  FROM users
			  WHERE email = $1`
	var rec models.UserRecord
	err := s.DB.QueryRowContext(ctx, query, email).Scan(
		&rec.UUID, &rec.Email, &rec.FirstName, &rec.LastName,
		&rec.PasswordHash, &rec.PlanType, &rec.GenerationsLeft,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec.ToUser(), nil
}

// DecrementGenerations списывает одну генерацию одним условным UPDATE.
//
// applied=false означает, что остаток уже был нулевым к моменту записи;
// remaining в этом случае равен текущему остатку (0).
func (s *Storage) DecrementGenerations(ctx context.Context, email string) (remaining int, applied bool, err error) {
	const op = "storage.DecrementGenerations"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET generations_left = generations_left - 1
			  WHERE email = $1 AND generations_left > 0
			  RETURNING generations_left`
	err = s.DB.QueryRowContext(ctx, query, email).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	// Ничего не обновлено: либо пользователя нет, либо остаток уже 0.
	var current sql.NullInt64
	err = s.DB.QueryRowContext(ctx, `SELECT generations_left FROM users WHERE email = $1`, email).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return max(0, int(current.Int64)), false, nil
}
