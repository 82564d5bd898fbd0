// Package ledger ведёт учёт остатка генераций пользователя: проверяет право
// на генерацию, списывает генерацию после успеха и отдаёт профиль для чтения.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// UserRepository описывает доступ к записям пользователей.
type UserRepository interface {
	// GetUserByEmail возвращает пользователя или models.ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// DecrementGenerations атомарно уменьшает остаток, если он больше нуля.
	DecrementGenerations(ctx context.Context, email string) (remaining int, applied bool, err error)
}

// Cache описывает кэш профилей. Запись условна: значение, прочитанное до
// инвалидации ключа, в кэш не попадает.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Version(ctx context.Context, key string) (int64, error)
	SetIfVersion(ctx context.Context, key string, value any, expiration time.Duration, version int64) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Service реализует учёт генераций поверх хранилища пользователей.
type Service struct {
	repo       UserRepository
	cache      Cache
	log        *slog.Logger
	profileTTL time.Duration
}

// New создает новый экземпляр Service.
func New(repo UserRepository, cache Cache, log *slog.Logger, profileTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		log:        log,
		profileTTL: profileTTL,
	}
}

func profileKey(email string) string {
	return "profile:" + email
}

// CheckAndReserve читает тариф и остаток и решает, можно ли генерировать.
// Ничего не резервирует и не изменяет: списание выполняет CommitDecrement.
func (s *Service) CheckAndReserve(ctx context.Context, id models.Identity) (models.Entitlement, error) {
	const op = "ledger.CheckAndReserve"

	user, err := s.repo.GetUserByEmail(ctx, id.Email)
	if err != nil {
		return models.Entitlement{}, fmt.Errorf("%s: %w", op, err)
	}

	if user.GenerationsLeft <= 0 {
		return models.Entitlement{Allowed: false, Plan: user.PlanType, Remaining: 0}, nil
	}
	return models.Entitlement{Allowed: true, Plan: user.PlanType, Remaining: user.GenerationsLeft}, nil
}

// CommitDecrement списывает одну генерацию после успешной генерации.
//
// Если остаток к моменту записи уже нулевой (проигранная гонка), возвращает
// models.ErrQuotaExhausted. Ошибки хранилища оборачиваются в
// models.ErrLedgerCommitFailed.
func (s *Service) CommitDecrement(ctx context.Context, id models.Identity) (int, error) {
	const op = "ledger.CommitDecrement"

	remaining, applied, err := s.repo.DecrementGenerations(ctx, id.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		return 0, fmt.Errorf("%s: %w: %w", op, models.ErrLedgerCommitFailed, err)
	}
	if !applied {
		return 0, fmt.Errorf("%s: %w", op, models.ErrQuotaExhausted)
	}

	s.invalidateProfile(ctx, id.Email)
	return remaining, nil
}

// Decrement уменьшает остаток на единицу с полом в нуле.
// Нулевой остаток не считается ошибкой: возвращается 0.
func (s *Service) Decrement(ctx context.Context, id models.Identity) (int, error) {
	const op = "ledger.Decrement"

	remaining, applied, err := s.repo.DecrementGenerations(ctx, id.Email)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if applied {
		s.invalidateProfile(ctx, id.Email)
	}
	return remaining, nil
}

// Profile возвращает профиль пользователя, сначала пытаясь прочитать его из кэша.
func (s *Service) Profile(ctx context.Context, id models.Identity) (*models.User, error) {
	const op = "ledger.Profile"
	key := profileKey(id.Email)

	var cached models.User
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read profile from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	// Версию читаем до хранилища: списание между чтением и записью
	// увеличит её, и устаревший профиль не будет закэширован.
	version, verErr := s.cache.Version(ctx, key)
	if verErr != nil {
		s.log.Warn("failed to read profile cache version", slog.String("key", key), sl.Err(verErr))
	}

	user, err := s.repo.GetUserByEmail(ctx, id.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if verErr == nil {
		stored, err := s.cache.SetIfVersion(ctx, key, user, s.profileTTL, version)
		switch {
		case err != nil:
			s.log.Warn("failed to cache profile", slog.String("key", key), sl.Err(err))
		case !stored:
			s.log.Debug("profile changed while loading, not cached", slog.String("key", key))
		}
	}
	return user, nil
}

func (s *Service) invalidateProfile(ctx context.Context, email string) {
	key := profileKey(email)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate profile cache", slog.String("key", key), sl.Err(err))
	}
}
