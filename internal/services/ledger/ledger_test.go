package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/sketch-logo/internal/models"
	"github.com/magabrotheeeer/sketch-logo/internal/services/ledger"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) DecrementGenerations(ctx context.Context, email string) (int, bool, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Bool(1), args.Error(2)
}

type CacheMock struct {
	mock.Mock
}

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Version(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CacheMock) SetIfVersion(ctx context.Context, key string, value any, expiration time.Duration, version int64) (bool, error) {
	args := m.Called(ctx, key, value, expiration, version)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Invalidate(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var alice = models.Identity{UserUID: "uid-1", Email: "alice@example.com"}

func TestService_CheckAndReserve(t *testing.T) {
	tests := []struct {
		name      string
		user      *models.User
		repoErr   error
		want      models.Entitlement
		wantErrIs error
	}{
		{
			name: "balance available",
			user: &models.User{Email: alice.Email, PlanType: models.PlanFree, GenerationsLeft: 3},
			want: models.Entitlement{Allowed: true, Plan: models.PlanFree, Remaining: 3},
		},
		{
			name: "exactly one left",
			user: &models.User{Email: alice.Email, PlanType: models.PlanPlus, GenerationsLeft: 1},
			want: models.Entitlement{Allowed: true, Plan: models.PlanPlus, Remaining: 1},
		},
		{
			name: "zero balance",
			user: &models.User{Email: alice.Email, PlanType: models.PlanFree, GenerationsLeft: 0},
			want: models.Entitlement{Allowed: false, Plan: models.PlanFree, Remaining: 0},
		},
		{
			name:      "user missing",
			repoErr:   models.ErrUserNotFound,
			wantErrIs: models.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			cache := new(CacheMock)
			if tt.user != nil {
				repo.On("GetUserByEmail", mock.Anything, alice.Email).Return(tt.user, nil).Once()
			} else {
				repo.On("GetUserByEmail", mock.Anything, alice.Email).Return(nil, tt.repoErr).Once()
			}

			svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
			got, err := svc.CheckAndReserve(context.Background(), alice)

			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
			repo.AssertNotCalled(t, "DecrementGenerations", mock.Anything, mock.Anything)
			cache.AssertExpectations(t)
		})
	}
}

func TestService_CommitDecrement(t *testing.T) {
	tests := []struct {
		name           string
		remaining      int
		applied        bool
		repoErr        error
		wantRemaining  int
		wantErrIs      error
		wantInvalidate bool
	}{
		{
			name:           "applied",
			remaining:      4,
			applied:        true,
			wantRemaining:  4,
			wantInvalidate: true,
		},
		{
			name:      "lost race",
			remaining: 0,
			applied:   false,
			wantErrIs: models.ErrQuotaExhausted,
		},
		{
			name:      "user missing",
			repoErr:   models.ErrUserNotFound,
			wantErrIs: models.ErrUserNotFound,
		},
		{
			name:      "store error",
			repoErr:   errors.New("connection reset"),
			wantErrIs: models.ErrLedgerCommitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			cache := new(CacheMock)
			repo.On("DecrementGenerations", mock.Anything, alice.Email).
				Return(tt.remaining, tt.applied, tt.repoErr).Once()
			if tt.wantInvalidate {
				cache.On("Invalidate", mock.Anything, "profile:"+alice.Email).Return(nil).Once()
			}

			svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
			got, err := svc.CommitDecrement(context.Background(), alice)

			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				assert.Zero(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRemaining, got)
			}
			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
			if !tt.wantInvalidate {
				cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestService_CommitDecrement_StoreErrorKeepsCause(t *testing.T) {
	repo := new(RepoMock)
	cause := errors.New("connection reset")
	repo.On("DecrementGenerations", mock.Anything, alice.Email).Return(0, false, cause).Once()

	svc := ledger.New(repo, new(CacheMock), newNoopLogger(), time.Minute)
	_, err := svc.CommitDecrement(context.Background(), alice)

	assert.ErrorIs(t, err, models.ErrLedgerCommitFailed)
	assert.ErrorIs(t, err, cause)
}

func TestService_Decrement(t *testing.T) {
	t.Run("floor at zero", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		repo.On("DecrementGenerations", mock.Anything, alice.Email).Return(0, false, nil).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
		got, err := svc.Decrement(context.Background(), alice)

		require.NoError(t, err)
		assert.Equal(t, 0, got)
		cache.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("decrements and invalidates profile", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		repo.On("DecrementGenerations", mock.Anything, alice.Email).Return(6, true, nil).Once()
		cache.On("Invalidate", mock.Anything, "profile:"+alice.Email).Return(nil).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
		got, err := svc.Decrement(context.Background(), alice)

		require.NoError(t, err)
		assert.Equal(t, 6, got)
		cache.AssertExpectations(t)
	})

	t.Run("cache failure does not fail the decrement", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		repo.On("DecrementGenerations", mock.Anything, alice.Email).Return(2, true, nil).Once()
		cache.On("Invalidate", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
		got, err := svc.Decrement(context.Background(), alice)

		require.NoError(t, err)
		assert.Equal(t, 2, got)
	})

	t.Run("user missing", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("DecrementGenerations", mock.Anything, alice.Email).Return(0, false, models.ErrUserNotFound).Once()

		svc := ledger.New(repo, new(CacheMock), newNoopLogger(), time.Minute)
		_, err := svc.Decrement(context.Background(), alice)

		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})
}

func TestService_Profile(t *testing.T) {
	user := &models.User{UUID: "uid-1", Email: alice.Email, PlanType: models.PlanPlus, GenerationsLeft: 42}

	t.Run("cache hit skips repository", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", mock.Anything, "profile:"+alice.Email, mock.AnythingOfType("*models.User")).
			Run(func(args mock.Arguments) {
				*args.Get(2).(*models.User) = *user
			}).
			Return(true, nil).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
		got, err := svc.Profile(context.Background(), alice)

		require.NoError(t, err)
		assert.Equal(t, user, got)
		repo.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
	})

	t.Run("cache miss loads and stores", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", mock.Anything, "profile:"+alice.Email, mock.Anything).Return(false, nil).Once()
		cache.On("Version", mock.Anything, "profile:"+alice.Email).Return(int64(2), nil).Once()
		repo.On("GetUserByEmail", mock.Anything, alice.Email).Return(user, nil).Once()
		cache.On("SetIfVersion", mock.Anything, "profile:"+alice.Email, user, 30*time.Second, int64(2)).Return(true, nil).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), 30*time.Second)
		got, err := svc.Profile(context.Background(), alice)

		require.NoError(t, err)
		assert.Equal(t, user, got)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("cache errors fall back to repository", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down")).Once()
		cache.On("Version", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
		repo.On("GetUserByEmail", mock.Anything, alice.Email).Return(user, nil).Once()
		cache.On("SetIfVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(false, errors.New("redis down")).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
		got, err := svc.Profile(context.Background(), alice)

		require.NoError(t, err)
		assert.Equal(t, 42, got.GenerationsLeft)
	})

	t.Run("version unavailable skips caching", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()
		cache.On("Version", mock.Anything, mock.Anything).Return(int64(0), errors.New("redis down")).Once()
		repo.On("GetUserByEmail", mock.Anything, alice.Email).Return(user, nil).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
		got, err := svc.Profile(context.Background(), alice)

		require.NoError(t, err)
		assert.Equal(t, user, got)
		cache.AssertNotCalled(t, "SetIfVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("user missing", func(t *testing.T) {
		repo := new(RepoMock)
		cache := new(CacheMock)
		cache.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(false, nil).Once()
		cache.On("Version", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
		repo.On("GetUserByEmail", mock.Anything, alice.Email).Return(nil, models.ErrUserNotFound).Once()

		svc := ledger.New(repo, cache, newNoopLogger(), time.Minute)
		got, err := svc.Profile(context.Background(), alice)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, models.ErrUserNotFound)
		cache.AssertNotCalled(t, "SetIfVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
