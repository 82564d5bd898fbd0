package sketchlogo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/sketch-logo/internal/cache"
	"github.com/magabrotheeeer/sketch-logo/internal/http/middlewarectx"
	"github.com/magabrotheeeer/sketch-logo/internal/lib/jwt"
	"github.com/magabrotheeeer/sketch-logo/internal/metrics"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
	"github.com/magabrotheeeer/sketch-logo/internal/reconciliation"
	authservice "github.com/magabrotheeeer/sketch-logo/internal/services/auth"
	"github.com/magabrotheeeer/sketch-logo/internal/services/generation"
	"github.com/magabrotheeeer/sketch-logo/internal/services/ledger"
	"github.com/magabrotheeeer/sketch-logo/internal/services/session"
)

// memStore хранит пользователей в памяти и считает обращения.
type memStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	calls atomic.Int64
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*models.User)}
}

func (s *memStore) CreateUser(_ context.Context, u models.User) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return "", models.ErrUserExists
	}
	u.UUID = "uid-" + strconv.Itoa(len(s.users)+1)
	s.users[u.Email] = &u
	return u.UUID, nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) DecrementGenerations(_ context.Context, email string) (int, bool, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return 0, false, models.ErrUserNotFound
	}
	if u.GenerationsLeft <= 0 {
		return 0, false, nil
	}
	u.GenerationsLeft--
	return u.GenerationsLeft, true, nil
}

func (s *memStore) CheckDatabaseReady(context.Context) error { return nil }

func (s *memStore) setBalance(email string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email].GenerationsLeft = n
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, []byte, string) (string, error) {
	return "data:image/png;base64,bG9nbw==", nil
}

type testServer struct {
	srv   *httptest.Server
	store *memStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	c := &cache.Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })

	store := newMemStore()
	tokens := jwt.NewJWTMaker("test-secret", time.Hour)
	m := metrics.New()
	l := ledger.New(store, c, log, time.Minute)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:      log,
		Sessions:    session.New(tokens),
		Auth:        authservice.NewAuthService(store, tokens),
		Ledger:      l,
		Generation:  generation.New(l, stubGenerator{}, reconciliation.NewLogReporter(log), m, log, time.Minute),
		Health:      store,
		Metrics:     m.Handler(),
		UserLimiter: middlewarectx.NewRateLimiter(1000, 1000),
		AuthLimiter: middlewarectx.NewRateLimiter(1000, 1000),
		TokenTTL:    time.Hour,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (ts *testServer) signUp(t *testing.T, email string) string {
	t.Helper()
	resp, _ := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["data"].(map[string]any)["token"].(string)
}

func generationsLeft(t *testing.T, body map[string]any) float64 {
	t.Helper()
	user, ok := body["user"].(map[string]any)
	require.True(t, ok, "response has no user: %v", body)
	return user["generationsLeft"].(float64)
}

func TestRouter_ProfileReflectsManualDecrement(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "ada@example.com")

	resp, body := ts.do(t, http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), generationsLeft(t, body))
	assert.Equal(t, "FREE", body["user"].(map[string]any)["planType"])

	resp, body = ts.do(t, http.MethodPost, "/user/update-generations", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(9), body["generationsLeft"])

	// Профиль был закэширован первым запросом, списание должно его сбросить.
	resp, body = ts.do(t, http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(9), generationsLeft(t, body))
}

func TestRouter_GenerateWithoutSessionDoesNotTouchStore(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/generate", "", map[string]string{"sketch": "aGVsbG8="})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "unauthorized", body["error"])
	assert.Zero(t, ts.store.calls.Load())
}

func TestRouter_GenerateAtZeroReturnsPlanLimit(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "ada@example.com")
	ts.store.setBalance("ada@example.com", 0)

	resp, body := ts.do(t, http.MethodPost, "/generate", token, map[string]string{"sketch": "aGVsbG8="})

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, true, body["planLimitReached"])
	assert.Equal(t, "Error", body["status"])
}

func TestRouter_GenerateDecrementsBalance(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signUp(t, "ada@example.com")

	resp, body := ts.do(t, http.MethodPost, "/generate", token, map[string]string{"sketch": "data:image/png;base64,aGVsbG8="})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "data:image/png;base64,bG9nbw==", body["logo"])
	assert.Equal(t, float64(9), body["generationsLeft"])

	_, body = ts.do(t, http.MethodGet, "/user", token, nil)
	assert.Equal(t, float64(9), generationsLeft(t, body))
}

func TestRouter_SessionCookie(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp(t, "ada@example.com")

	resp, _ := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "password123",
	})
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/user", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	res, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp(t, "ada@example.com")

	resp, body := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ada@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "user already exists", body["error"])
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body["status"])

	resp, _ = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
