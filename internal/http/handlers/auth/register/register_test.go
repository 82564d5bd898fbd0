package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, firstName, lastName, email, password string) (string, error) {
	args := m.Called(ctx, firstName, lastName, email, password)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	valid := Request{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "password123"}

	tests := []struct {
		name           string
		body           string
		setupMock      func(m *AuthServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name: "created",
			body: mustJSON(t, valid),
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, "Ada", "Lovelace", "ada@example.com", "password123").Return("uid-1", nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantBody:       `{"status":"OK","data":{"id":"uid-1"}}`,
		},
		{
			name: "duplicate email",
			body: mustJSON(t, valid),
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", models.ErrUserExists).Once()
			},
			wantStatusCode: http.StatusConflict,
			wantBody:       `{"status":"Error","error":"user already exists"}`,
		},
		{
			name: "service error",
			body: mustJSON(t, valid),
			setupMock: func(m *AuthServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       `{"status":"Error","error":"failed to register user"}`,
		},
		{
			name:           "invalid json",
			body:           "{",
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "short password",
			body:           mustJSON(t, Request{Email: "ada@example.com", Password: "123"}),
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       `{"status":"Error","error":"field Password must be at least 6 characters"}`,
		},
		{
			name:           "multibyte password over bcrypt limit",
			body:           mustJSON(t, Request{Email: "ada@example.com", Password: strings.Repeat("я", 40)}),
			setupMock:      func(_ *AuthServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       `{"status":"Error","error":"field Password is too long"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(AuthServiceMock)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			svc.AssertExpectations(t)
		})
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
