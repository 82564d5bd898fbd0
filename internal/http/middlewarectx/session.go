// Package middlewarectx содержит HTTP middleware сервиса: определение
// сессии пользователя и ограничение частоты запросов.
//
// SessionMiddleware определяет идентичность по токену запроса и кладёт её
// в контекст. Без действующей сессии запрос завершается с 401 Unauthorized,
// следующий обработчик не вызывается.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/sketch-logo/internal/http/response"
	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// IdentityKey ключ идентичности пользователя в контексте.
const IdentityKey Key = "identity"

// Resolver определяет идентичность по запросу.
type Resolver interface {
	Resolve(r *http.Request) (models.Identity, error)
}

// SessionMiddleware возвращает middleware, который требует действующую сессию.
func SessionMiddleware(resolver Resolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SessionMiddleware"

			identity, err := resolver.Resolve(r)
			if err != nil {
				log.With(
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				).Info("unauthenticated request", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity кладёт идентичность в контекст.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// IdentityFromContext достаёт идентичность, положенную SessionMiddleware.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(models.Identity)
	if !ok || identity.Email == "" {
		return models.Identity{}, false
	}
	return identity, true
}
