// Package sketchlogo собирает HTTP-приложение сервиса генерации логотипов.
package sketchlogo

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/sketch-logo/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/sketch-logo/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/sketch-logo/internal/http/handlers/generate"
	"github.com/magabrotheeeer/sketch-logo/internal/http/handlers/health"
	"github.com/magabrotheeeer/sketch-logo/internal/http/handlers/user/profile"
	"github.com/magabrotheeeer/sketch-logo/internal/http/handlers/user/updategenerations"
	"github.com/magabrotheeeer/sketch-logo/internal/http/middlewarectx"
)

// AuthService объединяет регистрацию и вход.
type AuthService interface {
	register.Service
	login.Service
}

// LedgerService отдаёт профиль и списывает генерации вручную.
type LedgerService interface {
	profile.Service
	updategenerations.Service
}

// Deps зависимости маршрутов.
type Deps struct {
	Logger     *slog.Logger
	Sessions   middlewarectx.Resolver
	Auth       AuthService
	Ledger     LedgerService
	Generation generate.Service
	Health     health.Checker
	Metrics    http.Handler
	// UserLimiter ограничивает запросы пользователя с сессией.
	UserLimiter *middlewarectx.RateLimiter
	// AuthLimiter ограничивает попытки входа и регистрации по адресу клиента.
	AuthLimiter *middlewarectx.RateLimiter
	TokenTTL    time.Duration
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/health", health.New(d.Logger, d.Health).ServeHTTP)
	r.Handle("/metrics", d.Metrics)
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Use(d.AuthLimiter.Middleware(d.Logger))
		r.Post("/register", register.New(d.Logger, d.Auth).ServeHTTP)
		r.Post("/login", login.New(d.Logger, d.Auth, d.TokenTTL).ServeHTTP)
	})

	// Группа с проверкой сессии
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.SessionMiddleware(d.Sessions, d.Logger))
		r.Use(d.UserLimiter.Middleware(d.Logger))
		r.Post("/generate", generate.New(d.Logger, d.Generation).ServeHTTP)
		r.Get("/user", profile.New(d.Logger, d.Ledger).ServeHTTP)
		r.Post("/user/update-generations", updategenerations.New(d.Logger, d.Ledger).ServeHTTP)
	})
}
