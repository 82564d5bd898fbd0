// Package profile реализует HTTP-обработчик GET /user.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/sketch-logo/internal/http/middlewarectx"
	"github.com/magabrotheeeer/sketch-logo/internal/http/response"
	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// User представление пользователя в ответе.
type User struct {
	ID              string          `json:"id"`
	FirstName       *string         `json:"firstName"`
	LastName        *string         `json:"lastName"`
	Email           string          `json:"email"`
	PlanType        models.PlanType `json:"planType" swaggertype:"string" enums:"FREE,PLUS,PRO"`
	GenerationsLeft int             `json:"generationsLeft"`
}

// Response тело ответа GET /user.
type Response struct {
	User User `json:"user"`
}

// Service возвращает профиль текущего пользователя.
type Service interface {
	Profile(ctx context.Context, id models.Identity) (*models.User, error)
}

// Handler обрабатывает GET /user.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Профиль пользователя
// @Description Возвращает тариф и остаток генераций текущего пользователя.
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /user [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.profile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	user, err := h.service.Profile(r.Context(), identity)
	if errors.Is(err, models.ErrUserNotFound) {
		log.Warn("session user has no record", sl.Email(identity.Email))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to load profile", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, Response{User: User{
		ID:              user.UUID,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Email:           user.Email,
		PlanType:        user.PlanType,
		GenerationsLeft: user.GenerationsLeft,
	}})
}
