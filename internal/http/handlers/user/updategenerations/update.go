// Package updategenerations реализует HTTP-обработчик POST /user/update-generations.
package updategenerations

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

// Response тело успешного ответа.
type Response struct {
	Success         bool `json:"success"`
	GenerationsLeft int  `json:"generationsLeft"`
}

// Service уменьшает остаток генераций с полом в нуле.
type Service interface {
	Decrement(ctx context.Context, id models.Identity) (int, error)
}

// Handler обрабатывает POST /user/update-generations.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Списание генерации
// @Description Уменьшает остаток генераций текущего пользователя на единицу, не опускаясь ниже нуля.
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /user/update-generations [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.updategenerations"
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

	remaining, err := h.service.Decrement(r.Context(), identity)
	if errors.Is(err, models.ErrUserNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to decrement generations", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("generations decremented", sl.Email(identity.Email), slog.Int("generations_left", remaining))
	render.JSON(w, r, Response{Success: true, GenerationsLeft: remaining})
}
