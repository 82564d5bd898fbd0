// Package generate реализует HTTP-обработчик генерации логотипа по эскизу.
//
// Эскиз принимается строкой base64 или data URL, декодируется и передаётся
// сервису генерации. Ответ содержит логотип и актуальный остаток генераций.
package generate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/sketch-logo/internal/http/middlewarectx"
	"github.com/magabrotheeeer/sketch-logo/internal/http/response"
	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// MaxBodyBytes ограничивает размер тела запроса.
const MaxBodyBytes = 10 << 20

// Request тело запроса генерации.
type Request struct {
	Sketch string `json:"sketch" validate:"required"`
}

// Response тело успешного ответа.
type Response struct {
	Logo            string `json:"logo"`
	GenerationsLeft int    `json:"generationsLeft"`
}

// Service описывает сервис генерации.
type Service interface {
	Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error)
}

// Handler обрабатывает POST /generate.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Генерация логотипа
// @Description Превращает эскиз в логотип и списывает одну генерацию тарифа.
// @Tags Generation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Эскиз в base64 или data URL"
// @Success 200 {object} Response "Логотип и остаток генераций"
// @Failure 400 {object} response.ErrorResponse "Эскиз отсутствует или не декодируется"
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Failure 403 {object} response.ErrorResponse "Лимит тарифа исчерпан"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка генерации"
// @Router /generate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.generate"
	requestID := middleware.GetReqID(r.Context())
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", requestID),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		log.Error("identity missing in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("sketch missing", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("no sketch provided"))
		return
	}

	sketch, mimeType, err := DecodeSketch(req.Sketch)
	if err != nil {
		log.Info("failed to decode sketch", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("sketch is not a valid base64 image"))
		return
	}

	res, err := h.service.Generate(r.Context(), models.GenerationRequest{
		Identity:  identity,
		Sketch:    sketch,
		MIMEType:  mimeType,
		RequestID: requestID,
	})
	switch {
	case err == nil:
	case errors.Is(err, models.ErrQuotaExhausted):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.PlanLimit("generation limit reached for your plan"))
		return
	case errors.Is(err, models.ErrUserNotFound):
		log.Warn("session user has no record", sl.Email(identity.Email))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	case errors.Is(err, models.ErrGenerationFailed):
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("AI generation failed"))
		return
	default:
		log.Error("generation request failed", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	if res.CommitFailed {
		log.Warn("logo delivered without persisted decrement")
	}
	render.JSON(w, r, Response{Logo: res.Logo, GenerationsLeft: res.GenerationsLeft})
}

// DecodeSketch принимает base64 или data URL и возвращает байты изображения
// и MIME-тип (image/png по умолчанию).
func DecodeSketch(s string) ([]byte, string, error) {
	const op = "generate.DecodeSketch"
	mimeType := "image/png"
	payload := strings.TrimSpace(s)

	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", fmt.Errorf("%s: malformed data url", op)
		}
		mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
		if !isBase64 {
			return nil, "", fmt.Errorf("%s: data url is not base64", op)
		}
		if mediaType != "" {
			if !strings.HasPrefix(mediaType, "image/") {
				return nil, "", fmt.Errorf("%s: unsupported media type %q", op, mediaType)
			}
			mimeType = mediaType
		}
		payload = data
	}

	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		img, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if len(img) == 0 {
		return nil, "", fmt.Errorf("%s: empty image", op)
	}
	return img, mimeType, nil
}
