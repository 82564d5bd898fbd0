// Package generation проводит запрос через проверку квоты, вызов модели и
// списание генерации.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/sketch-logo/internal/lib/sl"
	"github.com/magabrotheeeer/sketch-logo/internal/metrics"
	"github.com/magabrotheeeer/sketch-logo/internal/models"
)

// Ledger проверяет и списывает генерации.
type Ledger interface {
	CheckAndReserve(ctx context.Context, id models.Identity) (models.Entitlement, error)
	CommitDecrement(ctx context.Context, id models.Identity) (int, error)
}

// Generator превращает эскиз в логотип.
type Generator interface {
	Generate(ctx context.Context, sketch []byte, mimeType string) (string, error)
}

// Reporter получает события о несохранённых списаниях.
type Reporter interface {
	Report(ctx context.Context, f models.CommitFailure) error
}

// Metrics учитывает исходы генераций.
type Metrics interface {
	Generation(result string)
	ObserveGeneration(d time.Duration)
}

// Service реализует генерацию логотипа с учётом квоты.
type Service struct {
	ledger    Ledger
	generator Generator
	reporter  Reporter
	metrics   Metrics
	log       *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// commitTimeout ограничивает обращения к учёту: проверку остатка, списание
// и отчёт о сбое списания. Отсчёт идёт
// после ответа модели, поэтому исчерпанный таймаут генерации на них не влияет.
const commitTimeout = 10 * time.Second

// New создает новый экземпляр Service. timeout ограничивает вызов модели;
// 0 означает без ограничения.
func New(ledger Ledger, generator Generator, reporter Reporter, m Metrics, log *slog.Logger, timeout time.Duration) *Service {
	return &Service{
		ledger:    ledger,
		generator: generator,
		reporter:  reporter,
		metrics:   m,
		log:       log,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Generate проверяет остаток, вызывает модель и списывает генерацию.
//
// Отключение клиента не прерывает генерацию: работа идёт на контексте без
// отмены. Вызов модели ограничен таймаутом сервиса, проверка и списание
// имеют собственные бюджеты. Списание выполняется только после успешной
// генерации.
func (s *Service) Generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	const op = "generation.Generate"
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("request_id", req.RequestID),
		sl.Email(req.Identity.Email),
	)

	ctx = context.WithoutCancel(ctx)

	checkCtx, cancelCheck := context.WithTimeout(ctx, commitTimeout)
	ent, err := s.ledger.CheckAndReserve(checkCtx, req.Identity)
	cancelCheck()
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.metrics.Generation(metrics.ResultNotFound)
		}
		return models.GenerationResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ent.Allowed {
		log.Info("plan limit reached", slog.String("plan", ent.Plan.String()))
		s.metrics.Generation(metrics.ResultQuota)
		return models.GenerationResult{}, fmt.Errorf("%s: %w", op, models.ErrQuotaExhausted)
	}

	started := s.now()
	logo, err := s.generate(ctx, req)
	s.metrics.ObserveGeneration(s.now().Sub(started))
	if err != nil {
		log.Error("image generation failed", sl.Err(err))
		s.metrics.Generation(metrics.ResultFailed)
		return models.GenerationResult{}, fmt.Errorf("%s: %w: %w", op, models.ErrGenerationFailed, err)
	}

	// Стоимость генерации уже понесена: списание получает собственный бюджет.
	commitCtx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	remaining, err := s.ledger.CommitDecrement(commitCtx, req.Identity)
	switch {
	case err == nil:
		s.metrics.Generation(metrics.ResultSuccess)
		log.Info("logo generated", slog.Int("generations_left", remaining))
		return models.GenerationResult{Logo: logo, GenerationsLeft: remaining}, nil

	case errors.Is(err, models.ErrQuotaExhausted):
		log.Warn("quota exhausted by a concurrent request, logo discarded")
		s.metrics.Generation(metrics.ResultLostRace)
		return models.GenerationResult{}, fmt.Errorf("%s: %w", op, err)

	case errors.Is(err, models.ErrUserNotFound):
		s.metrics.Generation(metrics.ResultNotFound)
		return models.GenerationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Error("failed to commit generation, delivering logo anyway", sl.Err(err))
	s.metrics.Generation(metrics.ResultCommitFailed)
	failure := models.CommitFailure{
		RequestID:  req.RequestID,
		UserEmail:  req.Identity.Email,
		OccurredAt: s.now().UTC(),
		Error:      err.Error(),
	}
	if rerr := s.reporter.Report(commitCtx, failure); rerr != nil {
		log.Error("failed to report commit failure", sl.Err(rerr))
	}

	return models.GenerationResult{
		Logo:            logo,
		GenerationsLeft: ent.Remaining,
		CommitFailed:    true,
	}, nil
}

func (s *Service) generate(ctx context.Context, req models.GenerationRequest) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.generator.Generate(ctx, req.Sketch, req.MIMEType)
}
