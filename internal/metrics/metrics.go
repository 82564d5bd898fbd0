// Package metrics содержит счётчики Prometheus для генераций и учёта квоты.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Результаты генерации для метки result.
const (
	ResultSuccess      = "success"
	ResultQuota        = "quota_exhausted"
	ResultLostRace     = "lost_race"
	ResultFailed       = "generation_failed"
	ResultCommitFailed = "commit_failed"
	ResultNotFound     = "user_not_found"
)

// Metrics объединяет коллекторы сервиса.
type Metrics struct {
	registry *prometheus.Registry

	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram
	commitFailures     prometheus.Counter
	quotaRejections    prometheus.Counter
}

// New создает метрики в отдельном реестре вместе со стандартными коллекторами процесса.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sketchlogo",
				Name:      "generations_total",
				Help:      "Total number of logo generation attempts by result.",
			},
			[]string{"result"},
		),
		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sketchlogo",
				Name:      "generation_duration_seconds",
				Help:      "Duration of calls to the image model.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
			},
		),
		commitFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sketchlogo",
				Name:      "ledger_commit_failures_total",
				Help:      "Generations delivered without a persisted decrement.",
			},
		),
		quotaRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sketchlogo",
				Name:      "quota_rejections_total",
				Help:      "Generation requests rejected because the plan limit was reached.",
			},
		),
	}

	m.registry.MustRegister(
		m.generations,
		m.generationDuration,
		m.commitFailures,
		m.quotaRejections,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Generation учитывает завершённую попытку генерации.
func (m *Metrics) Generation(result string) {
	m.generations.WithLabelValues(result).Inc()
	switch result {
	case ResultQuota, ResultLostRace:
		m.quotaRejections.Inc()
	case ResultCommitFailed:
		m.commitFailures.Inc()
	}
}

// ObserveGeneration записывает длительность вызова модели.
func (m *Metrics) ObserveGeneration(d time.Duration) {
	m.generationDuration.Observe(d.Seconds())
}
