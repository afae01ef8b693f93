package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Normalization outcome label values.
const (
	OutcomeConverted    = "converted"
	OutcomeAlreadyTyped = "already_typed"
	OutcomeMissing      = "missing"
	OutcomeParseFailed  = "parse_failed"
)

type Registry struct {
	reg             *prometheus.Registry
	WindowsMigrated prometheus.Counter
	WindowsSkipped  prometheus.Counter
	WindowsFailed   prometheus.Counter
	EventsWritten   prometheus.Counter
	Documents       *prometheus.CounterVec
	RunDurationSec  prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	migrated := prometheus.NewCounter(prometheus.CounterOpts{Name: "surveybox_migrate_windows_migrated_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "surveybox_migrate_windows_skipped_total"})
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "surveybox_migrate_windows_failed_total"})
	written := prometheus.NewCounter(prometheus.CounterOpts{Name: "surveybox_migrate_events_written_total"})
	docs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surveybox_normalize_documents_total",
		Help: "Event documents visited by the normalization pass, by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{Name: "surveybox_run_duration_seconds"})

	r.MustRegister(migrated, skipped, failed, written, docs, duration)
	return &Registry{
		reg:             r,
		WindowsMigrated: migrated,
		WindowsSkipped:  skipped,
		WindowsFailed:   failed,
		EventsWritten:   written,
		Documents:       docs,
		RunDurationSec:  duration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Push sends the current values to a Prometheus pushgateway under job.
func (r *Registry) Push(ctx context.Context, url string, job string) error {
	return push.New(url, job).Gatherer(r.reg).PushContext(ctx)
}
