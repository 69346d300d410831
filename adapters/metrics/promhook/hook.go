// Package promhook emits export lifecycle metrics to prometheus.
package promhook

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-registration-export/export"
)

// Hook implements export.MetricsHook over a prometheus registerer.
type Hook struct {
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	records   *prometheus.HistogramVec
	bytes     *prometheus.HistogramVec
	registry  prometheus.GaugeFunc
}

// New registers the export metric set. The statsFn feeds the registry-size
// gauge; pass nil to skip it.
func New(reg prometheus.Registerer, statsFn func() export.RegistryStats) (*Hook, error) {
	h := &Hook{
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "export_jobs_completed_total",
			Help: "Completed export jobs.",
		}, []string{"export_type", "template", "strategy"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "export_jobs_failed_total",
			Help: "Failed export jobs by error kind.",
		}, []string{"export_type", "error_kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "export_job_duration_seconds",
			Help:    "End-to-end export job duration.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"export_type", "strategy"}),
		records: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "export_job_records",
			Help:    "Records per export job.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}, []string{"export_type"}),
		bytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "export_job_bytes",
			Help:    "Artifact bytes per export job.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"export_type"}),
	}

	collectors := []prometheus.Collector{h.completed, h.failed, h.duration, h.records, h.bytes}
	if statsFn != nil {
		h.registry = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "export_registry_bytes",
			Help: "Total artifact bytes held in the export registry.",
		}, func() float64 {
			return float64(statsFn().Bytes)
		})
		collectors = append(collectors, h.registry)
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Emit records one lifecycle event. Unknown event names are ignored.
func (h *Hook) Emit(_ context.Context, evt export.MetricsEvent) error {
	switch evt.Name {
	case "export_completed":
		h.completed.WithLabelValues(string(evt.ExportType), evt.Template, string(evt.Strategy)).Inc()
		h.duration.WithLabelValues(string(evt.ExportType), string(evt.Strategy)).Observe(evt.Duration.Seconds())
		h.records.WithLabelValues(string(evt.ExportType)).Observe(float64(evt.Records))
		h.bytes.WithLabelValues(string(evt.ExportType)).Observe(float64(evt.Bytes))
	case "export_failed":
		h.failed.WithLabelValues(string(evt.ExportType), string(evt.ErrorKind)).Inc()
	}
	return nil
}
