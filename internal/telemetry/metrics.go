// Package telemetry counts what one adapter run did and, when a Pushgateway
// is configured, pushes it there before the process exits.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Metrics struct {
	registry *prometheus.Registry

	Submissions   *prometheus.CounterVec
	StatusQueries prometheus.Counter
	StatusResults *prometheus.CounterVec
	LastRun       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry:      prometheus.NewRegistry(),
		Submissions:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lsf_submissions_total", Help: "bsub submissions by result"}, []string{"result"}),
		StatusQueries: prometheus.NewCounter(prometheus.CounterOpts{Name: "lsf_status_queries_total", Help: "bjobs invocations"}),
		StatusResults: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "lsf_status_results_total", Help: "Final states reported to the workflow engine"}, []string{"state"}),
		LastRun:       prometheus.NewGauge(prometheus.GaugeOpts{Name: "lsf_adapter_last_run_timestamp_seconds", Help: "Unix time of the last adapter run"}),
	}
	m.registry.MustRegister(m.Submissions, m.StatusQueries, m.StatusResults, m.LastRun)
	return m
}

// Push adds this run's metrics to the Pushgateway under job. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	m.LastRun.Set(float64(time.Now().Unix()))
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return push.New(url, job).Gatherer(m.registry).AddContext(ctx)
}
