package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Metrics aggregates the poller's prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	cycles           prometheus.Counter
	fetchFailures    prometheus.Counter
	samplesRecorded  prometheus.Counter
	alertsDispatched prometheus.Counter
	dispatchFailures prometheus.Counter
	lastPrice        prometheus.Gauge
}

// New constructs a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldwatcher_cycles_total",
			Help: "Poll cycles started.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldwatcher_fetch_failures_total",
			Help: "Poll cycles aborted because the price source failed.",
		}),
		samplesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldwatcher_samples_recorded_total",
			Help: "Price samples persisted.",
		}),
		alertsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldwatcher_alerts_dispatched_total",
			Help: "Alert notifications delivered.",
		}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldwatcher_dispatch_failures_total",
			Help: "Alert notifications that failed to deliver.",
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldwatcher_last_price",
			Help: "Most recently sampled price.",
		}),
	}
	reg.MustRegister(m.cycles, m.fetchFailures, m.samplesRecorded, m.alertsDispatched, m.dispatchFailures, m.lastPrice)
	return m
}

// CycleStarted counts one poll cycle.
func (m *Metrics) CycleStarted() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

// FetchFailed counts an aborted fetch.
func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

// SampleRecorded counts a persisted sample and updates the last-price gauge.
func (m *Metrics) SampleRecorded(price decimal.Decimal) {
	if m == nil {
		return
	}
	m.samplesRecorded.Inc()
	m.lastPrice.Set(price.InexactFloat64())
}

// AlertDispatched counts a delivered notification.
func (m *Metrics) AlertDispatched() {
	if m == nil {
		return
	}
	m.alertsDispatched.Inc()
}

// DispatchFailed counts a failed notification.
func (m *Metrics) DispatchFailed() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}

// Handler exposes the registry in prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs a metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
