package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/opforge/opforge/pkg/operations"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the Prometheus collectors for operations and worker queues.
// A disabled Metrics accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	operationsStarted  prometheus.Counter
	operationsFinished *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	errorsByClass      *prometheus.CounterVec

	queueItemsSubmitted *prometheus.CounterVec
	queueItemsFinished  *prometheus.CounterVec
	queueItemDuration   *prometheus.HistogramVec
	poolThreads         prometheus.Gauge

	projectsLoaded prometheus.Gauge

	registry *prometheus.Registry

	mu     sync.Mutex
	server *http.Server
}

var _ operations.PoolObserver = (*Metrics)(nil)

// NewMetrics creates the collectors on a private registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	ns := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),

		operationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "operations_started_total",
			Help:      "Total number of operations started",
		}),
		operationsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "operations_finished_total",
			Help:      "Total number of operations finished",
		}, []string{"status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   buckets,
		}, []string{"operation"}),
		errorsByClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "errors_by_class_total",
			Help:      "Total number of operation and worker errors by class",
		}, []string{"class", "code"}),

		queueItemsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "queue_items_submitted_total",
			Help:      "Total number of items submitted to worker queues",
		}, []string{"queue"}),
		queueItemsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "queue_items_finished_total",
			Help:      "Total number of queue items processed",
		}, []string{"queue", "status"}),
		queueItemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "queue_item_duration_seconds",
			Help:      "Time a worker spent on one queue item",
			Buckets:   buckets,
		}, []string{"queue"}),
		poolThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "pool_threads",
			Help:      "Degree of parallelism of the worker pool",
		}),

		projectsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "projects_loaded",
			Help:      "Number of projects in the most recently loaded build",
		}),
	}

	m.registry.MustRegister(
		m.operationsStarted,
		m.operationsFinished,
		m.operationDuration,
		m.errorsByClass,
		m.queueItemsSubmitted,
		m.queueItemsFinished,
		m.queueItemDuration,
		m.poolThreads,
		m.projectsLoaded,
	)

	return m, nil
}

// Registry returns the registry holding every collector, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOperationStarted counts a started operation.
func (m *Metrics) RecordOperationStarted() {
	if m.registry == nil {
		return
	}
	m.operationsStarted.Inc()
}

// RecordOperationFinished counts a finished operation and observes its duration.
func (m *Metrics) RecordOperationFinished(displayName string, outcome operations.Outcome) {
	if m.registry == nil {
		return
	}
	m.operationsFinished.WithLabelValues(status(outcome.Err)).Inc()
	m.operationDuration.WithLabelValues(displayName).Observe(outcome.Duration().Seconds())
	m.recordError(outcome.Err)
}

// ItemSubmitted implements operations.PoolObserver.
func (m *Metrics) ItemSubmitted(queue string) {
	if m.registry == nil {
		return
	}
	m.queueItemsSubmitted.WithLabelValues(queue).Inc()
}

// ItemFinished implements operations.PoolObserver.
func (m *Metrics) ItemFinished(queue string, duration time.Duration, err error) {
	if m.registry == nil {
		return
	}
	m.queueItemsFinished.WithLabelValues(queue, status(err)).Inc()
	m.queueItemDuration.WithLabelValues(queue).Observe(duration.Seconds())
	m.recordError(err)
}

// SetPoolThreads records the parallelism of the worker pool.
func (m *Metrics) SetPoolThreads(threads int) {
	if m.registry == nil {
		return
	}
	m.poolThreads.Set(float64(threads))
}

// SetProjectsLoaded records the size of the loaded project tree.
func (m *Metrics) SetProjectsLoaded(count int) {
	if m.registry == nil {
		return
	}
	m.projectsLoaded.Set(float64(count))
}

func (m *Metrics) recordError(err error) {
	if err == nil {
		return
	}
	var oe *operations.OperationError
	if errors.As(err, &oe) {
		m.errorsByClass.WithLabelValues(string(oe.Class), oe.Code).Inc()
		return
	}
	m.errorsByClass.WithLabelValues("unclassified", "").Inc()
}

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartServer serves the metrics endpoint on addr, or on the configured
// address when addr is empty. It returns the address actually bound.
func (m *Metrics) StartServer(addr string, logger zerolog.Logger) (string, error) {
	if m.registry == nil {
		return "", nil
	}
	if addr == "" {
		addr = m.config.ListenAddress
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	logger.Info().Str("address", listener.Addr().String()).Str("path", path).Msg("Metrics server started")
	return listener.Addr().String(), nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
