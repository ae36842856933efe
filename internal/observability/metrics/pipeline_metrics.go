package metrics

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Config labels every pipeline series.
type Config struct {
	ServiceName string
	Environment string
}

const (
	PhaseExtract   = "extract"
	PhaseTransform = "transform"
	PhaseLoad      = "load"
)

const (
	OutcomeExtracted   = "extracted"
	OutcomeTransformed = "transformed"
	OutcomeSkipped     = "skipped"
	OutcomeLoaded      = "loaded"
	OutcomeFailed      = "failed"
	OutcomeDuplicate   = "duplicate"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonCanceled             = "canceled"
	ReasonNetwork              = "network"
	ReasonHTTPStatus           = "http_status"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonForeignKeyViolation  = "foreign_key_violation"
	ReasonDB                   = "db"
	ReasonUnknown              = "unknown"
)

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusSkipped = "skipped"
)

// PipelineMetrics captures run, phase and per-source health of the opinion ETL.
type PipelineMetrics struct {
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    prometheus.Observer
	phaseDuration  *prometheus.HistogramVec
	phaseFailures  *prometheus.CounterVec
	records        *prometheus.CounterVec
	sourceRecords  *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
	lockSkipped    prometheus.Counter

	phaseObservers map[string]prometheus.Observer
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics using config labels on first call.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = NewPipelineMetrics(prometheus.NewRegistry(), cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

// NewPipelineMetrics registers the pipeline series on registry.
func NewPipelineMetrics(registry *prometheus.Registry, cfg Config) *PipelineMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "opinionetl"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "opinionetl_pipeline_runs_total",
		Help:        "Pipeline runs by final status.",
		ConstLabels: constLabels,
	}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "opinionetl_pipeline_run_duration_seconds",
		Help:        "End-to-end pipeline run latency.",
		Buckets:     []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	})
	phaseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "opinionetl_pipeline_phase_duration_seconds",
		Help:        "Latency of each pipeline phase.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		ConstLabels: constLabels,
	}, []string{"phase"})
	phaseFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "opinionetl_pipeline_phase_failures_total",
		Help:        "Phase-level failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"phase", "reason"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "opinionetl_pipeline_records_total",
		Help:        "Records handled per phase and outcome.",
		ConstLabels: constLabels,
	}, []string{"phase", "outcome"})
	sourceRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "opinionetl_source_records_total",
		Help:        "Raw opinions extracted per source.",
		ConstLabels: constLabels,
	}, []string{"source"})
	sourceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "opinionetl_source_failures_total",
		Help:        "Source extraction failures by reason.",
		ConstLabels: constLabels,
	}, []string{"source", "reason"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "opinionetl_pipeline_last_success_timestamp_seconds",
		Help:        "Unix time of the last successful pipeline run.",
		ConstLabels: constLabels,
	})
	lockSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "opinionetl_worker_lock_skipped_total",
		Help:        "Worker ticks skipped because another instance held the run lock.",
		ConstLabels: constLabels,
	})

	registry.MustRegister(
		runs,
		runDuration,
		phaseDuration,
		phaseFailures,
		records,
		sourceRecords,
		sourceFailures,
		lastSuccess,
		lockSkipped,
	)

	phaseObservers := map[string]prometheus.Observer{}
	for _, phase := range []string{PhaseExtract, PhaseTransform, PhaseLoad} {
		phaseObservers[phase] = phaseDuration.WithLabelValues(phase)
	}

	return &PipelineMetrics{
		registry:       registry,
		runs:           runs,
		runDuration:    runDuration,
		phaseDuration:  phaseDuration,
		phaseFailures:  phaseFailures,
		records:        records,
		sourceRecords:  sourceRecords,
		sourceFailures: sourceFailures,
		lastSuccess:    lastSuccess,
		lockSkipped:    lockSkipped,
		phaseObservers: phaseObservers,
	}
}

// Registry exposes the gatherer used by the metric pushers.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRun records the final status and duration of one run.
func (m *PipelineMetrics) ObserveRun(success bool, duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	status := RunStatusFailed
	if success {
		status = RunStatusSuccess
		m.lastSuccess.Set(float64(finishedAt.Unix()))
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

// IncRunSkipped counts a tick that did not run because the lock was held elsewhere.
func (m *PipelineMetrics) IncRunSkipped() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(RunStatusSkipped).Inc()
	m.lockSkipped.Inc()
}

func (m *PipelineMetrics) ObservePhase(phase string, duration time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.phaseObservers[phase]; ok {
		observer.Observe(duration.Seconds())
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

func (m *PipelineMetrics) IncPhaseFailure(phase string, err error) {
	if m == nil || err == nil {
		return
	}
	m.phaseFailures.WithLabelValues(phase, ClassifyReason(err)).Inc()
}

func (m *PipelineMetrics) AddRecords(phase, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.records.WithLabelValues(phase, outcome).Add(float64(count))
}

// AddSourceRecords counts extracted records; the source label is the slug of the display name.
func (m *PipelineMetrics) AddSourceRecords(sourceName string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.sourceRecords.WithLabelValues(SourceLabel(sourceName)).Add(float64(count))
}

func (m *PipelineMetrics) IncSourceFailure(sourceName string, err error) {
	if m == nil || err == nil {
		return
	}
	m.sourceFailures.WithLabelValues(SourceLabel(sourceName), ClassifyReason(err)).Inc()
}

// SourceLabel turns "CSV Files (Encuestas Internas)" into "csv-files-encuestas-internas".
func SourceLabel(sourceName string) string {
	label := slug.Make(sourceName)
	if label == "" {
		return "unknown"
	}
	return label
}

// httpStatusError is satisfied by extractor errors that carry an HTTP status.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyReason maps pipeline errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonDeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		return ReasonHTTPStatus
	}
	switch {
	case hasPGCode(err, "55P03"):
		return ReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case hasPGCode(err, "23505") || errors.Is(err, gorm.ErrDuplicatedKey):
		return ReasonUniqueViolation
	case hasPGCode(err, "23503") || errors.Is(err, gorm.ErrForeignKeyViolated):
		return ReasonForeignKeyViolation
	}
	if isDBError(err) {
		return ReasonDB
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonNetwork
	}
	return ReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrUnsupportedDriver) ||
		errors.Is(err, gorm.ErrNotImplemented) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
