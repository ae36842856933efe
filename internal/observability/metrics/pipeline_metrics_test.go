package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) HTTPStatus() int { return e.code }

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "canceled", err: fmt.Errorf("extract: %w", context.Canceled), want: ReasonCanceled},
		{name: "http_status", err: fmt.Errorf("api: %w", statusErr{code: 503}), want: ReasonHTTPStatus},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "foreign_key", err: &pgconn.PgError{Code: "23503"}, want: ReasonForeignKeyViolation},
		{name: "db", err: gorm.ErrInvalidTransaction, want: ReasonDB},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyReason(tc.err))
		})
	}
}

func TestPipelineMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPipelineMetrics(registry, Config{ServiceName: "opinionetl", Environment: "test"})

	m.AddRecords(PhaseLoad, OutcomeLoaded, 4)
	m.AddRecords(PhaseLoad, OutcomeFailed, 0)
	m.AddSourceRecords("CSV Files (Encuestas Internas)", 3)
	m.IncSourceFailure("API REST (Social Media Comments)", context.DeadlineExceeded)
	m.ObserveRun(true, time.Second, time.Unix(1700000000, 0))
	m.ObserveRun(false, time.Second, time.Unix(1700000100, 0))
	m.IncRunSkipped()

	assert.Equal(t, float64(4), testutil.ToFloat64(m.records.WithLabelValues(PhaseLoad, OutcomeLoaded)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.records.WithLabelValues(PhaseLoad, OutcomeFailed)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sourceRecords.WithLabelValues("csv-files-encuestas-internas")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sourceFailures.WithLabelValues("api-rest-social-media-comments", ReasonDeadlineExceeded)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues(RunStatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues(RunStatusFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues(RunStatusSkipped)))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(m.lastSuccess))
}

func TestPipelineSingletonReset(t *testing.T) {
	ResetPipelineMetricsForTest()
	t.Cleanup(ResetPipelineMetricsForTest)

	first := PipelineWithConfig(Config{Environment: "test"})
	assert.Same(t, first, Pipeline())

	ResetPipelineMetricsForTest()
	assert.NotSame(t, first, Pipeline())
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *PipelineMetrics
	assert.NotPanics(t, func() {
		m.AddRecords(PhaseExtract, OutcomeExtracted, 1)
		m.ObservePhase(PhaseExtract, time.Second)
		m.ObserveRun(true, time.Second, time.Now())
		m.IncPhaseFailure(PhaseLoad, errors.New("x"))
	})
	assert.Nil(t, m.Registry())
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "database-web-reviews", SourceLabel("Database (Web Reviews)"))
	assert.Equal(t, "unknown", SourceLabel("  "))
}
