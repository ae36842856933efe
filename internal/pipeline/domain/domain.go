// Package domain defines the run results and summary of one pipeline execution.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	sentimentdomain "github.com/smallbiznis/opinionetl/internal/sentiment/domain"
	"gorm.io/gorm"
)

var (
	ErrRunNotFound   = errors.New("run_not_found")
	ErrInvalidRunID  = errors.New("invalid_run_id")
	ErrPipelinePanic = errors.New("pipeline_panic")
)

// State is the lifecycle position of the orchestrator.
type State int32

const (
	StateIdle State = iota
	StateExtracting
	StateTransforming
	StateLoading
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateExtracting:
		return "Extracting"
	case StateTransforming:
		return "Transforming"
	case StateLoading:
		return "Loading"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for candidate := StateIdle; candidate <= StateFailed; candidate++ {
		if strings.EqualFold(candidate.String(), string(text)) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline state %q", string(text))
}

// ExtractionResult reports one extractor of a run.
type ExtractionResult struct {
	SourceName       string               `json:"source_name"`
	Origin           opinion.SourceOrigin `json:"origin"`
	RecordsExtracted int                  `json:"records_extracted"`
	Start            time.Time            `json:"start"`
	End              time.Time            `json:"end"`
	Success          bool                 `json:"success"`
	Error            string               `json:"error,omitempty"`
}

func (r ExtractionResult) Duration() time.Duration { return r.End.Sub(r.Start) }

type TransformationResult struct {
	RecordsTransformed int       `json:"records_transformed"`
	RecordsSkipped     int       `json:"records_skipped"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Success            bool      `json:"success"`
	Errors             []string  `json:"errors,omitempty"`
}

func (r TransformationResult) Duration() time.Duration { return r.End.Sub(r.Start) }

type LoadingResult struct {
	RecordsLoaded    int       `json:"records_loaded"`
	RecordsFailed    int       `json:"records_failed"`
	RecordsDuplicate int       `json:"records_duplicate"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Success          bool      `json:"success"`
	Errors           []string  `json:"errors,omitempty"`
}

func (r LoadingResult) Duration() time.Duration { return r.End.Sub(r.Start) }

// ExecutionSummary is the full outcome of one Execute call.
type ExecutionSummary struct {
	RunID                 string                     `json:"run_id"`
	CorrelationID         string                     `json:"correlation_id"`
	Start                 time.Time                  `json:"start"`
	End                   time.Time                  `json:"end"`
	Duration              time.Duration              `json:"duration"`
	Extractions           []ExtractionResult         `json:"extractions"`
	Transformation        *TransformationResult      `json:"transformation,omitempty"`
	Loading               *LoadingResult             `json:"loading,omitempty"`
	Statistics            sentimentdomain.Statistics `json:"statistics"`
	TotalRecordsProcessed int                        `json:"total_records_processed"`
	Success               bool                       `json:"success"`
	State                 State                      `json:"state"`
	Error                 string                     `json:"error,omitempty"`
}

// RecordsExtracted sums the records of every extractor.
func (s ExecutionSummary) RecordsExtracted() int {
	total := 0
	for _, ex := range s.Extractions {
		total += ex.RecordsExtracted
	}
	return total
}

// Extraction returns the result of the first extractor with the given origin.
func (s ExecutionSummary) Extraction(origin opinion.SourceOrigin) (ExtractionResult, bool) {
	for _, ex := range s.Extractions {
		if ex.Origin == origin {
			return ex, true
		}
	}
	return ExtractionResult{}, false
}

// Status is SUCCESS or FAILED.
func (s ExecutionSummary) Status() string {
	if s.Success {
		return RunStatusSuccess
	}
	return RunStatusFailed
}

const reportTimeLayout = "2006-01-02 15:04:05"

var reportRule = strings.Repeat("=", 40)

// Report renders the plain-text execution summary logged after every run.
func (s ExecutionSummary) Report() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(reportRule)
	line("ETL EXECUTION SUMMARY")
	line(reportRule)
	line("Start Time: %s", s.Start.Format(reportTimeLayout))
	line("End Time: %s", s.End.Format(reportTimeLayout))
	line("Total Duration: %s", FormatDuration(s.Duration))
	line("")
	line("EXTRACTION:")
	for _, origin := range []opinion.SourceOrigin{opinion.OriginCSV, opinion.OriginDatabase, opinion.OriginAPI} {
		ex, ok := s.Extraction(origin)
		if !ok {
			line("  %s: 0 records (%s)", origin, FormatDuration(0))
			continue
		}
		line("  %s: %d records (%s)", origin, ex.RecordsExtracted, FormatDuration(ex.Duration()))
	}
	line("")
	if s.Transformation != nil {
		line("TRANSFORMATION:")
		line("  Transformed: %d", s.Transformation.RecordsTransformed)
		line("  Skipped: %d", s.Transformation.RecordsSkipped)
		line("  Duration: %s", FormatDuration(s.Transformation.Duration()))
		line("")
	}
	if s.Loading != nil {
		line("LOADING:")
		line("  Loaded: %d", s.Loading.RecordsLoaded)
		line("  Failed: %d", s.Loading.RecordsFailed)
		if s.Loading.RecordsDuplicate > 0 {
			line("  Duplicate: %d", s.Loading.RecordsDuplicate)
		}
		line("  Duration: %s", FormatDuration(s.Loading.Duration()))
		line("")
	}
	if s.Statistics.TotalAnalyzed > 0 {
		line("SENTIMENT:")
		for _, row := range strings.Split(s.Statistics.String(), "\n") {
			if strings.TrimSpace(row) != "" {
				line("  %s", strings.TrimSpace(row))
			}
		}
		line("")
	}
	line("Total Records Processed: %d", s.TotalRecordsProcessed)
	line("Status: %s", s.Status())
	b.WriteString(reportRule)
	return b.String()
}

// FormatDuration renders hh:mm:ss.mmm.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second
	d -= sec * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, sec, d/time.Millisecond)
}

// RunRepository persists run history rows.
type RunRepository interface {
	Insert(ctx context.Context, db *gorm.DB, run *Run) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Run, error)
	ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]Run, error)
}
