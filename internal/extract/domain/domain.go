// Package domain defines the extractor contract shared by every opinion source.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/opinionetl/internal/opinion"
)

const (
	SourceCSV      = "CSV Files (Encuestas Internas)"
	SourceDatabase = "Database (Web Reviews)"
	SourceAPI      = "API REST (Social Media Comments)"
)

var (
	ErrSourceNotConfigured = errors.New("source_not_configured")
	ErrFolderNotFound      = errors.New("folder_not_found")
)

// Extractor reads every available raw opinion from one source in a single attempt.
type Extractor interface {
	SourceName() string
	Origin() opinion.SourceOrigin
	Extract(ctx context.Context) ([]opinion.RawOpinion, error)
}

// ExtractionError reports a source that could not be read at all.
type ExtractionError struct {
	Source string
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

func NewExtractionError(source string, cause error) error {
	return &ExtractionError{Source: source, Cause: cause}
}

// HTTPError carries the status and body of a non-2xx response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 512))
}

// HTTPStatus exposes the status code to failure classifiers.
func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
