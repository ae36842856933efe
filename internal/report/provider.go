// Package report renders persisted pipeline runs as documents.
package report

import (
	"context"
	"io"

	"github.com/smallbiznis/opinionetl/internal/pipeline/domain"
)

type Provider interface {
	GenerateRunSummary(ctx context.Context, summary domain.ExecutionSummary) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateRunSummary(ctx context.Context, summary domain.ExecutionSummary) (io.Reader, error) {
	return nil, nil
}
