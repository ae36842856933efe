// Package domain defines the record transformer contract.
package domain

import (
	"context"
	"fmt"

	"github.com/smallbiznis/opinionetl/internal/opinion"
)

const (
	MaxCommentLength = 5000
	MinSatisfaction  = 1.0
	MaxSatisfaction  = 5.0

	AnonymousClientPrefix = "CANON"
	UnknownProductID      = "P0000"

	ChannelSurvey  = "EncuestaInterna"
	ChannelWeb     = "Web"
	ChannelSocial  = "RedSocial"
	ChannelUnknown = "Desconocido"
)

// Transformer turns raw records into canonical opinions.
type Transformer interface {
	Transform(ctx context.Context, raw opinion.RawOpinion) (opinion.Opinion, error)
	TransformBatch(ctx context.Context, raws []opinion.RawOpinion) (BatchResult, error)
}

// RecordFailure is a raw record that could not be transformed.
type RecordFailure struct {
	IDOriginal   string
	SourceOrigin opinion.SourceOrigin
	Err          error
}

func (f RecordFailure) Error() string {
	return fmt.Sprintf("transform %s record %q: %v", f.SourceOrigin, f.IDOriginal, f.Err)
}

func (f RecordFailure) Unwrap() error { return f.Err }

// BatchResult holds the successful opinions in input order and the skipped records.
type BatchResult struct {
	Opinions []opinion.Opinion
	Failures []RecordFailure
}
