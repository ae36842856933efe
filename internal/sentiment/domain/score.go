// Package domain defines the sentiment value objects.
package domain

import (
	"context"

	"github.com/smallbiznis/opinionetl/internal/opinion"
)

const (
	PositiveThreshold = 0.2
	NegativeThreshold = -0.2
)

// Score is an immutable sentiment measurement. Build it with NewScore.
type Score struct {
	score    float64
	positive float64
	negative float64
	neutral  float64
}

// NewScore clamps score to [-1,1] and the weights to [0,1].
func NewScore(score, positive, negative, neutral float64) Score {
	return Score{
		score:    clamp(score, -1, 1),
		positive: clamp(positive, 0, 1),
		negative: clamp(negative, 0, 1),
		neutral:  clamp(neutral, 0, 1),
	}
}

// NeutralScore is the result for empty text.
func NeutralScore() Score { return NewScore(0, 0, 0, 1) }

func (s Score) Value() float64    { return s.score }
func (s Score) Positive() float64 { return s.positive }
func (s Score) Negative() float64 { return s.negative }
func (s Score) Neutral() float64  { return s.neutral }

// Classification maps the compound score onto the canonical label.
func (s Score) Classification() opinion.Classification {
	switch {
	case s.score >= PositiveThreshold:
		return opinion.Positive
	case s.score <= NegativeThreshold:
		return opinion.Negative
	default:
		return opinion.Neutral
	}
}

// Analyzer scores free text.
type Analyzer interface {
	Analyze(text string) Score
	AnalyzeBatch(ctx context.Context, texts []string) ([]Score, error)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
