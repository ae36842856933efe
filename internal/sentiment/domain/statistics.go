package domain

import (
	"fmt"

	"github.com/smallbiznis/opinionetl/internal/opinion"
)

// Statistics summarizes the classifications of a batch of opinions.
type Statistics struct {
	TotalAnalyzed int     `json:"total_analyzed"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	Neutral       int     `json:"neutral"`
	AverageScore  float64 `json:"average_score"`
}

// NewStatistics counts classifications and averages the satisfaction score.
func NewStatistics(opinions []opinion.Opinion) Statistics {
	stats := Statistics{TotalAnalyzed: len(opinions)}
	if len(opinions) == 0 {
		return stats
	}

	var total float64
	for _, op := range opinions {
		switch op.Classification {
		case opinion.Positive:
			stats.Positive++
		case opinion.Negative:
			stats.Negative++
		default:
			stats.Neutral++
		}
		total += op.SatisfactionScore
	}
	stats.AverageScore = total / float64(len(opinions))
	return stats
}

func (s Statistics) PositivePercent() float64 { return s.percent(s.Positive) }
func (s Statistics) NegativePercent() float64 { return s.percent(s.Negative) }
func (s Statistics) NeutralPercent() float64  { return s.percent(s.Neutral) }

func (s Statistics) percent(n int) float64 {
	if s.TotalAnalyzed == 0 {
		return 0
	}
	return float64(n) * 100 / float64(s.TotalAnalyzed)
}

func (s Statistics) String() string {
	return fmt.Sprintf("Sentiment Statistics:\n"+
		"  Total Analyzed: %d\n"+
		"  Positivos: %d (%.2f%%)\n"+
		"  Negativos: %d (%.2f%%)\n"+
		"  Neutrales: %d (%.2f%%)\n"+
		"  Promedio Score: %.3f",
		s.TotalAnalyzed,
		s.Positive, s.PositivePercent(),
		s.Negative, s.NegativePercent(),
		s.Neutral, s.NeutralPercent(),
		s.AverageScore,
	)
}
