package service

import (
	"context"
	"math"
	"runtime"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/smallbiznis/opinionetl/internal/sentiment/domain"
	"github.com/smallbiznis/opinionetl/internal/sentiment/lexicon"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	lexiconWeight = 0.7
	rulesWeight   = 0.3
)

type Params struct {
	fx.In

	Log *zap.Logger
}

type Service struct {
	log         *zap.Logger
	vader       *govader.SentimentIntensityAnalyzer
	concurrency int
}

func New(p Params) *Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:         log.Named("sentiment.service"),
		vader:       govader.NewSentimentIntensityAnalyzer(),
		concurrency: runtime.NumCPU(),
	}
}

// Analyze blends the Spanish keyword score with the VADER compound score. It never fails.
func (s *Service) Analyze(text string) domain.Score {
	if strings.TrimSpace(text) == "" {
		return domain.NeutralScore()
	}

	keyword := keywordScore(strings.ToLower(text))
	rules := s.rulesScore(text)
	c := keyword*lexiconWeight + rules*rulesWeight

	score := domain.NewScore(c, math.Max(0, c), math.Max(0, -c), 1-math.Abs(c))
	if ce := s.log.Check(zap.DebugLevel, "sentiment.analyzed"); ce != nil {
		ce.Write(
			zap.Int("text_length", len(text)),
			zap.Float64("keyword_score", keyword),
			zap.Float64("rules_score", rules),
			zap.Float64("score", score.Value()),
		)
	}
	return score
}

// AnalyzeBatch scores texts on a bounded pool. Results keep input order.
func (s *Service) AnalyzeBatch(ctx context.Context, texts []string) ([]domain.Score, error) {
	scores := make([]domain.Score, len(texts))
	if len(texts) == 0 {
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, text := range texts {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = s.Analyze(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scores, nil
}

// rulesScore is the VADER compound score in [-1, 1].
func (s *Service) rulesScore(text string) float64 {
	return s.vader.PolarityScores(text).Compound
}

// keywordScore averages Spanish lexicon hits. A negation word flips the next hit only.
func keywordScore(lower string) float64 {
	var (
		total    float64
		found    int
		modifier = 1.0
	)

	words := strings.Fields(lower)
	for i := 0; i < len(words); i++ {
		word := trimToken(words[i])

		if lexicon.IsNegation(word) {
			modifier = -1
			continue
		}

		weight, ok := lexicon.Positive(word)
		if !ok {
			weight, ok = lexicon.Negative(word)
		}
		if !ok && i < len(words)-1 {
			phrase := word + " " + trimToken(words[i+1])
			weight, ok = lexicon.Positive(phrase)
			if !ok {
				weight, ok = lexicon.Negative(phrase)
			}
			if ok {
				i++
			}
		}
		if !ok {
			continue
		}

		total += weight * modifier
		found++
		modifier = 1
	}

	if found == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, total/float64(found)))
}

func trimToken(word string) string {
	return strings.Trim(word, ",.!?;:")
}

var _ domain.Analyzer = (*Service)(nil)
