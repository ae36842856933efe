package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/opinionetl/internal/clock"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	sentimentdomain "github.com/smallbiznis/opinionetl/internal/sentiment/domain"
	"github.com/smallbiznis/opinionetl/internal/transform/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Analyzer sentimentdomain.Analyzer
	Clock    clock.Clock `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	analyzer sentimentdomain.Analyzer
	clock    clock.Clock
}

func New(p Params) domain.Transformer {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		log:      log.Named("transform.service"),
		analyzer: p.Analyzer,
		clock:    clk,
	}
}

func (s *Service) Transform(ctx context.Context, raw opinion.RawOpinion) (opinion.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return opinion.Opinion{}, err
	}
	return s.transform(raw, nil)
}

// TransformBatch scores every comment that needs the classifier up front, then transforms record by record.
// The error is non-nil only when ctx ends; the partial result is still returned.
func (s *Service) TransformBatch(ctx context.Context, raws []opinion.RawOpinion) (domain.BatchResult, error) {
	result := domain.BatchResult{Opinions: make([]opinion.Opinion, 0, len(raws))}

	var (
		texts   []string
		indexes []int
	)
	for i, raw := range raws {
		if needsClassifier(raw) {
			indexes = append(indexes, i)
			texts = append(texts, CleanComment(raw.Comment))
		}
	}
	scores := make(map[int]sentimentdomain.Score, len(indexes))
	if len(texts) > 0 {
		batch, err := s.analyzer.AnalyzeBatch(ctx, texts)
		if err != nil {
			return result, err
		}
		for j, idx := range indexes {
			scores[idx] = batch[j]
		}
	}

	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var score *sentimentdomain.Score
		if sc, ok := scores[i]; ok {
			score = &sc
		}
		op, err := s.transform(raw, score)
		if err != nil {
			failure := domain.RecordFailure{IDOriginal: raw.IDOriginal, SourceOrigin: raw.SourceOrigin, Err: err}
			result.Failures = append(result.Failures, failure)
			s.log.Warn("transform.record.skipped",
				zap.String("source_origin", string(raw.SourceOrigin)),
				zap.String("id_original", raw.IDOriginal),
				zap.Error(err),
			)
			continue
		}
		result.Opinions = append(result.Opinions, op)
	}
	return result, nil
}

func (s *Service) transform(raw opinion.RawOpinion, score *sentimentdomain.Score) (opinion.Opinion, error) {
	comment := CleanComment(raw.Comment)
	op := opinion.Opinion{
		IDOriginal:      strings.TrimSpace(raw.IDOriginal),
		SourceOrigin:    raw.SourceOrigin,
		ClientID:        NormalizeClientID(raw.ClientID),
		ClientName:      strings.TrimSpace(raw.ClientName),
		ClientEmail:     strings.TrimSpace(raw.ClientEmail),
		ProductID:       NormalizeProductID(raw.ProductID),
		ProductName:     strings.TrimSpace(raw.ProductName),
		ProductCategory: strings.TrimSpace(raw.ProductCategory),
		Date:            s.parseDate(raw),
		Comment:         comment,
		OriginalChannel: Channel(raw),
	}

	switch {
	case strings.TrimSpace(raw.Classification) != "":
		op.Classification = NormalizeClassification(raw.Classification)
		if rating, ok := parseRating(raw.Rating); ok {
			op.SatisfactionScore = round2(rating)
		} else {
			op.SatisfactionScore = scoreFromClassification(op.Classification)
		}
	case strings.TrimSpace(raw.Rating) != "":
		rating, ok := parseRating(raw.Rating)
		if !ok {
			rating = 3
		}
		op.Classification = classificationFromRating(rating)
		op.SatisfactionScore = round2(rating)
	default:
		var sc sentimentdomain.Score
		switch {
		case score != nil:
			sc = *score
		case comment == "":
			sc = sentimentdomain.NeutralScore()
		default:
			sc = s.analyzer.Analyze(comment)
		}
		op.Classification = sc.Classification()
		op.SatisfactionScore = ScoreFromSentiment(sc.Value())
	}

	if ce := s.log.Check(zap.DebugLevel, "transform.record.done"); ce != nil {
		ce.Write(
			zap.String("client_id", op.ClientID),
			zap.String("product_id", op.ProductID),
			zap.String("classification", string(op.Classification)),
		)
	}
	return op, nil
}

func (s *Service) parseDate(raw opinion.RawOpinion) time.Time {
	if t, ok := ParseDate(raw.Date); ok {
		return t
	}
	if strings.TrimSpace(raw.Date) != "" {
		s.log.Warn("transform.date.unparsed",
			zap.String("source_origin", string(raw.SourceOrigin)),
			zap.String("id_original", raw.IDOriginal),
			zap.String("value", raw.Date),
		)
	}
	return calendarDate(s.clock.Now())
}

func needsClassifier(raw opinion.RawOpinion) bool {
	return strings.TrimSpace(raw.Classification) == "" &&
		strings.TrimSpace(raw.Rating) == "" &&
		CleanComment(raw.Comment) != ""
}
