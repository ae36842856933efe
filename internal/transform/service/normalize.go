package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"github.com/smallbiznis/opinionetl/internal/transform/domain"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
}

// CleanComment trims, collapses whitespace runs and caps the comment length in runes.
func CleanComment(comment string) string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ""
	}
	comment = whitespaceRe.ReplaceAllString(comment, " ")
	if runes := []rune(comment); len(runes) > domain.MaxCommentLength {
		comment = string(runes[:domain.MaxCommentLength])
	}
	return comment
}

// NormalizeClientID upper-cases the id and prefixes bare integers with "C".
// Blank ids get an anonymous CANON id.
func NormalizeClientID(raw string) string {
	id := normalizeID(raw, "C")
	if id == "" {
		return domain.AnonymousClientPrefix + anonymousSuffix()
	}
	return id
}

// NormalizeProductID upper-cases the id and prefixes bare integers with "P".
func NormalizeProductID(raw string) string {
	id := normalizeID(raw, "P")
	if id == "" {
		return domain.UnknownProductID
	}
	return id
}

func normalizeID(raw, prefix string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" || strings.HasPrefix(id, prefix) {
		return id
	}
	if _, err := strconv.ParseInt(id, 10, 32); err == nil {
		return prefix + id
	}
	return id
}

func anonymousSuffix() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:8])
}

// ParseDate tries the known layouts, then a generic parse. ok is false when the value was not understood.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return calendarDate(t), true
		}
	}
	if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
		return calendarDate(t), true
	}
	return time.Time{}, false
}

// calendarDate keeps the calendar day as seen in the value's own zone.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeClassification maps free-form labels onto the canonical ones. Unknown labels are Neutral.
func NormalizeClassification(raw string) opinion.Classification {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positiva", "positive":
		return opinion.Positive
	case "negativa", "negative":
		return opinion.Negative
	default:
		return opinion.Neutral
	}
}

func parseRating(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return clampScore(v), true
}

func scoreFromClassification(c opinion.Classification) float64 {
	switch c {
	case opinion.Positive:
		return 4.5
	case opinion.Negative:
		return 1.5
	default:
		return 3
	}
}

func classificationFromRating(rating float64) opinion.Classification {
	switch {
	case rating >= 4:
		return opinion.Positive
	case rating <= 2:
		return opinion.Negative
	default:
		return opinion.Neutral
	}
}

// ScoreFromSentiment maps a [-1,1] sentiment onto the [1,5] satisfaction scale.
func ScoreFromSentiment(s float64) float64 {
	return clampScore(round2(((s+1)/2)*4 + 1))
}

func clampScore(v float64) float64 {
	return math.Max(domain.MinSatisfaction, math.Min(domain.MaxSatisfaction, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Channel returns the original channel label for the record's origin.
func Channel(raw opinion.RawOpinion) string {
	switch raw.SourceOrigin {
	case opinion.OriginCSV:
		return domain.ChannelSurvey
	case opinion.OriginDatabase:
		return domain.ChannelWeb
	case opinion.OriginAPI:
		if platform := strings.TrimSpace(raw.Meta(opinion.MetaPlatform)); platform != "" {
			return platform
		}
		return domain.ChannelSocial
	default:
		return domain.ChannelUnknown
	}
}
