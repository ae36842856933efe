// Package api extracts social media comments from the remote HTTP feed.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/extract/domain"
	obslogger "github.com/smallbiznis/opinionetl/internal/observability/logger"
	"github.com/smallbiznis/opinionetl/internal/observability/tracing"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Sources *config.SourcesHolder
	Client  *http.Client `optional:"true"`
}

type Extractor struct {
	log     *zap.Logger
	sources *config.SourcesHolder
	client  *http.Client
}

func New(p Params) *Extractor {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	client := p.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Extractor{
		log:     log.Named("extract.api"),
		sources: p.Sources,
		client:  client,
	}
}

func (e *Extractor) SourceName() string           { return domain.SourceAPI }
func (e *Extractor) Origin() opinion.SourceOrigin { return opinion.OriginAPI }

type commentsResponse struct {
	Data  []comment `json:"data"`
	Total int       `json:"total"`
}

type comment struct {
	ID         flexString `json:"id"`
	UserID     flexString `json:"user_id"`
	UserHandle string     `json:"user_handle"`
	ProductID  flexString `json:"product_id"`
	Text       string     `json:"text"`
	Platform   string     `json:"platform"`
	CreatedAt  string     `json:"created_at"`
	Likes      *int       `json:"likes"`
	Shares     *int       `json:"shares"`
}

// flexString accepts ids sent either as JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Extract issues a single GET with no retry. Any non-2xx status fails the source.
func (e *Extractor) Extract(ctx context.Context) ([]opinion.RawOpinion, error) {
	cfg := e.sources.Get().API
	log := obslogger.WithContext(ctx, e.log)
	if !cfg.Enabled {
		log.Info("extract.source.disabled")
		return nil, nil
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, domain.NewExtractionError(e.SourceName(), fmt.Errorf("%w: etl.api.baseUrl", domain.ErrSourceNotConfigured))
	}

	requestURL, err := buildURL(cfg)
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}

	ctx, span := tracing.StartSpan(ctx, "extract.api", attribute.String("http.url", requestURL))
	defer span.End()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	log.Info("extract.api.request", zap.String("url", requestURL))
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewExtractionError(e.SourceName(), &domain.HTTPError{
			Method:     req.Method,
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Body:       body,
		})
	}

	payload, err := decodeComments(body)
	if err != nil {
		return nil, domain.NewExtractionError(e.SourceName(), fmt.Errorf("decode comments: %w", err))
	}

	out := make([]opinion.RawOpinion, 0, len(payload.Data))
	for _, c := range payload.Data {
		out = append(out, mapComment(c))
	}

	span.SetAttributes(attribute.Int("etl.records", len(out)))
	log.Info("extract.api.done", zap.Int("records", len(out)), zap.Int("total", payload.Total))
	return out, nil
}

// decodeComments accepts either {"data": [...]} or a bare array of comments.
func decodeComments(body []byte) (commentsResponse, error) {
	var payload commentsResponse
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &payload.Data); err != nil {
			return commentsResponse{}, err
		}
		payload.Total = len(payload.Data)
		return payload, nil
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return commentsResponse{}, err
	}
	return payload, nil
}

func buildURL(cfg config.APISourceConfig) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	u, err := url.Parse(base + endpoint)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("api url must be absolute")
	}
	if len(cfg.QueryParameters) > 0 {
		q := u.Query()
		for k, v := range cfg.QueryParameters {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func mapComment(c comment) opinion.RawOpinion {
	meta := map[string]string{
		opinion.MetaLikes:      countValue(c.Likes),
		opinion.MetaShares:     countValue(c.Shares),
		opinion.MetaUserHandle: c.UserHandle,
	}
	if platform := strings.TrimSpace(c.Platform); platform != "" {
		meta[opinion.MetaPlatform] = platform
	}
	return opinion.RawOpinion{
		IDOriginal:   string(c.ID),
		ClientID:     string(c.UserID),
		ClientName:   c.UserHandle,
		ProductID:    string(c.ProductID),
		Date:         c.CreatedAt,
		Comment:      c.Text,
		SourceOrigin: opinion.OriginAPI,
		Metadata:     meta,
	}
}

func countValue(v *int) string {
	if v == nil {
		return "0"
	}
	return strconv.Itoa(*v)
}

var _ domain.Extractor = (*Extractor)(nil)
