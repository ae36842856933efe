package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/opinionetl/internal/config"
	"github.com/smallbiznis/opinionetl/internal/extract/domain"
	"github.com/smallbiznis/opinionetl/internal/opinion"
	"github.com/stretchr/testify/assert"
)

func newTestExtractor(baseURL string, mutate func(*config.APISourceConfig)) *Extractor {
	cfg := config.DefaultSourcesConfig()
	cfg.API.BaseURL = baseURL
	if mutate != nil {
		mutate(&cfg.API)
	}
	return New(Params{Sources: config.NewStaticSourcesHolder(cfg)})
}

func TestExtract(t *testing.T) {
	var gotAuth, gotPlatform, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPlatform = r.URL.Query().Get("platform")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"tw-1","user_id":"42","user_handle":"@ana","product_id":"7","text":"me encanta","platform":"Twitter","created_at":"2025-02-10T12:00:00Z","likes":3,"shares":1},
			{"id":99,"user_id":null,"user_handle":"@anon","product_id":"8","text":"meh","created_at":"2025-02-11"}
		],"total":2}`))
	}))
	defer srv.Close()

	ex := newTestExtractor(srv.URL+"/", func(c *config.APISourceConfig) {
		c.APIKey = "secret"
		c.QueryParameters = map[string]string{"platform": "all"}
	})
	assert.Equal(t, domain.SourceAPI, ex.SourceName())
	assert.Equal(t, opinion.OriginAPI, ex.Origin())

	records, err := ex.Extract(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "all", gotPlatform)
	assert.Equal(t, "/api/comments", gotPath)
	assert.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "tw-1", first.IDOriginal)
	assert.Equal(t, "42", first.ClientID)
	assert.Equal(t, "@ana", first.ClientName)
	assert.Equal(t, "Twitter", first.Meta(opinion.MetaPlatform))
	assert.Equal(t, "3", first.Meta(opinion.MetaLikes))
	assert.Equal(t, "1", first.Meta(opinion.MetaShares))
	assert.Equal(t, "@ana", first.Meta(opinion.MetaUserHandle))

	second := records[1]
	assert.Equal(t, "99", second.IDOriginal)
	assert.Equal(t, "", second.ClientID)
	_, hasPlatform := second.Metadata[opinion.MetaPlatform]
	assert.False(t, hasPlatform)
	assert.Equal(t, "0", second.Meta(opinion.MetaLikes))
}

func TestExtractBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`
		[
			{"id":"ig-5","user_id":7,"user_handle":"@leo","product_id":"3","text":"buen producto","platform":"Instagram","created_at":"2025-02-12"},
			{"id":"ig-6","user_id":"8","product_id":"3","text":"no llegó","created_at":"2025-02-13"}
		]`))
	}))
	defer srv.Close()

	records, err := newTestExtractor(srv.URL, nil).Extract(context.Background())
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "ig-5", records[0].IDOriginal)
	assert.Equal(t, "7", records[0].ClientID)
	assert.Equal(t, "Instagram", records[0].Meta(opinion.MetaPlatform))
	assert.Equal(t, "ig-6", records[1].IDOriginal)
}

func TestDecodeComments(t *testing.T) {
	payload, err := decodeComments([]byte(`[{"id":"1"},{"id":"2"}]`))
	assert.NoError(t, err)
	assert.Len(t, payload.Data, 2)
	assert.Equal(t, 2, payload.Total)

	payload, err = decodeComments([]byte(`{"data":[{"id":"1"}],"total":10}`))
	assert.NoError(t, err)
	assert.Len(t, payload.Data, 1)
	assert.Equal(t, 10, payload.Total)

	_, err = decodeComments([]byte(`[{"id":`))
	assert.Error(t, err)
}

func TestExtractFailures(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		records, err := newTestExtractor(srv.URL, nil).Extract(context.Background())
		assert.Nil(t, records)

		var httpErr *domain.HTTPError
		assert.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
		assert.Equal(t, http.MethodGet, httpErr.Method)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		_, err := newTestExtractor(srv.URL, func(c *config.APISourceConfig) {
			c.Timeout = 50 * time.Millisecond
		}).Extract(context.Background())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": [`))
		}))
		defer srv.Close()

		_, err := newTestExtractor(srv.URL, nil).Extract(context.Background())
		var extractErr *domain.ExtractionError
		assert.True(t, errors.As(err, &extractErr))
	})

	t.Run("missing base url", func(t *testing.T) {
		_, err := newTestExtractor("", nil).Extract(context.Background())
		assert.ErrorIs(t, err, domain.ErrSourceNotConfigured)
	})
}
