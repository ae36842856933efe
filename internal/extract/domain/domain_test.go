package domain

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionErrorUnwrap(t *testing.T) {
	cause := &HTTPError{Method: http.MethodGet, URL: "http://x/api/comments", StatusCode: 503, Body: []byte(" down ")}
	err := NewExtractionError(SourceAPI, cause)

	var httpErr *HTTPError
	assert.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 503, httpErr.HTTPStatus())
	assert.Contains(t, err.Error(), SourceAPI)
	assert.Contains(t, err.Error(), "status=503 body=down")

	var extractErr *ExtractionError
	assert.True(t, errors.As(err, &extractErr))
	assert.Equal(t, SourceAPI, extractErr.Source)
}

func TestHTTPErrorBodySnippet(t *testing.T) {
	err := &HTTPError{Method: http.MethodGet, URL: "u", StatusCode: 500, Body: []byte(strings.Repeat("a", 600))}
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}
