package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"ragstor/internal/middleware"
)

func TestCorrelationID_GeneratesWhenMissing(t *testing.T) {
	var captured string
	h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetCorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get("X-Correlation-ID"))
}

func TestCorrelationID_PropagatesHeader(t *testing.T) {
	var captured string
	h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("X-Correlation-ID", "run-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "run-42", captured)
}

func TestGetCorrelationID_Unset(t *testing.T) {
	assert.Equal(t, "unknown", middleware.GetCorrelationID(t.Context()))
}
