package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler(t *testing.T) {
	healthy := Handler(true, pingFunc(func(context.Context) error { return nil }))
	assert.Equal(t, http.StatusOK, get(healthy, "/health").Code)
	assert.Equal(t, http.StatusOK, get(healthy, "/ready").Code)
	assert.Equal(t, http.StatusOK, get(healthy, "/metrics").Code)

	down := Handler(false, pingFunc(func(context.Context) error { return errors.New("conn refused") }))
	rec := get(down, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "conn refused")
	assert.Equal(t, http.StatusNotFound, get(down, "/metrics").Code)
}
