package request

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxid/pkg/requestcontext"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates UUID when no header provided", func(t *testing.T) {
		var captured string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = requestcontext.RequestID(r.Context())
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verification/stats", nil))

		assert.Len(t, captured, 36)
		assert.Equal(t, captured, w.Header().Get("X-Request-ID"))
	})

	t.Run("reuses a safe client ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "trace.span_1234")
		w := httptest.NewRecorder()
		RequestID(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, "trace.span_1234", w.Header().Get("X-Request-ID"))
	})

	t.Run("replaces unsafe or oversized IDs", func(t *testing.T) {
		for _, bad := range []string{"valid\ninjected", "has space", `quote"d`, strings.Repeat("a", MaxRequestIDLength+1)} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", bad)
			w := httptest.NewRecorder()
			RequestID(okHandler()).ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			assert.NotEqual(t, bad, got)
			assert.Len(t, got, 36)
		}
	})
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		allowed     []string
		want        int
	}{
		{"json post accepted", http.MethodPost, "application/json; charset=utf-8", []string{"application/json"}, http.StatusOK},
		{"text post rejected", http.MethodPost, "text/plain", []string{"application/json"}, http.StatusUnsupportedMediaType},
		{"missing header passes", http.MethodPost, "", []string{"application/json"}, http.StatusOK},
		{"get ignores header", http.MethodGet, "text/plain", []string{"application/json"}, http.StatusOK},
		{"multipart allowed when listed", http.MethodPost, "multipart/form-data; boundary=x", []string{"multipart/form-data"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(tt.allowed...)(okHandler()).ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLogger_SkipsHealthyProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := Logger(logger)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/verification/stats", nil))
	assert.Contains(t, buf.String(), `"path":"/verification/stats"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBodyLimit(t *testing.T) {
	var (
		called  bool
		readErr error
	)
	handler := BodyLimit(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, readErr = io.ReadAll(r.Body)
	}))

	t.Run("within the limit", func(t *testing.T) {
		called, readErr = false, nil
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 10))))
		require.True(t, called)
		require.NoError(t, readErr)
	})

	t.Run("declared length over the limit is rejected up front", func(t *testing.T) {
		called, readErr = false, nil
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 11))))
		assert.False(t, called)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "payload_too_large")
	})

	t.Run("undeclared length fails while reading", func(t *testing.T) {
		called, readErr = false, nil
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 11)))
		req.ContentLength = -1
		handler.ServeHTTP(httptest.NewRecorder(), req)
		require.True(t, called)
		var maxErr *http.MaxBytesError
		assert.True(t, errors.As(readErr, &maxErr))
	})
}

func TestLatencyMiddleware_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	route := func(*http.Request) string { return "/verification/user/{accountID}" }

	LatencyMiddleware(m, route)(okHandler()).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/verification/user/ACC1", nil))

	assert.Equal(t, 1, promtest.CollectAndCount(m.EndpointLatency, "voxid_endpoint_latency_seconds"))
	_, err := m.EndpointLatency.GetMetricWithLabelValues("/verification/user/{accountID}")
	require.NoError(t, err)
	assert.InDelta(t, 1, promtest.ToFloat64(m.RequestsTotal.WithLabelValues("/verification/user/{accountID}", "200")), 0)
}

func TestLatencyMiddleware_CapturesStatusAndUnmatched(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	LatencyMiddleware(m, func(*http.Request) string { return "" })(notFound).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/nope/ACC1", nil))

	assert.InDelta(t, 1, promtest.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "404")), 0)
}
