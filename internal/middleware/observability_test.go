package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"szenai/internal/constants"
	"szenai/internal/metrics"
	"szenai/internal/tracing"
)

func remoteAddr(r *http.Request) string { return r.RemoteAddr }

func newRouter(t *testing.T, logs io.Writer, m *metrics.Metrics) *mux.Router {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(logs)
	logger.SetFormatter(&logrus.JSONFormatter{})

	router := mux.NewRouter()
	router.Use(Observability(logger, m, remoteAddr))
	router.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, tracing.RequestID(r.Context()))
		if mux.Vars(r)["id"] == "missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	return router
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObservability_LabelsByRouteTemplate(t *testing.T) {
	m := metrics.New()
	var logs bytes.Buffer
	router := newRouter(t, &logs, m)

	for _, id := range []string{"628111@c.us", "628222@c.us", "missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}

	body := scrape(t, m)
	assert.Contains(t, body, `szenai_http_requests_total{method="GET",route="/items/{id}",status_code="200"} 2`)
	assert.Contains(t, body, `szenai_http_requests_total{method="GET",route="/items/{id}",status_code="404"} 1`)
	assert.NotContains(t, body, "628111")
	assert.NotContains(t, logs.String(), "628111")
}

func TestObservability_NestedRouterLabel(t *testing.T) {
	m := metrics.New()
	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)
	logger.SetFormatter(&logrus.JSONFormatter{})

	inner := mux.NewRouter()
	inner.Use(RouteLabel())
	inner.HandleFunc("/api/things/{id}/parts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	outer := mux.NewRouter()
	outer.Use(Observability(logger, m, remoteAddr))
	outer.PathPrefix("/api/").Handler(inner)

	rec := httptest.NewRecorder()
	outer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/628111/parts", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := scrape(t, m)
	assert.Contains(t, body, `szenai_http_requests_total{method="GET",route="/api/things/{id}/parts",status_code="200"} 1`)
	assert.NotContains(t, body, `route="/api/"`)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &entry))
	assert.Equal(t, "/api/things/{id}/parts", entry[constants.LogFieldEndpoint])
}

func TestRouteLabel_WithoutObservability(t *testing.T) {
	router := mux.NewRouter()
	router.Use(RouteLabel())
	router.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestObservability_RequestIDHeader(t *testing.T) {
	router := newRouter(t, io.Discard, metrics.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/a", nil))
	generated := rec.Header().Get(tracing.RequestIDHeader)
	assert.NotEmpty(t, generated)

	req := httptest.NewRequest(http.MethodGet, "/items/a", nil)
	req.Header.Set(tracing.RequestIDHeader, "caller-123")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "caller-123", rec.Header().Get(tracing.RequestIDHeader))
}

func TestObservability_LogLevelFollowsStatus(t *testing.T) {
	var logs bytes.Buffer
	router := newRouter(t, &logs, metrics.New())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "HTTP request completed", entry["msg"])
	assert.Equal(t, "/boom", entry[constants.LogFieldEndpoint])
	assert.Equal(t, float64(http.StatusBadGateway), entry[constants.LogFieldStatusCode])
	assert.NotEmpty(t, entry[constants.LogFieldRequestID])
}

func TestObservability_NilMetrics(t *testing.T) {
	router := newRouter(t, io.Discard, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/a", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestResponseWrapper_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWrapper{ResponseWriter: rec, statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("abc"))
	rw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.Equal(t, int64(3), rw.responseSize)
	assert.Equal(t, rec, rw.Unwrap())
}
