package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"szenai/internal/constants"
	"szenai/internal/metrics"
	"szenai/internal/tracing"
)

const unmatchedRoute = "unmatched"

type routeLabelKey struct{}

// routeLabel carries the most specific route template seen for a request.
// Nested routers overwrite it through RouteLabel.
type routeLabel struct {
	value string
}

// Observability adds a request ID, a server span, Prometheus request metrics
// and a completion log line to every request. Requests are labelled by their
// mux route template so raw chat ids never reach metric labels or logs. A
// nested router using RouteLabel replaces the outer template with its own.
func Observability(logger *logrus.Logger, m *metrics.Metrics, clientIP func(*http.Request) string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			label := &routeLabel{value: routeTemplate(r)}

			requestID := r.Header.Get(tracing.RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = tracing.NewRequestID()
			}

			ctx := tracing.ExtractHeaders(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracing.StartSpan(ctx, r.Method+" "+label.value,
				attribute.String("http.request.method", r.Method),
				attribute.String("client.address", clientIP(r)),
			)
			defer span.End()
			ctx = tracing.WithRequestID(ctx, requestID)
			ctx = tracing.WithStartTime(ctx, start)
			ctx = context.WithValue(ctx, routeLabelKey{}, label)
			r = r.WithContext(ctx)

			w.Header().Set(tracing.RequestIDHeader, requestID)

			done := m.RequestStarted()
			defer done()

			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
			route := label.value
			m.ObserveRequest(r.Method, route, wrapper.statusCode, duration)

			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.body.size", wrapper.responseSize),
			)
			if wrapper.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			}

			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 && wrapper.statusCode < 500 {
				logLevel = logrus.WarnLevel
			} else if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			}

			fields := logrus.Fields{
				constants.LogFieldRequestID:  requestID,
				constants.LogFieldMethod:     r.Method,
				constants.LogFieldEndpoint:   route,
				constants.LogFieldStatusCode: wrapper.statusCode,
				constants.LogFieldDuration:   duration.Milliseconds(),
				constants.LogFieldRemoteIP:   clientIP(r),
				constants.LogFieldSize:       wrapper.responseSize,
			}
			if traceID := tracing.TraceID(ctx); traceID != "" {
				fields[constants.LogFieldTraceID] = traceID
			}
			logger.WithFields(fields).Log(logLevel, "HTTP request completed")
		})
	}
}

// RouteLabel reports the matched template of a nested router to the
// enclosing Observability middleware.
func RouteLabel() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if label, ok := r.Context().Value(routeLabelKey{}).(*routeLabel); ok {
				if route := routeTemplate(r); route != unmatchedRoute {
					label.value = route
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return unmatchedRoute
	}
	if tpl, err := route.GetPathTemplate(); err == nil {
		return tpl
	}
	return unmatchedRoute
}

// responseWrapper captures response metrics
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
	wroteHeader  bool
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}

func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	rw.wroteHeader = true
	return hj.Hijack()
}

func (rw *responseWrapper) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
