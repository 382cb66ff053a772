package tracing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewRequestIDIsUUID(t *testing.T) {
	id := NewRequestID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewRequestID())
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "abc")
	assert.Equal(t, "abc", RequestID(ctx))
}

func TestDuration(t *testing.T) {
	assert.Zero(t, Duration(context.Background()))

	ctx := WithStartTime(context.Background(), time.Now().Add(-time.Second))
	assert.GreaterOrEqual(t, Duration(ctx), time.Second)
}

func TestManagerDisabledIsNoop(t *testing.T) {
	m := NewManager(DefaultConfig(), quietLogger())
	require.NoError(t, m.Initialize(context.Background()))
	assert.Nil(t, m.provider)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()

	assert.NotPanics(t, func() { RecordError(ctx, errors.New("boom")) })
	assert.Empty(t, TraceID(ctx))
}

func TestHeaderPropagationRoundTrip(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = 1
	m := NewManager(cfg, quietLogger())
	require.NoError(t, m.Initialize(context.Background()))
	defer m.Shutdown(context.Background())

	ctx := ExtractHeaders(context.Background(), propagation.HeaderCarrier(h))
	ctx, span := StartSpan(ctx, "child")
	defer span.End()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", TraceID(ctx))

	out := http.Header{}
	InjectHeaders(ctx, propagation.HeaderCarrier(out))
	assert.Contains(t, out.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}
