package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"szenai/internal/broadcast"
	"szenai/internal/cache"
	"szenai/pkg/waha"
)

const (
	testPrefix = "/api/waha"
	testAPIKey = "upstream-secret"
)

type mockResponse struct {
	status int
	body   string
}

type recordedCall struct {
	header http.Header
	query  string
	body   string
}

// mockWAHA answers by "METHOD /decoded/path" and records every call.
type mockWAHA struct {
	mu        sync.Mutex
	responses map[string]mockResponse
	calls     map[string][]recordedCall
	total     int
	server    *httptest.Server
}

func newMockWAHA(t *testing.T) *mockWAHA {
	t.Helper()
	m := &mockWAHA{
		responses: map[string]mockResponse{
			"GET /api/default/chats":          {200, `[{"id":"628111@c.us","name":"Alice"},{"id":"628222@c.us","name":"Bob"}]`},
			"GET /api/default/chats/overview": {200, `[{"id":"628111@c.us","name":"Alice"}]`},
			"POST /api/sendText":              {200, `{"id":"msg1","status":"sent"}`},
		},
		calls: map[string][]recordedCall{},
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockWAHA) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	m.mu.Lock()
	m.total++
	m.calls[key] = append(m.calls[key], recordedCall{header: r.Header.Clone(), query: r.URL.RawQuery, body: string(body)})
	resp, ok := m.responses[key]
	m.mu.Unlock()

	if !ok {
		resp = m.fallback(r)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (m *mockWAHA) fallback(r *http.Request) mockResponse {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/picture"):
		return mockResponse{200, `{"url":"https://pics.example/p.jpg"}`}
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
		return mockResponse{200, `[{"id":"m1","timestamp":1700000000,"fromMe":false,"body":"hello","ack":3}]`}
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/messages/"):
		return mockResponse{200, `{"id":"m1","timestamp":1700000000,"body":"hello"}`}
	case r.Method != http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/default/chats/"):
		return mockResponse{200, `{"success":true}`}
	}
	return mockResponse{404, `{"error":"not found"}`}
}

func (m *mockWAHA) set(key string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = mockResponse{status, body}
}

func (m *mockWAHA) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls[key])
}

func (m *mockWAHA) last(key string) recordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := m.calls[key]
	if len(calls) == 0 {
		return recordedCall{}
	}
	return calls[len(calls)-1]
}

func (m *mockWAHA) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e broadcast.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) published() []broadcast.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]broadcast.Event(nil), p.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	mock      *mockWAHA
	cache     *cache.Cache
	clock     *fakeClock
	publisher *recordingPublisher
	handler   http.Handler
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mock := newMockWAHA(t)
	return newTestEnvWithBaseURL(t, mock, mock.server.URL)
}

func newTestEnvWithBaseURL(t *testing.T, mock *mockWAHA, baseURL string) *testEnv {
	t.Helper()
	cfg := waha.DefaultConfig(baseURL, testAPIKey)
	cfg.RetryDelay = time.Millisecond
	cfg.BreakerMaxFailures = 0
	client, err := waha.NewClient(cfg, waha.WithLogger(quietLogger()))
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := cache.New(60*time.Second, cache.WithClock(clock.Now))
	pub := &recordingPublisher{}

	px := New(client, c, quietLogger(), WithPublisher(pub), WithClock(clock.Now))
	return &testEnv{
		mock:      mock,
		cache:     c,
		clock:     clock,
		publisher: pub,
		handler:   CORS([]string{"*"})(px.Routes(testPrefix)),
	}
}

func (e *testEnv) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, testPrefix+target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func httpDo(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
