package cache

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_SetAndGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("/chats?limit=10", []byte(`[{"id":"1@c.us"}]`))

	payload, ok := c.Get("/chats?limit=10")
	require.True(t, ok)
	assert.Equal(t, `[{"id":"1@c.us"}]`, string(payload))

	_, ok = c.Get("/chats?limit=20")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(60*time.Second, WithClock(clock.Now))

	c.Set("k", []byte("v"))

	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry younger than TTL must be served")

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry aged exactly TTL must be treated as absent")

	assert.Equal(t, 1, c.Len(), "expired entries are not deleted on read")
}

func TestCache_PerResourceTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(60*time.Second, WithClock(clock.Now))

	c.Set("/chats/1@c.us/messages", []byte("m"))
	c.Set("/chats/1@c.us/picture", []byte("p"))

	clock.Advance(45 * time.Second)

	_, ok := c.GetWithTTL("/chats/1@c.us/messages", 30*time.Second)
	assert.False(t, ok)
	_, ok = c.GetWithTTL("/chats/1@c.us/picture", time.Hour)
	assert.True(t, ok)
}

func TestCache_SetReplacesAndRefreshesTimestamp(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, WithClock(clock.Now))

	c.Set("k", []byte("old"))
	clock.Advance(50 * time.Second)
	c.Set("k", []byte("new"))
	clock.Advance(50 * time.Second)

	payload, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", string(payload))
}

func TestCache_InvalidateContaining(t *testing.T) {
	c := New(time.Minute)
	c.Set("/chats/628111@c.us/messages?limit=20", []byte("a"))
	c.Set("/chats/628111@c.us/picture", []byte("b"))
	c.Set("/chats/628222@c.us/messages?limit=20", []byte("c"))
	c.Set("/chats?limit=20", []byte("d"))

	removed := c.InvalidateContaining("628111@c.us")

	assert.Equal(t, 2, removed)
	_, ok := c.Get("/chats/628222@c.us/messages?limit=20")
	assert.True(t, ok)
	_, ok = c.Get("/chats?limit=20")
	assert.True(t, ok)
	assert.Equal(t, 0, c.InvalidateContaining(""))
}

func TestCache_InvalidatePredicate(t *testing.T) {
	c := New(time.Minute)
	c.Set("/chats?limit=20", []byte("a"))
	c.Set("/chats/overview?limit=20", []byte("b"))
	c.Set("/chats/1@c.us/messages", []byte("c"))

	removed := c.Invalidate(func(key string) bool {
		return strings.HasPrefix(key, "/chats?") || strings.HasPrefix(key, "/chats/overview")
	})

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Clear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	c.Clear()

	assert.Equal(t, 0, c.Len())
}

func TestCache_Prune(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, WithClock(clock.Now))
	c.Set("old", []byte("1"))
	clock.Advance(2 * time.Hour)
	c.Set("fresh", []byte("2"))

	removed := c.Prune(time.Hour)

	assert.Equal(t, 1, removed)
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCache_Janitor(t *testing.T) {
	c := New(time.Minute)
	c.Set("k", []byte("v"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartJanitor(ctx, 5*time.Millisecond, time.Nanosecond)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestKey_Canonical(t *testing.T) {
	a := url.Values{}
	a.Set("limit", "20")
	a.Set("offset", "0")
	a.Set("sortBy", "conversationTimestamp")

	b := url.Values{}
	b.Set("sortBy", "conversationTimestamp")
	b.Set("offset", "0")
	b.Set("limit", "20")

	assert.Equal(t, Key("/chats", a), Key("/chats", b))
	assert.Equal(t, "/chats?limit=20&offset=0&sortBy=conversationTimestamp", Key("/chats", a))
}

func TestKey_DistinctParams(t *testing.T) {
	a := url.Values{"limit": {"20"}}
	b := url.Values{"limit": {"21"}}

	assert.NotEqual(t, Key("/chats", a), Key("/chats", b))
	assert.NotEqual(t, Key("/chats", a), Key("/chats/overview", a))
	assert.Equal(t, "/chats", Key("/chats", nil))
	assert.Equal(t, "/chats", Key("/chats", url.Values{"limit": {}}))
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := Key("/chats", url.Values{"offset": {string(rune('a' + id))}})
				c.Set(key, []byte("x"))
				c.Get(key)
				if j%10 == 0 {
					c.InvalidateContaining("offset=" + string(rune('a'+id)))
				}
			}
		}(i)
	}
	wg.Wait()
}
