package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDiscoverReturnsFirstLiveBase(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer dead.Close()
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("probed %s, want /ping", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer live.Close()

	p := NewProber([]string{dead.URL, live.URL}, time.Second)
	base, err := p.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if base != live.URL {
		t.Fatalf("base = %q, want %q", base, live.URL)
	}
}

func TestDiscoverAllDead(t *testing.T) {
	p := NewProber([]string{"http://127.0.0.1:1"}, 200*time.Millisecond)
	if _, err := p.Discover(context.Background()); !errors.Is(err, ErrNoLiveEndpoint) {
		t.Fatalf("expected ErrNoLiveEndpoint, got %v", err)
	}
}

func TestCachePutGetExpiry(t *testing.T) {
	c := NewCache(NewMemStorage(), time.Hour)
	now := time.Now()

	if _, ok := c.Get(now); ok {
		t.Fatal("empty cache returned a base")
	}

	c.Put("/api", now)
	base, ok := c.Get(now.Add(30 * time.Minute))
	if !ok || base != "/api" {
		t.Fatalf("get = %q %v", base, ok)
	}

	if _, ok := c.Get(now.Add(2 * time.Hour)); ok {
		t.Fatal("expired entry still returned")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(NewMemStorage(), time.Hour)
	now := time.Now()
	c.Put("/api", now)
	c.Invalidate()
	if _, ok := c.Get(now); ok {
		t.Fatal("invalidated entry still returned")
	}
}
