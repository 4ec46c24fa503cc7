package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Prober finds the first candidate base whose ping route answers. This is a
// convenience optimization for callers that want a known-live base; the
// submission path does not consult it and always tries primary-then-fallback.
type Prober struct {
	http  *http.Client
	bases []string
}

func NewProber(bases []string, timeout time.Duration) *Prober {
	return &Prober{
		http:  &http.Client{Timeout: timeout},
		bases: bases,
	}
}

var ErrNoLiveEndpoint = errors.New("no live endpoint")

// Discover GETs <base>/ping on each candidate in order and returns the first
// base that answers 2xx.
func (p *Prober) Discover(ctx context.Context) (string, error) {
	var lastErr error
	for _, base := range p.bases {
		req, err := http.NewRequestWithContext(ctx, "GET", base+"/ping", nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := p.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return base, nil
		}
		lastErr = fmt.Errorf("probe %s: %s", base, resp.Status)
	}
	if lastErr == nil {
		lastErr = ErrNoLiveEndpoint
	}
	return "", fmt.Errorf("%w: %v", ErrNoLiveEndpoint, lastErr)
}

// Storage persists the cached record under a fixed key.
type Storage interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

const cacheKey = "endpoint_base"

type record struct {
	Base string    `json:"base"`
	TS   time.Time `json:"ts"`
}

// Cache remembers the discovered base for a bounded window so repeated page
// interactions within a session don't re-probe.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	storage Storage
}

func NewCache(storage Storage, ttl time.Duration) *Cache {
	return &Cache{storage: storage, ttl: ttl}
}

func (c *Cache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.storage.Get(cacheKey)
	if !ok {
		return "", false
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.storage.Delete(cacheKey)
		return "", false
	}
	if now.Sub(rec.TS) > c.ttl {
		c.storage.Delete(cacheKey)
		return "", false
	}
	return rec.Base, true
}

func (c *Cache) Put(base string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(record{Base: base, TS: now})
	if err != nil {
		return
	}
	c.storage.Set(cacheKey, raw)
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage.Delete(cacheKey)
}

// MemStorage is a session-scoped in-memory Storage.
type MemStorage struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemStorage() *MemStorage {
	return &MemStorage{m: make(map[string][]byte)}
}

func (s *MemStorage) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemStorage) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MemStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}
