package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sitebeam/agent/internal/telemetry"

	ws "nhooyr.io/websocket"
)

func TestBroadcastReachesConnectedTail(t *testing.T) {
	reg := NewRegistry()
	t.Cleanup(reg.Close)
	srv := httptest.NewServer(http.HandlerFunc(NewServer(reg).HandleEvents))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "done")

	// Wait for the server side to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	evt := telemetry.Event{ID: "e1", SessionID: "s1", Name: "cta_click", TsMs: 42}
	reg.Broadcast(evt)

	_, raw, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got telemetry.Event
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "e1" || got.Name != "cta_click" {
		t.Fatalf("got %+v", got)
	}
}

func TestBroadcastNeverBlocksCaller(t *testing.T) {
	reg := NewRegistry()
	t.Cleanup(reg.Close)
	srv := httptest.NewServer(http.HandlerFunc(NewServer(reg).HandleEvents))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A connected client that never reads.
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(ws.StatusNormalClosure, "done")

	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Far more events than the queue holds; the excess is dropped, the
	// caller returns immediately either way.
	start := time.Now()
	for i := 0; i < 5000; i++ {
		reg.Broadcast(telemetry.Event{ID: "e", Name: "bulk", TsMs: int64(i)})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("broadcast burst took %v", elapsed)
	}
}
