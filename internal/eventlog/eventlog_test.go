package eventlog

import (
	"fmt"
	"path/filepath"
	"testing"

	"sitebeam/agent/internal/telemetry"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAndList(t *testing.T) {
	l := openTestLog(t)

	for i := 0; i < 3; i++ {
		evt := telemetry.Event{
			ID:        fmt.Sprintf("id-%d", i),
			SessionID: "sess-1",
			Name:      "funnel_step",
			TsMs:      int64(1000 + i),
			Props:     map[string]any{"step": "a"},
		}
		if err := l.Append(evt); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	evts, err := l.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	for i, evt := range evts {
		if evt.ID != fmt.Sprintf("id-%d", i) {
			t.Fatalf("event %d out of order: %q", i, evt.ID)
		}
		if evt.Props["step"] != "a" {
			t.Fatalf("event %d props lost: %v", i, evt.Props)
		}
	}
}

func TestAppendRejectsEmptyName(t *testing.T) {
	l := openTestLog(t)
	if err := l.Append(telemetry.Event{ID: "x", SessionID: "s"}); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestTrimKeepsNewestRows(t *testing.T) {
	l := openTestLog(t)
	l.maxRows = 10

	for i := 0; i < 25; i++ {
		evt := telemetry.Event{
			ID:        fmt.Sprintf("id-%d", i),
			SessionID: "sess-1",
			Name:      "bulk",
			TsMs:      int64(i),
		}
		if err := l.Append(evt); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	n, err := l.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 retained rows, got %d", n)
	}

	evts, err := l.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if evts[0].ID != "id-15" || evts[len(evts)-1].ID != "id-24" {
		t.Fatalf("expected id-15..id-24 retained, got %s..%s", evts[0].ID, evts[len(evts)-1].ID)
	}
}
