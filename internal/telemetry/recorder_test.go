package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type countingForwarder struct {
	mu   sync.Mutex
	seen []Event
}

func (c *countingForwarder) Send(_ context.Context, evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, evt)
	return nil
}

func (c *countingForwarder) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func newTestRecorder(t *testing.T, opts Options) *Recorder {
	t.Helper()
	r := New(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r
}

func TestTrackOrderSessionAndTimestamps(t *testing.T) {
	r := newTestRecorder(t, Options{})

	for i := 0; i < 10; i++ {
		r.Track(Custom{Name: "step", Props: map[string]any{"i": i}})
	}

	evts := r.Events(&Filter{Name: "step"})
	if len(evts) != 10 {
		t.Fatalf("expected 10 events, got %d", len(evts))
	}
	var lastTs int64
	for i, evt := range evts {
		if evt.Props["i"] != i {
			t.Fatalf("event %d out of order: props=%v", i, evt.Props)
		}
		if evt.SessionID != r.SessionID() {
			t.Fatalf("event %d has session %q, want %q", i, evt.SessionID, r.SessionID())
		}
		if evt.TsMs < lastTs {
			t.Fatalf("timestamp went backwards at event %d: %d < %d", i, evt.TsMs, lastTs)
		}
		lastTs = evt.TsMs
	}
}

func TestBoundedLogEvictsOldest(t *testing.T) {
	r := newTestRecorder(t, Options{Cap: 1000})

	// One page_load is already recorded; add 1005 more so the first six
	// entries (page_load plus the five oldest customs) fall off the front.
	for i := 0; i < 1005; i++ {
		r.Track(Custom{Name: "bulk", Props: map[string]any{"i": i}})
	}

	evts := r.Events(nil)
	if len(evts) != 1000 {
		t.Fatalf("expected log capped at 1000, got %d", len(evts))
	}
	if evts[0].Name != "bulk" || evts[0].Props["i"] != 5 {
		t.Fatalf("expected oldest surviving event i=5, got %s %v", evts[0].Name, evts[0].Props)
	}
	if last := evts[len(evts)-1]; last.Props["i"] != 1004 {
		t.Fatalf("expected newest event i=1004, got %v", last.Props)
	}
}

func TestFunnelData(t *testing.T) {
	r := newTestRecorder(t, Options{})

	for i := 0; i < 10; i++ {
		r.TrackFunnelStep("a", 0, nil)
	}
	for i := 0; i < 4; i++ {
		r.TrackFunnelStep("b", 0, nil)
	}
	for i := 0; i < 2; i++ {
		r.TrackFunnelStep("c", 0, nil)
	}

	stages := r.FunnelData([]string{"a", "b", "c"})
	wantCounts := []int{10, 4, 2}
	wantDrop := []float64{0, 0.6, 0.5}
	for i, st := range stages {
		if st.Count != wantCounts[i] {
			t.Fatalf("stage %q count = %d, want %d", st.Step, st.Count, wantCounts[i])
		}
		if st.DropOff != wantDrop[i] {
			t.Fatalf("stage %q drop-off = %v, want %v", st.Step, st.DropOff, wantDrop[i])
		}
	}
}

func TestABTestResults(t *testing.T) {
	r := newTestRecorder(t, Options{})

	for i := 0; i < 100; i++ {
		r.TrackABTest("x", "control")
		r.TrackABTest("x", "treatment")
	}
	for i := 0; i < 25; i++ {
		r.TrackABConversion("x", "control", "signup", 0)
	}
	for i := 0; i < 40; i++ {
		r.TrackABConversion("x", "treatment", "signup", 0)
	}
	// Conversions without exposures must not divide by zero.
	r.TrackABConversion("x", "ghost", "signup", 0)

	res := r.ABTestResults("x")
	if got := res["control"]; got.Exposures != 100 || got.Conversions != 25 || got.Rate != 0.25 {
		t.Fatalf("control = %+v", got)
	}
	if got := res["treatment"]; got.Exposures != 100 || got.Conversions != 40 || got.Rate != 0.40 {
		t.Fatalf("treatment = %+v", got)
	}
	if got := res["ghost"]; got.Rate != 0 {
		t.Fatalf("ghost rate = %v, want 0", got.Rate)
	}
}

func TestABTestResultsIgnoresOtherTests(t *testing.T) {
	r := newTestRecorder(t, Options{})
	r.TrackABTest("x", "control")
	r.TrackABTest("y", "control")

	res := r.ABTestResults("x")
	if got := res["control"]; got.Exposures != 1 {
		t.Fatalf("expected 1 exposure for test x, got %d", got.Exposures)
	}
}

func TestReportScrollFiresEachThresholdOnce(t *testing.T) {
	r := newTestRecorder(t, Options{})

	r.ReportScroll(30)
	r.ReportScroll(30)
	r.ReportScroll(80)
	r.ReportScroll(100)
	r.ReportScroll(100)

	evts := r.Events(&Filter{Name: "scroll_depth"})
	if len(evts) != 5 {
		t.Fatalf("expected one event per threshold (5), got %d", len(evts))
	}
	want := []int{25, 50, 75, 90, 100}
	for i, evt := range evts {
		if evt.Props["percent"] != want[i] {
			t.Fatalf("event %d percent = %v, want %d", i, evt.Props["percent"], want[i])
		}
	}
}

func TestIdentifyBindsSubsequentEvents(t *testing.T) {
	r := newTestRecorder(t, Options{})

	r.Track(Custom{Name: "before"})
	r.Identify("user-42", map[string]any{"plan": "pro"})
	r.Track(Custom{Name: "after"})

	if evts := r.Events(&Filter{Name: "before"}); evts[0].UserID != "" {
		t.Fatalf("event before identify carries user id %q", evts[0].UserID)
	}
	if evts := r.Events(&Filter{Name: "after"}); evts[0].UserID != "user-42" {
		t.Fatalf("event after identify has user id %q, want user-42", evts[0].UserID)
	}
	if evts := r.Events(&Filter{Name: "identify"}); len(evts) != 1 || evts[0].Props["plan"] != "pro" {
		t.Fatalf("identify event missing traits: %v", evts)
	}
}

func TestEventsFilterPartialProps(t *testing.T) {
	r := newTestRecorder(t, Options{})

	r.Track(Custom{Name: "click", Props: map[string]any{"label": "demo", "page": "/pricing"}})
	r.Track(Custom{Name: "click", Props: map[string]any{"label": "contact", "page": "/pricing"}})

	evts := r.Events(&Filter{Name: "click", Props: map[string]any{"label": "demo"}})
	if len(evts) != 1 {
		t.Fatalf("expected 1 matching event, got %d", len(evts))
	}
	if evts[0].Props["page"] != "/pricing" {
		t.Fatalf("unexpected event matched: %v", evts[0].Props)
	}
}

func TestAssignVariantDeterministic(t *testing.T) {
	r := newTestRecorder(t, Options{})
	variants := []string{"control", "treatment"}

	first := r.AssignVariant("hero-copy", variants)
	for i := 0; i < 50; i++ {
		if got := r.AssignVariant("hero-copy", variants); got != first {
			t.Fatalf("assignment flapped: %q then %q", first, got)
		}
	}

	if got := BucketVariant("hero-copy", "session-1", variants); got != BucketVariant("hero-copy", "session-1", variants) {
		t.Fatal("BucketVariant not stable for same id")
	}

	// Different ids should not all land in one bucket.
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		seen[BucketVariant("hero-copy", fmt.Sprintf("session-%d", i), variants)] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected both variants assigned across 64 ids, got %v", seen)
	}
}

func TestCloseDrainsForwardQueue(t *testing.T) {
	fw := &countingForwarder{}
	r := New(Options{Forwarder: fw})

	for i := 0; i < 20; i++ {
		r.Track(Custom{Name: "evt"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	// page_load + 20 customs + page_exit
	if got := fw.count(); got != 22 {
		t.Fatalf("expected 22 forwarded events after drain, got %d", got)
	}
}

func TestTrackAfterCloseIsNoop(t *testing.T) {
	r := New(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	before := len(r.Events(nil))
	r.Track(Custom{Name: "late"})
	if got := len(r.Events(nil)); got != before {
		t.Fatalf("track after close appended: %d -> %d", before, got)
	}
}
