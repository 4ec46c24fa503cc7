package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a single recorded occurrence. Immutable once appended; the log is
// append-only and bounded.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id,omitempty"`
	Name      string         `json:"name"`
	TsMs      int64          `json:"ts_ms"`
	Props     map[string]any `json:"props,omitempty"`
}

// Forwarder relays events to an external analytics sink. Forward failures are
// logged and dropped; they never reach Track callers.
type Forwarder interface {
	Send(ctx context.Context, evt Event) error
}

// Archiver persists events durably.
type Archiver interface {
	Append(evt Event) error
}

var (
	scrollThresholds  = []int{25, 50, 75, 90, 100}
	timeMilestonesSec = []int{10, 30, 60, 120, 300}
)

const (
	timeCheckInterval = 5 * time.Second
	forwardTimeout    = 5 * time.Second
	defaultCap        = 1000
)

type Options struct {
	Cap       int
	Forwarder Forwarder
	Archive   Archiver
	Broadcast func(Event)
	Page      PageLoad
}

// Recorder captures structured interaction events for one session and makes
// them queryable for funnel and experiment analysis. Construct with New and
// pass explicitly; there is no package-level instance.
type Recorder struct {
	mu         sync.RWMutex
	events     []Event
	cap        int
	sessionID  string
	userID     string
	startedAt  time.Time
	scrollSeen map[int]bool
	timeSeen   map[int]bool
	closed     bool

	fw        Forwarder
	archive   Archiver
	broadcast func(Event)

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup
}

func New(opts Options) *Recorder {
	capN := opts.Cap
	if capN <= 0 {
		capN = defaultCap
	}
	r := &Recorder{
		cap:        capN,
		sessionID:  uuid.New().String(),
		startedAt:  time.Now(),
		scrollSeen: make(map[int]bool),
		timeSeen:   make(map[int]bool),
		fw:         opts.Forwarder,
		archive:    opts.Archive,
		broadcast:  opts.Broadcast,
		queue:      make(chan Event, capN),
		done:       make(chan struct{}),
	}
	if r.fw != nil {
		r.wg.Add(1)
		go r.forwardLoop()
	}
	r.wg.Add(1)
	go r.timeLoop()

	r.Track(opts.Page)
	return r
}

func (r *Recorder) SessionID() string { return r.sessionID }

// Track appends an event built from the payload plus session metadata and the
// current timestamp. It never fails from the caller's perspective: storage and
// forward errors are logged and swallowed.
func (r *Recorder) Track(p Payload) {
	evt := Event{
		ID:    uuid.New().String(),
		Name:  p.EventName(),
		TsMs:  time.Now().UnixMilli(),
		Props: p.Fields(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	evt.SessionID = r.sessionID
	evt.UserID = r.userID
	r.events = append(r.events, evt)
	if over := len(r.events) - r.cap; over > 0 {
		r.events = append([]Event(nil), r.events[over:]...)
		metricEventsEvicted.Add(float64(over))
	}
	r.enqueueLocked(evt)
	r.mu.Unlock()

	metricEventsRecorded.WithLabelValues(evt.Name).Inc()

	if r.archive != nil {
		if err := r.archive.Append(evt); err != nil {
			metricArchiveErrors.Inc()
			log.Printf("telemetry: archive append: %v", err)
		}
	}
	if r.broadcast != nil {
		r.broadcast(evt)
	}
}

// enqueueLocked pushes onto the forward queue, dropping the oldest queued
// event on overflow. Caller holds r.mu, which also serializes against Close.
func (r *Recorder) enqueueLocked(evt Event) {
	if r.fw == nil {
		return
	}
	select {
	case r.queue <- evt:
		return
	default:
	}
	select {
	case <-r.queue:
		metricForwardDropped.Inc()
	default:
	}
	select {
	case r.queue <- evt:
	default:
		metricForwardDropped.Inc()
	}
}

func (r *Recorder) forwardLoop() {
	defer r.wg.Done()
	for evt := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		if err := r.fw.Send(ctx, evt); err != nil {
			metricForwardErrors.Inc()
			log.Printf("telemetry: forward %s: %v", evt.Name, err)
		}
		cancel()
	}
}

// timeLoop fires time_on_page events the first time elapsed wall-clock time
// crosses each milestone.
func (r *Recorder) timeLoop() {
	defer r.wg.Done()
	t := time.NewTicker(timeCheckInterval)
	defer t.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-t.C:
			elapsed := int(time.Since(r.startedAt).Seconds())
			for _, m := range timeMilestonesSec {
				if elapsed < m {
					break
				}
				r.mu.Lock()
				seen := r.timeSeen[m]
				r.timeSeen[m] = true
				r.mu.Unlock()
				if !seen {
					r.Track(TimeOnPage{Seconds: m})
				}
			}
		}
	}
}

// ReportScroll fires scroll_depth events the first time cumulative scroll
// crosses each threshold. percent is 0-100.
func (r *Recorder) ReportScroll(percent int) {
	for _, th := range scrollThresholds {
		if percent < th {
			break
		}
		r.mu.Lock()
		seen := r.scrollSeen[th]
		r.scrollSeen[th] = true
		r.mu.Unlock()
		if !seen {
			r.Track(ScrollDepth{Percent: th})
		}
	}
}

func (r *Recorder) TrackFunnelStep(step string, value float64, meta map[string]any) {
	r.Track(FunnelStep{Step: step, Value: value, Meta: meta})
}

func (r *Recorder) TrackABTest(test, variant string) {
	r.Track(ABExposure{Test: test, Variant: variant})
}

func (r *Recorder) TrackABConversion(test, variant, kind string, value float64) {
	r.Track(ABConversion{Test: test, Variant: variant, Kind: kind, Value: value})
}

func (r *Recorder) TrackCTAClick(label, page string) {
	r.Track(CTAClick{Label: label, Page: page})
}

// Identify binds a user identifier to all subsequent events in the session.
func (r *Recorder) Identify(userID string, traits map[string]any) {
	r.mu.Lock()
	r.userID = userID
	r.mu.Unlock()
	r.Track(Identified{Traits: traits})
}

// Close records page_exit, stops the instrumentation timer and drains the
// forward queue. Returns ctx.Err if the drain does not finish in time; the
// drain then keeps running in the background and a later Close returns nil
// without waiting for it.
func (r *Recorder) Close(ctx context.Context) error {
	r.Track(PageExit{Seconds: time.Since(r.startedAt).Seconds()})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	close(r.queue)

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
