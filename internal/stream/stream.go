package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"sitebeam/agent/internal/telemetry"

	"github.com/google/uuid"
	ws "nhooyr.io/websocket"
)

const (
	queueCap     = 256
	writeTimeout = 2 * time.Second
)

// Registry keeps the set of live event-tail connections. Broadcasts are
// dispatched from a dedicated goroutine behind a bounded queue, so a stuck
// tail never stalls the recording path.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*ws.Conn

	queue chan telemetry.Event
	done  chan struct{}
	wg    sync.WaitGroup
}

func NewRegistry() *Registry {
	r := &Registry{
		conns: make(map[string]*ws.Conn),
		queue: make(chan telemetry.Event, queueCap),
		done:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Registry) Add(id string, c *ws.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = c
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Broadcast enqueues the event for delivery to every connected tail and
// returns immediately. When the queue is full the event is dropped.
func (r *Registry) Broadcast(evt telemetry.Event) {
	select {
	case r.queue <- evt:
	default:
	}
}

// Close stops the dispatch goroutine. Queued events are discarded.
func (r *Registry) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Registry) run() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case evt := <-r.queue:
			r.send(evt)
		}
	}
}

// send writes the event to every connection. Best-effort: a slow or dead
// connection is dropped, never waited on past its write timeout.
func (r *Registry) send(evt telemetry.Event) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return
	}
	r.mu.Lock()
	conns := make(map[string]*ws.Conn, len(r.conns))
	for id, c := range r.conns {
		conns[id] = c
	}
	r.mu.Unlock()

	for id, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Write(ctx, ws.MessageText, raw)
		cancel()
		if err != nil {
			_ = c.Close(ws.StatusNormalClosure, "write failed")
			r.Remove(id)
		}
	}
}

// Server upgrades /ws/events requests and keeps them registered until the
// client goes away. Clients only receive; inbound frames are drained and
// ignored.
type Server struct {
	Reg *Registry
}

func NewServer(reg *Registry) *Server { return &Server{Reg: reg} }

func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("stream: ws accept: %v", err)
		return
	}
	id := uuid.New().String()
	s.Reg.Add(id, c)
	defer func() {
		s.Reg.Remove(id)
		_ = c.Close(ws.StatusNormalClosure, "done")
	}()

	ctx := r.Context()
	for {
		if _, _, err := c.Read(ctx); err != nil {
			return
		}
	}
}
