package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sitebeam/agent/internal/telemetry"
)

// HTTPSink forwards events to an external analytics endpoint as JSON POSTs.
// It implements telemetry.Forwarder.
type HTTPSink struct {
	http *http.Client
	url  string
}

func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		http: &http.Client{Timeout: timeout},
		url:  url,
	}
}

func (s *HTTPSink) Send(ctx context.Context, evt telemetry.Event) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(evt); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("sink send: %s", resp.Status)
	}
	return nil
}

// Nop discards every event. Used when no sink is configured.
type Nop struct{}

func (Nop) Send(context.Context, telemetry.Event) error { return nil }
