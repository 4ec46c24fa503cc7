package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Adapter translates one hosting platform's native request/response shape
// to and from the shared proxy contract. The proxy logic itself is written
// once against this interface.
type Adapter interface {
	Method() string
	Body() ([]byte, error)
	WriteJSON(status int, headers map[string]string, v any) error
}

const allowOrigin = "*"

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin": allowOrigin,
	}
}

func preflightHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  allowOrigin,
		"Access-Control-Allow-Methods": "POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type",
	}
}

// Handler proxies contact-form submissions to an externally configured
// downstream webhook, stamping each forward with a server timestamp and a
// fresh request id. Error internals never leak to the client; responses are
// mapped to a small fixed set of JSON shapes.
type Handler struct {
	http          *http.Client
	downstreamURL string
}

func New(downstreamURL string, timeout time.Duration) *Handler {
	return &Handler{
		http:          &http.Client{Timeout: timeout},
		downstreamURL: downstreamURL,
	}
}

func (h *Handler) Handle(ctx context.Context, a Adapter) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("webhook: panic: %v", rec)
			_ = a.WriteJSON(http.StatusInternalServerError, corsHeaders(), map[string]any{"error": "Internal server error"})
		}
	}()

	switch a.Method() {
	case http.MethodOptions:
		_ = a.WriteJSON(http.StatusOK, preflightHeaders(), nil)
		return
	case http.MethodPost:
	default:
		_ = a.WriteJSON(http.StatusMethodNotAllowed, corsHeaders(), map[string]any{"error": "Method not allowed"})
		return
	}

	if h.downstreamURL == "" {
		log.Printf("webhook: downstream URL not configured")
		_ = a.WriteJSON(http.StatusInternalServerError, corsHeaders(), map[string]any{"error": "Webhook not configured"})
		return
	}

	raw, err := a.Body()
	if err != nil {
		log.Printf("webhook: read body: %v", err)
		_ = a.WriteJSON(http.StatusInternalServerError, corsHeaders(), map[string]any{"error": "Internal server error"})
		return
	}

	var fields map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			log.Printf("webhook: bad request body: %v", err)
			_ = a.WriteJSON(http.StatusInternalServerError, corsHeaders(), map[string]any{"error": "Internal server error"})
			return
		}
	}
	if fields == nil {
		fields = map[string]any{}
	}

	requestID := uuid.New().String()
	fields["serverTimestamp"] = time.Now().UTC().Format(time.RFC3339)
	fields["requestId"] = requestID

	if err := h.forward(ctx, fields); err != nil {
		log.Printf("webhook: forward failed: %v", err)
		_ = a.WriteJSON(http.StatusInternalServerError, corsHeaders(), map[string]any{"error": "Webhook submission failed"})
		return
	}

	_ = a.WriteJSON(http.StatusOK, corsHeaders(), map[string]any{
		"ok":        true,
		"requestId": requestID,
		"message":   "Form submitted successfully",
	})
}

func (h *Handler) forward(ctx context.Context, fields map[string]any) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(fields); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", h.downstreamURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &downstreamError{status: resp.Status, body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type downstreamError struct {
	status string
	body   string
}

func (e *downstreamError) Error() string {
	return "downstream " + e.status + ": " + e.body
}
