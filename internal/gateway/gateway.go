package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Form holds user-entered contact fields plus the anti-spam signals measured
// at the client. Honeypot and fill duration are annotations for the receiving
// system; the client never blocks on them.
type Form struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
	Interest string `json:"type"`

	Honeypot  string    `json:"-"`
	StartedAt time.Time `json:"-"`
	Page      string    `json:"-"`
	UserAgent string    `json:"-"`
}

// ValidationError carries field-level messages. No network call is made when
// validation fails.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	return "invalid form fields: " + strings.Join(keys, ", ")
}

// Normalize trims every field and lowercases the email.
func (f *Form) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Company = strings.TrimSpace(f.Company)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Message = strings.TrimSpace(f.Message)
	f.Interest = strings.TrimSpace(f.Interest)
}

func (f *Form) Validate() *ValidationError {
	fields := map[string]string{}
	if f.Name == "" {
		fields["name"] = "Name is required"
	}
	if f.Email == "" {
		fields["email"] = "Email is required"
	} else if !validEmail(f.Email) {
		fields["email"] = "Email looks invalid"
	}
	if f.Message == "" {
		fields["message"] = "Message is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validEmail(s string) bool {
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// Payload builds the JSON body for one submission attempt: form fields plus
// client metadata and the anti-spam annotations.
func (f *Form) Payload(now time.Time) map[string]any {
	p := map[string]any{
		"name":      f.Name,
		"email":     f.Email,
		"company":   f.Company,
		"phone":     f.Phone,
		"message":   f.Message,
		"type":      f.Interest,
		"timestamp": now.UTC().Format(time.RFC3339),
		"source":    "contact_form",
		"url":       f.Page,
		"userAgent": f.UserAgent,
		"honeypot":  f.Honeypot,
	}
	if !f.StartedAt.IsZero() {
		p["durationMs"] = now.Sub(f.StartedAt).Milliseconds()
	}
	return p
}

// Result reports one submission attempt's terminal state. OK tells the UI
// whether to clear the form (success) or retain the entered values (failure).
type Result struct {
	OK        bool
	RequestID string
	Message   string
	Endpoint  string
	TimedOut  bool
}

var ErrAllEndpointsFailed = errors.New("all endpoints failed")

// Client delivers a contact form to the first responding of several redundant
// webhook endpoints: the primary is tried first, then the fallback, each with
// its own timeout. No retry beyond that single hop.
type Client struct {
	http      *http.Client
	endpoints []string
	timeout   time.Duration
}

func NewClient(endpoints []string, timeout time.Duration) *Client {
	return &Client{
		http:      &http.Client{},
		endpoints: endpoints,
		timeout:   timeout,
	}
}

type webhookResponse struct {
	OK        bool   `json:"ok"`
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

// Submit validates the form and POSTs it to the candidate endpoints in order.
// The same body bytes are sent to every endpoint tried. A validation failure
// returns *ValidationError without any network call.
func (c *Client) Submit(ctx context.Context, f *Form) (Result, error) {
	f.Normalize()
	if verr := f.Validate(); verr != nil {
		metricSubmissions.WithLabelValues("invalid").Inc()
		return Result{}, verr
	}

	body, err := json.Marshal(f.Payload(time.Now()))
	if err != nil {
		return Result{}, fmt.Errorf("encode payload: %w", err)
	}

	start := time.Now()
	defer func() {
		metricSubmitDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	var lastErr error
	timedOut := false
	for i, base := range c.endpoints {
		if i > 0 {
			metricFallbacks.Inc()
		}
		res, err := c.post(ctx, base, body)
		if err == nil {
			metricSubmissions.WithLabelValues("success").Inc()
			res.Endpoint = base
			return res, nil
		}
		lastErr = err
		if isTimeout(err) {
			timedOut = true
		}
	}

	metricSubmissions.WithLabelValues("failed").Inc()
	return Result{TimedOut: timedOut}, fmt.Errorf("%w: %v", ErrAllEndpointsFailed, lastErr)
}

func (c *Client) post(ctx context.Context, base string, body []byte) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", base+"/contact-webhook", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, fmt.Errorf("endpoint %s: %s", base, resp.Status)
	}

	var parsed webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("endpoint %s: decode response: %w", base, err)
	}
	return Result{OK: true, RequestID: parsed.RequestID, Message: parsed.Message}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
