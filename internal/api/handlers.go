package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"sitebeam/agent/internal/config"
	"sitebeam/agent/internal/discovery"
	"sitebeam/agent/internal/gateway"
	"sitebeam/agent/internal/telemetry"
)

type Handlers struct {
	cfg    config.Config
	rec    *telemetry.Recorder
	submit *gateway.Client
	prober *discovery.Prober
	cache  *discovery.Cache
}

func NewHandlers(cfg config.Config, rec *telemetry.Recorder, submit *gateway.Client, prober *discovery.Prober, cache *discovery.Cache) *Handlers {
	return &Handlers{cfg: cfg, rec: rec, submit: submit, prober: prober, cache: cache}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type ingestRequest struct {
	Name  string         `json:"name"`
	Props map[string]any `json:"props"`
}

// HandleIngestEvent records one client-reported event. Telemetry never fails
// the caller: a malformed body is the only rejection.
func (h *Handlers) HandleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var in ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid event"})
		return
	}
	h.rec.Track(toPayload(in))
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// toPayload maps known event names onto their typed variants; everything else
// stays a Custom event.
func toPayload(in ingestRequest) telemetry.Payload {
	str := func(k string) string {
		s, _ := in.Props[k].(string)
		return s
	}
	num := func(k string) float64 {
		n, _ := in.Props[k].(float64)
		return n
	}
	switch in.Name {
	case "funnel_step":
		meta := make(map[string]any)
		for k, v := range in.Props {
			if k != "step" && k != "value" {
				meta[k] = v
			}
		}
		return telemetry.FunnelStep{Step: str("step"), Value: num("value"), Meta: meta}
	case "ab_test_exposure":
		return telemetry.ABExposure{Test: str("test"), Variant: str("variant")}
	case "ab_test_conversion":
		return telemetry.ABConversion{Test: str("test"), Variant: str("variant"), Kind: str("conversion_type"), Value: num("value")}
	case "cta_click":
		return telemetry.CTAClick{Label: str("label"), Page: str("page")}
	default:
		return telemetry.Custom{Name: in.Name, Props: in.Props}
	}
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f *telemetry.Filter
	if name, session := q.Get("name"), q.Get("session"); name != "" || session != "" {
		f = &telemetry.Filter{Name: name, SessionID: session}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": h.rec.SessionID(),
		"events":     h.rec.Events(f),
	})
}

func (h *Handlers) HandleScroll(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Percent int `json:"percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid scroll report"})
		return
	}
	h.rec.ReportScroll(in.Percent)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h *Handlers) HandleFunnel(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("steps")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "steps query parameter required"})
		return
	}
	steps := strings.Split(raw, ",")
	writeJSON(w, http.StatusOK, map[string]any{"funnel": h.rec.FunnelData(steps)})
}

func (h *Handlers) HandleABTest(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name query parameter required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"test":     name,
		"variants": h.rec.ABTestResults(name),
	})
}

// HandleContactSubmit runs a form through the gateway client: validate,
// primary endpoint, then fallback. The response tells the UI whether to clear
// the form (success) or keep the entered values for a retry.
func (h *Handlers) HandleContactSubmit(w http.ResponseWriter, r *http.Request) {
	var form gateway.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	form.Page = r.Header.Get("Referer")
	form.UserAgent = r.Header.Get("User-Agent")

	h.rec.TrackFunnelStep("form_submitted", 0, nil)

	res, err := h.submit.Submit(r.Context(), &form)
	if err != nil {
		var verr *gateway.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": verr.Fields})
			return
		}
		h.rec.TrackFunnelStep("form_failed", 0, nil)
		msg := "Submission failed. Please try again or contact us directly."
		if res.TimedOut {
			msg = "Submission timed out. Please try again or contact us directly."
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": msg, "retain": true})
		return
	}

	h.rec.TrackFunnelStep("form_delivered", 0, map[string]any{"endpoint": res.Endpoint})
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"requestId": res.RequestID,
		"message":   res.Message,
	})
}

// HandleDiscovery returns a live base path, consulting the session cache
// first. DELETE invalidates the cache. Submission order is not driven by this
// cache; the two mechanisms are deliberately independent.
func (h *Handlers) HandleDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		h.cache.Invalidate()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	now := time.Now()
	if base, ok := h.cache.Get(now); ok {
		writeJSON(w, http.StatusOK, map[string]any{"base": base, "cached": true})
		return
	}
	base, err := h.prober.Discover(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "no live endpoint"})
		return
	}
	h.cache.Put(base, now)
	writeJSON(w, http.StatusOK, map[string]any{"base": base, "cached": false})
}
