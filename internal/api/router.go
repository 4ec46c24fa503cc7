package api

import (
	"net/http"

	"sitebeam/agent/internal/health"
	"sitebeam/agent/internal/webhook"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the webhook proxy and health check under both platform
// base paths, plus the telemetry and discovery routes.
func NewRouter(h *Handlers, proxy *webhook.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// The same proxy handler serves both platform paths through the HTTP
	// adapter; only the ping identity differs per platform.
	primary := h.cfg.Gateway.PrimaryBase
	fallback := h.cfg.Gateway.FallbackBase
	mux.Handle(primary+"/contact-webhook", proxy)
	mux.Handle(fallback+"/contact-webhook", proxy)
	mux.Handle(primary+"/ping", &health.Handler{Runtime: h.cfg.Platform.Runtime, Service: h.cfg.Platform.Service})
	mux.Handle(fallback+"/ping", &health.Handler{Runtime: h.cfg.Platform.Runtime + "-fn", Service: h.cfg.Platform.Service + "-fn"})

	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.HandleIngestEvent(w, r)
		case http.MethodGet:
			h.HandleListEvents(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/scroll", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleScroll(w, r)
	})

	mux.HandleFunc("/api/funnel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleFunnel(w, r)
	})

	mux.HandleFunc("/api/abtest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleABTest(w, r)
	})

	mux.HandleFunc("/api/contact", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleContactSubmit(w, r)
	})

	mux.HandleFunc("/api/discovery", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleDiscovery(w, r)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}
