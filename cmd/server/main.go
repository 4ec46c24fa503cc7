package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"sitebeam/agent/internal/api"
	"sitebeam/agent/internal/config"
	"sitebeam/agent/internal/discovery"
	"sitebeam/agent/internal/eventlog"
	"sitebeam/agent/internal/gateway"
	"sitebeam/agent/internal/sink"
	"sitebeam/agent/internal/stream"
	"sitebeam/agent/internal/telemetry"
	"sitebeam/agent/internal/webhook"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	var archive telemetry.Archiver
	var evlog *eventlog.Log
	if cfg.Telemetry.LogPath != "" {
		var err error
		evlog, err = eventlog.Open(cfg.Telemetry.LogPath)
		if err != nil {
			log.Println("event log disabled:", err)
		} else {
			archive = evlog
			defer evlog.Close()
		}
	}

	var fw telemetry.Forwarder = sink.Nop{}
	if cfg.Telemetry.SinkURL != "" {
		fw = sink.NewHTTPSink(cfg.Telemetry.SinkURL, cfg.Telemetry.SinkTimeout)
	}

	reg := stream.NewRegistry()
	defer reg.Close()
	rec := telemetry.New(telemetry.Options{
		Cap:       cfg.Telemetry.EventCap,
		Forwarder: fw,
		Archive:   archive,
		Broadcast: reg.Broadcast,
	})

	submit := gateway.NewClient([]string{cfg.Gateway.PrimaryURL, cfg.Gateway.FallbackURL}, cfg.Gateway.SubmitTimeout)
	prober := discovery.NewProber([]string{cfg.Gateway.PrimaryURL, cfg.Gateway.FallbackURL}, cfg.Discovery.ProbeTimeout)
	cache := discovery.NewCache(discovery.NewMemStorage(), cfg.Discovery.CacheTTL)
	proxy := webhook.New(cfg.Webhook.DownstreamURL, cfg.Webhook.ForwardTimeout)

	h := api.NewHandlers(cfg, rec, submit, prober, cache)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h, proxy))
	wss := stream.NewServer(reg)
	mux.HandleFunc("/ws/events", wss.HandleEvents)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Drain the telemetry queue before the listener goes away.
		if err := rec.Close(ctx); err != nil {
			log.Println("telemetry drain:", err)
		}
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
