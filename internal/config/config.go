package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Webhook struct {
		DownstreamURL  string
		ForwardTimeout time.Duration
	}
	Gateway struct {
		// Mount paths on this server for the per-platform routes.
		PrimaryBase  string
		FallbackBase string
		// Absolute endpoint bases the submit client and prober call. Default
		// to this server's own address.
		PrimaryURL    string
		FallbackURL   string
		SubmitTimeout time.Duration
	}
	Discovery struct {
		ProbeTimeout time.Duration
		CacheTTL     time.Duration
	}
	Telemetry struct {
		EventCap    int
		SinkURL     string
		SinkTimeout time.Duration
		LogPath     string
	}
	Platform struct {
		Runtime string
		Service string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("webhook.forward_timeout_sec", 10)

	v.SetDefault("gateway.primary_base", "/api")
	v.SetDefault("gateway.fallback_base", "/fn")
	v.SetDefault("gateway.submit_timeout_sec", 15)

	v.SetDefault("discovery.probe_timeout_ms", 2500)
	v.SetDefault("discovery.cache_ttl_hours", 6)

	v.SetDefault("telemetry.event_cap", 1000)
	v.SetDefault("telemetry.sink_timeout_sec", 5)

	v.SetDefault("platform.runtime", "go")
	v.SetDefault("platform.service", "sitebeam-server")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("webhook.downstream_url", "CONTACT_WEBHOOK_URL")
	v.BindEnv("webhook.forward_timeout_sec", "WEBHOOK_FORWARD_TIMEOUT_SEC")

	v.BindEnv("gateway.primary_base", "GATEWAY_PRIMARY_BASE")
	v.BindEnv("gateway.fallback_base", "GATEWAY_FALLBACK_BASE")
	v.BindEnv("gateway.primary_url", "GATEWAY_PRIMARY_URL")
	v.BindEnv("gateway.fallback_url", "GATEWAY_FALLBACK_URL")
	v.BindEnv("gateway.submit_timeout_sec", "GATEWAY_SUBMIT_TIMEOUT_SEC")

	v.BindEnv("discovery.probe_timeout_ms", "DISCOVERY_PROBE_TIMEOUT_MS")
	v.BindEnv("discovery.cache_ttl_hours", "DISCOVERY_CACHE_TTL_HOURS")

	v.BindEnv("telemetry.event_cap", "TELEMETRY_EVENT_CAP")
	v.BindEnv("telemetry.sink_url", "ANALYTICS_SINK_URL")
	v.BindEnv("telemetry.sink_timeout_sec", "ANALYTICS_SINK_TIMEOUT_SEC")
	v.BindEnv("telemetry.log_path", "TELEMETRY_LOG_PATH")

	v.BindEnv("platform.runtime", "PLATFORM_RUNTIME")
	v.BindEnv("platform.service", "PLATFORM_SERVICE")

	var c Config
	c.Server.Port = v.GetString("server.port")
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Webhook.DownstreamURL = v.GetString("webhook.downstream_url")
	c.Webhook.ForwardTimeout = time.Duration(v.GetInt("webhook.forward_timeout_sec")) * time.Second

	c.Gateway.PrimaryBase = v.GetString("gateway.primary_base")
	c.Gateway.FallbackBase = v.GetString("gateway.fallback_base")
	c.Gateway.SubmitTimeout = time.Duration(v.GetInt("gateway.submit_timeout_sec")) * time.Second
	c.Gateway.PrimaryURL = v.GetString("gateway.primary_url")
	if c.Gateway.PrimaryURL == "" {
		c.Gateway.PrimaryURL = "http://localhost:" + c.Server.Port + c.Gateway.PrimaryBase
	}
	c.Gateway.FallbackURL = v.GetString("gateway.fallback_url")
	if c.Gateway.FallbackURL == "" {
		c.Gateway.FallbackURL = "http://localhost:" + c.Server.Port + c.Gateway.FallbackBase
	}

	c.Discovery.ProbeTimeout = time.Duration(v.GetInt("discovery.probe_timeout_ms")) * time.Millisecond
	c.Discovery.CacheTTL = time.Duration(v.GetInt("discovery.cache_ttl_hours")) * time.Hour

	c.Telemetry.EventCap = v.GetInt("telemetry.event_cap")
	c.Telemetry.SinkURL = v.GetString("telemetry.sink_url")
	c.Telemetry.SinkTimeout = time.Duration(v.GetInt("telemetry.sink_timeout_sec")) * time.Second
	c.Telemetry.LogPath = v.GetString("telemetry.log_path")

	c.Platform.Runtime = v.GetString("platform.runtime")
	c.Platform.Service = v.GetString("platform.service")

	log.Printf("config loaded: port=%s event_cap=%d", c.Server.Port, c.Telemetry.EventCap)
	return c
}
