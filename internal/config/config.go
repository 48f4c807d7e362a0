// Package config builds the broker's runtime configuration from defaults
// overlaid with CONSOLE_MCP_-prefixed environment variables, the broker's
// specified configuration contract (see §6, External Interfaces).
//
// It layers values through koanf rather than hand-rolled os.Getenv parsing,
// matching the codebase's own environment-overlay pattern, so additional
// layers (a config file, flags) can be added later without touching call
// sites.
package config

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	koanf "github.com/knadh/koanf/v2"
)

const envPrefix = "CONSOLE_MCP_"

// Config holds every tunable the broker reads at startup. All fields have
// sane defaults; environment variables override the ports, ring sizes, and
// TTL. The heartbeat, command, spawn, and identifier fields keep their
// defaults and have no environment variable.
type Config struct {
	// WSPort is the loopback port the Client Hub's WebSocket endpoint binds.
	WSPort int
	// DiscoveryPort is the loopback port the HTTP Surface binds.
	DiscoveryPort int

	// MaxLogs / MaxNetwork cap the Bounded Ordered Store ring sizes.
	MaxLogs    int
	MaxNetwork int

	// LogTTL is the TTL applied to both stores; zero disables TTL eviction.
	LogTTL time.Duration

	// HeartbeatInterval is how often the Client Hub sweeps for dead clients.
	HeartbeatInterval time.Duration

	// CommandTimeout is the default deadline for execute/query correlator
	// calls; SnapshotTimeout is the (longer) deadline for DOM snapshots.
	CommandTimeout  time.Duration
	SnapshotTimeout time.Duration

	// SpawnLockTimeout bounds how long the Singleton Spawner waits to
	// acquire the cross-process lock; SpawnReadyTimeout bounds how long it
	// waits for a freshly spawned broker to answer /discover.
	SpawnLockTimeout  time.Duration
	SpawnReadyTimeout time.Duration

	// Identifier is the well-known string returned from /discover so
	// clients can disambiguate this broker from unrelated loopback services.
	Identifier string
}

// Default returns the configuration the broker starts with absent any
// environment overrides.
func Default() *Config {
	return &Config{
		WSPort:            9847,
		DiscoveryPort:     9846,
		MaxLogs:           1000,
		MaxNetwork:        1000,
		LogTTL:            0,
		HeartbeatInterval: 30 * time.Second,
		CommandTimeout:    10 * time.Second,
		SnapshotTimeout:   30 * time.Second,
		SpawnLockTimeout:  5 * time.Second,
		SpawnReadyTimeout: 10 * time.Second,
		Identifier:        "console-mcp-broker",
	}
}

// Load layers CONSOLE_MCP_-prefixed environment variables over the defaults
// and returns the resulting Config. It never fails: a malformed or absent
// environment variable simply leaves the default in place.
func Load() *Config {
	cfg := Default()

	k := koanf.New(".")
	_ = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)

	if v, ok := k.Get("port").(string); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WSPort = n
		}
	}
	if v, ok := k.Get("discovery_port").(string); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DiscoveryPort = n
		}
	}
	if v, ok := k.Get("max_logs").(string); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxLogs = n
		}
	}
	if v, ok := k.Get("max_network").(string); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxNetwork = n
		}
	}
	// CONSOLE_MCP_LOG_TTL_MINUTES: 0 or non-finite disables TTL.
	if v, ok := k.Get("log_ttl_minutes").(string); ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && !math.IsInf(n, 1) {
			cfg.LogTTL = time.Duration(n * float64(time.Minute))
		} else {
			cfg.LogTTL = 0
		}
	}

	return cfg
}
