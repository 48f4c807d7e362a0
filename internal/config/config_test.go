package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.WSPort != 9847 {
		t.Errorf("WSPort = %d, want 9847", cfg.WSPort)
	}
	if cfg.DiscoveryPort != 9846 {
		t.Errorf("DiscoveryPort = %d, want 9846", cfg.DiscoveryPort)
	}
	if cfg.MaxLogs != 1000 || cfg.MaxNetwork != 1000 {
		t.Errorf("MaxLogs/MaxNetwork = %d/%d, want 1000/1000", cfg.MaxLogs, cfg.MaxNetwork)
	}
	if cfg.LogTTL != 0 {
		t.Errorf("LogTTL = %v, want 0 (disabled)", cfg.LogTTL)
	}
	if cfg.Identifier != "console-mcp-broker" {
		t.Errorf("Identifier = %q, want console-mcp-broker", cfg.Identifier)
	}
}

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	fn()
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	withEnv(t, map[string]string{
		"CONSOLE_MCP_PORT":            "7000",
		"CONSOLE_MCP_DISCOVERY_PORT":  "7001",
		"CONSOLE_MCP_MAX_LOGS":        "50",
		"CONSOLE_MCP_MAX_NETWORK":     "75",
		"CONSOLE_MCP_LOG_TTL_MINUTES": "2",
	}, func() {
		cfg := Load()
		if cfg.WSPort != 7000 {
			t.Errorf("WSPort = %d, want 7000", cfg.WSPort)
		}
		if cfg.DiscoveryPort != 7001 {
			t.Errorf("DiscoveryPort = %d, want 7001", cfg.DiscoveryPort)
		}
		if cfg.MaxLogs != 50 {
			t.Errorf("MaxLogs = %d, want 50", cfg.MaxLogs)
		}
		if cfg.MaxNetwork != 75 {
			t.Errorf("MaxNetwork = %d, want 75", cfg.MaxNetwork)
		}
		if cfg.LogTTL != 2*time.Minute {
			t.Errorf("LogTTL = %v, want 2m", cfg.LogTTL)
		}
	})
}

func TestLoadTTLZeroOrNonFiniteDisablesTTL(t *testing.T) {
	for _, v := range []string{"0", "garbage", "-5", "NaN"} {
		os.Setenv("CONSOLE_MCP_LOG_TTL_MINUTES", v)
		cfg := Load()
		if cfg.LogTTL != 0 {
			t.Errorf("LOG_TTL_MINUTES=%q: LogTTL = %v, want 0", v, cfg.LogTTL)
		}
	}
	os.Unsetenv("CONSOLE_MCP_LOG_TTL_MINUTES")
}

func TestLoadIgnoresUnparsablePort(t *testing.T) {
	withEnv(t, map[string]string{"CONSOLE_MCP_PORT": "not-a-port"}, func() {
		cfg := Load()
		if cfg.WSPort != 9847 {
			t.Errorf("WSPort = %d, want default 9847 on unparsable override", cfg.WSPort)
		}
	})
}
