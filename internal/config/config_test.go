package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pulseai/pulsewatch/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
telegram:
  token: "123456:test-token"
  operator_id: 42
web:
  username: admin
  password: pulse2024
  jwt_secret: "0123456789abcdef0123456789abcdef"
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Log.Level)
	}
	if cfg.Database.Path != config.DefaultDBPath {
		t.Errorf("default db path = %q, want %q", cfg.Database.Path, config.DefaultDBPath)
	}
	if cfg.Chat.SessionTimeout != 5*time.Minute {
		t.Errorf("default session timeout = %s, want 5m", cfg.Chat.SessionTimeout)
	}
	if len(cfg.Chat.Farewells) == 0 {
		t.Error("default farewells should not be empty")
	}
	if cfg.Web.Addr != config.DefaultWebAddr {
		t.Errorf("default web addr = %q, want %q", cfg.Web.Addr, config.DefaultWebAddr)
	}
	if cfg.Web.PushInterval != 10*time.Second {
		t.Errorf("default push interval = %s, want 10s", cfg.Web.PushInterval)
	}
	if task, ok := cfg.Scheduler.Tasks["stats_broadcast"]; !ok || !task.Enabled {
		t.Errorf("stats_broadcast task should be enabled by default, got %+v", cfg.Scheduler.Tasks)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
log:
  level: debug
chat:
  session_timeout: 10m
  farewells: ["bye now"]
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Chat.SessionTimeout != 10*time.Minute {
		t.Errorf("session timeout = %s, want 10m", cfg.Chat.SessionTimeout)
	}
	if len(cfg.Chat.Farewells) != 1 || cfg.Chat.Farewells[0] != "bye now" {
		t.Errorf("farewells = %v, want [bye now]", cfg.Chat.Farewells)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			"missing telegram token",
			`
telegram:
  operator_id: 42
web:
  username: admin
  password: pw
  jwt_secret: "0123456789abcdef0123456789abcdef"
`,
		},
		{
			"short jwt secret",
			`
telegram:
  token: "123456:test-token"
  operator_id: 42
web:
  username: admin
  password: pw
  jwt_secret: short
`,
		},
		{
			"invalid log level",
			minimalConfig + `
log:
  level: loud
`,
		},
		{
			"session timeout out of range",
			minimalConfig + `
chat:
  session_timeout: 5s
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := config.Load(path); err == nil {
				t.Error("Load() should fail validation")
			}
		})
	}
}
