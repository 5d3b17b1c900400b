package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("HOMEY_BRIDGE_CONFIG", path)
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("HOMEY_BRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want a config loading error", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "no hubs",
			content: `
bridge:
  id: test-bridge
database:
  path: "/tmp/unused.db"
`,
			want: "at least one hub is required",
		},
		{
			name: "hub address with scheme",
			content: `
hubs:
  - id: living
    address: "ws://192.168.1.40:7777"
`,
			want: "must not include a scheme",
		},
		{
			name: "empty database path",
			content: `
database:
  path: ""
hubs:
  - id: living
    address: "192.168.1.40:7777"
`,
			want: "database.path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.content)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			err := run(ctx)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

// TestRun_MQTTUnavailable verifies startup stops at the broker when none is
// listening, after the database has been prepared.
func TestRun_MQTTUnavailable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "homey.db")
	writeConfig(t, `
database:
  path: "`+dbPath+`"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "homey-bridge-test"
logging:
  level: error
  format: text
hubs:
  - id: living
    address: "127.0.0.1:19998"
`)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "connecting to MQTT") {
		t.Fatalf("run() error = %v, want an MQTT connection error", err)
	}
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("database not created before MQTT connect: %v", statErr)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HOMEY_BRIDGE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("HOMEY_BRIDGE_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}
