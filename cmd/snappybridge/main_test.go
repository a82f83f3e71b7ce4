package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SNAPPY_CONFIG", "/nonexistent/path/config.yaml")

	ctx := context.Background()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidHubProtocol verifies run fails validation on a bad config.
func TestRun_InvalidHubProtocol(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
hub:
  host: "127.0.0.1"
  port: 5001
  protocol: "http"
  target: "localhost"
  path: "snappy"

snapserver:
  host: "localhost"
  port: 1780

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("SNAPPY_CONFIG", configPath)

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail with invalid hub protocol")
	}
}

// TestGetConfigPath verifies environment override and default.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("SNAPPY_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("SNAPPY_CONFIG", "/etc/snappy/config.yaml")
	if got := getConfigPath(); got != "/etc/snappy/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", got)
	}
}
