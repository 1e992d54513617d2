package config

import (
	"os"
	"path/filepath"
	"testing"

	"quotebridge/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
retry:
  max_retries: 2
  delay_ms: 100
venues:
  bybit:
    ws_url: wss://stream.bybit.com/v5/public/spot
    ping_interval_sec: 20
paper:
  stream_latency_max_ms: 30
  commission_rate: 0.001
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
	if cfg.Retry.MaxRetries != 2 || cfg.Retry.DelayMs != 100 {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	vc, ok := cfg.Venues["bybit"]
	if !ok || vc.WSURL == "" || vc.PingIntervalSec != 20 {
		t.Fatalf("venue = %+v ok=%v", vc, ok)
	}
	if cfg.Paper.StreamLatencyMaxMs != 30 || cfg.Paper.CommissionRate != 0.001 {
		t.Fatalf("paper = %+v", cfg.Paper)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.DelayMs != 500 {
		t.Fatalf("defaults not applied: %+v", cfg.Retry)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if kind, _ := types.KindOf(err); kind != types.ErrKindConfig {
		t.Fatalf("error kind = %v, want config", kind)
	}
}

func TestLoadRejectsBadRetryValues(t *testing.T) {
	_, err := Load(writeConfig(t, "retry:\n  max_retries: -1\n"))
	if err == nil {
		t.Fatal("expected error for negative max_retries")
	}
	_, err = Load(writeConfig(t, "retry:\n  delay_ms: 0\n"))
	if err == nil {
		t.Fatal("expected error for zero delay")
	}
}
