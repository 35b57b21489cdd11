package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PO_CONFIG_DIR", dir)
	for _, k := range Keys() {
		t.Setenv(EnvName(k), "")
	}
	return dir
}

func TestDefaults(t *testing.T) {
	isolate(t)
	if got := GetRPCURL(); got != DefaultRPCURL {
		t.Errorf("rpc = %q", got)
	}
	if got := GetGasLimitMax(); got != DefaultGasLimitMax {
		t.Errorf("gas = %d", got)
	}
	if got := GetReconcileSchedule(); len(got) != 5 || got[0] != 2*time.Second || got[4] != 32*time.Second {
		t.Errorf("schedule = %v", got)
	}
	if got := GetCacheSize(); got != DefaultCacheSize {
		t.Errorf("cache size = %d", got)
	}
	if GetSubgraphURL() != "" || GetWebhookURL() != "" {
		t.Error("keys without defaults should be empty")
	}
}

func TestSetAndPriority(t *testing.T) {
	dir := isolate(t)
	if err := Set("mining_timeout", "30s"); err != nil {
		t.Fatal(err)
	}
	if got := GetMiningTimeout(); got != 30*time.Second {
		t.Fatalf("file value = %v", got)
	}
	v, src, err := Get("mining_timeout")
	if err != nil || v != "30s" || src != SourceFile {
		t.Errorf("Get = %q %q %v", v, src, err)
	}

	t.Setenv("PO_MINING_TIMEOUT", "45s")
	if got := GetMiningTimeout(); got != 45*time.Second {
		t.Errorf("env value = %v", got)
	}
	t.Setenv("PO_MINING_TIMEOUT", "soon")
	if got := GetMiningTimeout(); got != DefaultMiningTimeout {
		t.Errorf("invalid env should fall back to default, got %v", got)
	}

	info, err := os.Stat(filepath.Join(dir, configFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v", info.Mode().Perm())
	}
}

func TestSetValidation(t *testing.T) {
	isolate(t)
	tests := []struct {
		key, value string
		ok         bool
	}{
		{"rpc_url", "https://rpc.example", true},
		{"rpc_url", "rpc.example", false},
		{"deployer_address", "0x00000000219ab540356cBB839Cbe05303d7705Fa", true},
		{"deployer_address", "0x1234", false},
		{"gas_limit_max", "0", false},
		{"gas_limit_max", "5000000", true},
		{"reconcile.schedule", "1s,2s", true},
		{"reconcile.schedule", "2s,1s", false},
		{"log_level", "loud", false},
		{"nope", "x", false},
	}
	for _, tt := range tests {
		err := Set(tt.key, tt.value)
		if (err == nil) != tt.ok {
			t.Errorf("Set(%s, %s) err = %v", tt.key, tt.value, err)
		}
	}
	if got := GetGasLimitMax(); got != 5_000_000 {
		t.Errorf("gas = %d", got)
	}
}

func TestWebhookClear(t *testing.T) {
	isolate(t)
	if err := Set("webhook.url", "https://hooks.example/x"); err != nil {
		t.Fatal(err)
	}
	if err := Set("webhook.secret", "s3cret"); err != nil {
		t.Fatal(err)
	}
	if GetWebhookURL() != "https://hooks.example/x" || GetWebhookSecret() != "s3cret" {
		t.Fatal("webhook not stored")
	}
	Set("webhook.url", "")
	Set("webhook.secret", "")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Webhook != nil {
		t.Errorf("webhook = %+v", cfg.Webhook)
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2s,4s,8s", 3, true},
		{" 1s , 90s ", 2, true},
		{"", 0, false},
		{"0s", 0, false},
		{"4s,4s", 0, false},
		{"fast", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.in)
		if (err == nil) != tt.ok || len(got) != tt.want {
			t.Errorf("ParseSchedule(%q) = %v, %v", tt.in, got, err)
		}
	}
}
