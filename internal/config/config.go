// Package config reads and writes the global po config at
// ~/.config/po/config.json. Every getter resolves env > config.json >
// default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	configFile = "config.json"
	lockFile   = "config.json.lock"
)

// Defaults
const (
	DefaultRPCURL         = "http://localhost:8545"
	DefaultIPFSAPIURL     = "http://localhost:5001"
	DefaultIPFSGatewayURL = "https://ipfs.io"
	DefaultGasLimitMax    = 10_000_000
	DefaultMiningTimeout  = 120 * time.Second
	DefaultDedupWindow    = 2 * time.Second
	DefaultBudget         = 60 * time.Second
	DefaultSlowInterval   = 60 * time.Second
	DefaultCacheSize      = 512
	DefaultCacheTTL       = 5 * time.Minute
	DefaultLogLevel       = "warn"
)

// DefaultSchedule is the reconcile retry schedule after the immediate
// first check.
var DefaultSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second}

// ReconcileConfig tunes indexer reconciliation.
type ReconcileConfig struct {
	Schedule     string `json:"schedule,omitempty"`      // comma-separated durations
	Budget       string `json:"budget,omitempty"`        // duration string
	SlowInterval string `json:"slow_interval,omitempty"` // duration string
}

// CacheConfig tunes the subgraph cache.
type CacheConfig struct {
	Size *int   `json:"size,omitempty"`
	TTL  string `json:"ttl,omitempty"`
}

// WebhookConfig enables the notification webhook.
type WebhookConfig struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

// Config is the on-disk config.
type Config struct {
	RPCURL          string          `json:"rpc_url,omitempty"`
	SubgraphURL     string          `json:"subgraph_url,omitempty"`
	IPFSAPIURL      string          `json:"ipfs_api_url,omitempty"`
	IPFSGatewayURL  string          `json:"ipfs_gateway_url,omitempty"`
	DeployerAddress string          `json:"deployer_address,omitempty"`
	RegistryAddress string          `json:"registry_address,omitempty"`
	Keystore        string          `json:"keystore,omitempty"`
	DefaultOrg      string          `json:"default_org,omitempty"`
	LogLevel        string          `json:"log_level,omitempty"`
	GasLimitMax     *uint64         `json:"gas_limit_max,omitempty"`
	MiningTimeout   string          `json:"mining_timeout,omitempty"`
	DedupWindow     string          `json:"dedup_window,omitempty"`
	Reconcile       ReconcileConfig `json:"reconcile"`
	Cache           CacheConfig     `json:"cache"`
	Webhook         *WebhookConfig  `json:"webhook,omitempty"`
}

// Dir returns the config directory: PO_CONFIG_DIR, or ~/.config/po.
func Dir() (string, error) {
	if v := os.Getenv("PO_CONFIG_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "po"), nil
}

// Load reads the config. A missing file is an empty config.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes the config using atomic write (temp file + rename)
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	// May hold a webhook secret.
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, configFile))
}

// withLock serializes read-modify-write cycles using flock
func withLock(fn func() error) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, lockFile), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockFileExclusive(f); err != nil {
		return err
	}
	defer unlockFile(f)

	return fn()
}

// key describes one settable config key.
type key struct {
	env      string
	get      func(*Config) string
	set      func(*Config, string)
	validate func(string) error
}

var keys = map[string]key{
	"rpc_url":          {env: "PO_RPC_URL", get: func(c *Config) string { return c.RPCURL }, set: func(c *Config, v string) { c.RPCURL = v }, validate: validURL},
	"subgraph_url":     {env: "PO_SUBGRAPH_URL", get: func(c *Config) string { return c.SubgraphURL }, set: func(c *Config, v string) { c.SubgraphURL = v }, validate: validURL},
	"ipfs_api_url":     {env: "PO_IPFS_API_URL", get: func(c *Config) string { return c.IPFSAPIURL }, set: func(c *Config, v string) { c.IPFSAPIURL = v }, validate: validURL},
	"ipfs_gateway_url": {env: "PO_IPFS_GATEWAY_URL", get: func(c *Config) string { return c.IPFSGatewayURL }, set: func(c *Config, v string) { c.IPFSGatewayURL = v }, validate: validURL},
	"deployer_address": {env: "PO_DEPLOYER_ADDRESS", get: func(c *Config) string { return c.DeployerAddress }, set: func(c *Config, v string) { c.DeployerAddress = v }, validate: validAddress},
	"registry_address": {env: "PO_REGISTRY_ADDRESS", get: func(c *Config) string { return c.RegistryAddress }, set: func(c *Config, v string) { c.RegistryAddress = v }, validate: validAddress},
	"keystore":         {env: "PO_KEYSTORE", get: func(c *Config) string { return c.Keystore }, set: func(c *Config, v string) { c.Keystore = v }},
	"default_org":      {env: "PO_ORG", get: func(c *Config) string { return c.DefaultOrg }, set: func(c *Config, v string) { c.DefaultOrg = v }},
	"log_level":        {env: "PO_LOG_LEVEL", get: func(c *Config) string { return c.LogLevel }, set: func(c *Config, v string) { c.LogLevel = v }, validate: validLevel},
	"gas_limit_max": {env: "PO_GAS_LIMIT_MAX",
		get: func(c *Config) string {
			if c.GasLimitMax == nil {
				return ""
			}
			return strconv.FormatUint(*c.GasLimitMax, 10)
		},
		set: func(c *Config, v string) {
			if v == "" {
				c.GasLimitMax = nil
				return
			}
			n, _ := strconv.ParseUint(v, 10, 64)
			c.GasLimitMax = &n
		},
		validate: validUint},
	"mining_timeout":          {env: "PO_MINING_TIMEOUT", get: func(c *Config) string { return c.MiningTimeout }, set: func(c *Config, v string) { c.MiningTimeout = v }, validate: validDuration},
	"dedup_window":            {env: "PO_DEDUP_WINDOW", get: func(c *Config) string { return c.DedupWindow }, set: func(c *Config, v string) { c.DedupWindow = v }, validate: validDuration},
	"reconcile.schedule":      {env: "PO_RECONCILE_SCHEDULE", get: func(c *Config) string { return c.Reconcile.Schedule }, set: func(c *Config, v string) { c.Reconcile.Schedule = v }, validate: validSchedule},
	"reconcile.budget":        {env: "PO_RECONCILE_BUDGET", get: func(c *Config) string { return c.Reconcile.Budget }, set: func(c *Config, v string) { c.Reconcile.Budget = v }, validate: validDuration},
	"reconcile.slow_interval": {env: "PO_RECONCILE_SLOW_INTERVAL", get: func(c *Config) string { return c.Reconcile.SlowInterval }, set: func(c *Config, v string) { c.Reconcile.SlowInterval = v }, validate: validDuration},
	"cache.size": {env: "PO_CACHE_SIZE",
		get: func(c *Config) string {
			if c.Cache.Size == nil {
				return ""
			}
			return strconv.Itoa(*c.Cache.Size)
		},
		set: func(c *Config, v string) {
			if v == "" {
				c.Cache.Size = nil
				return
			}
			n, _ := strconv.Atoi(v)
			c.Cache.Size = &n
		},
		validate: validUint},
	"cache.ttl": {env: "PO_CACHE_TTL", get: func(c *Config) string { return c.Cache.TTL }, set: func(c *Config, v string) { c.Cache.TTL = v }, validate: validDuration},
	"webhook.url": {env: "PO_WEBHOOK_URL",
		get: func(c *Config) string {
			if c.Webhook == nil {
				return ""
			}
			return c.Webhook.URL
		},
		set: func(c *Config, v string) {
			if c.Webhook == nil {
				c.Webhook = &WebhookConfig{}
			}
			c.Webhook.URL = v
		},
		validate: validURL},
	"webhook.secret": {env: "PO_WEBHOOK_SECRET",
		get: func(c *Config) string {
			if c.Webhook == nil {
				return ""
			}
			return c.Webhook.Secret
		},
		set: func(c *Config, v string) {
			if c.Webhook == nil {
				c.Webhook = &WebhookConfig{}
			}
			c.Webhook.Secret = v
		}},
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EnvName returns the environment variable overriding name.
func EnvName(name string) string {
	return keys[name].env
}

// Set validates and persists one key. An empty value clears it.
func Set(name, value string) error {
	k, ok := keys[name]
	if !ok {
		return fmt.Errorf("unknown config key %q", name)
	}
	value = strings.TrimSpace(value)
	if value != "" && k.validate != nil {
		if err := k.validate(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return withLock(func() error {
		cfg, err := Load()
		if err != nil {
			return err
		}
		k.set(cfg, value)
		if cfg.Webhook != nil && cfg.Webhook.URL == "" && cfg.Webhook.Secret == "" {
			cfg.Webhook = nil
		}
		return Save(cfg)
	})
}

// Source says where a resolved value came from.
type Source string

const (
	SourceEnv     Source = "env"
	SourceFile    Source = "config"
	SourceDefault Source = "default"
)

// Get resolves one key with its source. The value is empty when the key
// has no default.
func Get(name string) (string, Source, error) {
	k, ok := keys[name]
	if !ok {
		return "", "", fmt.Errorf("unknown config key %q", name)
	}
	v, src := resolve(k)
	return v, src, nil
}

func resolve(k key) (string, Source) {
	if v := os.Getenv(k.env); v != "" {
		return v, SourceEnv
	}
	cfg, err := Load()
	if err == nil {
		if v := k.get(cfg); v != "" {
			return v, SourceFile
		}
	}
	return "", SourceDefault
}

func str(name, def string) string {
	if v, _ := resolve(keys[name]); v != "" {
		return v
	}
	return def
}

func duration(name string, def time.Duration) time.Duration {
	if v, _ := resolve(keys[name]); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

// GetRPCURL returns the JSON-RPC endpoint.
func GetRPCURL() string { return str("rpc_url", DefaultRPCURL) }

// GetSubgraphURL returns the subgraph GraphQL endpoint. There is no
// default; an empty value means the session cannot read.
func GetSubgraphURL() string { return str("subgraph_url", "") }

// GetIPFSAPIURL returns the IPFS HTTP API used for uploads.
func GetIPFSAPIURL() string { return str("ipfs_api_url", DefaultIPFSAPIURL) }

// GetIPFSGatewayURL returns the gateway used for reads.
func GetIPFSGatewayURL() string { return str("ipfs_gateway_url", DefaultIPFSGatewayURL) }

// GetDeployerAddress returns the org deployer override, zero when unset.
func GetDeployerAddress() common.Address { return address("deployer_address") }

// GetRegistryAddress returns the org registry override, zero when unset.
func GetRegistryAddress() common.Address { return address("registry_address") }

func address(name string) common.Address {
	v := str(name, "")
	if !common.IsHexAddress(v) {
		return common.Address{}
	}
	return common.HexToAddress(v)
}

// GetKeystore returns the keystore file path.
func GetKeystore() string { return str("keystore", "") }

// GetDefaultOrg returns the organization commands act on without --org.
func GetDefaultOrg() string { return str("default_org", "") }

// GetLogLevel returns the slog level name.
func GetLogLevel() string { return str("log_level", DefaultLogLevel) }

// GetGasLimitMax returns the gas cap applied to estimates.
// Priority: PO_GAS_LIMIT_MAX env > config.json gas_limit_max > 10,000,000
func GetGasLimitMax() uint64 {
	if v, _ := resolve(keys["gas_limit_max"]); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return DefaultGasLimitMax
}

// GetMiningTimeout returns how long to wait for a receipt.
func GetMiningTimeout() time.Duration { return duration("mining_timeout", DefaultMiningTimeout) }

// GetDedupWindow returns the idempotency window of writes.
func GetDedupWindow() time.Duration { return duration("dedup_window", DefaultDedupWindow) }

// GetReconcileSchedule returns the retry offsets after the immediate
// first check.
func GetReconcileSchedule() []time.Duration {
	if v, _ := resolve(keys["reconcile.schedule"]); v != "" {
		if s, err := ParseSchedule(v); err == nil {
			return s
		}
	}
	return append([]time.Duration(nil), DefaultSchedule...)
}

// GetReconcileBudget returns how long a write is checked on the fast
// schedule before it is reported as slow.
func GetReconcileBudget() time.Duration { return duration("reconcile.budget", DefaultBudget) }

// GetReconcileSlowInterval returns the polling interval after the budget.
func GetReconcileSlowInterval() time.Duration {
	return duration("reconcile.slow_interval", DefaultSlowInterval)
}

// GetCacheSize returns the subgraph cache capacity.
func GetCacheSize() int {
	if v, _ := resolve(keys["cache.size"]); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultCacheSize
}

// GetCacheTTL returns the subgraph cache entry lifetime.
func GetCacheTTL() time.Duration { return duration("cache.ttl", DefaultCacheTTL) }

// GetWebhookURL returns the webhook URL.
// Priority: PO_WEBHOOK_URL env > config.json webhook.url.
func GetWebhookURL() string { return str("webhook.url", "") }

// GetWebhookSecret returns the webhook HMAC secret.
// Priority: PO_WEBHOOK_SECRET env > config.json webhook.secret.
func GetWebhookSecret() string { return str("webhook.secret", "") }

// ParseSchedule parses "2s,4s,8s".
func ParseSchedule(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, err
		}
		if d <= 0 || (len(out) > 0 && d <= out[len(out)-1]) {
			return nil, fmt.Errorf("schedule must be positive and increasing: %q", s)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty schedule")
	}
	return out, nil
}

func validURL(v string) error {
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return fmt.Errorf("%q is not an http(s) URL", v)
	}
	return nil
}

func validAddress(v string) error {
	if !common.IsHexAddress(v) {
		return fmt.Errorf("%q is not an address", v)
	}
	return nil
}

func validUint(v string) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		return fmt.Errorf("%q is not a positive integer", v)
	}
	return nil
}

func validDuration(v string) error {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("%q is not a positive duration", v)
	}
	return nil
}

func validSchedule(v string) error {
	_, err := ParseSchedule(v)
	return err
}

func validLevel(v string) error {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("%q is not one of debug, info, warn, error", v)
}
