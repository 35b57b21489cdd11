package version

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/marcus/po/internal/config"
)

// cacheTTL bounds how long a check result is reused.
const cacheTTL = 6 * time.Hour

// CacheEntry is the stored result of the last successful check.
type CacheEntry struct {
	LatestVersion  string    `json:"latest_version"`
	CurrentVersion string    `json:"current_version"`
	CheckedAt      time.Time `json:"checked_at"`
	HasUpdate      bool      `json:"has_update"`
}

func cachePath() string {
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "version_cache.json")
}

// LoadCache reads the cache file.
func LoadCache() (*CacheEntry, error) {
	data, err := os.ReadFile(cachePath())
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveCache writes the cache file, creating the config directory.
func SaveCache(entry *CacheEntry) error {
	path := cachePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IsCacheValid reports whether entry was recorded for currentVersion within
// the TTL.
func IsCacheValid(entry *CacheEntry, currentVersion string) bool {
	if entry == nil || entry.CurrentVersion != currentVersion {
		return false
	}
	return time.Since(entry.CheckedAt) < cacheTTL
}
