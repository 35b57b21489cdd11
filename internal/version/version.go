// Package version checks GitHub releases for a newer po and caches the
// answer.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	repoOwner = "marcus"
	repoName  = "po"
	apiURL    = "https://api.github.com/repos/%s/%s/releases/latest"
)

// Release represents a GitHub release response.
type Release struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// CheckResult holds the result of a version check.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateURL      string
	HasUpdate      bool
	Error          error
}

// Checker fetches the latest release. The zero value queries GitHub.
type Checker struct {
	Client *http.Client
	URL    string
}

// Check fetches the latest release and compares versions. Development
// builds never report an update.
func (c Checker) Check(ctx context.Context, currentVersion string) CheckResult {
	result := CheckResult{CurrentVersion: currentVersion}
	if IsDevelopmentVersion(currentVersion) {
		return result
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	url := c.URL
	if url == "" {
		url = fmt.Sprintf(apiURL, repoOwner, repoName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err
		return result
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		result.Error = err
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("github api: %s", resp.Status)
		return result
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		result.Error = err
		return result
	}

	result.LatestVersion = release.TagName
	result.UpdateURL = release.HTMLURL
	result.HasUpdate = IsNewer(release.TagName, currentVersion)
	return result
}

// Cached answers from the on-disk cache when it is still valid, and
// otherwise checks and stores successful results.
func (c Checker) Cached(ctx context.Context, currentVersion string) CheckResult {
	if entry, err := LoadCache(); err == nil && IsCacheValid(entry, currentVersion) {
		return CheckResult{
			CurrentVersion: currentVersion,
			LatestVersion:  entry.LatestVersion,
			HasUpdate:      entry.HasUpdate,
		}
	}
	result := c.Check(ctx, currentVersion)
	if result.Error == nil && result.LatestVersion != "" {
		_ = SaveCache(&CacheEntry{
			LatestVersion:  result.LatestVersion,
			CurrentVersion: currentVersion,
			CheckedAt:      time.Now(),
			HasUpdate:      result.HasUpdate,
		})
	}
	return result
}

// IsDevelopmentVersion returns true for non-release versions.
func IsDevelopmentVersion(v string) bool {
	if v == "" || v == "unknown" || v == "dev" || v == "devel" {
		return true
	}
	return strings.HasPrefix(v, "devel+")
}

// IsNewer reports whether latest is a higher semantic version than current.
// Either side may omit the leading v.
func IsNewer(latest, current string) bool {
	l, c := canonical(latest), canonical(current)
	if !semver.IsValid(l) || !semver.IsValid(c) {
		return false
	}
	return semver.Compare(l, c) > 0
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// validVersionRegex matches release versions (v1.2.3, v1.2.3-beta, ...).
var validVersionRegex = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9]+([.-][a-zA-Z0-9]+)*)?$`)

// UpdateCommand generates the go install command for updating.
// Returns empty string if version is invalid (prevents shell injection).
func UpdateCommand(version string) string {
	if !validVersionRegex.MatchString(version) {
		return ""
	}
	return fmt.Sprintf(
		"go install -ldflags \"-X main.Version=%s\" github.com/marcus/po@%s",
		version, version,
	)
}
