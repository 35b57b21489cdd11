package version

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"v1.2.0", "v1.1.9", true},
		{"1.2.0", "v1.2.0", false},
		{"v2.0.0", "1.9.9", true},
		{"v1.0.0", "v1.0.0-beta", true},
		{"v1.0.0-beta", "v1.0.0", false},
		{"garbage", "v1.0.0", false},
		{"v1.0.0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.latest+"_"+tt.current, func(t *testing.T) {
			if got := IsNewer(tt.latest, tt.current); got != tt.want {
				t.Errorf("IsNewer(%q, %q) = %v, want %v", tt.latest, tt.current, got, tt.want)
			}
		})
	}
}

func TestIsDevelopmentVersion(t *testing.T) {
	for _, v := range []string{"", "unknown", "dev", "devel", "devel+abc123"} {
		if !IsDevelopmentVersion(v) {
			t.Errorf("IsDevelopmentVersion(%q) = false", v)
		}
	}
	if IsDevelopmentVersion("v0.4.0") {
		t.Error("release treated as development")
	}
}

func TestUpdateCommand(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"v1.2.3", `go install -ldflags "-X main.Version=v1.2.3" github.com/marcus/po@v1.2.3`},
		{"v1.0.0-rc.1", `go install -ldflags "-X main.Version=v1.0.0-rc.1" github.com/marcus/po@v1.0.0-rc.1`},
		{"v1.2.3; rm -rf /", ""},
		{"v1.2.3--", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := UpdateCommand(tt.version); got != tt.want {
			t.Errorf("UpdateCommand(%q) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func releaseServer(t *testing.T, tag string, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		fmt.Fprintf(w, `{"tag_name":%q,"html_url":"https://example.test/%s"}`, tag, tag)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	var hits int
	srv := releaseServer(t, "v0.5.0", &hits)
	c := Checker{URL: srv.URL}

	got := c.Check(context.Background(), "v0.4.0")
	if got.Error != nil || !got.HasUpdate || got.LatestVersion != "v0.5.0" {
		t.Fatalf("Check = %+v", got)
	}
	if got := c.Check(context.Background(), "dev"); got.HasUpdate || hits != 1 {
		t.Fatalf("development build checked: %+v, hits %d", got, hits)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer failing.Close()
	if got := (Checker{URL: failing.URL}).Check(context.Background(), "v0.4.0"); got.Error == nil {
		t.Fatal("expected error for non-200")
	}
}

func TestCached(t *testing.T) {
	t.Setenv("PO_CONFIG_DIR", t.TempDir())
	var hits int
	srv := releaseServer(t, "v0.5.0", &hits)
	c := Checker{URL: srv.URL}

	for range 2 {
		if got := c.Cached(context.Background(), "v0.4.0"); !got.HasUpdate {
			t.Fatalf("Cached = %+v", got)
		}
	}
	if hits != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}
	if !strings.HasSuffix(cachePath(), "version_cache.json") {
		t.Fatalf("cachePath = %q", cachePath())
	}
}

func TestIsCacheValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		entry *CacheEntry
		want  bool
	}{
		{"nil", nil, false},
		{"fresh", &CacheEntry{CurrentVersion: "v1.0.0", CheckedAt: now}, true},
		{"expired", &CacheEntry{CurrentVersion: "v1.0.0", CheckedAt: now.Add(-7 * time.Hour)}, false},
		{"upgraded", &CacheEntry{CurrentVersion: "v0.9.0", CheckedAt: now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCacheValid(tt.entry, "v1.0.0"); got != tt.want {
				t.Errorf("IsCacheValid = %v, want %v", got, tt.want)
			}
		})
	}
}
