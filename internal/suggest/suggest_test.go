package suggest

import (
	"slices"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"member", "member", 0},
		{"vote", "veto", 2},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestClosest(t *testing.T) {
	roles := []string{"Admin", "Contributor", "Member", "Reviewer"}
	tests := []struct {
		name    string
		unknown string
		want    string
	}{
		{"abbreviation", "contrib", "Contributor"},
		{"typo", "Contibutor", "Contributor"},
		{"case", "MEMBER", "Member"},
		{"short typo", "admn", "Admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Closest(tt.unknown, roles)
			if len(got) == 0 || got[0] != tt.want {
				t.Fatalf("Closest(%q) = %v, want %s first", tt.unknown, got, tt.want)
			}
		})
	}

	if got := Closest("zzzzzzzzzzzz", roles); len(got) != 0 {
		t.Errorf("unrelated input suggested %v", got)
	}
	if got := Closest("", roles); got != nil {
		t.Errorf("empty input suggested %v", got)
	}
}

func TestClosestCapsResults(t *testing.T) {
	keys := []string{"cache.size", "cache.ttl", "reconcile.budget", "reconcile.schedule", "reconcile.slow_interval"}
	got := Closest("e", keys)
	if len(got) > maxSuggestions {
		t.Fatalf("got %d suggestions", len(got))
	}
	if slices.Contains(Closest("cache", keys), "reconcile.budget") {
		t.Error("cache suggested an unrelated key")
	}
}

func TestHint(t *testing.T) {
	if Hint(nil) != "" {
		t.Error("hint for no suggestions")
	}
	if got := Hint([]string{"rpc_url"}); got != "did you mean rpc_url?" {
		t.Errorf("got %q", got)
	}
	if got := Hint([]string{"a", "b"}); got != "did you mean one of: a, b?" {
		t.Errorf("got %q", got)
	}
}
