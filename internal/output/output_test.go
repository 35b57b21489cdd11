package output

import (
	"bytes"
	"math/big"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/po/internal/lifecycle"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/txerrors"
)

func TestFormatTimeAgoFrom(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{time.Minute, "1m ago"},
		{59 * time.Minute, "59m ago"},
		{time.Hour, "1h ago"},
		{23 * time.Hour, "23h ago"},
		{24 * time.Hour, "1d ago"},
		{6 * 24 * time.Hour, "6d ago"},
		{8 * 24 * time.Hour, "2026-03-02"},
	}
	for _, tc := range tests {
		if got := FormatTimeAgoFrom(now.Add(-tc.ago), now); got != tc.want {
			t.Errorf("FormatTimeAgoFrom(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}

func TestFormatTimeUntil(t *testing.T) {
	now := time.Unix(1000, 0)
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "ended"},
		{0, "ended"},
		{30 * time.Second, "in <1m"},
		{5 * time.Minute, "in 5m"},
		{3 * time.Hour, "in 3h"},
		{72 * time.Hour, "in 3d"},
	}
	for _, tc := range tests {
		if got := FormatTimeUntil(now.Add(tc.in), now); got != tc.want {
			t.Errorf("FormatTimeUntil(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestShortAddress(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0x1234", "0x1234"},
		{"0x00000000219ab540356cBB839Cbe05303d7705Fa", "0x0000…05Fa"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := ShortAddress(tc.in); got != tc.want {
			t.Errorf("ShortAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusBadges(t *testing.T) {
	if got := FormatTaskStatus(models.TaskSubmitted); !strings.Contains(got, "[submitted]") {
		t.Errorf("task badge = %q", got)
	}
	if got := FormatProposalStatus(models.ProposalStatus("weird")); got != "[weird]" {
		t.Errorf("unknown badge = %q", got)
	}
	if got := FormatState(lifecycle.Confirmed); !strings.Contains(got, "confirmed") {
		t.Errorf("state badge = %q", got)
	}
}

func TestFormatTask(t *testing.T) {
	task := &models.Task{
		ID:         "7",
		Title:      "Write docs",
		Payout:     big.NewInt(1_500_000_000_000_000_000),
		Status:     models.TaskSubmitted,
		Claimer:    "0x00000000219ab540356cBB839Cbe05303d7705Fa",
		IsIndexing: true,
	}
	short := FormatTaskShort(task, 18, "PT")
	for _, want := range []string{"7", "Write docs", "1.5 PT", "[submitted]", "0x0000…05Fa", "(indexing)"} {
		if !strings.Contains(short, want) {
			t.Errorf("short form missing %q: %s", want, short)
		}
	}
	long := FormatTaskLong(task, "All the docs.", 18, "PT")
	if !strings.Contains(long, "AWAITING REVIEW") || !strings.Contains(long, "All the docs.") {
		t.Errorf("long form = %s", long)
	}
}

func TestFormatProposalLong(t *testing.T) {
	now := time.Unix(1000, 0)
	win := 1
	p := &models.Proposal{
		ID:            "0xdd-1",
		Title:         "Fund it",
		Status:        models.ProposalFinalized,
		EndsAt:        time.Unix(900, 0),
		NumOptions:    2,
		OptionVotes:   []*big.Int{big.NewInt(3), big.NewInt(5)},
		WinningOption: &win,
		Voters:        []string{"0xa", "0xb"},
	}
	got := FormatProposalLong(p, []string{"Yes", "No"}, now)
	for _, want := range []string{"0xdd-1: Fund it", "Ended:", "0. Yes", "1. No", "✓ winner", "2 voter(s)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Count(got, "winner") != 1 {
		t.Errorf("winner marked more than once:\n%s", got)
	}

	p.Status = models.ProposalOpen
	p.EndsAt = now.Add(2 * time.Hour)
	if short := FormatProposalShort(p, now); !strings.Contains(short, "ends in 2h") {
		t.Errorf("short = %s", short)
	}
}

func TestFormatOrganization(t *testing.T) {
	org := &models.Organization{
		ID:           "0xabc",
		Name:         "Acme",
		DDQuorum:     50,
		HybridQuorum: 60,
		Roles: []models.Role{
			{Index: 0, Name: "Admin", IsTopLevel: true, CanVote: true, MemberCount: 1},
			{Index: 1, Name: "Member", Vouching: models.VouchConfig{Enabled: true, Quorum: 2}},
		},
	}
	got := FormatOrganization(org, 3)
	for _, want := range []string{"Acme", "Members: 3", "dd 50%", "0. Admin", "admin, votes", "vouch 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestToaster(t *testing.T) {
	var buf bytes.Buffer
	toaster := NewToaster(&buf, false)

	toaster.Notify(lifecycle.Notification{Level: lifecycle.LevelInfo, Message: "simulated"})
	toaster.Notify(lifecycle.Notification{Level: lifecycle.LevelPending, Message: "Submitting vote…"})
	toaster.Notify(lifecycle.Notification{Level: lifecycle.LevelSuccess, Message: "Vote cast", TxHash: "0xaaaabbbbccccdddd"})
	toaster.Notify(lifecycle.Notification{
		Level:     lifecycle.LevelError,
		Message:   "Vote failed",
		Retryable: true,
		Err:       &txerrors.ParsedError{Category: txerrors.CategoryNetwork, UserMessage: "Network error"},
	})
	toaster.Notify(lifecycle.Notification{Level: lifecycle.LevelSuccess})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "0xaaaa…dddd") {
		t.Errorf("success line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "Vote failed: Network error (retry possible)") {
		t.Errorf("error line = %q", lines[2])
	}

	buf.Reset()
	NewToaster(&buf, true).Notify(lifecycle.Notification{Level: lifecycle.LevelInfo, Message: "simulated"})
	if !strings.Contains(buf.String(), "simulated") {
		t.Error("verbose toaster dropped info")
	}
}

func TestRenderDescriptionPlain(t *testing.T) {
	if got := RenderDescription("  # Title\n", true); got != "# Title" {
		t.Errorf("plain = %q", got)
	}
	if got, err := RenderMarkdownWithWidth("   ", 40); err != nil || got != "" {
		t.Errorf("blank markdown = %q, %v", got, err)
	}
}

func TestSanitizeDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims", "  hello \n", "hello"},
		{"strips escapes", "\x1b[31mred\x1b[0m \x1b]0;title\x07text", "red text"},
		{"empty", "\x1b[2J", ""},
	}
	for _, tt := range tests {
		if got := sanitizeDescription(tt.in); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}

	long := strings.Repeat("é", maxDescriptionBytes)
	got := sanitizeDescription(long)
	if !strings.HasSuffix(got, truncatedMarker) {
		t.Fatalf("long description not truncated: %d bytes", len(got))
	}
	body := strings.TrimSuffix(got, truncatedMarker)
	if len(body) > maxDescriptionBytes || !utf8.ValidString(body) {
		t.Errorf("truncated body invalid: %d bytes", len(body))
	}
}

func TestRenderDescriptionNonTerminalIsPlain(t *testing.T) {
	// go test stdout is not a terminal.
	in := "# Title\n\n\x1b[1mbody\x1b[0m"
	if got := RenderDescription(in, false); got != "# Title\n\nbody" {
		t.Errorf("got %q", got)
	}
}

func TestRenderMarkdownWithWidthClamps(t *testing.T) {
	words := strings.Repeat("word ", 60)
	got, err := RenderMarkdownWithWidth(words, 500)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(ansi.Strip(got), "\n") {
		if w := ansi.StringWidth(strings.TrimRight(line, " ")); w > maxDescriptionWidth {
			t.Fatalf("line width %d exceeds %d", w, maxDescriptionWidth)
		}
	}
}

func TestIndentString(t *testing.T) {
	if got := IndentString("a\nb", 2); got != "  a\n  b" {
		t.Errorf("IndentString = %q", got)
	}
	if IndentString("", 4) != "" {
		t.Error("empty string indented")
	}
}
