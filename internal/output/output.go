// Package output provides styled terminal output helpers (success, error,
// warning, entity formatting and lifecycle toasts) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/po/internal/capability"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/lifecycle"
	"github.com/marcus/po/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	payoutStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	open     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	busy     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	review   = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	done     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	inactive = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	bad      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	proposalStyles = map[models.ProposalStatus]lipgloss.Style{
		models.ProposalOpen:                 open,
		models.ProposalAwaitingAnnouncement: busy,
		models.ProposalFinalized:            done,
		models.ProposalFinalizedNoQuorum:    inactive,
	}
	taskStyles = map[models.TaskStatus]lipgloss.Style{
		models.TaskOpen:      open,
		models.TaskApplied:   busy,
		models.TaskClaimed:   busy,
		models.TaskSubmitted: review,
		models.TaskApproved:  done,
		models.TaskRejected:  bad,
	}
	requestStyles = map[models.RequestStatus]lipgloss.Style{
		models.RequestPending:   busy,
		models.RequestApproved:  done,
		models.RequestCancelled: inactive,
	}
	stateStyles = map[lifecycle.State]lipgloss.Style{
		lifecycle.Sent:      pendingStyle,
		lifecycle.Mining:    pendingStyle,
		lifecycle.Pending:   busy,
		lifecycle.Confirmed: done,
		lifecycle.Failed:    bad,
		lifecycle.Cancelled: inactive,
	}
)

// OutputMode determines output format
type OutputMode int

const (
	ModeShort OutputMode = iota
	ModeLong
	ModeJSON
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeInvalidInput   = "invalid_input"
	ErrCodeNotEligible    = "not_eligible"
	ErrCodeCannotApprove  = "cannot_approve_own"
	ErrCodeNoOrganization = "no_organization"
	ErrCodeTransaction    = "transaction_failed"
	ErrCodeRejected       = "user_rejected"
	ErrCodeNetwork        = "network_error"
	ErrCodeUnknown        = "error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	JSONErrorWithDetails(code, message, nil)
}

// JSONErrorWithDetails outputs an error as JSON with additional context
func JSONErrorWithDetails(code, message string, details map[string]interface{}) {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		errObj["details"] = details
	}
	data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
	fmt.Println(string(data))
}

func badge[S ~string](s S, styles map[S]lipgloss.Style) string {
	style, ok := styles[s]
	if !ok {
		return fmt.Sprintf("[%s]", s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// FormatProposalStatus formats a proposal status with color.
func FormatProposalStatus(s models.ProposalStatus) string { return badge(s, proposalStyles) }

// FormatTaskStatus formats a task status with color.
func FormatTaskStatus(s models.TaskStatus) string { return badge(s, taskStyles) }

// FormatRequestStatus formats a token request status with color.
func FormatRequestStatus(s models.RequestStatus) string { return badge(s, requestStyles) }

// FormatState formats a lifecycle state with color.
func FormatState(s lifecycle.State) string { return badge(s, stateStyles) }

// FormatAmount renders a raw token amount with its symbol.
func FormatAmount(raw *big.Int, decimals uint8, symbol string) string {
	s := encoding.FormatTokenAmount(raw, decimals)
	if symbol != "" {
		s += " " + symbol
	}
	return s
}

// ShortAddress shortens a 0x address or hash to 0x1234…abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func indexing(flag bool) string {
	if !flag {
		return ""
	}
	return "  " + pendingStyle.Render("(indexing)")
}

// FormatProposalShort formats a proposal on one line.
func FormatProposalShort(p *models.Proposal, now time.Time) string {
	kind := "dd"
	if p.IsHybrid {
		kind = "hybrid"
	}
	parts := []string{
		titleStyle.Render(p.ID),
		subtleStyle.Render(kind),
		p.Title,
		FormatProposalStatus(p.Status),
	}
	if p.Status == models.ProposalOpen && !p.EndsAt.IsZero() {
		parts = append(parts, subtleStyle.Render("ends "+FormatTimeUntil(p.EndsAt, now)))
	}
	return strings.Join(parts, "  ") + indexing(p.IsIndexing)
}

// FormatProposalLong formats a proposal with its tallies.
func FormatProposalLong(p *models.Proposal, options []string, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", p.ID, p.Title)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Status: %s%s\n", FormatProposalStatus(p.Status), indexing(p.IsIndexing)))
	sb.WriteString(fmt.Sprintf("Contract: %s | Creator: %s\n", ShortAddress(p.Contract), ShortAddress(p.Creator)))
	if !p.EndsAt.IsZero() {
		if p.EndsAt.After(now) {
			sb.WriteString(fmt.Sprintf("Ends: %s (%s)\n", p.EndsAt.Format(time.RFC3339), FormatTimeUntil(p.EndsAt, now)))
		} else {
			sb.WriteString(fmt.Sprintf("Ended: %s\n", p.EndsAt.Format(time.RFC3339)))
		}
	}
	if len(p.RestrictedHatIDs) > 0 {
		sb.WriteString(fmt.Sprintf("Restricted to hats: %s\n", strings.Join(p.RestrictedHatIDs, ", ")))
	}

	sb.WriteString(SectionHeader("Options"))
	for i := 0; i < p.NumOptions; i++ {
		label := fmt.Sprintf("Option %d", i)
		if i < len(options) && options[i] != "" {
			label = options[i]
		}
		votes := "0"
		if i < len(p.OptionVotes) && p.OptionVotes[i] != nil {
			votes = p.OptionVotes[i].String()
		}
		mark := ""
		if p.WinningOption != nil && *p.WinningOption == i {
			mark = " " + successStyle.Render("✓ winner")
		}
		sb.WriteString(fmt.Sprintf("  %d. %s  %s%s\n", i, label, subtleStyle.Render(votes), mark))
	}
	if len(p.Voters) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d voter(s)\n", len(p.Voters)))
	}
	return sb.String()
}

// FormatTaskShort formats a task on one line.
func FormatTaskShort(t *models.Task, decimals uint8, symbol string) string {
	parts := []string{
		titleStyle.Render(t.ID),
		t.Title,
		payoutStyle.Render(FormatAmount(t.Payout, decimals, symbol)),
		FormatTaskStatus(t.Status),
	}
	if t.Claimer != "" {
		parts = append(parts, subtleStyle.Render(ShortAddress(t.Claimer)))
	}
	return strings.Join(parts, "  ") + indexing(t.IsIndexing)
}

// FormatTaskLong formats a task with its description.
func FormatTaskLong(t *models.Task, description string, decimals uint8, symbol string) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", t.ID, t.Title)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Status: %s%s\n", FormatTaskStatus(t.Status), indexing(t.IsIndexing)))
	sb.WriteString(fmt.Sprintf("Payout: %s\n", FormatAmount(t.Payout, decimals, symbol)))
	if t.Creator != "" {
		sb.WriteString(fmt.Sprintf("Creator: %s\n", t.Creator))
	}
	if t.Claimer != "" {
		sb.WriteString(fmt.Sprintf("Claimer: %s\n", t.Claimer))
	}
	if t.RequiresApplication {
		sb.WriteString(fmt.Sprintf("Applicants: %d\n", len(t.Applicants)))
	}
	if description != "" {
		sb.WriteString("\n")
		sb.WriteString(subtleStyle.Render("Description:"))
		sb.WriteString("\n")
		sb.WriteString(description)
		sb.WriteString("\n")
	}
	if t.Status == models.TaskSubmitted {
		sb.WriteString("\nAWAITING REVIEW - requires a task creator other than the claimer\n")
	}
	return sb.String()
}

// FormatRequestShort formats a token request on one line.
func FormatRequestShort(r *models.TokenRequest, decimals uint8, symbol string) string {
	parts := []string{
		titleStyle.Render(r.ID),
		ShortAddress(r.Requester),
		payoutStyle.Render(FormatAmount(r.Amount, decimals, symbol)),
		FormatRequestStatus(r.Status),
	}
	if r.Reason != "" {
		parts = append(parts, subtleStyle.Render(r.Reason))
	}
	return strings.Join(parts, "  ") + indexing(r.IsIndexing)
}

// FormatOrganization formats the organization header and its roles.
func FormatOrganization(org *models.Organization, members int) string {
	var sb strings.Builder
	name := org.Name
	if name == "" {
		name = org.ID
	}
	sb.WriteString(titleStyle.Render(name))
	sb.WriteString(indexing(org.IsIndexing))
	sb.WriteString("\n")
	sb.WriteString(subtleStyle.Render(org.ID))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Members: %d | Quorum: dd %d%%, hybrid %d%%", members, org.DDQuorum, org.HybridQuorum))
	if org.TokenSymbol != "" {
		sb.WriteString(fmt.Sprintf(" | Token: %s", org.TokenSymbol))
	}
	sb.WriteString("\n")

	if len(org.Roles) > 0 {
		sb.WriteString(SectionHeader("Roles"))
		for _, r := range org.Roles {
			flags := []string{}
			if r.IsTopLevel {
				flags = append(flags, "admin")
			}
			if r.CanVote {
				flags = append(flags, "votes")
			}
			if r.Vouching.Enabled {
				flags = append(flags, fmt.Sprintf("vouch %d", r.Vouching.Quorum))
			}
			line := fmt.Sprintf("  %d. %s  %s", r.Index, r.Name, subtleStyle.Render(fmt.Sprintf("%d wearer(s)", r.MemberCount)))
			if len(flags) > 0 {
				line += "  " + subtleStyle.Render("["+strings.Join(flags, ", ")+"]")
			}
			sb.WriteString(line + "\n")
		}
	}
	if len(org.VotingClasses) > 0 {
		sb.WriteString(SectionHeader("Voting classes"))
		for _, c := range org.VotingClasses {
			q := ""
			if c.Quadratic {
				q = " quadratic"
			}
			sb.WriteString(fmt.Sprintf("  %s %d%%%s\n", c.Strategy, c.SlicePct, q))
		}
	}
	return sb.String()
}

// FormatCapabilities lists what a wallet can do.
func FormatCapabilities(c *capability.Capabilities) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(c.Wallet))
	sb.WriteString("\n")
	switch {
	case c.IsAdmin:
		sb.WriteString("Admin\n")
	case c.IsMember:
		sb.WriteString("Member\n")
	default:
		sb.WriteString("Not a member\n")
	}
	checks := []struct {
		label string
		ok    bool
	}{
		{"propose (direct democracy)", c.CanProposeDirect},
		{"propose (hybrid)", c.CanProposeHybrid},
		{"vote", c.CanVote},
		{"create tasks", c.CanCreateTask},
		{"request tokens", c.CanRequestTokens},
		{"approve token requests", c.CanApproveTokenRequest},
		{"create education", c.CanCreateEducation},
		{"join", c.CanJoin},
	}
	for _, ch := range checks {
		mark := inactive.Render("✗")
		if ch.ok {
			mark = done.Render("✓")
		}
		sb.WriteString(fmt.Sprintf("  %s %s\n", mark, ch.label))
	}
	return sb.String()
}

// FormatRecord formats one lifecycle record on one line.
func FormatRecord(r *lifecycle.Record, now time.Time) string {
	parts := []string{
		subtleStyle.Render(r.ID),
		FormatState(r.State),
		r.Method,
	}
	if r.TxHash != "" {
		parts = append(parts, ShortAddress(r.TxHash))
	}
	parts = append(parts, subtleStyle.Render(FormatTimeAgoFrom(r.UpdatedAt, now)))
	if r.Err != nil {
		parts = append(parts, errorStyle.Render(r.Err.UserMessage))
	}
	return strings.Join(parts, "  ")
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	return FormatTimeAgoFrom(t, time.Now())
}

// FormatTimeAgoFrom is FormatTimeAgo relative to now.
func FormatTimeAgoFrom(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// FormatTimeUntil formats a future time as "in 3h", or "ended" once past.
func FormatTimeUntil(t, now time.Time) string {
	diff := t.Sub(now)
	switch {
	case diff <= 0:
		return "ended"
	case diff < time.Minute:
		return "in <1m"
	case diff < time.Hour:
		return fmt.Sprintf("in %dm", int(diff.Minutes()))
	case diff < 48*time.Hour:
		return fmt.Sprintf("in %dh", int(diff.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(diff.Hours()/24))
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nROLES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	indent := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
