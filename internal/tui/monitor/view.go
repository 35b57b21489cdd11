package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/po/internal/output"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.Err != nil && m.OrgName == "" {
		return m.renderError()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	// Calculate panel heights (3 panels + footer)
	availableHeight := m.Height - 3
	panelHeight := availableHeight / 3

	panels := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTransactionsPanel(panelHeight),
		m.renderIndexingPanel(panelHeight),
		m.renderActivityPanel(panelHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, panels, m.renderFooter())
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("po monitor (resize for full view)\n\n")
	if m.OrgName != "" {
		s.WriteString(fmt.Sprintf("Org: %s\n", m.OrgName))
	}
	s.WriteString(fmt.Sprintf("Writes: %d | Indexing: %d | Pending checks: %d\n",
		len(m.Records), len(m.Placeholders), m.Pending))
	s.WriteString(fmt.Sprintf("Open proposals: %d | Active tasks: %d | Requests: %d\n",
		len(m.Proposals), len(m.Tasks), len(m.Requests)))

	s.WriteString("\nq:quit r:refresh ?:help")

	return s.String()
}

// renderError renders an error message
func (m Model) renderError() string {
	return fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.Err)
}

// renderTransactionsPanel lists lifecycle records, newest first (Panel 1)
func (m Model) renderTransactionsPanel(height int) string {
	var content strings.Builder

	if len(m.Records) == 0 {
		content.WriteString(subtleStyle.Render("No writes in this session"))
		return m.wrapPanel("TRANSACTIONS", content.String(), height, PanelTransactions)
	}

	offset := m.ScrollOffset[PanelTransactions]
	visible := m.visibleItems(len(m.Records), offset, height-3)
	for i := offset; i < offset+visible; i++ {
		r := m.Records[len(m.Records)-1-i]
		mark := "  "
		if !r.State.IsTerminal() {
			mark = m.Spinner.View() + " "
		}
		line := fmt.Sprintf("%s%s %s %s", mark,
			timestampStyle.Render(r.UpdatedAt.Format("15:04:05")),
			formatState(r.State),
			titleStyle.Render(r.Method))
		if r.TxHash != "" {
			line += " " + subtleStyle.Render(output.ShortAddress(r.TxHash))
		}
		if r.Err != nil {
			line += " " + errorStyle.Render(r.Err.UserMessage)
		}
		content.WriteString(line)
		content.WriteString("\n")
	}

	return m.wrapPanel("TRANSACTIONS", content.String(), height, PanelTransactions)
}

// renderIndexingPanel shows placeholders and what is awaiting action (Panel 2)
func (m Model) renderIndexingPanel(height int) string {
	var lines []string

	if len(m.Placeholders) > 0 {
		lines = append(lines, sectionHeader.Render(fmt.Sprintf("INDEXING (%d):", len(m.Placeholders))))
		for _, p := range m.Placeholders {
			title := p.Title
			if title == "" {
				title = p.EntityID
			}
			state := m.Spinner.View()
			if p.Exhausted {
				state = errorStyle.Render("slow")
			}
			lines = append(lines, fmt.Sprintf("  %s %s %s %s", state, subtleStyle.Render(p.Family),
				truncateString(title, 40), subtleStyle.Render(output.ShortAddress(p.TxHash))))
		}
	}

	if len(m.Proposals) > 0 {
		lines = append(lines, sectionHeader.Render(fmt.Sprintf("PROPOSALS (%d):", len(m.Proposals))))
		now := time.Now()
		for i := range m.Proposals {
			lines = append(lines, "  "+output.FormatProposalShort(&m.Proposals[i], now))
		}
	}
	if len(m.Tasks) > 0 {
		lines = append(lines, sectionHeader.Render(fmt.Sprintf("TASKS (%d):", len(m.Tasks))))
		for i := range m.Tasks {
			lines = append(lines, "  "+output.FormatTaskShort(&m.Tasks[i], m.Decimals, m.Symbol))
		}
	}
	if len(m.Requests) > 0 {
		lines = append(lines, sectionHeader.Render(fmt.Sprintf("TOKEN REQUESTS (%d):", len(m.Requests))))
		for i := range m.Requests {
			lines = append(lines, "  "+output.FormatRequestShort(&m.Requests[i], m.Decimals, m.Symbol))
		}
	}

	if len(lines) == 0 {
		return m.wrapPanel("ORGANIZATION", subtleStyle.Render("Nothing open"), height, PanelIndexing)
	}
	offset := m.ScrollOffset[PanelIndexing]
	if offset >= len(lines) {
		offset = len(lines) - 1
	}
	return m.wrapPanel("ORGANIZATION", strings.Join(lines[offset:], "\n"), height, PanelIndexing)
}

// renderActivityPanel renders the refresh event feed (Panel 3)
func (m Model) renderActivityPanel(height int) string {
	var content strings.Builder

	if len(m.Activity) == 0 {
		content.WriteString(subtleStyle.Render("No confirmed writes yet"))
	} else {
		offset := m.ScrollOffset[PanelActivity]
		visible := m.visibleItems(len(m.Activity), offset, height-3)
		for i := offset; i < offset+visible; i++ {
			content.WriteString(m.formatActivityItem(m.Activity[i]))
			content.WriteString("\n")
		}
	}

	return m.wrapPanel("ACTIVITY", content.String(), height, PanelActivity)
}

// renderFooter renders the key hints, alerts and refresh time
func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  tab:switch  j/k:scroll  r:refresh  ?:help")

	alert := ""
	switch {
	case len(m.Placeholders) > 0 || m.Pending > 0:
		alert = indexingAlertStyle.Render(fmt.Sprintf(" [%d INDEXING] ", max(len(m.Placeholders), m.Pending)))
	case len(m.Records) > 0:
		alert = settledStyle.Render(" SETTLED ")
	}

	counts := subtleStyle.Render(fmt.Sprintf(" ✓%d ✗%d ", m.Metrics.Confirmed, m.Metrics.Failed))
	refresh := timestampStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(alert) - lipgloss.Width(counts) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}

	return fmt.Sprintf(" %s%s%s%s%s", keys, strings.Repeat(" ", padding), alert, counts, refresh)
}

// renderHelp renders the help overlay
func (m Model) renderHelp() string {
	help := `
MONITOR TUI - Key Bindings

NAVIGATION:
  Tab / Shift+Tab   Switch between panels
  1 / 2 / 3         Jump to panel
  j / k             Scroll active panel

ACTIONS:
  r                 Force refresh
  q / Ctrl+C        Quit

Press ? to close help
`
	return helpStyle.Render(help)
}

// wrapPanel wraps content in a panel with title and border
func (m Model) wrapPanel(title, content string, height int, panel Panel) string {
	style := panelStyle
	if m.ActivePanel == panel {
		style = activePanelStyle
	}

	titleStr := panelTitleStyle.Render(title)
	if m.OrgName != "" && panel == PanelIndexing {
		titleStr = panelTitleStyle.Render(title + " · " + m.OrgName)
	}

	contentWidth := m.Width - 4 // Account for border and padding

	lines := strings.Split(content, "\n")
	contentHeight := height - 3 // Title + border

	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if contentHeight > 0 && len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}

	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = truncateString(line, contentWidth)
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, titleStr, strings.Join(lines, "\n"))

	return style.Width(m.Width - 2).Render(inner)
}

// formatActivityItem formats a single activity item
func (m Model) formatActivityItem(item ActivityItem) string {
	parts := []string{
		timestampStyle.Render(item.Timestamp.Format("15:04:05")),
		formatKindBadge(item.Kind),
	}
	if item.EntityID != "" {
		parts = append(parts, titleStyle.Render(item.EntityID))
	}
	if item.Wallet != "" {
		parts = append(parts, subtleStyle.Render(output.ShortAddress(item.Wallet)))
	}
	if item.TxHash != "" {
		parts = append(parts, subtleStyle.Render(output.ShortAddress(item.TxHash)))
	}
	return strings.Join(parts, " ")
}

// visibleItems calculates how many items can be shown given scroll offset and height
func (m Model) visibleItems(total, offset, height int) int {
	remaining := total - offset
	if remaining < 0 {
		return 0
	}
	if remaining > height {
		return height
	}
	return remaining
}

// truncateString cuts s to maxLen cells, keeping ANSI styling intact.
func truncateString(s string, maxLen int) string {
	if maxLen <= 1 {
		return s
	}
	return ansi.Truncate(s, maxLen, "…")
}
