package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/lifecycle"
)

var (
	// Base colors
	primaryColor   = lipgloss.Color("212")
	secondaryColor = lipgloss.Color("141")
	mutedColor     = lipgloss.Color("241")
	successColor   = lipgloss.Color("42")
	warningColor   = lipgloss.Color("214")
	errorColor     = lipgloss.Color("196")
	infoColor      = lipgloss.Color("45")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pendingStyle   = lipgloss.NewStyle().Foreground(infoColor)
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor)

	stateStyles = map[lifecycle.State]lipgloss.Style{
		lifecycle.Preflight: lipgloss.NewStyle().Foreground(mutedColor),
		lifecycle.Simulated: lipgloss.NewStyle().Foreground(mutedColor),
		lifecycle.Estimated: lipgloss.NewStyle().Foreground(infoColor),
		lifecycle.Sent:      lipgloss.NewStyle().Foreground(infoColor),
		lifecycle.Mining:    lipgloss.NewStyle().Foreground(warningColor),
		lifecycle.Pending:   lipgloss.NewStyle().Foreground(warningColor),
		lifecycle.Confirmed: lipgloss.NewStyle().Foreground(successColor),
		lifecycle.Failed:    lipgloss.NewStyle().Foreground(errorColor),
		lifecycle.Cancelled: lipgloss.NewStyle().Foreground(mutedColor),
	}

	// Event family badges
	familyStyles = map[events.Family]lipgloss.Style{
		events.FamilyProposals:     lipgloss.NewStyle().Foreground(secondaryColor),
		events.FamilyTasks:         lipgloss.NewStyle().Foreground(successColor),
		events.FamilyTokenRequests: lipgloss.NewStyle().Foreground(warningColor),
		events.FamilyRoles:         lipgloss.NewStyle().Foreground(infoColor),
		events.FamilyVouches:       lipgloss.NewStyle().Foreground(infoColor),
	}

	// Section headers
	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	// Prominent style for the indexing alert in the footer
	indexingAlertStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(warningColor)

	settledStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(successColor)
)

// formatState renders a lifecycle state with color
func formatState(s lifecycle.State) string {
	style, ok := stateStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

// formatKindBadge renders an event kind colored by the first family it
// refreshes.
func formatKindBadge(k events.Kind) string {
	for _, f := range events.AffectedFamilies()[k] {
		if style, ok := familyStyles[f]; ok {
			return style.Render(string(k))
		}
	}
	return subtleStyle.Render(string(k))
}
