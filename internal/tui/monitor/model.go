package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/lifecycle"
	"github.com/marcus/po/internal/models"
)

// Panel represents which panel is active
type Panel int

const (
	PanelTransactions Panel = iota
	PanelIndexing
	PanelActivity
	panelCount
)

// ActivityItem is one refresh event seen on the bus.
type ActivityItem struct {
	Timestamp time.Time
	Kind      events.Kind
	EntityID  string
	Wallet    string
	TxHash    string
}

// maxActivity bounds the activity feed.
const maxActivity = 200

// Model is the main Bubble Tea model for the monitor TUI
type Model struct {
	Source Source
	Feed   <-chan events.Event

	// Window dimensions
	Width  int
	Height int

	// Panel data
	OrgName      string
	Records      []lifecycle.Record
	Placeholders []models.Placeholder
	Pending      int
	Proposals    []models.Proposal
	Tasks        []models.Task
	Requests     []models.TokenRequest
	Metrics      lifecycle.MetricsSnapshot
	Activity     []ActivityItem

	// UI state
	ActivePanel  Panel
	ScrollOffset map[Panel]int
	ShowHelp     bool
	LastRefresh  time.Time
	Err          error
	Spinner      spinner.Model

	// Configuration
	RefreshInterval time.Duration
	// ExitWhenSettled quits once at least one write exists and every write
	// is terminal and indexed.
	ExitWhenSettled bool
	// Decimals and Symbol format token amounts.
	Decimals uint8
	Symbol   string
}

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 15

// TickMsg triggers a data refresh
type TickMsg time.Time

// EventMsg carries one refresh event from the bus.
type EventMsg events.Event

// RefreshDataMsg carries refreshed data
type RefreshDataMsg struct {
	OrgName      string
	Records      []lifecycle.Record
	Placeholders []models.Placeholder
	Pending      int
	Proposals    []models.Proposal
	Tasks        []models.Task
	Requests     []models.TokenRequest
	Metrics      lifecycle.MetricsSnapshot
	Timestamp    time.Time
	Err          error
}

// NewModel creates a new monitor model. feed may be nil.
func NewModel(src Source, feed <-chan events.Event, interval time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	return Model{
		Source:          src,
		Feed:            feed,
		RefreshInterval: interval,
		ScrollOffset:    make(map[Panel]int),
		ActivePanel:     PanelTransactions,
		Spinner:         sp,
		Decimals:        18,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.scheduleTick(),
		m.waitForEvent(),
		m.Spinner.Tick,
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.Activity = append([]ActivityItem{activityFrom(events.Event(msg))}, m.Activity...)
		if len(m.Activity) > maxActivity {
			m.Activity = m.Activity[:maxActivity]
		}
		return m, tea.Batch(m.fetchData(), m.waitForEvent())

	case RefreshDataMsg:
		m.Err = msg.Err
		if msg.Err == nil {
			m.OrgName = msg.OrgName
			m.Placeholders = msg.Placeholders
			m.Proposals = msg.Proposals
			m.Tasks = msg.Tasks
			m.Requests = msg.Requests
		}
		m.Records = msg.Records
		m.Pending = msg.Pending
		m.Metrics = msg.Metrics
		m.LastRefresh = msg.Timestamp
		if m.ExitWhenSettled && len(msg.Records) > 0 && msg.Settled() {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.ActivePanel = (m.ActivePanel + 1) % panelCount
		return m, nil

	case "shift+tab":
		m.ActivePanel = (m.ActivePanel + panelCount - 1) % panelCount
		return m, nil

	case "1":
		m.ActivePanel = PanelTransactions
		return m, nil

	case "2":
		m.ActivePanel = PanelIndexing
		return m, nil

	case "3":
		m.ActivePanel = PanelActivity
		return m, nil

	case "j", "down":
		m.ScrollOffset[m.ActivePanel]++
		return m, nil

	case "k", "up":
		if m.ScrollOffset[m.ActivePanel] > 0 {
			m.ScrollOffset[m.ActivePanel]--
		}
		return m, nil

	case "r":
		return m, m.fetchData()

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that fetches all data and sends a RefreshDataMsg
func (m Model) fetchData() tea.Cmd {
	src := m.Source
	return func() tea.Msg {
		return src.Fetch(context.Background())
	}
}

// waitForEvent blocks on the feed; a closed or nil feed ends the loop.
func (m Model) waitForEvent() tea.Cmd {
	feed := m.Feed
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-feed
		if !ok {
			return nil
		}
		return EventMsg(ev)
	}
}
