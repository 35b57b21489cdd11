package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/session"
	"github.com/marcus/po/internal/tui/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI dashboard of writes, indexing and organization activity",
	Long: `Launch a live-updating TUI dashboard showing:
- Transactions: writes made in this session and their lifecycle state
- Organization: rows still indexing plus open proposals, tasks and requests
- Activity: refresh events as writes confirm

Key bindings:
  Tab/Shift+Tab  Switch panels
  1/2/3          Jump to panel
  j/k            Scroll active panel
  r              Force refresh
  ?              Toggle help
  q              Quit`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, _, err := openOrg(ctx, false)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		interval, _ := cmd.Flags().GetDuration("interval")
		return runMonitorEvery(ctx, s, false, interval)
	},
}

// runMonitor shows the dashboard over s. With exitWhenSettled it quits once
// every write is terminal and indexed.
func runMonitor(ctx context.Context, s *session.Session, exitWhenSettled bool) error {
	return runMonitorEvery(ctx, s, exitWhenSettled, 2*time.Second)
}

func runMonitorEvery(ctx context.Context, s *session.Session, exitWhenSettled bool, interval time.Duration) error {
	if interval < 500*time.Millisecond {
		interval = 2 * time.Second
	}

	feed := make(chan events.Event, 64)
	detach := s.Bus().Subscribe(func(ev events.Event) error {
		select {
		case feed <- ev:
		default:
		}
		return nil
	})
	defer func() {
		detach()
		close(feed)
	}()

	model := monitor.NewModel(monitor.SessionSource{Session: s}, feed, interval)
	model.ExitWhenSettled = exitWhenSettled
	if v, err := s.View(); err == nil {
		model.Decimals = v.Org.TokenDecimals
		model.Symbol = v.Org.TokenSymbol
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running monitor: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval (default 2s)")
}
