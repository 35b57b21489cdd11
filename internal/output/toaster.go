package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/marcus/po/internal/lifecycle"
)

// Toaster prints lifecycle notifications as one styled line each.
type Toaster struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewToaster returns a Toaster writing to w, or stderr when w is nil, so
// JSON on stdout stays parseable. Info-level notifications are shown only
// when verbose is set.
func NewToaster(w io.Writer, verbose bool) *Toaster {
	if w == nil {
		w = os.Stderr
	}
	return &Toaster{w: w, verbose: verbose}
}

// Notify implements lifecycle.Notifier.
func (t *Toaster) Notify(n lifecycle.Notification) {
	line := FormatNotification(n)
	if line == "" || (n.Level == lifecycle.LevelInfo && !t.verbose) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

// FormatNotification renders one notification.
func FormatNotification(n lifecycle.Notification) string {
	if n.Message == "" {
		return ""
	}
	switch n.Level {
	case lifecycle.LevelPending:
		return pendingStyle.Render("… " + n.Message)
	case lifecycle.LevelSuccess:
		msg := "✓ " + n.Message
		if n.TxHash != "" {
			msg += "  " + subtleStyle.Render(ShortAddress(n.TxHash))
		}
		return successStyle.Render(msg)
	case lifecycle.LevelError:
		msg := "✗ " + n.Message
		if n.Err != nil && n.Err.UserMessage != "" && n.Err.UserMessage != n.Message {
			msg += ": " + n.Err.UserMessage
		}
		if n.Retryable {
			msg += " (retry possible)"
		}
		return errorStyle.Render(msg)
	default:
		return subtleStyle.Render(n.Message)
	}
}
