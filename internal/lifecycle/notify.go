package lifecycle

import (
	"github.com/marcus/po/internal/txerrors"
)

// NotifySpec carries the user-visible messages of one write.
type NotifySpec struct {
	Category         string // e.g. "proposal", "task"; groups records in the monitor
	PendingMessage   string
	SuccessMessage   string
	ErrorMessage     string
	CancelledMessage string // empty keeps a wallet rejection silent
}

// Level is a notification's severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelPending Level = "pending"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one user-visible toast.
type Notification struct {
	RecordID  string
	Category  string
	Level     Level
	Message   string
	TxHash    string
	Retryable bool
	Err       *txerrors.ParsedError
}

// Notifier displays notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// MultiNotifier fans a notification out to several sinks.
type MultiNotifier []Notifier

// Notify delivers n to every sink.
func (m MultiNotifier) Notify(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}

type discard struct{}

func (discard) Notify(Notification) {}
