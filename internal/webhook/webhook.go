// Package webhook forwards write notifications and confirmed refresh
// events to an HTTP endpoint as signed JSON.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/lifecycle"
)

// Payload is the top-level webhook POST body.
type Payload struct {
	Source    string        `json:"source"`
	Timestamp string        `json:"timestamp"`
	Items     []ItemPayload `json:"items"`
}

// ItemPayload is one notification or refresh event.
type ItemPayload struct {
	Type      string        `json:"type"` // "notification" or "event"
	RecordID  string        `json:"record_id,omitempty"`
	Category  string        `json:"category,omitempty"`
	Level     string        `json:"level,omitempty"`
	Message   string        `json:"message,omitempty"`
	TxHash    string        `json:"tx_hash,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Event     *events.Event `json:"event,omitempty"`
}

// NotificationItem converts a lifecycle notification.
func NotificationItem(n lifecycle.Notification) ItemPayload {
	it := ItemPayload{
		Type:      "notification",
		RecordID:  n.RecordID,
		Category:  n.Category,
		Level:     string(n.Level),
		Message:   n.Message,
		TxHash:    n.TxHash,
		Retryable: n.Retryable,
	}
	if n.Err != nil {
		it.ErrorKind = n.Err.Category.String()
	}
	return it
}

// EventItem converts a refresh event.
func EventItem(ev events.Event) ItemPayload {
	return ItemPayload{Type: "event", TxHash: ev.TxHash, Event: &ev}
}

// BuildPayload wraps items with a timestamp.
func BuildPayload(now time.Time, items ...ItemPayload) Payload {
	return Payload{
		Source:    "po",
		Timestamp: now.UTC().Format(time.RFC3339),
		Items:     items,
	}
}

// Sign returns the hex HMAC-SHA256 of "<unix>.<body>".
func Sign(secret, unixTS string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unixTS))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Dispatch performs a synchronous HTTP POST to the webhook URL.
// Returns nil on success (2xx status).
func Dispatch(ctx context.Context, client *http.Client, url, secret string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "po-webhook/1")

	unixTS := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("X-PO-Timestamp", unixTS)
	if secret != "" {
		req.Header.Set("X-PO-Signature", "sha256="+Sign(secret, unixTS, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// Sink posts terminal notifications and confirmed refresh events in the
// background. It implements lifecycle.Notifier. Delivery failures are
// logged and dropped.
type Sink struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSink creates a sink posting to url.
func NewSink(url, secret string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		now:    time.Now,
	}
}

// Notify forwards terminal notifications; pending and info toasts stay
// local.
func (s *Sink) Notify(n lifecycle.Notification) {
	if n.Level != lifecycle.LevelSuccess && n.Level != lifecycle.LevelError {
		return
	}
	s.post(NotificationItem(n))
}

// Attach forwards every refresh event published on bus and returns the
// unsubscribe function.
func (s *Sink) Attach(bus *events.Bus) func() {
	return bus.Subscribe(func(ev events.Event) error {
		s.post(EventItem(ev))
		return nil
	})
}

func (s *Sink) post(it ItemPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	payload := BuildPayload(s.now(), it)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := Dispatch(ctx, s.client, s.url, s.secret, payload); err != nil {
			s.logger.Warn("webhook delivery failed", "type", it.Type, "err", err)
		}
	}()
}

// Close waits for in-flight deliveries; later notifications are dropped.
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
