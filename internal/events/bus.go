package events

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives published events. A returned error is logged and does not
// stop delivery to later handlers.
type Handler func(Event) error

type subscription struct {
	id      uint64
	kinds   map[Kind]bool // empty means every kind
	handler Handler
}

// Bus is a synchronous, typed publish/subscribe hub. Handlers run on the
// publishing goroutine in subscription order.
type Bus struct {
	mu     sync.Mutex
	subs   []*subscription
	nextID uint64
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers h for the given kinds (all kinds when none are given)
// and returns an idempotent unsubscribe function.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) func() {
	sub := &subscription{handler: h}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers ev to every matching handler and returns once all have
// run. Unknown kinds are rejected before any handler runs.
func (b *Bus) Publish(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	subs := make([]*subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if len(s.kinds) > 0 && !s.kinds[ev.Kind] {
			continue
		}
		if err := b.deliver(s, ev); err != nil {
			b.logger.Warn("event handler failed", "event", ev.String(), "subscription", s.id, "err", err)
		}
	}
	return nil
}

// PublishAll publishes evs in order, stopping at the first invalid event.
func (b *Bus) PublishAll(evs []Event) error {
	for _, ev := range evs {
		if err := b.Publish(ev); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) deliver(s *subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ev)
}
