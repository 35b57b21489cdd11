// Package reconcile closes the gap between a confirmed transaction and the
// indexer catching up with it. Each published event invalidates the cache
// families it touches, may leave an optimistic placeholder row behind, and
// is supervised until its consistency predicate holds.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/models"
)

// DefaultSchedule is the offset of each predicate check from the moment an
// event is received. Once the budget is spent, checks repeat every
// DefaultSlowInterval.
var DefaultSchedule = []time.Duration{
	0,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	32 * time.Second,
}

const (
	DefaultBudget       = 60 * time.Second
	DefaultSlowInterval = 60 * time.Second
)

// Options configures a Reconciler. Zero values take the defaults.
type Options struct {
	Schedule     []time.Duration
	Budget       time.Duration
	SlowInterval time.Duration
	Predicates   map[events.Kind]Predicate
	Logger       *slog.Logger

	// OnSettled runs once per event after its predicate holds.
	OnSettled func(events.Event)
	// OnChange runs whenever the placeholder set changes.
	OnChange func()
}

// Reconciler supervises indexer catch-up for published events.
type Reconciler struct {
	src    Source
	cache  Cache
	opts   Options
	logger *slog.Logger

	mu           sync.Mutex
	placeholders map[string]*models.Placeholder
	jobs         int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// New creates a Reconciler. Call Attach to start receiving events.
func New(src Source, cache Cache, opts Options) *Reconciler {
	if len(opts.Schedule) == 0 {
		opts.Schedule = DefaultSchedule
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.SlowInterval <= 0 {
		opts.SlowInterval = DefaultSlowInterval
	}
	if opts.Predicates == nil {
		opts.Predicates = Predicates()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		src:          src,
		cache:        cache,
		opts:         opts,
		logger:       logger,
		placeholders: make(map[string]*models.Placeholder),
		ctx:          ctx,
		cancel:       cancel,
		now:          time.Now,
	}
}

// Attach subscribes the reconciler to every event kind on bus.
func (r *Reconciler) Attach(bus *events.Bus) (detach func()) {
	return bus.Subscribe(r.Handle)
}

// Handle processes one event. It never blocks on the network.
func (r *Reconciler) Handle(ev events.Event) error {
	if r.ctx.Err() != nil {
		return nil
	}
	if fams := events.AffectedFamilies()[ev.Kind]; len(fams) > 0 && r.cache != nil {
		r.cache.InvalidateFamily(ev.OrgID, fams...)
	}
	key := ""
	if events.CreatesRow(ev.Kind) {
		key = r.addPlaceholder(ev)
	}
	pred, ok := r.opts.Predicates[ev.Kind]
	if !ok {
		return nil
	}

	r.mu.Lock()
	r.jobs++
	r.mu.Unlock()
	r.wg.Add(1)
	go r.supervise(ev, key, pred)
	return nil
}

func placeholderKey(ev events.Event) string {
	return string(ev.Kind) + "/" + ev.TxHash + "/" + entityID(ev)
}

func entityID(ev events.Event) string {
	switch ev.Kind {
	case events.ProposalCreated:
		return ev.CompositeProposalID()
	case events.TaskCreated:
		return ev.TaskID
	case events.TokenRequestCreated:
		return ev.RequestID
	case events.OrgDeployed:
		return ev.OrgID
	}
	return ""
}

func (r *Reconciler) addPlaceholder(ev events.Event) string {
	at := ev.At
	if at.IsZero() {
		at = r.now()
	}
	key := placeholderKey(ev)
	r.mu.Lock()
	r.placeholders[key] = &models.Placeholder{
		Family:    string(events.RowFamily(ev.Kind)),
		OrgID:     ev.OrgID,
		EntityID:  entityID(ev),
		Title:     ev.Title,
		Creator:   ev.Wallet,
		TxHash:    ev.TxHash,
		CreatedAt: at,
	}
	r.mu.Unlock()
	r.changed()
	return key
}

func (r *Reconciler) changed() {
	if r.opts.OnChange != nil {
		r.opts.OnChange()
	}
}

func (r *Reconciler) supervise(ev events.Event, key string, pred Predicate) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		r.jobs--
		r.mu.Unlock()
	}()

	attempt := 0
	exhausted := false
	var last time.Duration
	for {
		var wait time.Duration
		switch {
		case attempt < len(r.opts.Schedule):
			wait = r.opts.Schedule[attempt] - last
			last = r.opts.Schedule[attempt]
		case last < r.opts.Budget:
			wait = r.opts.Budget - last
			last = r.opts.Budget
		default:
			wait = r.opts.SlowInterval
		}
		if wait > 0 && !r.sleep(wait) {
			return
		}
		attempt++

		ok, err := pred(r.ctx, r.src, ev)
		if r.ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Warn("reconcile check failed", "event", ev.String(), "attempt", attempt, "err", err)
		}
		if ok {
			r.settle(ev, key, attempt)
			return
		}
		if !exhausted && last >= r.opts.Budget {
			exhausted = true
			r.exhaust(ev, key)
		}
	}
}

func (r *Reconciler) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *Reconciler) settle(ev events.Event, key string, attempt int) {
	if fams := events.AffectedFamilies()[ev.Kind]; len(fams) > 0 && r.cache != nil {
		r.cache.InvalidateFamily(ev.OrgID, fams...)
	}
	if key != "" {
		r.mu.Lock()
		delete(r.placeholders, key)
		r.mu.Unlock()
		r.changed()
	}
	r.logger.Debug("indexer caught up", "event", ev.String(), "attempts", attempt)
	if r.opts.OnSettled != nil {
		r.opts.OnSettled(ev)
	}
}

func (r *Reconciler) exhaust(ev events.Event, key string) {
	r.logger.Info("indexer still catching up", "event", ev.String())
	if key == "" {
		return
	}
	r.mu.Lock()
	p, ok := r.placeholders[key]
	flipped := ok && !p.Exhausted
	if flipped {
		p.Exhausted = true
	}
	r.mu.Unlock()
	if flipped {
		r.changed()
	}
}

// Placeholders returns the optimistic rows of one family for orgID,
// oldest first. An empty family returns every family.
func (r *Reconciler) Placeholders(orgID string, family events.Family) []models.Placeholder {
	r.mu.Lock()
	out := make([]models.Placeholder, 0, len(r.placeholders))
	for _, p := range r.placeholders {
		if p.OrgID != orgID || (family != "" && p.Family != string(family)) {
			continue
		}
		out = append(out, *p)
	}
	r.mu.Unlock()
	models.SortPlaceholders(out)
	return out
}

// Pending reports how many events are still being supervised.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs
}

// Close stops supervision and waits for every job to exit. Placeholders
// are kept so a final render can still show them.
func (r *Reconciler) Close() {
	r.cancel()
	r.wg.Wait()
}
