// Package lifecycle drives a contract write through simulate, estimate,
// send and confirm, emits one notification per phase and publishes the
// write's refresh events once it is mined.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/txerrors"
)

// Call is a packed contract write; *contracts.CallRequest satisfies it.
type Call interface {
	Target() (contract, method string)
	Preflight(ctx context.Context) error
	EstimateGas(ctx context.Context) (uint64, error)
	Send(ctx context.Context, opts contracts.SendOpts) (contracts.Handle, error)
}

// Enricher fills post-mining ids into refresh events;
// *contracts.LogDecoder satisfies it.
type Enricher interface {
	Enrich(receipt *types.Receipt, evs []events.Event) []events.Event
}

// Record is the in-memory trace of one write.
type Record struct {
	ID        string                `json:"id"`
	TxHash    string                `json:"tx_hash,omitempty"`
	Contract  string                `json:"contract"`
	Method    string                `json:"method"`
	Category  string                `json:"category,omitempty"`
	StartedAt time.Time             `json:"started_at"`
	UpdatedAt time.Time             `json:"updated_at"`
	State     State                 `json:"state"`
	GasLimit  uint64                `json:"gas_limit,omitempty"`
	Events    []events.Event        `json:"events,omitempty"`
	Err       *txerrors.ParsedError `json:"-"`
}

// Result is the outcome of Execute. Exactly one of Receipt, Cancelled and
// Pending describes it.
type Result struct {
	Receipt   *types.Receipt
	Cancelled bool
	Pending   bool
	Record    Record
}

// Config tunes a Manager. Zero values take the defaults.
type Config struct {
	MaxGas        uint64
	MiningTimeout time.Duration
	DedupWindow   time.Duration
	RecordTTL     time.Duration

	Parser   *txerrors.Parser
	Notifier Notifier
	Enricher Enricher
	Logger   *slog.Logger
}

// Defaults
const (
	DefaultMaxGas        = 10_000_000
	DefaultMiningTimeout = 120 * time.Second
	DefaultDedupWindow   = 2 * time.Second
	DefaultRecordTTL     = 10 * time.Minute
)

// Option configures a single Execute call.
type Option func(*execOptions)

type execOptions struct {
	key string
}

// WithIdempotencyKey deduplicates calls sharing key within the dedup window:
// later callers receive the first call's outcome and nothing is resent.
func WithIdempotencyKey(key string) Option {
	return func(o *execOptions) { o.key = key }
}

type flight struct {
	started time.Time
	done    chan struct{}
	res     *Result
	err     error
}

// Manager runs writes. It is safe for concurrent use; writes are
// independent of one another.
type Manager struct {
	cfg     Config
	bus     *events.Bus
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	records map[string]*Record
	byTx    map[string]string
	flights map[string]*flight

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a manager publishing confirmed events on bus.
func New(bus *events.Bus, cfg Config) *Manager {
	if cfg.MaxGas == 0 {
		cfg.MaxGas = DefaultMaxGas
	}
	if cfg.MiningTimeout <= 0 {
		cfg.MiningTimeout = DefaultMiningTimeout
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = DefaultRecordTTL
	}
	if cfg.Parser == nil {
		cfg.Parser = txerrors.NewParser(contracts.ABIs()...)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = discard{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		bus:     bus,
		logger:  cfg.Logger,
		metrics: NewMetrics(),
		records: make(map[string]*Record),
		byTx:    make(map[string]string),
		flights: make(map[string]*flight),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Metrics returns the manager's counters.
func (m *Manager) Metrics() *Metrics { return m.metrics }

// GasLimit applies the 1.2 safety margin to an estimate, rounding up.
func GasLimit(estimate uint64) uint64 {
	return (estimate*6 + 4) / 5
}

// Execute runs call to completion. The returned error, when non-nil, is
// always a *txerrors.ParsedError. A wallet rejection is not an error: the
// result has Cancelled set.
func (m *Manager) Execute(ctx context.Context, call Call, notify NotifySpec, evs []events.Event, opts ...Option) (*Result, error) {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.key == "" {
		return m.execute(ctx, call, notify, evs)
	}

	m.mu.Lock()
	now := time.Now()
	m.pruneFlightsLocked(now)
	if f, ok := m.flights[o.key]; ok && now.Sub(f.started) < m.cfg.DedupWindow {
		m.mu.Unlock()
		m.metrics.deduplicated.Add(1)
		m.logger.Debug("deduplicated execute", "key", o.key)
		select {
		case <-f.done:
			return f.res, f.err
		case <-ctx.Done():
			return nil, txerrors.Parse(ctx.Err())
		}
	}
	f := &flight{started: now, done: make(chan struct{})}
	m.flights[o.key] = f
	m.mu.Unlock()

	res, err := m.execute(ctx, call, notify, evs)
	f.res, f.err = res, err
	close(f.done)
	return res, err
}

func (m *Manager) execute(ctx context.Context, call Call, notify NotifySpec, evs []events.Event) (*Result, error) {
	m.prune()
	rec := m.newRecord(call, notify, evs)

	if err := call.Preflight(ctx); err != nil {
		return nil, m.fail(rec, notify, m.cfg.Parser.Parse(err))
	}
	m.advance(rec, Simulated)

	gas, err := call.EstimateGas(ctx)
	if err != nil {
		m.logger.Warn("gas estimation failed, using max", "call", rec.Contract+"."+rec.Method, "err", err)
		gas = m.cfg.MaxGas
	} else {
		gas = GasLimit(gas)
	}
	m.update(rec, func(r *Record) { r.GasLimit = gas })
	m.advance(rec, Estimated)

	handle, err := call.Send(ctx, contracts.SendOpts{GasLimit: gas})
	if err != nil {
		perr := m.cfg.Parser.Parse(err)
		if perr.Category == txerrors.CategoryUserRejected {
			m.advance(rec, Cancelled)
			m.metrics.cancelled.Add(1)
			if notify.CancelledMessage != "" {
				m.notify(rec, notify, LevelInfo, notify.CancelledMessage, nil)
			}
			return &Result{Cancelled: true, Record: m.snapshot(rec)}, nil
		}
		return nil, m.fail(rec, notify, perr)
	}

	txHash := strings.ToLower(handle.TxHash().Hex())
	m.update(rec, func(r *Record) { r.TxHash = txHash })
	m.mu.Lock()
	m.byTx[txHash] = rec.ID
	m.mu.Unlock()
	m.metrics.submitted.Add(1)
	m.advance(rec, Sent)
	m.notify(rec, notify, LevelPending, notify.PendingMessage, nil)
	m.advance(rec, Mining)

	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.MiningTimeout)
	receipt, err := handle.Wait(waitCtx)
	cancel()
	if err != nil {
		m.logger.Info("receipt not available, continuing in background", "tx", txHash, "err", err)
		m.advance(rec, Pending)
		m.metrics.pending.Add(1)
		m.follow(rec, call, notify, handle)
		return &Result{Pending: true, Record: m.snapshot(rec)}, nil
	}

	return m.settle(ctx, rec, call, notify, receipt)
}

// settle finishes a mined transaction.
func (m *Manager) settle(ctx context.Context, rec *Record, call Call, notify NotifySpec, receipt *types.Receipt) (*Result, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		// Re-simulate to recover the revert reason.
		cause := call.Preflight(ctx)
		if cause == nil {
			cause = errors.New("execution reverted")
		}
		return nil, m.fail(rec, notify, m.cfg.Parser.Parse(cause))
	}

	m.mu.Lock()
	evs := rec.Events
	m.mu.Unlock()
	if m.cfg.Enricher != nil {
		evs = m.cfg.Enricher.Enrich(receipt, evs)
	} else {
		evs = stampTx(evs, rec.TxHash)
	}
	m.update(rec, func(r *Record) { r.Events = evs })
	m.advance(rec, Confirmed)
	m.metrics.confirmed.Add(1)

	if m.bus != nil && m.ctx.Err() == nil {
		if err := m.bus.PublishAll(evs); err != nil {
			m.logger.Warn("publish refresh events", "tx", rec.TxHash, "err", err)
		}
	}
	m.notify(rec, notify, LevelSuccess, notify.SuccessMessage, nil)
	return &Result{Receipt: receipt, Record: m.snapshot(rec)}, nil
}

func stampTx(evs []events.Event, txHash string) []events.Event {
	out := make([]events.Event, len(evs))
	copy(out, evs)
	for i := range out {
		out[i].TxHash = txHash
	}
	return out
}

// follow keeps waiting for a timed-out receipt until it arrives or the
// manager closes.
func (m *Manager) follow(rec *Record, call Call, notify NotifySpec, handle contracts.Handle) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		receipt, err := handle.Wait(m.ctx)
		if err != nil {
			m.logger.Debug("abandoned receipt wait", "tx", rec.TxHash, "err", err)
			return
		}
		m.metrics.pending.Add(-1)
		_, _ = m.settle(m.ctx, rec, call, notify, receipt)
	}()
}

func (m *Manager) fail(rec *Record, notify NotifySpec, perr *txerrors.ParsedError) *txerrors.ParsedError {
	m.update(rec, func(r *Record) { r.Err = perr })
	m.advance(rec, Failed)
	m.metrics.failed.Add(1)

	msg := perr.UserMessage
	if notify.ErrorMessage != "" {
		msg = notify.ErrorMessage + ": " + perr.UserMessage
	}
	m.notify(rec, notify, LevelError, msg, perr)
	return perr
}

func (m *Manager) notify(rec *Record, ns NotifySpec, level Level, msg string, perr *txerrors.ParsedError) {
	if msg == "" {
		return
	}
	n := Notification{
		RecordID: rec.ID,
		Category: ns.Category,
		Level:    level,
		Message:  msg,
		Err:      perr,
	}
	m.mu.Lock()
	n.TxHash = rec.TxHash
	m.mu.Unlock()
	if perr != nil {
		n.Retryable = perr.Recoverable
	}
	m.cfg.Notifier.Notify(n)
}

func (m *Manager) newRecord(call Call, notify NotifySpec, evs []events.Event) *Record {
	contract, method := call.Target()
	now := time.Now()
	rec := &Record{
		ID:        uuid.NewString(),
		Contract:  contract,
		Method:    method,
		Category:  notify.Category,
		StartedAt: now,
		UpdatedAt: now,
		State:     Preflight,
		Events:    append([]events.Event(nil), evs...),
	}
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
	return rec
}

func (m *Manager) update(rec *Record, fn func(*Record)) {
	m.mu.Lock()
	fn(rec)
	rec.UpdatedAt = time.Now()
	m.mu.Unlock()
}

func (m *Manager) advance(rec *Record, to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransition(rec.State, to) {
		m.logger.Error("lifecycle", "err", &TransitionError{RecordID: rec.ID, From: rec.State, To: to})
		return
	}
	m.logger.Debug("lifecycle transition", "record", rec.ID, "from", rec.State, "to", to)
	rec.State = to
	rec.UpdatedAt = time.Now()
}

func (m *Manager) snapshot(rec *Record) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Events = append([]events.Event(nil), rec.Events...)
	return cp
}

// Records returns every live record, oldest first.
func (m *Manager) Records() []Record {
	m.prune()
	m.mu.Lock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		cp := *r
		cp.Events = append([]events.Event(nil), r.Events...)
		out = append(out, cp)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Record returns the record with the given id.
func (m *Manager) Record(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, false
	}
	cp := *r
	cp.Events = append([]events.Event(nil), r.Events...)
	return cp, true
}

// Release drops the settled record of txHash once every dependent read is
// consistent.
func (m *Manager) Release(txHash string) {
	txHash = strings.ToLower(txHash)
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byTx[txHash]
	if !ok {
		return
	}
	if r := m.records[id]; r != nil && r.State.IsTerminal() {
		delete(m.records, id)
		delete(m.byTx, txHash)
	}
}

// prune drops terminal records older than the TTL.
// pruneFlightsLocked drops finished dedup entries older than the window.
// m.mu must be held.
func (m *Manager) pruneFlightsLocked(now time.Time) {
	for k, f := range m.flights {
		if now.Sub(f.started) < m.cfg.DedupWindow {
			continue
		}
		select {
		case <-f.done:
			delete(m.flights, k)
		default:
		}
	}
}

func (m *Manager) prune() {
	now := time.Now()
	cutoff := now.Add(-m.cfg.RecordTTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneFlightsLocked(now)
	for id, r := range m.records {
		if r.State.IsTerminal() && r.UpdatedAt.Before(cutoff) {
			delete(m.records, id)
			if r.TxHash != "" {
				delete(m.byTx, r.TxHash)
			}
		}
	}
}

// Close abandons pending receipt watchers and waits for them to exit.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
