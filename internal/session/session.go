// Package session wires the coordination layer together for one wallet:
// query cache, contract services, lifecycle manager, reconciler, capability
// resolver and notification sinks. Close abandons every background poll,
// receipt wait and cache refresh the session started.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/marcus/po/internal/capability"
	"github.com/marcus/po/internal/chain"
	"github.com/marcus/po/internal/config"
	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/lifecycle"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/reconcile"
	"github.com/marcus/po/internal/subgraph"
	"github.com/marcus/po/internal/webhook"
)

var (
	// ErrNoOrganization means an org-scoped operation ran before
	// LoadOrganization.
	ErrNoOrganization = errors.New("no organization loaded")
	// ErrClosed means the session was used after Close.
	ErrClosed = errors.New("session closed")
)

// Options configures Open. Zero values take the package defaults of the
// component they feed.
type Options struct {
	RPCURL         string
	SubgraphURL    string
	IPFSAPIURL     string
	IPFSGatewayURL string

	// DeployerAddress and RegistryAddress override the indexed
	// infrastructure addresses when non-zero.
	DeployerAddress common.Address
	RegistryAddress common.Address

	MaxGas        uint64
	MiningTimeout time.Duration
	DedupWindow   time.Duration

	// Schedule is the reconciliation backoff after the immediate check.
	Schedule     []time.Duration
	Budget       time.Duration
	SlowInterval time.Duration

	CacheSize int
	CacheTTL  time.Duration

	WebhookURL    string
	WebhookSecret string

	// Notifier receives lifecycle toasts next to the webhook sink.
	Notifier lifecycle.Notifier
	// OnChange runs whenever the reconciler's placeholder set changes.
	OnChange func()
	Logger   *slog.Logger

	// Backend, Fetcher and Store replace the network clients built from
	// the URLs above.
	Backend contracts.Backend
	Fetcher subgraph.Fetcher
	Store   ipfs.Store
	Now     func() time.Time
}

// OptionsFromConfig reads every setting from the config layer.
func OptionsFromConfig() Options {
	return Options{
		RPCURL:          config.GetRPCURL(),
		SubgraphURL:     config.GetSubgraphURL(),
		IPFSAPIURL:      config.GetIPFSAPIURL(),
		IPFSGatewayURL:  config.GetIPFSGatewayURL(),
		DeployerAddress: config.GetDeployerAddress(),
		RegistryAddress: config.GetRegistryAddress(),
		MaxGas:          config.GetGasLimitMax(),
		MiningTimeout:   config.GetMiningTimeout(),
		DedupWindow:     config.GetDedupWindow(),
		Schedule:        config.GetReconcileSchedule(),
		Budget:          config.GetReconcileBudget(),
		SlowInterval:    config.GetReconcileSlowInterval(),
		CacheSize:       config.GetCacheSize(),
		CacheTTL:        config.GetCacheTTL(),
		WebhookURL:      config.GetWebhookURL(),
		WebhookSecret:   config.GetWebhookSecret(),
	}
}

// Session is one wallet's view of the protocol.
type Session struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	bus        *events.Bus
	store      *subgraph.Store
	queries    *subgraph.Queries
	ipfs       ipfs.Store
	services   *contracts.Services
	manager    *lifecycle.Manager
	reconciler *reconcile.Reconciler
	resolver   *capability.Resolver
	sink       *webhook.Sink

	detach       []func()
	closeBackend func()

	mu     sync.Mutex
	view   *orgmodel.View
	infra  *models.RawInfrastructure
	closed bool
}

// Open builds a session. signer may be nil for a read-only session, in
// which case every write fails with contracts.ErrNoSigner.
func Open(ctx context.Context, opts Options, signer contracts.Signer) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{opts: opts, logger: logger, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}

	backend := opts.Backend
	if backend == nil {
		client, err := chain.Dial(ctx, opts.RPCURL)
		if err != nil {
			return nil, err
		}
		backend = client
		s.closeBackend = client.Close
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		if opts.SubgraphURL == "" {
			s.closeClient()
			return nil, fmt.Errorf("open session: no subgraph URL configured")
		}
		fetcher = subgraph.NewClient(opts.SubgraphURL)
	}
	s.ipfs = opts.Store
	if s.ipfs == nil {
		s.ipfs = ipfs.NewClient(opts.IPFSAPIURL, opts.IPFSGatewayURL)
	}

	decoder, err := contracts.NewLogDecoder()
	if err != nil {
		s.closeClient()
		return nil, fmt.Errorf("open session: %w", err)
	}

	s.bus = events.NewBus(logger)
	s.store = subgraph.NewStore(fetcher, subgraph.StoreOptions{
		Size:   opts.CacheSize,
		TTL:    opts.CacheTTL,
		Logger: logger,
	})
	s.queries = subgraph.NewQueries(s.store)
	s.services = contracts.NewServices(backend, signer, contracts.Addresses{
		OrgDeployer:     opts.DeployerAddress,
		AccountRegistry: opts.RegistryAddress,
	})

	notifiers := lifecycle.MultiNotifier{opts.Notifier}
	if opts.WebhookURL != "" {
		s.sink = webhook.NewSink(opts.WebhookURL, opts.WebhookSecret, logger)
		notifiers = append(notifiers, s.sink)
		s.detach = append(s.detach, s.sink.Attach(s.bus))
	}
	s.manager = lifecycle.New(s.bus, lifecycle.Config{
		MaxGas:        opts.MaxGas,
		MiningTimeout: opts.MiningTimeout,
		DedupWindow:   opts.DedupWindow,
		Notifier:      notifiers,
		Enricher:      decoder,
		Logger:        logger,
	})

	schedule := opts.Schedule
	if len(schedule) > 0 {
		schedule = append([]time.Duration{0}, schedule...)
	}
	s.reconciler = reconcile.New(reconcile.FromQueries(s.queries), s.store, reconcile.Options{
		Schedule:     schedule,
		Budget:       opts.Budget,
		SlowInterval: opts.SlowInterval,
		Logger:       logger,
		OnSettled: func(ev events.Event) {
			if ev.TxHash != "" {
				s.manager.Release(ev.TxHash)
			}
		},
		OnChange: opts.OnChange,
	})
	s.resolver = capability.NewResolver(logger)

	s.detach = append(s.detach,
		s.reconciler.Attach(s.bus),
		s.resolver.Attach(s.bus),
	)
	return s, nil
}

func (s *Session) closeClient() {
	if s.closeBackend != nil {
		s.closeBackend()
		s.closeBackend = nil
	}
}

// Close detaches every subscriber and stops background work. It is safe
// to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, d := range s.detach {
		d()
	}
	s.reconciler.Close()
	s.manager.Close()
	s.store.Close()
	if s.sink != nil {
		s.sink.Close()
	}
	s.closeClient()
}

func (s *Session) Bus() *events.Bus { return s.bus }

func (s *Session) Queries() *subgraph.Queries { return s.queries }

func (s *Session) IPFS() ipfs.Store { return s.ipfs }

func (s *Session) Manager() *lifecycle.Manager { return s.manager }

func (s *Session) Reconciler() *reconcile.Reconciler { return s.reconciler }

func (s *Session) Resolver() *capability.Resolver { return s.resolver }

// Metrics snapshots the lifecycle counters.
func (s *Session) Metrics() lifecycle.MetricsSnapshot { return s.manager.Metrics().Snapshot() }

// CacheStats snapshots the query cache counters.
func (s *Session) CacheStats() subgraph.Stats { return s.store.Stats() }

// Services returns the contract services routed to the current
// organization.
func (s *Session) Services() *contracts.Services {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.services
}

// Wallet is the signer's lowercased address, or "" when read-only.
func (s *Session) Wallet() string {
	svc := s.Services()
	if !svc.HasSigner() {
		return ""
	}
	return strings.ToLower(svc.From().Hex())
}

// View returns the most recently loaded organization.
func (s *Session) View() (*orgmodel.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return nil, ErrNoOrganization
	}
	return s.view, nil
}

// OrgID resolves ref, either a 0x id or an organization name, to the
// deterministic organization id.
func OrgID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("no organization given (use --org or set default_org)")
	}
	if strings.HasPrefix(ref, "0x") && len(ref) == 66 {
		return subgraph.NormalizeID(ref), nil
	}
	return encoding.OrgIDHex(ref), nil
}

// LoadOrganization fetches a consistent snapshot of the organization in
// parallel, merges the reconciler's placeholders and derives the view.
// The session's contract routing follows the loaded organization.
func (s *Session) LoadOrganization(ctx context.Context, ref string) (*orgmodel.View, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	orgID, err := OrgID(ref)
	if err != nil {
		return nil, err
	}

	snap := orgmodel.Snapshot{OrgID: orgID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		org, err := s.queries.Organization(gctx, orgID, subgraph.Default)
		if errors.Is(err, subgraph.ErrNotFound) {
			return nil
		}
		snap.Org = org
		return err
	})
	g.Go(func() (err error) {
		snap.Proposals, err = s.queries.Proposals(gctx, orgID, subgraph.Default)
		return err
	})
	g.Go(func() (err error) {
		snap.Tasks, err = s.queries.Tasks(gctx, orgID, subgraph.Default)
		return err
	})
	g.Go(func() (err error) {
		snap.Requests, err = s.queries.TokenRequests(gctx, orgID, subgraph.Default)
		return err
	})
	g.Go(func() (err error) {
		snap.Vouches, err = s.queries.Vouches(gctx, orgID, subgraph.Default)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load organization %s: %w", orgID, err)
	}

	view, err := orgmodel.Derive(snap, s.now(), s.reconciler.Placeholders(orgID, ""))
	if err != nil {
		return nil, fmt.Errorf("load organization %s: %w", orgID, err)
	}
	if err := s.route(ctx, &view.Org.Addresses); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
	s.logger.Debug("organization loaded", "org", orgID, "proposals", len(view.Proposals),
		"tasks", len(view.Tasks), "placeholders", len(view.Placeholders))
	return view, nil
}

// Refresh reloads the current organization.
func (s *Session) Refresh(ctx context.Context) (*orgmodel.View, error) {
	v, err := s.View()
	if err != nil {
		return nil, err
	}
	return s.LoadOrganization(ctx, v.Org.ID)
}

// route points the contract services at org's contracts plus the protocol
// infrastructure. A missing infrastructure record is tolerated; writes
// needing it fail with contracts.ErrMissingAddress.
func (s *Session) route(ctx context.Context, org *models.ContractAddresses) error {
	infra := s.infrastructure(ctx)
	addrs, err := contracts.AddressesOf(org, infra)
	if err != nil {
		return fmt.Errorf("route contracts: %w", err)
	}
	if s.opts.DeployerAddress != (common.Address{}) {
		addrs.OrgDeployer = s.opts.DeployerAddress
	}
	if s.opts.RegistryAddress != (common.Address{}) {
		addrs.AccountRegistry = s.opts.RegistryAddress
	}
	s.mu.Lock()
	s.services = s.services.WithAddresses(addrs)
	s.mu.Unlock()
	return nil
}

func (s *Session) infrastructure(ctx context.Context) *models.RawInfrastructure {
	s.mu.Lock()
	infra := s.infra
	s.mu.Unlock()
	if infra != nil {
		return infra
	}
	infra, err := s.queries.Infrastructure(ctx, subgraph.Default)
	if err != nil {
		s.logger.Debug("infrastructure unavailable", "err", err)
		return nil
	}
	s.mu.Lock()
	s.infra = infra
	s.mu.Unlock()
	return infra
}

// Capabilities resolves wallet, or the signer when wallet is empty, in the
// loaded organization.
func (s *Session) Capabilities(wallet string) (*capability.Capabilities, error) {
	v, err := s.View()
	if err != nil {
		return nil, err
	}
	if wallet == "" {
		wallet = s.Wallet()
	}
	return s.resolver.Get(wallet, v), nil
}

// Builder returns an action builder scoped to the loaded organization, or
// an org-less one (deploy, username) when none is loaded.
func (s *Session) Builder(ctx context.Context) *governance.Builder {
	s.mu.Lock()
	v := s.view
	s.mu.Unlock()
	if v == nil {
		_ = s.route(ctx, nil)
	}
	b := governance.NewBuilder(s.Services(), s.ipfs)
	if v == nil {
		return b
	}
	return b.WithOrg(v, s.resolver.Get(s.Wallet(), v))
}

// Execute runs a built action through the lifecycle manager.
func (s *Session) Execute(ctx context.Context, a *governance.Action) (*lifecycle.Result, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	var opts []lifecycle.Option
	if a.IdempotencyKey != "" {
		opts = append(opts, lifecycle.WithIdempotencyKey(a.IdempotencyKey))
	}
	s.logger.Debug("execute", "action", a.Name, "key", a.IdempotencyKey)
	return s.manager.Execute(ctx, a.Call, a.Notify, a.Events, opts...)
}

// Describe fetches the markdown description stored at cid. Task and
// proposal metadata carry it in a JSON envelope; anything else is
// returned as text.
func (s *Session) Describe(ctx context.Context, cid string) (string, error) {
	if cid == "" {
		return "", nil
	}
	data, err := s.ipfs.Get(ctx, cid)
	if err != nil {
		return "", err
	}
	return description(data), nil
}

func description(data []byte) string {
	var meta struct {
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(data, &meta); err == nil && meta.Description != nil {
		return *meta.Description
	}
	return string(data)
}

// OptionNames loads the option names of a proposal's metadata, if any.
func (s *Session) OptionNames(ctx context.Context, cid string) []string {
	if cid == "" {
		return nil
	}
	var meta ipfs.ProposalMetadata
	if err := ipfs.GetJSON(ctx, s.ipfs, cid, &meta); err != nil {
		s.logger.Debug("proposal metadata unavailable", "cid", cid, "err", err)
		return nil
	}
	return meta.OptionNames
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
