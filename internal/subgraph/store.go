package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("subgraph store closed")

// Entry is a cached (or in-flight, with nil Data) query result.
type Entry struct {
	Key       string
	Request   Request
	Data      json.RawMessage
	FetchedAt time.Time
}

// Response is the result of Execute. Stale is set when the data came from
// cache under CacheAndNetwork and a background refresh is in progress.
type Response struct {
	Data      json.RawMessage
	FetchedAt time.Time
	FromCache bool
	Stale     bool
}

// Decode unmarshals the data object into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Size   int
	TTL    time.Duration
	Logger *slog.Logger
}

// Stats counts cache outcomes.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Fetches     int64 `json:"fetches"`
	Refreshes   int64 `json:"refreshes"`
	Invalidated int64 `json:"invalidated"`
}

// Store is the shared query cache. All mutations of cached data go through
// Execute (fetch results) and Invalidate.
type Store struct {
	fetcher Fetcher
	cache   *expirable.LRU[string, Entry]
	group   singleflight.Group
	logger  *slog.Logger

	mu       sync.Mutex
	gens     map[string]uint64 // bumped on invalidation; fetches started earlier are not cached
	inflight map[string]Request
	watchers map[uint64]func(Entry)
	nextW    uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool

	hits, misses, fetches, refreshes, invalidated atomic.Int64
}

// NewStore creates a store in front of f.
func NewStore(f Fetcher, opts StoreOptions) *Store {
	if opts.Size <= 0 {
		opts.Size = 512
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		fetcher:  f,
		cache:    expirable.NewLRU[string, Entry](opts.Size, nil, opts.TTL),
		logger:   opts.Logger,
		gens:     make(map[string]uint64),
		inflight: make(map[string]Request),
		watchers: make(map[uint64]func(Entry)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Execute runs req under policy.
func (s *Store) Execute(ctx context.Context, req Request, policy Policy) (*Response, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	key := req.Key()

	if policy != NetworkOnly {
		if e, ok := s.cache.Get(key); ok {
			s.hits.Add(1)
			resp := &Response{Data: e.Data, FetchedAt: e.FetchedAt, FromCache: true}
			if policy == CacheAndNetwork {
				resp.Stale = true
				s.refresh(req)
			}
			return resp, nil
		}
		s.misses.Add(1)
	}

	e, err := s.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Response{Data: e.Data, FetchedAt: e.FetchedAt}, nil
}

// fetch coalesces identical requests issued under the same generation.
func (s *Store) fetch(ctx context.Context, req Request) (Entry, error) {
	key := req.Key()
	s.mu.Lock()
	gen := s.gens[key]
	s.inflight[key] = req
	s.mu.Unlock()

	ch := s.group.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		s.fetches.Add(1)
		data, err := s.fetcher.Do(s.ctx, req.Query, req.Variables)
		if err != nil {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
			return Entry{}, err
		}
		e := Entry{Key: key, Request: req, Data: data, FetchedAt: time.Now()}
		s.store(e, gen)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Entry{}, fmt.Errorf("%s: %w", req.Name, r.Err)
		}
		return r.Val.(Entry), nil
	}
}

func (s *Store) store(e Entry, gen uint64) {
	s.mu.Lock()
	delete(s.inflight, e.Key)
	if s.gens[e.Key] != gen || s.closed.Load() {
		s.mu.Unlock()
		return
	}
	s.cache.Add(e.Key, e)
	watchers := make([]func(Entry), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(e)
	}
}

// refresh fetches req in the background, detached from the caller.
func (s *Store) refresh(req Request) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshes.Add(1)
		if _, err := s.fetch(s.ctx, req); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("background refresh failed", "query", req.Name, "err", err)
		}
	}()
}

// Watch registers fn to be called with every entry stored from the network.
func (s *Store) Watch(fn func(Entry)) (cancel func()) {
	s.mu.Lock()
	s.nextW++
	id := s.nextW
	s.watchers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Invalidate drops every cached entry matching pred and marks matching
// in-flight fetches so their results are not cached. It returns the number
// of cached entries dropped.
func (s *Store) Invalidate(pred func(Entry) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, key := range s.cache.Keys() {
		e, ok := s.cache.Peek(key)
		if !ok || !pred(e) {
			continue
		}
		s.cache.Remove(key)
		s.gens[key]++
		n++
	}
	for key, req := range s.inflight {
		if pred(Entry{Key: key, Request: req}) {
			s.gens[key]++
		}
	}
	s.invalidated.Add(int64(n))
	return n
}

// InvalidateFamily drops the org's entries in any of families. An empty
// orgID matches every organization.
func (s *Store) InvalidateFamily(orgID string, families ...Family) int {
	orgID = NormalizeID(orgID)
	set := make(map[Family]bool, len(families))
	for _, f := range families {
		set[f] = true
	}
	return s.Invalidate(func(e Entry) bool {
		if orgID != "" && e.Request.OrgID != "" && e.Request.OrgID != orgID {
			return false
		}
		return set[e.Request.Family]
	})
}

// Len returns the number of cached entries.
func (s *Store) Len() int { return s.cache.Len() }

// Stats returns a snapshot of cache counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Fetches:     s.fetches.Load(),
		Refreshes:   s.refreshes.Load(),
		Invalidated: s.invalidated.Load(),
	}
}

// Close abandons background refreshes and waits for them to return.
func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cache.Purge()
}
