package capability

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/orgmodel"
)

const defaultCacheSize = 64

type cacheKey struct {
	wallet string
	org    string
}

type cached struct {
	caps        *Capabilities
	fingerprint uint64
}

// Resolver caches Capabilities per (wallet, org). An entry is recomputed
// when the view's permission matrix or the wallet's hats change, or when
// an event reports a role change for that wallet.
type Resolver struct {
	mu     sync.Mutex
	cache  *lru.Cache[cacheKey, cached]
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	c, _ := lru.New[cacheKey, cached](defaultCacheSize)
	return &Resolver{cache: c, logger: logger}
}

// roleEvents change some wallet's hat set or vouch standing.
var roleEvents = []events.Kind{
	events.RoleClaimed,
	events.VouchGiven,
	events.VouchRevoked,
	events.MemberJoined,
}

// Attach drops cached entries when role-changing events arrive.
func (r *Resolver) Attach(bus *events.Bus) (detach func()) {
	return bus.Subscribe(func(ev events.Event) error {
		r.Invalidate(ev.Wallet, ev.OrgID)
		return nil
	}, roleEvents...)
}

// Get returns the capabilities of wallet in v, from cache when nothing
// they depend on has changed.
func (r *Resolver) Get(wallet string, v *orgmodel.View) *Capabilities {
	key := cacheKey{strings.ToLower(wallet), v.Org.ID}
	fp := fingerprint(key.wallet, v)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.cache.Get(key); ok && e.fingerprint == fp {
		return e.caps
	}
	caps := Resolve(key.wallet, v)
	r.cache.Add(key, cached{caps: caps, fingerprint: fp})
	r.logger.Debug("capabilities resolved", "wallet", key.wallet, "org", key.org, "admin", caps.IsAdmin)
	return caps
}

// Invalidate drops the entry for (wallet, org). An empty wallet drops
// every entry of org.
func (r *Resolver) Invalidate(wallet, orgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallet = strings.ToLower(wallet)
	for _, k := range r.cache.Keys() {
		if k.org == orgID && (wallet == "" || k.wallet == wallet) {
			r.cache.Remove(k)
		}
	}
}

// Reset drops everything, for wallet switches.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache.Purge()
	r.mu.Unlock()
}

// Len reports the number of cached entries.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

// fingerprint hashes everything Resolve reads that can change between
// derivations: role permissions, role wearers, contract addresses and
// the wallet's vouch progress.
func fingerprint(wallet string, v *orgmodel.View) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%+v|", v.Org.Addresses)
	for _, role := range v.Org.Roles {
		fmt.Fprintf(h, "%s:%v:%v:%v:%d|", role.HatID, role.Permissions.Sorted(), role.Wearers, role.Vouching, role.HatConfig.MaxSupply)
	}
	for _, p := range v.Vouches {
		if p.Wearer == wallet {
			fmt.Fprintf(h, "%s:%d|", p.HatID, len(p.Vouchers))
		}
	}
	return h.Sum64()
}
