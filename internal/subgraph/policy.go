package subgraph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
)

// Policy decides whether a query may be answered from cache.
type Policy int

const (
	// Default resolves to the family's DefaultPolicy.
	Default Policy = iota - 1
	// CacheFirst answers from cache when present (reference data).
	CacheFirst Policy = iota
	// CacheAndNetwork answers from cache immediately and refreshes in the
	// background (mutable lists).
	CacheAndNetwork
	// NetworkOnly always fetches (write-driven refetches, session start).
	NetworkOnly
)

func (p Policy) String() string {
	switch p {
	case Default:
		return "default"
	case CacheFirst:
		return "cache-first"
	case CacheAndNetwork:
		return "cache-and-network"
	case NetworkOnly:
		return "network-only"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy is the inverse of String.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range []Policy{CacheFirst, CacheAndNetwork, NetworkOnly} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown cache policy %q", s)
}

// Family aliases the refresh vocabulary so invalidation can be keyed by the
// same names events use.
type Family = events.Family

// DefaultPolicy is the policy a family's queries use unless the caller
// overrides it.
func DefaultPolicy(f Family) Policy {
	switch f {
	case events.FamilyOrganization, events.FamilyRoles, events.FamilyInfra:
		return CacheFirst
	case events.FamilyProposals, events.FamilyTasks, events.FamilyTokenRequests,
		events.FamilyVouches, events.FamilyMembers:
		return CacheAndNetwork
	}
	return NetworkOnly
}

// Request is one query execution.
type Request struct {
	Name      string
	Query     string
	Variables map[string]any
	OrgID     string
	Family    Family
}

// Key is the cache key: query name plus canonical variables. json.Marshal
// sorts map keys, so equal variable sets produce equal keys.
func (r Request) Key() string {
	if len(r.Variables) == 0 {
		return r.Name
	}
	vars, err := json.Marshal(r.Variables)
	if err != nil {
		return r.Name + fmt.Sprintf("%v", r.Variables)
	}
	return r.Name + string(vars)
}

// NormalizeID lowercases hex ids (org ids, addresses, tx hashes).
func NormalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHat returns the zero-padded hex form of a hat id, or the input
// lowercased when it is not a valid hat id.
func NormalizeHat(s string) string {
	if n, err := encoding.NormalizeHatID(s); err == nil {
		return n
	}
	return NormalizeID(s)
}

// ProposalKey is the subgraph's composite proposal id.
func ProposalKey(contract, proposalID string) string {
	return NormalizeID(contract) + "-" + strings.TrimSpace(proposalID)
}

// SplitProposalKey extracts the contract and numeric id from a composite id.
func SplitProposalKey(id string) (contract, proposalID string, err error) {
	contract, proposalID, ok := strings.Cut(id, "-")
	if !ok || contract == "" || proposalID == "" || strings.Contains(proposalID, "-") {
		return "", "", fmt.Errorf("malformed proposal id %q", id)
	}
	for _, r := range proposalID {
		if r < '0' || r > '9' {
			return "", "", fmt.Errorf("malformed proposal id %q", id)
		}
	}
	return NormalizeID(contract), proposalID, nil
}
