package reconcile

import (
	"context"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/subgraph"
)

// Source is the fresh-read surface reconciliation checks predicates
// against. Every call must bypass the cache.
type Source interface {
	Organization(ctx context.Context, orgID string) (*models.RawOrganization, error)
	Proposals(ctx context.Context, orgID string) ([]models.RawProposal, error)
	Proposal(ctx context.Context, orgID, id string) (*models.RawProposal, error)
	Tasks(ctx context.Context, orgID string) ([]models.RawTask, error)
	Task(ctx context.Context, orgID, taskID string) (*models.RawTask, error)
	TokenRequests(ctx context.Context, orgID string) ([]models.RawTokenRequest, error)
	Vouches(ctx context.Context, orgID string) ([]models.RawVouch, error)
	HatWearers(ctx context.Context, orgID, hatID string) ([]models.RawWearer, error)
	User(ctx context.Context, address string) (*models.RawUser, error)
}

// Cache is the invalidation surface of the query layer.
type Cache interface {
	InvalidateFamily(orgID string, families ...events.Family) int
}

// FromQueries adapts the typed queries, forcing NetworkOnly.
func FromQueries(q *subgraph.Queries) Source {
	return networkOnly{q: q}
}

type networkOnly struct {
	q *subgraph.Queries
}

func (n networkOnly) Organization(ctx context.Context, orgID string) (*models.RawOrganization, error) {
	return n.q.Organization(ctx, orgID, subgraph.NetworkOnly)
}

func (n networkOnly) Proposals(ctx context.Context, orgID string) ([]models.RawProposal, error) {
	return n.q.Proposals(ctx, orgID, subgraph.NetworkOnly)
}

func (n networkOnly) Proposal(ctx context.Context, orgID, id string) (*models.RawProposal, error) {
	return n.q.Proposal(ctx, orgID, id, subgraph.NetworkOnly)
}

func (n networkOnly) Tasks(ctx context.Context, orgID string) ([]models.RawTask, error) {
	return n.q.Tasks(ctx, orgID, subgraph.NetworkOnly)
}

func (n networkOnly) Task(ctx context.Context, orgID, taskID string) (*models.RawTask, error) {
	return n.q.Task(ctx, orgID, taskID, subgraph.NetworkOnly)
}

func (n networkOnly) TokenRequests(ctx context.Context, orgID string) ([]models.RawTokenRequest, error) {
	return n.q.TokenRequests(ctx, orgID, subgraph.NetworkOnly)
}

func (n networkOnly) Vouches(ctx context.Context, orgID string) ([]models.RawVouch, error) {
	return n.q.Vouches(ctx, orgID, subgraph.NetworkOnly)
}

func (n networkOnly) HatWearers(ctx context.Context, orgID, hatID string) ([]models.RawWearer, error) {
	return n.q.HatWearers(ctx, orgID, hatID, subgraph.NetworkOnly)
}

func (n networkOnly) User(ctx context.Context, address string) (*models.RawUser, error) {
	return n.q.User(ctx, address, subgraph.NetworkOnly)
}
