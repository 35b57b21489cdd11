package subgraph

import (
	"context"
	"fmt"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/models"
)

const roleFields = `
      index
      hatId
      name
      metadataHash
      canVote
      adminRoleIndex
      vouching { enabled quorum voucherRoleIndex combineWithHierarchy }
      defaults { eligible standing }
      distribution { mintToDeployer additionalWearers }
      hatConfig { maxSupply mutable }
      wearers { address eligible standing }`

const organizationQuery = `query Organization($id: ID!) {
  organization(id: $id) {
    id
    name
    metadataHash
    logoHash
    createdAtBlock
    topHatId
    executor
    hybridVoting
    directDemocracyVoting
    participationToken
    taskManager
    paymentManager
    educationHub
    eligibilityModule
    toggleModule
    quickJoin
    tokenSymbol
    tokenDecimals
    hybridQuorum
    ddQuorum
    votingClasses { strategy slicePct quadratic minBalance asset hatIds }
    permissions {
      quickJoinRoles
      tokenMemberRoles
      tokenApproverRoles
      taskCreatorRoles
      educationCreatorRoles
      educationMemberRoles
      hybridProposalCreatorRoles
      ddVotingRoles
      ddCreatorRoles
    }
    roles(orderBy: index) {` + roleFields + `
    }
    users(first: 1000) {
      address
      username
      tokenBalance
      tasksCompleted
      votesCast
      firstSeenAt
    }
  }
}`

const proposalFields = `
    id
    proposalId
    contract
    isHybrid
    title
    descriptionHash
    creator
    endTimestamp
    createdAt
    numOptions
    optionVotes
    totalVotes
    votes { voter options weights }
    restrictedHatIds
    executionBatches { target value data }
    announced
    winningOption
    isValid
    txHash`

const proposalsQuery = `query Proposals($org: String!, $first: Int!) {
  proposals(where: { organization: $org }, orderBy: createdAt, orderDirection: asc, first: $first) {` + proposalFields + `
  }
}`

const proposalQuery = `query Proposal($id: ID!) {
  proposal(id: $id) {` + proposalFields + `
  }
}`

const taskFields = `
    id
    title
    descriptionHash
    payout
    status
    creator
    claimer
    applicants
    requiresApplication
    projectId
    submissionHash
    createdAt
    txHash`

const tasksQuery = `query Tasks($org: String!, $first: Int!) {
  tasks(where: { organization: $org }, orderBy: createdAt, orderDirection: asc, first: $first) {` + taskFields + `
  }
}`

const taskQuery = `query Task($org: String!, $taskId: String!) {
  tasks(where: { organization: $org, taskId: $taskId }, first: 1) {` + taskFields + `
  }
}`

const tokenRequestsQuery = `query TokenRequests($org: String!, $first: Int!) {
  tokenRequests(where: { organization: $org }, orderBy: createdAt, orderDirection: asc, first: $first) {
    id
    requester
    amount
    reason
    status
    approver
    createdAt
    txHash
  }
}`

const vouchesQuery = `query Vouches($org: String!, $first: Int!) {
  vouches(where: { organization: $org, active: true }, first: $first) {
    wearer
    hatId
    voucher
    active
    createdAt
  }
}`

const hatWearersQuery = `query HatWearers($org: String!, $hatId: String!) {
  roles(where: { organization: $org, hatId: $hatId }, first: 1) {
    wearers { address eligible standing }
  }
}`

const userQuery = `query User($id: ID!) {
  user(id: $id) {
    address
    username
    memberOf
    firstSeenAt
  }
}`

const infrastructureQuery = `query Infrastructure {
  poaManagerContracts(first: 1) {
    poaManager
    orgDeployer
    orgRegistry
    accountRegistry
    beacons { typeName implementation version }
  }
}`

// PageSize bounds list queries.
const PageSize = 1000

// Queries exposes one typed method per entity family.
type Queries struct {
	store *Store
}

// NewQueries wraps s.
func NewQueries(s *Store) *Queries {
	return &Queries{store: s}
}

// Store returns the underlying cache.
func (q *Queries) Store() *Store { return q.store }

func (q *Queries) run(ctx context.Context, req Request, p Policy, out any) (*Response, error) {
	if p == Default {
		p = DefaultPolicy(req.Family)
	}
	resp, err := q.store.Execute(ctx, req, p)
	if err != nil {
		return nil, err
	}
	if err := resp.Decode(out); err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return resp, nil
}

// Organization loads an organization with its roles, permissions and users.
func (q *Queries) Organization(ctx context.Context, orgID string, p Policy) (*models.RawOrganization, error) {
	orgID = NormalizeID(orgID)
	var out struct {
		Organization *models.RawOrganization `json:"organization"`
	}
	req := Request{
		Name:      "Organization",
		Query:     organizationQuery,
		Variables: map[string]any{"id": orgID},
		OrgID:     orgID,
		Family:    events.FamilyOrganization,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	if out.Organization == nil {
		return nil, fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
	}
	return out.Organization, nil
}

// OrganizationByName resolves the deterministic id of name and loads it.
func (q *Queries) OrganizationByName(ctx context.Context, name string, p Policy) (*models.RawOrganization, error) {
	return q.Organization(ctx, encoding.OrgIDHex(name), p)
}

// Proposals lists the organization's proposals on both voting contracts.
func (q *Queries) Proposals(ctx context.Context, orgID string, p Policy) ([]models.RawProposal, error) {
	orgID = NormalizeID(orgID)
	var out struct {
		Proposals []models.RawProposal `json:"proposals"`
	}
	req := Request{
		Name:      "Proposals",
		Query:     proposalsQuery,
		Variables: map[string]any{"org": orgID, "first": PageSize},
		OrgID:     orgID,
		Family:    events.FamilyProposals,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	return out.Proposals, nil
}

// Proposal loads one proposal by composite id.
func (q *Queries) Proposal(ctx context.Context, orgID, id string, p Policy) (*models.RawProposal, error) {
	contract, pid, err := SplitProposalKey(id)
	if err != nil {
		return nil, err
	}
	key := ProposalKey(contract, pid)
	var out struct {
		Proposal *models.RawProposal `json:"proposal"`
	}
	req := Request{
		Name:      "Proposal",
		Query:     proposalQuery,
		Variables: map[string]any{"id": key},
		OrgID:     NormalizeID(orgID),
		Family:    events.FamilyProposals,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	if out.Proposal == nil {
		return nil, fmt.Errorf("proposal %s: %w", key, ErrNotFound)
	}
	return out.Proposal, nil
}

// Tasks lists the organization's tasks.
func (q *Queries) Tasks(ctx context.Context, orgID string, p Policy) ([]models.RawTask, error) {
	orgID = NormalizeID(orgID)
	var out struct {
		Tasks []models.RawTask `json:"tasks"`
	}
	req := Request{
		Name:      "Tasks",
		Query:     tasksQuery,
		Variables: map[string]any{"org": orgID, "first": PageSize},
		OrgID:     orgID,
		Family:    events.FamilyTasks,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Task loads one task by id.
func (q *Queries) Task(ctx context.Context, orgID, taskID string, p Policy) (*models.RawTask, error) {
	orgID = NormalizeID(orgID)
	var out struct {
		Tasks []models.RawTask `json:"tasks"`
	}
	req := Request{
		Name:      "Task",
		Query:     taskQuery,
		Variables: map[string]any{"org": orgID, "taskId": taskID},
		OrgID:     orgID,
		Family:    events.FamilyTasks,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	if len(out.Tasks) == 0 {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return &out.Tasks[0], nil
}

// TokenRequests lists participation-token requests.
func (q *Queries) TokenRequests(ctx context.Context, orgID string, p Policy) ([]models.RawTokenRequest, error) {
	orgID = NormalizeID(orgID)
	var out struct {
		TokenRequests []models.RawTokenRequest `json:"tokenRequests"`
	}
	req := Request{
		Name:      "TokenRequests",
		Query:     tokenRequestsQuery,
		Variables: map[string]any{"org": orgID, "first": PageSize},
		OrgID:     orgID,
		Family:    events.FamilyTokenRequests,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	return out.TokenRequests, nil
}

// Vouches lists active vouches.
func (q *Queries) Vouches(ctx context.Context, orgID string, p Policy) ([]models.RawVouch, error) {
	orgID = NormalizeID(orgID)
	var out struct {
		Vouches []models.RawVouch `json:"vouches"`
	}
	req := Request{
		Name:      "Vouches",
		Query:     vouchesQuery,
		Variables: map[string]any{"org": orgID, "first": PageSize},
		OrgID:     orgID,
		Family:    events.FamilyVouches,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	return out.Vouches, nil
}

// HatWearers lists the wearers of one hat.
func (q *Queries) HatWearers(ctx context.Context, orgID, hatID string, p Policy) ([]models.RawWearer, error) {
	orgID = NormalizeID(orgID)
	hat, err := encoding.NormalizeHatID(hatID)
	if err != nil {
		return nil, err
	}
	var out struct {
		Roles []struct {
			Wearers []models.RawWearer `json:"wearers"`
		} `json:"roles"`
	}
	req := Request{
		Name:      "HatWearers",
		Query:     hatWearersQuery,
		Variables: map[string]any{"org": orgID, "hatId": hat},
		OrgID:     orgID,
		Family:    events.FamilyRoles,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	if len(out.Roles) == 0 {
		return nil, fmt.Errorf("hat %s: %w", hat, ErrNotFound)
	}
	return out.Roles[0].Wearers, nil
}

// User loads the global account record of a wallet.
func (q *Queries) User(ctx context.Context, address string, p Policy) (*models.RawUser, error) {
	address = NormalizeID(address)
	var out struct {
		User *models.RawUser `json:"user"`
	}
	req := Request{
		Name:      "User",
		Query:     userQuery,
		Variables: map[string]any{"id": address},
		Family:    events.FamilyUser,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("user %s: %w", address, ErrNotFound)
	}
	return out.User, nil
}

// Infrastructure loads the protocol-wide contract addresses.
func (q *Queries) Infrastructure(ctx context.Context, p Policy) (*models.RawInfrastructure, error) {
	var out struct {
		Contracts []models.RawInfrastructure `json:"poaManagerContracts"`
	}
	req := Request{
		Name:   "Infrastructure",
		Query:  infrastructureQuery,
		Family: events.FamilyInfra,
	}
	if _, err := q.run(ctx, req, p, &out); err != nil {
		return nil, err
	}
	if len(out.Contracts) == 0 {
		return nil, fmt.Errorf("infrastructure: %w", ErrNotFound)
	}
	return &out.Contracts[0], nil
}
