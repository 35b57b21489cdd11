// Package models holds the raw subgraph entities and the read-only
// projections derived from them.
package models

import (
	"math/big"
	"sort"
	"time"
)

// ProposalStatus represents a proposal's lifecycle position
type ProposalStatus string

const (
	ProposalOpen                 ProposalStatus = "open"
	ProposalAwaitingAnnouncement ProposalStatus = "awaiting_announcement"
	ProposalFinalized            ProposalStatus = "finalized"
	ProposalFinalizedNoQuorum    ProposalStatus = "finalized_no_quorum"
)

// IsFinal reports whether the proposal has been announced.
func (s ProposalStatus) IsFinal() bool {
	return s == ProposalFinalized || s == ProposalFinalizedNoQuorum
}

// TaskStatus represents task state
type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskApplied   TaskStatus = "applied"
	TaskClaimed   TaskStatus = "claimed"
	TaskSubmitted TaskStatus = "submitted"
	TaskApproved  TaskStatus = "approved"
	TaskRejected  TaskStatus = "rejected"
)

// RequestStatus represents token request state
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestCancelled RequestStatus = "cancelled"
)

// MembershipStatus is Active when the wallet wears a hat in good standing
type MembershipStatus string

const (
	MemberActive   MembershipStatus = "active"
	MemberInactive MembershipStatus = "inactive"
)

// VotingStrategy is a hybrid voting class
type VotingStrategy string

const (
	StrategyDirect   VotingStrategy = "DIRECT"
	StrategyERC20Bal VotingStrategy = "ERC20_BAL"
)

// Permission is a capability granted to a role through a role-assignment
// bitmap.
type Permission string

const (
	PermQuickJoin             Permission = "quick_join"
	PermTokenMember           Permission = "token_member"
	PermTokenApprover         Permission = "token_approver"
	PermTaskCreator           Permission = "task_creator"
	PermEducationCreator      Permission = "education_creator"
	PermEducationMember       Permission = "education_member"
	PermHybridProposalCreator Permission = "hybrid_proposal_creator"
	PermDDVoter               Permission = "dd_voter"
	PermDDCreator             Permission = "dd_creator"
)

// AllPermissions lists permissions in display order.
func AllPermissions() []Permission {
	return []Permission{
		PermQuickJoin, PermTokenMember, PermTokenApprover, PermTaskCreator,
		PermEducationCreator, PermEducationMember, PermHybridProposalCreator,
		PermDDVoter, PermDDCreator,
	}
}

// PermissionSet is the set of permissions a role holds.
type PermissionSet map[Permission]bool

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool { return s[p] }

// Sorted returns the members in AllPermissions order.
func (s PermissionSet) Sorted() []Permission {
	var out []Permission
	for _, p := range AllPermissions() {
		if s[p] {
			out = append(out, p)
		}
	}
	return out
}

// ContractAddresses is the deployed contract set of an organization.
// Addresses are lowercase hex; empty means not deployed.
type ContractAddresses struct {
	Executor              string `json:"executor"`
	HybridVoting          string `json:"hybrid_voting,omitempty"`
	DirectDemocracyVoting string `json:"direct_democracy_voting,omitempty"`
	ParticipationToken    string `json:"participation_token,omitempty"`
	TaskManager           string `json:"task_manager,omitempty"`
	PaymentManager        string `json:"payment_manager,omitempty"`
	EducationHub          string `json:"education_hub,omitempty"`
	EligibilityModule     string `json:"eligibility_module,omitempty"`
	ToggleModule          string `json:"toggle_module,omitempty"`
	QuickJoin             string `json:"quick_join,omitempty"`
}

// Organization is the derived organization view.
type Organization struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	MetadataCID    string            `json:"metadata_cid,omitempty"`
	LogoCID        string            `json:"logo_cid,omitempty"`
	CreatedAtBlock uint64            `json:"created_at_block"`
	TopHatID       string            `json:"top_hat_id"`
	Addresses      ContractAddresses `json:"addresses"`
	TokenSymbol    string            `json:"token_symbol,omitempty"`
	TokenDecimals  uint8             `json:"token_decimals"`
	DDQuorum       int               `json:"dd_quorum"`
	HybridQuorum   int               `json:"hybrid_quorum"`
	VotingClasses  []VotingClass     `json:"voting_classes,omitempty"`
	Roles          []Role            `json:"roles"`
	IsIndexing     bool              `json:"is_indexing,omitempty"`
}

// RoleByHat returns the role with the given normalized hat id.
func (o *Organization) RoleByHat(hatID string) (*Role, bool) {
	for i := range o.Roles {
		if o.Roles[i].HatID == hatID {
			return &o.Roles[i], true
		}
	}
	return nil, false
}

// TopLevelRole returns the role administered by the top hat.
func (o *Organization) TopLevelRole() (*Role, bool) {
	for i := range o.Roles {
		if o.Roles[i].IsTopLevel {
			return &o.Roles[i], true
		}
	}
	return nil, false
}

// Role is a derived role with member count and permissions.
type Role struct {
	Index          int           `json:"index"`
	HatID          string        `json:"hat_id"`
	Name           string        `json:"name"`
	MetadataCID    string        `json:"metadata_cid,omitempty"`
	CanVote        bool          `json:"can_vote"`
	AdminRoleIndex AdminIndex    `json:"admin_role_index"`
	IsTopLevel     bool          `json:"is_top_level"`
	Vouching       VouchConfig   `json:"vouching"`
	Defaults       RoleDefaults  `json:"defaults"`
	Distribution   Distribution  `json:"distribution"`
	HatConfig      HatConfig     `json:"hat_config"`
	Wearers        []string      `json:"wearers"`
	MemberCount    int           `json:"member_count"`
	Permissions    PermissionSet `json:"permissions"`
}

// Member is a wallet wearing at least one of the organization's hats.
type Member struct {
	Address        string           `json:"address"`
	Username       string           `json:"username,omitempty"`
	HatIDs         []string         `json:"hat_ids"`
	TokenBalance   *big.Int         `json:"token_balance"`
	Status         MembershipStatus `json:"status"`
	TasksCompleted int              `json:"tasks_completed"`
	VotesCast      int              `json:"votes_cast"`
	FirstSeen      time.Time        `json:"first_seen,omitempty"`
}

// Call is one call of an execution batch.
type Call struct {
	Target string   `json:"target"`
	Value  *big.Int `json:"value"`
	Data   string   `json:"data"`
}

// Proposal is the derived proposal view.
type Proposal struct {
	ID               string         `json:"id"`
	ProposalID       string         `json:"proposal_id"`
	Contract         string         `json:"contract"`
	IsHybrid         bool           `json:"is_hybrid"`
	Title            string         `json:"title"`
	DescriptionCID   string         `json:"description_cid,omitempty"`
	Creator          string         `json:"creator"`
	EndsAt           time.Time      `json:"ends_at"`
	CreatedAt        time.Time      `json:"created_at"`
	NumOptions       int            `json:"num_options"`
	OptionVotes      []*big.Int     `json:"option_votes"`
	TotalVotes       *big.Int       `json:"total_votes"`
	Voters           []string       `json:"voters,omitempty"`
	RestrictedHatIDs []string       `json:"restricted_hat_ids,omitempty"`
	ExecutionBatches [][]Call       `json:"execution_batches,omitempty"`
	Status           ProposalStatus `json:"status"`
	WinningOption    *int           `json:"winning_option,omitempty"`
	IsIndexing       bool           `json:"is_indexing,omitempty"`
	TxHash           string         `json:"tx_hash,omitempty"`
}

// HasVoted reports whether wallet is among the voters.
func (p *Proposal) HasVoted(wallet string) bool {
	for _, v := range p.Voters {
		if v == wallet {
			return true
		}
	}
	return false
}

// Task is the derived task view.
type Task struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	DescriptionCID      string     `json:"description_cid,omitempty"`
	Payout              *big.Int   `json:"payout"`
	Status              TaskStatus `json:"status"`
	Creator             string     `json:"creator,omitempty"`
	Claimer             string     `json:"claimer,omitempty"`
	Applicants          []string   `json:"applicants,omitempty"`
	RequiresApplication bool       `json:"requires_application,omitempty"`
	ProjectID           string     `json:"project_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	IsIndexing          bool       `json:"is_indexing,omitempty"`
	TxHash              string     `json:"tx_hash,omitempty"`
}

// TokenRequest is the derived token request view.
type TokenRequest struct {
	ID         string        `json:"id"`
	Requester  string        `json:"requester"`
	Amount     *big.Int      `json:"amount"`
	Reason     string        `json:"reason,omitempty"`
	Status     RequestStatus `json:"status"`
	Approver   string        `json:"approver,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	IsIndexing bool          `json:"is_indexing,omitempty"`
	TxHash     string        `json:"tx_hash,omitempty"`
}

// VouchProgress tracks a pending vouch request for (wearer, hat).
type VouchProgress struct {
	Wearer    string   `json:"wearer"`
	HatID     string   `json:"hat_id"`
	Vouchers  []string `json:"vouchers"`
	Quorum    int      `json:"quorum"`
	Remaining int      `json:"remaining"`
	Complete  bool     `json:"complete"`
}

// VotingClass is a validated hybrid voting class.
type VotingClass struct {
	Strategy   VotingStrategy `json:"strategy"`
	SlicePct   int            `json:"slice_pct"`
	Quadratic  bool           `json:"quadratic,omitempty"`
	MinBalance *big.Int       `json:"min_balance,omitempty"`
	HatIDs     []string       `json:"hat_ids,omitempty"`
}

// ClassPower is one class's contribution to a wallet's voting power.
type ClassPower struct {
	Strategy VotingStrategy `json:"strategy"`
	Raw      float64        `json:"raw"`
	Weighted float64        `json:"weighted"`
}

// VotingPower is a wallet's power split into membership (direct) and
// contribution (token) parts. Share is the wallet's fraction of the
// organization-wide weighted total, in [0, 1].
type VotingPower struct {
	Wallet       string       `json:"wallet"`
	Classes      []ClassPower `json:"classes,omitempty"`
	Membership   float64      `json:"membership"`
	Contribution float64      `json:"contribution"`
	Total        float64      `json:"total"`
	Share        float64      `json:"share"`
}

// Placeholder stands in for a row the subgraph has not indexed yet.
type Placeholder struct {
	Family    string    `json:"family"`
	OrgID     string    `json:"org_id"`
	EntityID  string    `json:"entity_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Creator   string    `json:"creator,omitempty"`
	TxHash    string    `json:"tx_hash"`
	CreatedAt time.Time `json:"created_at"`
	Exhausted bool      `json:"exhausted,omitempty"`
}

// SortPlaceholders orders placeholders by creation time, then tx hash.
func SortPlaceholders(ps []Placeholder) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].TxHash < ps[j].TxHash
	})
}
