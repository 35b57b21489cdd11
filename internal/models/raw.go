package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Raw* types mirror the subgraph schema. BigInt and Bytes scalars arrive as
// strings and are converted by the derived model.

// RawOrganization is the subgraph Organization entity with its nested roles.
type RawOrganization struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	MetadataHash   string `json:"metadataHash"`
	LogoHash       string `json:"logoHash"`
	CreatedAtBlock string `json:"createdAtBlock"`
	TopHatID       string `json:"topHatId"`

	Executor              string `json:"executor"`
	HybridVoting          string `json:"hybridVoting"`
	DirectDemocracyVoting string `json:"directDemocracyVoting"`
	ParticipationToken    string `json:"participationToken"`
	TaskManager           string `json:"taskManager"`
	PaymentManager        string `json:"paymentManager"`
	EducationHub          string `json:"educationHub"`
	EligibilityModule     string `json:"eligibilityModule"`
	ToggleModule          string `json:"toggleModule"`
	QuickJoin             string `json:"quickJoin"`

	TokenSymbol   string `json:"tokenSymbol"`
	TokenDecimals int    `json:"tokenDecimals"`

	HybridQuorum  int `json:"hybridQuorum"`
	DDQuorum      int `json:"ddQuorum"`
	VotingClasses []RawVotingClass `json:"votingClasses"`

	Permissions RawPermissions `json:"permissions"`
	Roles       []RawRole      `json:"roles"`
	Users       []RawMember    `json:"users"`
}

// RawPermissions holds the on-chain role-assignment bitmaps, one bit per
// role index.
type RawPermissions struct {
	QuickJoinRoles             string `json:"quickJoinRoles"`
	TokenMemberRoles           string `json:"tokenMemberRoles"`
	TokenApproverRoles         string `json:"tokenApproverRoles"`
	TaskCreatorRoles           string `json:"taskCreatorRoles"`
	EducationCreatorRoles      string `json:"educationCreatorRoles"`
	EducationMemberRoles       string `json:"educationMemberRoles"`
	HybridProposalCreatorRoles string `json:"hybridProposalCreatorRoles"`
	DDVotingRoles              string `json:"ddVotingRoles"`
	DDCreatorRoles             string `json:"ddCreatorRoles"`
}

// RawVotingClass is one weighting class of the hybrid voting contract.
type RawVotingClass struct {
	Strategy   string   `json:"strategy"`
	SlicePct   int      `json:"slicePct"`
	Quadratic  bool     `json:"quadratic"`
	MinBalance string   `json:"minBalance"`
	Asset      string   `json:"asset"`
	HatIDs     []string `json:"hatIds"`
}

// RawRole is a role with its hat configuration and current wearers.
type RawRole struct {
	Index          int        `json:"index"`
	HatID          string     `json:"hatId"`
	Name           string     `json:"name"`
	MetadataHash   string     `json:"metadataHash"`
	CanVote        bool       `json:"canVote"`
	AdminRoleIndex AdminIndex `json:"adminRoleIndex"`

	Vouching     VouchConfig  `json:"vouching"`
	Defaults     RoleDefaults `json:"defaults"`
	Distribution Distribution `json:"distribution"`
	HatConfig    HatConfig    `json:"hatConfig"`

	Wearers []RawWearer `json:"wearers"`
}

// RawWearer is a wallet wearing a hat, with its eligibility-module status.
type RawWearer struct {
	Address  string `json:"address"`
	Eligible bool   `json:"eligible"`
	Standing bool   `json:"standing"`
}

// RawMember carries per-wallet counters for an organization.
type RawMember struct {
	Address        string `json:"address"`
	Username       string `json:"username"`
	TokenBalance   string `json:"tokenBalance"`
	TasksCompleted int    `json:"tasksCompleted"`
	VotesCast      int    `json:"votesCast"`
	FirstSeenAt    string `json:"firstSeenAt"`
}

// RawCall is one entry of a proposal execution batch.
type RawCall struct {
	Target string `json:"target"`
	Value  string `json:"value"`
	Data   string `json:"data"`
}

// RawVote is a single ballot.
type RawVote struct {
	Voter   string `json:"voter"`
	Options []int  `json:"options"`
	Weights []int  `json:"weights"`
}

// RawProposal is a proposal on either voting contract.
type RawProposal struct {
	ID               string      `json:"id"` // "<contract>-<proposalId>"
	ProposalID       string      `json:"proposalId"`
	Contract         string      `json:"contract"`
	IsHybrid         bool        `json:"isHybrid"`
	Title            string      `json:"title"`
	DescriptionHash  string      `json:"descriptionHash"`
	Creator          string      `json:"creator"`
	EndTimestamp     string      `json:"endTimestamp"`
	CreatedAt        string      `json:"createdAt"`
	NumOptions       int         `json:"numOptions"`
	OptionVotes      []string    `json:"optionVotes"`
	TotalVotes       string      `json:"totalVotes"`
	Votes            []RawVote   `json:"votes"`
	RestrictedHatIDs []string    `json:"restrictedHatIds"`
	ExecutionBatches [][]RawCall `json:"executionBatches"`
	Announced        bool        `json:"announced"`
	WinningOption    *int        `json:"winningOption"`
	IsValid          bool        `json:"isValid"`
	TxHash           string      `json:"txHash"`
}

// RawTask is a task-manager task.
type RawTask struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	DescriptionHash     string   `json:"descriptionHash"`
	Payout              string   `json:"payout"`
	Status              string   `json:"status"`
	Creator             string   `json:"creator"`
	Claimer             string   `json:"claimer"`
	Applicants          []string `json:"applicants"`
	RequiresApplication bool     `json:"requiresApplication"`
	ProjectID           string   `json:"projectId"`
	SubmissionHash      string   `json:"submissionHash"`
	CreatedAt           string   `json:"createdAt"`
	TxHash              string   `json:"txHash"`
}

// RawTokenRequest is a participation-token request.
type RawTokenRequest struct {
	ID        string `json:"id"`
	Requester string `json:"requester"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	Approver  string `json:"approver"`
	CreatedAt string `json:"createdAt"`
	TxHash    string `json:"txHash"`
}

// RawVouch is a single voucher→wearer vouch for a hat.
type RawVouch struct {
	Wearer    string `json:"wearer"`
	HatID     string `json:"hatId"`
	Voucher   string `json:"voucher"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
}

// RawUser is the global account-registry record.
type RawUser struct {
	Address     string   `json:"address"`
	Username    string   `json:"username"`
	MemberOf    []string `json:"memberOf"`
	FirstSeenAt string   `json:"firstSeenAt"`
}

// RawInfrastructure lists the protocol-wide contracts.
type RawInfrastructure struct {
	PoaManager      string      `json:"poaManager"`
	OrgDeployer     string      `json:"orgDeployer"`
	OrgRegistry     string      `json:"orgRegistry"`
	AccountRegistry string      `json:"accountRegistry"`
	Beacons         []RawBeacon `json:"beacons"`
}

// RawBeacon is an upgradeable implementation pointer.
type RawBeacon struct {
	TypeName       string `json:"typeName"`
	Implementation string `json:"implementation"`
	Version        string `json:"version"`
}

// AdminIndex is a role's admin: another role index, or AdminTop when the
// organization's top hat administers it.
type AdminIndex int

// AdminTop is the "administered by the top hat" sentinel.
const AdminTop AdminIndex = -1

// IsTop reports whether a is the top-hat sentinel.
func (a AdminIndex) IsTop() bool { return a == AdminTop }

func (a AdminIndex) String() string {
	if a.IsTop() {
		return "TOP"
	}
	return strconv.Itoa(int(a))
}

// ParseAdminIndex accepts "TOP" (any case) or a non-negative integer.
func ParseAdminIndex(s string) (AdminIndex, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "TOP") {
		return AdminTop, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid admin role index %q", s)
	}
	return AdminIndex(n), nil
}

// MarshalJSON encodes the sentinel as "TOP" and indices as numbers.
func (a AdminIndex) MarshalJSON() ([]byte, error) {
	if a.IsTop() {
		return []byte(`"TOP"`), nil
	}
	return []byte(strconv.Itoa(int(a))), nil
}

// UnmarshalJSON accepts "TOP", a number, or a numeric string.
func (a *AdminIndex) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("admin role index: %w", err)
		}
		s = strconv.Itoa(n)
	}
	v, err := ParseAdminIndex(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalText lets YAML and flag parsing share the JSON rules.
func (a *AdminIndex) UnmarshalText(b []byte) error {
	v, err := ParseAdminIndex(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// VouchConfig controls claim-by-vouching for a role.
type VouchConfig struct {
	Enabled              bool `json:"enabled" yaml:"enabled"`
	Quorum               int  `json:"quorum" yaml:"quorum"`
	VoucherRoleIndex     int  `json:"voucherRoleIndex" yaml:"voucher_role_index"`
	CombineWithHierarchy bool `json:"combineWithHierarchy" yaml:"combine_with_hierarchy"`
}

// RoleDefaults are the eligibility-module defaults applied to new wearers.
type RoleDefaults struct {
	Eligible bool `json:"eligible" yaml:"eligible"`
	Standing bool `json:"standing" yaml:"standing"`
}

// Distribution controls minting at deployment.
type Distribution struct {
	MintToDeployer    bool     `json:"mintToDeployer" yaml:"mint_to_deployer"`
	AdditionalWearers []string `json:"additionalWearers" yaml:"additional_wearers"`
}

// HatConfig is the Hats protocol configuration for a role.
type HatConfig struct {
	MaxSupply uint32 `json:"maxSupply" yaml:"max_supply"`
	Mutable   bool   `json:"mutable" yaml:"mutable"`
}
