package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Go mirrors of the ABI tuples. Field names follow abi.ToCamelCase of the
// component names, which is how the packer matches them.

// BatchCall is one call of a proposal execution batch.
type BatchCall struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// ClassConfig is a hybrid voting class.
type ClassConfig struct {
	Strategy   uint8
	SlicePct   uint8
	Quadratic  bool
	MinBalance *big.Int
	Asset      common.Address
	HatIds     []*big.Int
}

// Voting class strategies as encoded on chain.
const (
	StrategyDirect   uint8 = 0
	StrategyERC20Bal uint8 = 1
)

// VouchingConfig mirrors the role vouching tuple.
type VouchingConfig struct {
	Enabled              bool
	Quorum               uint32
	VoucherRoleIndex     *big.Int
	CombineWithHierarchy bool
}

// RoleEligibilityDefaults mirrors the defaults tuple.
type RoleEligibilityDefaults struct {
	Eligible bool
	Standing bool
}

// HierarchyConfig mirrors the hierarchy tuple.
type HierarchyConfig struct {
	AdminRoleIndex *big.Int
}

// RoleDistributionConfig mirrors the distribution tuple.
type RoleDistributionConfig struct {
	MintToDeployer    bool
	AdditionalWearers []common.Address
}

// HatConfig mirrors the hat config tuple.
type HatConfig struct {
	MaxSupply  uint32
	MutableHat bool
}

// RoleConfig is one role in the deployment params.
type RoleConfig struct {
	Name         string
	Image        string
	CanVote      bool
	Vouching     VouchingConfig
	Defaults     RoleEligibilityDefaults
	Hierarchy    HierarchyConfig
	Distribution RoleDistributionConfig
	HatConfig    HatConfig
}

// TopAdminIndex is the on-chain encoding of "administered by the top hat".
var TopAdminIndex = math.MaxBig256

// RoleAssignments are the nine role-assignment bitmaps.
type RoleAssignments struct {
	QuickJoinRolesBitmap             *big.Int
	TokenMemberRolesBitmap           *big.Int
	TokenApproverRolesBitmap         *big.Int
	TaskCreatorRolesBitmap           *big.Int
	EducationCreatorRolesBitmap      *big.Int
	EducationMemberRolesBitmap       *big.Int
	HybridProposalCreatorRolesBitmap *big.Int
	DdVotingRolesBitmap              *big.Int
	DdCreatorRolesBitmap             *big.Int
}

// DeploymentParams is the argument of deployFullOrg.
type DeploymentParams struct {
	OrgId               [32]byte
	OrgName             string
	MetadataHash        [32]byte
	LogoURL             string
	RegistryAddr        common.Address
	HybridQuorumPct     uint8
	DdQuorumPct         uint8
	HybridClasses       []ClassConfig
	DdInitialTargets    []common.Address
	Roles               []RoleConfig
	RoleAssignments     RoleAssignments
	EducationHubEnabled bool
	// PasskeyEnabled is forwarded as given; the deployer's semantics for it
	// are not interpreted here.
	PasskeyEnabled bool
}

// ProposalInput is the normalized argument set of createProposal.
type ProposalInput struct {
	Title           string
	DescriptionHash [32]byte
	Minutes         uint32
	NumOptions      uint8
	Batches         [][]BatchCall
	HatIDs          []*big.Int
}

// DeployedAddresses is decoded from the OrgDeployed event.
type DeployedAddresses struct {
	OrgID                 common.Hash
	Executor              common.Address
	HybridVoting          common.Address
	DirectDemocracyVoting common.Address
	QuickJoin             common.Address
	ParticipationToken    common.Address
	TaskManager           common.Address
	EducationHub          common.Address
	PaymentManager        common.Address
	EligibilityModule     common.Address
	ToggleModule          common.Address
	TopHatID              *big.Int
	RoleHatIDs            []*big.Int
}
