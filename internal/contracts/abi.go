package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Logical contract names.
const (
	OrgDeployer           = "OrgDeployer"
	DirectDemocracyVoting = "DirectDemocracyVoting"
	HybridVoting          = "HybridVoting"
	TaskManager           = "TaskManager"
	PaymentManager        = "PaymentManager"
	EligibilityModule     = "EligibilityModule"
	QuickJoin             = "QuickJoin"
	OrgRegistry           = "OrgRegistry"
	AccountRegistry       = "AccountRegistry"
)

// customErrors is shared by every contract ABI so reverts decode no matter
// which contract raised them.
const customErrors = `
  {"type":"error","name":"NotCreator","inputs":[]},
  {"type":"error","name":"AlreadyClaimed","inputs":[]},
  {"type":"error","name":"QuorumNotMet","inputs":[]},
  {"type":"error","name":"AlreadyVoted","inputs":[]},
  {"type":"error","name":"VotingExpired","inputs":[]},
  {"type":"error","name":"VotingOpen","inputs":[]},
  {"type":"error","name":"Unauthorized","inputs":[]},
  {"type":"error","name":"NotEligible","inputs":[]},
  {"type":"error","name":"InvalidProposal","inputs":[]},
  {"type":"error","name":"InvalidIndex","inputs":[]},
  {"type":"error","name":"WeightSumNot100","inputs":[{"name":"sum","type":"uint256"}]},
  {"type":"error","name":"CannotApproveOwn","inputs":[]},
  {"type":"error","name":"AlreadyVouched","inputs":[]},
  {"type":"error","name":"NotVouched","inputs":[]},
  {"type":"error","name":"RequestNotPending","inputs":[]},
  {"type":"error","name":"InvalidTaskState","inputs":[]},
  {"type":"error","name":"UsernameTaken","inputs":[]},
  {"type":"error","name":"OrgExists","inputs":[]},
  {"type":"error","name":"NotWearer","inputs":[]}`

const batchComponents = `[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]`

const votingABI = `[
  {"type":"function","name":"createProposal","stateMutability":"nonpayable","inputs":[
    {"name":"title","type":"bytes"},
    {"name":"descriptionHash","type":"bytes32"},
    {"name":"minutesDuration","type":"uint32"},
    {"name":"numOptions","type":"uint8"},
    {"name":"batches","type":"tuple[][]","components":` + batchComponents + `},
    {"name":"hatIds","type":"uint256[]"}],"outputs":[]},
  {"type":"function","name":"vote","stateMutability":"nonpayable","inputs":[
    {"name":"proposalId","type":"uint256"},
    {"name":"idxs","type":"uint8[]"},
    {"name":"weights","type":"uint8[]"}],"outputs":[]},
  {"type":"function","name":"announceWinner","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[{"name":"winner","type":"uint256"},{"name":"valid","type":"bool"}]},
  {"type":"event","name":"NewProposal","anonymous":false,"inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"title","type":"bytes","indexed":false},
    {"name":"descriptionHash","type":"bytes32","indexed":false},
    {"name":"numOptions","type":"uint8","indexed":false},
    {"name":"endTimestamp","type":"uint64","indexed":false},
    {"name":"created","type":"uint64","indexed":false}]},
  {"type":"event","name":"Winner","anonymous":false,"inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"winningIdx","type":"uint256","indexed":true},
    {"name":"valid","type":"bool","indexed":false}]},
` + customErrors + `
]`

const taskManagerABI = `[
  {"type":"function","name":"createTask","stateMutability":"nonpayable","inputs":[
    {"name":"payout","type":"uint256"},
    {"name":"title","type":"bytes"},
    {"name":"metadataHash","type":"bytes32"},
    {"name":"projectId","type":"bytes32"},
    {"name":"requiresApplication","type":"bool"}],"outputs":[]},
  {"type":"function","name":"applyForTask","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"},{"name":"applicationHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"claimTask","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"submitTask","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"},{"name":"submissionHash","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"completeTask","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"rejectTask","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"},{"name":"rejectionHash","type":"bytes32"}],"outputs":[]},
  {"type":"event","name":"TaskCreated","anonymous":false,"inputs":[
    {"name":"id","type":"uint256","indexed":true},
    {"name":"project","type":"bytes32","indexed":true},
    {"name":"payout","type":"uint256","indexed":false},
    {"name":"title","type":"bytes","indexed":false},
    {"name":"metadataHash","type":"bytes32","indexed":false}]},
` + customErrors + `
]`

const paymentManagerABI = `[
  {"type":"function","name":"requestTokens","stateMutability":"nonpayable","inputs":[
    {"name":"amount","type":"uint96"},{"name":"ipfsHash","type":"string"}],"outputs":[]},
  {"type":"function","name":"approveRequest","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelRequest","stateMutability":"nonpayable","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"TokenRequested","anonymous":false,"inputs":[
    {"name":"requestId","type":"uint256","indexed":true},
    {"name":"requester","type":"address","indexed":true},
    {"name":"amount","type":"uint96","indexed":false},
    {"name":"ipfsHash","type":"string","indexed":false}]},
` + customErrors + `
]`

const eligibilityABI = `[
  {"type":"function","name":"vouchFor","stateMutability":"nonpayable","inputs":[
    {"name":"wearer","type":"address"},{"name":"hatId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"revokeVouch","stateMutability":"nonpayable","inputs":[
    {"name":"wearer","type":"address"},{"name":"hatId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimVouchedHat","stateMutability":"nonpayable","inputs":[
    {"name":"hatId","type":"uint256"}],"outputs":[]},
` + customErrors + `
]`

const quickJoinABI = `[
  {"type":"function","name":"quickJoinNoUser","stateMutability":"nonpayable","inputs":[
    {"name":"username","type":"string"}],"outputs":[]},
  {"type":"function","name":"quickJoinWithUser","stateMutability":"nonpayable","inputs":[],"outputs":[]},
` + customErrors + `
]`

const orgRegistryABI = `[
  {"type":"function","name":"updateOrgMeta","stateMutability":"nonpayable","inputs":[
    {"name":"orgId","type":"bytes32"},{"name":"newName","type":"bytes"},{"name":"newMetadataHash","type":"bytes32"}],"outputs":[]},
` + customErrors + `
]`

const accountRegistryABI = `[
  {"type":"function","name":"registerAccount","stateMutability":"nonpayable","inputs":[
    {"name":"username","type":"string"}],"outputs":[]},
` + customErrors + `
]`

const roleComponents = `[
      {"name":"name","type":"string"},
      {"name":"image","type":"string"},
      {"name":"canVote","type":"bool"},
      {"name":"vouching","type":"tuple","components":[
        {"name":"enabled","type":"bool"},
        {"name":"quorum","type":"uint32"},
        {"name":"voucherRoleIndex","type":"uint256"},
        {"name":"combineWithHierarchy","type":"bool"}]},
      {"name":"defaults","type":"tuple","components":[
        {"name":"eligible","type":"bool"},
        {"name":"standing","type":"bool"}]},
      {"name":"hierarchy","type":"tuple","components":[
        {"name":"adminRoleIndex","type":"uint256"}]},
      {"name":"distribution","type":"tuple","components":[
        {"name":"mintToDeployer","type":"bool"},
        {"name":"additionalWearers","type":"address[]"}]},
      {"name":"hatConfig","type":"tuple","components":[
        {"name":"maxSupply","type":"uint32"},
        {"name":"mutableHat","type":"bool"}]}]`

const deployerABI = `[
  {"type":"function","name":"deployFullOrg","stateMutability":"nonpayable","inputs":[
    {"name":"params","type":"tuple","components":[
      {"name":"orgId","type":"bytes32"},
      {"name":"orgName","type":"string"},
      {"name":"metadataHash","type":"bytes32"},
      {"name":"logoURL","type":"string"},
      {"name":"registryAddr","type":"address"},
      {"name":"hybridQuorumPct","type":"uint8"},
      {"name":"ddQuorumPct","type":"uint8"},
      {"name":"hybridClasses","type":"tuple[]","components":[
        {"name":"strategy","type":"uint8"},
        {"name":"slicePct","type":"uint8"},
        {"name":"quadratic","type":"bool"},
        {"name":"minBalance","type":"uint256"},
        {"name":"asset","type":"address"},
        {"name":"hatIds","type":"uint256[]"}]},
      {"name":"ddInitialTargets","type":"address[]"},
      {"name":"roles","type":"tuple[]","components":` + roleComponents + `},
      {"name":"roleAssignments","type":"tuple","components":[
        {"name":"quickJoinRolesBitmap","type":"uint256"},
        {"name":"tokenMemberRolesBitmap","type":"uint256"},
        {"name":"tokenApproverRolesBitmap","type":"uint256"},
        {"name":"taskCreatorRolesBitmap","type":"uint256"},
        {"name":"educationCreatorRolesBitmap","type":"uint256"},
        {"name":"educationMemberRolesBitmap","type":"uint256"},
        {"name":"hybridProposalCreatorRolesBitmap","type":"uint256"},
        {"name":"ddVotingRolesBitmap","type":"uint256"},
        {"name":"ddCreatorRolesBitmap","type":"uint256"}]},
      {"name":"educationHubEnabled","type":"bool"},
      {"name":"passkeyEnabled","type":"bool"}]}],"outputs":[]},
  {"type":"event","name":"OrgDeployed","anonymous":false,"inputs":[
    {"name":"orgId","type":"bytes32","indexed":true},
    {"name":"executor","type":"address","indexed":false},
    {"name":"hybridVoting","type":"address","indexed":false},
    {"name":"directDemocracyVoting","type":"address","indexed":false},
    {"name":"quickJoin","type":"address","indexed":false},
    {"name":"participationToken","type":"address","indexed":false},
    {"name":"taskManager","type":"address","indexed":false},
    {"name":"educationHub","type":"address","indexed":false},
    {"name":"paymentManager","type":"address","indexed":false},
    {"name":"eligibilityModule","type":"address","indexed":false},
    {"name":"toggleModule","type":"address","indexed":false},
    {"name":"topHatId","type":"uint256","indexed":false},
    {"name":"roleHatIds","type":"uint256[]","indexed":false}]},
` + customErrors + `
]`

var sources = map[string]string{
	OrgDeployer:           deployerABI,
	DirectDemocracyVoting: votingABI,
	HybridVoting:          votingABI,
	TaskManager:           taskManagerABI,
	PaymentManager:        paymentManagerABI,
	EligibilityModule:     eligibilityABI,
	QuickJoin:             quickJoinABI,
	OrgRegistry:           orgRegistryABI,
	AccountRegistry:       accountRegistryABI,
}

var parsed = sync.OnceValues(func() (map[string]abi.ABI, error) {
	out := make(map[string]abi.ABI, len(sources))
	for name, src := range sources {
		a, err := abi.JSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parse %s abi: %w", name, err)
		}
		out[name] = a
	}
	return out, nil
})

// ABI returns the parsed ABI of a logical contract.
func ABI(contract string) (abi.ABI, error) {
	all, err := parsed()
	if err != nil {
		return abi.ABI{}, err
	}
	a, ok := all[contract]
	if !ok {
		return abi.ABI{}, fmt.Errorf("unknown contract %q", contract)
	}
	return a, nil
}

// ABIs returns every contract ABI, for custom-error decoding.
func ABIs() []abi.ABI {
	all, err := parsed()
	if err != nil {
		return nil
	}
	out := make([]abi.ABI, 0, len(all))
	for _, name := range []string{OrgDeployer, DirectDemocracyVoting, TaskManager, PaymentManager,
		EligibilityModule, QuickJoin, OrgRegistry, AccountRegistry} {
		out = append(out, all[name])
	}
	return out
}
