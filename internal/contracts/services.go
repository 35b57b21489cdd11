package contracts

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/models"
)

// Addresses is the contract set calls are routed to. Zero means absent.
type Addresses struct {
	Executor              common.Address
	HybridVoting          common.Address
	DirectDemocracyVoting common.Address
	ParticipationToken    common.Address
	TaskManager           common.Address
	PaymentManager        common.Address
	EducationHub          common.Address
	EligibilityModule     common.Address
	ToggleModule          common.Address
	QuickJoin             common.Address

	OrgDeployer     common.Address
	OrgRegistry     common.Address
	AccountRegistry common.Address
}

// AddressesOf converts an organization's address record and the protocol
// infrastructure (either may be nil) into routable addresses.
func AddressesOf(org *models.ContractAddresses, infra *models.RawInfrastructure) (Addresses, error) {
	var a Addresses
	set := func(dst *common.Address, s string) error {
		if s == "" {
			return nil
		}
		addr, err := encoding.ValidateAddress(s)
		if err != nil {
			return err
		}
		*dst = addr
		return nil
	}
	var pairs []struct {
		dst *common.Address
		src string
	}
	if org != nil {
		pairs = append(pairs, []struct {
			dst *common.Address
			src string
		}{
			{&a.Executor, org.Executor},
			{&a.HybridVoting, org.HybridVoting},
			{&a.DirectDemocracyVoting, org.DirectDemocracyVoting},
			{&a.ParticipationToken, org.ParticipationToken},
			{&a.TaskManager, org.TaskManager},
			{&a.PaymentManager, org.PaymentManager},
			{&a.EducationHub, org.EducationHub},
			{&a.EligibilityModule, org.EligibilityModule},
			{&a.ToggleModule, org.ToggleModule},
			{&a.QuickJoin, org.QuickJoin},
		}...)
	}
	if infra != nil {
		pairs = append(pairs, []struct {
			dst *common.Address
			src string
		}{
			{&a.OrgDeployer, infra.OrgDeployer},
			{&a.OrgRegistry, infra.OrgRegistry},
			{&a.AccountRegistry, infra.AccountRegistry},
		}...)
	}
	for _, p := range pairs {
		if err := set(p.dst, p.src); err != nil {
			return Addresses{}, err
		}
	}
	return a, nil
}

// Services builds one CallRequest per supported write.
type Services struct {
	backend Backend
	signer  Signer
	addrs   Addresses
	poll    time.Duration
}

// DefaultReceiptPoll is the receipt polling interval of returned handles.
const DefaultReceiptPoll = 2 * time.Second

// NewServices creates the service layer. signer may be nil for read-only
// sessions; every write then fails with ErrNoSigner.
func NewServices(b Backend, s Signer, addrs Addresses) *Services {
	return &Services{backend: b, signer: s, addrs: addrs, poll: DefaultReceiptPoll}
}

// WithAddresses returns a copy routed to a different contract set.
func (s *Services) WithAddresses(addrs Addresses) *Services {
	cp := *s
	cp.addrs = addrs
	return &cp
}

// WithReceiptPoll sets the receipt polling interval of returned handles.
// Non-positive values select DefaultReceiptPoll.
func (s *Services) WithReceiptPoll(d time.Duration) *Services {
	if d <= 0 {
		d = DefaultReceiptPoll
	}
	cp := *s
	cp.poll = d
	return &cp
}

// Addresses returns the current routing.
func (s *Services) Addresses() Addresses { return s.addrs }

// From returns the signer's address, zero when no signer is connected.
func (s *Services) From() common.Address {
	if s.signer == nil {
		return common.Address{}
	}
	return s.signer.Address()
}

// HasSigner reports whether writes can be signed.
func (s *Services) HasSigner() bool { return s.signer != nil }

func (s *Services) call(contract string, to common.Address, value *big.Int, method string, args ...any) (*CallRequest, error) {
	if s.signer == nil {
		return nil, ErrNoSigner
	}
	if to == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrMissingAddress, contract)
	}
	a, err := ABI(contract)
	if err != nil {
		return nil, err
	}
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidArgs, contract, method, err)
	}
	return &CallRequest{
		Contract: contract,
		Method:   method,
		Args:     args,
		To:       to,
		Data:     data,
		Value:    value,
		backend:  s.backend,
		signer:   s.signer,
		poll:     s.poll,
	}, nil
}

// --- Deployment ---

// DeployFullOrg deploys a complete organization.
func (s *Services) DeployFullOrg(p DeploymentParams) (*CallRequest, error) {
	if len(p.Roles) == 0 || len(p.Roles) > encoding.MaxRoles {
		return nil, fmt.Errorf("%w: %d roles", ErrInvalidArgs, len(p.Roles))
	}
	return s.call(OrgDeployer, s.addrs.OrgDeployer, nil, "deployFullOrg", p)
}

// --- Voting ---

func (s *Services) votingAddr(hybrid bool) (string, common.Address) {
	if hybrid {
		return HybridVoting, s.addrs.HybridVoting
	}
	return DirectDemocracyVoting, s.addrs.DirectDemocracyVoting
}

// CreateProposal creates a proposal on the hybrid or direct-democracy
// contract.
func (s *Services) CreateProposal(hybrid bool, in ProposalInput) (*CallRequest, error) {
	if in.NumOptions < 2 {
		return nil, fmt.Errorf("%w: need at least 2 options, got %d", ErrInvalidArgs, in.NumOptions)
	}
	batches := in.Batches
	if len(batches) == 0 {
		batches = [][]BatchCall{}
	} else if len(batches) != int(in.NumOptions) {
		return nil, fmt.Errorf("%w: %d batches for %d options", ErrInvalidArgs, len(batches), in.NumOptions)
	}
	for i := range batches {
		if batches[i] == nil {
			batches[i] = []BatchCall{}
		}
		for j := range batches[i] {
			if batches[i][j].Value == nil {
				batches[i][j].Value = new(big.Int)
			}
			if batches[i][j].Data == nil {
				batches[i][j].Data = []byte{}
			}
		}
	}
	hats := in.HatIDs
	if hats == nil {
		hats = []*big.Int{}
	}
	if in.Minutes == 0 {
		return nil, fmt.Errorf("%w: duration must be at least one minute", ErrInvalidArgs)
	}
	name, addr := s.votingAddr(hybrid)
	return s.call(name, addr, nil, "createProposal",
		[]byte(in.Title), in.DescriptionHash, in.Minutes, in.NumOptions, batches, hats)
}

// Vote casts a ballot. Direct-democracy ballots may split weight too; a
// single choice is idxs=[i], weights=[100].
func (s *Services) Vote(hybrid bool, proposalID *big.Int, idxs, weights []uint8) (*CallRequest, error) {
	if len(idxs) == 0 || len(idxs) != len(weights) {
		return nil, fmt.Errorf("%w: %d options with %d weights", ErrInvalidArgs, len(idxs), len(weights))
	}
	name, addr := s.votingAddr(hybrid)
	return s.call(name, addr, nil, "vote", proposalID, idxs, weights)
}

// AnnounceWinner finalizes a proposal.
func (s *Services) AnnounceWinner(hybrid bool, proposalID *big.Int) (*CallRequest, error) {
	name, addr := s.votingAddr(hybrid)
	return s.call(name, addr, nil, "announceWinner", proposalID)
}

// --- Tasks ---

// CreateTask creates a task paying payout participation tokens.
func (s *Services) CreateTask(payout *big.Int, title string, metadataHash, projectID [32]byte, requiresApplication bool) (*CallRequest, error) {
	if payout == nil || payout.Sign() <= 0 {
		return nil, fmt.Errorf("%w: payout must be positive", ErrInvalidArgs)
	}
	return s.call(TaskManager, s.addrs.TaskManager, nil, "createTask",
		payout, []byte(title), metadataHash, projectID, requiresApplication)
}

// ApplyForTask applies for a task that requires an application.
func (s *Services) ApplyForTask(taskID *big.Int, applicationHash [32]byte) (*CallRequest, error) {
	return s.call(TaskManager, s.addrs.TaskManager, nil, "applyForTask", taskID, applicationHash)
}

// ClaimTask claims an open task.
func (s *Services) ClaimTask(taskID *big.Int) (*CallRequest, error) {
	return s.call(TaskManager, s.addrs.TaskManager, nil, "claimTask", taskID)
}

// SubmitTask submits claimed work.
func (s *Services) SubmitTask(taskID *big.Int, submissionHash [32]byte) (*CallRequest, error) {
	return s.call(TaskManager, s.addrs.TaskManager, nil, "submitTask", taskID, submissionHash)
}

// CompleteTask approves submitted work and pays out.
func (s *Services) CompleteTask(taskID *big.Int) (*CallRequest, error) {
	return s.call(TaskManager, s.addrs.TaskManager, nil, "completeTask", taskID)
}

// RejectTask sends submitted work back to the claimer.
func (s *Services) RejectTask(taskID *big.Int, rejectionHash [32]byte) (*CallRequest, error) {
	return s.call(TaskManager, s.addrs.TaskManager, nil, "rejectTask", taskID, rejectionHash)
}

// --- Token requests ---

// maxUint96 bounds requestTokens amounts.
var maxUint96 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))

// RequestTokens asks for participation tokens.
func (s *Services) RequestTokens(amount *big.Int, reasonCID string) (*CallRequest, error) {
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(maxUint96) > 0 {
		return nil, fmt.Errorf("%w: amount out of range", ErrInvalidArgs)
	}
	return s.call(PaymentManager, s.addrs.PaymentManager, nil, "requestTokens", amount, reasonCID)
}

// ApproveRequest approves another member's token request.
func (s *Services) ApproveRequest(requestID *big.Int) (*CallRequest, error) {
	return s.call(PaymentManager, s.addrs.PaymentManager, nil, "approveRequest", requestID)
}

// CancelRequest cancels one's own pending request.
func (s *Services) CancelRequest(requestID *big.Int) (*CallRequest, error) {
	return s.call(PaymentManager, s.addrs.PaymentManager, nil, "cancelRequest", requestID)
}

// --- Eligibility ---

// VouchFor vouches for wearer to receive hatID.
func (s *Services) VouchFor(wearer string, hatID *big.Int) (*CallRequest, error) {
	addr, err := encoding.ValidateAddress(wearer)
	if err != nil {
		return nil, err
	}
	return s.call(EligibilityModule, s.addrs.EligibilityModule, nil, "vouchFor", addr, hatID)
}

// RevokeVouch withdraws a vouch.
func (s *Services) RevokeVouch(wearer string, hatID *big.Int) (*CallRequest, error) {
	addr, err := encoding.ValidateAddress(wearer)
	if err != nil {
		return nil, err
	}
	return s.call(EligibilityModule, s.addrs.EligibilityModule, nil, "revokeVouch", addr, hatID)
}

// ClaimVouchedHat mints hatID to the signer once eligible.
func (s *Services) ClaimVouchedHat(hatID *big.Int) (*CallRequest, error) {
	return s.call(EligibilityModule, s.addrs.EligibilityModule, nil, "claimVouchedHat", hatID)
}

// --- Membership and accounts ---

// QuickJoin joins the organization's quick-join roles. A non-empty username
// also registers it in the same transaction.
func (s *Services) QuickJoin(username string) (*CallRequest, error) {
	if username == "" {
		return s.call(QuickJoin, s.addrs.QuickJoin, nil, "quickJoinWithUser")
	}
	return s.call(QuickJoin, s.addrs.QuickJoin, nil, "quickJoinNoUser", username)
}

// UpdateOrgMeta replaces the organization's name and metadata hash.
func (s *Services) UpdateOrgMeta(orgID common.Hash, name string, metadataHash [32]byte) (*CallRequest, error) {
	return s.call(OrgRegistry, s.addrs.OrgRegistry, nil, "updateOrgMeta", [32]byte(orgID), []byte(name), metadataHash)
}

// RegisterAccount registers a global username for the signer.
func (s *Services) RegisterAccount(username string) (*CallRequest, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrInvalidArgs)
	}
	return s.call(AccountRegistry, s.addrs.AccountRegistry, nil, "registerAccount", username)
}
