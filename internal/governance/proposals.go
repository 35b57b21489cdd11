package governance

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/subgraph"
)

// maxOptions is the largest option count the uint8 argument carries.
const maxOptions = math.MaxUint8

// CallSpec is one entry of an execution batch as a user writes it.
type CallSpec struct {
	Target string `yaml:"target" json:"target"`
	Value  string `yaml:"value" json:"value"` // ether, e.g. "0.5"
	Data   string `yaml:"data" json:"data"`   // hex calldata, "0x" for a plain transfer
}

// Transfer is the transfer-funds shortcut: option 0 sends Amount ether
// to Recipient, option 1 does nothing.
type Transfer struct {
	Recipient string
	Amount    string
}

// ProposalIntent describes a proposal to create.
type ProposalIntent struct {
	Hybrid      bool
	Title       string
	Description string
	Minutes     uint32
	Options     []string
	// Batches, when set, holds one execution batch per option.
	Batches          [][]CallSpec
	RestrictedHatIDs []string
	Transfer         *Transfer
}

// CreateProposal builds a proposal on the hybrid or direct-democracy
// contract. The description is uploaded first; the call carries its
// digest.
func (b *Builder) CreateProposal(ctx context.Context, in ProposalIntent) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	if in.Hybrid && !b.caps.CanProposeHybrid {
		return nil, notEligible("create hybrid proposals")
	}
	if !in.Hybrid && !b.caps.CanProposeDirect {
		return nil, notEligible("create direct-democracy proposals")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "required")
	}
	if in.Minutes == 0 {
		return nil, invalid("duration", "must be at least one minute")
	}

	options := in.Options
	batches := in.Batches
	if in.Transfer != nil {
		if len(batches) > 0 {
			return nil, invalid("batches", "cannot be combined with a transfer")
		}
		call, err := transferCall(*in.Transfer)
		if err != nil {
			return nil, err
		}
		batches = [][]CallSpec{{call}, {}}
		if len(options) == 0 {
			options = []string{"Yes", "No"}
		}
	}
	if len(options) < 2 {
		return nil, invalid("options", "need at least 2, got %d", len(options))
	}
	if len(options) > maxOptions {
		return nil, invalid("options", "at most %d allowed", maxOptions)
	}
	if len(batches) > 0 && len(batches) != len(options) {
		return nil, invalid("batches", "%d batches for %d options", len(batches), len(options))
	}

	packed := make([][]contracts.BatchCall, len(batches))
	for i, batch := range batches {
		packed[i] = make([]contracts.BatchCall, 0, len(batch))
		for j, c := range batch {
			bc, err := packCall(c)
			if err != nil {
				return nil, invalid(fmt.Sprintf("batches[%d][%d]", i, j), "%v", err)
			}
			packed[i] = append(packed[i], bc)
		}
	}

	hats := make([]*big.Int, 0, len(in.RestrictedHatIDs))
	for _, h := range in.RestrictedHatIDs {
		_, id, err := b.roleHat("restricted hat", h)
		if err != nil {
			return nil, err
		}
		hats = append(hats, id)
	}

	cid, err := ipfs.PutJSON(ctx, b.store, ipfs.ProposalMetadata{
		Description: in.Description,
		OptionNames: options,
	})
	if err != nil {
		return nil, fmt.Errorf("upload proposal description: %w", err)
	}
	digest, err := encoding.CIDToBytes32(cid)
	if err != nil {
		return nil, err
	}

	input := contracts.ProposalInput{
		Title:           title,
		DescriptionHash: digest,
		Minutes:         in.Minutes,
		NumOptions:      uint8(len(options)),
		Batches:         packed,
		HatIDs:          hats,
	}
	call, err := b.svc.CreateProposal(in.Hybrid, input)
	if err != nil {
		return nil, err
	}

	ev := b.event(events.ProposalCreated)
	ev.Contract = b.votingContract(in.Hybrid)
	ev.Title = title
	ev.MetadataCID = cid
	return &Action{
		Name:           "create-proposal",
		Call:           call,
		Notify:         notifyFor("create-proposal"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("proposal", b.view.Org.ID, ev.Contract, title),
		Proposal:       &input,
	}, nil
}

func transferCall(t Transfer) (CallSpec, error) {
	if _, err := encoding.ValidateAddress(t.Recipient); err != nil {
		return CallSpec{}, invalid("recipient", "%v", err)
	}
	amount, err := encoding.ParseTokenAmount(t.Amount, 18)
	if err != nil {
		return CallSpec{}, invalid("amount", "%v", err)
	}
	if amount.Sign() <= 0 {
		return CallSpec{}, invalid("amount", "must be positive")
	}
	return CallSpec{Target: t.Recipient, Value: t.Amount, Data: "0x"}, nil
}

func packCall(c CallSpec) (contracts.BatchCall, error) {
	target, err := encoding.ValidateAddress(c.Target)
	if err != nil {
		return contracts.BatchCall{}, err
	}
	value := new(big.Int)
	if strings.TrimSpace(c.Value) != "" {
		if value, err = encoding.ParseTokenAmount(c.Value, 18); err != nil {
			return contracts.BatchCall{}, err
		}
	}
	data := []byte{}
	if d := strings.TrimSpace(c.Data); d != "" && d != "0x" {
		if data, err = hexutil.Decode(d); err != nil {
			return contracts.BatchCall{}, fmt.Errorf("calldata: %w", err)
		}
	}
	return contracts.BatchCall{Target: target, Value: value, Data: data}, nil
}

// roleHat resolves h to one of the organization's roles.
func (b *Builder) roleHat(field, h string) (*models.Role, *big.Int, error) {
	norm, err := encoding.NormalizeHatID(h)
	if err != nil {
		return nil, nil, invalid(field, "%v", err)
	}
	r, ok := b.view.Org.RoleByHat(norm)
	if !ok {
		return nil, nil, invalid(field, "%s is not a role of this organization", h)
	}
	id, _ := encoding.HatIDToBig(norm)
	return r, id, nil
}

func (b *Builder) votingContract(hybrid bool) string {
	a := b.svc.Addresses()
	if hybrid {
		return encoding.LowerAddress(a.HybridVoting)
	}
	return encoding.LowerAddress(a.DirectDemocracyVoting)
}

// Ballot is a vote. A single choice is Options=[i] with no weights.
type Ballot struct {
	ProposalID string // composite "<contract>-<id>"
	Options    []int
	Weights    []int
}

// Vote casts a ballot on an open proposal.
func (b *Builder) Vote(ctx context.Context, in Ballot) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	p, ok := b.view.Proposal(in.ProposalID)
	if !ok || p.IsIndexing {
		return nil, fmt.Errorf("proposal %s: %w", in.ProposalID, ErrNotFound)
	}
	if p.Status != models.ProposalOpen {
		return nil, invalid("proposal", "voting is closed (%s)", p.Status)
	}
	if p.HasVoted(b.wallet()) {
		return nil, invalid("proposal", "already voted")
	}
	if power := b.caps.VotingPower(p); power.Total <= 0 {
		return nil, notEligible("vote on this proposal")
	}

	weights := in.Weights
	if len(weights) == 0 && len(in.Options) == 1 {
		weights = []int{100}
	}
	idxs, ws, err := validateBallot(in.Options, weights, p.NumOptions)
	if err != nil {
		return nil, err
	}
	pid, ok := new(big.Int).SetString(p.ProposalID, 10)
	if !ok {
		return nil, invalid("proposal id", "%q is not numeric", p.ProposalID)
	}
	call, err := b.svc.Vote(p.IsHybrid, pid, idxs, ws)
	if err != nil {
		return nil, err
	}

	ev := b.event(events.VoteCast)
	ev.Contract = p.Contract
	ev.ProposalID = p.ProposalID
	ev.Baseline = baseline(p.TotalVotes)
	return &Action{
		Name:           "vote",
		Call:           call,
		Notify:         notifyFor("vote"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("vote", p.ID, b.wallet()),
	}, nil
}

func validateBallot(options, weights []int, numOptions int) ([]uint8, []uint8, error) {
	if len(options) == 0 {
		return nil, nil, invalid("options", "choose at least one")
	}
	if len(options) != len(weights) {
		return nil, nil, invalid("weights", "%d weights for %d options", len(weights), len(options))
	}
	seen := make(map[int]bool, len(options))
	idxs := make([]uint8, len(options))
	ws := make([]uint8, len(options))
	sum := 0
	for i, o := range options {
		if o < 0 || o >= numOptions {
			return nil, nil, invalid("option", "%d out of range [0, %d)", o, numOptions)
		}
		if seen[o] {
			return nil, nil, invalid("option", "%d chosen twice", o)
		}
		seen[o] = true
		if weights[i] <= 0 || weights[i] > 100 {
			return nil, nil, invalid("weight", "%d not in [1, 100]", weights[i])
		}
		sum += weights[i]
		idxs[i] = uint8(o)
		ws[i] = uint8(weights[i])
	}
	if sum != 100 {
		return nil, nil, invalid("weights", "sum to %d, want 100", sum)
	}
	return idxs, ws, nil
}

func baseline(total *big.Int) int64 {
	if total == nil {
		return 0
	}
	if !total.IsInt64() {
		return math.MaxInt64
	}
	return total.Int64()
}

// Finalize announces the winner of a proposal whose voting window ended.
// id is the composite subgraph id.
func (b *Builder) Finalize(ctx context.Context, id string) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	contract, pidText, err := subgraph.SplitProposalKey(id)
	if err != nil {
		return nil, invalid("proposal id", "%v", err)
	}
	var hybrid bool
	if p, ok := b.view.Proposal(id); ok && !p.IsIndexing {
		if p.Status.IsFinal() {
			return nil, invalid("proposal", "already finalized")
		}
		if p.Status == models.ProposalOpen {
			return nil, invalid("proposal", "voting ends %s", p.EndsAt.Format("2006-01-02 15:04 MST"))
		}
		hybrid = p.IsHybrid
	} else {
		switch common.HexToAddress(contract) {
		case b.svc.Addresses().HybridVoting:
			hybrid = true
		case b.svc.Addresses().DirectDemocracyVoting:
		default:
			return nil, invalid("proposal id", "%s is not a voting contract of this organization", contract)
		}
	}
	pid, _ := new(big.Int).SetString(pidText, 10)
	call, err := b.svc.AnnounceWinner(hybrid, pid)
	if err != nil {
		return nil, err
	}

	ev := b.event(events.ProposalFinalized)
	ev.Contract = contract
	ev.ProposalID = pidText
	return &Action{
		Name:           "finalize",
		Call:           call,
		Notify:         notifyFor("finalize"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("finalize", id),
	}, nil
}
