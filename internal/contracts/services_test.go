package contracts

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/models"
)

var (
	ddAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	taskAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")
	payAddr  = common.HexToAddress("0x1000000000000000000000000000000000000003")
	eligAddr = common.HexToAddress("0x1000000000000000000000000000000000000004")
)

func testServices(b Backend) *Services {
	return NewServices(b, newTestSigner(), Addresses{
		DirectDemocracyVoting: ddAddr,
		TaskManager:           taskAddr,
		PaymentManager:        payAddr,
		EligibilityModule:     eligAddr,
	}).WithReceiptPoll(time.Millisecond)
}

func TestABIsParse(t *testing.T) {
	if n := len(ABIs()); n != 8 {
		t.Fatalf("ABIs() returned %d, want 8", n)
	}
	for _, name := range []string{OrgDeployer, DirectDemocracyVoting, HybridVoting, TaskManager,
		PaymentManager, EligibilityModule, QuickJoin, OrgRegistry, AccountRegistry} {
		a, err := ABI(name)
		if err != nil {
			t.Fatalf("ABI(%s): %v", name, err)
		}
		if _, ok := a.Errors["NotCreator"]; !ok {
			t.Errorf("%s lacks shared custom errors", name)
		}
	}
	if _, err := ABI("Nope"); err == nil {
		t.Error("expected error for unknown contract")
	}
}

func TestEarlyRejection(t *testing.T) {
	noSigner := NewServices(&fakeBackend{}, nil, Addresses{TaskManager: taskAddr})
	if _, err := noSigner.ClaimTask(big.NewInt(1)); !errors.Is(err, ErrNoSigner) {
		t.Errorf("no signer: err = %v", err)
	}

	s := testServices(&fakeBackend{})
	if _, err := s.ClaimVouchedHat(big.NewInt(1)); err != nil {
		t.Errorf("eligibility configured: %v", err)
	}
	if _, err := s.QuickJoin("alice"); !errors.Is(err, ErrMissingAddress) {
		t.Errorf("missing quick join: err = %v", err)
	}
	if _, err := s.AnnounceWinner(true, big.NewInt(1)); !errors.Is(err, ErrMissingAddress) {
		t.Errorf("missing hybrid: err = %v", err)
	}
}

func TestCreateProposalNormalizes(t *testing.T) {
	s := testServices(&fakeBackend{})
	recipient := common.HexToAddress("0x00000000219ab540356cBB839Cbe05303d7705Fa")

	tests := []struct {
		name    string
		in      ProposalInput
		wantErr bool
	}{
		{"one option", ProposalInput{Title: "x", Minutes: 60, NumOptions: 1}, true},
		{"zero minutes", ProposalInput{Title: "x", Minutes: 0, NumOptions: 2}, true},
		{"batch count mismatch", ProposalInput{Title: "x", Minutes: 60, NumOptions: 3,
			Batches: [][]BatchCall{{}, {}}}, true},
		{"no batches", ProposalInput{Title: "x", Minutes: 60, NumOptions: 2}, false},
		{"transfer", ProposalInput{Title: "Pay Alice", Minutes: 60, NumOptions: 2,
			Batches: [][]BatchCall{{{Target: recipient, Value: big.NewInt(5)}}, nil}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := s.CreateProposal(false, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidArgs) {
					t.Errorf("err %v is not ErrInvalidArgs", err)
				}
				return
			}
			if req.To != ddAddr || req.Contract != DirectDemocracyVoting || req.Method != "createProposal" {
				t.Errorf("routed to %s %s.%s", req.To.Hex(), req.Contract, req.Method)
			}

			a, _ := ABI(DirectDemocracyVoting)
			method := a.Methods["createProposal"]
			if !bytes.Equal(req.Data[:4], method.ID) {
				t.Fatal("selector mismatch")
			}
			vals, err := method.Inputs.Unpack(req.Data[4:])
			if err != nil {
				t.Fatalf("unpack: %v", err)
			}
			if string(vals[0].([]byte)) != tt.in.Title {
				t.Errorf("title = %q", vals[0])
			}
			if vals[3].(uint8) != tt.in.NumOptions {
				t.Errorf("numOptions = %v", vals[3])
			}
		})
	}
}

func TestVoteValidation(t *testing.T) {
	s := testServices(&fakeBackend{})
	if _, err := s.Vote(false, big.NewInt(1), []uint8{0, 1}, []uint8{100}); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("mismatched lengths: err = %v", err)
	}
	if _, err := s.Vote(false, big.NewInt(1), []uint8{1}, []uint8{100}); err != nil {
		t.Errorf("valid vote: %v", err)
	}
}

func TestVouchValidatesAddress(t *testing.T) {
	s := testServices(&fakeBackend{})
	if _, err := s.VouchFor("0x123", big.NewInt(1)); !errors.Is(err, encoding.ErrInvalidAddress) {
		t.Errorf("err = %v", err)
	}
	req, err := s.VouchFor("0x00000000219ab540356cbb839cbe05303d7705fa", big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if req.Args[0].(common.Address).Hex() != "0x00000000219ab540356cBB839Cbe05303d7705Fa" {
		t.Errorf("wearer not checksummed: %v", req.Args[0])
	}
}

func TestRequestTokensRange(t *testing.T) {
	s := testServices(&fakeBackend{})
	tooBig := new(big.Int).Lsh(big.NewInt(1), 96)
	for _, amt := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1), tooBig} {
		if _, err := s.RequestTokens(amt, "Qm"); !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("RequestTokens(%v) err = %v", amt, err)
		}
	}
	if _, err := s.RequestTokens(big.NewInt(10), "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"); err != nil {
		t.Errorf("valid request: %v", err)
	}
}

func TestDeployFullOrgPacks(t *testing.T) {
	s := NewServices(&fakeBackend{}, newTestSigner(), Addresses{OrgDeployer: ddAddr})
	zero := new(big.Int)
	role := func(name string, admin *big.Int) RoleConfig {
		return RoleConfig{
			Name:         name,
			CanVote:      true,
			Vouching:     VouchingConfig{VoucherRoleIndex: zero},
			Hierarchy:    HierarchyConfig{AdminRoleIndex: admin},
			Distribution: RoleDistributionConfig{AdditionalWearers: []common.Address{}},
		}
	}
	p := DeploymentParams{
		OrgId:   encoding.OrgIDOfName("Acme"),
		OrgName: "Acme",
		HybridClasses: []ClassConfig{
			{Strategy: StrategyDirect, SlicePct: 50, MinBalance: zero, HatIds: []*big.Int{}},
			{Strategy: StrategyERC20Bal, SlicePct: 50, Quadratic: true, MinBalance: zero, HatIds: []*big.Int{}},
		},
		DdInitialTargets: []common.Address{},
		Roles:            []RoleConfig{role("Admin", TopAdminIndex), role("Member", big.NewInt(0))},
		RoleAssignments: RoleAssignments{
			QuickJoinRolesBitmap: big.NewInt(2), TokenMemberRolesBitmap: big.NewInt(3),
			TokenApproverRolesBitmap: big.NewInt(1), TaskCreatorRolesBitmap: big.NewInt(1),
			EducationCreatorRolesBitmap: zero, EducationMemberRolesBitmap: zero,
			HybridProposalCreatorRolesBitmap: big.NewInt(3), DdVotingRolesBitmap: big.NewInt(3),
			DdCreatorRolesBitmap: big.NewInt(1),
		},
	}
	req, err := s.DeployFullOrg(p)
	if err != nil {
		t.Fatalf("DeployFullOrg: %v", err)
	}
	if len(req.Data) < 4 {
		t.Fatal("no calldata")
	}

	p.Roles = nil
	if _, err := s.DeployFullOrg(p); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("no roles: err = %v", err)
	}
}

func TestSendAndWait(t *testing.T) {
	b := &fakeBackend{receiptAfter: 2, receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}}
	s := testServices(b)

	req, err := s.ClaimTask(big.NewInt(7))
	if err != nil {
		t.Fatal(err)
	}
	if err := req.Preflight(context.Background()); err != nil {
		t.Fatalf("Preflight: %v", err)
	}

	h, err := req.Send(context.Background(), SendOpts{GasLimit: 90_000})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(b.sent) != 1 {
		t.Fatalf("sent %d txs", len(b.sent))
	}
	tx := b.sent[0]
	if tx.Gas() != 90_000 || *tx.To() != taskAddr {
		t.Errorf("tx gas=%d to=%s", tx.Gas(), tx.To().Hex())
	}
	if tx.GasFeeCap().Int64() != 2+2*7 {
		t.Errorf("fee cap = %s", tx.GasFeeCap())
	}
	if h.TxHash() != tx.Hash() {
		t.Error("handle hash differs from sent tx")
	}

	r, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if r.TxHash != tx.Hash() || b.polls != 3 {
		t.Errorf("receipt %s after %d polls", r.TxHash.Hex(), b.polls)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	b := &fakeBackend{receiptAfter: 1 << 30, receipt: &types.Receipt{}}
	h := &pendingTx{hash: common.Hash{1}, backend: b, poll: time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestReceiptPollRejectsNonPositive(t *testing.T) {
	s := NewServices(&fakeBackend{}, nil, Addresses{})
	for _, d := range []time.Duration{0, -time.Second} {
		if got := s.WithReceiptPoll(d).poll; got != DefaultReceiptPoll {
			t.Errorf("WithReceiptPoll(%v) = %v, want %v", d, got, DefaultReceiptPoll)
		}
	}

	// A zero interval on a handle must not panic the ticker.
	b := &fakeBackend{receipt: &types.Receipt{TxHash: common.Hash{2}}}
	h := &pendingTx{hash: common.Hash{2}, backend: b}
	if _, err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestAddressesOf(t *testing.T) {
	org := &models.ContractAddresses{
		TaskManager: "0x1000000000000000000000000000000000000002",
		QuickJoin:   "",
	}
	infra := &models.RawInfrastructure{OrgDeployer: "0x2000000000000000000000000000000000000002"}
	a, err := AddressesOf(org, infra)
	if err != nil {
		t.Fatal(err)
	}
	if a.TaskManager != taskAddr || a.QuickJoin != (common.Address{}) || a.OrgDeployer == (common.Address{}) {
		t.Errorf("addresses = %+v", a)
	}
	if _, err := AddressesOf(&models.ContractAddresses{Executor: "nope"}, nil); err == nil {
		t.Error("expected error for malformed address")
	}
}
