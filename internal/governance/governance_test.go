package governance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marcus/po/internal/capability"
	"github.com/marcus/po/internal/chain"
	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/workflow"
)

const (
	testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	member   = "0x00000000000000000000000000000000000000b2"
	stranger = "0x00000000000000000000000000000000000000b3"
	alice    = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

	hybridAddr = "0x00000000000000000000000000000000000000f1"
	ddAddr     = "0x00000000000000000000000000000000000000f2"
)

var addrs = contracts.Addresses{
	HybridVoting:          common.HexToAddress(hybridAddr),
	DirectDemocracyVoting: common.HexToAddress(ddAddr),
	TaskManager:           common.HexToAddress("0xf3"),
	PaymentManager:        common.HexToAddress("0xf4"),
	EligibilityModule:     common.HexToAddress("0xf5"),
	QuickJoin:             common.HexToAddress("0xf6"),
	OrgDeployer:           common.HexToAddress("0xf7"),
	OrgRegistry:           common.HexToAddress("0xf8"),
	AccountRegistry:       common.HexToAddress("0xf9"),
}

type fixture struct {
	me    string
	svc   *contracts.Services
	store *ipfs.MemStore
	view  *orgmodel.View
}

// Roles: 0 Admin (TOP, worn by the signer), 1 Member (vouched by role 0),
// 2 Guest (eligible by default).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := chain.FromHex(testKey)
	if err != nil {
		t.Fatal(err)
	}
	me := encoding.LowerAddress(signer.Address())
	raw := &models.RawOrganization{
		ID:                    encoding.OrgIDHex("Test Org"),
		Name:                  "Test Org",
		TopHatID:              "100",
		HybridVoting:          hybridAddr,
		DirectDemocracyVoting: ddAddr,
		TaskManager:           "0xf3",
		PaymentManager:        "0xf4",
		QuickJoin:             "0xf6",
		TokenDecimals:         18,
		Permissions: models.RawPermissions{
			DDCreatorRoles:             "1",
			HybridProposalCreatorRoles: "1",
			DDVotingRoles:              "3",
			TaskCreatorRoles:           "3",
			TokenApproverRoles:         "1",
			TokenMemberRoles:           "3",
		},
		Roles: []models.RawRole{
			{Index: 0, HatID: "1", Name: "Admin", CanVote: true, AdminRoleIndex: models.AdminTop,
				Wearers: []models.RawWearer{{Address: me, Standing: true}}},
			{Index: 1, HatID: "2", Name: "Member", CanVote: true, AdminRoleIndex: 0,
				Vouching: models.VouchConfig{Enabled: true, Quorum: 2, VoucherRoleIndex: 0},
				Wearers:  []models.RawWearer{{Address: member, Standing: true}}},
			{Index: 2, HatID: "3", Name: "Guest", AdminRoleIndex: 0,
				Defaults: models.RoleDefaults{Eligible: true}},
		},
	}
	snap := orgmodel.Snapshot{
		OrgID: raw.ID,
		Org:   raw,
		Proposals: []models.RawProposal{
			{ID: ddAddr + "-1", ProposalID: "1", Contract: ddAddr, Title: "Open", NumOptions: 3,
				EndTimestamp: "2000", TotalVotes: "7"},
			{ID: hybridAddr + "-2", ProposalID: "2", Contract: hybridAddr, IsHybrid: true, Title: "Ended",
				NumOptions: 2, EndTimestamp: "500"},
		},
		Tasks: []models.RawTask{
			{ID: "1", Title: "Open task", Payout: "10", Status: "open"},
			{ID: "2", Title: "Submitted", Payout: "10", Status: "submitted", Claimer: member},
			{ID: "3", Title: "Claimed", Payout: "10", Status: "claimed", Claimer: member},
			{ID: "4", Title: "Needs application", Payout: "10", Status: "open", RequiresApplication: true},
		},
		Requests: []models.RawTokenRequest{
			{ID: "1", Requester: me, Amount: "5", Status: "pending"},
			{ID: "2", Requester: member, Amount: "5", Status: "pending"},
			{ID: "3", Requester: member, Amount: "5", Status: "approved"},
		},
	}
	v, err := orgmodel.Derive(snap, time.Unix(1000, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		me:    me,
		svc:   contracts.NewServices(nil, signer, addrs),
		store: ipfs.NewMemStore(),
		view:  v,
	}
}

// builder acts as wallet; only the signer's own wallet matches svc.From.
func (f *fixture) builder(wallet string) *Builder {
	return NewBuilder(f.svc, f.store).WithOrg(f.view, capability.Resolve(wallet, f.view))
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func TestTransferProposal(t *testing.T) {
	f := newFixture(t)
	a, err := f.builder(f.me).CreateProposal(context.Background(), ProposalIntent{
		Title:    "Pay Alice",
		Minutes:  60,
		Transfer: &Transfer{Recipient: alice, Amount: "0.5"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := a.Proposal
	if p.NumOptions != 2 || len(p.Batches) != 2 {
		t.Fatalf("options = %d, batches = %d", p.NumOptions, len(p.Batches))
	}
	if len(p.Batches[0]) != 1 || len(p.Batches[1]) != 0 {
		t.Fatalf("batches = %+v", p.Batches)
	}
	call := p.Batches[0][0]
	if call.Target != common.HexToAddress(alice) {
		t.Errorf("target = %s", call.Target.Hex())
	}
	if call.Value.Cmp(encoding.MustParseEther("0.5")) != 0 || call.Value.String() != "500000000000000000" {
		t.Errorf("value = %s", call.Value)
	}
	if len(call.Data) != 0 {
		t.Errorf("data = %x", call.Data)
	}
	if a.Notify.PendingMessage != "Submitting proposal…" {
		t.Errorf("pending = %q", a.Notify.PendingMessage)
	}
	if len(a.Events) != 1 || a.Events[0].Kind != events.ProposalCreated {
		t.Fatalf("events = %+v", a.Events)
	}
	if a.Events[0].Contract != ddAddr || a.Events[0].Title != "Pay Alice" {
		t.Errorf("event = %+v", a.Events[0])
	}
	if contract, method := a.Call.Target(); contract != contracts.DirectDemocracyVoting || method != "createProposal" {
		t.Errorf("call = %s.%s", contract, method)
	}

	// The description digest points at the uploaded document.
	if f.store.Len() != 1 {
		t.Fatalf("uploads = %d", f.store.Len())
	}
	var meta ipfs.ProposalMetadata
	if err := ipfs.GetJSON(context.Background(), f.store, encoding.Bytes32ToCID(p.DescriptionHash), &meta); err != nil {
		t.Fatal(err)
	}
	if len(meta.OptionNames) != 2 {
		t.Errorf("option names = %v", meta.OptionNames)
	}
}

func TestCreateProposalValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   ProposalIntent
	}{
		{"bad recipient", ProposalIntent{Title: "x", Minutes: 1, Transfer: &Transfer{Recipient: "0x123", Amount: "1"}}},
		{"zero amount", ProposalIntent{Title: "x", Minutes: 1, Transfer: &Transfer{Recipient: alice, Amount: "0"}}},
		{"bad amount", ProposalIntent{Title: "x", Minutes: 1, Transfer: &Transfer{Recipient: alice, Amount: "-1"}}},
		{"no title", ProposalIntent{Minutes: 1, Options: []string{"a", "b"}}},
		{"no duration", ProposalIntent{Title: "x", Options: []string{"a", "b"}}},
		{"one option", ProposalIntent{Title: "x", Minutes: 1, Options: []string{"a"}}},
		{"batch mismatch", ProposalIntent{Title: "x", Minutes: 1, Hybrid: true, Options: []string{"a", "b", "c"},
			Batches: [][]CallSpec{{}, {}}}},
		{"bad calldata", ProposalIntent{Title: "x", Minutes: 1, Options: []string{"a", "b"},
			Batches: [][]CallSpec{{{Target: alice, Data: "0xzz"}}, {}}}},
		{"foreign hat", ProposalIntent{Title: "x", Minutes: 1, Options: []string{"a", "b"}, RestrictedHatIDs: []string{"999"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.builder(f.me).CreateProposal(context.Background(), tt.in)
			if !isValidation(err) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
	if f.store.Len() != 0 {
		t.Errorf("invalid proposals uploaded %d documents", f.store.Len())
	}
}

func TestCreateProposalEligibility(t *testing.T) {
	f := newFixture(t)
	in := ProposalIntent{Hybrid: true, Title: "x", Minutes: 1, Options: []string{"a", "b"}}
	if _, err := f.builder(member).CreateProposal(context.Background(), in); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("member hybrid proposal err = %v", err)
	}
	a, err := f.builder(f.me).CreateProposal(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if a.Call.To != addrs.HybridVoting {
		t.Errorf("routed to %s", a.Call.To.Hex())
	}
	if _, err := NewBuilder(f.svc, f.store).CreateProposal(context.Background(), in); !errors.Is(err, ErrNoOrganization) {
		t.Errorf("no org err = %v", err)
	}
}

func TestVote(t *testing.T) {
	f := newFixture(t)
	open := ddAddr + "-1"
	tests := []struct {
		name   string
		ballot Ballot
		ok     bool
	}{
		{"single choice", Ballot{ProposalID: open, Options: []int{2}}, true},
		{"split", Ballot{ProposalID: open, Options: []int{0, 1}, Weights: []int{40, 60}}, true},
		{"out of range", Ballot{ProposalID: open, Options: []int{3}}, false},
		{"negative", Ballot{ProposalID: open, Options: []int{-1}}, false},
		{"weights short", Ballot{ProposalID: open, Options: []int{0, 1}, Weights: []int{40, 50}}, false},
		{"duplicate", Ballot{ProposalID: open, Options: []int{0, 0}, Weights: []int{50, 50}}, false},
		{"missing weights", Ballot{ProposalID: open, Options: []int{0, 1}}, false},
		{"closed", Ballot{ProposalID: hybridAddr + "-2", Options: []int{0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := f.builder(f.me).Vote(context.Background(), tt.ballot)
			if tt.ok {
				if err != nil {
					t.Fatal(err)
				}
				ev := a.Events[0]
				if ev.Kind != events.VoteCast || ev.Baseline != 7 || ev.ProposalID != "1" || ev.Wallet != f.me {
					t.Errorf("event = %+v", ev)
				}
				return
			}
			if !isValidation(err) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	if _, err := f.builder(stranger).Vote(context.Background(), Ballot{ProposalID: open, Options: []int{0}}); !errors.Is(err, ErrNotEligible) {
		t.Errorf("stranger vote err = %v", err)
	}
	if _, err := f.builder(f.me).Vote(context.Background(), Ballot{ProposalID: ddAddr + "-9", Options: []int{0}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing proposal err = %v", err)
	}
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	b := f.builder(f.me)

	a, err := b.Finalize(context.Background(), hybridAddr+"-2")
	if err != nil {
		t.Fatal(err)
	}
	if a.Call.To != addrs.HybridVoting || a.Call.Method != "announceWinner" {
		t.Errorf("call = %s", a.Call)
	}

	// Not yet indexed: routed by the contract half of the id.
	a, err = b.Finalize(context.Background(), ddAddr+"-42")
	if err != nil {
		t.Fatal(err)
	}
	if a.Call.To != addrs.DirectDemocracyVoting || a.Events[0].ProposalID != "42" {
		t.Errorf("call = %s, event = %+v", a.Call, a.Events[0])
	}

	for _, id := range []string{ddAddr + "-1", "garbage", "0x00000000000000000000000000000000000000aa-1"} {
		if _, err := b.Finalize(context.Background(), id); !isValidation(err) {
			t.Errorf("Finalize(%s) err = %v", id, err)
		}
	}
}

func TestTokenRequests(t *testing.T) {
	f := newFixture(t)
	b := f.builder(f.me)
	ctx := context.Background()

	if _, err := b.ApproveRequest(ctx, "1"); !errors.Is(err, ErrCannotApproveOwn) {
		t.Fatalf("self approval err = %v", err)
	}
	a, err := b.ApproveRequest(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if a.Events[0].Kind != events.TokenRequestApproved || a.Events[0].RequestID != "2" {
		t.Errorf("event = %+v", a.Events[0])
	}
	if _, err := b.ApproveRequest(ctx, "3"); !isValidation(err) {
		t.Errorf("approve approved err = %v", err)
	}
	if _, err := f.builder(member).ApproveRequest(ctx, "1"); !errors.Is(err, ErrNotEligible) {
		t.Errorf("member approval err = %v", err)
	}

	if _, err := b.CancelRequest(ctx, "2"); !errors.Is(err, ErrNotEligible) {
		t.Errorf("cancel other's err = %v", err)
	}
	if _, err := b.CancelRequest(ctx, "1"); err != nil {
		t.Errorf("cancel own: %v", err)
	}

	a, err = b.RequestTokens(ctx, "1.5", "design work")
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Call.Args[0].(interface{ String() string }).String(); got != "1500000000000000000" {
		t.Errorf("amount = %s", got)
	}
	if a.Events[0].MetadataCID == "" || f.store.Len() != 1 {
		t.Errorf("reason not uploaded: %+v", a.Events[0])
	}
	if _, err := b.RequestTokens(ctx, "0", "x"); !isValidation(err) {
		t.Errorf("zero amount err = %v", err)
	}
}

func TestRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.builder(stranger).ClaimRole(ctx, "2"); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("claim without vouches err = %v", err)
	}
	a, err := f.builder(stranger).ClaimRole(ctx, "3")
	if err != nil {
		t.Fatal(err)
	}
	if a.Events[0].Kind != events.RoleClaimed || !encoding.SameHat(a.Events[0].HatID, "3") {
		t.Errorf("event = %+v", a.Events[0])
	}

	a, err = f.builder(f.me).Vouch(ctx, stranger, "2")
	if err != nil {
		t.Fatal(err)
	}
	ev := a.Events[0]
	if ev.Kind != events.VouchGiven || ev.Wallet != stranger || ev.Voucher != f.me {
		t.Errorf("event = %+v", ev)
	}
	if _, err := f.builder(member).Vouch(ctx, stranger, "2"); !errors.Is(err, ErrNotEligible) {
		t.Errorf("member vouch err = %v", err)
	}
	if _, err := f.builder(f.me).Vouch(ctx, f.me, "2"); !isValidation(err) {
		t.Errorf("self vouch err = %v", err)
	}
	if _, err := f.builder(f.me).Vouch(ctx, stranger, "3"); !isValidation(err) {
		t.Errorf("vouch on non-vouching role err = %v", err)
	}
	if _, err := f.builder(f.me).RevokeVouch(ctx, stranger, "2"); !isValidation(err) {
		t.Errorf("revoke without vouch err = %v", err)
	}
}

func TestJoinAndUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.builder(f.me).QuickJoin(ctx, ""); !isValidation(err) {
		t.Fatalf("member join err = %v", err)
	}
	a, err := f.builder(stranger).QuickJoin(ctx, "new_person")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Events) != 2 || a.Events[0].Kind != events.MemberJoined || a.Events[1].Username != "new_person" {
		t.Errorf("events = %+v", a.Events)
	}

	for _, bad := range []string{"", "ab", "has space", strings.Repeat("x", 33)} {
		if _, err := NewBuilder(f.svc, f.store).RegisterUsername(ctx, bad); !isValidation(err) {
			t.Errorf("RegisterUsername(%q) err = %v", bad, err)
		}
	}
	a, err = NewBuilder(f.svc, f.store).RegisterUsername(ctx, "marcus")
	if err != nil {
		t.Fatal(err)
	}
	if a.Events[0].Wallet != f.me || a.Events[0].OrgID != "" {
		t.Errorf("event = %+v", a.Events[0])
	}
}

func TestTaskActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := f.builder(f.me)

	a, err := me.ClaimTask(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if a.Call.Method != "claimTask" || a.Events[0].TaskID != "1" {
		t.Errorf("call = %s, event = %+v", a.Call, a.Events[0])
	}

	var verr *workflow.ValidationError
	if _, err := me.ClaimTask(ctx, "4"); !errors.As(err, &verr) {
		t.Errorf("claim without application err = %v", err)
	}
	if _, err := me.ApplyTask(ctx, "4", "I can do this"); err != nil {
		t.Errorf("apply: %v", err)
	}
	if _, err := me.SubmitTask(ctx, "3", "done"); !errors.As(err, &verr) {
		t.Errorf("submit someone else's task err = %v", err)
	}
	if _, err := f.builder(member).SubmitTask(ctx, "3", "done"); err != nil {
		t.Errorf("claimer submit: %v", err)
	}
	if _, err := f.builder(member).ApproveTask(ctx, "2"); !errors.As(err, &verr) {
		t.Errorf("self review err = %v", err)
	}

	a, err = me.ApproveTask(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if a.Call.Method != "completeTask" || a.Events[0].Wallet != member {
		t.Errorf("approve call = %s, event = %+v", a.Call, a.Events[0])
	}
	a, err = me.RejectTask(ctx, "2", "needs tests")
	if err != nil {
		t.Fatal(err)
	}
	if a.Events[0].Kind != events.TaskRejected {
		t.Errorf("event = %+v", a.Events[0])
	}

	var te *workflow.TransitionError
	if _, err := me.ApproveTask(ctx, "1"); !errors.As(err, &te) {
		t.Errorf("approve open task err = %v", err)
	}
	if _, err := me.ClaimTask(ctx, "99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing task err = %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.builder(f.me).CreateTask(ctx, TaskIntent{
		Title:       "Write docs",
		Description: "All of them",
		Payout:      "12.5",
		Project:     "docs",
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Events[0].Kind != events.TaskCreated || a.Events[0].Title != "Write docs" {
		t.Errorf("event = %+v", a.Events[0])
	}
	if f.store.Len() != 1 {
		t.Errorf("uploads = %d", f.store.Len())
	}
	if _, err := f.builder(stranger).CreateTask(ctx, TaskIntent{Title: "x", Payout: "1"}); !errors.Is(err, ErrNotEligible) {
		t.Errorf("stranger err = %v", err)
	}
	for _, in := range []TaskIntent{
		{Payout: "1"},
		{Title: "x", Payout: "0"},
		{Title: "x", Payout: "abc"},
		{Title: "x", Payout: "1", Project: "0x1234"},
	} {
		if _, err := f.builder(f.me).CreateTask(ctx, in); !isValidation(err) {
			t.Errorf("CreateTask(%+v) err = %v", in, err)
		}
	}
}

func TestUpdateMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	meta := ipfs.OrgMetadata{Description: "We build", Links: []ipfs.Link{{Name: "site", URL: "https://example.org"}}}
	if _, err := f.builder(member).UpdateMetadata(ctx, "", meta); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("member err = %v", err)
	}
	a, err := f.builder(f.me).UpdateMetadata(ctx, "", meta)
	if err != nil {
		t.Fatal(err)
	}
	ev := a.Events[0]
	if ev.Kind != events.MetadataUpdated || !encoding.IsCIDv0(ev.MetadataCID) || ev.OrgID != f.view.Org.ID {
		t.Errorf("event = %+v", ev)
	}
	if a.Call.Args[1].([]byte) == nil || string(a.Call.Args[1].([]byte)) != "Test Org" {
		t.Errorf("name arg = %v", a.Call.Args[1])
	}
}
