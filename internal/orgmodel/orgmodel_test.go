package orgmodel

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/models"
)

var now = time.Unix(1000, 0).UTC()

func hat(s string) string {
	h, err := encoding.NormalizeHatID(s)
	if err != nil {
		panic(err)
	}
	return h
}

func fixture() Snapshot {
	return Snapshot{
		OrgID: "0xorg",
		Org: &models.RawOrganization{
			ID:            "0xORG",
			Name:          "Test Org",
			TopHatID:      "100",
			TokenDecimals: 18,
			DDQuorum:      50,
			HybridQuorum:  60,
			VotingClasses: []models.RawVotingClass{
				{Strategy: "DIRECT", SlicePct: 50},
				{Strategy: "ERC20_BAL", SlicePct: 50, Quadratic: true},
			},
			Permissions: models.RawPermissions{
				DDVotingRoles:      "3",
				TaskCreatorRoles:   "1",
				TokenApproverRoles: "0x1",
			},
			Roles: []models.RawRole{
				{
					Index: 1, HatID: "2", Name: "Member", CanVote: true, AdminRoleIndex: 0,
					Vouching: models.VouchConfig{Enabled: true, Quorum: 2, VoucherRoleIndex: 0},
					Wearers:  []models.RawWearer{{Address: "0xBBB"}, {Address: "0xaaa", Standing: true}},
				},
				{
					Index: 0, HatID: "1", Name: "Admin", CanVote: true, AdminRoleIndex: models.AdminTop,
					Wearers: []models.RawWearer{{Address: "0xAAA", Eligible: true, Standing: true}},
				},
			},
			Users: []models.RawMember{
				{Address: "0xaaa", Username: "alice", TokenBalance: "4000000000000000000", TasksCompleted: 3},
				{Address: "0xbbb", TokenBalance: "16000000000000000000"},
			},
		},
	}
}

func TestDeriveRolesAndPermissions(t *testing.T) {
	v, err := Derive(fixture(), now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.Org.ID != "0xorg" || v.Org.TopHatID != hat("100") {
		t.Fatalf("org = %+v", v.Org)
	}
	if len(v.Org.Roles) != 2 || v.Org.Roles[0].Name != "Admin" {
		t.Fatalf("roles not in index order: %+v", v.Org.Roles)
	}
	admin, member := v.Org.Roles[0], v.Org.Roles[1]
	if !admin.IsTopLevel || member.IsTopLevel {
		t.Error("top-level mark wrong")
	}
	if admin.MemberCount != 1 || member.MemberCount != 2 {
		t.Errorf("member counts = %d, %d", admin.MemberCount, member.MemberCount)
	}

	tests := []struct {
		role models.Role
		perm models.Permission
		want bool
	}{
		{admin, models.PermDDVoter, true},
		{member, models.PermDDVoter, true},
		{admin, models.PermTaskCreator, true},
		{member, models.PermTaskCreator, false},
		{admin, models.PermTokenApprover, true},
		{member, models.PermQuickJoin, false},
	}
	for _, tt := range tests {
		if got := tt.role.Permissions.Has(tt.perm); got != tt.want {
			t.Errorf("%s has %s = %v, want %v", tt.role.Name, tt.perm, got, tt.want)
		}
	}
	if top, ok := v.Org.TopLevelRole(); !ok || top.Name != "Admin" {
		t.Errorf("TopLevelRole = %+v", top)
	}
}

func TestDeriveMembers(t *testing.T) {
	v, err := Derive(fixture(), now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Members) != 2 {
		t.Fatalf("members = %+v", v.Members)
	}
	a, ok := v.Member("0xAAA")
	if !ok {
		t.Fatal("0xaaa missing")
	}
	if a.Status != models.MemberActive || a.Username != "alice" || a.TasksCompleted != 3 {
		t.Errorf("alice = %+v", a)
	}
	if len(a.HatIDs) != 2 || a.HatIDs[0] != hat("1") {
		t.Errorf("alice hats = %v", a.HatIDs)
	}
	b, _ := v.Member("0xbbb")
	if b.Status != models.MemberInactive {
		t.Errorf("0xbbb status = %s", b.Status)
	}
}

func TestVotingPowerWeightsAndQuadratic(t *testing.T) {
	v, err := Derive(fixture(), now, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := v.VotingPowerOf("0xaaa")
	b := v.VotingPowerOf("0xbbb")

	// DIRECT splits 50 evenly; quadratic tokens are 200 vs 400.
	approx := func(got, want float64) bool { return math.Abs(got-want) < 1e-9 }
	if !approx(a.Membership, 25) || !approx(b.Membership, 25) {
		t.Errorf("membership = %v, %v", a.Membership, b.Membership)
	}
	if !approx(a.Contribution, 50.0/3) || !approx(b.Contribution, 100.0/3) {
		t.Errorf("contribution = %v, %v", a.Contribution, b.Contribution)
	}
	if !approx(a.Share+b.Share, 1) {
		t.Errorf("shares sum to %v", a.Share+b.Share)
	}
	if v.Power[0].Wallet != "0xbbb" {
		t.Errorf("power not ordered by total: %+v", v.Power)
	}
	if p := v.VotingPowerOf("0xnobody"); p.Total != 0 {
		t.Errorf("stranger power = %+v", p)
	}
}

func TestDeriveRejectsBadClassWeights(t *testing.T) {
	snap := fixture()
	snap.Org.VotingClasses = []models.RawVotingClass{
		{Strategy: "DIRECT", SlicePct: 60},
		{Strategy: "ERC20_BAL", SlicePct: 50},
	}
	if _, err := Derive(snap, now, nil); !errors.Is(err, ErrClassWeights) {
		t.Fatalf("err = %v, want ErrClassWeights", err)
	}
}

func TestDirectOnlyOrg(t *testing.T) {
	snap := fixture()
	snap.Org.VotingClasses = nil
	v, err := Derive(snap, now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p := v.VotingPowerOf("0xaaa"); p.Total != 50 || p.Share != 0.5 {
		t.Errorf("power = %+v", p)
	}
}

func TestProposalStatus(t *testing.T) {
	one := 1
	tests := []struct {
		name string
		raw  models.RawProposal
		want models.ProposalStatus
	}{
		{"open", models.RawProposal{EndTimestamp: "2000"}, models.ProposalOpen},
		{"awaiting", models.RawProposal{EndTimestamp: "999"}, models.ProposalAwaitingAnnouncement},
		{"finalized", models.RawProposal{EndTimestamp: "999", Announced: true, WinningOption: &one, IsValid: true}, models.ProposalFinalized},
		{"no quorum", models.RawProposal{EndTimestamp: "999", Announced: true, WinningOption: &one}, models.ProposalFinalizedNoQuorum},
		{"no winner", models.RawProposal{EndTimestamp: "999", Announced: true}, models.ProposalFinalizedNoQuorum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.raw.ID = "0xdd-1"
			tt.raw.NumOptions = 2
			p, err := deriveProposal(tt.raw, now)
			if err != nil {
				t.Fatal(err)
			}
			if p.Status != tt.want {
				t.Errorf("status = %s, want %s", p.Status, tt.want)
			}
		})
	}
}

func TestProposalBatchesMustMatchOptions(t *testing.T) {
	snap := fixture()
	snap.Proposals = []models.RawProposal{{
		ID: "0xdd-1", NumOptions: 2,
		ExecutionBatches: [][]models.RawCall{{{Target: "0xabc", Value: "5"}}},
	}}
	if _, err := Derive(snap, now, nil); err == nil {
		t.Fatal("expected batch count error")
	}

	snap.Proposals[0].ExecutionBatches = append(snap.Proposals[0].ExecutionBatches, nil)
	v, err := Derive(snap, now, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := v.Proposal("0xdd-1")
	if len(p.ExecutionBatches) != 2 || p.ExecutionBatches[0][0].Value.Int64() != 5 || len(p.ExecutionBatches[1]) != 0 {
		t.Errorf("batches = %+v", p.ExecutionBatches)
	}
}

func TestTaskPlaceholderKeepsPosition(t *testing.T) {
	snap := fixture()
	snap.Tasks = []models.RawTask{{ID: "1", Title: "Old", Status: "Open", CreatedAt: "100", TxHash: "0xold"}}
	ph := models.Placeholder{
		Family:    string(events.FamilyTasks),
		OrgID:     "0xorg",
		Title:     "Write docs",
		TxHash:    "0xnew",
		CreatedAt: time.Unix(200, 0).UTC(),
	}

	v, err := Derive(snap, now, []models.Placeholder{ph})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Tasks) != 2 || !v.Tasks[0].IsIndexing || v.Tasks[0].Title != "Write docs" {
		t.Fatalf("tasks with placeholder = %+v", v.Tasks)
	}

	// The indexer catches up: the real row replaces the placeholder in place.
	snap.Tasks = append(snap.Tasks, models.RawTask{ID: "2", Title: "Write docs", Status: "Open", CreatedAt: "200", TxHash: "0xNEW"})
	v, err = Derive(snap, now, []models.Placeholder{ph})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Tasks) != 2 || v.Tasks[0].ID != "2" || v.Tasks[0].IsIndexing {
		t.Fatalf("tasks after indexing = %+v", v.Tasks)
	}
}

func TestPlaceholderForOtherOrgIgnored(t *testing.T) {
	ph := models.Placeholder{Family: string(events.FamilyProposals), OrgID: "0xother", TxHash: "0x1"}
	v, err := Derive(fixture(), now, []models.Placeholder{ph})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Proposals) != 0 {
		t.Fatalf("proposals = %+v", v.Proposals)
	}
}

func TestOrgPlaceholderWhileDeploying(t *testing.T) {
	ph := models.Placeholder{Family: string(events.FamilyOrganization), OrgID: "0xnew", Title: "New Org", TxHash: "0xd"}
	v, err := Derive(Snapshot{OrgID: "0xnew"}, now, []models.Placeholder{ph})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Org.IsIndexing || v.Org.Name != "New Org" {
		t.Fatalf("org = %+v", v.Org)
	}
	if _, err := Derive(Snapshot{OrgID: "0xnew"}, now, nil); !errors.Is(err, ErrNoOrganization) {
		t.Fatalf("err = %v", err)
	}
}

func TestVouchProgress(t *testing.T) {
	snap := fixture()
	snap.Vouches = []models.RawVouch{
		{Wearer: "0xddd", HatID: "2", Voucher: "0xaaa", Active: true},
		{Wearer: "0xddd", HatID: "0x2", Voucher: "0xAAA", Active: true},
		{Wearer: "0xddd", HatID: "2", Voucher: "0xccc", Active: true},
		{Wearer: "0xddd", HatID: "2", Voucher: "0xeee", Active: false},
		{Wearer: "0xbbb", HatID: "2", Voucher: "0xaaa", Active: true},
	}
	v, err := Derive(snap, now, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Vouches) != 1 {
		t.Fatalf("vouches = %+v", v.Vouches)
	}
	p := v.Vouches[0]
	if p.Wearer != "0xddd" || len(p.Vouchers) != 1 || p.Remaining != 1 || p.Complete {
		t.Errorf("progress = %+v", p)
	}
}

func TestVouchProgressCombinesHierarchy(t *testing.T) {
	tests := []struct {
		name     string
		combine  bool
		vouchers int
		complete bool
	}{
		{"hierarchy counts", true, 2, true},
		{"voucher role only", false, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := fixture()
			snap.Org.Roles = append(snap.Org.Roles, models.RawRole{
				Index: 2, HatID: "3", Name: "Council", AdminRoleIndex: 1,
				Vouching: models.VouchConfig{Enabled: true, Quorum: 2, VoucherRoleIndex: 0, CombineWithHierarchy: tt.combine},
			})
			snap.Vouches = []models.RawVouch{
				{Wearer: "0xddd", HatID: "3", Voucher: "0xaaa", Active: true}, // wears Admin, the voucher role
				{Wearer: "0xddd", HatID: "3", Voucher: "0xbbb", Active: true}, // wears Member, the admin role
				{Wearer: "0xddd", HatID: "3", Voucher: "0xfff", Active: true}, // wears nothing
			}
			v, err := Derive(snap, now, nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(v.Vouches) != 1 {
				t.Fatalf("vouches = %+v", v.Vouches)
			}
			p := v.Vouches[0]
			if len(p.Vouchers) != tt.vouchers || p.Complete != tt.complete {
				t.Errorf("progress = %+v", p)
			}
		})
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	a, err := Derive(fixture(), now, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Derive(fixture(), now, nil)
	for i := range a.Members {
		if a.Members[i].Address != b.Members[i].Address {
			t.Fatal("member order differs between runs")
		}
	}
	for i := range a.Power {
		if a.Power[i].Wallet != b.Power[i].Wallet {
			t.Fatal("power order differs between runs")
		}
	}
}
