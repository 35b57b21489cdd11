package capability

import (
	"testing"
	"time"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
)

func hat(s string) string {
	h, _ := encoding.NormalizeHatID(s)
	return h
}

// Roles: 0 Admin (TOP), 1 Member (vouched, voucher role 0), 2 Guest
// (eligible by default, supply 2), 3 Council (hierarchy vouching).
func snapshot() orgmodel.Snapshot {
	return orgmodel.Snapshot{
		OrgID: "0xorg",
		Org: &models.RawOrganization{
			ID:                    "0xorg",
			TopHatID:              "100",
			DirectDemocracyVoting: "0xdd",
			HybridVoting:          "0xhv",
			TaskManager:           "0xtm",
			PaymentManager:        "0xpm",
			QuickJoin:             "0xqj",
			Permissions: models.RawPermissions{
				DDCreatorRoles:     "1",
				DDVotingRoles:      "3",
				TaskCreatorRoles:   "3",
				TokenApproverRoles: "1",
				TokenMemberRoles:   "4",
			},
			Roles: []models.RawRole{
				{Index: 0, HatID: "1", Name: "Admin", CanVote: true, AdminRoleIndex: models.AdminTop,
					Wearers: []models.RawWearer{{Address: "0xadmin", Standing: true}}},
				{Index: 1, HatID: "2", Name: "Member", CanVote: true, AdminRoleIndex: 0,
					Vouching: models.VouchConfig{Enabled: true, Quorum: 1, VoucherRoleIndex: 0},
					Wearers:  []models.RawWearer{{Address: "0xmember", Standing: true}}},
				{Index: 2, HatID: "3", Name: "Guest", AdminRoleIndex: 0,
					Defaults:  models.RoleDefaults{Eligible: true},
					HatConfig: models.HatConfig{MaxSupply: 2},
					Wearers:   []models.RawWearer{{Address: "0xguest"}}},
				{Index: 3, HatID: "4", Name: "Council", AdminRoleIndex: 1,
					Vouching: models.VouchConfig{Enabled: true, Quorum: 2, VoucherRoleIndex: 2, CombineWithHierarchy: true}},
			},
		},
		Vouches: []models.RawVouch{
			{Wearer: "0xcandidate", HatID: "2", Voucher: "0xadmin", Active: true},
		},
	}
}

func view(t *testing.T, mutate func(*orgmodel.Snapshot)) *orgmodel.View {
	t.Helper()
	snap := snapshot()
	if mutate != nil {
		mutate(&snap)
	}
	v, err := orgmodel.Derive(snap, time.Unix(0, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestResolveFlags(t *testing.T) {
	v := view(t, nil)
	tests := []struct {
		wallet string
		check  func(*Capabilities) bool
		what   string
	}{
		{"0xADMIN", func(c *Capabilities) bool { return c.IsAdmin && c.IsMember }, "admin is admin"},
		{"0xadmin", func(c *Capabilities) bool { return c.CanProposeDirect && c.CanPropose() }, "admin proposes"},
		{"0xadmin", func(c *Capabilities) bool { return c.CanApproveTokenRequest && c.CanCreateTask }, "admin approves"},
		{"0xmember", func(c *Capabilities) bool { return !c.IsAdmin && c.CanVote && c.CanCreateTask }, "member votes"},
		{"0xmember", func(c *Capabilities) bool { return !c.CanPropose() && !c.CanApproveTokenRequest }, "member cannot propose"},
		{"0xguest", func(c *Capabilities) bool { return !c.CanVote && c.CanRequestTokens }, "guest requests tokens"},
		{"0xstranger", func(c *Capabilities) bool { return !c.IsMember && c.CanJoin && len(c.HatIDs) == 0 }, "stranger can join"},
		{"0xadmin", func(c *Capabilities) bool { return !c.CanJoin }, "member cannot join"},
	}
	for _, tt := range tests {
		if c := Resolve(tt.wallet, v); !tt.check(c) {
			t.Errorf("%s: %+v", tt.what, c)
		}
	}
}

func TestTopHatWearerIsAdmin(t *testing.T) {
	v := view(t, nil)
	if Resolve("0xfounder", v).IsAdmin {
		t.Fatal("admin without any hat")
	}
	v.Members = append(v.Members, models.Member{Address: "0xfounder", HatIDs: []string{hat("100")}})
	if !Resolve("0xfounder", v).IsAdmin {
		t.Fatal("top hat wearer not admin")
	}
}

func TestCanClaimRole(t *testing.T) {
	v := view(t, nil)
	tests := []struct {
		wallet string
		hat    string
		want   bool
	}{
		{"0xcandidate", "2", true},   // quorum of 1 reached
		{"0xstranger", "2", false},   // no vouches
		{"0xmember", "2", false},     // already wears it
		{"0xstranger", "3", true},    // eligible by default
		{"0xstranger", "0x3", true},  // hex hat id
		{"0xstranger", "1", false},   // not eligible, no vouching
		{"0xstranger", "999", false}, // unknown role
	}
	for _, tt := range tests {
		if got := Resolve(tt.wallet, v).CanClaimRole(tt.hat); got != tt.want {
			t.Errorf("%s claim %s = %v, want %v", tt.wallet, tt.hat, got, tt.want)
		}
	}

	full := view(t, func(s *orgmodel.Snapshot) {
		s.Org.Roles[2].Wearers = append(s.Org.Roles[2].Wearers, models.RawWearer{Address: "0xguest2"})
	})
	if Resolve("0xstranger", full).CanClaimRole("3") {
		t.Error("claim allowed past max supply")
	}

	council := view(t, func(s *orgmodel.Snapshot) {
		s.Vouches = append(s.Vouches,
			models.RawVouch{Wearer: "0xnominee", HatID: "4", Voucher: "0xguest", Active: true},
			models.RawVouch{Wearer: "0xnominee", HatID: "4", Voucher: "0xmember", Active: true},
		)
	})
	if !Resolve("0xnominee", council).CanClaimRole("4") {
		t.Errorf("hierarchy vouch not counted: %+v", council.Vouches)
	}
}

func TestCanVouchForRole(t *testing.T) {
	v := view(t, nil)
	tests := []struct {
		wallet string
		hat    string
		want   bool
	}{
		{"0xadmin", "2", true},    // wears voucher role 0
		{"0xmember", "2", false},  // wrong role
		{"0xguest", "4", true},    // voucher role 2
		{"0xmember", "4", true},   // admin of Council through hierarchy
		{"0xadmin", "4", false},   // neither voucher nor direct admin
		{"0xadmin", "3", false},   // vouching disabled
	}
	for _, tt := range tests {
		if got := Resolve(tt.wallet, v).CanVouchForRole(tt.hat); got != tt.want {
			t.Errorf("%s vouch %s = %v, want %v", tt.wallet, tt.hat, got, tt.want)
		}
	}
}

func TestVotingPowerOnProposals(t *testing.T) {
	v := view(t, nil)
	open := &models.Proposal{ID: "0xdd-1"}
	restricted := &models.Proposal{ID: "0xdd-2", RestrictedHatIDs: []string{hat("1")}}

	// Admin and member are the two eligible voters.
	admin := Resolve("0xadmin", v).VotingPower(open)
	if admin.Membership != 100 || admin.Share != 0.5 {
		t.Errorf("admin power = %+v", admin)
	}
	if p := Resolve("0xguest", v).VotingPower(open); p.Total != 0 {
		t.Errorf("non-voting role has power %+v", p)
	}
	if p := Resolve("0xmember", v).VotingPower(restricted); p.Total != 0 {
		t.Errorf("restricted proposal gave power %+v", p)
	}
	if p := Resolve("0xadmin", v).VotingPower(restricted); p.Share != 1 {
		t.Errorf("restricted share = %v", p.Share)
	}

	hybrid := &models.Proposal{ID: "0xhv-1", IsHybrid: true}
	if p := Resolve("0xadmin", v).VotingPower(hybrid); p.Total != v.VotingPowerOf("0xadmin").Total {
		t.Errorf("hybrid power = %+v", p)
	}
}

func TestResolverCachesUntilChange(t *testing.T) {
	r := NewResolver(nil)
	v := view(t, nil)

	a := r.Get("0xmember", v)
	if b := r.Get("0xMEMBER", v); a != b {
		t.Fatal("second Get did not hit the cache")
	}

	// A new derivation with the same inputs keeps the entry.
	if c := r.Get("0xmember", view(t, nil)); c != a {
		t.Fatal("identical view recomputed")
	}

	// A permission change recomputes.
	changed := view(t, func(s *orgmodel.Snapshot) { s.Org.Permissions.DDCreatorRoles = "3" })
	c := r.Get("0xmember", changed)
	if c == a || !c.CanProposeDirect {
		t.Fatalf("permission change not picked up: %+v", c)
	}
}

func TestResolverInvalidatedByEvents(t *testing.T) {
	r := NewResolver(nil)
	bus := events.NewBus(nil)
	detach := r.Attach(bus)
	defer detach()

	v := view(t, nil)
	r.Get("0xmember", v)
	r.Get("0xadmin", v)
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}

	// Task events do not touch capabilities.
	_ = bus.Publish(events.Event{Kind: events.TaskClaimed, OrgID: "0xorg", TaskID: "1", Wallet: "0xmember"})
	if r.Len() != 2 {
		t.Fatalf("Len after task event = %d", r.Len())
	}

	_ = bus.Publish(events.Event{Kind: events.RoleClaimed, OrgID: "0xorg", HatID: "2", Wallet: "0xMember"})
	if r.Len() != 1 {
		t.Fatalf("Len after RoleClaimed = %d", r.Len())
	}

	r.Reset()
	if r.Len() != 0 {
		t.Fatal("Reset left entries")
	}
}
