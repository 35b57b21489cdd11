// Package capability answers what a wallet may do in an organization.
package capability

import (
	"slices"
	"strings"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
)

// Capabilities is the resolved permission set of one wallet in one org.
type Capabilities struct {
	Wallet      string               `json:"wallet"`
	OrgID       string               `json:"org_id"`
	HatIDs      []string             `json:"hat_ids"`
	Permissions models.PermissionSet `json:"permissions"`

	IsMember bool `json:"is_member"`
	IsAdmin  bool `json:"is_admin"`

	CanProposeDirect       bool `json:"can_propose_direct"`
	CanProposeHybrid       bool `json:"can_propose_hybrid"`
	CanVote                bool `json:"can_vote"`
	CanCreateTask          bool `json:"can_create_task"`
	CanRequestTokens       bool `json:"can_request_tokens"`
	CanApproveTokenRequest bool `json:"can_approve_token_request"`
	CanCreateEducation     bool `json:"can_create_education"`
	CanJoin                bool `json:"can_join"`

	view *orgmodel.View
}

// CanPropose reports whether the wallet can open a proposal on either
// voting contract.
func (c *Capabilities) CanPropose() bool {
	return c.CanProposeDirect || c.CanProposeHybrid
}

// Resolve computes the capabilities of wallet in v.
func Resolve(wallet string, v *orgmodel.View) *Capabilities {
	wallet = strings.ToLower(wallet)
	c := &Capabilities{
		Wallet:      wallet,
		OrgID:       v.Org.ID,
		Permissions: make(models.PermissionSet),
		view:        v,
	}
	if m, ok := v.Member(wallet); ok {
		c.IsMember = true
		c.HatIDs = append([]string(nil), m.HatIDs...)
	}
	for _, h := range c.HatIDs {
		r, ok := v.Org.RoleByHat(h)
		if !ok {
			continue
		}
		for p := range r.Permissions {
			c.Permissions[p] = true
		}
		if r.IsTopLevel {
			c.IsAdmin = true
		}
	}
	if v.Org.TopHatID != "" && slices.Contains(c.HatIDs, v.Org.TopHatID) {
		c.IsAdmin = true
	}

	voting := orgmodel.WearsVotingRole(&v.Org, c.HatIDs)
	c.CanProposeDirect = c.Permissions.Has(models.PermDDCreator) && v.Org.Addresses.DirectDemocracyVoting != ""
	c.CanProposeHybrid = c.Permissions.Has(models.PermHybridProposalCreator) && v.Org.Addresses.HybridVoting != ""
	c.CanVote = voting || c.Permissions.Has(models.PermDDVoter)
	c.CanCreateTask = c.Permissions.Has(models.PermTaskCreator) && v.Org.Addresses.TaskManager != ""
	c.CanRequestTokens = c.Permissions.Has(models.PermTokenMember) && v.Org.Addresses.PaymentManager != ""
	c.CanApproveTokenRequest = c.Permissions.Has(models.PermTokenApprover) && v.Org.Addresses.PaymentManager != ""
	c.CanCreateEducation = c.Permissions.Has(models.PermEducationCreator) && v.Org.Addresses.EducationHub != ""
	c.CanJoin = !c.IsMember && v.Org.Addresses.QuickJoin != ""
	return c
}

func (c *Capabilities) wears(hat string) bool {
	return slices.Contains(c.HatIDs, hat)
}

func (c *Capabilities) wearsIndex(idx int) bool {
	for _, r := range c.view.Org.Roles {
		if r.Index == idx {
			return c.wears(r.HatID)
		}
	}
	return false
}

// wearsAdminOf reports whether the wallet administers role r through the
// hat hierarchy.
func (c *Capabilities) wearsAdminOf(r *models.Role) bool {
	if r.AdminRoleIndex.IsTop() {
		return c.IsAdmin
	}
	return c.wearsIndex(int(r.AdminRoleIndex))
}

// CanVouchForRole reports whether the wallet may vouch candidates into the
// role with hatID.
func (c *Capabilities) CanVouchForRole(hatID string) bool {
	r := c.role(hatID)
	if r == nil || !r.Vouching.Enabled {
		return false
	}
	if c.wearsIndex(r.Vouching.VoucherRoleIndex) {
		return true
	}
	return r.Vouching.CombineWithHierarchy && c.wearsAdminOf(r)
}

// CanClaimRole reports whether the wallet may claim the role with hatID:
// it does not wear it yet, supply remains, and it is either eligible by
// default or has collected its vouching quorum.
func (c *Capabilities) CanClaimRole(hatID string) bool {
	r := c.role(hatID)
	if r == nil || c.wears(r.HatID) {
		return false
	}
	if r.HatConfig.MaxSupply > 0 && r.MemberCount >= int(r.HatConfig.MaxSupply) {
		return false
	}
	if !r.Vouching.Enabled {
		return r.Defaults.Eligible
	}
	for _, p := range c.view.Vouches {
		if p.HatID == r.HatID && p.Wearer == c.Wallet {
			return p.Complete
		}
	}
	return false
}

// VotingPower projects the wallet's power on proposal p. Restricted
// proposals give nothing to wallets outside the allowed hats. Hybrid
// proposals use the class-weighted projection; direct-democracy proposals
// give every eligible voter an equal share.
func (c *Capabilities) VotingPower(p *models.Proposal) models.VotingPower {
	zero := models.VotingPower{Wallet: c.Wallet}
	if !c.allowed(p, c.HatIDs) {
		return zero
	}
	if p.IsHybrid {
		return c.view.VotingPowerOf(c.Wallet)
	}
	if !c.CanVote {
		return zero
	}
	eligible := 0
	for _, m := range c.view.Members {
		if c.allowed(p, m.HatIDs) && ddVoter(&c.view.Org, m.HatIDs) {
			eligible++
		}
	}
	out := models.VotingPower{
		Wallet:     c.Wallet,
		Classes:    []models.ClassPower{{Strategy: models.StrategyDirect, Raw: orgmodel.DirectPoints, Weighted: orgmodel.DirectPoints}},
		Membership: orgmodel.DirectPoints,
		Total:      orgmodel.DirectPoints,
	}
	if eligible > 0 {
		out.Share = 1 / float64(eligible)
	}
	return out
}

func (c *Capabilities) allowed(p *models.Proposal, hats []string) bool {
	if len(p.RestrictedHatIDs) == 0 {
		return true
	}
	return slices.ContainsFunc(hats, func(h string) bool { return slices.Contains(p.RestrictedHatIDs, h) })
}

func ddVoter(org *models.Organization, hats []string) bool {
	for _, h := range hats {
		if r, ok := org.RoleByHat(h); ok && (r.CanVote || r.Permissions.Has(models.PermDDVoter)) {
			return true
		}
	}
	return false
}

func (c *Capabilities) role(hatID string) *models.Role {
	hat, err := encoding.NormalizeHatID(hatID)
	if err != nil {
		return nil
	}
	r, ok := c.view.Org.RoleByHat(hat)
	if !ok {
		return nil
	}
	return r
}
