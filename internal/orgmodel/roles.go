package orgmodel

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/models"
)

// permissionBitmaps pairs each permission with its bitmap in the raw
// permissions record.
func permissionBitmaps(p models.RawPermissions) []struct {
	perm models.Permission
	raw  string
} {
	return []struct {
		perm models.Permission
		raw  string
	}{
		{models.PermQuickJoin, p.QuickJoinRoles},
		{models.PermTokenMember, p.TokenMemberRoles},
		{models.PermTokenApprover, p.TokenApproverRoles},
		{models.PermTaskCreator, p.TaskCreatorRoles},
		{models.PermEducationCreator, p.EducationCreatorRoles},
		{models.PermEducationMember, p.EducationMemberRoles},
		{models.PermHybridProposalCreator, p.HybridProposalCreatorRoles},
		{models.PermDDVoter, p.DDVotingRoles},
		{models.PermDDCreator, p.DDCreatorRoles},
	}
}

func deriveRoles(raw *models.RawOrganization) ([]models.Role, error) {
	masks := make(map[models.Permission]encoding.Bitmask, 9)
	for _, b := range permissionBitmaps(raw.Permissions) {
		m, err := encoding.ParseBitmask(b.raw)
		if err != nil {
			return nil, fmt.Errorf("%s roles: %w", b.perm, err)
		}
		masks[b.perm] = m
	}

	roles := make([]models.Role, 0, len(raw.Roles))
	seen := make(map[string]bool, len(raw.Roles))
	for _, r := range raw.Roles {
		hat, err := encoding.NormalizeHatID(r.HatID)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", r.Name, err)
		}
		if seen[hat] {
			return nil, fmt.Errorf("role %q: duplicate hat %s", r.Name, hat)
		}
		seen[hat] = true

		perms := make(models.PermissionSet)
		for _, p := range models.AllPermissions() {
			if masks[p].Has(r.Index) {
				perms[p] = true
			}
		}

		var wearers []string
		for _, w := range r.Wearers {
			wearers = append(wearers, strings.ToLower(w.Address))
		}
		slices.Sort(wearers)
		wearers = slices.Compact(wearers)

		roles = append(roles, models.Role{
			Index:          r.Index,
			HatID:          hat,
			Name:           r.Name,
			MetadataCID:    hashToCID(r.MetadataHash),
			CanVote:        r.CanVote,
			AdminRoleIndex: r.AdminRoleIndex,
			IsTopLevel:     r.AdminRoleIndex.IsTop(),
			Vouching:       r.Vouching,
			Defaults:       r.Defaults,
			Distribution:   r.Distribution,
			HatConfig:      r.HatConfig,
			Wearers:        wearers,
			MemberCount:    len(wearers),
			Permissions:    perms,
		})
	}
	slices.SortStableFunc(roles, func(a, b models.Role) int { return a.Index - b.Index })
	return roles, nil
}

// deriveMembers unions the wearer sets. A wallet is a member iff it wears
// at least one hat; it is Active when any of those hats is in good
// standing.
func deriveMembers(raw *models.RawOrganization) ([]models.Member, error) {
	type acc struct {
		hats     []string
		standing bool
	}
	byAddr := make(map[string]*acc)
	for _, r := range raw.Roles {
		// deriveRoles already rejected malformed hats.
		hat, _ := encoding.NormalizeHatID(r.HatID)
		for _, w := range r.Wearers {
			addr := strings.ToLower(w.Address)
			a := byAddr[addr]
			if a == nil {
				a = &acc{}
				byAddr[addr] = a
			}
			a.hats = append(a.hats, hat)
			if w.Standing {
				a.standing = true
			}
		}
	}

	info := make(map[string]models.RawMember, len(raw.Users))
	for _, u := range raw.Users {
		info[strings.ToLower(u.Address)] = u
	}

	members := make([]models.Member, 0, len(byAddr))
	for addr, a := range byAddr {
		slices.Sort(a.hats)
		m := models.Member{
			Address: addr,
			HatIDs:  slices.Compact(a.hats),
			Status:  models.MemberInactive,
		}
		if a.standing {
			m.Status = models.MemberActive
		}
		u := info[addr]
		bal, err := parseBig("tokenBalance", u.TokenBalance)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", addr, err)
		}
		if m.FirstSeen, err = parseUnix("firstSeenAt", u.FirstSeenAt); err != nil {
			return nil, fmt.Errorf("member %s: %w", addr, err)
		}
		m.TokenBalance = bal
		m.Username = u.Username
		m.TasksCompleted = u.TasksCompleted
		m.VotesCast = u.VotesCast
		members = append(members, m)
	}
	slices.SortFunc(members, func(a, b models.Member) int { return strings.Compare(a.Address, b.Address) })
	return members, nil
}
