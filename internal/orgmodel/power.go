package orgmodel

import (
	"cmp"
	"fmt"
	"math"
	"math/big"
	"slices"
	"strings"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/models"
)

// DirectPoints is the raw weight a DIRECT class gives each eligible voter.
const DirectPoints = 100

func deriveClasses(raws []models.RawVotingClass) ([]models.VotingClass, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]models.VotingClass, 0, len(raws))
	sum := 0
	for i, r := range raws {
		var c models.VotingClass
		switch strings.ToUpper(strings.TrimSpace(r.Strategy)) {
		case "DIRECT", "0":
			c.Strategy = models.StrategyDirect
		case "ERC20_BAL", "ERC20BAL", "1":
			c.Strategy = models.StrategyERC20Bal
		default:
			return nil, fmt.Errorf("voting class %d: unknown strategy %q", i, r.Strategy)
		}
		c.SlicePct = r.SlicePct
		c.Quadratic = r.Quadratic
		if r.MinBalance != "" {
			mb, err := parseBig("minBalance", r.MinBalance)
			if err != nil {
				return nil, fmt.Errorf("voting class %d: %w", i, err)
			}
			c.MinBalance = mb
		}
		for _, h := range r.HatIDs {
			hat, err := encoding.NormalizeHatID(h)
			if err != nil {
				return nil, fmt.Errorf("voting class %d: %w", i, err)
			}
			c.HatIDs = append(c.HatIDs, hat)
		}
		sum += r.SlicePct
		out = append(out, c)
	}
	if sum != 100 {
		return nil, fmt.Errorf("%w: got %d", ErrClassWeights, sum)
	}
	return out, nil
}

// ClassRaw is the unweighted power a wallet contributes to class c: 100
// points for DIRECT when it wears a voting role, or its token balance
// (sqrt(tokens) × 100 when quadratic) for ERC20_BAL.
func ClassRaw(c models.VotingClass, hats []string, canVote bool, balance *big.Int, decimals uint8) float64 {
	if len(c.HatIDs) > 0 && !slices.ContainsFunc(hats, func(h string) bool { return slices.Contains(c.HatIDs, h) }) {
		return 0
	}
	switch c.Strategy {
	case models.StrategyDirect:
		if canVote {
			return DirectPoints
		}
		return 0
	case models.StrategyERC20Bal:
		if balance == nil || balance.Sign() <= 0 {
			return 0
		}
		if c.MinBalance != nil && balance.Cmp(c.MinBalance) < 0 {
			return 0
		}
		tokens := Tokens(balance, decimals)
		if c.Quadratic {
			return math.Sqrt(tokens) * 100
		}
		return tokens
	}
	return 0
}

// Tokens converts a raw balance into whole tokens.
func Tokens(balance *big.Int, decimals uint8) float64 {
	f := new(big.Float).SetInt(balance)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}

// WearsVotingRole reports whether any of hats belongs to a canVote role.
func WearsVotingRole(org *models.Organization, hats []string) bool {
	for _, h := range hats {
		if r, ok := org.RoleByHat(h); ok && r.CanVote {
			return true
		}
	}
	return false
}

// deriveVotingPower projects every member's power. Each class's slice is
// split among members in proportion to their raw class power. An org
// without hybrid classes behaves as a single DIRECT class at 100%.
func deriveVotingPower(org *models.Organization, members []models.Member) []models.VotingPower {
	classes := org.VotingClasses
	if len(classes) == 0 {
		classes = []models.VotingClass{{Strategy: models.StrategyDirect, SlicePct: 100}}
	}

	raw := make([][]float64, len(members))
	totals := make([]float64, len(classes))
	for i, m := range members {
		canVote := WearsVotingRole(org, m.HatIDs)
		raw[i] = make([]float64, len(classes))
		for j, c := range classes {
			raw[i][j] = ClassRaw(c, m.HatIDs, canVote, m.TokenBalance, org.TokenDecimals)
			totals[j] += raw[i][j]
		}
	}

	out := make([]models.VotingPower, 0, len(members))
	grand := 0.0
	for i, m := range members {
		p := models.VotingPower{Wallet: m.Address}
		for j, c := range classes {
			w := 0.0
			if totals[j] > 0 {
				w = raw[i][j] / totals[j] * float64(c.SlicePct)
			}
			p.Classes = append(p.Classes, models.ClassPower{Strategy: c.Strategy, Raw: raw[i][j], Weighted: w})
			if c.Strategy == models.StrategyDirect {
				p.Membership += w
			} else {
				p.Contribution += w
			}
		}
		p.Total = p.Membership + p.Contribution
		grand += p.Total
		out = append(out, p)
	}
	for i := range out {
		if grand > 0 {
			out[i].Share = out[i].Total / grand
		}
	}
	slices.SortStableFunc(out, func(a, b models.VotingPower) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Wallet, b.Wallet)
	})
	return out
}

// deriveVouches groups active vouches per (wearer, hat). Only vouches from
// wearers of the configured voucher role count, plus wearers of the admin
// role when vouching combines with the hierarchy. Wearers who already wear
// the hat are done and dropped.
func deriveVouches(raws []models.RawVouch, roles []models.Role) []models.VouchProgress {
	type key struct{ wearer, hat string }
	byKey := make(map[key]*models.VouchProgress)
	var order []key

	for _, v := range raws {
		if !v.Active {
			continue
		}
		hat, err := encoding.NormalizeHatID(v.HatID)
		if err != nil {
			continue
		}
		role := roleByHat(roles, hat)
		if role == nil || !role.Vouching.Enabled {
			continue
		}
		wearer, voucher := lower(v.Wearer), lower(v.Voucher)
		if slices.Contains(role.Wearers, wearer) {
			continue
		}
		if !mayVouch(roles, role, voucher) {
			continue
		}
		k := key{wearer, hat}
		p := byKey[k]
		if p == nil {
			p = &models.VouchProgress{Wearer: wearer, HatID: hat, Quorum: role.Vouching.Quorum}
			byKey[k] = p
			order = append(order, k)
		}
		if !slices.Contains(p.Vouchers, voucher) {
			p.Vouchers = append(p.Vouchers, voucher)
		}
	}

	out := make([]models.VouchProgress, 0, len(order))
	for _, k := range order {
		p := byKey[k]
		slices.Sort(p.Vouchers)
		p.Remaining = max(0, p.Quorum-len(p.Vouchers))
		p.Complete = p.Remaining == 0
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b models.VouchProgress) int {
		if c := strings.Compare(a.HatID, b.HatID); c != 0 {
			return c
		}
		return strings.Compare(a.Wearer, b.Wearer)
	})
	return out
}

// mayVouch mirrors the capability check used when casting a vouch.
func mayVouch(roles []models.Role, role *models.Role, voucher string) bool {
	vr := roleByIndex(roles, role.Vouching.VoucherRoleIndex)
	if vr == nil || slices.Contains(vr.Wearers, voucher) {
		return true
	}
	if !role.Vouching.CombineWithHierarchy {
		return false
	}
	if role.AdminRoleIndex.IsTop() {
		for i := range roles {
			if roles[i].IsTopLevel && slices.Contains(roles[i].Wearers, voucher) {
				return true
			}
		}
		return false
	}
	ar := roleByIndex(roles, int(role.AdminRoleIndex))
	return ar != nil && slices.Contains(ar.Wearers, voucher)
}

func roleByHat(roles []models.Role, hat string) *models.Role {
	for i := range roles {
		if roles[i].HatID == hat {
			return &roles[i]
		}
	}
	return nil
}

func roleByIndex(roles []models.Role, idx int) *models.Role {
	for i := range roles {
		if roles[i].Index == idx {
			return &roles[i]
		}
	}
	return nil
}
