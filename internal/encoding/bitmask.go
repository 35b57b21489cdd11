package encoding

import (
	"fmt"
	"math/big"
	"strings"
)

// MaxRoles is the number of role slots an on-chain role-assignment bitmap can
// address.
const MaxRoles = 32

// Bitmask is a role-assignment bitmap: bit i set means role index i holds the
// permission (voting, token approval, task creation, ...).
type Bitmask uint32

// BitmaskSet builds a mask with every index in indices set.
func BitmaskSet(indices []int) (Bitmask, error) {
	if len(indices) > MaxRoles {
		return 0, fmt.Errorf("%w: %d indices (max %d)", ErrTooManyRoles, len(indices), MaxRoles)
	}
	var m Bitmask
	for _, i := range indices {
		if i < 0 || i >= MaxRoles {
			return 0, fmt.Errorf("%w: role index %d out of range [0,%d)", ErrTooManyRoles, i, MaxRoles)
		}
		m |= 1 << uint(i)
	}
	return m, nil
}

// BitmaskHasAny reports whether any of indices is set in mask. Out-of-range
// indices are never set.
func BitmaskHasAny(mask Bitmask, indices []int) bool {
	for _, i := range indices {
		if mask.Has(i) {
			return true
		}
	}
	return false
}

// Has reports whether role index i is set.
func (m Bitmask) Has(i int) bool {
	if i < 0 || i >= MaxRoles {
		return false
	}
	return m&(1<<uint(i)) != 0
}

// Indices returns the set role indices in ascending order.
func (m Bitmask) Indices() []int {
	var out []int
	for i := 0; i < MaxRoles; i++ {
		if m.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// Big returns the mask as the uint256 the contracts expect.
func (m Bitmask) Big() *big.Int {
	return new(big.Int).SetUint64(uint64(m))
}

// ParseBitmask parses a subgraph bitmap value (decimal, or 0x-prefixed hex).
func ParseBitmask(s string) (Bitmask, error) {
	n, err := parseUint(s)
	if err != nil {
		return 0, fmt.Errorf("parse bitmask %q: %w", s, err)
	}
	if n.BitLen() > MaxRoles {
		return 0, fmt.Errorf("%w: bitmask %q addresses more than %d roles", ErrTooManyRoles, s, MaxRoles)
	}
	return Bitmask(n.Uint64()), nil
}

// parseUint accepts decimal or 0x-prefixed hex. A leading zero does not switch
// to octal the way big.Int's base-0 parsing would.
func parseUint(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("not an unsigned integer")
	}
	return n, nil
}
