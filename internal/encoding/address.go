package encoding

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidateAddress parses a 20-byte hex address. All-lowercase and
// all-uppercase inputs are accepted as-is; mixed-case input must carry a
// valid EIP-55 checksum.
func ValidateAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	addr := common.HexToAddress(s)

	body := s
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		body = body[2:]
	}
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return common.Address{}, fmt.Errorf("%w: %q fails checksum", ErrInvalidAddress, s)
		}
	}
	return addr, nil
}

// ChecksumAddress returns the EIP-55 form of s, or an error when s is not an
// address.
func ChecksumAddress(s string) (string, error) {
	addr, err := ValidateAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// LowerAddress is the subgraph's canonical id form of an address.
func LowerAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// NormalizeHatID converts a decimal or 0x-hex hat id into 0x followed by 64
// lowercase hex digits, which keeps cache keys stable across callers.
func NormalizeHatID(s string) (string, error) {
	n, err := parseUint(s)
	if err != nil || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidHatID, s)
	}
	if n.BitLen() > 256 {
		return "", fmt.Errorf("%w: %q exceeds 256 bits", ErrInvalidHatID, s)
	}
	return fmt.Sprintf("0x%064x", n), nil
}

// HatIDToBig parses a hat id in any accepted form.
func HatIDToBig(s string) (*big.Int, error) {
	norm, err := NormalizeHatID(s)
	if err != nil {
		return nil, err
	}
	n, _ := new(big.Int).SetString(norm[2:], 16)
	return n, nil
}

// SameHat reports whether a and b name the same hat.
func SameHat(a, b string) bool {
	na, errA := NormalizeHatID(a)
	nb, errB := NormalizeHatID(b)
	return errA == nil && errB == nil && na == nb
}
