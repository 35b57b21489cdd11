package encoding

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatTokenAmount renders a raw integer amount with the given number of
// decimals, trimming trailing fractional zeros ("500000000000000000", 18 ->
// "0.5"). A nil amount renders as "0".
func FormatTokenAmount(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	neg := raw.Sign() < 0
	digits := new(big.Int).Abs(raw).String()

	d := int(decimals)
	if len(digits) <= d {
		digits = strings.Repeat("0", d-len(digits)+1) + digits
	}
	intPart := digits[:len(digits)-d]
	frac := strings.TrimRight(digits[len(digits)-d:], "0")

	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseTokenAmount parses a human decimal amount into raw units. It rejects
// negative values, malformed input and more fractional digits than decimals
// allows, so parse(format(x)) == x for every non-negative x.
func ParseTokenAmount(text string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" && frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if !allDigits(intPart) || !allDigits(frac) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if len(frac) > int(decimals) {
		frac = strings.TrimRight(frac, "0")
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, text, decimals)
	}

	frac += strings.Repeat("0", int(decimals)-len(frac))
	combined := strings.TrimLeft(intPart+frac, "0")
	if combined == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	return n, nil
}

// MustParseEther parses an ether amount with 18 decimals and panics on bad
// input. Intended for constants and tests.
func MustParseEther(text string) *big.Int {
	n, err := ParseTokenAmount(text, 18)
	if err != nil {
		panic(err)
	}
	return n
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
