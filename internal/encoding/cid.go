package encoding

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// cidV0Prefix is the multihash header of a sha2-256 digest: code 0x12, length 0x20.
var cidV0Prefix = [2]byte{0x12, 0x20}

// CIDToBytes32 decodes a base58 CIDv0 and returns its 32-byte sha2-256 digest.
// An empty string yields the zero digest, which means "no metadata".
func CIDToBytes32(cid string) ([32]byte, error) {
	var out [32]byte
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return out, nil
	}

	raw, err := base58.Decode(cid)
	if err != nil {
		return out, fmt.Errorf("%w: %q: %v", ErrInvalidCID, cid, err)
	}
	if len(raw) != 34 || raw[0] != cidV0Prefix[0] || raw[1] != cidV0Prefix[1] {
		return out, fmt.Errorf("%w: %q is not a CIDv0", ErrInvalidCID, cid)
	}

	decoded, err := multihash.Decode(raw)
	if err != nil {
		return out, fmt.Errorf("%w: %q: %v", ErrInvalidCID, cid, err)
	}
	if decoded.Code != multihash.SHA2_256 || len(decoded.Digest) != 32 {
		return out, fmt.Errorf("%w: %q is not a sha2-256 multihash", ErrInvalidCID, cid)
	}

	copy(out[:], decoded.Digest)
	return out, nil
}

// Bytes32ToCID re-attaches the sha2-256 multihash header to digest and
// base58-encodes it. The zero digest maps back to the empty string.
func Bytes32ToCID(digest [32]byte) string {
	if digest == ([32]byte{}) {
		return ""
	}
	buf := make([]byte, 0, 34)
	buf = append(buf, cidV0Prefix[:]...)
	buf = append(buf, digest[:]...)
	return base58.Encode(buf)
}

// IsCIDv0 reports whether s decodes as a CIDv0.
func IsCIDv0(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := CIDToBytes32(s)
	return err == nil
}
