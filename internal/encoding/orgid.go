package encoding

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NormalizeOrgName lowercases name and collapses every run of whitespace into
// a single hyphen. Leading and trailing whitespace is dropped.
func NormalizeOrgName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// OrgIDOfName derives the deterministic organization id: keccak-256 of the
// normalized name. Two names that normalize identically are the same org.
func OrgIDOfName(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(NormalizeOrgName(name)))
}

// OrgIDHex is OrgIDOfName in the lowercase hex form the subgraph uses as id.
func OrgIDHex(name string) string {
	return strings.ToLower(OrgIDOfName(name).Hex())
}
