// Package encoding holds the pure conversion helpers shared by every other
// package: CIDv0 <-> bytes32, deterministic org ids, role bitmasks, token
// amounts, addresses and hat ids. Nothing here performs I/O.
package encoding

import "errors"

// Sentinel errors. They indicate that upstream validation was skipped and are
// surfaced to callers as programmer errors.
var (
	ErrInvalidCID     = errors.New("invalid CID")
	ErrTooManyRoles   = errors.New("too many roles")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidHatID   = errors.New("invalid hat id")
)
