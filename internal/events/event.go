// Package events defines the typed refresh events emitted after confirmed
// writes and the synchronous bus that delivers them.
package events

import (
	"fmt"
	"time"
)

// Event is a refresh event. Only the fields a subgraph query needs to re-key
// are populated; the rest stay zero.
type Event struct {
	Kind Kind `json:"kind"`

	OrgID    string `json:"org_id,omitempty"`
	Contract string `json:"contract,omitempty"` // lowercase address of the emitting contract

	ProposalID string `json:"proposal_id,omitempty"` // numeric id within Contract
	TaskID     string `json:"task_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`

	Wallet  string `json:"wallet,omitempty"` // voter, claimer, wearer or requester
	HatID   string `json:"hat_id,omitempty"`
	Voucher string `json:"voucher,omitempty"`

	Title        string `json:"title,omitempty"`
	MetadataCID  string `json:"metadata_cid,omitempty"`
	MetadataKind string `json:"metadata_kind,omitempty"`
	Username     string `json:"username,omitempty"`

	// Baseline is a pre-write snapshot value, e.g. a proposal's total vote
	// count before a VoteCast.
	Baseline int64 `json:"baseline,omitempty"`

	TxHash string    `json:"tx_hash,omitempty"`
	At     time.Time `json:"at,omitempty"`
}

// Validate checks that the kind is known.
func (e Event) Validate() error {
	if !AllKinds()[e.Kind] {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// CompositeProposalID is the subgraph id "<contract>-<proposalId>".
func (e Event) CompositeProposalID() string {
	if e.Contract == "" || e.ProposalID == "" {
		return ""
	}
	return e.Contract + "-" + e.ProposalID
}

// String renders a compact description for logs.
func (e Event) String() string {
	s := string(e.Kind)
	if e.OrgID != "" {
		s += " org=" + shortHex(e.OrgID)
	}
	switch {
	case e.ProposalID != "":
		s += " proposal=" + e.ProposalID
	case e.TaskID != "":
		s += " task=" + e.TaskID
	case e.RequestID != "":
		s += " request=" + e.RequestID
	case e.HatID != "":
		s += " hat=" + shortHex(e.HatID)
	}
	if e.TxHash != "" {
		s += " tx=" + shortHex(e.TxHash)
	}
	return s
}

func shortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:8] + "…" + s[len(s)-4:]
}
