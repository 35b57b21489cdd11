package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/subgraph"
)

// Predicate reports whether the indexer reflects ev.
type Predicate func(ctx context.Context, src Source, ev events.Event) (bool, error)

// Predicates returns the consistency predicate of every event kind.
func Predicates() map[events.Kind]Predicate {
	return map[events.Kind]Predicate{
		events.ProposalCreated:       proposalCreated,
		events.VoteCast:              voteCast,
		events.ProposalFinalized:     proposalFinalized,
		events.TaskCreated:           taskCreated,
		events.TaskApplied:           taskApplied,
		events.TaskClaimed:           taskStatus("claimed", true),
		events.TaskSubmitted:         taskStatus("submitted", false),
		events.TaskApproved:          taskStatus("approved", false),
		events.TaskRejected:          taskRejected,
		events.TokenRequestCreated:   tokenRequestCreated,
		events.TokenRequestApproved:  tokenRequestStatus("approved"),
		events.TokenRequestCancelled: tokenRequestStatus("cancelled"),
		events.RoleClaimed:           roleClaimed,
		events.MemberJoined:          memberJoined,
		events.VouchGiven:            vouchPresent(true),
		events.VouchRevoked:          vouchPresent(false),
		events.OrgDeployed:           orgDeployed,
		events.MetadataUpdated:       metadataUpdated,
		events.UsernameRegistered:    usernameRegistered,
	}
}

func same(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// notYet turns ErrNotFound into an unmet predicate.
func notYet(err error) (bool, error) {
	if errors.Is(err, subgraph.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func proposalCreated(ctx context.Context, src Source, ev events.Event) (bool, error) {
	if key := ev.CompositeProposalID(); key != "" {
		if _, err := src.Proposal(ctx, ev.OrgID, key); err != nil {
			return notYet(err)
		}
		return true, nil
	}
	ps, err := src.Proposals(ctx, ev.OrgID)
	if err != nil {
		return false, err
	}
	for _, p := range ps {
		if ev.TxHash != "" && same(p.TxHash, ev.TxHash) {
			return true, nil
		}
	}
	return false, nil
}

func voteCast(ctx context.Context, src Source, ev events.Event) (bool, error) {
	p, err := src.Proposal(ctx, ev.OrgID, ev.CompositeProposalID())
	if err != nil {
		return notYet(err)
	}
	for _, v := range p.Votes {
		if same(v.Voter, ev.Wallet) {
			return true, nil
		}
	}
	total, ok := new(big.Int).SetString(p.TotalVotes, 10)
	return ok && total.Cmp(big.NewInt(ev.Baseline)) > 0, nil
}

func proposalFinalized(ctx context.Context, src Source, ev events.Event) (bool, error) {
	p, err := src.Proposal(ctx, ev.OrgID, ev.CompositeProposalID())
	if err != nil {
		return notYet(err)
	}
	return p.Announced && p.WinningOption != nil, nil
}

func taskCreated(ctx context.Context, src Source, ev events.Event) (bool, error) {
	if ev.TaskID != "" {
		if _, err := src.Task(ctx, ev.OrgID, ev.TaskID); err != nil {
			return notYet(err)
		}
		return true, nil
	}
	ts, err := src.Tasks(ctx, ev.OrgID)
	if err != nil {
		return false, err
	}
	for _, t := range ts {
		if ev.TxHash != "" && same(t.TxHash, ev.TxHash) {
			return true, nil
		}
	}
	return false, nil
}

func taskApplied(ctx context.Context, src Source, ev events.Event) (bool, error) {
	t, err := src.Task(ctx, ev.OrgID, ev.TaskID)
	if err != nil {
		return notYet(err)
	}
	for _, a := range t.Applicants {
		if same(a, ev.Wallet) {
			return true, nil
		}
	}
	return false, nil
}

func taskStatus(status string, checkClaimer bool) Predicate {
	return func(ctx context.Context, src Source, ev events.Event) (bool, error) {
		t, err := src.Task(ctx, ev.OrgID, ev.TaskID)
		if err != nil {
			return notYet(err)
		}
		if !same(t.Status, status) {
			return false, nil
		}
		return !checkClaimer || same(t.Claimer, ev.Wallet), nil
	}
}

// A rejection sends the task back from Submitted.
func taskRejected(ctx context.Context, src Source, ev events.Event) (bool, error) {
	t, err := src.Task(ctx, ev.OrgID, ev.TaskID)
	if err != nil {
		return notYet(err)
	}
	return !same(t.Status, "submitted"), nil
}

func tokenRequestCreated(ctx context.Context, src Source, ev events.Event) (bool, error) {
	rs, err := src.TokenRequests(ctx, ev.OrgID)
	if err != nil {
		return false, err
	}
	for _, r := range rs {
		if ev.RequestID != "" && r.ID == ev.RequestID {
			return true, nil
		}
		if ev.RequestID == "" && ev.TxHash != "" && same(r.TxHash, ev.TxHash) {
			return true, nil
		}
	}
	return false, nil
}

func tokenRequestStatus(status string) Predicate {
	return func(ctx context.Context, src Source, ev events.Event) (bool, error) {
		rs, err := src.TokenRequests(ctx, ev.OrgID)
		if err != nil {
			return false, err
		}
		for _, r := range rs {
			if r.ID == ev.RequestID {
				return same(r.Status, status), nil
			}
		}
		return false, nil
	}
}

func roleClaimed(ctx context.Context, src Source, ev events.Event) (bool, error) {
	ws, err := src.HatWearers(ctx, ev.OrgID, ev.HatID)
	if err != nil {
		return notYet(err)
	}
	for _, w := range ws {
		if same(w.Address, ev.Wallet) {
			return true, nil
		}
	}
	return false, nil
}

func memberJoined(ctx context.Context, src Source, ev events.Event) (bool, error) {
	org, err := src.Organization(ctx, ev.OrgID)
	if err != nil {
		return notYet(err)
	}
	for _, r := range org.Roles {
		for _, w := range r.Wearers {
			if same(w.Address, ev.Wallet) {
				return true, nil
			}
		}
	}
	return false, nil
}

func vouchPresent(want bool) Predicate {
	return func(ctx context.Context, src Source, ev events.Event) (bool, error) {
		vs, err := src.Vouches(ctx, ev.OrgID)
		if err != nil {
			return false, err
		}
		found := false
		for _, v := range vs {
			if v.Active && same(v.Wearer, ev.Wallet) && same(v.Voucher, ev.Voucher) && encoding.SameHat(v.HatID, ev.HatID) {
				found = true
				break
			}
		}
		return found == want, nil
	}
}

func orgDeployed(ctx context.Context, src Source, ev events.Event) (bool, error) {
	if _, err := src.Organization(ctx, ev.OrgID); err != nil {
		return notYet(err)
	}
	return true, nil
}

func metadataUpdated(ctx context.Context, src Source, ev events.Event) (bool, error) {
	want, err := encoding.CIDToBytes32(ev.MetadataCID)
	if err != nil {
		return false, fmt.Errorf("metadata event: %w", err)
	}
	org, err := src.Organization(ctx, ev.OrgID)
	if err != nil {
		return notYet(err)
	}
	return same(org.MetadataHash, hexutil.Encode(want[:])), nil
}

func usernameRegistered(ctx context.Context, src Source, ev events.Event) (bool, error) {
	u, err := src.User(ctx, ev.Wallet)
	if err != nil {
		return notYet(err)
	}
	return u.Username == ev.Username, nil
}
