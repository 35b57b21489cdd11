package orgmodel

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/models"
)

func deriveProposals(raws []models.RawProposal, now time.Time) ([]models.Proposal, error) {
	out := make([]models.Proposal, 0, len(raws))
	for _, r := range raws {
		p, err := deriveProposal(r, now)
		if err != nil {
			return nil, fmt.Errorf("proposal %s: %w", r.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func deriveProposal(r models.RawProposal, now time.Time) (models.Proposal, error) {
	p := models.Proposal{
		ID:             strings.ToLower(r.ID),
		ProposalID:     r.ProposalID,
		Contract:       lower(r.Contract),
		IsHybrid:       r.IsHybrid,
		Title:          r.Title,
		DescriptionCID: hashToCID(r.DescriptionHash),
		Creator:        lower(r.Creator),
		NumOptions:     r.NumOptions,
		WinningOption:  r.WinningOption,
		TxHash:         lower(r.TxHash),
	}
	var err error
	if p.EndsAt, err = parseUnix("endTimestamp", r.EndTimestamp); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseUnix("createdAt", r.CreatedAt); err != nil {
		return p, err
	}
	if p.TotalVotes, err = parseBig("totalVotes", r.TotalVotes); err != nil {
		return p, err
	}
	for _, s := range r.OptionVotes {
		n, err := parseBig("optionVotes", s)
		if err != nil {
			return p, err
		}
		p.OptionVotes = append(p.OptionVotes, n)
	}
	for _, v := range r.Votes {
		p.Voters = append(p.Voters, lower(v.Voter))
	}
	for _, h := range r.RestrictedHatIDs {
		hat, err := encoding.NormalizeHatID(h)
		if err != nil {
			return p, err
		}
		p.RestrictedHatIDs = append(p.RestrictedHatIDs, hat)
	}
	if len(r.ExecutionBatches) > 0 && len(r.ExecutionBatches) != r.NumOptions {
		return p, fmt.Errorf("%d execution batches for %d options", len(r.ExecutionBatches), r.NumOptions)
	}
	for _, batch := range r.ExecutionBatches {
		calls := make([]models.Call, 0, len(batch))
		for _, c := range batch {
			val, err := parseBig("value", c.Value)
			if err != nil {
				return p, err
			}
			calls = append(calls, models.Call{Target: lower(c.Target), Value: val, Data: c.Data})
		}
		p.ExecutionBatches = append(p.ExecutionBatches, calls)
	}
	p.Status = proposalStatus(r, p.EndsAt, now)
	return p, nil
}

// proposalStatus: open until the end timestamp, then awaiting the
// announcement. An announced proposal without a valid winner missed quorum.
func proposalStatus(r models.RawProposal, ends, now time.Time) models.ProposalStatus {
	switch {
	case r.Announced && r.WinningOption != nil && r.IsValid:
		return models.ProposalFinalized
	case r.Announced:
		return models.ProposalFinalizedNoQuorum
	case now.Before(ends):
		return models.ProposalOpen
	default:
		return models.ProposalAwaitingAnnouncement
	}
}

var taskStatuses = map[string]models.TaskStatus{
	"open":      models.TaskOpen,
	"applied":   models.TaskApplied,
	"claimed":   models.TaskClaimed,
	"submitted": models.TaskSubmitted,
	"approved":  models.TaskApproved,
	"completed": models.TaskApproved,
	"rejected":  models.TaskRejected,
}

func deriveTasks(raws []models.RawTask) ([]models.Task, error) {
	out := make([]models.Task, 0, len(raws))
	for _, r := range raws {
		status, ok := taskStatuses[lower(r.Status)]
		if !ok {
			return nil, fmt.Errorf("task %s: unknown status %q", r.ID, r.Status)
		}
		payout, err := parseBig("payout", r.Payout)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", r.ID, err)
		}
		created, err := parseUnix("createdAt", r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", r.ID, err)
		}
		t := models.Task{
			ID:                  r.ID,
			Title:               r.Title,
			DescriptionCID:      hashToCID(r.DescriptionHash),
			Payout:              payout,
			Status:              status,
			Creator:             lower(r.Creator),
			Claimer:             lower(r.Claimer),
			RequiresApplication: r.RequiresApplication,
			ProjectID:           r.ProjectID,
			CreatedAt:           created,
			TxHash:              lower(r.TxHash),
		}
		for _, a := range r.Applicants {
			t.Applicants = append(t.Applicants, lower(a))
		}
		out = append(out, t)
	}
	return out, nil
}

func deriveRequests(raws []models.RawTokenRequest) ([]models.TokenRequest, error) {
	out := make([]models.TokenRequest, 0, len(raws))
	for _, r := range raws {
		amount, err := parseBig("amount", r.Amount)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", r.ID, err)
		}
		created, err := parseUnix("createdAt", r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", r.ID, err)
		}
		status := models.RequestPending
		switch lower(r.Status) {
		case "", "pending":
		case "approved":
			status = models.RequestApproved
		case "cancelled", "canceled":
			status = models.RequestCancelled
		default:
			return nil, fmt.Errorf("request %s: unknown status %q", r.ID, r.Status)
		}
		out = append(out, models.TokenRequest{
			ID:        r.ID,
			Requester: lower(r.Requester),
			Amount:    amount,
			Reason:    r.Reason,
			Status:    status,
			Approver:  lower(r.Approver),
			CreatedAt: created,
			TxHash:    lower(r.TxHash),
		})
	}
	return out, nil
}

// mergePlaceholders adds an indexing row for every placeholder whose real
// row is not in the snapshot, then orders each list newest first. Rows
// created at the same instant fall back to tx hash then id, so a
// placeholder sits exactly where its real row will land.
func (v *View) mergePlaceholders() {
	orgID := v.Org.ID
	for _, p := range v.Placeholders {
		if !strings.EqualFold(p.OrgID, orgID) {
			continue
		}
		switch p.Family {
		case string(events.FamilyProposals):
			if !slices.ContainsFunc(v.Proposals, func(r models.Proposal) bool { return indexed(p, r.ID, r.TxHash) }) {
				v.Proposals = append(v.Proposals, models.Proposal{
					ID: placeholderID(p), Title: p.Title, Creator: lower(p.Creator),
					CreatedAt: p.CreatedAt, Status: models.ProposalOpen, IsIndexing: true, TxHash: lower(p.TxHash),
				})
			}
		case string(events.FamilyTasks):
			if !slices.ContainsFunc(v.Tasks, func(r models.Task) bool { return indexed(p, r.ID, r.TxHash) }) {
				v.Tasks = append(v.Tasks, models.Task{
					ID: placeholderID(p), Title: p.Title, Creator: lower(p.Creator),
					CreatedAt: p.CreatedAt, Status: models.TaskOpen, IsIndexing: true, TxHash: lower(p.TxHash),
				})
			}
		case string(events.FamilyTokenRequests):
			if !slices.ContainsFunc(v.Requests, func(r models.TokenRequest) bool { return indexed(p, r.ID, r.TxHash) }) {
				v.Requests = append(v.Requests, models.TokenRequest{
					ID: placeholderID(p), Requester: lower(p.Creator), Reason: p.Title,
					CreatedAt: p.CreatedAt, Status: models.RequestPending, IsIndexing: true, TxHash: lower(p.TxHash),
				})
			}
		}
	}

	slices.SortStableFunc(v.Proposals, func(a, b models.Proposal) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.TxHash, b.TxHash, a.ID, b.ID)
	})
	slices.SortStableFunc(v.Tasks, func(a, b models.Task) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.TxHash, b.TxHash, a.ID, b.ID)
	})
	slices.SortStableFunc(v.Requests, func(a, b models.TokenRequest) int {
		return newestFirst(a.CreatedAt, b.CreatedAt, a.TxHash, b.TxHash, a.ID, b.ID)
	})
}

func indexed(p models.Placeholder, id, txHash string) bool {
	if p.EntityID != "" && strings.EqualFold(p.EntityID, id) {
		return true
	}
	return p.TxHash != "" && strings.EqualFold(p.TxHash, txHash)
}

// placeholderID is the entity id when the receipt carried one, or a
// tx-derived stand-in.
func placeholderID(p models.Placeholder) string {
	if p.EntityID != "" {
		return strings.ToLower(p.EntityID)
	}
	return "pending:" + strings.ToLower(p.TxHash)
}

func newestFirst(at, bt time.Time, atx, btx, aid, bid string) int {
	if c := bt.Compare(at); c != 0 {
		return c
	}
	if c := cmp.Compare(atx, btx); c != 0 {
		return c
	}
	return cmp.Compare(aid, bid)
}
