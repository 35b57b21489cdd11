package monitor

import (
	"context"
	"slices"
	"time"

	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/lifecycle"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/session"
)

// Source supplies the monitor's data.
type Source interface {
	Fetch(ctx context.Context) RefreshDataMsg
}

// SessionSource reads records, placeholders and the organization view from
// a live session. Each fetch refreshes the loaded organization.
type SessionSource struct {
	Session *session.Session
	Timeout time.Duration
}

// Fetch implements Source.
func (s SessionSource) Fetch(ctx context.Context) RefreshDataMsg {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := RefreshDataMsg{
		Records:   s.Session.Manager().Records(),
		Pending:   s.Session.Reconciler().Pending(),
		Metrics:   s.Session.Metrics(),
		Timestamp: time.Now(),
	}
	view, err := s.Session.Refresh(ctx)
	if err != nil {
		if view, _ = s.Session.View(); view == nil {
			msg.Err = err
			return msg
		}
	}
	fillFromView(&msg, view)
	return msg
}

func fillFromView(msg *RefreshDataMsg, v *orgmodel.View) {
	msg.OrgName = v.Org.Name
	if msg.OrgName == "" {
		msg.OrgName = v.Org.ID
	}
	msg.Placeholders = v.Placeholders
	for _, p := range v.Proposals {
		if p.Status == models.ProposalOpen || p.Status == models.ProposalAwaitingAnnouncement || p.IsIndexing {
			msg.Proposals = append(msg.Proposals, p)
		}
	}
	for _, t := range v.Tasks {
		switch t.Status {
		case models.TaskApproved, models.TaskRejected:
			if !t.IsIndexing {
				continue
			}
		}
		msg.Tasks = append(msg.Tasks, t)
	}
	for _, r := range v.Requests {
		if r.Status == models.RequestPending {
			msg.Requests = append(msg.Requests, r)
		}
	}
}

// Settled reports whether every record is terminal and nothing is being
// reconciled.
func (m RefreshDataMsg) Settled() bool {
	if m.Pending > 0 {
		return false
	}
	return !slices.ContainsFunc(m.Records, func(r lifecycle.Record) bool { return !r.State.IsTerminal() })
}

// activityFrom converts a refresh event into a feed entry.
func activityFrom(ev events.Event) ActivityItem {
	id := ev.TaskID
	switch {
	case ev.ProposalID != "":
		id = ev.ProposalID
	case ev.RequestID != "":
		id = ev.RequestID
	case ev.HatID != "" && id == "":
		id = "hat " + ev.HatID
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return ActivityItem{
		Timestamp: at,
		Kind:      ev.Kind,
		EntityID:  id,
		Wallet:    ev.Wallet,
		TxHash:    ev.TxHash,
	}
}
