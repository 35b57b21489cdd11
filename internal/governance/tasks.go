package governance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/workflow"
)

// TaskIntent describes a task to create.
type TaskIntent struct {
	Title               string
	Description         string
	Payout              string // participation tokens, display units
	Project             string // 0x-prefixed 32-byte id, or a project name
	RequiresApplication bool
	Difficulty          string
	EstimatedHours      float64
}

// CreateTask builds a new task. The description is uploaded and the call
// carries its digest.
func (b *Builder) CreateTask(ctx context.Context, in TaskIntent) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	if !b.caps.CanCreateTask {
		return nil, notEligible("create tasks")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "required")
	}
	payout, err := encoding.ParseTokenAmount(in.Payout, b.view.Org.TokenDecimals)
	if err != nil {
		return nil, invalid("payout", "%v", err)
	}
	if payout.Sign() <= 0 {
		return nil, invalid("payout", "must be positive")
	}
	if in.EstimatedHours < 0 {
		return nil, invalid("estimated hours", "must not be negative")
	}
	project, err := projectID(in.Project)
	if err != nil {
		return nil, err
	}

	cid, err := ipfs.PutJSON(ctx, b.store, ipfs.TaskMetadata{
		Description:    in.Description,
		Difficulty:     in.Difficulty,
		EstimatedHours: in.EstimatedHours,
	})
	if err != nil {
		return nil, fmt.Errorf("upload task description: %w", err)
	}
	digest, err := encoding.CIDToBytes32(cid)
	if err != nil {
		return nil, err
	}
	call, err := b.svc.CreateTask(payout, title, digest, project, in.RequiresApplication)
	if err != nil {
		return nil, err
	}

	ev := b.event(events.TaskCreated)
	ev.Title = title
	ev.MetadataCID = cid
	return &Action{
		Name:           "create-task",
		Call:           call,
		Notify:         notifyFor("create-task"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("task", b.view.Org.ID, title, payout.String()),
	}, nil
}

// projectID accepts a raw 32-byte hex id; anything else is a project name
// hashed with keccak-256. Empty means no project.
func projectID(p string) ([32]byte, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return [32]byte{}, nil
	}
	if strings.HasPrefix(p, "0x") {
		raw, err := hexutil.Decode(p)
		if err != nil || len(raw) != common.HashLength {
			return [32]byte{}, invalid("project", "%q is not a 32-byte hex id", p)
		}
		return common.BytesToHash(raw), nil
	}
	return crypto.Keccak256Hash([]byte(p)), nil
}

// ApplyTask applies for a task that takes applications. note, when
// given, is uploaded as the application.
func (b *Builder) ApplyTask(ctx context.Context, id, note string) (*Action, error) {
	t, err := b.task(id)
	if err != nil {
		return nil, err
	}
	if err := b.transition(t, models.TaskApplied); err != nil {
		return nil, err
	}
	digest, err := b.uploadNote(ctx, note)
	if err != nil {
		return nil, err
	}
	return b.taskAction(t, "apply-task", events.TaskApplied, func(n *big.Int) (*contracts.CallRequest, error) {
		return b.svc.ApplyForTask(n, digest)
	})
}

// ClaimTask takes an open task, or an applied one the wallet applied for.
func (b *Builder) ClaimTask(ctx context.Context, id string) (*Action, error) {
	t, err := b.task(id)
	if err != nil {
		return nil, err
	}
	if err := b.transition(t, models.TaskClaimed); err != nil {
		return nil, err
	}
	return b.taskAction(t, "claim-task", events.TaskClaimed, b.svc.ClaimTask)
}

// SubmitTask hands in claimed work. The submission text is uploaded.
func (b *Builder) SubmitTask(ctx context.Context, id, submission string) (*Action, error) {
	t, err := b.task(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(submission) == "" {
		return nil, invalid("submission", "required")
	}
	if err := b.transition(t, models.TaskSubmitted); err != nil {
		return nil, err
	}
	cid, err := ipfs.PutJSON(ctx, b.store, ipfs.TaskMetadata{Submission: submission})
	if err != nil {
		return nil, fmt.Errorf("upload submission: %w", err)
	}
	digest, err := encoding.CIDToBytes32(cid)
	if err != nil {
		return nil, err
	}
	return b.taskAction(t, "submit-task", events.TaskSubmitted, func(n *big.Int) (*contracts.CallRequest, error) {
		return b.svc.SubmitTask(n, digest)
	})
}

// ApproveTask accepts submitted work and pays the claimer.
func (b *Builder) ApproveTask(ctx context.Context, id string) (*Action, error) {
	t, err := b.task(id)
	if err != nil {
		return nil, err
	}
	if !b.caps.CanCreateTask {
		return nil, notEligible("review tasks")
	}
	if err := b.transition(t, models.TaskApproved); err != nil {
		return nil, err
	}
	return b.taskAction(t, "approve-task", events.TaskApproved, b.svc.CompleteTask)
}

// RejectTask sends submitted work back to its claimer with a reason.
func (b *Builder) RejectTask(ctx context.Context, id, reason string) (*Action, error) {
	t, err := b.task(id)
	if err != nil {
		return nil, err
	}
	if !b.caps.CanCreateTask {
		return nil, notEligible("review tasks")
	}
	if err := b.transition(t, models.TaskClaimed); err != nil {
		return nil, err
	}
	digest, err := b.uploadNote(ctx, reason)
	if err != nil {
		return nil, err
	}
	return b.taskAction(t, "reject-task", events.TaskRejected, func(n *big.Int) (*contracts.CallRequest, error) {
		return b.svc.RejectTask(n, digest)
	})
}

func (b *Builder) task(id string) (*models.Task, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	t, ok := b.view.Task(id)
	if !ok || t.IsIndexing {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, nil
}

func (b *Builder) transition(t *models.Task, to models.TaskStatus) error {
	ac := workflow.ContextCLI
	if b.caps.IsAdmin {
		ac = workflow.ContextAdmin
	}
	_, err := b.machine.Validate(&workflow.TransitionContext{
		Task:       t,
		FromStatus: t.Status,
		ToStatus:   to,
		Actor:      b.wallet(),
		Context:    ac,
	})
	return err
}

// uploadNote stores an optional free-text note. Empty notes become the
// zero digest.
func (b *Builder) uploadNote(ctx context.Context, note string) ([32]byte, error) {
	if strings.TrimSpace(note) == "" {
		return [32]byte{}, nil
	}
	cid, err := ipfs.PutJSON(ctx, b.store, ipfs.TaskMetadata{Description: note})
	if err != nil {
		return [32]byte{}, fmt.Errorf("upload note: %w", err)
	}
	return encoding.CIDToBytes32(cid)
}

func (b *Builder) taskAction(t *models.Task, name string, kind events.Kind, fn func(*big.Int) (*contracts.CallRequest, error)) (*Action, error) {
	n, ok := new(big.Int).SetString(t.ID, 10)
	if !ok {
		return nil, invalid("task id", "%q is not numeric", t.ID)
	}
	call, err := fn(n)
	if err != nil {
		return nil, err
	}
	ev := b.event(kind)
	ev.TaskID = t.ID
	if kind == events.TaskApproved || kind == events.TaskRejected {
		ev.Wallet = t.Claimer
	}
	return &Action{
		Name:           name,
		Call:           call,
		Notify:         notifyFor(name),
		Events:         []events.Event{ev},
		IdempotencyKey: key(name, b.view.Org.ID, t.ID, b.wallet()),
	}, nil
}
