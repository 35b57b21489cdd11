// Package workflow is the task status state machine, with guards that
// can be ignored, reported or enforced.
package workflow

import (
	"github.com/marcus/po/internal/models"
)

// TransitionMode controls how guard failures are treated.
type TransitionMode int

const (
	// ModeLiberal checks only that the transition exists.
	ModeLiberal TransitionMode = iota
	// ModeAdvisory runs guards and reports failures without blocking.
	ModeAdvisory
	// ModeStrict blocks on any failed guard.
	ModeStrict
)

// ActionContext says who is asking. Only ContextAdmin changes a guard's
// answer (DifferentReviewerGuard).
type ActionContext string

const (
	ContextCLI   ActionContext = "cli"
	ContextAdmin ActionContext = "admin"
)

// GuardResult is one guard's verdict.
type GuardResult struct {
	Passed  bool
	Message string
	Guard   string
}

// Guard is a precondition on a transition.
type Guard interface {
	Name() string
	Check(ctx *TransitionContext) GuardResult
}

// TransitionContext is one requested status change.
type TransitionContext struct {
	Task       *models.Task
	FromStatus models.TaskStatus
	ToStatus   models.TaskStatus
	Actor      string // lowercase wallet address
	Context    ActionContext
}

// Transition is a permitted edge with its guards.
type Transition struct {
	From   models.TaskStatus
	To     models.TaskStatus
	Guards []Guard
}

type edge struct{ from, to models.TaskStatus }

// StateMachine validates task transitions.
type StateMachine struct {
	edges map[edge]*Transition
	mode  TransitionMode
}

// New builds a machine over AllTransitions.
func New(mode TransitionMode) *StateMachine {
	sm := &StateMachine{edges: make(map[edge]*Transition), mode: mode}
	for _, t := range AllTransitions() {
		sm.edges[edge{t.From, t.To}] = t
	}
	return sm
}

func DefaultMachine() *StateMachine  { return New(ModeLiberal) }
func AdvisoryMachine() *StateMachine { return New(ModeAdvisory) }
func StrictMachine() *StateMachine   { return New(ModeStrict) }

func (sm *StateMachine) Mode() TransitionMode { return sm.mode }

// IsValidTransition reports whether from → to is an edge, ignoring guards.
func (sm *StateMachine) IsValidTransition(from, to models.TaskStatus) bool {
	_, ok := sm.edges[edge{from, to}]
	return ok
}

// GetAllowedTransitions lists the targets reachable from a status, in
// lifecycle order.
func (sm *StateMachine) GetAllowedTransitions(from models.TaskStatus) []models.TaskStatus {
	var out []models.TaskStatus
	for _, to := range lifecycleOrder {
		if sm.IsValidTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

// Validate checks the edge, then its guards according to the mode. Guard
// results are returned in advisory and strict mode; only strict mode turns
// failures into a *ValidationError.
func (sm *StateMachine) Validate(ctx *TransitionContext) ([]GuardResult, error) {
	if ctx == nil {
		return nil, &TransitionError{Reason: "nil context"}
	}
	if ctx.Task == nil {
		return nil, &TransitionError{From: ctx.FromStatus, To: ctx.ToStatus, Reason: "nil task in context"}
	}
	t, ok := sm.edges[edge{ctx.FromStatus, ctx.ToStatus}]
	if !ok {
		return nil, &TransitionError{From: ctx.FromStatus, To: ctx.ToStatus, TaskID: ctx.Task.ID, Reason: "transition not allowed"}
	}
	if sm.mode == ModeLiberal {
		return nil, nil
	}

	results := make([]GuardResult, 0, len(t.Guards))
	var failed ValidationError
	for _, g := range t.Guards {
		r := g.Check(ctx)
		r.Guard = g.Name()
		results = append(results, r)
		if !r.Passed {
			failed.Add(&GuardError{GuardName: r.Guard, Reason: r.Message, TaskID: ctx.Task.ID})
		}
	}
	if sm.mode == ModeStrict && failed.HasErrors() {
		return results, &failed
	}
	return results, nil
}
