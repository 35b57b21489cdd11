package workflow

import (
	"slices"
	"strings"
)

// ApplicationRequiredGuard passes when the task's application requirement
// equals Required.
type ApplicationRequiredGuard struct {
	Required bool
}

func (g *ApplicationRequiredGuard) Name() string { return "application_required" }

func (g *ApplicationRequiredGuard) Check(ctx *TransitionContext) GuardResult {
	if ctx.Task.RequiresApplication == g.Required {
		return GuardResult{Passed: true}
	}
	if g.Required {
		return GuardResult{Message: "task does not take applications; claim it directly"}
	}
	return GuardResult{Message: "task requires an application before it can be claimed"}
}

// ApplicantGuard allows only an applicant to take an applied task.
type ApplicantGuard struct{}

func (g *ApplicantGuard) Name() string { return "applicant_only" }

func (g *ApplicantGuard) Check(ctx *TransitionContext) GuardResult {
	if slices.ContainsFunc(ctx.Task.Applicants, func(a string) bool { return strings.EqualFold(a, ctx.Actor) }) {
		return GuardResult{Passed: true}
	}
	return GuardResult{Message: "only an applicant can claim this task"}
}

// NotApplicantGuard rejects a second application from the same wallet.
type NotApplicantGuard struct{}

func (g *NotApplicantGuard) Name() string { return "not_applied" }

func (g *NotApplicantGuard) Check(ctx *TransitionContext) GuardResult {
	if slices.ContainsFunc(ctx.Task.Applicants, func(a string) bool { return strings.EqualFold(a, ctx.Actor) }) {
		return GuardResult{Message: "already applied"}
	}
	return GuardResult{Passed: true}
}

// ClaimerGuard allows only the claimer to submit.
type ClaimerGuard struct{}

func (g *ClaimerGuard) Name() string { return "claimer_only" }

func (g *ClaimerGuard) Check(ctx *TransitionContext) GuardResult {
	if ctx.Task.Claimer != "" && strings.EqualFold(ctx.Task.Claimer, ctx.Actor) {
		return GuardResult{Passed: true}
	}
	return GuardResult{Message: "only the claimer can submit this task"}
}

// DifferentReviewerGuard stops claimers reviewing their own work, unless
// acting as admin.
type DifferentReviewerGuard struct{}

func (g *DifferentReviewerGuard) Name() string { return "different_reviewer" }

func (g *DifferentReviewerGuard) Check(ctx *TransitionContext) GuardResult {
	if ctx.Context == ContextAdmin {
		return GuardResult{Passed: true}
	}
	if strings.EqualFold(ctx.Task.Claimer, ctx.Actor) {
		return GuardResult{Message: "cannot review your own submission"}
	}
	return GuardResult{Passed: true}
}
