package workflow

import "github.com/marcus/po/internal/models"

var lifecycleOrder = []models.TaskStatus{
	models.TaskOpen,
	models.TaskApplied,
	models.TaskClaimed,
	models.TaskSubmitted,
	models.TaskApproved,
	models.TaskRejected,
}

// AllTransitions returns every task transition with its guards.
//
//	open → applied → claimed → submitted → approved
//	open → claimed (no application required)
//	submitted → claimed (rejected, back to the claimer)
//	submitted → rejected
func AllTransitions() []*Transition {
	return []*Transition{
		{From: models.TaskOpen, To: models.TaskApplied, Guards: []Guard{&ApplicationRequiredGuard{Required: true}}},
		{From: models.TaskOpen, To: models.TaskClaimed, Guards: []Guard{&ApplicationRequiredGuard{Required: false}}},
		{From: models.TaskApplied, To: models.TaskApplied, Guards: []Guard{&NotApplicantGuard{}}},
		{From: models.TaskApplied, To: models.TaskClaimed, Guards: []Guard{&ApplicantGuard{}}},
		{From: models.TaskClaimed, To: models.TaskSubmitted, Guards: []Guard{&ClaimerGuard{}}},
		{From: models.TaskSubmitted, To: models.TaskApproved, Guards: []Guard{&DifferentReviewerGuard{}}},
		{From: models.TaskSubmitted, To: models.TaskClaimed, Guards: []Guard{&DifferentReviewerGuard{}}},
		{From: models.TaskSubmitted, To: models.TaskRejected, Guards: []Guard{&DifferentReviewerGuard{}}},
	}
}

// AllStatuses returns every task status in lifecycle order.
func AllStatuses() []models.TaskStatus {
	return append([]models.TaskStatus(nil), lifecycleOrder...)
}

// TransitionName returns the verb for a transition, or "" when it is not
// a registered one.
func TransitionName(from, to models.TaskStatus) string {
	switch {
	case to == models.TaskApplied:
		return "apply"
	case to == models.TaskClaimed && from == models.TaskSubmitted:
		return "reject"
	case to == models.TaskClaimed:
		return "claim"
	case to == models.TaskSubmitted:
		return "submit"
	case to == models.TaskApproved:
		return "approve"
	case to == models.TaskRejected:
		return "reject"
	}
	return ""
}
