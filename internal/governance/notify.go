package governance

import "github.com/marcus/po/internal/lifecycle"

// notifySpecs holds the user-facing copy of every action.
var notifySpecs = map[string]lifecycle.NotifySpec{
	"create-proposal": {
		Category:       "proposal",
		PendingMessage: "Submitting proposal…",
		SuccessMessage: "Proposal created",
		ErrorMessage:   "Failed to create proposal",
	},
	"vote": {
		Category:       "vote",
		PendingMessage: "Casting vote…",
		SuccessMessage: "Vote recorded",
		ErrorMessage:   "Failed to cast vote",
	},
	"finalize": {
		Category:       "proposal",
		PendingMessage: "Announcing winner…",
		SuccessMessage: "Proposal finalized",
		ErrorMessage:   "Failed to finalize proposal",
	},
	"create-task": {
		Category:       "task",
		PendingMessage: "Creating task…",
		SuccessMessage: "Task created",
		ErrorMessage:   "Failed to create task",
	},
	"apply-task": {
		Category:       "task",
		PendingMessage: "Submitting application…",
		SuccessMessage: "Application submitted",
		ErrorMessage:   "Failed to apply for task",
	},
	"claim-task": {
		Category:       "task",
		PendingMessage: "Claiming task…",
		SuccessMessage: "Task claimed",
		ErrorMessage:   "Failed to claim task",
	},
	"submit-task": {
		Category:       "task",
		PendingMessage: "Submitting work…",
		SuccessMessage: "Work submitted for review",
		ErrorMessage:   "Failed to submit task",
	},
	"approve-task": {
		Category:       "task",
		PendingMessage: "Approving task…",
		SuccessMessage: "Task approved and paid out",
		ErrorMessage:   "Failed to approve task",
	},
	"reject-task": {
		Category:       "task",
		PendingMessage: "Rejecting submission…",
		SuccessMessage: "Submission sent back",
		ErrorMessage:   "Failed to reject task",
	},
	"request-tokens": {
		Category:       "tokens",
		PendingMessage: "Requesting tokens…",
		SuccessMessage: "Token request submitted",
		ErrorMessage:   "Failed to request tokens",
	},
	"approve-request": {
		Category:       "tokens",
		PendingMessage: "Approving request…",
		SuccessMessage: "Request approved",
		ErrorMessage:   "Failed to approve request",
	},
	"cancel-request": {
		Category:         "tokens",
		PendingMessage:   "Cancelling request…",
		SuccessMessage:   "Request cancelled",
		ErrorMessage:     "Failed to cancel request",
		CancelledMessage: "Request left pending",
	},
	"claim-role": {
		Category:       "role",
		PendingMessage: "Claiming role…",
		SuccessMessage: "Role claimed",
		ErrorMessage:   "Failed to claim role",
	},
	"vouch": {
		Category:       "role",
		PendingMessage: "Vouching…",
		SuccessMessage: "Vouch recorded",
		ErrorMessage:   "Failed to vouch",
	},
	"revoke-vouch": {
		Category:       "role",
		PendingMessage: "Revoking vouch…",
		SuccessMessage: "Vouch revoked",
		ErrorMessage:   "Failed to revoke vouch",
	},
	"deploy": {
		Category:       "organization",
		PendingMessage: "Deploying organization…",
		SuccessMessage: "Organization deployed",
		ErrorMessage:   "Deployment failed",
	},
	"update-metadata": {
		Category:       "organization",
		PendingMessage: "Updating organization details…",
		SuccessMessage: "Organization details updated",
		ErrorMessage:   "Failed to update organization details",
	},
	"register-username": {
		Category:       "account",
		PendingMessage: "Registering username…",
		SuccessMessage: "Username registered",
		ErrorMessage:   "Failed to register username",
	},
	"join": {
		Category:       "membership",
		PendingMessage: "Joining organization…",
		SuccessMessage: "Welcome aboard",
		ErrorMessage:   "Failed to join",
	},
}

func notifyFor(name string) lifecycle.NotifySpec {
	return notifySpecs[name]
}
