package txerrors

import "strings"

// reasonMessages maps known revert reasons and custom error names to the text
// shown to users.
var reasonMessages = map[string]string{
	"NotCreator":        "Only the creator can perform this action.",
	"AlreadyClaimed":    "This has already been claimed.",
	"QuorumNotMet":      "The proposal did not reach quorum.",
	"AlreadyVoted":      "You have already voted on this proposal.",
	"VotingExpired":     "Voting on this proposal has ended.",
	"VotingOpen":        "Voting is still open; the proposal cannot be finalized yet.",
	"Unauthorized":      "Your roles do not allow this action.",
	"NotEligible":       "You are not eligible for this role.",
	"InvalidProposal":   "That proposal does not exist.",
	"CannotApproveOwn":  "You cannot approve your own request.",
	"AlreadyVouched":    "You have already vouched for this member.",
	"NotVouched":        "You have not vouched for this member.",
	"RequestNotPending": "This request is no longer pending.",
	"InvalidTaskState":  "The task is not in a state that allows this action.",
	"UsernameTaken":     "That username is already registered.",
	"OrgExists":         "An organization with this name already exists.",
	"NotWearer":         "You do not wear the role required for this action.",
}

const (
	msgUserRejected      = "Transaction was rejected in your wallet."
	msgInsufficientFunds = "Insufficient funds to cover the transaction and gas."
	msgNetwork           = "Network error. Check your connection and try again."
	msgGasEstimation     = "The transaction is likely to fail: gas could not be estimated."
	msgRevertGeneric     = "The contract rejected this transaction."
	msgUnknown           = "Something went wrong while sending the transaction."
)

// curatedMessage looks a reason or error name up in the curated table, first
// exactly and then as a substring of a longer reason string.
func curatedMessage(keys ...string) (string, string, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if msg, ok := reasonMessages[k]; ok {
			return k, msg, true
		}
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		for name, msg := range reasonMessages {
			if strings.Contains(k, name) {
				return name, msg, true
			}
		}
	}
	return "", "", false
}
