package cmd

import (
	"errors"

	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
	"github.com/marcus/po/internal/subgraph"
	"github.com/marcus/po/internal/txerrors"
	"github.com/marcus/po/internal/workflow"
)

// errorCode maps an error to the stable code printed with --json.
func errorCode(err error) string {
	var verr *governance.ValidationError
	var perr *txerrors.ParsedError
	var terr *workflow.TransitionError
	var gerr *workflow.GuardError
	switch {
	case errors.As(err, &verr), errors.As(err, &terr), errors.As(err, &gerr), errors.Is(err, contracts.ErrInvalidArgs), errors.Is(err, ipfs.ErrInvalidCID):
		return output.ErrCodeInvalidInput
	case errors.Is(err, governance.ErrCannotApproveOwn):
		return output.ErrCodeCannotApprove
	case errors.Is(err, governance.ErrNotEligible):
		return output.ErrCodeNotEligible
	case errors.Is(err, governance.ErrNoOrganization), errors.Is(err, session.ErrNoOrganization), errors.Is(err, orgmodel.ErrNoOrganization):
		return output.ErrCodeNoOrganization
	case errors.Is(err, governance.ErrNotFound), errors.Is(err, subgraph.ErrNotFound), errors.Is(err, ipfs.ErrNotFound):
		return output.ErrCodeNotFound
	case errors.As(err, &perr):
		switch perr.Category {
		case txerrors.CategoryUserRejected:
			return output.ErrCodeRejected
		case txerrors.CategoryNetwork:
			return output.ErrCodeNetwork
		}
		return output.ErrCodeTransaction
	}
	return output.ErrCodeUnknown
}

// fail prints err in the selected output mode and returns it for cobra's
// exit status.
func fail(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var perr *txerrors.ParsedError
	if errors.As(err, &perr) && perr.UserMessage != "" {
		msg = perr.UserMessage
	}
	if jsonFlag {
		details := map[string]interface{}{}
		if perr != nil {
			details["category"] = perr.Category.String()
			details["recoverable"] = perr.Recoverable
			if perr.DecodedName != "" {
				details["error_name"] = perr.DecodedName
			}
			if perr.TechnicalMessage != "" {
				details["technical"] = perr.TechnicalMessage
			}
		}
		output.JSONErrorWithDetails(errorCode(err), msg, details)
		return err
	}
	output.Error("%s", msg)
	if perr != nil && perr.Recoverable {
		output.Info("this error is temporary; retrying may succeed")
	}
	return err
}
