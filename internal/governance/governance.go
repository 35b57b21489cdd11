// Package governance turns user intents into ready-to-execute actions: a
// packed contract call, the notifications to show while it runs, and the
// refresh events to publish once it confirms. Preconditions the client can
// check locally (eligibility, self-approval, malformed input) fail here,
// before any gas is spent.
package governance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marcus/po/internal/capability"
	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/lifecycle"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/workflow"
)

var (
	// ErrNotEligible means the wallet lacks the role or permission the
	// action needs.
	ErrNotEligible = errors.New("not eligible")
	// ErrCannotApproveOwn blocks approving one's own token request.
	ErrCannotApproveOwn = errors.New("cannot approve your own request")
	// ErrNoOrganization means an org-scoped action was built without an
	// organization loaded.
	ErrNoOrganization = errors.New("no organization loaded")
	// ErrNotFound means the referenced proposal, task or request is not in
	// the loaded view.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports the first invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Action is a built write, ready for the lifecycle manager.
type Action struct {
	Name   string
	Call   *contracts.CallRequest
	Notify lifecycle.NotifySpec
	Events []events.Event

	// IdempotencyKey identifies the intent so a repeated submission inside
	// the dedup window joins the first one.
	IdempotencyKey string

	// Proposal holds the normalized arguments of proposal actions.
	Proposal *contracts.ProposalInput
	// Deployment holds the params of deploy actions.
	Deployment *contracts.DeploymentParams
}

// Builder builds actions for one wallet. Org-scoped intents need WithOrg.
type Builder struct {
	svc     *contracts.Services
	store   ipfs.Store
	view    *orgmodel.View
	caps    *capability.Capabilities
	machine *workflow.StateMachine
	now     func() time.Time
}

// NewBuilder creates a Builder writing through svc and uploading
// documents to store.
func NewBuilder(svc *contracts.Services, store ipfs.Store) *Builder {
	return &Builder{
		svc:     svc,
		store:   store,
		machine: workflow.StrictMachine(),
		now:     time.Now,
	}
}

// WithOrg returns a copy bound to an organization view and the wallet's
// capabilities in it.
func (b *Builder) WithOrg(v *orgmodel.View, caps *capability.Capabilities) *Builder {
	nb := *b
	nb.view = v
	nb.caps = caps
	return &nb
}

func (b *Builder) wallet() string {
	if b.caps != nil && b.caps.Wallet != "" {
		return b.caps.Wallet
	}
	return encoding.LowerAddress(b.svc.From())
}

func (b *Builder) requireOrg() error {
	if b.view == nil || b.caps == nil {
		return ErrNoOrganization
	}
	return nil
}

func notEligible(what string) error {
	return fmt.Errorf("%w: %s", ErrNotEligible, what)
}

func (b *Builder) event(kind events.Kind) events.Event {
	ev := events.Event{Kind: kind, Wallet: b.wallet(), At: b.now()}
	if b.view != nil {
		ev.OrgID = b.view.Org.ID
	}
	return ev
}

func key(parts ...string) string {
	return strings.Join(parts, ":")
}

func orgHash(id string) common.Hash {
	return common.HexToHash(id)
}
