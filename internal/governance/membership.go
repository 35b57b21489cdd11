package governance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/models"
)

// ClaimRole mints a role the wallet has become eligible for, either by
// role defaults or by collecting enough vouches.
func (b *Builder) ClaimRole(ctx context.Context, hatID string) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	r, id, err := b.roleHat("hat", hatID)
	if err != nil {
		return nil, err
	}
	if !b.caps.CanClaimRole(r.HatID) {
		return nil, notEligible("claim role " + r.Name)
	}
	call, err := b.svc.ClaimVouchedHat(id)
	if err != nil {
		return nil, err
	}
	ev := b.event(events.RoleClaimed)
	ev.HatID = r.HatID
	return &Action{
		Name:           "claim-role",
		Call:           call,
		Notify:         notifyFor("claim-role"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("claim", r.HatID, b.wallet()),
	}, nil
}

// Vouch vouches for wearer to receive hatID.
func (b *Builder) Vouch(ctx context.Context, wearer, hatID string) (*Action, error) {
	return b.vouch(wearer, hatID, false)
}

// RevokeVouch withdraws the wallet's vouch for wearer.
func (b *Builder) RevokeVouch(ctx context.Context, wearer, hatID string) (*Action, error) {
	return b.vouch(wearer, hatID, true)
}

func (b *Builder) vouch(wearer, hatID string, revoke bool) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	addr, err := encoding.ValidateAddress(wearer)
	if err != nil {
		return nil, invalid("wearer", "%v", err)
	}
	w := encoding.LowerAddress(addr)
	if w == b.wallet() {
		return nil, invalid("wearer", "cannot vouch for yourself")
	}
	r, id, err := b.roleHat("hat", hatID)
	if err != nil {
		return nil, err
	}
	if !r.Vouching.Enabled {
		return nil, invalid("hat", "role %s is not claimed by vouching", r.Name)
	}
	if !b.caps.CanVouchForRole(r.HatID) {
		return nil, notEligible("vouch for role " + r.Name)
	}
	has := b.hasVouched(w, r.HatID)
	name, kind := "vouch", events.VouchGiven
	if revoke {
		if !has {
			return nil, invalid("vouch", "you have not vouched for %s", w)
		}
		name, kind = "revoke-vouch", events.VouchRevoked
	} else if has {
		return nil, invalid("vouch", "already vouched for %s", w)
	}

	call := b.svc.VouchFor
	if revoke {
		call = b.svc.RevokeVouch
	}
	req, err := call(w, id)
	if err != nil {
		return nil, err
	}
	ev := b.event(kind)
	ev.Wallet = w
	ev.Voucher = b.wallet()
	ev.HatID = r.HatID
	return &Action{
		Name:           name,
		Call:           req,
		Notify:         notifyFor(name),
		Events:         []events.Event{ev},
		IdempotencyKey: key(name, r.HatID, w, b.wallet()),
	}, nil
}

func (b *Builder) hasVouched(wearer, hat string) bool {
	for _, v := range b.view.Vouches {
		if v.Wearer == wearer && encoding.SameHat(v.HatID, hat) {
			for _, voucher := range v.Vouchers {
				if voucher == b.wallet() {
					return true
				}
			}
		}
	}
	return false
}

// QuickJoin joins the organization's quick-join roles. A username is
// registered in the same transaction when given.
func (b *Builder) QuickJoin(ctx context.Context, username string) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	if !b.caps.CanJoin {
		if b.caps.IsMember {
			return nil, invalid("membership", "already a member")
		}
		return nil, notEligible("join this organization")
	}
	username = strings.TrimSpace(username)
	if username != "" {
		if err := validateUsername(username); err != nil {
			return nil, err
		}
	}
	call, err := b.svc.QuickJoin(username)
	if err != nil {
		return nil, err
	}
	evs := []events.Event{b.event(events.MemberJoined)}
	if username != "" {
		ev := b.event(events.UsernameRegistered)
		ev.Username = username
		evs = append(evs, ev)
	}
	return &Action{
		Name:           "join",
		Call:           call,
		Notify:         notifyFor("join"),
		Events:         evs,
		IdempotencyKey: key("join", b.view.Org.ID, b.wallet()),
	}, nil
}

// Usernames are 3 to 32 characters of letters, digits, '_' and '-'.
const (
	minUsername = 3
	maxUsername = 32
)

func validateUsername(u string) error {
	if n := utf8.RuneCountInString(u); n < minUsername || n > maxUsername {
		return invalid("username", "must be %d to %d characters", minUsername, maxUsername)
	}
	for _, r := range u {
		ok := r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return invalid("username", "%q contains %q", u, r)
		}
	}
	return nil
}

// RegisterUsername registers a global username for the wallet. It needs no
// organization.
func (b *Builder) RegisterUsername(ctx context.Context, username string) (*Action, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	call, err := b.svc.RegisterAccount(username)
	if err != nil {
		return nil, err
	}
	ev := b.event(events.UsernameRegistered)
	ev.Username = username
	return &Action{
		Name:           "register-username",
		Call:           call,
		Notify:         notifyFor("register-username"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("username", b.wallet(), username),
	}, nil
}

// RequestTokens asks for amount participation tokens, in the token's
// display units. The reason is uploaded and referenced by CID.
func (b *Builder) RequestTokens(ctx context.Context, amount, reason string) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	if !b.caps.CanRequestTokens {
		return nil, notEligible("request tokens")
	}
	raw, err := encoding.ParseTokenAmount(amount, b.view.Org.TokenDecimals)
	if err != nil {
		return nil, invalid("amount", "%v", err)
	}
	if raw.Sign() <= 0 {
		return nil, invalid("amount", "must be positive")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "required")
	}
	cid, err := ipfs.PutJSON(ctx, b.store, ipfs.TaskMetadata{Description: reason})
	if err != nil {
		return nil, fmt.Errorf("upload request reason: %w", err)
	}
	call, err := b.svc.RequestTokens(raw, cid)
	if err != nil {
		return nil, err
	}
	ev := b.event(events.TokenRequestCreated)
	ev.MetadataCID = cid
	return &Action{
		Name:           "request-tokens",
		Call:           call,
		Notify:         notifyFor("request-tokens"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("request", b.view.Org.ID, b.wallet(), raw.String(), reason),
	}, nil
}

// ApproveRequest approves another member's pending token request.
func (b *Builder) ApproveRequest(ctx context.Context, id string) (*Action, error) {
	r, err := b.pendingRequest(id)
	if err != nil {
		return nil, err
	}
	if r.Requester == b.wallet() {
		return nil, ErrCannotApproveOwn
	}
	if !b.caps.CanApproveTokenRequest {
		return nil, notEligible("approve token requests")
	}
	return b.requestAction("approve-request", events.TokenRequestApproved, r, b.svc.ApproveRequest)
}

// CancelRequest cancels one of the wallet's own pending requests.
func (b *Builder) CancelRequest(ctx context.Context, id string) (*Action, error) {
	r, err := b.pendingRequest(id)
	if err != nil {
		return nil, err
	}
	if r.Requester != b.wallet() {
		return nil, notEligible("cancel another member's request")
	}
	return b.requestAction("cancel-request", events.TokenRequestCancelled, r, b.svc.CancelRequest)
}

func (b *Builder) pendingRequest(id string) (*models.TokenRequest, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	r, ok := b.view.Request(id)
	if !ok || r.IsIndexing {
		return nil, fmt.Errorf("token request %s: %w", id, ErrNotFound)
	}
	if r.Status != models.RequestPending {
		return nil, invalid("request", "is %s", r.Status)
	}
	return r, nil
}

func (b *Builder) requestAction(name string, kind events.Kind, r *models.TokenRequest, fn func(*big.Int) (*contracts.CallRequest, error)) (*Action, error) {
	id, ok := new(big.Int).SetString(r.ID, 10)
	if !ok {
		return nil, invalid("request id", "%q is not numeric", r.ID)
	}
	call, err := fn(id)
	if err != nil {
		return nil, err
	}
	ev := b.event(kind)
	ev.RequestID = r.ID
	ev.Wallet = r.Requester
	return &Action{
		Name:           name,
		Call:           call,
		Notify:         notifyFor(name),
		Events:         []events.Event{ev},
		IdempotencyKey: key(name, b.view.Org.ID, r.ID),
	}, nil
}

// UpdateMetadata replaces the organization's description and links.
// Only admins can.
func (b *Builder) UpdateMetadata(ctx context.Context, name string, meta ipfs.OrgMetadata) (*Action, error) {
	if err := b.requireOrg(); err != nil {
		return nil, err
	}
	if !b.caps.IsAdmin {
		return nil, notEligible("update organization details")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = b.view.Org.Name
	}
	for i, l := range meta.Links {
		if strings.TrimSpace(l.URL) == "" {
			return nil, invalid(fmt.Sprintf("links[%d]", i), "url required")
		}
	}
	cid, err := ipfs.PutJSON(ctx, b.store, meta)
	if err != nil {
		return nil, fmt.Errorf("upload organization metadata: %w", err)
	}
	digest, err := encoding.CIDToBytes32(cid)
	if err != nil {
		return nil, err
	}
	call, err := b.svc.UpdateOrgMeta(orgHash(b.view.Org.ID), name, digest)
	if err != nil {
		return nil, err
	}
	ev := b.event(events.MetadataUpdated)
	ev.MetadataCID = cid
	ev.MetadataKind = "organization"
	return &Action{
		Name:           "update-metadata",
		Call:           call,
		Notify:         notifyFor("update-metadata"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("metadata", b.view.Org.ID, cid),
	}, nil
}
