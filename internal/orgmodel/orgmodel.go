// Package orgmodel joins raw subgraph entities into the read-only
// organization view the rest of the client works from. Derive is pure:
// the same snapshot, clock and placeholders always produce the same view.
package orgmodel

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/models"
)

var (
	// ErrNoOrganization means the snapshot carries neither an indexed
	// organization nor a deployment placeholder for it.
	ErrNoOrganization = errors.New("organization not indexed")
	// ErrClassWeights means the hybrid voting classes do not sum to 100.
	ErrClassWeights = errors.New("voting class weights must sum to 100")
)

// Snapshot is one consistent read of an organization's entities.
type Snapshot struct {
	OrgID     string
	Org       *models.RawOrganization
	Proposals []models.RawProposal
	Tasks     []models.RawTask
	Requests  []models.RawTokenRequest
	Vouches   []models.RawVouch
}

// View is the derived organization.
type View struct {
	Org          models.Organization
	Members      []models.Member
	Proposals    []models.Proposal
	Tasks        []models.Task
	Requests     []models.TokenRequest
	Vouches      []models.VouchProgress
	Power        []models.VotingPower
	Placeholders []models.Placeholder
	DerivedAt    time.Time
}

// Derive builds a View from snap as of now, merging placeholders for rows
// the indexer has not caught up with.
func Derive(snap Snapshot, now time.Time, placeholders []models.Placeholder) (*View, error) {
	v := &View{DerivedAt: now, Placeholders: append([]models.Placeholder(nil), placeholders...)}
	models.SortPlaceholders(v.Placeholders)

	if snap.Org == nil {
		for _, p := range v.Placeholders {
			if p.Family == string(events.FamilyOrganization) && (snap.OrgID == "" || p.OrgID == snap.OrgID) {
				v.Org = models.Organization{ID: p.OrgID, Name: p.Title, IsIndexing: true}
				return v, nil
			}
		}
		return nil, ErrNoOrganization
	}

	org, err := deriveOrganization(snap.Org)
	if err != nil {
		return nil, err
	}
	v.Org = *org

	if v.Members, err = deriveMembers(snap.Org); err != nil {
		return nil, err
	}
	if v.Proposals, err = deriveProposals(snap.Proposals, now); err != nil {
		return nil, err
	}
	if v.Tasks, err = deriveTasks(snap.Tasks); err != nil {
		return nil, err
	}
	if v.Requests, err = deriveRequests(snap.Requests); err != nil {
		return nil, err
	}
	v.Vouches = deriveVouches(snap.Vouches, v.Org.Roles)
	v.Power = deriveVotingPower(&v.Org, v.Members)

	v.mergePlaceholders()
	return v, nil
}

// Member returns the member with the given address.
func (v *View) Member(addr string) (*models.Member, bool) {
	addr = strings.ToLower(addr)
	for i := range v.Members {
		if v.Members[i].Address == addr {
			return &v.Members[i], true
		}
	}
	return nil, false
}

// Proposal returns the proposal with the composite id.
func (v *View) Proposal(id string) (*models.Proposal, bool) {
	for i := range v.Proposals {
		if v.Proposals[i].ID == id {
			return &v.Proposals[i], true
		}
	}
	return nil, false
}

// Task returns the task with the given id.
func (v *View) Task(id string) (*models.Task, bool) {
	for i := range v.Tasks {
		if v.Tasks[i].ID == id {
			return &v.Tasks[i], true
		}
	}
	return nil, false
}

// Request returns the token request with the given id.
func (v *View) Request(id string) (*models.TokenRequest, bool) {
	for i := range v.Requests {
		if v.Requests[i].ID == id {
			return &v.Requests[i], true
		}
	}
	return nil, false
}

// VotingPowerOf returns the projection for wallet, zero when the wallet
// holds no power.
func (v *View) VotingPowerOf(wallet string) models.VotingPower {
	wallet = strings.ToLower(wallet)
	for _, p := range v.Power {
		if p.Wallet == wallet {
			return p
		}
	}
	return models.VotingPower{Wallet: wallet}
}

func deriveOrganization(raw *models.RawOrganization) (*models.Organization, error) {
	org := &models.Organization{
		ID:           strings.ToLower(raw.ID),
		Name:         raw.Name,
		MetadataCID:  hashToCID(raw.MetadataHash),
		LogoCID:      hashToCID(raw.LogoHash),
		TokenSymbol:  raw.TokenSymbol,
		DDQuorum:     raw.DDQuorum,
		HybridQuorum: raw.HybridQuorum,
		Addresses: models.ContractAddresses{
			Executor:              lower(raw.Executor),
			HybridVoting:          lower(raw.HybridVoting),
			DirectDemocracyVoting: lower(raw.DirectDemocracyVoting),
			ParticipationToken:    lower(raw.ParticipationToken),
			TaskManager:           lower(raw.TaskManager),
			PaymentManager:        lower(raw.PaymentManager),
			EducationHub:          lower(raw.EducationHub),
			EligibilityModule:     lower(raw.EligibilityModule),
			ToggleModule:          lower(raw.ToggleModule),
			QuickJoin:             lower(raw.QuickJoin),
		},
	}
	if raw.TokenDecimals < 0 || raw.TokenDecimals > 255 {
		return nil, fmt.Errorf("token decimals %d out of range", raw.TokenDecimals)
	}
	org.TokenDecimals = uint8(raw.TokenDecimals)
	if raw.CreatedAtBlock != "" {
		n, err := strconv.ParseUint(raw.CreatedAtBlock, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("createdAtBlock %q: %w", raw.CreatedAtBlock, err)
		}
		org.CreatedAtBlock = n
	}
	if raw.TopHatID != "" {
		top, err := encoding.NormalizeHatID(raw.TopHatID)
		if err != nil {
			return nil, err
		}
		org.TopHatID = top
	}

	roles, err := deriveRoles(raw)
	if err != nil {
		return nil, err
	}
	org.Roles = roles

	classes, err := deriveClasses(raw.VotingClasses)
	if err != nil {
		return nil, err
	}
	org.VotingClasses = classes
	return org, nil
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// hashToCID converts a bytes32 hex digest into its CIDv0. Empty or zero
// hashes mean no metadata.
func hashToCID(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	return encoding.Bytes32ToCID(common.HexToHash(h))
}

func parseBig(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s %q is not a non-negative integer", field, s)
	}
	return n, nil
}

func parseUnix(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return time.Unix(n, 0).UTC(), nil
}
