package events

import "strings"

// Kind is the closed set of refresh events a confirmed write can produce.
// Ad-hoc string events are rejected by the bus.
type Kind string

// Canonical event kinds
const (
	ProposalCreated       Kind = "proposal_created"
	VoteCast              Kind = "vote_cast"
	ProposalFinalized     Kind = "proposal_finalized"
	TaskCreated           Kind = "task_created"
	TaskApplied           Kind = "task_applied"
	TaskClaimed           Kind = "task_claimed"
	TaskSubmitted         Kind = "task_submitted"
	TaskApproved          Kind = "task_approved"
	TaskRejected          Kind = "task_rejected"
	TokenRequestCreated   Kind = "token_request_created"
	TokenRequestApproved  Kind = "token_request_approved"
	TokenRequestCancelled Kind = "token_request_cancelled"
	RoleClaimed           Kind = "role_claimed"
	VouchGiven            Kind = "vouch_given"
	VouchRevoked          Kind = "vouch_revoked"
	OrgDeployed           Kind = "org_deployed"
	MetadataUpdated       Kind = "metadata_updated"
	MemberJoined          Kind = "member_joined"
	UsernameRegistered    Kind = "username_registered"
)

// AllKinds returns all valid event kinds.
func AllKinds() map[Kind]bool {
	return map[Kind]bool{
		ProposalCreated:       true,
		VoteCast:              true,
		ProposalFinalized:     true,
		TaskCreated:           true,
		TaskApplied:           true,
		TaskClaimed:           true,
		TaskSubmitted:         true,
		TaskApproved:          true,
		TaskRejected:          true,
		TokenRequestCreated:   true,
		TokenRequestApproved:  true,
		TokenRequestCancelled: true,
		RoleClaimed:           true,
		VouchGiven:            true,
		VouchRevoked:          true,
		OrgDeployed:           true,
		MetadataUpdated:       true,
		MemberJoined:          true,
		UsernameRegistered:    true,
	}
}

// IsValidKind checks if the given kind string is valid.
func IsValidKind(k string) bool {
	return AllKinds()[Kind(k)]
}

// ParseKind normalizes a kind string ("ProposalCreated", "proposal-created",
// "proposal_created") to its canonical form.
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimSpace(s)
	if strings.ToUpper(s) == s {
		s = strings.ToLower(s)
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	k := Kind(b.String())
	if !AllKinds()[k] {
		return "", false
	}
	return k, true
}

// Family names the group of subgraph queries an event invalidates. The
// subgraph package uses the same strings as its cache families.
type Family string

// Query families
const (
	FamilyOrganization  Family = "organization"
	FamilyRoles         Family = "roles"
	FamilyMembers       Family = "members"
	FamilyProposals     Family = "proposals"
	FamilyTasks         Family = "tasks"
	FamilyTokenRequests Family = "token_requests"
	FamilyVouches       Family = "vouches"
	FamilyUser          Family = "user"
	FamilyInfra         Family = "infrastructure"
)

// AffectedFamilies returns the query families whose cached results a kind
// makes stale.
func AffectedFamilies() map[Kind][]Family {
	return map[Kind][]Family{
		ProposalCreated:       {FamilyProposals},
		VoteCast:              {FamilyProposals},
		ProposalFinalized:     {FamilyProposals, FamilyMembers},
		TaskCreated:           {FamilyTasks},
		TaskApplied:           {FamilyTasks},
		TaskClaimed:           {FamilyTasks},
		TaskSubmitted:         {FamilyTasks},
		TaskApproved:          {FamilyTasks, FamilyMembers},
		TaskRejected:          {FamilyTasks},
		TokenRequestCreated:   {FamilyTokenRequests},
		TokenRequestApproved:  {FamilyTokenRequests, FamilyMembers},
		TokenRequestCancelled: {FamilyTokenRequests},
		RoleClaimed:           {FamilyRoles, FamilyMembers, FamilyVouches},
		VouchGiven:            {FamilyVouches},
		VouchRevoked:          {FamilyVouches},
		OrgDeployed:           {FamilyOrganization},
		MetadataUpdated:       {FamilyOrganization},
		MemberJoined:          {FamilyRoles, FamilyMembers},
		UsernameRegistered:    {FamilyUser, FamilyMembers},
	}
}

// CreatesRow reports whether events of kind add a new list row, which the
// reconciler represents with an optimistic placeholder until indexed.
func CreatesRow(k Kind) bool {
	switch k {
	case ProposalCreated, TaskCreated, TokenRequestCreated, OrgDeployed:
		return true
	}
	return false
}

// RowFamily is the list family a row-creating kind adds to.
func RowFamily(k Kind) Family {
	switch k {
	case ProposalCreated:
		return FamilyProposals
	case TaskCreated:
		return FamilyTasks
	case TokenRequestCreated:
		return FamilyTokenRequests
	case OrgDeployed:
		return FamilyOrganization
	}
	return ""
}
