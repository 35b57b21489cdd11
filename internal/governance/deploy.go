package governance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/models"
)

// DeployConfig is a complete organization definition, usually read from a
// YAML file.
type DeployConfig struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Links       []ipfs.Link `yaml:"links"`
	Template    string      `yaml:"template"`
	// MetadataCID points at already uploaded metadata. When empty and a
	// description or links are given, the metadata is uploaded.
	MetadataCID string `yaml:"metadata_cid"`
	LogoURL     string `yaml:"logo_url"`

	HybridQuorum     int         `yaml:"hybrid_quorum"`
	DDQuorum         int         `yaml:"dd_quorum"`
	VotingClasses    []ClassSpec `yaml:"voting_classes"`
	DDInitialTargets []string    `yaml:"dd_initial_targets"`

	Roles       []RoleSpec                   `yaml:"roles"`
	Permissions map[models.Permission][]int `yaml:"permissions"`

	EducationHub bool `yaml:"education_hub"`
	Passkey      bool `yaml:"passkey"`
}

// ClassSpec is a hybrid voting class. Roles are indices into the role
// list; the deployer resolves them to hat ids.
type ClassSpec struct {
	Strategy   models.VotingStrategy `yaml:"strategy"`
	Weight     int                   `yaml:"weight"`
	Quadratic  bool                  `yaml:"quadratic"`
	MinBalance string                `yaml:"min_balance"`
	Asset      string                `yaml:"asset"`
	Roles      []int                 `yaml:"roles"`
}

// RoleSpec is one role of a deployment.
type RoleSpec struct {
	Name         string              `yaml:"name"`
	Image        string              `yaml:"image"`
	CanVote      bool                `yaml:"can_vote"`
	Admin        *models.AdminIndex  `yaml:"admin"` // TOP or a lower role index
	Vouching     models.VouchConfig  `yaml:"vouching"`
	Defaults     models.RoleDefaults `yaml:"defaults"`
	Distribution models.Distribution `yaml:"distribution"`
	HatConfig    models.HatConfig    `yaml:"hat"`
}

// ParseDeployConfig decodes a deployment config. Unknown keys are errors so
// a typo cannot silently drop a setting.
func ParseDeployConfig(data []byte) (*DeployConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("deploy config: empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg DeployConfig
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("deploy config: %w", err)
	}
	return &cfg, nil
}

// LoadDeployConfig reads and decodes a deployment config file.
func LoadDeployConfig(path string) (*DeployConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deploy config: read %s: %w", path, err)
	}
	cfg, err := ParseDeployConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config without touching the network.
func (c *DeployConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "required")
	}
	if err := c.validateRoles(); err != nil {
		return err
	}
	if err := c.validateClasses(); err != nil {
		return err
	}
	for _, q := range []struct {
		field string
		v     int
	}{{"hybrid_quorum", c.HybridQuorum}, {"dd_quorum", c.DDQuorum}} {
		if q.v < 1 || q.v > 100 {
			return invalid(q.field, "%d not in [1, 100]", q.v)
		}
	}
	for i, t := range c.DDInitialTargets {
		if _, err := encoding.ValidateAddress(t); err != nil {
			return invalid(fmt.Sprintf("dd_initial_targets[%d]", i), "%v", err)
		}
	}
	known := make(map[models.Permission]bool)
	for _, p := range models.AllPermissions() {
		known[p] = true
	}
	for p, idxs := range c.Permissions {
		if !known[p] {
			return invalid("permissions", "unknown permission %q", p)
		}
		for _, i := range idxs {
			if i < 0 || i >= len(c.Roles) {
				return invalid("permissions."+string(p), "role %d out of range", i)
			}
		}
	}
	if c.MetadataCID != "" && !encoding.IsCIDv0(c.MetadataCID) {
		return invalid("metadata_cid", "%q is not a CIDv0", c.MetadataCID)
	}
	return nil
}

func (c *DeployConfig) validateRoles() error {
	n := len(c.Roles)
	if n == 0 {
		return invalid("roles", "at least one role required")
	}
	if n > encoding.MaxRoles {
		return invalid("roles", "%d roles, at most %d allowed", n, encoding.MaxRoles)
	}
	tops := 0
	names := make(map[string]int, n)
	for i, r := range c.Roles {
		field := fmt.Sprintf("roles[%d]", i)
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return invalid(field+".name", "required")
		}
		if j, dup := names[strings.ToLower(name)]; dup {
			return invalid(field+".name", "%q already used by role %d", name, j)
		}
		names[strings.ToLower(name)] = i

		if r.Admin == nil {
			return invalid(field+".admin", "required (TOP or a role index)")
		}
		switch a := int(*r.Admin); {
		case r.Admin.IsTop():
			tops++
		case a >= n:
			return invalid(field+".admin", "%d out of range", a)
		case a >= i:
			return invalid(field+".admin", "%d must point to a lower index", a)
		}

		if v := r.Vouching; v.Enabled {
			if v.Quorum < 1 {
				return invalid(field+".vouching.quorum", "must be at least 1")
			}
			if v.VoucherRoleIndex < 0 || v.VoucherRoleIndex >= n {
				return invalid(field+".vouching.voucher_role_index", "%d out of range", v.VoucherRoleIndex)
			}
		}
		for j, w := range r.Distribution.AdditionalWearers {
			if _, err := encoding.ValidateAddress(w); err != nil {
				return invalid(fmt.Sprintf("%s.distribution.additional_wearers[%d]", field, j), "%v", err)
			}
		}
	}
	if tops != 1 {
		return invalid("roles", "exactly one role must be administered by TOP, found %d", tops)
	}
	return nil
}

func (c *DeployConfig) validateClasses() error {
	if len(c.VotingClasses) == 0 {
		return invalid("voting_classes", "at least one class required")
	}
	sum := 0
	for i, vc := range c.VotingClasses {
		field := fmt.Sprintf("voting_classes[%d]", i)
		switch vc.Strategy {
		case models.StrategyDirect, models.StrategyERC20Bal:
		default:
			return invalid(field+".strategy", "unknown strategy %q", vc.Strategy)
		}
		if vc.Weight < 1 || vc.Weight > 100 {
			return invalid(field+".weight", "%d not in [1, 100]", vc.Weight)
		}
		sum += vc.Weight
		if vc.MinBalance != "" {
			if n, ok := new(big.Int).SetString(vc.MinBalance, 10); !ok || n.Sign() < 0 {
				return invalid(field+".min_balance", "%q is not a non-negative integer", vc.MinBalance)
			}
		}
		if vc.Asset != "" {
			if _, err := encoding.ValidateAddress(vc.Asset); err != nil {
				return invalid(field+".asset", "%v", err)
			}
		}
		for _, r := range vc.Roles {
			if r < 0 || r >= len(c.Roles) {
				return invalid(field+".roles", "role %d out of range", r)
			}
		}
	}
	if sum != 100 {
		return invalid("voting_classes", "weights sum to %d, want 100", sum)
	}
	return nil
}

// Params converts a validated config into deployer arguments. metadataCID
// overrides the config's own.
func (c *DeployConfig) Params(metadataCID string, registry common.Address) (contracts.DeploymentParams, error) {
	var p contracts.DeploymentParams
	p.OrgId = encoding.OrgIDOfName(c.Name)
	p.OrgName = strings.TrimSpace(c.Name)
	p.LogoURL = c.LogoURL
	p.RegistryAddr = registry
	p.HybridQuorumPct = uint8(c.HybridQuorum)
	p.DdQuorumPct = uint8(c.DDQuorum)
	p.EducationHubEnabled = c.EducationHub
	p.PasskeyEnabled = c.Passkey

	if metadataCID != "" {
		digest, err := encoding.CIDToBytes32(metadataCID)
		if err != nil {
			return p, invalid("metadata_cid", "%v", err)
		}
		p.MetadataHash = digest
	}

	for _, vc := range c.VotingClasses {
		cc := contracts.ClassConfig{
			Strategy:   contracts.StrategyDirect,
			SlicePct:   uint8(vc.Weight),
			Quadratic:  vc.Quadratic,
			MinBalance: new(big.Int),
			HatIds:     make([]*big.Int, 0, len(vc.Roles)),
		}
		if vc.Strategy == models.StrategyERC20Bal {
			cc.Strategy = contracts.StrategyERC20Bal
		}
		if vc.MinBalance != "" {
			cc.MinBalance.SetString(vc.MinBalance, 10)
		}
		if vc.Asset != "" {
			cc.Asset = common.HexToAddress(vc.Asset)
		}
		for _, r := range vc.Roles {
			cc.HatIds = append(cc.HatIds, big.NewInt(int64(r)))
		}
		p.HybridClasses = append(p.HybridClasses, cc)
	}

	p.DdInitialTargets = make([]common.Address, 0, len(c.DDInitialTargets))
	for _, t := range c.DDInitialTargets {
		p.DdInitialTargets = append(p.DdInitialTargets, common.HexToAddress(t))
	}

	for _, r := range c.Roles {
		rc := contracts.RoleConfig{
			Name:    strings.TrimSpace(r.Name),
			Image:   r.Image,
			CanVote: r.CanVote,
			Vouching: contracts.VouchingConfig{
				Enabled:              r.Vouching.Enabled,
				Quorum:               uint32(r.Vouching.Quorum),
				VoucherRoleIndex:     big.NewInt(int64(r.Vouching.VoucherRoleIndex)),
				CombineWithHierarchy: r.Vouching.CombineWithHierarchy,
			},
			Defaults: contracts.RoleEligibilityDefaults{
				Eligible: r.Defaults.Eligible,
				Standing: r.Defaults.Standing,
			},
			Distribution: contracts.RoleDistributionConfig{
				MintToDeployer:    r.Distribution.MintToDeployer,
				AdditionalWearers: make([]common.Address, 0, len(r.Distribution.AdditionalWearers)),
			},
			HatConfig: contracts.HatConfig{
				MaxSupply:  r.HatConfig.MaxSupply,
				MutableHat: r.HatConfig.Mutable,
			},
		}
		if r.Admin.IsTop() {
			rc.Hierarchy.AdminRoleIndex = new(big.Int).Set(contracts.TopAdminIndex)
		} else {
			rc.Hierarchy.AdminRoleIndex = big.NewInt(int64(*r.Admin))
		}
		for _, w := range r.Distribution.AdditionalWearers {
			rc.Distribution.AdditionalWearers = append(rc.Distribution.AdditionalWearers, common.HexToAddress(w))
		}
		p.Roles = append(p.Roles, rc)
	}

	bitmaps := map[models.Permission]**big.Int{
		models.PermQuickJoin:             &p.RoleAssignments.QuickJoinRolesBitmap,
		models.PermTokenMember:           &p.RoleAssignments.TokenMemberRolesBitmap,
		models.PermTokenApprover:         &p.RoleAssignments.TokenApproverRolesBitmap,
		models.PermTaskCreator:           &p.RoleAssignments.TaskCreatorRolesBitmap,
		models.PermEducationCreator:      &p.RoleAssignments.EducationCreatorRolesBitmap,
		models.PermEducationMember:       &p.RoleAssignments.EducationMemberRolesBitmap,
		models.PermHybridProposalCreator: &p.RoleAssignments.HybridProposalCreatorRolesBitmap,
		models.PermDDVoter:               &p.RoleAssignments.DdVotingRolesBitmap,
		models.PermDDCreator:             &p.RoleAssignments.DdCreatorRolesBitmap,
	}
	for perm, dst := range bitmaps {
		mask, err := encoding.BitmaskSet(c.Permissions[perm])
		if err != nil {
			return p, invalid("permissions."+string(perm), "%v", err)
		}
		*dst = mask.Big()
	}
	return p, nil
}

// Deploy validates cfg and builds the deployment. Metadata is uploaded
// first when the config carries it inline.
func (b *Builder) Deploy(ctx context.Context, cfg *DeployConfig) (*Action, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cid := cfg.MetadataCID
	if cid == "" && (cfg.Description != "" || len(cfg.Links) > 0 || cfg.Template != "") {
		var err error
		cid, err = ipfs.PutJSON(ctx, b.store, ipfs.OrgMetadata{
			Description: cfg.Description,
			Links:       cfg.Links,
			Template:    cfg.Template,
		})
		if err != nil {
			return nil, fmt.Errorf("upload organization metadata: %w", err)
		}
	}
	params, err := cfg.Params(cid, b.svc.Addresses().AccountRegistry)
	if err != nil {
		return nil, err
	}
	call, err := b.svc.DeployFullOrg(params)
	if err != nil {
		return nil, err
	}

	ev := b.event(events.OrgDeployed)
	ev.OrgID = encoding.OrgIDHex(cfg.Name)
	ev.Title = params.OrgName
	ev.MetadataCID = cid
	return &Action{
		Name:           "deploy",
		Call:           call,
		Notify:         notifyFor("deploy"),
		Events:         []events.Event{ev},
		IdempotencyKey: key("deploy", ev.OrgID),
		Deployment:     &params,
	}, nil
}
