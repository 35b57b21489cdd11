package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/ipfs"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
)

var orgCmd = &cobra.Command{
	Use:     "org",
	Short:   "Inspect and administer the organization",
	GroupID: "org",
}

var orgShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the organization, its roles and voting setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			if jsonFlag {
				return output.JSON(map[string]interface{}{
					"organization": v.Org,
					"members":      len(v.Members),
					"placeholders": v.Placeholders,
				})
			}
			fmt.Print(output.FormatOrganization(&v.Org, len(v.Members)))
			if text := orgAbout(ctx, s, v.Org.MetadataCID); text != "" {
				fmt.Print(output.SectionHeader("About"))
				fmt.Println(output.RenderDescription(text, plain))
			}
			return nil
		})
	},
}

var orgRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List roles with wearers, vouching and permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			if jsonFlag {
				return output.JSON(v.Org.Roles)
			}
			for _, r := range v.Org.Roles {
				fmt.Printf("%d. %s  %s\n", r.Index, r.Name, output.ShortAddress(r.HatID))
				fmt.Printf("   admin: %s  wearers: %d", adminLabel(v, r.AdminRoleIndex), r.MemberCount)
				if r.CanVote {
					fmt.Print("  votes")
				}
				fmt.Println()
				if r.Vouching.Enabled {
					fmt.Printf("   vouching: quorum %d by role %d\n", r.Vouching.Quorum, r.Vouching.VoucherRoleIndex)
				}
				if perms := permissionNames(r.Permissions); len(perms) > 0 {
					fmt.Printf("   permissions: %s\n", strings.Join(perms, ", "))
				}
			}
			if len(v.Vouches) > 0 {
				fmt.Print(output.SectionHeader("Vouching in progress"))
				for _, vp := range v.Vouches {
					if vp.Complete {
						continue
					}
					role := vp.HatID
					if r, ok := v.Org.RoleByHat(vp.HatID); ok {
						role = r.Name
					}
					fmt.Printf("  %s for %s: %d/%d\n", output.ShortAddress(vp.Wearer), role, len(vp.Vouchers), vp.Quorum)
				}
			}
			return nil
		})
	},
}

// orgAbout renders organization metadata as markdown. Documents that are
// not metadata JSON are shown as they are.
func orgAbout(ctx context.Context, s *session.Session, cid string) string {
	if cid == "" {
		return ""
	}
	var meta ipfs.OrgMetadata
	if err := ipfs.GetJSON(ctx, s.IPFS(), cid, &meta); err != nil {
		text, _ := s.Describe(ctx, cid)
		return text
	}
	text := meta.Description
	for _, l := range meta.Links {
		text += fmt.Sprintf("\n- [%s](%s)", l.Name, l.URL)
	}
	return text
}

func adminLabel(v *orgmodel.View, a models.AdminIndex) string {
	if a.IsTop() {
		return "top hat"
	}
	for _, r := range v.Org.Roles {
		if r.Index == int(a) {
			return r.Name
		}
	}
	return "role " + a.String()
}

func permissionNames(set models.PermissionSet) []string {
	out := make([]string, 0, len(set))
	for p, ok := range set {
		if ok {
			out = append(out, string(p))
		}
	}
	sort.Strings(out)
	return out
}

var orgMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List members with roles, balances and voting power",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			if jsonFlag {
				return output.JSON(map[string]interface{}{
					"members": v.Members,
					"power":   v.Power,
				})
			}
			if len(v.Members) == 0 {
				fmt.Println("No members")
				return nil
			}
			for _, m := range v.Members {
				var roles []string
				for _, h := range m.HatIDs {
					if r, ok := v.Org.RoleByHat(h); ok {
						roles = append(roles, r.Name)
					}
				}
				name := m.Username
				if name == "" {
					name = "-"
				}
				p := v.VotingPowerOf(m.Address)
				fmt.Printf("%s  %-16s  [%s]  %s  power %.1f%%\n",
					m.Address, name, strings.Join(roles, ", "),
					output.FormatAmount(m.TokenBalance, v.Org.TokenDecimals, v.Org.TokenSymbol),
					p.Share*100)
			}
			return nil
		})
	},
}

var orgUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace the organization's name, description and links (admins)",
	Example: `  po org update --description "We build bridges" --link site=https://example.org
  po org update --name "Acme Collective"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		desc, _ := cmd.Flags().GetString("description")
		rawLinks, _ := cmd.Flags().GetStringArray("link")
		links, err := parseLinks(rawLinks)
		if err != nil {
			return fail(err)
		}
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.UpdateMetadata(ctx, name, ipfs.OrgMetadata{Description: desc, Links: links})
		})
	},
}

// parseLinks reads name=url pairs.
func parseLinks(raw []string) ([]ipfs.Link, error) {
	links := make([]ipfs.Link, 0, len(raw))
	for _, l := range raw {
		name, url, ok := strings.Cut(l, "=")
		if !ok || strings.TrimSpace(url) == "" {
			return nil, &governance.ValidationError{Field: "link", Reason: fmt.Sprintf("%q is not name=url", l)}
		}
		links = append(links, ipfs.Link{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return links, nil
}

func init() {
	rootCmd.AddCommand(orgCmd)
	orgCmd.AddCommand(orgShowCmd, orgRolesCmd, orgMembersCmd, orgUpdateCmd)

	orgShowCmd.Flags().Bool("plain", false, "print the description without markdown rendering")

	orgUpdateCmd.Flags().String("name", "", "new name (default: keep)")
	orgUpdateCmd.Flags().String("description", "", "markdown description")
	orgUpdateCmd.Flags().StringArray("link", nil, "name=url link (repeatable)")
	addWriteFlags(orgUpdateCmd)
}
