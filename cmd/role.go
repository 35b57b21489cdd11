package cmd

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/suggest"
)

var roleCmd = &cobra.Command{
	Use:     "role",
	Aliases: []string{"roles"},
	Short:   "Claim roles and vouch for members",
	GroupID: "membership",
	Long: `Roles are named by index, name or hat id:

  po role claim 2
  po role claim Contributor
  po role vouch 0xabc... Contributor`,
}

// resolveRole maps a role index, name or hat id to a hat id. Unknown
// numbers and 0x ids pass through for the builder to reject; unknown
// names fail with the closest role names.
func resolveRole(v *orgmodel.View, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if v == nil {
		return ref, nil
	}
	i, numErr := strconv.Atoi(ref)
	if numErr == nil && len(ref) < 4 {
		for _, r := range v.Org.Roles {
			if r.Index == i {
				return r.HatID, nil
			}
		}
	}
	names := make([]string, 0, len(v.Org.Roles))
	for _, r := range v.Org.Roles {
		if strings.EqualFold(r.Name, ref) {
			return r.HatID, nil
		}
		names = append(names, r.Name)
	}
	if numErr == nil || strings.HasPrefix(ref, "0x") {
		return ref, nil
	}
	reason := "no such role"
	if hint := suggest.Hint(suggest.Closest(ref, names)); hint != "" {
		reason += "; " + hint
	}
	return "", &governance.ValidationError{Field: "role", Reason: reason}
}

var roleClaimCmd = &cobra.Command{
	Use:   "claim <role>",
	Short: "Claim a role you are eligible for",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, v *orgmodel.View) (*governance.Action, error) {
			hat, err := resolveRole(v, args[0])
			if err != nil {
				return nil, err
			}
			return b.ClaimRole(ctx, hat)
		})
	},
}

var roleVouchCmd = &cobra.Command{
	Use:   "vouch <wallet> <role>",
	Short: "Vouch for a wallet to receive a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, v *orgmodel.View) (*governance.Action, error) {
			hat, err := resolveRole(v, args[1])
			if err != nil {
				return nil, err
			}
			return b.Vouch(ctx, args[0], hat)
		})
	},
}

var roleUnvouchCmd = &cobra.Command{
	Use:     "unvouch <wallet> <role>",
	Aliases: []string{"revoke"},
	Short:   "Withdraw your vouch",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, v *orgmodel.View) (*governance.Action, error) {
			hat, err := resolveRole(v, args[1])
			if err != nil {
				return nil, err
			}
			return b.RevokeVouch(ctx, args[0], hat)
		})
	},
}

var joinCmd = &cobra.Command{
	Use:     "join",
	Short:   "Join the organization, registering a username if needed",
	GroupID: "membership",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.QuickJoin(ctx, username)
		})
	},
}

var usernameCmd = &cobra.Command{
	Use:     "username <name>",
	Short:   "Register your account-wide username",
	GroupID: "membership",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, false, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.RegisterUsername(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(roleCmd, joinCmd, usernameCmd)
	roleCmd.AddCommand(roleClaimCmd, roleVouchCmd, roleUnvouchCmd)

	joinCmd.Flags().String("username", "", "username to register while joining (3-32 of A-Z a-z 0-9 _ -)")

	for _, c := range []*cobra.Command{roleClaimCmd, roleVouchCmd, roleUnvouchCmd, joinCmd, usernameCmd} {
		addWriteFlags(c)
	}
}
