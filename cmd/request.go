package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
)

var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"requests", "r"},
	Short:   "Request participation tokens and review requests",
	GroupID: "work",
}

var requestListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List token requests (pending ones unless --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			list := []models.TokenRequest{}
			for _, r := range v.Requests {
				if all || r.Status == models.RequestPending || r.IsIndexing {
					list = append(list, r)
				}
			}
			if jsonFlag {
				return output.JSON(list)
			}
			if len(list) == 0 {
				fmt.Println("No token requests")
				return nil
			}
			for i := range list {
				fmt.Println(output.FormatRequestShort(&list[i], v.Org.TokenDecimals, v.Org.TokenSymbol))
			}
			return nil
		})
	},
}

var requestCreateCmd = &cobra.Command{
	Use:     "create <amount>",
	Short:   "Request participation tokens",
	Example: `  po request create 40 --reason "Ran the March workshop"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := reviewReason(cmd)
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.RequestTokens(ctx, args[0], reason)
		})
	},
}

var requestApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve someone else's token request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.ApproveRequest(ctx, args[0])
		})
	},
}

var requestCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel your pending token request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.CancelRequest(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestListCmd, requestCreateCmd, requestApproveCmd, requestCancelCmd)

	requestListCmd.Flags().Bool("all", false, "include approved and cancelled requests")
	addReasonFlags(requestCreateCmd, "what the tokens are for")

	for _, c := range []*cobra.Command{requestCreateCmd, requestApproveCmd, requestCancelCmd} {
		addWriteFlags(c)
	}
}
