package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
)

var capsCmd = &cobra.Command{
	Use:     "caps [wallet]",
	Aliases: []string{"can"},
	Short:   "Show what a wallet (default: yours) can do in the organization",
	GroupID: "membership",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			wallet := ""
			if len(args) == 1 {
				addr, err := encoding.ValidateAddress(args[0])
				if err != nil {
					return err
				}
				wallet = encoding.LowerAddress(addr)
			} else if s.Wallet() == "" {
				return errors.New("no wallet: pass one or configure a signing key")
			}
			caps, err := s.Capabilities(wallet)
			if err != nil {
				return err
			}
			if jsonFlag {
				return output.JSON(caps)
			}
			fmt.Print(output.FormatCapabilities(caps))
			if p := v.VotingPowerOf(caps.Wallet); p.Total > 0 {
				fmt.Printf("Voting power: %.2f (%.1f%% of the organization)\n", p.Total, p.Share*100)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show wallet, endpoints and organization health",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		s, err := openSession(ctx, false)
		if err != nil {
			return fail(err)
		}
		defer s.Close()

		opts := session.OptionsFromConfig()
		status := map[string]interface{}{
			"wallet":       s.Wallet(),
			"rpc_url":      opts.RPCURL,
			"subgraph_url": opts.SubgraphURL,
			"ipfs_api_url": opts.IPFSAPIURL,
		}
		var view *orgmodel.View
		if ref, err := orgRef(); err == nil {
			view, err = s.LoadOrganization(ctx, ref)
			if err != nil {
				status["org_error"] = err.Error()
			}
		}
		if view != nil {
			status["org"] = view.Org.ID
			status["org_name"] = view.Org.Name
			status["members"] = len(view.Members)
			status["indexing"] = len(view.Placeholders)
		}
		status["cache"] = s.CacheStats()
		status["writes"] = s.Metrics()

		if jsonFlag {
			return output.JSON(status)
		}
		wallet := s.Wallet()
		if wallet == "" {
			wallet = "(read-only)"
		}
		fmt.Printf("Wallet:   %s\n", wallet)
		fmt.Printf("RPC:      %s\n", opts.RPCURL)
		fmt.Printf("Subgraph: %s\n", opts.SubgraphURL)
		fmt.Printf("IPFS:     %s\n", opts.IPFSAPIURL)
		switch {
		case view != nil:
			fmt.Printf("Org:      %s (%s), %d members\n", view.Org.Name, output.ShortAddress(view.Org.ID), len(view.Members))
		case status["org_error"] != nil:
			output.Warning("org: %s", status["org_error"])
		default:
			fmt.Println("Org:      none selected")
		}
		st := s.CacheStats()
		fmt.Printf("Cache:    %d hits, %d misses, %d fetches\n", st.Hits, st.Misses, st.Fetches)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(capsCmd, statusCmd)
}
