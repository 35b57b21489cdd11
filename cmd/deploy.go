package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/config"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
)

var deployCmd = &cobra.Command{
	Use:     "deploy",
	Short:   "Deploy a new organization from a YAML definition",
	GroupID: "org",
	Example: `  po deploy -f acme.yaml --dry-run
  po deploy -f acme.yaml --set-default`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		setDefault, _ := cmd.Flags().GetBool("set-default")

		cfg, err := governance.LoadDeployConfig(path)
		if err != nil {
			return fail(err)
		}
		if dryRun {
			return fail(previewDeployment(cfg))
		}

		if err := runWrite(cmd, false, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.Deploy(ctx, cfg)
		}); err != nil {
			return err
		}
		if setDefault {
			if err := config.Set("default_org", cfg.Name); err != nil {
				return fail(err)
			}
			if !jsonFlag {
				output.Success("default_org set to %s", cfg.Name)
			}
		}
		return nil
	},
}

// previewDeployment validates cfg and prints what would be deployed.
func previewDeployment(cfg *governance.DeployConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	params, err := cfg.Params(cfg.MetadataCID, common.Address{})
	if err != nil {
		return err
	}
	if jsonFlag {
		return output.JSON(map[string]interface{}{
			"org_id": encoding.OrgIDHex(cfg.Name),
			"params": params,
		})
	}
	fmt.Printf("Organization: %s\n", params.OrgName)
	fmt.Printf("Id:           %s\n", encoding.OrgIDHex(cfg.Name))
	fmt.Printf("Quorum:       dd %d%%, hybrid %d%%\n", params.DdQuorumPct, params.HybridQuorumPct)
	fmt.Printf("Roles:        %d\n", len(params.Roles))
	for i, r := range cfg.Roles {
		fmt.Printf("  %d. %s\n", i, r.Name)
	}
	fmt.Printf("Voting classes: %d\n", len(params.HybridClasses))
	output.Success("configuration is valid (nothing sent)")
	return nil
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringP("file", "f", "", "organization definition (YAML)")
	deployCmd.Flags().Bool("dry-run", false, "validate and print the deployment without sending it")
	deployCmd.Flags().Bool("set-default", false, "make the new organization the default")
	_ = deployCmd.MarkFlagRequired("file")
	addWriteFlags(deployCmd)
}
