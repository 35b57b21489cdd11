package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marcus/po/internal/durationparse"
	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/input"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
)

var proposalCmd = &cobra.Command{
	Use:     "proposal",
	Aliases: []string{"proposals", "p"},
	Short:   "List, create, vote on and finalize proposals",
	GroupID: "governance",
}

var proposalListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List proposals (open ones unless --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		status, _ := cmd.Flags().GetString("status")
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			list := filterProposals(v.Proposals, all, models.ProposalStatus(status))
			if jsonFlag {
				return output.JSON(list)
			}
			if len(list) == 0 {
				fmt.Println("No proposals")
				return nil
			}
			now := time.Now()
			for i := range list {
				fmt.Println(output.FormatProposalShort(&list[i], now))
			}
			return nil
		})
	},
}

// filterProposals keeps proposals still needing attention, or all of them.
// A status narrows either set.
func filterProposals(in []models.Proposal, all bool, status models.ProposalStatus) []models.Proposal {
	out := []models.Proposal{}
	for _, p := range in {
		if status != "" && p.Status != status {
			continue
		}
		if !all && status == "" && p.Status != models.ProposalOpen && p.Status != models.ProposalAwaitingAnnouncement && !p.IsIndexing {
			continue
		}
		out = append(out, p)
	}
	return out
}

var proposalShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a proposal with its options, tallies and description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			p, ok := v.Proposal(args[0])
			if !ok {
				return fmt.Errorf("proposal %s: %w", args[0], governance.ErrNotFound)
			}
			options := s.OptionNames(ctx, p.DescriptionCID)
			if jsonFlag {
				return output.JSON(map[string]interface{}{
					"proposal": p,
					"options":  options,
				})
			}
			fmt.Print(output.FormatProposalLong(p, options, time.Now()))
			if s.Wallet() != "" {
				if caps, err := s.Capabilities(""); err == nil {
					power := caps.VotingPower(p)
					fmt.Printf("Your voting power: %.2f (%.1f%%)\n", power.Total, power.Share*100)
				}
			}
			if desc, err := s.Describe(ctx, p.DescriptionCID); err == nil && desc != "" {
				fmt.Print(output.SectionHeader("Description"))
				fmt.Println(output.RenderDescription(desc, plain))
			}
			return nil
		})
	},
}

var proposalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a proposal on the direct-democracy or hybrid contract",
	Example: `  po proposal create --title "Adopt the handbook" --duration 3d --option Yes --option No
  po proposal create --hybrid --title "Pay the auditors" --duration friday \
      --transfer-to 0xabc... --transfer-amount 1.5
  po proposal create --title "Upgrade" --duration 1w --option Ship --option Wait --batches batches.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		intent, err := proposalIntent(cmd)
		if err != nil {
			return fail(err)
		}
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.CreateProposal(ctx, *intent)
		})
	},
}

// proposalIntent reads the create flags.
func proposalIntent(cmd *cobra.Command) (*governance.ProposalIntent, error) {
	title, _ := cmd.Flags().GetString("title")
	hybrid, _ := cmd.Flags().GetBool("hybrid")
	duration, _ := cmd.Flags().GetString("duration")
	rawOptions, _ := cmd.Flags().GetStringArray("option")
	restrict, _ := cmd.Flags().GetStringArray("restrict")

	in := input.New()
	desc, err := textFlag(cmd, in, "description")
	if err != nil {
		return nil, err
	}
	options, err := in.Lines(rawOptions)
	if err != nil {
		return nil, &governance.ValidationError{Field: "option", Reason: err.Error()}
	}
	minutes, err := durationparse.ParseMinutes(duration)
	if err != nil {
		return nil, &governance.ValidationError{Field: "duration", Reason: err.Error()}
	}

	intent := &governance.ProposalIntent{
		Hybrid:           hybrid,
		Title:            title,
		Description:      desc,
		Minutes:          minutes,
		Options:          options,
		RestrictedHatIDs: restrict,
	}

	if to, _ := cmd.Flags().GetString("transfer-to"); to != "" {
		amount, _ := cmd.Flags().GetString("transfer-amount")
		intent.Transfer = &governance.Transfer{Recipient: to, Amount: amount}
	}
	if path, _ := cmd.Flags().GetString("batches"); path != "" {
		batches, err := loadBatches(path)
		if err != nil {
			return nil, err
		}
		intent.Batches = batches
	}
	return intent, nil
}

// loadBatches reads one execution batch per option from a YAML file:
//
//   - - target: 0x...
//       value: "0.5"
//       data: 0x
//   - []
func loadBatches(path string) ([][]governance.CallSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var batches [][]governance.CallSpec
	if err := yaml.Unmarshal(data, &batches); err != nil {
		return nil, &governance.ValidationError{Field: "batches", Reason: err.Error()}
	}
	return batches, nil
}

// textFlag reads --name, or the file named by --name-file. Either form
// accepts "-" for stdin and "@path".
func textFlag(cmd *cobra.Command, in *input.Reader, name string) (string, error) {
	text, _ := cmd.Flags().GetString(name)
	if path, _ := cmd.Flags().GetString(name + "-file"); path != "" {
		text = "@" + path
		if path == "-" {
			text = path
		}
	}
	return in.Text(text)
}

var proposalVoteCmd = &cobra.Command{
	Use:   "vote <id> [option]",
	Short: "Vote for one option, or split weights across several",
	Example: `  po proposal vote 0xdd...-3 1
  po proposal vote 0xhv...-7 --options 0,2 --weights 70,30`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ballot, err := ballotFrom(cmd, args)
		if err != nil {
			return fail(err)
		}
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.Vote(ctx, ballot)
		})
	},
}

// ballotFrom reads a single positional choice or --options/--weights.
func ballotFrom(cmd *cobra.Command, args []string) (governance.Ballot, error) {
	ballot := governance.Ballot{ProposalID: args[0]}
	options, _ := cmd.Flags().GetIntSlice("options")
	weights, _ := cmd.Flags().GetIntSlice("weights")
	if len(args) == 2 {
		if len(options) > 0 {
			return ballot, &governance.ValidationError{Field: "options", Reason: "give a positional option or --options, not both"}
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			return ballot, &governance.ValidationError{Field: "option", Reason: fmt.Sprintf("%q is not an option index", args[1])}
		}
		options = []int{i}
	}
	if len(options) == 0 {
		return ballot, &governance.ValidationError{Field: "option", Reason: "choose at least one option"}
	}
	ballot.Options = options
	ballot.Weights = weights
	return ballot, nil
}

var proposalFinalizeCmd = &cobra.Command{
	Use:     "finalize <id>",
	Aliases: []string{"announce"},
	Short:   "Announce the winner of an ended proposal",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.Finalize(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(proposalCmd)
	proposalCmd.AddCommand(proposalListCmd, proposalShowCmd, proposalCreateCmd, proposalVoteCmd, proposalFinalizeCmd)

	proposalListCmd.Flags().Bool("all", false, "include finalized proposals")
	proposalListCmd.Flags().String("status", "", "only this status (open, awaiting_announcement, finalized, finalized_no_quorum)")

	proposalShowCmd.Flags().Bool("plain", false, "print the description without markdown rendering")

	f := proposalCreateCmd.Flags()
	f.String("title", "", "proposal title")
	f.String("description", "", `markdown description ("-" for stdin, "@file")`)
	f.String("description-file", "", "read the description from a file")
	f.String("duration", "", `voting period: "90m", "3d", "1w", "friday", "next-week" or a date`)
	f.StringArray("option", nil, `option name (repeatable, at least two; "@file" reads one per line)`)
	f.Bool("hybrid", false, "use the hybrid voting contract")
	f.StringArray("restrict", nil, "restrict voting to a role hat id (repeatable)")
	f.String("transfer-to", "", "transfer-funds shortcut: recipient")
	f.String("transfer-amount", "", "transfer-funds shortcut: amount in ether")
	f.String("batches", "", "YAML file with one execution batch per option")
	_ = proposalCreateCmd.MarkFlagRequired("title")
	_ = proposalCreateCmd.MarkFlagRequired("duration")
	addWriteFlags(proposalCreateCmd)

	proposalVoteCmd.Flags().IntSlice("options", nil, "option indices for a split vote")
	proposalVoteCmd.Flags().IntSlice("weights", nil, "weights for --options, summing to 100")
	addWriteFlags(proposalVoteCmd)

	addWriteFlags(proposalFinalizeCmd)
}
