package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/governance"
	"github.com/marcus/po/internal/input"
	"github.com/marcus/po/internal/models"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks", "t"},
	Short:   "Create, claim, submit and review tasks",
	GroupID: "work",
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks (unfinished ones unless --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		status, _ := cmd.Flags().GetString("status")
		mine, _ := cmd.Flags().GetBool("mine")
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			wallet := ""
			if mine {
				wallet = s.Wallet()
			}
			list := filterTasks(v.Tasks, all, models.TaskStatus(status), wallet)
			if jsonFlag {
				return output.JSON(list)
			}
			if len(list) == 0 {
				fmt.Println("No tasks")
				return nil
			}
			for i := range list {
				fmt.Println(output.FormatTaskShort(&list[i], v.Org.TokenDecimals, v.Org.TokenSymbol))
			}
			return nil
		})
	},
}

// filterTasks drops finished tasks unless all is set. wallet, when given,
// keeps tasks the wallet created, claimed or applied for.
func filterTasks(in []models.Task, all bool, status models.TaskStatus, wallet string) []models.Task {
	out := []models.Task{}
	for _, t := range in {
		if status != "" && t.Status != status {
			continue
		}
		if !all && status == "" && t.Status == models.TaskApproved && !t.IsIndexing {
			continue
		}
		if wallet != "" && !involves(t, wallet) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func involves(t models.Task, wallet string) bool {
	if strings.EqualFold(t.Creator, wallet) || strings.EqualFold(t.Claimer, wallet) {
		return true
	}
	for _, a := range t.Applicants {
		if strings.EqualFold(a, wallet) {
			return true
		}
	}
	return false
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task with its description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		return withOrg(cmd, func(ctx context.Context, s *session.Session, v *orgmodel.View) error {
			t, ok := v.Task(args[0])
			if !ok {
				return fmt.Errorf("task %s: %w", args[0], governance.ErrNotFound)
			}
			desc, _ := s.Describe(ctx, t.DescriptionCID)
			if jsonFlag {
				return output.JSON(map[string]interface{}{
					"task":        t,
					"description": desc,
				})
			}
			rendered := ""
			if desc != "" {
				rendered = output.RenderDescription(desc, plain)
			}
			fmt.Print(output.FormatTaskLong(t, rendered, v.Org.TokenDecimals, v.Org.TokenSymbol))
			return nil
		})
	},
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task paid in participation tokens",
	Example: `  po task create --title "Write onboarding guide" --payout 25 --project docs
  po task create --title "Audit" --payout 100 --requires-application --difficulty hard --hours 12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		payout, _ := cmd.Flags().GetString("payout")
		project, _ := cmd.Flags().GetString("project")
		apply, _ := cmd.Flags().GetBool("requires-application")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		hours, _ := cmd.Flags().GetFloat64("hours")
		desc, err := textFlag(cmd, input.New(), "description")
		if err != nil {
			return fail(err)
		}
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.CreateTask(ctx, governance.TaskIntent{
				Title:               title,
				Description:         desc,
				Payout:              payout,
				Project:             project,
				RequiresApplication: apply,
				Difficulty:          difficulty,
				EstimatedHours:      hours,
			})
		})
	},
}

var taskApplyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Apply for a task that takes applications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		note := reviewReason(cmd)
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.ApplyTask(ctx, args[0], note)
		})
	},
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <id>",
	Short: "Claim an open task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.ClaimTask(ctx, args[0])
		})
	},
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit <id>",
	Short: "Submit claimed work for review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		submission, err := textFlag(cmd, input.New(), "submission")
		if err != nil {
			return fail(err)
		}
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.SubmitTask(ctx, args[0], submission)
		})
	},
}

var taskApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve submitted work and pay the claimer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.ApproveTask(ctx, args[0])
		})
	},
}

var taskRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Send submitted work back to its claimer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := reviewReason(cmd)
		return runWrite(cmd, true, func(ctx context.Context, b *governance.Builder, _ *orgmodel.View) (*governance.Action, error) {
			return b.RejectTask(ctx, args[0], reason)
		})
	},
}

// reviewReason returns --reason, falling back to --message then --comment.
func reviewReason(cmd *cobra.Command) string {
	for _, name := range []string{"reason", "message", "comment"} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			return v
		}
	}
	return ""
}

func addReasonFlags(cmd *cobra.Command, usage string) {
	cmd.Flags().StringP("reason", "r", "", usage)
	cmd.Flags().StringP("message", "m", "", "alias for --reason")
	cmd.Flags().String("comment", "", "alias for --reason")
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskCreateCmd, taskApplyCmd,
		taskClaimCmd, taskSubmitCmd, taskApproveCmd, taskRejectCmd)

	taskListCmd.Flags().Bool("all", false, "include approved tasks")
	taskListCmd.Flags().String("status", "", "only this status (open, applied, claimed, submitted, approved)")
	taskListCmd.Flags().Bool("mine", false, "only tasks you created, claimed or applied for")

	taskShowCmd.Flags().Bool("plain", false, "print the description without markdown rendering")

	f := taskCreateCmd.Flags()
	f.String("title", "", "task title")
	f.String("description", "", `markdown description ("-" for stdin, "@file")`)
	f.String("description-file", "", "read the description from a file")
	f.String("payout", "", "payout in participation tokens, e.g. 12.5")
	f.String("project", "", "project name or 0x id")
	f.Bool("requires-application", false, "claimers must apply first")
	f.String("difficulty", "", "easy, medium, hard or a custom label")
	f.Float64("hours", 0, "estimated hours")
	_ = taskCreateCmd.MarkFlagRequired("title")
	_ = taskCreateCmd.MarkFlagRequired("payout")

	addReasonFlags(taskApplyCmd, "application note")
	addReasonFlags(taskRejectCmd, "why the work is sent back")

	taskSubmitCmd.Flags().String("submission", "", "what was done, with links")
	taskSubmitCmd.Flags().String("submission-file", "", "read the submission from a file")

	for _, c := range []*cobra.Command{taskCreateCmd, taskApplyCmd, taskClaimCmd, taskSubmitCmd, taskApproveCmd, taskRejectCmd} {
		addWriteFlags(c)
	}
}
