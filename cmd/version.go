package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/po/internal/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version and check for updates",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		short, _ := cmd.Flags().GetBool("short")
		if short {
			fmt.Print(versionStr)
			return
		}

		checkUpdates, _ := cmd.Flags().GetBool("check")

		fmt.Printf("po version %s\n", versionStr)

		// Skip check if dev version or --check=false
		if !checkUpdates || version.IsDevelopmentVersion(versionStr) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		result := version.Checker{}.Cached(ctx, versionStr)
		if result.Error != nil {
			// Silently ignore network errors
			return
		}
		if result.HasUpdate {
			fmt.Printf("\nUpdate available: %s → %s\n", versionStr, result.LatestVersion)
			if cmd := version.UpdateCommand(result.LatestVersion); cmd != "" {
				fmt.Printf("Run: %s\n", cmd)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "print only the version")
	versionCmd.Flags().Bool("check", true, "check GitHub for a newer release")
}
