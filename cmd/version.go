package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/keymenu/keymenu/internal"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("keymenu version %s\n", internal.CurrentVersion)

		latest, url, err := internal.FetchLatestVersion()
		if err != nil {
			fmt.Printf("Unable to check for updates: %v\n", err)
			return
		}

		if internal.IsNewer(latest, internal.CurrentVersion) {
			color.Yellow("\n💡 Update available: %s → %s", internal.CurrentVersion, latest)
			fmt.Printf("   Download: %s\n", url)
		} else {
			color.Green("✅ You're running the latest version")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
