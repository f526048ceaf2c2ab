package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/keymenu/keymenu/internal"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Inspect the resident keymenu daemon",
	Long: `The daemon is started implicitly by the first keymenu invocation and
holds unlocked databases until the cache period runs out. These
subcommands inspect and stop it.`,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		pid, err := internal.DaemonPID()
		if err != nil {
			fmt.Println("⚪ Daemon is NOT running.")
			return
		}
		color.Green("🟢 Daemon is running (PID: %d)", pid)
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon and drop cached sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.StopDaemon(); err != nil {
			fmt.Println("⚪ Daemon is NOT running.")
			return nil
		}
		color.Green("✅ Daemon stopped.")
		return nil
	},
}

var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := internal.LogPath()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Println("No logs found.")
			return nil
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonLogsCmd)

	rootCmd.AddCommand(daemonCmd)
}
