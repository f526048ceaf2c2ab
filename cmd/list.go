package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keymenu/keymenu/internal"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = internal.DefaultConfigPath()
		}
		cfg, err := internal.Resolve(path)
		if err != nil {
			return err
		}
		if len(cfg.Databases) == 0 {
			fmt.Println("No databases configured.")
			return nil
		}
		for _, d := range cfg.Databases {
			line := fmt.Sprintf("📦 %d: %s", d.Index, d.Path)
			if d.Keyfile != "" {
				line += " (keyfile)"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
