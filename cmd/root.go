package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/keymenu/keymenu/internal"
	"github.com/keymenu/keymenu/internal/ui"
)

var (
	cfgPath      string
	typePassword bool
	viewEntry    bool
	oneShot      bool
)

var rootCmd = &cobra.Command{
	Use:   "keymenu",
	Short: "Autotype KeePass entries with dmenu or rofi",
	Long: `Keymenu shows your KeePass entries in dmenu/rofi and autotypes the
chosen credentials into the focused window. The first invocation stays
resident and keeps unlocked databases cached for pw_cache_period_min
minutes, so later hotkey presses skip the passphrase prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ~/.config/keymenu/config.ini)")
	rootCmd.Flags().BoolVar(&typePassword, "type-password", false, "type only the password of the chosen entry")
	rootCmd.Flags().BoolVar(&viewEntry, "view-entry", false, "view the chosen entry and type one field")
	rootCmd.Flags().BoolVar(&oneShot, "oneshot", false, "run a single cycle without leaving a daemon behind")
}

func chosenAction() internal.Action {
	switch {
	case typePassword:
		return internal.ActionTypePassword
	case viewEntry:
		return internal.ActionViewEntry
	default:
		return internal.ActionTypeEntry
	}
}

func run() error {
	action := chosenAction()

	// A resident daemon gets the request; this process just triggers
	// it and exits.
	if !oneShot {
		if err := internal.NotifyDaemon(action); err == nil {
			return nil
		}
	}

	path := cfgPath
	if path == "" {
		path = internal.DefaultConfigPath()
		if err := internal.WriteDefault(path); err != nil {
			return err
		}
	}
	cfg, err := internal.Resolve(path)
	if err != nil {
		return err
	}
	typer, err := internal.NewTyper(cfg.Policy.TypeLibrary)
	if err != nil {
		return err
	}

	logger, err := internal.NewDaemonLogger()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	menu := internal.NewExecMenu(cfg)
	var unlocker internal.Unlocker = &internal.KeepassCLI{}
	var fallback internal.PassphrasePrompt
	if term.IsTerminal(int(os.Stdin.Fd())) {
		// Started from a terminal: masked inline prompt and a spinner
		// around the unlock instead of the dmenu passphrase theme.
		fallback = ui.PromptPassphrase
		unlocker = &spinUnlocker{inner: unlocker}
	}

	bridge := &internal.Bridge{
		Config:   cfg,
		Cache:    internal.NewSessionCache(cfg.Policy.CachePeriod, logger),
		Menu:     menu,
		Unlocker: unlocker,
		Typer:    typer,
		Prompt:   internal.NewPassphrasePrompt(cfg.Policy, menu, fallback),
		Log:      logger,
	}

	if oneShot || cfg.Policy.CachePeriod == 0 {
		_, err := bridge.Run(action)
		return err
	}
	return internal.NewDaemon(bridge, logger).Run(action)
}

// spinUnlocker overlays a spinner while the database is decrypted.
type spinUnlocker struct {
	inner internal.Unlocker
}

func (s *spinUnlocker) Unlock(entry internal.DatabaseEntry, passphrase string) (internal.Database, error) {
	res, err := ui.Spin("Unlocking "+entry.Path, func() (any, error) {
		return s.inner.Unlock(entry, passphrase)
	})
	if err != nil {
		return nil, err
	}
	return res.(internal.Database), nil
}
