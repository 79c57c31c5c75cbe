package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/foreseon/IntelXScan/internal/core"
	"github.com/foreseon/IntelXScan/internal/logging"
	"github.com/foreseon/IntelXScan/internal/secrets"
)

func newRootCmd(logger *logging.Logger) *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "intelxscan",
		Short:         "Watch IntelX for new leaks of monitored emails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file path")

	manager := func() *core.Manager { return core.NewManager(cfgPath, logger) }

	root.AddCommand(
		newRunCmd(manager),
		newWatchCmd(manager),
		newCheckCmd(manager),
		newSecretCmd(),
	)
	return root
}

func newRunCmd(manager func() *core.Manager) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every monitored email once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum, err := manager().RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd, sum)
			if strict && sum.Failed() > 0 {
				return fmt.Errorf("%d of %d emails failed", sum.Failed(), len(sum.Outcomes))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any email fails")
	return cmd
}

func newWatchCmd(manager func() *core.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run periodically until interrupted",
		Long: `Runs a pass immediately and then every runtime.watch_interval_seconds.
SIGHUP re-reads the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return manager().Watch(cmd.Context())
		},
	}
}

func newCheckCmd(manager func() *core.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "check <email>...",
		Short: "Check the given emails now, ignoring the email source",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := manager().Check(cmd.Context(), args...)
			if err != nil {
				return err
			}
			printSummary(cmd, sum)
			for _, o := range sum.Outcomes {
				if o.Err != nil {
					return o.Err
				}
			}
			return nil
		},
	}
}

func newSecretCmd() *cobra.Command {
	secret := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials in the OS keychain",
	}
	secret.AddCommand(&cobra.Command{
		Use:   "set <account>",
		Short: "Store a secret read from stdin",
		Long: `Reads the secret from stdin and stores it in the OS keychain under the
given account. Reference it from config with intelx.keyring_account or
slack.keyring_account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			value := strings.TrimRight(string(raw), "\r\n")
			if value == "" {
				return errors.New("no secret on stdin")
			}
			if err := secrets.Set(args[0], value); err != nil {
				return err
			}
			cmd.Printf("Stored secret for %s.\n", args[0])
			return nil
		},
	})
	return secret
}

func printSummary(cmd *cobra.Command, sum core.Summary) {
	cmd.Printf("run %s: %d emails, %d new leaks, %d failed (%s)\n",
		sum.RunID, len(sum.Outcomes), sum.NewRecords(), sum.Failed(), sum.Elapsed.Round(time.Millisecond))
	for _, o := range sum.Outcomes {
		if o.Err != nil {
			cmd.Printf("  %s: %s: %v\n", o.Email, o.Stage, o.Err)
		}
	}
}
