package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

const (
	flagEnvFile = "env-file"
	flagMode    = "mode"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "keeper",
		Short: "Keep an epoch resolution program moving",
		Long: "keeper polls the program's current epoch, requests resolution once the epoch has ended " +
			"on the ledger and opens the next epoch once the outcome is in. Without a subcommand it runs " +
			"the keeper.",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runE,
	}
	root.PersistentFlags().String(flagEnvFile, ".env", "env file to read before the environment (skipped if missing)")
	root.Flags().String(flagMode, "", "task mode: shared or fetch (overrides KEEPER_MODE)")

	root.AddCommand(
		newRunCmd(),
		newInspectCmd(),
		newAddressesCmd(),
	)
	return root
}
