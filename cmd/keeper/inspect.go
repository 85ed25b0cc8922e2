package main

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/argus-labs/epoch-keeper/internal/config"
	"github.com/argus-labs/epoch-keeper/internal/keeper"
	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
)

type inspectOutput struct {
	Config protocol.Config `json:"config"`
	Task   protocol.Task   `json:"task"`
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the program's config and the current epoch as the keeper sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, err := cmd.Flags().GetString(flagEnvFile)
			if err != nil {
				return eris.Wrap(err, "failed to read env-file flag")
			}
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			opts, err := cfg.Options()
			if err != nil {
				return eris.Wrap(err, "invalid config")
			}

			client, err := ledger.NewRPCClient(opts.RPCURL)
			if err != nil {
				return eris.Wrap(err, "failed to create ledger client")
			}
			return inspect(cmd, client, opts)
		},
	}
}

func inspect(cmd *cobra.Command, reader ledger.Reader, opts config.Options) error {
	fetcher, err := keeper.NewFetcher(reader, opts.Program, opts.OracleQueue)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	programConfig, err := fetcher.Config(ctx)
	if err != nil {
		return err
	}
	task, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(inspectOutput{Config: programConfig, Task: task}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to encode output")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
