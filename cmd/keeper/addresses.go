package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/argus-labs/epoch-keeper/internal/protocol"
)

const (
	flagProgram = "program"
	flagEpoch   = "epoch"
	flagPools   = "pools"
)

type addressesOutput struct {
	Program     solana.PublicKey   `json:"program"`
	Config      solana.PublicKey   `json:"config"`
	Identity    solana.PublicKey   `json:"identity"`
	Epoch       uint64             `json:"epoch"`
	EpochResult solana.PublicKey   `json:"epochResult"`
	Pools       []solana.PublicKey `json:"pools"`
}

func newAddressesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Derive the program accounts of an epoch without touching the network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			programFlag, _ := cmd.Flags().GetString(flagProgram)
			epoch, _ := cmd.Flags().GetUint64(flagEpoch)
			pools, _ := cmd.Flags().GetUint8(flagPools)

			program, err := solana.PublicKeyFromBase58(programFlag)
			if err != nil {
				return eris.Wrapf(err, "%q is not a valid program id", programFlag)
			}
			out, err := deriveAddresses(program, epoch, pools)
			if err != nil {
				return err
			}
			bz, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return eris.Wrap(err, "failed to encode output")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
	cmd.Flags().String(flagProgram, "", "program id")
	cmd.Flags().Uint64(flagEpoch, 1, "epoch to derive accounts for")
	cmd.Flags().Uint8(flagPools, 0, "number of pools in the epoch")
	_ = cmd.MarkFlagRequired(flagProgram)
	return cmd
}

func deriveAddresses(program solana.PublicKey, epoch uint64, poolCount uint8) (addressesOutput, error) {
	configAddress, err := protocol.ConfigAddress(program)
	if err != nil {
		return addressesOutput{}, err
	}
	identity, err := protocol.IdentityAddress(program)
	if err != nil {
		return addressesOutput{}, err
	}
	result, err := protocol.EpochResultAddress(program, epoch)
	if err != nil {
		return addressesOutput{}, err
	}
	pools, err := protocol.PoolAddresses(program, poolCount, epoch)
	if err != nil {
		return addressesOutput{}, err
	}
	return addressesOutput{
		Program:     program,
		Config:      configAddress,
		Identity:    identity,
		Epoch:       epoch,
		EpochResult: result,
		Pools:       pools,
	}, nil
}
