package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"mintgate/internal/allowlist"
)

func newAllowlistCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Inspect the early-phase allowlist",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "root",
			Short: "Print the allowlist root to configure the sale with",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				tree, err := a.loadTree()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tree.Root().Hex())
				return nil
			},
		},
		&cobra.Command{
			Use:   "proof <address>",
			Short: "Print the inclusion proof for an address, one hash per line",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !common.IsHexAddress(args[0]) {
					return fmt.Errorf("invalid address %q", args[0])
				}
				tree, err := a.loadTree()
				if err != nil {
					return err
				}
				proof, err := tree.Proof(common.HexToAddress(args[0]))
				if err != nil {
					return err
				}
				for _, h := range proof.Hex() {
					fmt.Fprintln(cmd.OutOrStdout(), h)
				}
				return nil
			},
		},
	)
	return cmd
}

// loadTree builds the tree from sale.allowlist_file.
func (a *app) loadTree() (*allowlist.Tree, error) {
	path := a.cfg.Sale.AllowlistFile
	if path == "" {
		return nil, errors.New("no allowlist file configured (use --allowlist or sale.allowlist_file)")
	}
	addrs, err := allowlist.LoadFile(path)
	if err != nil {
		return nil, err
	}
	tree, err := allowlist.NewTree(addrs)
	if err != nil {
		return nil, fmt.Errorf("build allowlist from %s: %w", path, err)
	}
	return tree, nil
}
