package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/orchestrator"
	"github.com/cart-wheel/cartwheel/pkg/pypi"
	"github.com/cart-wheel/cartwheel/pkg/state"
)

func init() {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report new upstream versions not yet listed in any declaration",
		Args:  cobra.NoArgs,
		RunE: func(flags *cobra.Command, args []string) error {
			store, err := state.NewStore(declarationsDir, stateDir)
			if err != nil {
				return err
			}
			orch := orchestrator.New(store, pypi.NewClient(), outputDir)
			updates, err := orch.CheckForUpdates(flags.Context())
			if err != nil {
				return err
			}
			for _, u := range updates {
				fmt.Fprintf(flags.OutOrStdout(), "%s %s (%s)\n", u.Package, u.Version, u.Filename)
			}
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
