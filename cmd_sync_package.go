package main

import (
	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/orchestrator"
	"github.com/cart-wheel/cartwheel/pkg/pypi"
	"github.com/cart-wheel/cartwheel/pkg/state"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync-package NAME",
		Short: "Convert every pending wheel of one declared package",
		Args:  cobra.ExactArgs(1),
		RunE: func(flags *cobra.Command, args []string) error {
			store, err := state.NewStore(declarationsDir, stateDir)
			if err != nil {
				return err
			}
			orch := orchestrator.New(store, pypi.NewClient(), outputDir)
			result, err := orch.SyncPackage(flags.Context(), args[0])
			if err != nil {
				return err
			}
			return reportSync(flags, result)
		},
	}
	argparser.AddCommand(cmd)
}
