package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/orchestrator"
	"github.com/cart-wheel/cartwheel/pkg/pypi"
	"github.com/cart-wheel/cartwheel/pkg/state"
)

func reportSync(cmd *cobra.Command, result *orchestrator.SyncResult) error {
	for _, c := range result.Converted {
		fmt.Fprintf(cmd.OutOrStdout(), "converted %s/%s\n", c.Package, c.Filename)
	}
	for _, f := range result.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed %s/%s: %v\n", f.Package, f.Filename, f.Err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d wheel(s) failed to convert", len(result.Failed))
	}
	return nil
}

func init() {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync [flags]",
		Short: "Convert every pending wheel across all declared packages",
		Args:  cobra.NoArgs,
		RunE: func(flags *cobra.Command, args []string) error {
			store, err := state.NewStore(declarationsDir, stateDir)
			if err != nil {
				return err
			}
			if dryRun {
				names, err := store.ListPackages()
				if err != nil {
					return err
				}
				for _, name := range names {
					decl, err := store.LoadDeclaration(name)
					if err != nil {
						continue
					}
					pkgState, err := store.LoadState(name)
					if err != nil {
						continue
					}
					for _, filename := range state.GetPendingWheels(decl, pkgState) {
						fmt.Fprintf(flags.OutOrStdout(), "would convert %s/%s\n", name, filename)
					}
				}
				return nil
			}

			orch := orchestrator.New(store, pypi.NewClient(), outputDir)
			result, err := orch.SyncAll(flags.Context())
			if err != nil {
				return err
			}
			return reportSync(flags, result)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be converted without converting")
	argparser.AddCommand(cmd)
}
