package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/state"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate that every converted wheel's dependencies are declared",
		Args:  cobra.NoArgs,
		RunE: func(flags *cobra.Command, args []string) error {
			store, err := state.NewStore(declarationsDir, stateDir)
			if err != nil {
				return err
			}
			byPackage, err := state.ValidateAllDependencies(store)
			if err != nil {
				return err
			}
			if len(byPackage) == 0 {
				return nil
			}
			packages := make([]string, 0, len(byPackage))
			for pkg := range byPackage {
				packages = append(packages, pkg)
			}
			sort.Strings(packages)
			for _, pkg := range packages {
				for _, missing := range byPackage[pkg] {
					fmt.Fprintf(flags.OutOrStdout(), "%s: missing declaration for dependency %s\n", pkg, missing.Dependency)
				}
			}
			return fmt.Errorf("missing dependency declarations in %d package(s)", len(byPackage))
		},
	}
	argparser.AddCommand(cmd)
}
