package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/state"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print per-package status tallies",
		Args:  cobra.NoArgs,
		RunE: func(flags *cobra.Command, args []string) error {
			store, err := state.NewStore(declarationsDir, stateDir)
			if err != nil {
				return err
			}
			names, err := store.ListPackages()
			if err != nil {
				return err
			}
			sort.Strings(names)
			for _, name := range names {
				pkgState, err := store.LoadState(name)
				if err != nil {
					fmt.Fprintf(flags.ErrOrStderr(), "%s: %v\n", name, err)
					continue
				}
				tally := map[state.Status]int{}
				bySubdir := map[string]int{}
				for _, ws := range pkgState {
					tally[ws.Status]++
					if ws.Status == state.StatusConverted {
						bySubdir[ws.Subdir]++
					}
				}
				fmt.Fprintf(flags.OutOrStdout(), "%s: pending=%d converted=%d failed=%d skipped=%d\n",
					name, tally[state.StatusPending], tally[state.StatusConverted], tally[state.StatusFailed], tally[state.StatusSkipped])
				subdirs := make([]string, 0, len(bySubdir))
				for subdir := range bySubdir {
					subdirs = append(subdirs, subdir)
				}
				sort.Strings(subdirs)
				for _, subdir := range subdirs {
					fmt.Fprintf(flags.OutOrStdout(), "  %s: %d\n", subdir, bySubdir[subdir])
				}
			}
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
