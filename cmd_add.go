package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/cartwheelerr"
	"github.com/cart-wheel/cartwheel/pkg/closure"
	"github.com/cart-wheel/cartwheel/pkg/pypi"
	"github.com/cart-wheel/cartwheel/pkg/state"
	"github.com/cart-wheel/cartwheel/pkg/wheel"
)

func init() {
	var (
		constraint     string
		maxVersions    int
		dryRun         bool
		force          bool
		nonInteractive bool
	)
	cmd := &cobra.Command{
		Use:   "add PACKAGE [flags]",
		Short: "Resolve a package's dependency closure and write declarations + state",
		Args:  cobra.ExactArgs(1),
		RunE: func(flags *cobra.Command, args []string) error {
			root := args[0]

			store, err := state.NewStore(declarationsDir, stateDir)
			if err != nil {
				return err
			}

			fetcher := closure.NewFetcher(pypi.NewClient(), maxVersions)
			result, err := fetcher.Crawl(flags.Context(), root, constraint)
			if err != nil {
				return err
			}

			resolved, err := resolveUnresolved(flags, result, nonInteractive)
			if err != nil {
				return err
			}

			if dryRun {
				for _, info := range result.Resolved {
					fmt.Fprintf(flags.OutOrStdout(), "would declare %s (required-by=%s)\n", info.Name, info.RequiredBy)
				}
				for _, fb := range result.Fallbacks {
					fmt.Fprintf(flags.OutOrStdout(), "would map %s -> conda-forge/%s\n", fb.Name, fb.CondaForge)
				}
				return nil
			}

			for _, info := range result.Resolved {
				name := wheel.Canonicalize(info.Name)
				if !force {
					if _, err := store.LoadDeclaration(name); err == nil {
						continue // already declared; --force overwrites
					}
				}
				var filenames []string
				var wheels []state.WheelRef
				for _, r := range info.Releases {
					for _, w := range r.Wheels {
						filenames = append(filenames, w.Filename)
						wheels = append(wheels, state.WheelRef{Filename: w.Filename})
					}
				}
				decl := state.Declaration{Name: name, VersionConstraint: info.Constraint, Wheels: wheels}
				if err := store.SaveDeclaration(decl); err != nil {
					return err
				}
				pkgState, err := store.LoadState(name)
				if err != nil {
					return err
				}
				for _, filename := range filenames {
					if _, ok := pkgState[filename]; !ok {
						pkgState[filename] = &state.WheelState{Status: state.StatusPending}
					}
				}
				if err := store.SaveState(name, pkgState); err != nil {
					return err
				}
			}

			for _, fb := range result.Fallbacks {
				name := wheel.Canonicalize(fb.Name)
				if err := store.SaveDeclaration(state.Declaration{Name: name, CondaForge: fb.CondaForge}); err != nil {
					return err
				}
			}

			for _, fb := range resolved {
				name := wheel.Canonicalize(fb.Name)
				if err := store.SaveDeclaration(state.Declaration{Name: name, CondaForge: fb.CondaForge}); err != nil {
					return err
				}
			}

			return nil
		},
	}
	cmd.Flags().StringVarP(&constraint, "constraint", "c", "", "Version constraint for the root package")
	cmd.Flags().IntVarP(&maxVersions, "max-versions", "n", 0, "Cap the number of versions considered per package (0: unlimited)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be declared without writing anything")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing declarations")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting for unresolved nodes")
	argparser.AddCommand(cmd)
}

// resolveUnresolved prompts the operator for each unresolved node's
// cross-ecosystem mapping name, or fails immediately in non-interactive
// mode, per spec's `add` exit condition.
func resolveUnresolved(flags *cobra.Command, result *closure.Result, nonInteractive bool) ([]closure.MappingFallback, error) {
	if len(result.Unresolved) == 0 {
		return nil, nil
	}
	if nonInteractive {
		return nil, fmt.Errorf("%d unresolved dependency node(s) require operator input", len(result.Unresolved))
	}

	scanner := bufio.NewScanner(flags.InOrStdin())
	var resolved []closure.MappingFallback
	for _, node := range result.Unresolved {
		fmt.Fprintf(flags.OutOrStdout(), "%s (required by %s): %v\nconda-forge mapping name (blank to abort): ",
			node.Name, node.RequiredBy, node.Err)
		if !scanner.Scan() {
			return nil, &cartwheelerr.OperatorAbort{Package: node.Name}
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			return nil, &cartwheelerr.OperatorAbort{Package: node.Name}
		}
		resolved = append(resolved, closure.MappingFallback{Name: node.Name, CondaForge: answer})
	}
	return resolved, nil
}
