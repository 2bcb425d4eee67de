package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/convert"
)

func init() {
	var outDir string
	cmd := &cobra.Command{
		Use:   "convert WHEEL [flags]",
		Short: "Convert one wheel file into a .conda package",
		Args:  cobra.ExactArgs(1),
		RunE: func(flags *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = outputDir
			}
			result, err := convert.File(flags.Context(), args[0], outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(flags.OutOrStdout(), "%s\n", result.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Directory to write the .conda file into")
	argparser.AddCommand(cmd)
}
