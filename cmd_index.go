package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/channel"
)

func init() {
	var indexerCmd string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Invoke the external channel indexer over the channel directory",
		Args:  cobra.NoArgs,
		RunE: func(flags *cobra.Command, args []string) error {
			if _, err := os.Stat(outputDir); err != nil {
				return fmt.Errorf("channel directory %q is missing: %w", outputDir, err)
			}
			idx := channel.NewIndexer(indexerCmd)
			return idx.Index(flags.Context(), outputDir)
		},
	}
	cmd.Flags().StringVar(&indexerCmd, "indexer", "rattler-index", "External indexer executable to invoke")
	argparser.AddCommand(cmd)
}
