// Command cartwheel converts Python wheels into conda packages and
// maintains a channel of them mirrored from PyPI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cart-wheel/cartwheel/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "cartwheel {[flags]|SUBCOMMAND...}",
	Short: "Convert Python wheels to conda packages and sync a channel",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

var (
	declarationsDir string
	stateDir        string
	outputDir       string
)

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)

	argparser.PersistentFlags().StringVar(&declarationsDir, "declarations-dir", "declarations",
		"Directory holding per-package declaration files")
	argparser.PersistentFlags().StringVar(&stateDir, "state-dir", "state",
		"Directory holding per-package wheel state files")
	argparser.PersistentFlags().StringVar(&outputDir, "channel-dir", "channel",
		"Root of the produced conda channel tree")
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
