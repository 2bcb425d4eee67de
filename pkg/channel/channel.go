// Package channel invokes an external channel indexer over the produced
// conda packages. Repodata emission itself is out of scope for this system;
// this package only shells out to whatever indexer binary is configured, the
// same boundary cart_wheel's channel.py draws around rattler's index_fs.
package channel

import (
	"context"
	"fmt"
	"os/exec"
)

// Indexer invokes an external repodata-generation tool against a channel
// directory tree.
type Indexer struct {
	// Command is the indexer executable, e.g. "rattler-index".
	Command string
}

// NewIndexer builds an Indexer that shells out to the given command.
func NewIndexer(command string) *Indexer {
	return &Indexer{Command: command}
}

// Index runs the configured indexer against channelRoot, regenerating its
// repodata.json files.
func (idx *Indexer) Index(ctx context.Context, channelRoot string) error {
	cmd := exec.CommandContext(ctx, idx.Command, "fs", channelRoot)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s on %s: %w: %s", idx.Command, channelRoot, err, out)
	}
	return nil
}

// Prune is a placeholder matching the upstream tool's own unimplemented
// prune_channel: removing packages superseded or orphaned in the channel
// tree is not yet driven by this system.
func (idx *Indexer) Prune(ctx context.Context, channelRoot string) ([]string, error) {
	return nil, nil
}
