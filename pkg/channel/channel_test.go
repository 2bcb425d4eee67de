package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSucceedsWithZeroExitCommand(t *testing.T) {
	idx := NewIndexer("true")
	err := idx.Index(context.Background(), t.TempDir())
	require.NoError(t, err)
}

func TestIndexReportsNonZeroExitCommand(t *testing.T) {
	idx := NewIndexer("false")
	err := idx.Index(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestIndexReportsMissingCommand(t *testing.T) {
	idx := NewIndexer("cartwheel-indexer-does-not-exist")
	err := idx.Index(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestPruneIsUnimplemented(t *testing.T) {
	idx := NewIndexer("true")
	removed, err := idx.Prune(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, removed)
}
