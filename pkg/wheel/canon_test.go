package wheel

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"

	"github.com/cart-wheel/cartwheel/pkg/testutil"
)

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "foo-bar", Canonicalize("Foo_Bar"))
	assert.Equal(t, "foo-bar", Canonicalize("foo-bar"))
	assert.Equal(t, "numpy", Canonicalize("NumPy"))
}

func TestCanonicalizeIdempotent(t *testing.T) {
	testutil.QuickCheck(t, func(name string) bool {
		once := Canonicalize(name)
		twice := Canonicalize(once)
		return once == twice
	}, quick.Config{MaxCount: 200})
}
