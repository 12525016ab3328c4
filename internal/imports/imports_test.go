package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectImport_RecordsOnce(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.CollectSource("memo", "arkui.stateManagement.runtime")

	c.CollectImport("memo")
	c.CollectImport("memo")

	require.Len(t, c.Imports(), 1)
	assert.Equal(t, Import{Symbol: "memo", Source: "arkui.stateManagement.runtime"}, c.Imports()[0])
	assert.True(t, c.Has("memo"))
}

func TestCollectImport_UnregisteredPanics(t *testing.T) {
	t.Parallel()
	c := NewCollector()

	assert.PanicsWithError(t, `imports: no source registered for "memo_skip"`, func() {
		c.CollectImport("memo_skip")
	})
}

func TestImports_RequestOrder(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.CollectSource("memo", "rt")
	c.CollectSource("memo_intrinsic", "rt")

	c.CollectImport("memo_intrinsic")
	c.CollectImport("memo")

	got := c.Imports()
	require.Len(t, got, 2)
	assert.Equal(t, "memo_intrinsic", got[0].Symbol)
	assert.Equal(t, "memo", got[1].Symbol)
}

func TestReset(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	c.CollectSource("memo", "rt")
	c.CollectImport("memo")

	c.Reset()

	assert.Empty(t, c.Imports())
	assert.Panics(t, func() { c.CollectImport("memo") })
}
