package memocap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/memocap/internal/memo"
)

// newTestQueryBuilder classifies pageSource into a fresh database and
// returns the query builder and the stored file path.
func newTestQueryBuilder(t *testing.T) (*QueryBuilder, string) {
	t.Helper()
	e := newTestEngine(t)
	path := writeFile(t, t.TempDir(), "pages/Index.ets", pageSource)
	_, err := e.ClassifyFiles(context.Background(), []string{path})
	require.NoError(t, err)
	return e.Query(), path
}

func TestUnits(t *testing.T) {
	q, path := newTestQueryBuilder(t)
	units, err := q.Units()
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, path, units[0].Path)
}

func TestDecisions_SourceOrder(t *testing.T) {
	q, path := newTestQueryBuilder(t)
	ds, err := q.Decisions(path)
	require.NoError(t, err)
	require.Len(t, ds, 4)

	var names []string
	for _, d := range ds {
		names = append(names, d.Kind+":"+d.Name)
	}
	assert.Equal(t, []string{"FuncDecl:card", "FuncDecl:render", "Call:render", "Call:card"}, names)
}

func TestDecisions_NoFile(t *testing.T) {
	q, _ := newTestQueryBuilder(t)
	ds, err := q.Decisions("/nonexistent.ets")
	require.NoError(t, err)
	assert.Nil(t, ds)
}

func TestDecisionsByKind(t *testing.T) {
	q, _ := newTestQueryBuilder(t)
	fns, err := q.DecisionsByKind("FuncDecl")
	require.NoError(t, err)
	assert.Len(t, fns, 2)
}

func TestMemoCalls(t *testing.T) {
	q, path := newTestQueryBuilder(t)
	calls, err := q.MemoCalls(path)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, 3, calls[0].StartLine)
	assert.Equal(t, 2, calls[0].StartCol)
	assert.Equal(t, "render", calls[0].Metadata[memo.MetaCallName])
	assert.Equal(t, "card", calls[1].Metadata[memo.MetaCallName])
}

func TestImports(t *testing.T) {
	q, path := newTestQueryBuilder(t)
	imps, err := q.Imports(path)
	require.NoError(t, err)
	require.Len(t, imps, 1)
	assert.Equal(t, "memo", imps[0].Symbol)
	assert.Equal(t, memo.DefaultRuntimeModule, imps[0].Source)

	none, err := q.Imports("/nonexistent.ets")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDecisionAt(t *testing.T) {
	q, path := newTestQueryBuilder(t)

	d, err := q.DecisionAt(path, 4, 4)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Call", d.Kind)
	assert.Equal(t, "card", d.Name)

	d, err = q.DecisionAt(path, 4, 0)
	require.NoError(t, err)
	assert.Nil(t, d, "nothing starts before the call on that line")

	d, err = q.DecisionAt(path, 2, 9)
	require.NoError(t, err)
	assert.Nil(t, d, "page is not capable")
}
