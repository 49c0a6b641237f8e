package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *InMemory {
	r := NewInMemory()
	r.Register(ToolInfo{Name: "grep", Category: "search", Description: "search file contents"},
		func(ctx context.Context, params map[string]any) (any, error) {
			return "matched " + params["pattern"].(string), nil
		})
	r.Register(ToolInfo{Name: "fetch", Category: "network", Description: "fetch a URL"},
		func(ctx context.Context, params map[string]any) (any, error) { return "ok", nil })
	return r
}

func TestListFiltersByCategoryAndSortsByName(t *testing.T) {
	r := newTestRegistry()
	all := r.List("")
	require.Len(t, all, 2)
	assert.Equal(t, "fetch", all[0].Name)

	search := r.List("search")
	require.Len(t, search, 1)
	assert.Equal(t, "grep", search[0].Name)
}

func TestInfoUnknownTool(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.Info("nope")
	assert.False(t, ok)
}

func TestSearchMatchesAnyField(t *testing.T) {
	r := newTestRegistry()
	found := r.Search([]string{"URL"})
	require.Len(t, found, 1)
	assert.Equal(t, "fetch", found[0].Name)
}

func TestInvokeUnknownTool(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Invoke(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestInvokeKnownTool(t *testing.T) {
	r := newTestRegistry()
	out, err := r.Invoke(context.Background(), "grep", map[string]any{"pattern": "foo"})
	require.NoError(t, err)
	assert.Equal(t, "matched foo", out)
}
