package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayhanfay/sistem-rangkuman-data/pkg/mcperr"
)

func TestCatalogNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, tool := range Catalog() {
		require.False(t, seen[tool.Name], "duplicate tool name %q", tool.Name)
		seen[tool.Name] = true
		require.Equal(t, "object", tool.InputSchema.Type)
		require.NotEmpty(t, tool.Description)
	}
}

func TestCatalogIsACopy(t *testing.T) {
	first := Catalog()
	first[0].Name = "mutated"
	require.NotEqual(t, "mutated", Catalog()[0].Name)
}

func TestLookup(t *testing.T) {
	tool, ok := Lookup("trigger_analysis")
	require.True(t, ok)
	require.True(t, tool.Background)

	_, ok = Lookup("nonexistent")
	require.False(t, ok)
}

// Every synchronous tool in the catalog must reach a real handler: a
// dispatch gap would surface as an internal error even on bad arguments.
func TestEveryCatalogToolHasAHandler(t *testing.T) {
	h := newHarness()
	for _, tool := range Catalog() {
		if tool.Background {
			continue
		}
		_, err := h.svc.Call(context.Background(), tool.Name, json.RawMessage(`{}`))
		if err != nil {
			require.NotEqual(t, mcperr.Internal, mcperr.KindOf(err), "tool %q", tool.Name)
		}
	}
}
