package isf_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptWake/btf2json/internal/isf"
)

func TestFieldsPreservesInsertionOrder(t *testing.T) {
	fields := isf.NewFields()
	fields.Set("b", isf.Field{Offset: 4})
	fields.Set("a", isf.Field{Offset: 0})
	fields.Set("c", isf.Field{Offset: 8})

	var buf bytes.Buffer
	require.NoError(t, fields.EncodeJSON(&buf))

	// Decode with the stdlib into an order-preserving structure isn't
	// available without a third type, so assert on raw key order in the
	// encoded bytes instead.
	encoded := buf.String()
	bIdx := indexOf(t, encoded, `"b"`)
	aIdx := indexOf(t, encoded, `"a"`)
	cIdx := indexOf(t, encoded, `"c"`)
	assert.True(t, bIdx < aIdx, "expected b before a, got %s", encoded)
	assert.True(t, aIdx < cIdx, "expected a before c, got %s", encoded)

	var decoded map[string]isf.Field
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 3)
}

func TestFieldsSetOverwritesInPlace(t *testing.T) {
	fields := isf.NewFields()
	fields.Set("x", isf.Field{Offset: 0})
	fields.Set("x", isf.Field{Offset: 16})
	assert.Equal(t, 1, fields.Len())
	got, ok := fields.Get("x")
	require.True(t, ok)
	assert.Equal(t, uint32(16), got.Offset)
}

func TestNewMetadataFixedSymbolSources(t *testing.T) {
	m := isf.NewMetadata("btf2json", "1.0.0", "some banner")
	assert.Equal(t, "6.2.0", m.Format)
	assert.Equal(t, "some banner", m.Linux.Kernel.Banner)
	require.Len(t, m.Symbols, 2)
	assert.Equal(t, "btf", m.Symbols[0].Kind)
	assert.Equal(t, "system-map", m.Symbols[1].Kind)
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("substring %q not found in %q", needle, haystack)
	return -1
}
