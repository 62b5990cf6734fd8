package btfgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptWake/btf2json/internal/arch"
	"github.com/CaptWake/btf2json/internal/btf"
	"github.com/CaptWake/btf2json/internal/btfgraph"
)

// fakeSpec builds a btf.Spec directly from in-memory Type values, since
// btfgraph only needs the decoded shape, not a real byte buffer.
func fakeSpec(types ...*btf.Type) *btf.Spec {
	return &btf.Spec{Types: types}
}

func TestPeelSkipsQualifiers(t *testing.T) {
	// id 1: int; id 2: const int; id 3: typedef pid_t -> const int
	spec := fakeSpec(
		&btf.Type{ID: 1, Kind: btf.KindInt, IntSize: 4},
		&btf.Type{ID: 2, Kind: btf.KindConst, RefType: 1},
		&btf.Type{ID: 3, Kind: btf.KindTypedef, RefType: 2},
	)
	g := btfgraph.New(spec, arch.X86_64)

	got, err := g.Peel(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got)
}

func TestPeelVoidIsNoop(t *testing.T) {
	spec := fakeSpec()
	g := btfgraph.New(spec, arch.X86_64)
	got, err := g.Peel(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), got)
}

func TestSizeOfArrayAndPointer(t *testing.T) {
	spec := fakeSpec(
		&btf.Type{ID: 1, Kind: btf.KindInt, IntSize: 4},
		&btf.Type{ID: 2, Kind: btf.KindPtr, RefType: 1},
		&btf.Type{ID: 3, Kind: btf.KindArray, ArrayElemType: 1, ArrayNelems: 10},
	)
	g := btfgraph.New(spec, arch.X86_64)

	sz, err := g.SizeOf(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), sz) // x86_64 pointer width

	sz, err = g.SizeOf(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), sz)
}

func TestSizeOfFwdRecordsMissing(t *testing.T) {
	spec := fakeSpec(&btf.Type{ID: 1, Kind: btf.KindFwd})
	g := btfgraph.New(spec, arch.X86_64)
	sz, err := g.SizeOf(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), sz)
	assert.True(t, g.Missing.Has(1))
}

func TestAnonNameIsStable(t *testing.T) {
	assert.Equal(t, "unnamed_1a", btfgraph.AnonName(0x1a))
	assert.Equal(t, "unnamed_1a", btfgraph.AnonName(0x1a))
}

func TestDescribePointerToVoid(t *testing.T) {
	spec := fakeSpec(&btf.Type{ID: 1, Kind: btf.KindPtr, RefType: 0})
	g := btfgraph.New(spec, arch.X86_64)
	d := g.Describe(1)
	assert.Equal(t, "pointer", d.Kind)
	require.NotNil(t, d.Subtype)
	assert.Equal(t, "base", d.Subtype.Kind)
	assert.Equal(t, "void", d.Subtype.Name)
}

func TestDescribeDoesNotRecurseThroughSelfReferentialPointer(t *testing.T) {
	// struct node { struct node *next; } — id 1 is the struct, id 2 the
	// pointer back to it.
	spec := fakeSpec(
		&btf.Type{ID: 1, Kind: btf.KindStruct, Size: 8, Members: []btf.Member{{Type: 2}}},
		&btf.Type{ID: 2, Kind: btf.KindPtr, RefType: 1},
	)
	g := btfgraph.New(spec, arch.X86_64)
	// Describing the pointer must terminate: it names the struct rather
	// than re-expanding its fields.
	d := g.Describe(2)
	assert.Equal(t, "pointer", d.Kind)
	assert.Equal(t, "struct", d.Subtype.Kind)
}

func TestDescribeTypedefPeelsToBase(t *testing.T) {
	spec := fakeSpec(
		&btf.Type{ID: 1, Kind: btf.KindInt, IntSize: 4},
		&btf.Type{ID: 2, Kind: btf.KindTypedef, RefType: 1},
	)
	g := btfgraph.New(spec, arch.X86_64)
	d := g.Describe(2)
	assert.Equal(t, "base", d.Kind)
}
