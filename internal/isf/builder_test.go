package isf_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaptWake/btf2json/internal/arch"
	"github.com/CaptWake/btf2json/internal/btf"
	"github.com/CaptWake/btf2json/internal/diagnostics"
	"github.com/CaptWake/btf2json/internal/isf"
	"github.com/CaptWake/btf2json/internal/symbolmap"
)

func fakeSpec(types ...*btf.Type) *btf.Spec {
	return &btf.Spec{Types: types}
}

func fakeSpecWithOrder(order binary.ByteOrder, types ...*btf.Type) *btf.Spec {
	return &btf.Spec{ByteOrder: order, Types: types}
}

func TestBuildBaseTypesIncludesVoidAndPointer(t *testing.T) {
	spec := fakeSpec()
	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, nil, arch.X86_64, "", diag)
	require.NoError(t, err)

	void, ok := doc.BaseTypes["void"]
	require.True(t, ok)
	assert.Equal(t, uint32(0), void.Size)

	ptr, ok := doc.BaseTypes["pointer"]
	require.True(t, ok)
	assert.Equal(t, uint32(8), ptr.Size)
}

func TestBuildStructWithMemberProducesTypeDescriptor(t *testing.T) {
	// An anonymous struct with one unnamed member referring to an
	// anonymous int; both get synthetic names.
	intType := &btf.Type{ID: 1, Kind: btf.KindInt, IntSize: 4}
	structType := &btf.Type{
		ID:   2,
		Kind: btf.KindStruct,
		Size: 4,
		Members: []btf.Member{
			{NameOff: 0, Type: 1, Offset: 0},
		},
	}
	spec := fakeSpec(intType, structType)

	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, nil, arch.X86_64, "", diag)
	require.NoError(t, err)

	ut, ok := doc.UserTypes["unnamed_2"]
	require.True(t, ok)
	assert.Equal(t, "struct", ut.Kind)
	assert.Equal(t, uint32(4), ut.Size)
	require.Equal(t, 1, ut.Fields.Len())
	field, ok := ut.Fields.Get("unnamed_field_0")
	require.True(t, ok)
	require.NotNil(t, field.Type)
	assert.Equal(t, "base", field.Type.Kind)
	assert.Equal(t, "unnamed_1", field.Type.Name)
}

func TestBuildBitfieldMember(t *testing.T) {
	intType := &btf.Type{ID: 1, Kind: btf.KindInt, IntSize: 4}
	// bit_offset=3, bit_size=5 packed as (3) | (5<<24)
	packed := uint32(3) | (uint32(5) << 24)
	structType := &btf.Type{
		ID:           2,
		Kind:         btf.KindStruct,
		Size:         4,
		BitfieldVlen: true,
		Members: []btf.Member{
			{NameOff: 0, Type: 1, Offset: packed},
		},
	}
	spec := fakeSpec(intType, structType)

	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, nil, arch.X86_64, "", diag)
	require.NoError(t, err)

	ut := doc.UserTypes["unnamed_2"]
	field, ok := ut.Fields.Get("unnamed_field_0")
	require.True(t, ok)
	require.NotNil(t, field.BitField)
	assert.Equal(t, uint32(3), field.BitField.BitPosition)
	assert.Equal(t, uint32(5), field.BitField.Length)
}

func TestBuildSymbolsMergesMapOnlyEntry(t *testing.T) {
	spec := fakeSpec()
	syms := []symbolmap.Symbol{
		{Name: "some_global", Address: 0xffffffff81001000, Kind: symbolmap.KindObject},
	}
	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, syms, arch.X86_64, "", diag)
	require.NoError(t, err)

	entry, ok := doc.Symbols["some_global"]
	require.True(t, ok)
	assert.Equal(t, uint64(0xffffffff81001000), entry.Address)
	assert.Nil(t, entry.Type)
}

func TestBuildSymbolsAttachesVarType(t *testing.T) {
	intType := &btf.Type{ID: 1, Kind: btf.KindInt, IntSize: 4}
	varType := &btf.Type{ID: 2, Kind: btf.KindVar, NameOff: 0, RefType: 1}
	spec := fakeSpec(intType, varType)
	syms := []symbolmap.Symbol{{Name: "", Address: 0x1000, Kind: symbolmap.KindObject}}

	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, syms, arch.X86_64, "", diag)
	require.NoError(t, err)

	entry, ok := doc.Symbols[""]
	require.True(t, ok)
	require.NotNil(t, entry.Type)
	assert.Equal(t, "base", entry.Type.Kind)
}

func TestBuildRecordsMissingTypesAsDiagnostic(t *testing.T) {
	fwd := &btf.Type{ID: 1, Kind: btf.KindFwd}
	ptr := &btf.Type{ID: 2, Kind: btf.KindPtr, RefType: 1}
	structType := &btf.Type{
		ID:   3,
		Kind: btf.KindStruct,
		Size: 8,
		Members: []btf.Member{
			{NameOff: 0, Type: 2, Offset: 0},
		},
	}
	spec := fakeSpec(fwd, ptr, structType)

	diag := &diagnostics.Sink{}
	_, err := isf.Build(spec, nil, arch.X86_64, "", diag)
	require.NoError(t, err)
	assert.NotEmpty(t, diag.Summary())
}

func TestBuildMetadataUsesExplicitBanner(t *testing.T) {
	spec := fakeSpec()
	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, nil, arch.X86_64, "Linux version 6.1.0", diag)
	require.NoError(t, err)
	assert.Equal(t, "Linux version 6.1.0", doc.Metadata.Linux.Kernel.Banner)
	assert.Equal(t, "6.2.0", doc.Metadata.Format)
}

func TestBuildEnumBaseNameHeuristic(t *testing.T) {
	smallEnum := &btf.Type{
		ID:   1,
		Kind: btf.KindEnum,
		Size: 4,
	}
	largeEnum := &btf.Type{
		ID:   2,
		Kind: btf.KindEnum64,
		Size: 8,
	}
	spec := fakeSpec(smallEnum, largeEnum)

	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, nil, arch.X86_64, "", diag)
	require.NoError(t, err)

	assert.Equal(t, "int", doc.Enums["unnamed_1"].Base)
	assert.Equal(t, "long", doc.Enums["unnamed_2"].Base)
}

// TestBuildBaseTypeEndianFollowsBlobByteOrder is spec.md §8's endianness
// round-trip property: base_types[*].endian must come from the decoded
// blob's own byte order, not from --arch (every --arch entry is
// little-endian, so arch.X86_64 is held fixed across both halves of this
// test — the blob's byte order is the only thing that varies).
func TestBuildBaseTypeEndianFollowsBlobByteOrder(t *testing.T) {
	intType := &btf.Type{ID: 1, Kind: btf.KindInt, IntSize: 4}

	leSpec := fakeSpecWithOrder(binary.LittleEndian, intType)
	leDoc, err := isf.Build(leSpec, nil, arch.X86_64, "", &diagnostics.Sink{})
	require.NoError(t, err)
	assert.Equal(t, "little", leDoc.BaseTypes["void"].Endian)
	assert.Equal(t, "little", leDoc.BaseTypes["pointer"].Endian)
	assert.Equal(t, "little", leDoc.BaseTypes["unnamed_1"].Endian)

	beSpec := fakeSpecWithOrder(binary.BigEndian, intType)
	beDoc, err := isf.Build(beSpec, nil, arch.X86_64, "", &diagnostics.Sink{})
	require.NoError(t, err)
	assert.Equal(t, "big", beDoc.BaseTypes["void"].Endian)
	assert.Equal(t, "big", beDoc.BaseTypes["pointer"].Endian)
	assert.Equal(t, "big", beDoc.BaseTypes["unnamed_1"].Endian)
}

func TestBuildEnum64ValueCombinesLoAndHi(t *testing.T) {
	e := &btf.Type{
		ID:   1,
		Kind: btf.KindEnum64,
		Size: 8,
		Enum64Values: []btf.Enum64Value{
			{NameOff: 0, Lo32: 1, Hi32: 0},
		},
	}
	spec := fakeSpec(e)

	diag := &diagnostics.Sink{}
	doc, err := isf.Build(spec, nil, arch.X86_64, "", diag)
	require.NoError(t, err)

	assert.Equal(t, int64(1), doc.Enums["unnamed_1"].Constants[""])
}
