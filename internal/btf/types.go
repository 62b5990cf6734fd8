// Package btf decodes a BPF Type Format blob: the packed header, the
// type section (kind-dispatched variable-length records), and the
// string table they both reference by offset.
package btf

// Kind is a BTF_KIND_* tag, taken directly from the kernel's
// include/uapi/linux/btf.h numbering.
type Kind uint8

const (
	KindInt       Kind = 1
	KindPtr       Kind = 2
	KindArray     Kind = 3
	KindStruct    Kind = 4
	KindUnion     Kind = 5
	KindEnum      Kind = 6
	KindFwd       Kind = 7
	KindTypedef   Kind = 8
	KindVolatile  Kind = 9
	KindConst     Kind = 10
	KindRestrict  Kind = 11
	KindFunc      Kind = 12
	KindFuncProto Kind = 13
	KindVar       Kind = 14
	KindDatasec   Kind = 15
	KindFloat     Kind = 16
	KindDeclTag   Kind = 17
	KindTypeTag   Kind = 18
	KindEnum64    Kind = 19
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindPtr:
		return "PTR"
	case KindArray:
		return "ARRAY"
	case KindStruct:
		return "STRUCT"
	case KindUnion:
		return "UNION"
	case KindEnum:
		return "ENUM"
	case KindFwd:
		return "FWD"
	case KindTypedef:
		return "TYPEDEF"
	case KindVolatile:
		return "VOLATILE"
	case KindConst:
		return "CONST"
	case KindRestrict:
		return "RESTRICT"
	case KindFunc:
		return "FUNC"
	case KindFuncProto:
		return "FUNC_PROTO"
	case KindVar:
		return "VAR"
	case KindDatasec:
		return "DATASEC"
	case KindFloat:
		return "FLOAT"
	case KindDeclTag:
		return "DECL_TAG"
	case KindTypeTag:
		return "TYPE_TAG"
	case KindEnum64:
		return "ENUM64"
	default:
		return "UNKNOWN"
	}
}

// INT encoding-word bit layout (the record's own size field carries the
// byte size separately): bits 0-7 bit size, bits 24-31 encoding flags.
const (
	intEncodingSigned = 1 << 0
	intEncodingChar   = 1 << 1
	intEncodingBool   = 1 << 2
)

// Member is one STRUCT/UNION member.
type Member struct {
	NameOff uint32
	Type    uint32 // referenced type id
	Offset  uint32 // raw bit offset or, if parent.BitfieldVlen, packed {bit_offset:24,bit_size:8}
}

// EnumValue is one ENUM constant.
type EnumValue struct {
	NameOff uint32
	Value   int32
}

// Enum64Value is one ENUM64 constant.
type Enum64Value struct {
	NameOff uint32
	Lo32    uint32
	Hi32    uint32
}

// Param is one FUNC_PROTO parameter.
type Param struct {
	NameOff uint32
	Type    uint32
}

// Type is a single decoded BTF type record. Only the fields relevant to
// its Kind are populated; the zero id (implicit void) has no Type value.
type Type struct {
	ID      uint32
	NameOff uint32
	Kind    Kind

	// INT
	IntEncoding uint32 // encoding flags: bits 24-31 of the encoding word
	IntBits     uint32
	IntSize     uint32 // bytes, from the record's size field

	// PTR, TYPEDEF, VOLATILE, CONST, RESTRICT, TYPE_TAG: referenced type.
	// FUNC, VAR: referenced type (return type / variable type).
	RefType uint32

	// ARRAY
	ArrayElemType  uint32
	ArrayIndexType uint32
	ArrayNelems    uint32

	// STRUCT, UNION
	Members       []Member
	Size          uint32
	BitfieldVlen  bool // kind_flag: Members[i].Offset is packed bit_offset/bit_size

	// ENUM
	EnumValues []EnumValue

	// ENUM64
	Enum64Values []Enum64Value

	// FWD
	FwdIsUnion bool // kind_flag

	// FUNC_PROTO
	Params []Param

	// VAR
	Linkage uint32

	// DATASEC
	DatasecSize uint32

	// FLOAT
	FloatSize uint32

	// DECL_TAG
	DeclTagComponentIdx int32
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	return t.Kind.String()
}

// IsSigned reports whether an INT record's encoding has the signed bit set.
func (t *Type) IsSigned() bool { return t.IntEncoding&intEncodingSigned != 0 }

// IsChar reports whether an INT record is a char.
func (t *Type) IsChar() bool { return t.IntEncoding&intEncodingChar != 0 }

// IsBool reports whether an INT record is a bool.
func (t *Type) IsBool() bool { return t.IntEncoding&intEncodingBool != 0 }
