package btf

import (
	"encoding/binary"
	"fmt"

	"github.com/CaptWake/btf2json/internal/btfbyteio"
)

// Spec is the fully decoded contents of one BTF blob: the type table
// indexed by (id-1) — id 0 is the implicit void and has no entry — and
// the string table the records' name offsets point into.
type Spec struct {
	ByteOrder binary.ByteOrder
	Strings   StringTable
	Types     []*Type // Types[i] has ID == i+1
}

// ByID returns the type with the given id, or (nil, true) for the
// implicit void (id 0). The second return is false when id is out of
// the dense [0, len(Types)] range.
func (s *Spec) ByID(id uint32) (*Type, bool) {
	if id == 0 {
		return nil, true
	}
	if id > uint32(len(s.Types)) {
		return nil, false
	}
	return s.Types[id-1], true
}

func (s *Spec) Name(nameOff uint32) (string, error) {
	return s.Strings.StringAt(nameOff)
}

// Load parses a complete BTF blob: header, type section, string table.
func Load(buf []byte) (*Spec, error) {
	hdr, order, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	if err := hdr.validate(len(buf)); err != nil {
		return nil, &FormatError{Op: "parse header", Err: err}
	}

	base := int(hdr.HdrLen)
	typeSection := buf[base+int(hdr.TypeOff) : base+int(hdr.TypeOff)+int(hdr.TypeLen)]
	strSection := buf[base+int(hdr.StrOff) : base+int(hdr.StrOff)+int(hdr.StrLen)]

	strs := StringTable{buf: strSection}

	types, err := decodeTypeSection(typeSection, order)
	if err != nil {
		return nil, err
	}

	return &Spec{ByteOrder: order, Strings: strs, Types: types}, nil
}

const recordHeaderSize = 12 // name_off:u32, info:u32, size_or_type:u32

func decodeTypeSection(buf []byte, order binary.ByteOrder) ([]*Type, error) {
	c := btfbyteio.New(buf, order)
	var types []*Type
	var id uint32 = 1
	for c.Remaining() > 0 {
		t, err := decodeOneType(c, id)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
		id++
	}
	return types, nil
}

func decodeOneType(c *btfbyteio.Cursor, id uint32) (*Type, error) {
	if c.Remaining() < recordHeaderSize {
		return nil, &FormatError{Op: "decode type record", Err: &TruncatedError{ID: id}}
	}
	nameOff, err := c.U32()
	if err != nil {
		return nil, &FormatError{Op: "decode type record", Err: err}
	}
	info, err := c.U32()
	if err != nil {
		return nil, &FormatError{Op: "decode type record", Err: err}
	}
	sizeOrType, err := c.U32()
	if err != nil {
		return nil, &FormatError{Op: "decode type record", Err: err}
	}

	vlen := info & 0xffff
	kind := Kind((info >> 24) & 0x1f)
	kindFlag := (info >> 31) & 1

	t := &Type{ID: id, NameOff: nameOff, Kind: kind}

	switch kind {
	case KindInt:
		t.IntSize = sizeOrType
		enc, err := c.U32()
		if err != nil {
			return nil, recordErr(id, err)
		}
		t.IntEncoding = (enc >> 24) & 0xff
		t.IntBits = enc & 0xff

	case KindPtr:
		t.RefType = sizeOrType

	case KindArray:
		elem, err := c.U32()
		if err != nil {
			return nil, recordErr(id, err)
		}
		idx, err := c.U32()
		if err != nil {
			return nil, recordErr(id, err)
		}
		nelems, err := c.U32()
		if err != nil {
			return nil, recordErr(id, err)
		}
		t.ArrayElemType, t.ArrayIndexType, t.ArrayNelems = elem, idx, nelems

	case KindStruct, KindUnion:
		t.Size = sizeOrType
		t.BitfieldVlen = kindFlag == 1
		for i := uint32(0); i < vlen; i++ {
			mNameOff, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			mType, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			mOffset, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			t.Members = append(t.Members, Member{NameOff: mNameOff, Type: mType, Offset: mOffset})
		}

	case KindEnum:
		t.Size = sizeOrType
		for i := uint32(0); i < vlen; i++ {
			eNameOff, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			eVal, err := c.I32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			t.EnumValues = append(t.EnumValues, EnumValue{NameOff: eNameOff, Value: eVal})
		}

	case KindEnum64:
		t.Size = sizeOrType
		for i := uint32(0); i < vlen; i++ {
			eNameOff, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			lo, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			hi, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			t.Enum64Values = append(t.Enum64Values, Enum64Value{NameOff: eNameOff, Lo32: lo, Hi32: hi})
		}

	case KindFwd:
		t.FwdIsUnion = kindFlag == 1

	case KindTypedef, KindVolatile, KindConst, KindRestrict, KindTypeTag:
		t.RefType = sizeOrType

	case KindFunc:
		t.RefType = sizeOrType

	case KindFuncProto:
		t.RefType = sizeOrType
		for i := uint32(0); i < vlen; i++ {
			pNameOff, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			pType, err := c.U32()
			if err != nil {
				return nil, recordErr(id, err)
			}
			t.Params = append(t.Params, Param{NameOff: pNameOff, Type: pType})
		}

	case KindVar:
		t.RefType = sizeOrType
		linkage, err := c.U32()
		if err != nil {
			return nil, recordErr(id, err)
		}
		t.Linkage = linkage

	case KindDatasec:
		t.DatasecSize = sizeOrType
		for i := uint32(0); i < vlen; i++ {
			if _, err := c.U32(); err != nil { // referenced type id, unused (DATASEC ignored per design notes)
				return nil, recordErr(id, err)
			}
			if _, err := c.U32(); err != nil { // offset
				return nil, recordErr(id, err)
			}
			if _, err := c.U32(); err != nil { // size
				return nil, recordErr(id, err)
			}
		}

	case KindFloat:
		t.FloatSize = sizeOrType

	case KindDeclTag:
		t.RefType = sizeOrType
		idx, err := c.I32()
		if err != nil {
			return nil, recordErr(id, err)
		}
		t.DeclTagComponentIdx = idx

	default:
		return nil, &FormatError{Op: "decode type record", Err: &UnknownKindError{ID: id, Kind: kind}}
	}

	return t, nil
}

func recordErr(id uint32, err error) error {
	return &FormatError{Op: fmt.Sprintf("decode type record %d payload: %v", id, err), Err: &TruncatedError{ID: id}}
}
