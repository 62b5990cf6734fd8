package btf

import (
	"encoding/binary"
	"fmt"

	"github.com/CaptWake/btf2json/lib/binstruct"
)

const (
	btfMagic     = 0xEB9F
	btfHeaderLen = 24
)

// header is the decoded, endian-independent view of the BTF header.
// Offsets are relative to the end of the header, per §4.1.
type header struct {
	Version  uint8
	Flags    uint8
	HdrLen   uint32
	TypeOff  uint32
	TypeLen  uint32
	StrOff   uint32
	StrLen   uint32
}

// headerLE and headerBE mirror the on-disk layout for each byte order.
// binstruct treats a plain unsigned integer field as little-endian (via
// intKind2Type), so headerLE can use native Go integer types directly;
// headerBE spells out the big-endian wrapper types from lib/binstruct so
// the same reflection-driven Unmarshal machinery handles both orders.
type headerLE struct {
	Magic   uint16 `bin:"off=0,siz=2"`
	Version uint8  `bin:"off=2,siz=1"`
	Flags   uint8  `bin:"off=3,siz=1"`
	HdrLen  uint32 `bin:"off=4,siz=4"`
	TypeOff uint32 `bin:"off=8,siz=4"`
	TypeLen uint32 `bin:"off=0xc,siz=4"`
	StrOff  uint32 `bin:"off=0x10,siz=4"`
	StrLen  uint32 `bin:"off=0x14,siz=4"`

	binstruct.End `bin:"off=0x18"`
}

type headerBE struct {
	Magic   binstruct.U16be `bin:"off=0,siz=2"`
	Version binstruct.U8    `bin:"off=2,siz=1"`
	Flags   binstruct.U8    `bin:"off=3,siz=1"`
	HdrLen  binstruct.U32be `bin:"off=4,siz=4"`
	TypeOff binstruct.U32be `bin:"off=8,siz=4"`
	TypeLen binstruct.U32be `bin:"off=0xc,siz=4"`
	StrOff  binstruct.U32be `bin:"off=0x10,siz=4"`
	StrLen  binstruct.U32be `bin:"off=0x14,siz=4"`

	binstruct.End `bin:"off=0x18"`
}

// parseHeader detects the byte order from the magic number and decodes
// the fixed header, returning the byte order subsequent reads (type
// section, string table) must use.
func parseHeader(buf []byte) (header, binary.ByteOrder, error) {
	if len(buf) < btfHeaderLen {
		return header{}, nil, &FormatError{Op: "parse header", Err: fmt.Errorf("buffer is %d bytes, need at least %d", len(buf), btfHeaderLen)}
	}

	switch {
	case buf[0] == 0x9f && buf[1] == 0xeb:
		var h headerLE
		if _, err := binstruct.Unmarshal(buf[:btfHeaderLen], &h); err != nil {
			return header{}, nil, &FormatError{Op: "parse header", Err: err}
		}
		return header{
			Version: h.Version, Flags: h.Flags, HdrLen: h.HdrLen,
			TypeOff: h.TypeOff, TypeLen: h.TypeLen, StrOff: h.StrOff, StrLen: h.StrLen,
		}, binary.LittleEndian, nil
	case buf[0] == 0xeb && buf[1] == 0x9f:
		var h headerBE
		if _, err := binstruct.Unmarshal(buf[:btfHeaderLen], &h); err != nil {
			return header{}, nil, &FormatError{Op: "parse header", Err: err}
		}
		return header{
			Version: uint8(h.Version), Flags: uint8(h.Flags), HdrLen: uint32(h.HdrLen),
			TypeOff: uint32(h.TypeOff), TypeLen: uint32(h.TypeLen),
			StrOff: uint32(h.StrOff), StrLen: uint32(h.StrLen),
		}, binary.BigEndian, nil
	default:
		return header{}, nil, &FormatError{Op: "parse header", Err: fmt.Errorf("bad magic bytes %#02x %#02x", buf[0], buf[1])}
	}
}

// validate checks the header's self-consistency against the total buffer
// length, per §4.1's "section spans overflow" and "non-multiple-of-4"
// failure modes.
func (h header) validate(totalLen int) error {
	if h.HdrLen < btfHeaderLen {
		return fmt.Errorf("hdr_len=%d is smaller than the fixed header", h.HdrLen)
	}
	if h.TypeLen%4 != 0 {
		return fmt.Errorf("type_len=%d is not a multiple of 4", h.TypeLen)
	}
	base := int(h.HdrLen)
	typeEnd := base + int(h.TypeOff) + int(h.TypeLen)
	strEnd := base + int(h.StrOff) + int(h.StrLen)
	if typeEnd > totalLen {
		return fmt.Errorf("type section [%d,%d) overflows %d-byte buffer", base+int(h.TypeOff), typeEnd, totalLen)
	}
	if strEnd > totalLen {
		return fmt.Errorf("string section [%d,%d) overflows %d-byte buffer", base+int(h.StrOff), strEnd, totalLen)
	}
	return nil
}
