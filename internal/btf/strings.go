package btf

import "github.com/CaptWake/btf2json/internal/btfbyteio"

// StringTable is the zero-terminated string pool sliced out of the BTF
// buffer by the header's str_off/str_len. Offset 0 is always the empty
// string, since the table is required to start with a NUL byte.
type StringTable struct {
	buf []byte
}

func (st StringTable) StringAt(off uint32) (string, error) {
	if off == 0 {
		return "", nil
	}
	return btfbyteio.CStringAt(st.buf, off)
}
