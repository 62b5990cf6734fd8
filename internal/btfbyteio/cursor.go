// Package btfbyteio provides an endian-aware cursor over a BTF byte buffer.
//
// BTF fixes its endianness for the whole file based on the byte order of
// the magic number in the header; every multi-byte read after that point
// uses the same order, so the cursor carries a binary.ByteOrder picked
// once in New rather than per-read.
package btfbyteio

import (
	"encoding/binary"
	"fmt"

	"github.com/CaptWake/btf2json/lib/binstruct/binutil"
)

// Cursor reads fixed-width, little- or big-endian primitives out of a
// byte slice without copying it, advancing an internal offset.
type Cursor struct {
	buf   []byte
	order binary.ByteOrder
	off   int
}

func New(buf []byte, order binary.ByteOrder) *Cursor {
	return &Cursor{buf: buf, order: order}
}

func (c *Cursor) Order() binary.ByteOrder { return c.order }

// Offset is the cursor's current position in buf.
func (c *Cursor) Offset() int { return c.off }

// Seek moves the cursor to an absolute offset, which must be in [0, len(buf)].
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return fmt.Errorf("seek to %d: out of range [0, %d]", off, len(c.buf))
	}
	c.off = off
	return nil
}

// Remaining is the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

func (c *Cursor) need(n int) error {
	if err := binutil.NeedNBytes(c.buf[c.off:], n); err != nil {
		return fmt.Errorf("at offset %d: %w", c.off, err)
	}
	return nil
}

func (c *Cursor) U8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *Cursor) U32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.order.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

func (c *Cursor) U16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := c.order.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

// Bytes returns the next n bytes without copying, and advances the cursor.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.off : c.off+n]
	c.off += n
	return v, nil
}

// CStringAt returns the NUL-terminated string starting at an absolute
// offset into the whole buffer (not relative to the cursor), not advancing
// the cursor. Used for string-table lookups, which are offset-addressed
// rather than sequential.
func CStringAt(buf []byte, off uint32) (string, error) {
	if int(off) > len(buf) {
		return "", fmt.Errorf("string offset %d out of range [0, %d]", off, len(buf))
	}
	end := int(off)
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	if end == len(buf) {
		return "", fmt.Errorf("string at offset %d is not NUL-terminated", off)
	}
	return string(buf[off:end]), nil
}
