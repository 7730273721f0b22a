// Package container implements C2: the byte-exact on-disk container
// format (DiskHeader, PresigColdShare table, append-only UsageLog) that
// must parse and serialize identically across any conforming
// implementation of the format.
package container

import (
	"encoding/binary"

	"github.com/chippr-robotics/sigil/internal/errs"
)

// cursor is a truncation-safe binary reader over a byte slice, modeled
// on the teacher's consensus.cursor.
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b, pos: 0}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, errs.New(errs.KindDiskFormat, "truncated at offset %d, need %d bytes", c.pos, n)
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU8() (byte, error) {
	b, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) readU16LE() (uint16, error) {
	b, err := c.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readU64LE() (uint64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// writer is the append-only counterpart to cursor, used to assemble
// fixed-layout structures byte-by-byte in the same order the cursor
// reads them.
type writer struct {
	buf []byte
}

func (w *writer) writeExact(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) writeU8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *writer) writeU16LE(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) writeU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) writeU64LE(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// writeZeroPad appends n zero bytes, used for reserved regions.
func (w *writer) writeZeroPad(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}
