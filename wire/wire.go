// Package wire implements the little-endian binary primitives shared by
// resource content hashing and the record log.
//
// Both consumers walk the same field lists: the hashing path feeds fields
// into an FNV-1a digest, the recording path feeds them into a log buffer.
// Keeping a single primitive layer underneath both is what keeps cache keys
// and recorded payloads consistent with each other.
package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Limits for variable-length fields. A log that claims a longer field is
// corrupt; decoding fails rather than allocating unbounded memory.
const (
	// MaxStringLen bounds length-prefixed strings. Shader sources are the
	// largest strings on the wire and stay far below this.
	MaxStringLen = 16 << 20

	// MaxSliceLen bounds element counts of encoded sequences.
	MaxSliceLen = 1 << 20
)

var (
	// ErrStringTooLong is returned when encoding a string longer than MaxStringLen.
	ErrStringTooLong = errors.New("wire: string exceeds maximum encodable length")

	// ErrLengthOutOfRange is returned when a decoded length prefix is not
	// representable or exceeds the data that follows it.
	ErrLengthOutOfRange = errors.New("wire: decoded length out of range")
)

// Writer encodes little-endian primitives into an io.Writer.
//
// The first write error sticks: subsequent calls become no-ops and Err
// reports the original failure. Callers encode a whole value and check Err
// once at the end instead of after every field.
type Writer struct {
	w   io.Writer
	buf [8]byte
	err error
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered while writing, or nil.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

// Uint8 writes a single byte.
func (w *Writer) Uint8(v uint8) {
	w.buf[0] = v
	w.write(w.buf[:1])
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.write(w.buf[:4])
}

// Uint64 writes a little-endian uint64.
func (w *Writer) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.write(w.buf[:8])
}

// Bool writes a bool as one byte, 1 for true and 0 for false.
func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

// Float32 writes the IEEE 754 bit pattern of v. Hashing floats through their
// bit pattern keeps the digest deterministic across platforms.
func (w *Writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

// String writes a uint32 length prefix followed by the string bytes.
func (w *Writer) String(s string) {
	if len(s) > MaxStringLen {
		if w.err == nil {
			w.err = ErrStringTooLong
		}
		return
	}
	w.Uint32(uint32(len(s)))
	w.write([]byte(s))
}

// Bytes writes a uint32 length prefix followed by the raw bytes.
func (w *Writer) Bytes(p []byte) {
	if len(p) > MaxStringLen {
		if w.err == nil {
			w.err = ErrStringTooLong
		}
		return
	}
	w.Uint32(uint32(len(p)))
	w.write(p)
}

// Len writes a sequence element count as a uint32 prefix.
func (w *Writer) Len(n int) {
	if n < 0 || n > MaxSliceLen {
		if w.err == nil {
			w.err = ErrLengthOutOfRange
		}
		return
	}
	w.Uint32(uint32(n))
}

// Reader decodes little-endian primitives from a byte slice.
//
// Like Writer, the first error sticks and later calls return zero values.
// Decoders read a whole entry and check Err once.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader creates a Reader over data. The Reader does not copy data;
// callers must not mutate it while decoding.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered while reading, or nil.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.Remaining() < n {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() uint8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() uint64 {
	p := r.take(8)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

// Bool reads one byte and reports whether it is nonzero.
func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

// Float32 reads an IEEE 754 bit pattern.
func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

// String reads a uint32 length prefix followed by that many bytes.
func (r *Reader) String() string {
	n := int(r.Uint32())
	if r.err != nil {
		return ""
	}
	if n > MaxStringLen || n > r.Remaining() {
		r.err = ErrLengthOutOfRange
		return ""
	}
	return string(r.take(n))
}

// Bytes reads a uint32 length prefix followed by that many raw bytes.
// The returned slice is a copy and stays valid after further reads.
func (r *Reader) Bytes() []byte {
	n := int(r.Uint32())
	if r.err != nil {
		return nil
	}
	if n > MaxStringLen || n > r.Remaining() {
		r.err = ErrLengthOutOfRange
		return nil
	}
	p := r.take(n)
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

// Len reads a sequence element count written by Writer.Len. Len validates
// only the MaxSliceLen bound: element sizes vary by caller, so the count is
// not checked against the remaining bytes. A count that overstates the data
// surfaces as io.ErrUnexpectedEOF when the element reads run past the end.
func (r *Reader) Len() int {
	n := int(r.Uint32())
	if r.err != nil {
		return 0
	}
	if n > MaxSliceLen {
		r.err = ErrLengthOutOfRange
		return 0
	}
	return n
}
