// Package cursor provides big-endian binary reading and writing primitives
// for the FreeSurfer file format family. All multi-byte values in these
// formats are stored big-endian regardless of host byte order.
//
// The Reader operates over an in-memory byte slice and tracks its position;
// every read is bounds-checked and fails with a *TruncatedError rather than
// returning partial data.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when fewer bytes remain than a read requires.
var ErrTruncated = errors.New("truncated input")

// TruncatedError reports a read past the end of the input, identifying
// the offset at which the read started and how many bytes it needed.
type TruncatedError struct {
	Offset int // position where the read began
	Need   int // bytes required
	Have   int // bytes remaining
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated input: need %d bytes at offset %d, have %d", e.Need, e.Offset, e.Have)
}

// Unwrap makes errors.Is(err, ErrTruncated) work on wrapped reads.
func (e *TruncatedError) Unwrap() error { return ErrTruncated }

// Reader reads big-endian values sequentially from a byte slice.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current read position.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// take bounds-checks and consumes n bytes.
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, &TruncatedError{Offset: r.pos, Need: n, Have: r.Remaining()}
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Bytes reads exactly n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// I16 reads a big-endian signed 16-bit integer.
func (r *Reader) I16() (int16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// I32 reads a big-endian signed 32-bit integer.
func (r *Reader) I32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// F32 reads a big-endian IEEE-754 32-bit float.
func (r *Reader) F32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// I24 reads three bytes and interprets them as a 24-bit big-endian
// integer, the FreeSurfer convention for magic numbers and legacy counts.
func (r *Reader) I24() (int32, error) {
	b, err := r.take(3)
	if err != nil {
		return 0, err
	}
	return int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2]), nil
}

// PeekI32 reads a big-endian int32 without advancing the position.
func (r *Reader) PeekI32() (int32, error) {
	if r.Remaining() < 4 {
		return 0, &TruncatedError{Offset: r.pos, Need: 4, Have: r.Remaining()}
	}
	return int32(binary.BigEndian.Uint32(r.data[r.pos:])), nil
}

// PeekBytes returns the next n bytes without advancing the position.
// Fewer than n remaining bytes yields a TruncatedError.
func (r *Reader) PeekBytes(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, &TruncatedError{Offset: r.pos, Need: n, Have: r.Remaining()}
	}
	return r.data[r.pos : r.pos+n], nil
}

// Until reads bytes up to but not including the first occurrence of delim,
// then consumes the delimiter. A missing delimiter is a truncation.
func (r *Reader) Until(delim byte) ([]byte, error) {
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == delim {
			b := r.data[r.pos:i]
			r.pos = i + 1
			return b, nil
		}
	}
	return nil, &TruncatedError{Offset: r.pos, Need: 1, Have: 0}
}

// Writer appends big-endian values to an in-memory buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated output buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutU8 writes a single byte.
func (w *Writer) PutU8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutI16 writes a big-endian signed 16-bit integer.
func (w *Writer) PutI16(v int16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
}

// PutI32 writes a big-endian signed 32-bit integer.
func (w *Writer) PutI32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// PutF32 writes a big-endian IEEE-754 32-bit float.
func (w *Writer) PutF32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// PutI24 writes the low 24 bits of v as three big-endian bytes.
func (w *Writer) PutI24(v int32) {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

// PutBytes appends raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutString appends the raw bytes of s without a terminator.
func (w *Writer) PutString(s string) {
	w.buf = append(w.buf, s...)
}

// Pad appends n zero bytes.
func (w *Writer) Pad(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}
