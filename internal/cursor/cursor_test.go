package cursor

import (
	"errors"
	"testing"
)

// TestReaderTypedReads verifies that typed reads consume big-endian values
// in sequence and track the position correctly.
func TestReaderTypedReads(t *testing.T) {
	w := NewWriter()
	w.PutI16(-5)
	w.PutI32(16777214)
	w.PutF32(2.5)
	w.PutI24(1973770)
	w.PutU8(0x7f)

	r := NewReader(w.Bytes())

	i16, err := r.I16()
	if err != nil {
		t.Fatalf("I16 failed: %v", err)
	}
	if i16 != -5 {
		t.Errorf("I16 = %d, want -5", i16)
	}

	i32, err := r.I32()
	if err != nil {
		t.Fatalf("I32 failed: %v", err)
	}
	if i32 != 16777214 {
		t.Errorf("I32 = %d, want 16777214", i32)
	}

	f32, err := r.F32()
	if err != nil {
		t.Fatalf("F32 failed: %v", err)
	}
	if f32 != 2.5 {
		t.Errorf("F32 = %f, want 2.5", f32)
	}

	i24, err := r.I24()
	if err != nil {
		t.Fatalf("I24 failed: %v", err)
	}
	if i24 != 1973770 {
		t.Errorf("I24 = %d, want 1973770", i24)
	}

	u8, err := r.U8()
	if err != nil {
		t.Fatalf("U8 failed: %v", err)
	}
	if u8 != 0x7f {
		t.Errorf("U8 = %d, want 127", u8)
	}

	if r.Remaining() != 0 {
		t.Errorf("Remaining = %d after consuming all input, want 0", r.Remaining())
	}
}

// TestReaderTruncation verifies that reads past the end fail with a
// TruncatedError carrying the offset, and never consume input.
func TestReaderTruncation(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})

	_, err := r.I32()
	if err == nil {
		t.Fatal("I32 on 2-byte input succeeded, want truncation error")
	}
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("error %v does not match ErrTruncated", err)
	}

	var te *TruncatedError
	if !errors.As(err, &te) {
		t.Fatalf("error %v is not a *TruncatedError", err)
	}
	if te.Offset != 0 || te.Need != 4 || te.Have != 2 {
		t.Errorf("TruncatedError = %+v, want offset 0, need 4, have 2", te)
	}

	// The failed read must not have advanced the position.
	if r.Pos() != 0 {
		t.Errorf("Pos = %d after failed read, want 0", r.Pos())
	}
	if v, err := r.I16(); err != nil || v != 0x0102 {
		t.Errorf("I16 after failed I32 = %d, %v; want 258, nil", v, err)
	}
}

// TestReaderUntil verifies delimiter-terminated reads.
func TestReaderUntil(t *testing.T) {
	r := NewReader([]byte("created by neurofmt\n\nrest"))

	line, err := r.Until('\n')
	if err != nil {
		t.Fatalf("Until failed: %v", err)
	}
	if string(line) != "created by neurofmt" {
		t.Errorf("Until = %q, want %q", line, "created by neurofmt")
	}
	if r.Pos() != 20 {
		t.Errorf("Pos = %d after Until, want 20", r.Pos())
	}

	// Missing delimiter is a truncation.
	r2 := NewReader([]byte("no newline here"))
	if _, err := r2.Until('\n'); !errors.Is(err, ErrTruncated) {
		t.Errorf("Until without delimiter = %v, want ErrTruncated", err)
	}
}

// TestReaderPeek verifies that peeks do not advance the position.
func TestReaderPeek(t *testing.T) {
	w := NewWriter()
	w.PutI32(42)
	r := NewReader(w.Bytes())

	v, err := r.PeekI32()
	if err != nil {
		t.Fatalf("PeekI32 failed: %v", err)
	}
	if v != 42 {
		t.Errorf("PeekI32 = %d, want 42", v)
	}
	if r.Pos() != 0 {
		t.Errorf("Pos = %d after peek, want 0", r.Pos())
	}

	b, err := r.PeekBytes(2)
	if err != nil {
		t.Fatalf("PeekBytes failed: %v", err)
	}
	if b[0] != 0 || b[1] != 0 {
		t.Errorf("PeekBytes = %v, want leading zero bytes of big-endian 42", b)
	}
}

// TestWriterPad verifies zero padding and length accounting.
func TestWriterPad(t *testing.T) {
	w := NewWriter()
	w.PutString("ab")
	w.Pad(3)
	if w.Len() != 5 {
		t.Fatalf("Len = %d, want 5", w.Len())
	}
	got := w.Bytes()
	for i := 2; i < 5; i++ {
		if got[i] != 0 {
			t.Errorf("byte %d = %d, want 0", i, got[i])
		}
	}
}

// TestI24RoundTrip verifies the 24-bit integer helpers against the
// FreeSurfer magic numbers.
func TestI24RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, 16777213, 16777214, 16777215} {
		w := NewWriter()
		w.PutI24(v)
		if w.Len() != 3 {
			t.Fatalf("PutI24 wrote %d bytes, want 3", w.Len())
		}
		got, err := NewReader(w.Bytes()).I24()
		if err != nil {
			t.Fatalf("I24 failed for %d: %v", v, err)
		}
		if got != v {
			t.Errorf("I24 round trip = %d, want %d", got, v)
		}
	}
}
