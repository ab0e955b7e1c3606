package curv

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"neurofmt/internal/cursor"
)

// TestRoundTrip verifies that encoding and decoding a curv structure
// yields the same values.
func TestRoundTrip(t *testing.T) {
	orig := &Curv{
		NumVertices:     4,
		NumFaces:        5,
		ValuesPerVertex: 1,
		Values:          []float32{2.5, -0.125, 3.14159, 0},
	}

	decoded, err := Decode(orig.Encode())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(orig, decoded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, orig)
	}

	// Idempotence: decoding a re-encoding gives the same structure again.
	again, err := Decode(decoded.Encode())
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, again) {
		t.Errorf("re-encode mismatch:\n got %+v\nwant %+v", again, decoded)
	}
}

// TestNewFormatMagicDispatch verifies that a buffer whose first int32 is
// the reserved magic is always parsed via the new-format path.
func TestNewFormatMagicDispatch(t *testing.T) {
	w := cursor.NewWriter()
	w.PutI32(NewFormatMagic)
	w.PutI32(2) // vertices
	w.PutI32(0) // faces
	w.PutI32(1) // values per vertex
	w.PutF32(1.5)
	w.PutF32(-1.5)

	c, err := Decode(w.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.NumVertices != 2 || len(c.Values) != 2 {
		t.Errorf("got %d vertices, %d values; want 2, 2", c.NumVertices, len(c.Values))
	}
	if c.Values[0] != 1.5 || c.Values[1] != -1.5 {
		t.Errorf("values = %v, want [1.5 -1.5]", c.Values)
	}
}

// TestLegacyFormat verifies the legacy layout: 24-bit counts, 16-bit
// values-per-vertex, and int16 values in hundredths of a millimeter.
func TestLegacyFormat(t *testing.T) {
	w := cursor.NewWriter()
	w.PutI24(3) // vertices
	w.PutI24(4) // faces
	w.PutI16(1) // values per vertex
	w.PutI16(250)
	w.PutI16(-50)
	w.PutI16(0)

	c, err := Decode(w.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c.NumVertices != 3 || c.NumFaces != 4 {
		t.Errorf("counts = %d, %d; want 3, 4", c.NumVertices, c.NumFaces)
	}
	want := []float32{2.5, -0.5, 0}
	if !reflect.DeepEqual(c.Values, want) {
		t.Errorf("values = %v, want %v", c.Values, want)
	}
}

// TestUnsupportedValuesPerVertex verifies rejection in both format paths.
func TestUnsupportedValuesPerVertex(t *testing.T) {
	newFmt := cursor.NewWriter()
	newFmt.PutI32(NewFormatMagic)
	newFmt.PutI32(1)
	newFmt.PutI32(0)
	newFmt.PutI32(3) // unsupported
	newFmt.PutF32(1)

	legacy := cursor.NewWriter()
	legacy.PutI24(1)
	legacy.PutI24(0)
	legacy.PutI16(2) // unsupported
	legacy.PutI16(100)

	for name, data := range map[string][]byte{"new": newFmt.Bytes(), "legacy": legacy.Bytes()} {
		if _, err := Decode(data); !errors.Is(err, ErrUnsupportedValuesPerVertex) {
			t.Errorf("%s format: err = %v, want ErrUnsupportedValuesPerVertex", name, err)
		}
	}
}

// TestTruncation verifies that removing the last byte fails with a
// truncation error instead of returning a short structure.
func TestTruncation(t *testing.T) {
	c := &Curv{NumFaces: 0, Values: []float32{1, 2, 3}}
	data := c.Encode()

	if _, err := Decode(data[:len(data)-1]); !errors.Is(err, cursor.ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

// TestCorruptCounts verifies that a corrupt header declaring a negative
// or oversized vertex count fails with an error instead of panicking or
// allocating gigabytes.
func TestCorruptCounts(t *testing.T) {
	neg := cursor.NewWriter()
	neg.PutI32(NewFormatMagic)
	neg.PutI32(-1) // vertex count
	neg.PutI32(0)
	neg.PutI32(1)
	if _, err := Decode(neg.Bytes()); err == nil {
		t.Error("negative vertex count decoded, want error")
	}

	huge := cursor.NewWriter()
	huge.PutI32(NewFormatMagic)
	huge.PutI32(1 << 30) // far more values than bytes follow
	huge.PutI32(0)
	huge.PutI32(1)
	if _, err := Decode(huge.Bytes()); !errors.Is(err, cursor.ErrTruncated) {
		t.Errorf("oversized vertex count: err = %v, want ErrTruncated", err)
	}

	legacy := cursor.NewWriter()
	legacy.PutI24(16777214) // maximum-ish 24-bit count, no values follow
	legacy.PutI24(0)
	legacy.PutI16(1)
	if _, err := Decode(legacy.Bytes()); !errors.Is(err, cursor.ErrTruncated) {
		t.Errorf("oversized legacy count: err = %v, want ErrTruncated", err)
	}
}

// TestFileRoundTrip verifies the file helpers.
func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lh.thickness")
	orig := &Curv{NumVertices: 2, NumFaces: 1, ValuesPerVertex: 1, Values: []float32{1.25, 2.75}}

	if err := orig.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !reflect.DeepEqual(orig, got) {
		t.Errorf("file round trip mismatch:\n got %+v\nwant %+v", got, orig)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing")); err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want os.ErrNotExist", err)
	}
}
