// Package curv reads and writes FreeSurfer curv files, which store one
// scalar morphometry value (e.g. cortical thickness in mm) per mesh vertex.
//
// Two on-disk layouts exist. The new format starts with the reserved magic
// 16777215 followed by int32 counts and float32 values. The legacy format
// has no magic: counts are stored as 24-bit and 16-bit integers and values
// as int16 hundredths of a millimeter. Decoding accepts both; encoding
// always produces the new format.
package curv

import (
	"errors"
	"fmt"
	"os"

	"neurofmt/internal/cursor"
)

// NewFormatMagic identifies the new curv format when read as the leading int32.
const NewFormatMagic int32 = 16777215

// legacyScale converts legacy int16 values to millimeters.
const legacyScale = 100.0

// ErrUnsupportedValuesPerVertex is returned when the header declares more
// than one scalar per vertex. Only single-value curv data is supported.
var ErrUnsupportedValuesPerVertex = errors.New("curv: unsupported values-per-vertex, only 1 is supported")

// Curv holds a per-vertex scalar field together with the counts declared
// in its header.
type Curv struct {
	NumVertices     int32
	NumFaces        int32
	ValuesPerVertex int32
	Values          []float32
}

// Decode parses a curv file from data, dispatching on the leading int32:
// the reserved magic selects the new format, anything else the legacy one.
func Decode(data []byte) (*Curv, error) {
	r := cursor.NewReader(data)

	probe, err := r.PeekI32()
	if err != nil {
		return nil, fmt.Errorf("curv: magic: %w", err)
	}
	if probe == NewFormatMagic {
		return decodeNew(r)
	}
	return decodeLegacy(r)
}

func decodeNew(r *cursor.Reader) (*Curv, error) {
	if err := r.Skip(4); err != nil {
		return nil, fmt.Errorf("curv: magic: %w", err)
	}
	numVertices, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("curv: vertex count: %w", err)
	}
	if numVertices < 0 {
		return nil, fmt.Errorf("curv: negative vertex count %d", numVertices)
	}
	numFaces, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("curv: face count: %w", err)
	}
	valuesPerVertex, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("curv: values per vertex: %w", err)
	}
	if valuesPerVertex != 1 {
		return nil, fmt.Errorf("curv: values per vertex = %d: %w", valuesPerVertex, ErrUnsupportedValuesPerVertex)
	}

	// Validate the declared count against the remaining bytes before
	// allocating, so a corrupt header cannot trigger a huge allocation.
	if need := int(numVertices) * 4; r.Remaining() < need {
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: need, Have: r.Remaining()}
	}

	values := make([]float32, numVertices)
	for i := range values {
		values[i], err = r.F32()
		if err != nil {
			return nil, fmt.Errorf("curv: value %d: %w", i, err)
		}
	}

	return &Curv{
		NumVertices:     numVertices,
		NumFaces:        numFaces,
		ValuesPerVertex: valuesPerVertex,
		Values:          values,
	}, nil
}

// decodeLegacy parses the historical layout: 24-bit vertex and face counts,
// a 16-bit values-per-vertex field, and int16 values scaled by 1/100.
func decodeLegacy(r *cursor.Reader) (*Curv, error) {
	numVertices, err := r.I24()
	if err != nil {
		return nil, fmt.Errorf("curv: legacy vertex count: %w", err)
	}
	numFaces, err := r.I24()
	if err != nil {
		return nil, fmt.Errorf("curv: legacy face count: %w", err)
	}
	valuesPerVertex, err := r.I16()
	if err != nil {
		return nil, fmt.Errorf("curv: legacy values per vertex: %w", err)
	}
	if valuesPerVertex != 1 {
		return nil, fmt.Errorf("curv: legacy values per vertex = %d: %w", valuesPerVertex, ErrUnsupportedValuesPerVertex)
	}

	if need := int(numVertices) * 2; r.Remaining() < need {
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: need, Have: r.Remaining()}
	}

	values := make([]float32, numVertices)
	for i := range values {
		v, err := r.I16()
		if err != nil {
			return nil, fmt.Errorf("curv: legacy value %d: %w", i, err)
		}
		values[i] = float32(v) / legacyScale
	}

	return &Curv{
		NumVertices:     numVertices,
		NumFaces:        numFaces,
		ValuesPerVertex: int32(valuesPerVertex),
		Values:          values,
	}, nil
}

// Encode serializes c in the new curv format. The vertex count is taken
// from the values slice, not the header field, so a caller-built Curv
// cannot declare a count that disagrees with its data.
func (c *Curv) Encode() []byte {
	w := cursor.NewWriter()
	w.PutI32(NewFormatMagic)
	w.PutI32(int32(len(c.Values)))
	w.PutI32(c.NumFaces)
	w.PutI32(1)
	for _, v := range c.Values {
		w.PutF32(v)
	}
	return w.Bytes()
}

// ReadFile reads and decodes a curv file from disk.
func ReadFile(path string) (*Curv, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("curv: read %s: %w", path, err)
	}
	return Decode(data)
}

// WriteFile encodes c and writes it to disk.
func (c *Curv) WriteFile(path string) error {
	if err := os.WriteFile(path, c.Encode(), 0644); err != nil {
		return fmt.Errorf("curv: write %s: %w", path, err)
	}
	return nil
}
