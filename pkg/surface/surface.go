// Package surface reads and writes FreeSurfer surf files, which store a
// triangulated brain surface mesh: x,y,z coordinates per vertex and three
// 0-based vertex indices per face.
//
// The file starts with a 24-bit magic number. Only the triangle format
// (16777214) is fully supported; the historical quad formats (16777215 and
// 16777213) are recognized but rejected, since their count encoding is
// ambiguous and modern data is exclusively triangular.
package surface

import (
	"errors"
	"fmt"
	"os"

	"neurofmt/internal/cursor"
)

// 24-bit magic numbers used by the surf format family.
const (
	TriangleMagic int32 = 16777214
	QuadMagic     int32 = 16777215
	NewQuadMagic  int32 = 16777213
)

var (
	// ErrBadMagic is returned when the leading 24-bit magic matches no
	// known surf format variant.
	ErrBadMagic = errors.New("surf: bad magic number")

	// ErrUnsupportedQuadFormat is returned for the legacy quad-mesh magics.
	ErrUnsupportedQuadFormat = errors.New("surf: legacy quad format is not supported")

	// ErrFaceIndexOutOfRange is returned when a face references a vertex
	// index that is negative or beyond the vertex count.
	ErrFaceIndexOutOfRange = errors.New("surf: face index out of range")
)

// Mesh is a triangulated surface. Vertices holds x,y,z coordinate triples
// in vertex order; Faces holds three vertex indices per triangle.
type Mesh struct {
	Comment  string
	Vertices []float32
	Faces    []int32
}

// NumVertices returns the number of vertices in the mesh.
func (m *Mesh) NumVertices() int { return len(m.Vertices) / 3 }

// NumFaces returns the number of triangles in the mesh.
func (m *Mesh) NumFaces() int { return len(m.Faces) / 3 }

// Decode parses a surf file from data.
func Decode(data []byte) (*Mesh, error) {
	r := cursor.NewReader(data)

	magic, err := r.I24()
	if err != nil {
		return nil, fmt.Errorf("surf: magic: %w", err)
	}
	switch magic {
	case TriangleMagic:
	case QuadMagic, NewQuadMagic:
		return nil, fmt.Errorf("surf: magic %d: %w", magic, ErrUnsupportedQuadFormat)
	default:
		return nil, fmt.Errorf("surf: magic %d: %w", magic, ErrBadMagic)
	}

	// The creator comment line ends with a newline; FreeSurfer tools write
	// a second one, which is consumed when present.
	comment, err := r.Until('\n')
	if err != nil {
		return nil, fmt.Errorf("surf: comment: %w", err)
	}
	if b, err := r.PeekBytes(1); err == nil && b[0] == '\n' {
		r.Skip(1)
	}

	numVertices, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("surf: vertex count: %w", err)
	}
	numFaces, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("surf: face count: %w", err)
	}
	if numVertices < 0 || numFaces < 0 {
		return nil, fmt.Errorf("surf: negative counts %d, %d: %w", numVertices, numFaces, ErrBadMagic)
	}

	// Counts are validated against the remaining bytes before allocating:
	// the multiplications are done in int, not int32, so a huge declared
	// count cannot wrap negative, and a corrupt header cannot trigger a
	// multi-gigabyte allocation.
	numCoords := int(numVertices) * 3
	if need := numCoords * 4; r.Remaining() < need {
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: need, Have: r.Remaining()}
	}
	vertices := make([]float32, numCoords)
	for i := range vertices {
		vertices[i], err = r.F32()
		if err != nil {
			return nil, fmt.Errorf("surf: vertex coordinate %d: %w", i, err)
		}
	}

	numIndices := int(numFaces) * 3
	if need := numIndices * 4; r.Remaining() < need {
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: need, Have: r.Remaining()}
	}
	faces := make([]int32, numIndices)
	for i := range faces {
		faces[i], err = r.I32()
		if err != nil {
			return nil, fmt.Errorf("surf: face index %d: %w", i, err)
		}
		if faces[i] < 0 || faces[i] >= numVertices {
			return nil, fmt.Errorf("surf: face index %d = %d with %d vertices: %w",
				i, faces[i], numVertices, ErrFaceIndexOutOfRange)
		}
	}

	return &Mesh{
		Comment:  string(comment),
		Vertices: vertices,
		Faces:    faces,
	}, nil
}

// Encode serializes m as a triangle-format surf file. Face indices are
// validated against the vertex count before anything is written.
func (m *Mesh) Encode() ([]byte, error) {
	numVertices := int32(m.NumVertices())
	for i, f := range m.Faces {
		if f < 0 || f >= numVertices {
			return nil, fmt.Errorf("surf: face index %d = %d with %d vertices: %w",
				i, f, numVertices, ErrFaceIndexOutOfRange)
		}
	}

	w := cursor.NewWriter()
	w.PutI24(TriangleMagic)
	w.PutString(m.Comment)
	w.PutString("\n\n")
	w.PutI32(numVertices)
	w.PutI32(int32(m.NumFaces()))
	for _, v := range m.Vertices {
		w.PutF32(v)
	}
	for _, f := range m.Faces {
		w.PutI32(f)
	}
	return w.Bytes(), nil
}

// ReadFile reads and decodes a surf file from disk.
func ReadFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("surf: read %s: %w", path, err)
	}
	return Decode(data)
}

// WriteFile encodes m and writes it to disk.
func (m *Mesh) WriteFile(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("surf: write %s: %w", path, err)
	}
	return nil
}
