// Package label reads and writes FreeSurfer label files, a text format
// listing a subset of mesh vertices (or volume voxels), each with an
// optional coordinate and a scalar value. Labels are commonly used as
// masks, e.g. the cortex label marks all vertices that are part of the
// cortex and excludes the medial wall.
package label

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"neurofmt/internal/cursor"
)

var (
	// ErrMalformedRow is returned for a data row with the wrong field
	// count or an unparsable number.
	ErrMalformedRow = errors.New("label: malformed row")

	// ErrCountMismatch is returned when the number of data rows does not
	// match the declared entry count.
	ErrCountMismatch = errors.New("label: entry count mismatch")

	// ErrDuplicateVertex is returned when the same vertex index appears
	// in more than one row.
	ErrDuplicateVertex = errors.New("label: duplicate vertex index")
)

// Entry is one labeled vertex: its index, its x,y,z coordinate, and a
// scalar value (often 0 when the label is a pure mask).
type Entry struct {
	VertexIndex int32
	X, Y, Z     float32
	Value       float32
}

// Label is the parsed contents of a label file.
type Label struct {
	Comment string
	Entries []Entry
}

// Decode parses a label file from data. The expected layout is a `#`
// comment line, a line holding the entry count, and one five-field row
// per entry.
func Decode(data []byte) (*Label, error) {
	lines := strings.Split(string(data), "\n")
	// A trailing newline produces one empty final element; drop it so it
	// is not counted as a data row.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("label: header: %w", cursor.ErrTruncated)
	}

	comment := strings.TrimPrefix(lines[0], "#")
	comment = strings.TrimSpace(comment)

	count, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("label: line 2: entry count %q: %w", lines[1], ErrMalformedRow)
	}

	rows := lines[2:]
	if len(rows) != count {
		return nil, fmt.Errorf("label: declared %d entries, found %d rows: %w", count, len(rows), ErrCountMismatch)
	}

	entries := make([]Entry, 0, count)
	seen := make(map[int32]bool, count)
	for i, row := range rows {
		fields := strings.Fields(row)
		if len(fields) != 5 {
			return nil, fmt.Errorf("label: line %d: %d fields, want 5: %w", i+3, len(fields), ErrMalformedRow)
		}
		idx, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("label: line %d: vertex index %q: %w", i+3, fields[0], ErrMalformedRow)
		}
		var coords [4]float32
		for j, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("label: line %d: field %d %q: %w", i+3, j+2, f, ErrMalformedRow)
			}
			coords[j] = float32(v)
		}
		if seen[int32(idx)] {
			return nil, fmt.Errorf("label: line %d: vertex %d: %w", i+3, idx, ErrDuplicateVertex)
		}
		seen[int32(idx)] = true
		entries = append(entries, Entry{
			VertexIndex: int32(idx),
			X:           coords[0],
			Y:           coords[1],
			Z:           coords[2],
			Value:       coords[3],
		})
	}

	return &Label{Comment: comment, Entries: entries}, nil
}

// Encode serializes l. Round trips are value-identical but not required
// to be byte-identical: floats are written with the shortest decimal
// representation that survives a float32 parse.
func (l *Label) Encode() []byte {
	var sb strings.Builder
	comment := l.Comment
	if comment == "" {
		comment = "!ascii label"
	}
	fmt.Fprintf(&sb, "#%s\n", comment)
	fmt.Fprintf(&sb, "%d\n", len(l.Entries))
	for _, e := range l.Entries {
		fmt.Fprintf(&sb, "%d  %s  %s  %s %s\n",
			e.VertexIndex, f32(e.X), f32(e.Y), f32(e.Z), f32(e.Value))
	}
	return []byte(sb.String())
}

func f32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// Has reports whether the given vertex index is part of the label.
func (l *Label) Has(vertex int32) bool {
	for _, e := range l.Entries {
		if e.VertexIndex == vertex {
			return true
		}
	}
	return false
}

// Vertices returns the vertex indices of all entries, in file order.
func (l *Label) Vertices() []int32 {
	out := make([]int32, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = e.VertexIndex
	}
	return out
}

// ReadFile reads and decodes a label file from disk.
func ReadFile(path string) (*Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("label: read %s: %w", path, err)
	}
	return Decode(data)
}

// WriteFile encodes l and writes it to disk.
func (l *Label) WriteFile(path string) error {
	if err := os.WriteFile(path, l.Encode(), 0644); err != nil {
		return fmt.Errorf("label: write %s: %w", path, err)
	}
	return nil
}
