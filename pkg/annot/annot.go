// Package annot reads and writes FreeSurfer annot files, which store a
// cortical parcellation: one annotation code per mesh vertex plus a color
// table describing the brain regions. Each table entry carries a region
// name and an RGBA color; the annotation code identifying the region is
// never stored, it is always derived from the color channels as
// R + G*256 + B*65536 (alpha does not participate).
package annot

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"neurofmt/internal/cursor"
)

// extendedTableVersion is the only supported versioned color table layout.
// In the file it appears negated, as -2.
const extendedTableVersion int32 = 2

// UnlabeledCode is the conventional annotation code for vertices that
// belong to no region.
const UnlabeledCode int32 = -1

var (
	// ErrUnsupportedTableVersion is returned for versioned color tables
	// other than version 2.
	ErrUnsupportedTableVersion = errors.New("annot: unsupported color table version")

	// ErrTableCountMismatch is returned when the extended table's two
	// entry count fields disagree.
	ErrTableCountMismatch = errors.New("annot: color table entry count mismatch")

	// ErrDuplicateAnnotationCode marks a color table in which two entries
	// derive the same annotation code. Decode still returns the parsed
	// parcellation alongside this error: the per-vertex codes remain
	// usable, only name lookups are ambiguous.
	ErrDuplicateAnnotationCode = errors.New("annot: duplicate annotation code in color table")
)

// DuplicateCodeError identifies the two table entries that collapse to
// the same derived annotation code.
type DuplicateCodeError struct {
	Code           int32
	FirstEntry     int
	DuplicateEntry int
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("annot: entries %d and %d both derive code %d", e.FirstEntry, e.DuplicateEntry, e.Code)
}

func (e *DuplicateCodeError) Unwrap() error { return ErrDuplicateAnnotationCode }

// TableEntry is one region in a color table. Index is the structure index
// from the extended table format; for the original format it is the
// position in the file. Unused or superseded slots are kept as-is so that
// structure indices stay stable.
type TableEntry struct {
	Index      int32
	Name       string
	R, G, B, A uint8
}

// Code derives the 24-bit annotation code for the entry.
func (e *TableEntry) Code() int32 {
	return int32(e.R) + int32(e.G)<<8 + int32(e.B)<<16
}

// ColorTable is an ordered list of region entries, optionally with the
// name of the source color table file recorded by the producing tool.
type ColorTable struct {
	Filename string
	Entries  []TableEntry
}

// Annot is a parsed parcellation. VertexIndices and VertexCodes are
// parallel: VertexCodes[i] is the annotation code of vertex
// VertexIndices[i]. Table is nil when the file carries no color table,
// in which case the codes are opaque.
type Annot struct {
	VertexIndices []int32
	VertexCodes   []int32
	Table         *ColorTable
}

// Decode parses an annot file from data.
//
// A color table whose entries derive duplicate annotation codes is an
// inconsistency, not a hard failure: Decode then returns both the usable
// parcellation and a *DuplicateCodeError.
func Decode(data []byte) (*Annot, error) {
	r := cursor.NewReader(data)

	numVertices, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("annot: vertex count: %w", err)
	}
	if numVertices < 0 {
		return nil, fmt.Errorf("annot: negative vertex count %d", numVertices)
	}
	// Each vertex contributes an (index, code) int32 pair; validate the
	// declared count against the remaining bytes before allocating.
	if need := int(numVertices) * 8; r.Remaining() < need {
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: need, Have: r.Remaining()}
	}

	indices := make([]int32, numVertices)
	codes := make([]int32, numVertices)
	for i := int32(0); i < numVertices; i++ {
		if indices[i], err = r.I32(); err != nil {
			return nil, fmt.Errorf("annot: vertex index %d: %w", i, err)
		}
		if codes[i], err = r.I32(); err != nil {
			return nil, fmt.Errorf("annot: vertex code %d: %w", i, err)
		}
	}

	a := &Annot{VertexIndices: indices, VertexCodes: codes}

	hasTable, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("annot: color table flag: %w", err)
	}
	if hasTable == 0 {
		return a, nil
	}

	// The next int32 disambiguates the two table sub-formats: a positive
	// value is the entry count of the original layout, a negative one is
	// the negated version of the extended layout.
	gate, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("annot: color table gate: %w", err)
	}
	switch {
	case gate > 0:
		a.Table, err = decodeOriginalTable(r, gate)
	case -gate == extendedTableVersion:
		a.Table, err = decodeExtendedTable(r)
	default:
		return nil, fmt.Errorf("annot: color table version %d: %w", -gate, ErrUnsupportedTableVersion)
	}
	if err != nil {
		return nil, err
	}

	if dup := a.Table.findDuplicateCode(); dup != nil {
		return a, dup
	}
	return a, nil
}

// decodeOriginalTable parses the unversioned table layout: per entry a
// length-prefixed name and four int32 color channels.
func decodeOriginalTable(r *cursor.Reader, numEntries int32) (*ColorTable, error) {
	// An entry is at least a name length prefix plus four channels; a
	// count the remaining bytes cannot hold is a truncation.
	const minEntrySize = 4 + 16
	if int(numEntries) > r.Remaining()/minEntrySize {
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: int(numEntries) * minEntrySize, Have: r.Remaining()}
	}
	entries := make([]TableEntry, numEntries)
	for i := int32(0); i < numEntries; i++ {
		name, err := readPrefixedString(r)
		if err != nil {
			return nil, fmt.Errorf("annot: table entry %d name: %w", i, err)
		}
		rgba, err := readChannels(r)
		if err != nil {
			return nil, fmt.Errorf("annot: table entry %d: %w", i, err)
		}
		entries[i] = TableEntry{Index: i, Name: name, R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}
	}
	return &ColorTable{Entries: entries}, nil
}

// decodeExtendedTable parses the version 2 layout. The version marker has
// already been consumed by the caller.
func decodeExtendedTable(r *cursor.Reader) (*ColorTable, error) {
	numEntries, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("annot: table entry count: %w", err)
	}
	filename, err := readPrefixedString(r)
	if err != nil {
		return nil, fmt.Errorf("annot: table filename: %w", err)
	}
	// The count is stored twice; the second copy exists only so readers
	// can validate the first.
	numEntriesAgain, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("annot: duplicate table entry count: %w", err)
	}
	if numEntriesAgain != numEntries {
		return nil, fmt.Errorf("annot: entry counts %d and %d: %w", numEntries, numEntriesAgain, ErrTableCountMismatch)
	}
	if numEntries < 0 {
		return nil, fmt.Errorf("annot: negative table entry count %d", numEntries)
	}
	// Structure index, name length prefix and four channels per entry.
	const minEntrySize = 4 + 4 + 16
	if int(numEntries) > r.Remaining()/minEntrySize {
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: int(numEntries) * minEntrySize, Have: r.Remaining()}
	}

	entries := make([]TableEntry, numEntries)
	for i := int32(0); i < numEntries; i++ {
		idx, err := r.I32()
		if err != nil {
			return nil, fmt.Errorf("annot: table entry %d index: %w", i, err)
		}
		name, err := readPrefixedString(r)
		if err != nil {
			return nil, fmt.Errorf("annot: table entry %d name: %w", i, err)
		}
		rgba, err := readChannels(r)
		if err != nil {
			return nil, fmt.Errorf("annot: table entry %d: %w", i, err)
		}
		entries[i] = TableEntry{Index: idx, Name: name, R: rgba[0], G: rgba[1], B: rgba[2], A: rgba[3]}
	}
	return &ColorTable{Filename: filename, Entries: entries}, nil
}

// readPrefixedString reads an int32 length followed by that many bytes.
// FreeSurfer includes the terminating NUL in the length; one trailing NUL
// is stripped if present.
func readPrefixedString(r *cursor.Reader) (string, error) {
	n, err := r.I32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("annot: negative string length %d: %w", n, cursor.ErrTruncated)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(b), "\x00"), nil
}

// readChannels reads the four int32 color channels of one table entry.
func readChannels(r *cursor.Reader) ([4]uint8, error) {
	var rgba [4]uint8
	for j, field := range [4]string{"red", "green", "blue", "alpha"} {
		v, err := r.I32()
		if err != nil {
			return rgba, fmt.Errorf("%s channel: %w", field, err)
		}
		rgba[j] = uint8(v)
	}
	return rgba, nil
}

func (t *ColorTable) findDuplicateCode() *DuplicateCodeError {
	seen := make(map[int32]int, len(t.Entries))
	for i := range t.Entries {
		code := t.Entries[i].Code()
		if first, ok := seen[code]; ok {
			return &DuplicateCodeError{Code: code, FirstEntry: first, DuplicateEntry: i}
		}
		seen[code] = i
	}
	return nil
}

// Encode serializes a in the extended (version 2) table layout. Channel
// values are re-derived from the stored RGBA bytes; any code a caller may
// have computed elsewhere is ignored, so a corrupt code can never
// desynchronize from the colors. When VertexIndices is nil, vertices are
// numbered 0..n-1.
func (a *Annot) Encode() []byte {
	w := cursor.NewWriter()
	w.PutI32(int32(len(a.VertexCodes)))
	for i, code := range a.VertexCodes {
		if a.VertexIndices != nil {
			w.PutI32(a.VertexIndices[i])
		} else {
			w.PutI32(int32(i))
		}
		w.PutI32(code)
	}

	if a.Table == nil {
		w.PutI32(0)
		return w.Bytes()
	}

	w.PutI32(1)
	w.PutI32(-extendedTableVersion)
	w.PutI32(int32(len(a.Table.Entries)))
	putPrefixedString(w, a.Table.Filename)
	w.PutI32(int32(len(a.Table.Entries)))
	for _, e := range a.Table.Entries {
		w.PutI32(e.Index)
		putPrefixedString(w, e.Name)
		w.PutI32(int32(e.R))
		w.PutI32(int32(e.G))
		w.PutI32(int32(e.B))
		w.PutI32(int32(e.A))
	}
	return w.Bytes()
}

func putPrefixedString(w *cursor.Writer, s string) {
	w.PutI32(int32(len(s) + 1))
	w.PutString(s)
	w.PutU8(0)
}

// Regions returns the region names of the color table, in table order.
// A table-less parcellation has no regions.
func (a *Annot) Regions() []string {
	if a.Table == nil {
		return nil
	}
	names := make([]string, len(a.Table.Entries))
	for i, e := range a.Table.Entries {
		names[i] = e.Name
	}
	return names
}

// RegionVertices returns the indices of all vertices assigned to the
// named region, or an error if the region is not in the color table.
func (a *Annot) RegionVertices(region string) ([]int32, error) {
	if a.Table == nil {
		return nil, fmt.Errorf("annot: no color table, region %q unknown", region)
	}
	var code int32
	found := false
	for i := range a.Table.Entries {
		if a.Table.Entries[i].Name == region {
			code = a.Table.Entries[i].Code()
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("annot: no region named %q in color table", region)
	}

	var verts []int32
	for i, c := range a.VertexCodes {
		if c == code {
			verts = append(verts, a.vertexAt(i))
		}
	}
	return verts, nil
}

// VertexRegions returns the region name per vertex, in vertex order.
// Vertices whose code matches no table entry get an empty name.
func (a *Annot) VertexRegions() []string {
	names := make([]string, len(a.VertexCodes))
	if a.Table == nil {
		return names
	}
	byCode := make(map[int32]string, len(a.Table.Entries))
	for i := range a.Table.Entries {
		byCode[a.Table.Entries[i].Code()] = a.Table.Entries[i].Name
	}
	for i, c := range a.VertexCodes {
		names[i] = byCode[c]
	}
	return names
}

// VertexColors returns per-vertex color bytes in vertex order: RGB
// triples, or RGBA quadruples when alpha is true. Vertices with no
// matching table entry are colored with the entry at unmatchedIndex.
func (a *Annot) VertexColors(alpha bool, unmatchedIndex int) ([]uint8, error) {
	if a.Table == nil {
		return nil, errors.New("annot: no color table")
	}
	if unmatchedIndex < 0 || unmatchedIndex >= len(a.Table.Entries) {
		return nil, fmt.Errorf("annot: unmatched region index %d out of range", unmatchedIndex)
	}
	byCode := make(map[int32]*TableEntry, len(a.Table.Entries))
	for i := range a.Table.Entries {
		byCode[a.Table.Entries[i].Code()] = &a.Table.Entries[i]
	}

	stride := 3
	if alpha {
		stride = 4
	}
	out := make([]uint8, 0, stride*len(a.VertexCodes))
	for _, c := range a.VertexCodes {
		e, ok := byCode[c]
		if !ok {
			e = &a.Table.Entries[unmatchedIndex]
		}
		out = append(out, e.R, e.G, e.B)
		if alpha {
			out = append(out, e.A)
		}
	}
	return out, nil
}

func (a *Annot) vertexAt(i int) int32 {
	if a.VertexIndices != nil {
		return a.VertexIndices[i]
	}
	return int32(i)
}

// ReadFile reads and decodes an annot file from disk.
func ReadFile(path string) (*Annot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("annot: read %s: %w", path, err)
	}
	return Decode(data)
}

// WriteFile encodes a and writes it to disk.
func (a *Annot) WriteFile(path string) error {
	if err := os.WriteFile(path, a.Encode(), 0644); err != nil {
		return fmt.Errorf("annot: write %s: %w", path, err)
	}
	return nil
}
