// Package mgh reads and writes FreeSurfer MGH volume files and their
// gzip-compressed MGZ variant. An MGH file stores a 4-dimensional voxel
// grid (width x height x depth x frames) of a single element type,
// preceded by a fixed-size header that optionally carries the geometry
// needed to map voxel indices to world (RAS) coordinates.
package mgh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/gzip"

	"neurofmt/internal/cursor"
)

// FormatVersion is the only MGH header version in use.
const FormatVersion int32 = 1

// dataStart is the byte offset at which the voxel buffer begins. The
// header is padded with zeros up to this offset.
const dataStart = 284

// footerSize is the byte size of the optional scan-parameter footer
// (five float32 fields).
const footerSize = 20

// DataType enumerates the voxel element types an MGH file can carry.
type DataType int32

const (
	DTypeUInt8   DataType = 0
	DTypeInt32   DataType = 1
	DTypeFloat32 DataType = 3
	DTypeInt16   DataType = 4
)

// String returns the FreeSurfer name of the data type.
func (d DataType) String() string {
	switch d {
	case DTypeUInt8:
		return "MRI_UCHAR"
	case DTypeInt32:
		return "MRI_INT"
	case DTypeFloat32:
		return "MRI_FLOAT"
	case DTypeInt16:
		return "MRI_SHORT"
	default:
		return fmt.Sprintf("DataType(%d)", int32(d))
	}
}

// size returns the byte width of one element, or 0 for unknown types.
func (d DataType) size() int {
	switch d {
	case DTypeUInt8:
		return 1
	case DTypeInt16:
		return 2
	case DTypeInt32, DTypeFloat32:
		return 4
	default:
		return 0
	}
}

var (
	// ErrBadVersion is returned when the header version is not 1.
	ErrBadVersion = errors.New("mgh: unsupported format version")

	// ErrUnsupportedDataType is returned for element type codes other
	// than MRI_UCHAR, MRI_INT, MRI_FLOAT and MRI_SHORT.
	ErrUnsupportedDataType = errors.New("mgh: unsupported data type")

	// ErrCompression is returned when the MGZ gzip container cannot be
	// decompressed.
	ErrCompression = errors.New("mgz: decompression failed")
)

// gzipMagic is the two-byte signature that identifies the MGZ container.
var gzipMagic = []byte{0x1f, 0x8b}

// Header is the fixed MGH header. Spacing, Mdc and CRAS are only
// meaningful when GoodRAS is true; a file written with GoodRAS false
// carries no stored values for them.
//
// Mdc holds the direction cosines row-major as stored on disk:
// x_r,x_a,x_s, y_r,y_a,y_s, z_r,z_a,z_s. Each stored row is one column
// of the direction matrix, the world direction of that voxel axis.
type Header struct {
	Version   int32
	Width     int32
	Height    int32
	Depth     int32
	NumFrames int32
	DataType  DataType
	DOF       int32
	GoodRAS   bool
	Spacing   [3]float32
	Mdc       [9]float32
	CRAS      [3]float32
}

// NumVoxels returns the total element count of the voxel buffer. The
// product is computed with overflow checks: dimensions that multiply
// beyond the int range saturate to math.MaxInt instead of wrapping, so
// a corrupt header can never make the count look small.
func (h *Header) NumVoxels() int {
	n := 1
	for _, d := range [4]int32{h.Width, h.Height, h.Depth, h.NumFrames} {
		if d <= 0 {
			return 0
		}
		if n > math.MaxInt/int(d) {
			return math.MaxInt
		}
		n *= int(d)
	}
	return n
}

// Footer is the optional trailing block of scan parameters, present only
// when bytes remain after the voxel buffer.
type Footer struct {
	TR        float32 // repetition time, ms
	FlipAngle float32 // radians
	TE        float32 // echo time, ms
	TI        float32 // inversion time, ms
	FOV       float32 // field of view
}

// Volume is a decoded MGH/MGZ file. Exactly one of U8, I32, F32, I16 is
// non-nil, matching Header.DataType. Voxels are stored column-fastest:
// the index of (col, row, slice, frame) is
// col + Width*(row + Height*(slice + Depth*frame)).
type Volume struct {
	Header Header
	U8     []uint8
	I32    []int32
	F32    []float32
	I16    []int16
	Footer *Footer
}

// At returns the voxel at (col, row, slice, frame) as a float64,
// regardless of the underlying element type.
func (v *Volume) At(col, row, slice, frame int) float64 {
	i := col + int(v.Header.Width)*(row+int(v.Header.Height)*(slice+int(v.Header.Depth)*frame))
	switch v.Header.DataType {
	case DTypeUInt8:
		return float64(v.U8[i])
	case DTypeInt32:
		return float64(v.I32[i])
	case DTypeFloat32:
		return float64(v.F32[i])
	case DTypeInt16:
		return float64(v.I16[i])
	}
	return 0
}

// Decode parses an MGH volume from data. A gzip-compressed (MGZ) input
// is detected by its leading magic bytes and decompressed transparently.
func Decode(data []byte) (*Volume, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCompression, err)
		}
		data = raw
	}
	return decodeRaw(data)
}

func decodeRaw(data []byte) (*Volume, error) {
	r := cursor.NewReader(data)

	hdr, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}

	// The voxel buffer starts at a fixed offset; the remainder of the
	// header region is padding.
	if err := r.Skip(dataStart - r.Pos()); err != nil {
		return nil, fmt.Errorf("mgh: header padding: %w", err)
	}

	vol := &Volume{Header: *hdr}
	n := hdr.NumVoxels()
	elem := hdr.DataType.size()
	// Compare counts rather than byte sizes so the required size cannot
	// overflow; the saturated voxel count from a corrupt header always
	// exceeds whatever remains in the buffer.
	if n > r.Remaining()/elem {
		need := math.MaxInt
		if n <= math.MaxInt/elem {
			need = n * elem
		}
		return nil, &cursor.TruncatedError{Offset: r.Pos(), Need: need, Have: r.Remaining()}
	}

	switch hdr.DataType {
	case DTypeUInt8:
		buf, _ := r.Bytes(n)
		vol.U8 = append([]uint8(nil), buf...)
	case DTypeInt32:
		vol.I32 = make([]int32, n)
		for i := range vol.I32 {
			vol.I32[i], _ = r.I32()
		}
	case DTypeFloat32:
		vol.F32 = make([]float32, n)
		for i := range vol.F32 {
			vol.F32[i], _ = r.F32()
		}
	case DTypeInt16:
		vol.I16 = make([]int16, n)
		for i := range vol.I16 {
			vol.I16[i], _ = r.I16()
		}
	}

	// Scan parameters trail the voxel buffer when present. Fewer than
	// five float32 values remaining means there is no footer.
	if r.Remaining() >= footerSize {
		var f Footer
		for _, dst := range []*float32{&f.TR, &f.FlipAngle, &f.TE, &f.TI, &f.FOV} {
			*dst, _ = r.F32()
		}
		vol.Footer = &f
	}

	return vol, nil
}

func decodeHeader(r *cursor.Reader) (*Header, error) {
	hdr := &Header{}
	var err error

	if hdr.Version, err = r.I32(); err != nil {
		return nil, fmt.Errorf("mgh: version: %w", err)
	}
	if hdr.Version != FormatVersion {
		return nil, fmt.Errorf("mgh: version %d: %w", hdr.Version, ErrBadVersion)
	}

	dims := []struct {
		name string
		dst  *int32
	}{
		{"width", &hdr.Width},
		{"height", &hdr.Height},
		{"depth", &hdr.Depth},
		{"frame count", &hdr.NumFrames},
	}
	for _, d := range dims {
		if *d.dst, err = r.I32(); err != nil {
			return nil, fmt.Errorf("mgh: %s: %w", d.name, err)
		}
		if *d.dst < 0 {
			return nil, fmt.Errorf("mgh: negative %s %d", d.name, *d.dst)
		}
	}

	dtype, err := r.I32()
	if err != nil {
		return nil, fmt.Errorf("mgh: data type: %w", err)
	}
	hdr.DataType = DataType(dtype)
	if hdr.DataType.size() == 0 {
		return nil, fmt.Errorf("mgh: data type code %d: %w", dtype, ErrUnsupportedDataType)
	}

	if hdr.DOF, err = r.I32(); err != nil {
		return nil, fmt.Errorf("mgh: degrees of freedom: %w", err)
	}

	goodRAS, err := r.I16()
	if err != nil {
		return nil, fmt.Errorf("mgh: goodRASFlag: %w", err)
	}
	hdr.GoodRAS = goodRAS != 0

	if hdr.GoodRAS {
		fields := make([]*float32, 0, 15)
		for i := range hdr.Spacing {
			fields = append(fields, &hdr.Spacing[i])
		}
		for i := range hdr.Mdc {
			fields = append(fields, &hdr.Mdc[i])
		}
		for i := range hdr.CRAS {
			fields = append(fields, &hdr.CRAS[i])
		}
		for i, dst := range fields {
			if *dst, err = r.F32(); err != nil {
				return nil, fmt.Errorf("mgh: RAS field %d: %w", i, err)
			}
		}
	}

	return hdr, nil
}

// Encode serializes v as an uncompressed MGH file. The RAS block is
// always written and the goodRASFlag set, so the header geometry fields
// must be populated by the caller.
func (v *Volume) Encode() []byte {
	h := v.Header
	w := cursor.NewWriter()
	w.PutI32(FormatVersion)
	w.PutI32(h.Width)
	w.PutI32(h.Height)
	w.PutI32(h.Depth)
	w.PutI32(h.NumFrames)
	w.PutI32(int32(h.DataType))
	w.PutI32(h.DOF)
	w.PutI16(1)
	for _, f := range h.Spacing {
		w.PutF32(f)
	}
	for _, f := range h.Mdc {
		w.PutF32(f)
	}
	for _, f := range h.CRAS {
		w.PutF32(f)
	}
	w.Pad(dataStart - w.Len())

	switch h.DataType {
	case DTypeUInt8:
		w.PutBytes(v.U8)
	case DTypeInt32:
		for _, x := range v.I32 {
			w.PutI32(x)
		}
	case DTypeFloat32:
		for _, x := range v.F32 {
			w.PutF32(x)
		}
	case DTypeInt16:
		for _, x := range v.I16 {
			w.PutI16(x)
		}
	}

	if v.Footer != nil {
		f := v.Footer
		for _, x := range []float32{f.TR, f.FlipAngle, f.TE, f.TI, f.FOV} {
			w.PutF32(x)
		}
	}
	return w.Bytes()
}

// EncodeGZ serializes v as an MGZ container at the given gzip level
// (gzip.DefaultCompression when level is 0).
func (v *Volume) EncodeGZ(level int) ([]byte, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	if _, err := zw.Write(v.Encode()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	return buf.Bytes(), nil
}

// ReadFile reads and decodes an MGH or MGZ file from disk. The container
// variant is detected from the content, not the file extension.
func ReadFile(path string) (*Volume, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mgh: read %s: %w", path, err)
	}
	return Decode(data)
}

// WriteFile encodes v and writes it to disk, gzip-compressing when
// compressed is true.
func (v *Volume) WriteFile(path string, compressed bool, level int) error {
	var data []byte
	if compressed {
		var err error
		if data, err = v.EncodeGZ(level); err != nil {
			return err
		}
	} else {
		data = v.Encode()
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("mgh: write %s: %w", path, err)
	}
	return nil
}
