package mgh

import "gonum.org/v1/gonum/mat"

// Vox2Ras derives the 4x4 voxel-to-world affine from the header geometry.
//
// The upper-left 3x3 block is the direction cosine matrix with each column
// scaled by the spacing of its voxel axis. The translation column places
// the volume's center voxel (Width/2, Height/2, Depth/2) at CRAS:
//
//	t = CRAS - scaledMdc * centerVoxel
//
// The matrix is recomputed on every call; it is never cached, since any
// header mutation would invalidate a stored copy. A header without valid
// RAS information (GoodRAS false) yields the identity matrix.
func (h *Header) Vox2Ras() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	m.Set(3, 3, 1)

	if !h.GoodRAS {
		for i := 0; i < 3; i++ {
			m.Set(i, i, 1)
		}
		return m
	}

	// Mdc is stored row-major per voxel axis, so stored row j is column j
	// of the direction matrix.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, float64(h.Mdc[3*j+i])*float64(h.Spacing[j]))
		}
	}

	center := []float64{
		float64(h.Width) / 2,
		float64(h.Height) / 2,
		float64(h.Depth) / 2,
	}
	for i := 0; i < 3; i++ {
		t := float64(h.CRAS[i])
		for j := 0; j < 3; j++ {
			t -= m.At(i, j) * center[j]
		}
		m.Set(i, 3, t)
	}
	return m
}
