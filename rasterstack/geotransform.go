package rasterstack

import (
	"fmt"
	"math"
)

// GeoTransform holds the six affine coefficients mapping pixel space to
// world space, in GDAL order:
//
//	worldX = gt[0] + col*gt[1] + row*gt[2]
//	worldY = gt[3] + col*gt[4] + row*gt[5]
//
// gt[0], gt[3] locate the outer corner of the top-left pixel.
type GeoTransform [6]float64

// OutOfBoundsError reports a world coordinate outside the raster
// extent. Path generation drops such points with a count; it is only
// fatal when no points remain.
type OutOfBoundsError struct {
	X, Y     float64
	Row, Col int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("world coordinate (%g, %g) maps to pixel (row %d, col %d) outside the raster",
		e.X, e.Y, e.Row, e.Col)
}

// Mapper performs bidirectional pixel/world conversion for one raster
// extent. It also defines the canonical pixel-scan order shared by all
// grid-shaped outputs: row-major, top row first, left-to-right within a
// row. That order is the synchronization contract with the reference
// visualization image and never varies across output modes.
type Mapper struct {
	Transform     GeoTransform
	Width, Height int

	inv [4]float64
}

// NewMapper validates the transform and precomputes its inverse.
// Degenerate transforms (zero determinant, i.e. zero pixel size) are
// rejected here so conversion itself never fails.
func NewMapper(gt GeoTransform, width, height int) (*Mapper, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}

	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return nil, fmt.Errorf("degenerate geotransform %v: zero determinant", gt)
	}

	m := &Mapper{Transform: gt, Width: width, Height: height}
	m.inv[0] = gt[5] / det
	m.inv[1] = -gt[2] / det
	m.inv[2] = -gt[4] / det
	m.inv[3] = gt[1] / det
	return m, nil
}

// PixelToWorld returns the world coordinate of the cell centre at
// (row, col).
func (m *Mapper) PixelToWorld(row, col int) (float64, float64) {
	gt := m.Transform
	fc := float64(col) + 0.5
	fr := float64(row) + 0.5
	x := gt[0] + fc*gt[1] + fr*gt[2]
	y := gt[3] + fc*gt[4] + fr*gt[5]
	return x, y
}

// WorldToPixel returns the pixel containing the world coordinate,
// failing with OutOfBoundsError when it falls outside
// [0, width) x [0, height).
func (m *Mapper) WorldToPixel(x, y float64) (int, int, error) {
	gt := m.Transform
	dx := x - gt[0]
	dy := y - gt[3]

	col := int(math.Floor(m.inv[0]*dx + m.inv[1]*dy))
	row := int(math.Floor(m.inv[2]*dx + m.inv[3]*dy))

	if col < 0 || col >= m.Width || row < 0 || row >= m.Height {
		return 0, 0, &OutOfBoundsError{X: x, Y: y, Row: row, Col: col}
	}
	return row, col, nil
}

// ScanIndex maps a pixel to its position in canonical scan order.
func (m *Mapper) ScanIndex(row, col int) int {
	return row*m.Width + col
}

// ScanPixel is the inverse of ScanIndex.
func (m *Mapper) ScanPixel(k int) (int, int) {
	return k / m.Width, k % m.Width
}
