// Package raster reads single bands of gridded rasters (GeoTIFF, Esri ASCII
// grid) together with their geographic bounds.
package raster

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

var (
	// ErrBandIndex is returned when a 1-based band index is 0 or exceeds the band count.
	ErrBandIndex = errors.New("raster: band index out of range")
	// ErrFormat is returned for truncated or malformed raster files.
	ErrFormat = errors.New("raster: malformed file")
	// ErrUnsupported is returned for valid files using features this package does not decode.
	ErrUnsupported = errors.New("raster: unsupported")
)

// ReadError reports a failure to open a raster or read one of its bands.
// Band is 0 when the failure happened before a band was selected.
type ReadError struct {
	Path string
	Band int
	Err  error
}

func (e *ReadError) Error() string {
	if e.Band != 0 || errors.Is(e.Err, ErrBandIndex) {
		return fmt.Sprintf("raster: read %s band %d: %v", e.Path, e.Band, e.Err)
	}
	return fmt.Sprintf("raster: open %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Bounds is the geographic extent of a raster, as rasterio reports it.
type Bounds struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

// Transform is the affine cell-to-coordinate mapping in GDAL order:
//
//	x = C + A*col + B*row
//	y = F + D*col + E*row
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// Identity is the transform of a raster without georeferencing.
var Identity = Transform{A: 1, E: 1}

// Apply maps a (fractional) cell position to coordinates.
func (t Transform) Apply(col, row float64) (x, y float64) {
	return t.C + t.A*col + t.B*row, t.F + t.D*col + t.E*row
}

// Invert maps coordinates back to a fractional cell position.
func (t Transform) Invert(x, y float64) (col, row float64, ok bool) {
	det := t.A*t.E - t.B*t.D
	if det == 0 {
		return 0, 0, false
	}
	dx, dy := x-t.C, y-t.F
	col = (t.E*dx - t.B*dy) / det
	row = (t.A*dy - t.D*dx) / det
	return col, row, true
}

// BoundsOf returns the extent of a width x height grid under t.
func BoundsOf(t Transform, width, height int) Bounds {
	return Bounds{
		Left:   t.C,
		Bottom: t.F + t.E*float64(height),
		Right:  t.C + t.A*float64(width),
		Top:    t.F,
	}
}

// Band is one band of a raster. Values are row-major, no-data cells are NaN.
type Band struct {
	Index     int
	Width     int
	Height    int
	Values    []float64
	Transform Transform
}

// At returns the value of cell (col, row).
func (b *Band) At(col, row int) float64 {
	return b.Values[row*b.Width+col]
}

// Bounds returns the band's geographic extent.
func (b *Band) Bounds() Bounds {
	return BoundsOf(b.Transform, b.Width, b.Height)
}

// Sample returns the value of the cell containing coordinate (x, y).
func (b *Band) Sample(x, y float64) (float64, bool) {
	c, r, ok := b.Transform.Invert(x, y)
	if !ok {
		return math.NaN(), false
	}
	col, row := int(math.Floor(c)), int(math.Floor(r))
	if col < 0 || row < 0 || col >= b.Width || row >= b.Height {
		return math.NaN(), false
	}
	return b.At(col, row), true
}

// Dataset is an open raster source.
type Dataset interface {
	// Count is the number of bands.
	Count() int
	Size() (width, height int)
	Transform() Transform
	Bounds() Bounds
	// ReadBand reads the band at 1-based index.
	ReadBand(index int) (*Band, error)
	Close() error
}

// Open opens a raster file, choosing the decoder by extension.
func Open(path string) (Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return openGeoTIFF(path)
	case ".asc":
		return openASCII(path)
	default:
		return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: extension %q", ErrUnsupported, filepath.Ext(path))}
	}
}

// ReadBand opens path, reads the band at 1-based index and closes the file.
func ReadBand(path string, index int) (*Band, error) {
	ds, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return ds.ReadBand(index)
}

func checkBand(path string, index, count int) error {
	if index < 1 || index > count {
		return &ReadError{Path: path, Band: index, Err: fmt.Errorf("%w: want 1..%d", ErrBandIndex, count)}
	}
	return nil
}

// Header limits, checked before anything is allocated.
const (
	maxDim   = 1 << 20
	maxCells = 1 << 27
)

// checkSize rejects grid dimensions a sane raster cannot have.
func checkSize(width, height int) error {
	if width <= 0 || height <= 0 || width > maxDim || height > maxDim {
		return fmt.Errorf("%w: image dimensions %dx%d", ErrFormat, width, height)
	}
	if int64(width)*int64(height) > maxCells {
		return fmt.Errorf("%w: %dx%d cells exceed %d", ErrFormat, width, height, maxCells)
	}
	return nil
}
