package raster

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskmap/internal/raster/rastertest"
)

func nan32() float32 { return float32(math.NaN()) }

// threeBands is a 3x2 grid with three bands; band b holds 10*b + cell index,
// and cell 4 of band 2 carries the no-data value.
func threeBands() [][]float32 {
	bands := make([][]float32, 3)
	for b := range bands {
		bands[b] = make([]float32, 6)
		for i := range bands[b] {
			bands[b][i] = float32(10*(b+1) + i)
		}
	}
	bands[1][4] = -9999
	return bands
}

func writeTIFF(t *testing.T, fx rastertest.GeoTIFF) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "WNV2022.tif")
	require.NoError(t, fx.Write(path))
	return path
}

// setNoData replaces the no-data marker and the cell carrying it.
func setNoData(s *rastertest.GeoTIFF, tag string, v float32) {
	s.NoData = tag
	s.Bands[1][4] = v
}

// patchLong overwrites the inline LONG value of tag in an encoded
// little-endian TIFF.
func patchLong(t *testing.T, b []byte, tag uint16, v uint32) {
	t.Helper()
	n := int(binary.LittleEndian.Uint16(b[8:]))
	for i := 0; i < n; i++ {
		p := 10 + 12*i
		if binary.LittleEndian.Uint16(b[p:]) == tag {
			binary.LittleEndian.PutUint32(b[p+8:], v)
			return
		}
	}
	t.Fatalf("tag %d not found", tag)
}

func baseFixture() rastertest.GeoTIFF {
	return rastertest.GeoTIFF{
		Width: 3, Height: 2,
		Bands:    threeBands(),
		Left:     10,
		Top:      52,
		CellSize: 0.5,
		NoData:   "-9999",
	}
}

func TestReadBand_GeoTIFFLayouts(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*rastertest.GeoTIFF)
	}{
		{"interleaved", func(*rastertest.GeoTIFF) {}},
		{"separate planes", func(s *rastertest.GeoTIFF) { s.Planar = 2 }},
		{"one row per strip", func(s *rastertest.GeoTIFF) { s.RowsPerStrip = 1 }},
		{"deflate", func(s *rastertest.GeoTIFF) { s.Deflate = true }},
		{"deflate with float predictor", func(s *rastertest.GeoTIFF) { s.Deflate = true; s.FloatPredictor = true }},
		{"big endian float predictor planar", func(s *rastertest.GeoTIFF) {
			s.BigEndian = true
			s.FloatPredictor = true
			s.Planar = 2
		}},
		{"lzw", func(s *rastertest.GeoTIFF) { s.LZW = true }},
		{"lzw separate planes one row per strip", func(s *rastertest.GeoTIFF) {
			s.LZW = true
			s.Planar = 2
			s.RowsPerStrip = 1
		}},
		{"tiled", func(s *rastertest.GeoTIFF) { s.TileWidth, s.TileHeight = 2, 1 }},
		{"tiled separate planes deflate", func(s *rastertest.GeoTIFF) {
			s.TileWidth, s.TileHeight = 2, 2
			s.Planar = 2
			s.Deflate = true
		}},
		{"float64", func(s *rastertest.GeoTIFF) { s.Bits = 64 }},
		{"float64 float predictor big endian", func(s *rastertest.GeoTIFF) {
			s.Bits = 64
			s.FloatPredictor = true
			s.BigEndian = true
			s.Deflate = true
		}},
		{"uint8", func(s *rastertest.GeoTIFF) {
			s.Format, s.Bits = rastertest.Uint, 8
			setNoData(s, "255", 255)
		}},
		{"int8 horizontal predictor", func(s *rastertest.GeoTIFF) {
			s.Format, s.Bits = rastertest.Int, 8
			s.HorizontalPredictor = true
			setNoData(s, "-100", -100)
		}},
		{"uint16 lzw horizontal predictor", func(s *rastertest.GeoTIFF) {
			s.Format, s.Bits = rastertest.Uint, 16
			s.LZW = true
			s.HorizontalPredictor = true
			setNoData(s, "65535", 65535)
		}},
		{"int16 big endian horizontal predictor", func(s *rastertest.GeoTIFF) {
			s.Format, s.Bits = rastertest.Int, 16
			s.BigEndian = true
			s.HorizontalPredictor = true
		}},
		{"uint32 tiled", func(s *rastertest.GeoTIFF) {
			s.Format, s.Bits = rastertest.Uint, 32
			s.TileWidth, s.TileHeight = 2, 2
			setNoData(s, "99999", 99999)
		}},
		{"int32 separate planes horizontal predictor", func(s *rastertest.GeoTIFF) {
			s.Format, s.Bits = rastertest.Int, 32
			s.Planar = 2
			s.HorizontalPredictor = true
		}},
		{"model transformation", func(s *rastertest.GeoTIFF) { s.ModelTransformation = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := baseFixture()
			tt.modify(&fx)
			path := writeTIFF(t, fx)

			ds, err := Open(path)
			require.NoError(t, err)
			defer ds.Close()

			assert.Equal(t, 3, ds.Count())
			w, h := ds.Size()
			assert.Equal(t, 3, w)
			assert.Equal(t, 2, h)

			band, err := ds.ReadBand(2)
			require.NoError(t, err)
			assert.Equal(t, 2, band.Index)
			assert.Equal(t, 20.0, band.At(0, 0))
			assert.Equal(t, 22.0, band.At(2, 0))
			assert.Equal(t, 23.0, band.At(0, 1))
			assert.True(t, math.IsNaN(band.At(1, 1)), "no-data cell must read as NaN")
			assert.Equal(t, 25.0, band.At(2, 1))

			band3, err := ds.ReadBand(3)
			require.NoError(t, err)
			assert.Equal(t, []float64{30, 31, 32, 33, 34, 35}, band3.Values)
			assert.Equal(t, Transform{A: 0.5, C: 10, E: -0.5, F: 52}, band3.Transform)
		})
	}
}

func TestReadBand_NaNSamples(t *testing.T) {
	fx := baseFixture()
	fx.NoData = ""
	fx.Bands = [][]float32{{0.9, 1.1, 1.3, 1.6, nan32(), 1.5}}
	band, err := ReadBand(writeTIFF(t, fx), 1)
	require.NoError(t, err)

	assert.InDelta(t, 0.9, band.Values[0], 1e-6)
	assert.InDelta(t, 1.6, band.Values[3], 1e-6)
	assert.True(t, math.IsNaN(band.Values[4]))
	assert.Equal(t, 1.5, band.Values[5])
}

func TestGeoTIFFBounds(t *testing.T) {
	ds, err := Open(writeTIFF(t, baseFixture()))
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, Bounds{Left: 10, Bottom: 51, Right: 11.5, Top: 52}, ds.Bounds())
	assert.Equal(t, Transform{A: 0.5, C: 10, E: -0.5, F: 52}, ds.Transform())
}

func TestReadBand_IndexOutOfRange(t *testing.T) {
	path := writeTIFF(t, baseFixture())
	for _, idx := range []int{0, -1, 4, 366} {
		_, err := ReadBand(path, idx)
		require.Error(t, err, "index %d", idx)
		assert.ErrorIs(t, err, ErrBandIndex)

		var re *ReadError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, idx, re.Band)
		assert.Equal(t, path, re.Path)
	}
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.tif"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.tif")
	require.NoError(t, os.WriteFile(garbage, []byte("not a tiff at all"), 0o644))
	_, err = Open(garbage)
	assert.ErrorIs(t, err, ErrFormat)

	big := filepath.Join(dir, "big.tif")
	require.NoError(t, os.WriteFile(big, []byte{'I', 'I', 43, 0, 8, 0, 0, 0}, 0o644))
	_, err = Open(big)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Open(filepath.Join(dir, "grid.nc"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestReadBand_TruncatedStrip(t *testing.T) {
	b, err := baseFixture().Encode()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "short.tif")
	require.NoError(t, os.WriteFile(path, b[:len(b)-8], 0o644))

	_, err = ReadBand(path, 1)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestTransform_InvertAndSample(t *testing.T) {
	tr := Transform{A: 0.5, C: 10, E: -0.5, F: 52}
	x, y := tr.Apply(2, 1)
	assert.Equal(t, 11.0, x)
	assert.Equal(t, 51.5, y)

	col, row, ok := tr.Invert(11.25, 51.25)
	require.True(t, ok)
	assert.InDelta(t, 2.5, col, 1e-9)
	assert.InDelta(t, 1.5, row, 1e-9)

	_, _, ok = Transform{}.Invert(1, 1)
	assert.False(t, ok)

	band := &Band{Width: 3, Height: 2, Values: []float64{1, 2, 3, 4, 5, 6}, Transform: tr}
	v, ok := band.Sample(11.25, 51.25)
	require.True(t, ok)
	assert.Equal(t, 6.0, v)

	_, ok = band.Sample(9.9, 51.25)
	assert.False(t, ok)
}

func TestOpen_CorruptDimensions(t *testing.T) {
	tests := []struct {
		name   string
		tag    uint16
		values []uint32
	}{
		{"dimensions overflow", 256, []uint32{0xFFFFFFFF, 0xFFFFFFFF}},
		{"zero width", 256, []uint32{0, 2}},
		{"too many cells", 256, []uint32{1 << 19, 1 << 19}},
		{"strip beyond end of file", 273, []uint32{1 << 30}},
		{"strip longer than file", 279, []uint32{1 << 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := baseFixture().Encode()
			require.NoError(t, err)
			for i, v := range tt.values {
				patchLong(t, b, tt.tag+uint16(i), v)
			}
			path := filepath.Join(t.TempDir(), "corrupt.tif")
			require.NoError(t, os.WriteFile(path, b, 0o644))

			_, err = ReadBand(path, 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
			var re *ReadError
			assert.True(t, errors.As(err, &re))
		})
	}
}

func TestReadBand_NoDataInSamplePrecision(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*rastertest.GeoTIFF)
	}{
		{"float32 sentinel not exact in float32", func(s *rastertest.GeoTIFF) {
			setNoData(s, "-3.4e+38", -3.4e38)
		}},
		{"int16 fractional tag", func(s *rastertest.GeoTIFF) {
			s.Format, s.Bits = rastertest.Int, 16
			setNoData(s, "-9998.6", -9999)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := baseFixture()
			tt.modify(&fx)
			band, err := ReadBand(writeTIFF(t, fx), 2)
			require.NoError(t, err)
			assert.True(t, math.IsNaN(band.At(1, 1)), "got %v", band.At(1, 1))
			assert.Equal(t, 20.0, band.At(0, 0))
		})
	}
}
