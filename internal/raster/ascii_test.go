package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskmap/internal/raster/rastertest"
)

func TestASCIIGrid_ReadBand(t *testing.T) {
	noData := -9999.0
	path := filepath.Join(t.TempDir(), "r0.asc")
	require.NoError(t, rastertest.ASCIIGrid{
		Cols: 3, Rows: 2,
		XLLCorner: 5.5, YLLCorner: 47,
		CellSize: 1,
		NoData:   &noData,
		Values:   []float64{0.9, 1.1, -9999, 1.6, 1.5, 0.2},
	}.Write(path))

	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, 1, ds.Count())
	assert.Equal(t, Bounds{Left: 5.5, Bottom: 47, Right: 8.5, Top: 49}, ds.Bounds())

	band, err := ds.ReadBand(1)
	require.NoError(t, err)
	assert.Equal(t, 0.9, band.At(0, 0))
	assert.True(t, math.IsNaN(band.At(2, 0)))
	assert.Equal(t, 0.2, band.At(2, 1))

	_, err = ds.ReadBand(2)
	assert.ErrorIs(t, err, ErrBandIndex)
}

func TestASCIIGrid_CenterHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centered.asc")
	body := "NCOLS 2\nNROWS 1\nXLLCENTER 10.5\nYLLCENTER 50.5\nCELLSIZE 1\n1.0 2.0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	ds, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, Bounds{Left: 10, Bottom: 50, Right: 12, Top: 51}, ds.Bounds())
}

func TestASCIIGrid_Malformed(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"short.asc":     "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
		"noheader.asc":  "1 2 3\n",
		"badvalue.asc":  "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\nabc\n",
		"badheader.asc": "ncols two\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Open(path)
		assert.ErrorIs(t, err, ErrFormat, name)
	}
}

func TestASCIIGrid_CorruptDimensions(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"overflow.asc":   "ncols 4294967295\nnrows 4294967295\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"toomany.asc":    "ncols 1000000\nnrows 1000000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1\n",
		"fractional.asc": "ncols 2.5\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2\n",
		"nofit.asc":      "ncols 1000\nnrows 1000\nxllcorner 0\nyllcorner 0\ncellsize 1\n1 2 3\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Open(path)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrFormat, name)
		var re *ReadError
		assert.ErrorAs(t, err, &re, name)
	}
}
