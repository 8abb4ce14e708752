package raster

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// asciiGrid is an Esri ASCII grid: a single band with a text header.
type asciiGrid struct {
	path         string
	ncols, nrows int
	cellSize     float64
	xll, yll     float64
	centered     bool
	noData       float64
	hasNoData    bool
	values       []float64
	xform        Transform
}

func openASCII(path string) (*asciiGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	g := &asciiGrid{path: path}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	var first string
	seen := map[string]bool{}
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		switch key {
		case "ncols", "nrows", "xllcorner", "xllcenter", "yllcorner", "yllcenter", "cellsize", "nodata_value":
		default:
			first = sc.Text()
		}
		if first != "" {
			break
		}
		if !sc.Scan() {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: header %s has no value", ErrFormat, key)}
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: header %s: %v", ErrFormat, key, err)}
		}
		seen[key] = true
		if (key == "ncols" || key == "nrows") && (v != math.Trunc(v) || v < 1 || v > maxDim) {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: header %s %s", ErrFormat, key, sc.Text())}
		}
		switch key {
		case "ncols":
			g.ncols = int(v)
		case "nrows":
			g.nrows = int(v)
		case "xllcorner":
			g.xll = v
		case "xllcenter":
			g.xll, g.centered = v, true
		case "yllcorner":
			g.yll = v
		case "yllcenter":
			g.yll, g.centered = v, true
		case "cellsize":
			g.cellSize = v
		case "nodata_value":
			g.noData, g.hasNoData = v, true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if !seen["ncols"] || !seen["nrows"] || !seen["cellsize"] || g.ncols <= 0 || g.nrows <= 0 || g.cellSize <= 0 {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: incomplete header", ErrFormat)}
	}

	if err := checkSize(g.ncols, g.nrows); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	n := g.ncols * g.nrows
	// every cell takes at least one digit and one separator
	if int64(n) > (fi.Size()+1)/2 {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: %d cells cannot fit in %d bytes", ErrFormat, n, fi.Size())}
	}
	g.values = make([]float64, 0, n)
	next := first
	for len(g.values) < n {
		if next == "" {
			if !sc.Scan() {
				return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: %d of %d cells", ErrFormat, len(g.values), n)}
			}
			next = sc.Text()
		}
		v, err := strconv.ParseFloat(next, 64)
		if err != nil {
			return nil, &ReadError{Path: path, Err: fmt.Errorf("%w: cell %d: %v", ErrFormat, len(g.values), err)}
		}
		if g.hasNoData && v == g.noData {
			v = math.NaN()
		}
		g.values = append(g.values, v)
		next = ""
	}
	if err := sc.Err(); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	left, bottom := g.xll, g.yll
	if g.centered {
		left -= g.cellSize / 2
		bottom -= g.cellSize / 2
	}
	g.xform = Transform{
		A: g.cellSize,
		C: left,
		E: -g.cellSize,
		F: bottom + float64(g.nrows)*g.cellSize,
	}
	return g, nil
}

func (g *asciiGrid) Count() int           { return 1 }
func (g *asciiGrid) Size() (int, int)     { return g.ncols, g.nrows }
func (g *asciiGrid) Transform() Transform { return g.xform }
func (g *asciiGrid) Bounds() Bounds       { return BoundsOf(g.xform, g.ncols, g.nrows) }
func (g *asciiGrid) Close() error         { return nil }

func (g *asciiGrid) ReadBand(index int) (*Band, error) {
	if err := checkBand(g.path, index, 1); err != nil {
		return nil, err
	}
	values := make([]float64, len(g.values))
	copy(values, g.values)
	return &Band{Index: 1, Width: g.ncols, Height: g.nrows, Values: values, Transform: g.xform}, nil
}
