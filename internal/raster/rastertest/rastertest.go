// Package rastertest writes small raster fixtures for tests.
package rastertest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Sample formats, as stored in the SampleFormat tag.
const (
	Uint  = 1
	Int   = 2
	Float = 3
)

// GeoTIFF describes a GeoTIFF fixture. Values are given as float32 and
// converted to the sample type on write.
type GeoTIFF struct {
	Width, Height int
	// Bands holds one row-major slice per band.
	Bands [][]float32

	Left, Top, CellSize float64
	NoData              string
	// ModelTransformation writes the 4x4 matrix instead of scale + tiepoint.
	ModelTransformation bool

	Format int // Float (default), Int or Uint
	Bits   int // 32 by default

	Planar       int // 1 (default) interleaved, 2 separate planes
	RowsPerStrip int // 0 writes one strip per plane
	// TileWidth and TileHeight, when set, write tiles instead of strips.
	TileWidth, TileHeight int

	Deflate             bool
	LZW                 bool
	FloatPredictor      bool
	HorizontalPredictor bool
	BigEndian           bool
}

type entry struct {
	tag, typ uint16
	count    uint32
	data     []byte
	off      uint32
}

// chunk is one strip or tile: its pixel window in the image.
type chunk struct {
	plane      int
	x0, y0     int
	cols, rows int
}

// Encode serializes the fixture.
func (s GeoTIFF) Encode() ([]byte, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if s.BigEndian {
		order = binary.BigEndian
	}
	w, h, nb := s.Width, s.Height, len(s.Bands)
	if nb == 0 {
		return nil, fmt.Errorf("rastertest: no bands")
	}
	for i, b := range s.Bands {
		if len(b) != w*h {
			return nil, fmt.Errorf("rastertest: band %d has %d values, want %d", i+1, len(b), w*h)
		}
	}
	format, bits := s.Format, s.Bits
	if format == 0 {
		format = Float
	}
	if bits == 0 {
		bits = 32
	}
	n := bits / 8
	planar := s.Planar
	if planar == 0 {
		planar = 1
	}
	planes, spp := 1, nb
	if planar == 2 {
		planes, spp = nb, 1
	}
	tiled := s.TileWidth > 0 && s.TileHeight > 0
	rps := s.RowsPerStrip
	if rps <= 0 || rps > h {
		rps = h
	}

	var chunks []chunk
	for p := 0; p < planes; p++ {
		if tiled {
			for y0 := 0; y0 < h; y0 += s.TileHeight {
				for x0 := 0; x0 < w; x0 += s.TileWidth {
					chunks = append(chunks, chunk{plane: p, x0: x0, y0: y0, cols: s.TileWidth, rows: s.TileHeight})
				}
			}
			continue
		}
		for y0 := 0; y0 < h; y0 += rps {
			chunks = append(chunks, chunk{plane: p, y0: y0, cols: w, rows: min(rps, h-y0)})
		}
	}

	strips := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		raw := make([]byte, c.rows*c.cols*spp*n)
		for r := 0; r < c.rows; r++ {
			for col := 0; col < c.cols; col++ {
				x, y := c.x0+col, c.y0+r
				if x >= w || y >= h {
					continue // tile padding stays zero
				}
				for k := 0; k < spp; k++ {
					band := k
					if planar == 2 {
						band = c.plane
					}
					putSample(raw[((r*c.cols+col)*spp+k)*n:], order, format, n, s.Bands[band][y*w+x])
				}
			}
		}
		rowBytes := c.cols * spp * n
		switch {
		case s.FloatPredictor:
			predictFloat(raw, order, c.cols*spp, spp, n)
		case s.HorizontalPredictor:
			predictHorizontal(raw, order, rowBytes, spp, n)
		}
		switch {
		case s.Deflate:
			var zb bytes.Buffer
			zw := zlib.NewWriter(&zb)
			if _, err := zw.Write(raw); err != nil {
				return nil, err
			}
			if err := zw.Close(); err != nil {
				return nil, err
			}
			raw = zb.Bytes()
		case s.LZW:
			raw = lzwLiterals(raw)
		}
		strips = append(strips, raw)
	}

	shorts := func(vals ...uint16) []byte {
		b := make([]byte, 2*len(vals))
		for i, v := range vals {
			order.PutUint16(b[2*i:], v)
		}
		return b
	}
	longs := func(vals ...uint32) []byte {
		b := make([]byte, 4*len(vals))
		for i, v := range vals {
			order.PutUint32(b[4*i:], v)
		}
		return b
	}
	doubles := func(vals ...float64) []byte {
		b := make([]byte, 8*len(vals))
		for i, v := range vals {
			order.PutUint64(b[8*i:], math.Float64bits(v))
		}
		return b
	}
	repeat := func(v uint16) []uint16 {
		out := make([]uint16, nb)
		for i := range out {
			out[i] = v
		}
		return out
	}
	compression, predictor := uint16(1), uint16(1)
	switch {
	case s.Deflate:
		compression = 8
	case s.LZW:
		compression = 5
	}
	switch {
	case s.FloatPredictor:
		predictor = 3
	case s.HorizontalPredictor:
		predictor = 2
	}
	counts := make([]uint32, len(strips))
	for i, st := range strips {
		counts[i] = uint32(len(st))
	}

	offsetsTag, countsTag := uint16(273), uint16(279)
	if tiled {
		offsetsTag, countsTag = 324, 325
	}
	offsets := &entry{tag: offsetsTag, typ: 4, count: uint32(len(strips)), data: longs(make([]uint32, len(strips))...)}
	entries := []*entry{
		{tag: 256, typ: 4, count: 1, data: longs(uint32(w))},
		{tag: 257, typ: 4, count: 1, data: longs(uint32(h))},
		{tag: 258, typ: 3, count: uint32(nb), data: shorts(repeat(uint16(bits))...)},
		{tag: 259, typ: 3, count: 1, data: shorts(compression)},
		{tag: 262, typ: 3, count: 1, data: shorts(1)},
		offsets,
		{tag: 277, typ: 3, count: 1, data: shorts(uint16(nb))},
		{tag: countsTag, typ: 4, count: uint32(len(strips)), data: longs(counts...)},
		{tag: 284, typ: 3, count: 1, data: shorts(uint16(planar))},
		{tag: 317, typ: 3, count: 1, data: shorts(predictor)},
		{tag: 339, typ: 3, count: uint32(nb), data: shorts(repeat(uint16(format))...)},
	}
	if tiled {
		entries = append(entries,
			&entry{tag: 322, typ: 4, count: 1, data: longs(uint32(s.TileWidth))},
			&entry{tag: 323, typ: 4, count: 1, data: longs(uint32(s.TileHeight))},
		)
	} else {
		entries = append(entries, &entry{tag: 278, typ: 4, count: 1, data: longs(uint32(rps))})
	}
	if s.ModelTransformation {
		entries = append(entries, &entry{tag: 34264, typ: 12, count: 16, data: doubles(
			s.CellSize, 0, 0, s.Left,
			0, -s.CellSize, 0, s.Top,
			0, 0, 0, 0,
			0, 0, 0, 1,
		)})
	} else {
		entries = append(entries,
			&entry{tag: 33550, typ: 12, count: 3, data: doubles(s.CellSize, s.CellSize, 0)},
			&entry{tag: 33922, typ: 12, count: 6, data: doubles(0, 0, 0, s.Left, s.Top, 0)},
		)
	}
	if s.NoData != "" {
		nd := s.NoData + "\x00"
		entries = append(entries, &entry{tag: 42113, typ: 2, count: uint32(len(nd)), data: []byte(nd)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	pos := uint32(8 + 2 + 12*len(entries) + 4)
	for _, e := range entries {
		if len(e.data) > 4 {
			e.off = pos
			pos += uint32(len(e.data))
			pos += pos % 2
		}
	}
	stripOffsets := make([]uint32, len(strips))
	for i, st := range strips {
		stripOffsets[i] = pos
		pos += uint32(len(st))
	}
	offsets.data = longs(stripOffsets...)

	out := make([]byte, pos)
	if s.BigEndian {
		copy(out, "MM")
	} else {
		copy(out, "II")
	}
	order.PutUint16(out[2:], 42)
	order.PutUint32(out[4:], 8)
	order.PutUint16(out[8:], uint16(len(entries)))
	for i, e := range entries {
		p := 10 + 12*i
		order.PutUint16(out[p:], e.tag)
		order.PutUint16(out[p+2:], e.typ)
		order.PutUint32(out[p+4:], e.count)
		if len(e.data) <= 4 {
			copy(out[p+8:], e.data)
		} else {
			order.PutUint32(out[p+8:], e.off)
			copy(out[e.off:], e.data)
		}
	}
	for i, st := range strips {
		copy(out[stripOffsets[i]:], st)
	}
	return out, nil
}

// Write encodes the fixture to path.
func (s GeoTIFF) Write(path string) error {
	b, err := s.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func putSample(b []byte, order binary.ByteOrder, format, n int, v float32) {
	switch {
	case format == Float && n == 8:
		order.PutUint64(b, math.Float64bits(float64(v)))
	case format == Float:
		order.PutUint32(b, math.Float32bits(v))
	case format == Int && n == 1:
		b[0] = byte(int8(v))
	case format == Int && n == 2:
		order.PutUint16(b, uint16(int16(v)))
	case format == Int:
		order.PutUint32(b, uint32(int32(v)))
	case n == 1:
		b[0] = uint8(v)
	case n == 2:
		order.PutUint16(b, uint16(v))
	default:
		order.PutUint32(b, uint32(v))
	}
}

// predictHorizontal differences each sample against the one spp samples
// earlier in its row, in the sample's integer width.
func predictHorizontal(buf []byte, order binary.ByteOrder, rowBytes, spp, n int) {
	for row := 0; row+rowBytes <= len(buf); row += rowBytes {
		p := buf[row : row+rowBytes]
		for i := rowBytes - n; i >= spp*n; i -= n {
			j := i - spp*n
			switch n {
			case 1:
				p[i] -= p[j]
			case 2:
				order.PutUint16(p[i:], order.Uint16(p[i:])-order.Uint16(p[j:]))
			case 4:
				order.PutUint32(p[i:], order.Uint32(p[i:])-order.Uint32(p[j:]))
			}
		}
	}
}

// predictFloat applies the TIFF floating point predictor to each row.
func predictFloat(buf []byte, order binary.ByteOrder, rowSamples, spp, n int) {
	rowBytes := rowSamples * n
	tmp := make([]byte, rowBytes)
	for row := 0; row+rowBytes <= len(buf); row += rowBytes {
		p := buf[row : row+rowBytes]
		for s := 0; s < rowSamples; s++ {
			var bits uint64
			if n == 8 {
				bits = order.Uint64(p[n*s:])
			} else {
				bits = uint64(order.Uint32(p[n*s:]))
			}
			for b := 0; b < n; b++ {
				tmp[b*rowSamples+s] = byte(bits >> (8 * (n - 1 - b)))
			}
		}
		for i := rowBytes - 1; i >= spp; i-- {
			tmp[i] -= tmp[i-spp]
		}
		copy(p, tmp)
	}
}

// lzwLiterals encodes data as a TIFF LZW stream made only of 9-bit literal
// codes. A Clear code every 250 literals keeps the decoder's code width at 9.
func lzwLiterals(data []byte) []byte {
	const clear, eoi = 256, 257
	var out []byte
	var acc uint32
	var nbits uint
	put := func(code uint32) {
		acc = acc<<9 | code
		nbits += 9
		for nbits >= 8 {
			out = append(out, byte(acc>>(nbits-8)))
			nbits -= 8
		}
		acc &= 1<<nbits - 1
	}
	put(clear)
	for i, b := range data {
		if i > 0 && i%250 == 0 {
			put(clear)
		}
		put(uint32(b))
	}
	put(eoi)
	if nbits > 0 {
		out = append(out, byte(acc<<(8-nbits)))
	}
	return out
}

// ASCIIGrid describes an Esri ASCII grid fixture.
type ASCIIGrid struct {
	Cols, Rows           int
	XLLCorner, YLLCorner float64
	CellSize             float64
	NoData               *float64
	Values               []float64
}

// Write encodes the grid to path.
func (g ASCIIGrid) Write(path string) error {
	if len(g.Values) != g.Cols*g.Rows {
		return fmt.Errorf("rastertest: %d values, want %d", len(g.Values), g.Cols*g.Rows)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ncols %d\nnrows %d\nxllcorner %g\nyllcorner %g\ncellsize %g\n", g.Cols, g.Rows, g.XLLCorner, g.YLLCorner, g.CellSize)
	if g.NoData != nil {
		fmt.Fprintf(&sb, "NODATA_value %g\n", *g.NoData)
	}
	for r := 0; r < g.Rows; r++ {
		row := make([]string, g.Cols)
		for c := range row {
			row[c] = strconv.FormatFloat(g.Values[r*g.Cols+c], 'g', -1, 64)
		}
		sb.WriteString(strings.Join(row, " "))
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
