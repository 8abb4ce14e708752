package raster

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/tiff/lzw"
)

// TIFF tags read by the decoder.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGDALNoData          = 42113
)

const (
	compressionNone        = 1
	compressionLZW         = 5
	compressionDeflate     = 8
	compressionDeflateOld  = 32946
	predictorNone          = 1
	predictorHorizontal    = 2
	predictorFloatingPoint = 3
	sampleUint             = 1
	sampleInt              = 2
	sampleFloat            = 3
)

// maxChunkBytes bounds one decoded strip or tile.
const maxChunkBytes = 1 << 31

// field type sizes, indexed by TIFF type id.
var typeSize = [...]int{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8}

type ifdEntry struct {
	typ   uint16
	count uint32
	raw   []byte
}

func (e ifdEntry) uints(order binary.ByteOrder) []uint64 {
	out := make([]uint64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case 1, 7:
			out = append(out, uint64(e.raw[i]))
		case 3:
			out = append(out, uint64(order.Uint16(e.raw[2*i:])))
		case 4:
			out = append(out, uint64(order.Uint32(e.raw[4*i:])))
		default:
			return nil
		}
	}
	return out
}

func (e ifdEntry) floats(order binary.ByteOrder) []float64 {
	out := make([]float64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case 11:
			out = append(out, float64(math.Float32frombits(order.Uint32(e.raw[4*i:]))))
		case 12:
			out = append(out, math.Float64frombits(order.Uint64(e.raw[8*i:])))
		default:
			return nil
		}
	}
	return out
}

type geoTIFF struct {
	path  string
	f     *os.File
	size  int64
	order binary.ByteOrder

	width, height int
	spp           int
	bytesPer      int
	sampleFormat  int
	planar        int
	compression   int
	predictor     int

	tiled          bool
	chunkW, chunkH int
	across, down   int
	offsets        []uint64
	counts         []uint64

	transform Transform
	noData    float64
	hasNoData bool
}

func openGeoTIFF(path string) (*geoTIFF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	g := &geoTIFF{path: path, f: f}
	if err := g.parse(); err != nil {
		f.Close()
		return nil, &ReadError{Path: path, Err: err}
	}
	return g, nil
}

func (g *geoTIFF) Count() int                { return g.spp }
func (g *geoTIFF) Size() (int, int)          { return g.width, g.height }
func (g *geoTIFF) Transform() Transform      { return g.transform }
func (g *geoTIFF) Bounds() Bounds            { return BoundsOf(g.transform, g.width, g.height) }
func (g *geoTIFF) Close() error              { return g.f.Close() }
func (g *geoTIFF) chunksPerPlane() int       { return g.across * g.down }
func (g *geoTIFF) chunkRowBytes(spp int) int { return g.chunkW * spp * g.bytesPer }

func (g *geoTIFF) parse() error {
	fi, err := g.f.Stat()
	if err != nil {
		return err
	}
	g.size = fi.Size()
	var hdr [8]byte
	if _, err := g.f.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	switch string(hdr[:2]) {
	case "II":
		g.order = binary.LittleEndian
	case "MM":
		g.order = binary.BigEndian
	default:
		return fmt.Errorf("%w: not a TIFF file", ErrFormat)
	}
	switch g.order.Uint16(hdr[2:]) {
	case 42:
	case 43:
		return fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return fmt.Errorf("%w: bad TIFF magic", ErrFormat)
	}
	entries, err := g.readIFD(int64(g.order.Uint32(hdr[4:])))
	if err != nil {
		return err
	}

	first := func(tag uint16, def uint64) uint64 {
		e, ok := entries[tag]
		if !ok {
			return def
		}
		if v := e.uints(g.order); len(v) > 0 {
			return v[0]
		}
		return def
	}
	w, h := first(tagImageWidth, 0), first(tagImageLength, 0)
	if w > maxDim || h > maxDim {
		return fmt.Errorf("%w: image dimensions %dx%d", ErrFormat, w, h)
	}
	g.width, g.height = int(w), int(h)
	if err := checkSize(g.width, g.height); err != nil {
		return err
	}
	g.spp = int(first(tagSamplesPerPixel, 1))
	if g.spp < 1 {
		return fmt.Errorf("%w: %d samples per pixel", ErrFormat, g.spp)
	}
	g.compression = int(first(tagCompression, compressionNone))
	g.planar = int(first(tagPlanarConfiguration, 1))
	g.predictor = int(first(tagPredictor, predictorNone))
	g.sampleFormat = int(first(tagSampleFormat, sampleUint))

	bits := int(first(tagBitsPerSample, 1))
	if e, ok := entries[tagBitsPerSample]; ok {
		for _, b := range e.uints(g.order) {
			if int(b) != bits {
				return fmt.Errorf("%w: mixed bits per sample", ErrUnsupported)
			}
		}
	}
	if bits%8 != 0 || bits == 0 || bits > 64 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}
	g.bytesPer = bits / 8
	switch {
	case g.sampleFormat == sampleFloat && (g.bytesPer == 4 || g.bytesPer == 8):
	case (g.sampleFormat == sampleUint || g.sampleFormat == sampleInt) && g.bytesPer <= 4 && g.bytesPer != 3:
	default:
		return fmt.Errorf("%w: sample format %d with %d bits", ErrUnsupported, g.sampleFormat, bits)
	}
	if g.planar != 1 && g.planar != 2 {
		return fmt.Errorf("%w: planar configuration %d", ErrFormat, g.planar)
	}
	if g.predictor < predictorNone || g.predictor > predictorFloatingPoint {
		return fmt.Errorf("%w: predictor %d", ErrUnsupported, g.predictor)
	}
	if g.predictor == predictorHorizontal && g.sampleFormat == sampleFloat {
		return fmt.Errorf("%w: horizontal predictor on float samples", ErrUnsupported)
	}

	if _, ok := entries[tagTileWidth]; ok {
		g.tiled = true
		tw, th := first(tagTileWidth, 0), first(tagTileLength, 0)
		if tw > maxDim || th > maxDim {
			return fmt.Errorf("%w: tile size %dx%d", ErrFormat, tw, th)
		}
		g.chunkW, g.chunkH = int(tw), int(th)
		g.offsets = entries[tagTileOffsets].uints(g.order)
		g.counts = entries[tagTileByteCounts].uints(g.order)
	} else {
		g.chunkW = g.width
		g.chunkH = int(first(tagRowsPerStrip, uint64(g.height)))
		if g.chunkH > g.height {
			g.chunkH = g.height
		}
		g.offsets = entries[tagStripOffsets].uints(g.order)
		g.counts = entries[tagStripByteCounts].uints(g.order)
	}
	if g.chunkW <= 0 || g.chunkH <= 0 || g.chunkW > maxDim || g.chunkH > maxDim {
		return fmt.Errorf("%w: bad strip or tile size", ErrFormat)
	}
	g.across = (g.width + g.chunkW - 1) / g.chunkW
	g.down = (g.height + g.chunkH - 1) / g.chunkH
	want := g.chunksPerPlane()
	if g.planar == 2 {
		want *= g.spp
	}
	if len(g.offsets) < want || len(g.counts) < want {
		return fmt.Errorf("%w: %d chunks listed, %d needed", ErrFormat, len(g.offsets), want)
	}
	chunkSpp := g.spp
	if g.planar == 2 {
		chunkSpp = 1
	}
	if int64(g.chunkW)*int64(g.chunkH)*int64(chunkSpp*g.bytesPer) > maxChunkBytes {
		return fmt.Errorf("%w: %dx%d chunks too large", ErrFormat, g.chunkW, g.chunkH)
	}
	for k := 0; k < want; k++ {
		if g.offsets[k] > uint64(g.size) || g.counts[k] > uint64(g.size)-g.offsets[k] {
			return fmt.Errorf("%w: chunk %d lies outside the file", ErrFormat, k)
		}
	}

	g.transform = Identity
	if e, ok := entries[tagModelTransformation]; ok {
		m := e.floats(g.order)
		if len(m) < 16 {
			return fmt.Errorf("%w: short ModelTransformation", ErrFormat)
		}
		g.transform = Transform{A: m[0], B: m[1], C: m[3], D: m[4], E: m[5], F: m[7]}
	} else if se, ok := entries[tagModelPixelScale]; ok {
		scale := se.floats(g.order)
		tie := entries[tagModelTiepoint].floats(g.order)
		if len(scale) < 2 || len(tie) < 6 {
			return fmt.Errorf("%w: short ModelPixelScale or ModelTiepoint", ErrFormat)
		}
		g.transform = Transform{
			A: scale[0],
			C: tie[3] - tie[0]*scale[0],
			E: -scale[1],
			F: tie[4] + tie[1]*scale[1],
		}
	}

	if e, ok := entries[tagGDALNoData]; ok {
		s := strings.TrimSpace(strings.TrimRight(string(e.raw), "\x00"))
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: GDAL_NODATA %q", ErrFormat, s)
		}
		// Samples are compared in their stored precision.
		switch {
		case g.sampleFormat == sampleFloat && g.bytesPer == 4:
			v = float64(float32(v))
		case g.sampleFormat != sampleFloat:
			v = math.Round(v)
		}
		g.noData, g.hasNoData = v, true
	}
	return nil
}

func (g *geoTIFF) readIFD(off int64) (map[uint16]ifdEntry, error) {
	var nb [2]byte
	if _, err := g.f.ReadAt(nb[:], off); err != nil {
		return nil, fmt.Errorf("%w: IFD: %v", ErrFormat, err)
	}
	n := int(g.order.Uint16(nb[:]))
	buf := make([]byte, 12*n)
	if _, err := g.f.ReadAt(buf, off+2); err != nil {
		return nil, fmt.Errorf("%w: IFD entries: %v", ErrFormat, err)
	}
	entries := make(map[uint16]ifdEntry, n)
	for i := 0; i < n; i++ {
		p := buf[12*i : 12*i+12]
		tag := g.order.Uint16(p[0:])
		typ := g.order.Uint16(p[2:])
		count := g.order.Uint32(p[4:])
		if int(typ) >= len(typeSize) || typeSize[typ] == 0 {
			continue
		}
		size := int64(typeSize[typ]) * int64(count)
		if size > g.size {
			return nil, fmt.Errorf("%w: tag %d holds %d bytes, file has %d", ErrFormat, tag, size, g.size)
		}
		var raw []byte
		if size <= 4 {
			raw = append([]byte(nil), p[8:8+size]...)
		} else {
			raw = make([]byte, size)
			if _, err := g.f.ReadAt(raw, int64(g.order.Uint32(p[8:]))); err != nil {
				return nil, fmt.Errorf("%w: tag %d: %v", ErrFormat, tag, err)
			}
		}
		entries[tag] = ifdEntry{typ: typ, count: count, raw: raw}
	}
	return entries, nil
}

func (g *geoTIFF) ReadBand(index int) (*Band, error) {
	if err := checkBand(g.path, index, g.spp); err != nil {
		return nil, err
	}
	values := make([]float64, g.width*g.height)
	spp, sample, base := g.spp, index-1, 0
	if g.planar == 2 {
		spp, sample, base = 1, 0, (index-1)*g.chunksPerPlane()
	}
	rowBytes := g.chunkRowBytes(spp)
	for cy := 0; cy < g.down; cy++ {
		rows := g.chunkH
		if !g.tiled && (cy+1)*g.chunkH > g.height {
			rows = g.height - cy*g.chunkH
		}
		for cx := 0; cx < g.across; cx++ {
			buf, err := g.readChunk(base+cy*g.across+cx, rows*rowBytes)
			if err != nil {
				return nil, &ReadError{Path: g.path, Band: index, Err: err}
			}
			g.unpredict(buf, rowBytes, spp)
			for r := 0; r < rows; r++ {
				y := cy*g.chunkH + r
				if y >= g.height {
					break
				}
				for c := 0; c < g.chunkW; c++ {
					x := cx*g.chunkW + c
					if x >= g.width {
						break
					}
					off := ((r*g.chunkW+c)*spp + sample) * g.bytesPer
					v := g.decode(buf[off:])
					if g.hasNoData && v == g.noData {
						v = math.NaN()
					}
					values[y*g.width+x] = v
				}
			}
		}
	}
	return &Band{Index: index, Width: g.width, Height: g.height, Values: values, Transform: g.transform}, nil
}

func (g *geoTIFF) readChunk(k, want int) ([]byte, error) {
	raw := make([]byte, g.counts[k])
	if _, err := g.f.ReadAt(raw, int64(g.offsets[k])); err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrFormat, k, err)
	}
	var r io.Reader
	switch g.compression {
	case compressionNone:
		if len(raw) < want {
			return nil, fmt.Errorf("%w: chunk %d holds %d bytes, want %d", ErrFormat, k, len(raw), want)
		}
		return raw[:want], nil
	case compressionLZW:
		lr := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer lr.Close()
		r = lr
	case compressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", ErrFormat, k, err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, g.compression)
	}
	buf := make([]byte, want)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: chunk %d decompresses short", ErrFormat, k)
		}
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrFormat, k, err)
	}
	return buf, nil
}

// unpredict reverses the TIFF predictor in place, one chunk row at a time.
func (g *geoTIFF) unpredict(buf []byte, rowBytes, spp int) {
	switch g.predictor {
	case predictorHorizontal:
		n := g.bytesPer
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			p := buf[row : row+rowBytes]
			for i := spp * n; i < rowBytes; i += n {
				j := i - spp*n
				switch n {
				case 1:
					p[i] += p[j]
				case 2:
					g.order.PutUint16(p[i:], g.order.Uint16(p[i:])+g.order.Uint16(p[j:]))
				case 4:
					g.order.PutUint32(p[i:], g.order.Uint32(p[i:])+g.order.Uint32(p[j:]))
				}
			}
		}
	case predictorFloatingPoint:
		n := g.bytesPer
		samples := rowBytes / n
		tmp := make([]byte, rowBytes)
		little := g.order == binary.LittleEndian
		for row := 0; row+rowBytes <= len(buf); row += rowBytes {
			p := buf[row : row+rowBytes]
			for i := spp; i < rowBytes; i++ {
				p[i] += p[i-spp]
			}
			copy(tmp, p)
			for s := 0; s < samples; s++ {
				for b := 0; b < n; b++ {
					plane := b
					if little {
						plane = n - 1 - b
					}
					p[s*n+b] = tmp[plane*samples+s]
				}
			}
		}
	}
}

func (g *geoTIFF) decode(b []byte) float64 {
	switch g.sampleFormat {
	case sampleFloat:
		if g.bytesPer == 4 {
			return float64(math.Float32frombits(g.order.Uint32(b)))
		}
		return math.Float64frombits(g.order.Uint64(b))
	case sampleInt:
		switch g.bytesPer {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(g.order.Uint16(b)))
		default:
			return float64(int32(g.order.Uint32(b)))
		}
	default:
		switch g.bytesPer {
		case 1:
			return float64(b[0])
		case 2:
			return float64(g.order.Uint16(b))
		default:
			return float64(g.order.Uint32(b))
		}
	}
}
