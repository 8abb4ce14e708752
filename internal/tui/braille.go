package tui

// dotBits maps a microgrid position (row 0-3, column 0-1) inside a cell to
// its braille dot.
var dotBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// brailleBuf is a canvas of w x h cells, each a 2x4 grid of dots.
type brailleBuf struct {
	w, h int
	m    [][]uint8
}

func newBrailleBuf(w, h int) *brailleBuf {
	m := make([][]uint8, h)
	for i := range m {
		m[i] = make([]uint8, w)
	}
	return &brailleBuf{w: w, h: h, m: m}
}

func (b *brailleBuf) set(mx, my int) {
	if mx < 0 || my < 0 || mx >= b.w*2 || my >= b.h*4 {
		return
	}
	b.m[my/4][mx/2] |= dotBits[my%4][mx%2]
}

// offscreen reports whether segment (x0,y0)-(x1,y1) lies entirely on one
// side of the microgrid. Zoomed-in outlines are mostly such segments.
func (b *brailleBuf) offscreen(x0, y0, x1, y1 int) bool {
	return (x0 < 0 && x1 < 0) || (y0 < 0 && y1 < 0) ||
		(x0 >= b.w*2 && x1 >= b.w*2) || (y0 >= b.h*4 && y1 >= b.h*4)
}

// line draws a Bresenham segment on the microgrid.
func (b *brailleBuf) line(x0, y0, x1, y1 int) {
	if b.offscreen(x0, y0, x1, y1) {
		return
	}
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		b.set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawPath strokes consecutive microgrid points.
func (b *brailleBuf) drawPath(pts [][2]int) {
	for i := 1; i < len(pts); i++ {
		b.line(pts[i-1][0], pts[i-1][1], pts[i][0], pts[i][1])
	}
}

// cells returns one glyph per cell; empty cells are spaces.
func (b *brailleBuf) cells() [][]rune {
	out := make([][]rune, b.h)
	for y, row := range b.m {
		out[y] = make([]rune, b.w)
		for x, mask := range row {
			out[y][x] = ' '
			if mask != 0 {
				out[y][x] = rune(0x2800 + int(mask))
			}
		}
	}
	return out
}
