// Package classify maps raster values onto colors through a breakpoint table.
package classify

import (
	"image"
	"image/color"
	"math"

	"riskmap/internal/raster"
)

// Transparent is used for no-data cells and values outside every class.
var Transparent = color.RGBA{}

// Class is one row of a breakpoint table: the interval [Lo, Hi), or (Lo, Hi)
// when LoExclusive is set. Hi = +Inf makes the class unbounded above.
type Class struct {
	Label       string
	Lo, Hi      float64
	LoExclusive bool
	Color       color.RGBA
}

// Contains reports whether v falls inside the class interval.
func (c Class) Contains(v float64) bool {
	above := v >= c.Lo
	if c.LoExclusive {
		above = v > c.Lo
	}
	below := v < c.Hi || math.IsInf(c.Hi, 1)
	return above && below
}

// Table is an ordered set of classes. The first class containing a value wins.
type Table struct {
	Classes []Class
	NoData  color.RGBA
	Default color.RGBA
}

// R0Table is the fixed risk scale for the reproduction number R0.
//
// Values of exactly 1.5 and values below 0.8 fall between classes and render
// transparent.
func R0Table() Table {
	return Table{
		Classes: []Class{
			{Label: "0.8 ≤ R0 < 1.0", Lo: 0.8, Hi: 1.0, Color: color.RGBA{224, 243, 248, 255}},
			{Label: "1.0 ≤ R0 < 1.2", Lo: 1.0, Hi: 1.2, Color: color.RGBA{145, 191, 219, 255}},
			{Label: "1.2 ≤ R0 < 1.5", Lo: 1.2, Hi: 1.5, Color: color.RGBA{254, 224, 144, 255}},
			{Label: "R0 > 1.5", Lo: 1.5, Hi: math.Inf(1), LoExclusive: true, Color: color.RGBA{215, 48, 39, 255}},
		},
		NoData:  Transparent,
		Default: Transparent,
	}
}

// Index returns the class index of v, or -1 for NaN and unclassified values.
func (t Table) Index(v float64) int {
	if math.IsNaN(v) {
		return -1
	}
	for i, c := range t.Classes {
		if c.Contains(v) {
			return i
		}
	}
	return -1
}

// Classify returns the color of v.
func (t Table) Classify(v float64) color.RGBA {
	if math.IsNaN(v) {
		return t.NoData
	}
	if i := t.Index(v); i >= 0 {
		return t.Classes[i].Color
	}
	return t.Default
}

// Counts holds the number of cells per class after Apply.
type Counts struct {
	Classes      []int
	NoData       int
	Unclassified int
}

// Total is the number of cells counted.
func (c Counts) Total() int {
	n := c.NoData + c.Unclassified
	for _, k := range c.Classes {
		n += k
	}
	return n
}

// Apply colors every cell of band in a single pass over its values.
func (t Table) Apply(band *raster.Band) (*image.RGBA, Counts) {
	img := image.NewRGBA(image.Rect(0, 0, band.Width, band.Height))
	counts := Counts{Classes: make([]int, len(t.Classes))}
	pix := img.Pix
	for i, v := range band.Values {
		var c color.RGBA
		switch k := t.Index(v); {
		case math.IsNaN(v):
			c = t.NoData
			counts.NoData++
		case k < 0:
			c = t.Default
			counts.Unclassified++
		default:
			c = t.Classes[k].Color
			counts.Classes[k]++
		}
		p := pix[4*i : 4*i+4 : 4*i+4]
		p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
	}
	return img, counts
}

// LegendEntry is a class label with its color, for legends.
type LegendEntry struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Legend lists the table's classes in order with hex colors.
func (t Table) Legend() []LegendEntry {
	out := make([]LegendEntry, 0, len(t.Classes))
	for _, c := range t.Classes {
		out = append(out, LegendEntry{Label: c.Label, Color: Hex(c.Color)})
	}
	return out
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&0x0f]
	}
	return string(b)
}
