package tui

import (
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"riskmap/internal/classify"
)

// cellToLonLat converts a map cell coordinate back to lon/lat using bbox, zoom, and pan.
func (m Model) cellToLonLat(cx, cy, w, h int) (float64, float64, bool) {
	if !m.bbox.Valid() {
		return 0, 0, false
	}
	if w <= 1 || h <= 1 {
		return 0, 0, false
	}
	zx := float64(cx-m.offsetX) / float64(w-1)
	zy := 1.0 - float64(cy-m.offsetY)/float64(h-1)
	nx := 0.5 + (zx-0.5)/m.zoom
	ny := 0.5 + (zy-0.5)/m.zoom
	lon := m.bbox.MinX + nx*(m.bbox.MaxX-m.bbox.MinX)
	lat := m.bbox.MinY + ny*(m.bbox.MaxY-m.bbox.MinY)
	return lon, lat, true
}

// screenXYMicro maps lon/lat into a 2x4 microgrid per cell for braille rendering.
func (m Model) screenXYMicro(lon, lat float64, w, h int) (int, int, bool) {
	if !m.bbox.Valid() {
		return 0, 0, false
	}
	nx := (lon - m.bbox.MinX) / (m.bbox.MaxX - m.bbox.MinX)
	ny := (lat - m.bbox.MinY) / (m.bbox.MaxY - m.bbox.MinY)
	zx := 0.5 + (nx-0.5)*m.zoom
	zy := 0.5 + (ny-0.5)*m.zoom
	wMic := w * 2
	hMic := h * 4
	sx := int(zx*float64(wMic-1)) + m.offsetX*2
	sy := int((1.0-zy)*float64(hMic-1)) + m.offsetY*4
	return sx, sy, true
}

// cellBackground is the blended raster color under a map cell, or "" for none.
func (m Model) cellBackground(cx, cy, w, h int) string {
	if m.mp == nil || !m.showRaster {
		return ""
	}
	lon, lat, ok := m.cellToLonLat(cx, cy, w, h)
	if !ok {
		return ""
	}
	v, ok := m.mp.Sample(lon, lat)
	if !ok {
		return ""
	}
	c := m.table.Classify(v)
	if c.A == 0 {
		return ""
	}
	return blendHex(c, canvasRGBA, m.mp.View.OverlayOpacity)
}

// blendHex composites c over bg at the given opacity.
func blendHex(c, bg color.RGBA, opacity float64) string {
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(opacity*float64(a) + (1-opacity)*float64(b)))
	}
	return classify.Hex(color.RGBA{R: mix(c.R, bg.R), G: mix(c.G, bg.G), B: mix(c.B, bg.B), A: 255})
}

func (m Model) renderMap(w, h int) string {
	// High-resolution braille buffer for crisp district outlines
	br := newBrailleBuf(w, h)
	if m.showPolys {
		for _, poly := range m.polygons {
			for _, ring := range poly {
				br.drawPath(m.project(ring, w, h))
			}
		}
		for _, ls := range m.lines {
			br.drawPath(m.project(ls, w, h))
		}
	}
	glyphs := br.cells()

	outline := lipgloss.NewStyle().Foreground(outlineFg)
	marker := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true)
	var sb strings.Builder
	for y := 0; y < h; y++ {
		var run []rune
		runBg := ""
		flush := func() {
			if len(run) == 0 {
				return
			}
			st := outline
			if runBg != "" {
				st = st.Background(lipgloss.Color(runBg))
			}
			sb.WriteString(st.Render(string(run)))
			run = run[:0]
		}
		for x := 0; x < w; x++ {
			bg := m.cellBackground(x, y, w, h)
			if m.hovering && x == m.hoverCellX && y == m.hoverCellY {
				flush()
				st := marker
				if bg != "" {
					st = st.Background(lipgloss.Color(bg))
				}
				sb.WriteString(st.Render("+"))
				runBg = bg
				continue
			}
			if bg != runBg {
				flush()
				runBg = bg
			}
			run = append(run, glyphs[y][x])
		}
		flush()
		if y < h-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// project maps a lon/lat path onto the braille microgrid.
func (m Model) project(path [][2]float64, w, h int) [][2]int {
	out := make([][2]int, 0, len(path))
	for _, p := range path {
		mx, my, ok := m.screenXYMicro(p[0], p[1], w, h)
		if !ok {
			continue
		}
		out = append(out, [2]int{mx, my})
	}
	return out
}

// refreshHover recomputes the footer readout for the hovered cell.
func (m *Model) refreshHover() {
	m.hoverHasGeo, m.hoverHasValue, m.hoverDistrict = false, false, ""
	if !m.hovering {
		return
	}
	lon, lat, ok := m.cellToLonLat(m.hoverCellX, m.hoverCellY, m.mapW, m.mapH)
	if !ok {
		return
	}
	m.hoverHasGeo, m.hoverLon, m.hoverLat = true, lon, lat
	if m.mp == nil {
		return
	}
	m.hoverValue, m.hoverHasValue = m.mp.Sample(lon, lat)
	if m.hoverHasValue && math.IsNaN(m.hoverValue) {
		m.hoverHasValue = false
	}
	if b, ok := m.mp.Boundaries.FeatureAt(lon, lat); ok {
		m.hoverDistrict = b.Name
	}
}

// inspectPoint returns the hovered location, or the viewport center.
func (m Model) inspectPoint() (lon, lat float64, ok bool) {
	if m.hovering && m.hoverHasGeo {
		return m.hoverLon, m.hoverLat, true
	}
	w, h := m.mapW, m.mapH
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	return m.cellToLonLat(w/2, h/2, w, h)
}
