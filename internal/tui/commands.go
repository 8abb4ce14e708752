package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"riskmap/internal/catalog"
	"riskmap/internal/geom"
	"riskmap/internal/overlay"
)

// renderedMsg carries a finished render back into Update.
type renderedMsg struct {
	seq  int
	date time.Time
	mp   *overlay.Map
	err  error
}

// renderCmd builds the map for date off the UI goroutine.
func (m Model) renderCmd(seq int, date time.Time) tea.Cmd {
	r, req := m.renderer, m.catalog.Request(date)
	return func() tea.Msg {
		mp, err := r.Build(context.Background(), req)
		return renderedMsg{seq: seq, date: date, mp: mp, err: err}
	}
}

// setDate clamps d into the selectable range and starts a render.
func (m *Model) setDate(d time.Time) tea.Cmd {
	d = catalog.Selectable().Clamp(d)
	m.date = d
	m.renderSeq++
	m.rendering = true
	m.status = "rendering " + d.Format(catalog.DateLayout) + " …"
	return m.renderCmd(m.renderSeq, d)
}

// applyRender installs a finished render. Results of superseded renders are
// dropped; a failed render keeps the previous map on screen.
func (m *Model) applyRender(msg renderedMsg) {
	if msg.seq != m.renderSeq {
		return
	}
	m.rendering = false
	if msg.err != nil {
		m.status = "render error: " + msg.err.Error()
		m.logger.Warn("render failed", "date", msg.date.Format(catalog.DateLayout), "error", msg.err)
		return
	}
	m.mp = msg.mp
	d := msg.mp.Boundaries.Data()
	m.lines, m.polygons = d.Lines, d.Polygons
	b := msg.mp.Bounds
	m.bbox = d.BBox.Union(geom.BBox{MinX: b[0][1], MinY: b[0][0], MaxX: b[1][1], MaxY: b[1][0]})
	m.status = fmt.Sprintf("R0 %s  day %d  districts=%d  nodata=%d",
		msg.date.Format(catalog.DateLayout), msg.mp.Day, len(msg.mp.Boundaries.Boundaries), msg.mp.Counts.NoData)
	m.refreshHover()
	if m.showAttrs {
		m.refreshAttrsFromCurrent()
	}
}
