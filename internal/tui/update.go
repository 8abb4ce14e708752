package tui

import (
	"fmt"
	"strings"

	list "github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"riskmap/internal/catalog"
)

const sidebarWidth = 28

// layout is the screen geometry shared by View and mouse handling.
type layout struct {
	contentW, contentH int
	sidebarW           int
	mapX, mapY         int
	mapW, mapH         int
}

func (m Model) layout() layout {
	lo := layout{}
	headerHeight := 1
	footerHeight := 2
	lo.contentH = max(4, m.height-headerHeight-footerHeight)
	lo.contentW = max(10, m.width)
	if m.showSidebar {
		lo.sidebarW = sidebarWidth
		lo.mapX = sidebarWidth + 1
	}
	lo.mapY = headerHeight
	lo.mapW = max(10, lo.contentW-lo.sidebarW-1)
	lo.mapH = lo.contentH
	return lo
}

// resize syncs the sidebar list and the map canvas size with the window.
func (m *Model) resize() {
	lo := m.layout()
	m.mapW, m.mapH = max(8, lo.mapW), max(4, lo.mapH)
	if m.showSidebar {
		m.l.SetSize(sidebarWidth-2, lo.contentH-2)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
	case renderedMsg:
		m.applyRender(msg)
		return m, nil
	case tea.KeyMsg:
		// If list is visible and filtering, send keys to list and ignore global commands
		if m.showSidebar && m.l.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.l, cmd = m.l.Update(msg)
			return m, cmd
		}
		if m.dateMode {
			return m.updateDateEntry(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "]":
			return m, m.setDate(m.date.AddDate(0, 0, 1))
		case "[":
			return m, m.setDate(m.date.AddDate(0, 0, -1))
		case "}":
			return m, m.setDate(m.date.AddDate(0, 0, 7))
		case "{":
			return m, m.setDate(m.date.AddDate(0, 0, -7))
		case "t":
			return m, m.setDate(catalog.Today())
		case "d":
			m.dateMode = true
			m.ti.SetValue(m.date.Format(catalog.DateLayout))
			m.ti.CursorEnd()
			m.status = "enter date; Enter to render, Esc to cancel"
			return m, m.ti.Focus()
		case "1":
			m.showRaster = !m.showRaster
			m.status = fmt.Sprintf("raster: %v", m.showRaster)
		case "2":
			m.showPolys = !m.showPolys
			m.status = fmt.Sprintf("boundaries: %v", m.showPolys)
		case "+", "=":
			if m.zoom < 64 {
				m.zoom *= 1.2
				m.status = fmt.Sprintf("zoom: %.2fx", m.zoom)
			}
		case "-", "_":
			if m.zoom > 0.05 {
				m.zoom /= 1.2
				m.status = fmt.Sprintf("zoom: %.2fx", m.zoom)
			}
		case "tab":
			m.showSidebar = !m.showSidebar
			if m.showSidebar {
				m.refreshYears()
			}
			m.resize()
		case "h":
			m.helpVisible = !m.helpVisible
		case "l":
			m.showLegend = !m.showLegend
		case "a":
			m.showAttrs = !m.showAttrs
			if m.showAttrs {
				m.refreshAttrsFromCurrent()
			}
		case "i":
			m.inspect()
		case "esc":
			m.inspectPopup = ""
		case "enter":
			if m.showSidebar {
				if it, ok := m.l.SelectedItem().(yearItem); ok {
					return m, m.setDate(sameDayIn(m.date, it.year))
				}
			}
		case "up":
			if !m.showSidebar {
				m.offsetY -= 1
			}
		case "down":
			if !m.showSidebar {
				m.offsetY += 1
			}
		case "left":
			m.offsetX -= 2
		case "right":
			m.offsetX += 2
		}
	case tea.MouseMsg:
		lo := m.layout()
		cx, cy := msg.X, msg.Y
		if cx >= lo.mapX && cx < lo.mapX+lo.mapW && cy >= lo.mapY && cy < lo.mapY+lo.mapH {
			m.hovering = true
			m.hoverCellX = cx - lo.mapX
			m.hoverCellY = cy - lo.mapY
		} else {
			m.hovering = false
		}
		m.refreshHover()
	}
	// Pass messages to list when visible
	if m.showSidebar {
		var cmd tea.Cmd
		m.l, cmd = m.l.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateDateEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.dateMode = false
		m.ti.Blur()
		m.status = "date entry cancelled"
		return m, nil
	case "enter":
		d, err := catalog.ParseDate(m.ti.Value())
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.dateMode = false
		m.ti.Blur()
		cmd := m.setDate(d)
		if !d.Equal(m.date) {
			m.status = "clamped to " + m.date.Format(catalog.DateLayout) + "; " + m.status
		}
		return m, cmd
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

// inspect opens the tooltip popup for the district under the hover point.
func (m *Model) inspect() {
	if m.mp == nil {
		m.inspectPopup = ""
		m.status = "no map rendered yet"
		return
	}
	lon, lat, ok := m.inspectPoint()
	if !ok {
		m.inspectPopup = ""
		m.status = "nothing to inspect"
		return
	}
	b, found := m.mp.Boundaries.FeatureAt(lon, lat)
	if !found {
		m.inspectPopup = "no district here"
		m.status = m.inspectPopup
		return
	}
	lines := b.Tooltip()
	if v, ok := m.mp.Sample(lon, lat); ok {
		lines = append(lines, fmt.Sprintf("R0 (%s): %s", m.date.Format(catalog.DateLayout), formatValue(v)))
	}
	lines = append(lines, fmt.Sprintf("lon=%.5f lat=%.5f", lon, lat))
	m.inspectPopup = strings.Join(lines, "\n")
	m.status = "inspect: " + b.Name
}
