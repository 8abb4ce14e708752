package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"riskmap/internal/catalog"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	lo := m.layout()

	// Header
	title := " riskmap ─ BayByeMos R0 " + m.date.Format(catalog.DateLayout) + " "
	if m.rendering {
		title += "(rendering) "
	}
	header := titleStyle.Render(title)
	header = lipgloss.NewStyle().Width(lo.contentW).Padding(0).Render(header)

	// Sidebar
	var sidebar string
	if m.showSidebar {
		sidebar = lipgloss.NewStyle().Width(lo.sidebarW).Render(m.l.View())
	}

	var mapView string
	if m.showAttrs {
		// Render attributes table centered in the map area
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		if colW == 0 {
			colW = min(60, lo.contentW-6)
		}
		maxW := min(lo.mapW, max(32, colW))
		m.tbl.SetWidth(maxW - 4)
		m.tbl.SetHeight(min(lo.mapH-2, 20))
		attrsBox := boxStyle.Width(maxW).Render(m.tbl.View())
		mapView = lipgloss.Place(lo.mapW, lo.mapH, lipgloss.Center, lipgloss.Center, attrsBox)
	} else {
		canvas := m.renderMap(max(8, lo.mapW), max(4, lo.mapH))
		if m.dateMode {
			entry := boxStyle.Render(m.ti.View())
			canvas = lipgloss.Place(lo.mapW, lo.mapH, lipgloss.Center, lipgloss.Center, entry,
				lipgloss.WithWhitespaceBackground(subtleBg))
		} else if m.showLegend {
			canvas = overlayBottomRight(canvas, m.renderLegend(), lo.mapW)
		}
		mapView = lipgloss.NewStyle().Width(lo.mapW).Height(lo.mapH).Render(canvas)
	}

	// Build inspect popup box (center-left overlay, not in map column)
	popup := ""
	if m.inspectPopup != "" && !m.showAttrs {
		maxPopupW := max(20, min(48, lo.contentW/2))
		box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MaxWidth(maxPopupW).Render(m.inspectPopup)
		popup = lipgloss.Place(lo.contentW, lipgloss.Height(box), lipgloss.Left, lipgloss.Center, box)
	}

	// Body row
	var body string
	if m.showSidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	} else {
		body = mapView
	}

	// Footer / help
	help := m.renderHelp()
	status := dimStyle.Render(" " + m.status + " ")
	left := lipgloss.JoinHorizontal(lipgloss.Bottom, status, help)
	coords := dimStyle.Render(m.hoverReadout())
	spacerW := max(0, lo.contentW-lipgloss.Width(left)-lipgloss.Width(coords))
	right := lipgloss.Place(spacerW+lipgloss.Width(coords), 1, lipgloss.Right, lipgloss.Center, coords)
	footer := lipgloss.NewStyle().Width(lo.contentW).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, left, right))

	// Compose UI with popup overlay between header and body
	ui := lipgloss.JoinVertical(lipgloss.Left, header, popup, body, footer)
	return appStyle.Width(lo.contentW).Height(m.height).Render(ui)
}

// hoverReadout is the footer text for the cell under the mouse.
func (m Model) hoverReadout() string {
	if !m.hoverHasGeo {
		return ""
	}
	parts := []string{fmt.Sprintf("lon=%.5f lat=%.5f", m.hoverLon, m.hoverLat)}
	if m.hoverHasValue {
		parts = append(parts, "R0="+formatValue(m.hoverValue))
	}
	if m.hoverDistrict != "" {
		parts = append(parts, m.hoverDistrict)
	}
	return "  " + strings.Join(parts, "  ") + "  "
}

func (m Model) renderLegend() string {
	rows := make([]string, 0, len(m.table.Classes)+1)
	rows = append(rows, titleStyle.Render("R0-Werte"))
	opacity := 0.6
	if m.mp != nil {
		opacity = m.mp.View.OverlayOpacity
	}
	for i, c := range m.table.Classes {
		swatch := lipgloss.NewStyle().Background(lipgloss.Color(blendHex(c.Color, canvasRGBA, opacity))).Render("  ")
		label := c.Label
		if m.mp != nil && i < len(m.mp.Counts.Classes) {
			label += dimStyle.Render(fmt.Sprintf(" %d", m.mp.Counts.Classes[i]))
		}
		rows = append(rows, swatch+" "+label)
	}
	return legendStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"[ ] day",
		"{ } week",
		"t today",
		"d date",
		"↑↓←→ pan",
		"+/- zoom",
		"Tab years",
		"a attrs",
		"i inspect",
		"1/2 layers",
		"l legend",
		"h help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
