package tui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// formatValue renders a raster value for the footer and popups.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "no data"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// overlayBottomRight draws box over the bottom-right corner of canvas.
// Canvas lines are assumed to be width cells wide.
func overlayBottomRight(canvas, box string, width int) string {
	lines := strings.Split(canvas, "\n")
	boxLines := strings.Split(box, "\n")
	if len(boxLines) > len(lines) {
		return canvas
	}
	boxW := 0
	for _, bl := range boxLines {
		boxW = max(boxW, lipgloss.Width(bl))
	}
	if boxW >= width {
		return canvas
	}
	start := len(lines) - len(boxLines)
	for i, bl := range boxLines {
		left := ansi.Truncate(lines[start+i], width-boxW, "")
		pad := width - boxW - lipgloss.Width(left)
		lines[start+i] = left + strings.Repeat(" ", max(0, pad)) + bl + strings.Repeat(" ", boxW-lipgloss.Width(bl))
	}
	return strings.Join(lines, "\n")
}
