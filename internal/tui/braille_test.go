package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrailleBuf_Dots(t *testing.T) {
	b := newBrailleBuf(2, 1)
	b.set(0, 0)
	b.set(3, 3)
	b.set(-1, 0)
	b.set(4, 0)

	got := b.cells()
	assert.Equal(t, [][]rune{{'⠁', '⢀'}}, got)
}

func TestBrailleBuf_DrawPath(t *testing.T) {
	b := newBrailleBuf(2, 1)
	b.drawPath([][2]int{{0, 0}, {3, 0}, {3, 3}})

	// top row of both cells, then the right column of the second cell
	assert.Equal(t, [][]rune{{'⠉', '⢹'}}, b.cells())
}

func TestBrailleBuf_OffscreenSegments(t *testing.T) {
	b := newBrailleBuf(2, 1)
	assert.True(t, b.offscreen(-100, 0, -5, 3))
	assert.True(t, b.offscreen(0, 10, 3, 1000))
	assert.False(t, b.offscreen(-5, 1, 10, 1))

	b.drawPath([][2]int{{-1000000, 2}, {-5, 2}})
	assert.Equal(t, [][]rune{{' ', ' '}}, b.cells())

	// crossing segment is clipped to the canvas
	b.drawPath([][2]int{{-5, 1}, {10, 1}})
	assert.Equal(t, [][]rune{{'⠒', '⠒'}}, b.cells())
}
