package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceDefaultBelowRightAligned(t *testing.T) {
	c := DefaultConfig()
	vp := Viewport{Width: 1280, Height: 800}
	trigger := Rect{Top: 100, Left: 600, Width: 40, Height: 32}

	p := Place(trigger, vp, 4, c)
	assert.False(t, p.Above)
	assert.Equal(t, trigger.Bottom()+c.Gap, p.Top)
	assert.Equal(t, trigger.Right()-c.Width, p.Left)
	assert.Equal(t, c.EstimatedHeight(4), p.MaxHeight)
}

func TestPlaceFlipsAboveNearBottomEdge(t *testing.T) {
	// 800px viewport, 6 actions -> estimate 6*44+52 = 316px, 40px below.
	c := DefaultConfig()
	vp := Viewport{Width: 1280, Height: 800}
	trigger := Rect{Top: 728, Left: 600, Width: 40, Height: 32} // bottom = 760

	p := Place(trigger, vp, 6, c)
	assert.True(t, p.Above, "insufficient space below and ample space above")
	assert.Equal(t, 316.0, p.MaxHeight)
	assert.Equal(t, trigger.Top-c.Gap-p.MaxHeight, p.Top)
}

func TestPlaceStaysBelowWhenAboveIsAlsoTight(t *testing.T) {
	// trigger near the top of a short viewport: cannot flip, clamps below
	// with the MinHeight floor.
	c := DefaultConfig()
	vp := Viewport{Width: 1280, Height: 300}
	trigger := Rect{Top: 40, Left: 600, Width: 40, Height: 32} // bottom = 72

	p := Place(trigger, vp, 6, c)
	assert.False(t, p.Above, "space above (32) below the 250px threshold")
	assert.Equal(t, c.MinHeight, p.MaxHeight, "floor applies when below is tight")
}

func TestPlaceClampsHeightBelow(t *testing.T) {
	c := DefaultConfig()
	vp := Viewport{Width: 1280, Height: 800}
	trigger := Rect{Top: 480, Left: 600, Width: 40, Height: 32} // bottom=512, below=280

	p := Place(trigger, vp, 6, c) // desired 316 > 280, above (480) > below (280)... flips
	assert.True(t, p.Above)
	assert.Equal(t, 316.0, p.MaxHeight)
}

func TestPlaceCapsAtMaxHeight(t *testing.T) {
	c := DefaultConfig()
	vp := Viewport{Width: 1280, Height: 1200}
	trigger := Rect{Top: 100, Left: 600, Width: 40, Height: 32}

	p := Place(trigger, vp, 20, c) // estimate 932 > cap
	assert.Equal(t, c.MaxHeight, p.MaxHeight)
}

func TestPlaceHorizontalClamp(t *testing.T) {
	c := DefaultConfig()
	vp := Viewport{Width: 1280, Height: 800}

	// trigger hugging the left edge: right-aligned left would be negative
	left := Place(Rect{Top: 100, Left: 10, Width: 40, Height: 32}, vp, 3, c)
	assert.Equal(t, c.Margin, left.Left)

	// trigger hugging the right edge
	right := Place(Rect{Top: 100, Left: 1260, Width: 40, Height: 32}, vp, 3, c)
	assert.Equal(t, vp.Width-c.Width-c.Margin, right.Left)
}

func TestPlaceIsPure(t *testing.T) {
	c := DefaultConfig()
	vp := Viewport{Width: 1280, Height: 800}
	trigger := Rect{Top: 728, Left: 600, Width: 40, Height: 32}

	first := Place(trigger, vp, 6, c)
	second := Place(trigger, vp, 6, c)
	assert.Equal(t, first, second, "no state carried across calls")
}
