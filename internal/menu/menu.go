// Package menu computes on-screen placement for a popover action menu
// anchored to a trigger rectangle. Placement is pure geometry: callers
// recompute it on every open and on every scroll/resize while open;
// nothing is cached across viewport changes.
package menu

// Rect is an axis-aligned rectangle in viewport coordinates.
type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

// Bottom returns the rect's bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Right returns the rect's right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Viewport is the visible area the menu must stay inside.
type Viewport struct {
	Width  float64
	Height float64
}

// Config describes the menu's fixed dimensions and placement rules.
type Config struct {
	Width      float64 // popover width
	ItemHeight float64 // per-item height used for the content estimate
	Padding    float64 // vertical chrome added to the content estimate
	Gap        float64 // gap between trigger and menu
	Margin     float64 // minimum distance from every viewport edge
	MinHeight  float64 // floor for the clamped height (avoids a sliver)
	MaxHeight  float64 // cap on the menu height regardless of space
}

// DefaultConfig matches the dashboard's action menus.
func DefaultConfig() Config {
	return Config{
		Width:      224,
		ItemHeight: 44,
		Padding:    52,
		Gap:        4,
		Margin:     8,
		MinHeight:  250,
		MaxHeight:  400,
	}
}

// Placement is the computed menu position.
type Placement struct {
	Top       float64
	Left      float64
	MaxHeight float64
	Above     bool // true when the menu opens above the trigger
}

// EstimatedHeight returns the content height estimate for itemCount items.
func (c Config) EstimatedHeight(itemCount int) float64 {
	return float64(itemCount)*c.ItemHeight + c.Padding
}

// Place positions the menu for a trigger rect inside the viewport.
//
// The menu defaults to opening below the trigger, right-aligned. It flips
// above only when the space below cannot fit the desired height AND the
// space above is both larger than the space below and larger than the
// MinHeight threshold. Either way the height is clamped to the chosen
// side's available space, never below MinHeight when opening downward.
// The left edge is clamped into [Margin, vw - Width - Margin].
func Place(trigger Rect, vp Viewport, itemCount int, c Config) Placement {
	desired := c.EstimatedHeight(itemCount)
	if desired > c.MaxHeight {
		desired = c.MaxHeight
	}

	spaceBelow := vp.Height - trigger.Bottom() - c.Margin
	spaceAbove := trigger.Top - c.Margin

	var p Placement
	if spaceBelow < desired && spaceAbove > spaceBelow && spaceAbove > c.MinHeight {
		p.Above = true
		p.MaxHeight = desired
		if p.MaxHeight > spaceAbove {
			p.MaxHeight = spaceAbove
		}
		p.Top = trigger.Top - c.Gap - p.MaxHeight
	} else {
		p.MaxHeight = desired
		if p.MaxHeight > spaceBelow {
			p.MaxHeight = spaceBelow
		}
		if p.MaxHeight < c.MinHeight {
			p.MaxHeight = c.MinHeight
		}
		p.Top = trigger.Bottom() + c.Gap
	}

	p.Left = trigger.Right() - c.Width
	min := c.Margin
	max := vp.Width - c.Width - c.Margin
	if p.Left > max {
		p.Left = max
	}
	if p.Left < min {
		p.Left = min
	}
	return p
}
