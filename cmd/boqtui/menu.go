package main

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"boqops/internal/menu"
)

// termMenuConfig maps the dropdown geometry onto terminal cells: one row
// per item, a border row top and bottom, and at most a quarter screen of
// height before scrolling would be needed.
var termMenuConfig = menu.Config{
	Width:      26,
	ItemHeight: 1,
	Padding:    2,
	Gap:        0,
	Margin:     1,
	MinHeight:  4,
	MaxHeight:  12,
}

type menuItem struct {
	label string
	apply func(model) (model, tea.Cmd)
}

type actionMenu struct {
	open   bool
	title  string
	items  []menuItem
	cursor int
	place  menu.Placement
}

// placeMenu runs the flip/clamp geometry against the terminal viewport.
// anchorRow is the screen row the menu drops from.
func placeMenu(m model, title string, anchorRow int, items []menuItem) actionMenu {
	trigger := menu.Rect{Top: float64(anchorRow), Left: 2, Width: termMenuConfig.Width, Height: 1}
	vp := menu.Viewport{Width: float64(m.width), Height: float64(m.height)}
	return actionMenu{
		open:  true,
		title: title,
		items: items,
		place: menu.Place(trigger, vp, len(items), termMenuConfig),
	}
}

func openStatusMenu(m model) actionMenu {
	setStatus := func(v string) func(model) (model, tea.Cmd) {
		return func(m model) (model, tea.Cmd) {
			m.ctrl.SetFilter("status", v)
			return m, nil
		}
	}
	items := []menuItem{
		{label: "all", apply: setStatus("")},
		{label: "draft", apply: setStatus("draft")},
		{label: "submitted", apply: setStatus("submitted")},
		{label: "approved", apply: setStatus("approved")},
		{label: "rejected", apply: setStatus("rejected")},
	}
	return placeMenu(m, "Filter by status", 3, items)
}

func openActionsMenu(m model) actionMenu {
	items := []menuItem{
		{label: "Refresh", apply: func(m model) (model, tea.Cmd) {
			m.ctrl.Refresh()
			return m, nil
		}},
		{label: "Open grid", apply: func(m model) (model, tea.Cmd) {
			if m.cursor < len(m.boqs) {
				return m, m.loadGridCmd(m.boqs[m.cursor].ID)
			}
			return m, nil
		}},
		{label: "Export workbook", apply: func(m model) (model, tea.Cmd) {
			if m.cursor < len(m.boqs) {
				return m, m.exportWorkbookCmd(m.boqs[m.cursor].ID)
			}
			return m, nil
		}},
		{label: "Export all (bulk)", apply: func(m model) (model, tea.Cmd) {
			return m, m.exportBulkCmd()
		}},
	}
	// Anchor on the selected row so the menu flips above it when the
	// cursor sits near the bottom of the terminal.
	anchorRow := 4 + m.cursor
	return placeMenu(m, "Actions", anchorRow, items)
}

func (m model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.menu.open = false
		return m, nil
	case "up", "k":
		if m.menu.cursor > 0 {
			m.menu.cursor--
		}
	case "down", "j":
		if m.menu.cursor < len(m.menu.items)-1 {
			m.menu.cursor++
		}
	case "enter":
		item := m.menu.items[m.menu.cursor]
		m.menu.open = false
		return item.apply(m)
	}
	return m, nil
}

// overlayMenu splices the rendered menu into the base view at the
// computed placement, shifting lines below it down.
func overlayMenu(base string, am actionMenu, width, height int) string {
	var box strings.Builder
	box.WriteString(titleStyle.Render(am.title))
	box.WriteString("\n")
	visible := len(am.items)
	if limit := int(am.place.MaxHeight) - 2; limit > 0 && visible > limit {
		visible = limit
	}
	for i := 0; i < visible; i++ {
		label := " " + am.items[i].label + strings.Repeat(" ", max(0, int(termMenuConfig.Width)-len(am.items[i].label)-1))
		if i == am.cursor {
			box.WriteString(menuSelStyle.Render(label))
		} else {
			box.WriteString(menuItemStyle.Render(label))
		}
		box.WriteString("\n")
	}
	rendered := menuStyle.Render(strings.TrimRight(box.String(), "\n"))

	indent := strings.Repeat(" ", int(am.place.Left))
	menuLines := strings.Split(rendered, "\n")
	for i := range menuLines {
		menuLines[i] = indent + menuLines[i]
	}

	lines := strings.Split(base, "\n")
	at := int(am.place.Top)
	if am.place.Above {
		at -= len(menuLines)
	}
	if at < 0 {
		at = 0
	}
	if at > len(lines) {
		at = len(lines)
	}
	out := append([]string{}, lines[:at]...)
	out = append(out, menuLines...)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n")
}
