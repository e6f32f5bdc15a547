package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"boqops/internal/csvgrid"
	"boqops/internal/handlers/boq"
)

type gridMode int

const (
	gridNormal gridMode = iota
	gridEdit
)

type gridModel struct {
	id      string
	editor  *csvgrid.Editor
	cx, cy  int
	scrollY int
	mode    gridMode
	editBuf string
	dirty   bool
}

func newGridModel(id, csv string) gridModel {
	return gridModel{
		id:     id,
		editor: csvgrid.FromCSV(csv, boq.HeaderRows),
	}
}

func (m model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.grid.mode == gridEdit {
		return m.updateGridEdit(msg)
	}

	g := &m.grid
	switch msg.String() {
	case "q", "esc":
		m.view = viewList
		m.status = ""
		return m, nil
	case "ctrl+c":
		m.ctrl.Close()
		return m, tea.Quit
	case "left", "h":
		if g.cx > 0 {
			g.cx--
		}
	case "right", "l":
		if g.cx < g.editor.Cols()-1 {
			g.cx++
		}
	case "up", "k":
		if g.cy > 0 {
			g.cy--
		}
	case "down", "j":
		if g.cy < g.editor.Rows()-1 {
			g.cy++
		}
	case "enter":
		if cell, err := g.editor.Cell(g.cy, g.cx); err == nil {
			g.mode = gridEdit
			g.editBuf = cell
		}
	case "a":
		g.editor.AppendRow()
		g.cy = g.editor.Rows() - 1
		g.dirty = true
	case "d":
		if err := g.editor.DeleteRow(g.cy); err != nil {
			if errors.Is(err, csvgrid.ErrHeaderProtected) {
				m.status = "header rows cannot be deleted"
			} else {
				m.status = err.Error()
			}
			return m, nil
		}
		if g.cy >= g.editor.Rows() {
			g.cy = max(0, g.editor.Rows()-1)
		}
		g.dirty = true
	case "ctrl+s":
		return m, m.saveGridCmd(g.id, g.editor.CSV())
	}
	g.clampScroll(m.height)
	return m, nil
}

func (m model) updateGridEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	g := &m.grid
	switch msg.String() {
	case "esc":
		g.mode = gridNormal
		return m, nil
	case "enter":
		if err := g.editor.SetCell(g.cy, g.cx, g.editBuf); err != nil {
			m.status = err.Error()
		} else {
			g.dirty = true
		}
		g.mode = gridNormal
		return m, nil
	case "backspace":
		if len(g.editBuf) > 0 {
			g.editBuf = g.editBuf[:len(g.editBuf)-1]
		}
		return m, nil
	}
	switch msg.Type {
	case tea.KeyRunes:
		g.editBuf += string(msg.Runes)
	case tea.KeySpace:
		g.editBuf += " "
	}
	return m, nil
}

func (g *gridModel) clampScroll(height int) {
	visible := height - 4
	if visible < 1 {
		return
	}
	if g.cy < g.scrollY {
		g.scrollY = g.cy
	}
	if g.cy >= g.scrollY+visible {
		g.scrollY = g.cy - visible + 1
	}
}

const colWidth = 16

func (m model) viewGrid() string {
	g := m.grid
	var b strings.Builder
	b.WriteString(titleStyle.Render("BOQ " + g.id))
	if g.dirty {
		b.WriteString(statusStyle.Render("  modified"))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %dx%d", g.editor.Rows(), g.editor.Cols())))
	b.WriteString("\n")

	visible := m.height - 4
	if visible < 1 {
		visible = g.editor.Rows()
	}
	end := g.scrollY + visible
	if end > g.editor.Rows() {
		end = g.editor.Rows()
	}
	for r := g.scrollY; r < end; r++ {
		var line strings.Builder
		for c := 0; c < g.editor.Cols(); c++ {
			cell, _ := g.editor.Cell(r, c)
			if len(cell) > colWidth-1 {
				cell = cell[:colWidth-1]
			}
			text := fmt.Sprintf("%-*s", colWidth, cell)
			if r == g.cy && c == g.cx {
				if g.mode == gridEdit {
					text = cursorStyle.Render(fmt.Sprintf("%-*s", colWidth, g.editBuf))
				} else {
					text = cursorStyle.Render(text)
				}
			} else if r < g.editor.HeaderBoundary() {
				text = protectedRow.Render(text)
			}
			line.WriteString(text)
		}
		b.WriteString(line.String())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter: edit  a: add row  d: delete row  ctrl+s: save  esc: back"))
	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()))
	}
	return b.String()
}

// --- background commands ---

func (m model) loadGridCmd(id string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		csv, err := api.FetchCSV(ctx, "/api/v1/boqs/"+id+"/csv")
		if err != nil {
			return errMsg{err}
		}
		return gridLoadedMsg{id: id, csv: csv}
	}
}

func (m model) saveGridCmd(id, csv string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var out struct {
			Rows  int     `json:"rows"`
			Total float64 `json:"total_value"`
		}
		body := map[string]string{"csv": csv}
		if err := api.Call(ctx, "PUT", "/api/v1/boqs/"+id+"/grid", body, &out); err != nil {
			return errMsg{err}
		}
		return statusMsg(fmt.Sprintf("saved %d rows, total %.2f", out.Rows, out.Total))
	}
}

func (m model) exportWorkbookCmd(id string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		csv, err := api.FetchCSV(ctx, "/api/v1/boqs/"+id+"/csv")
		if err != nil {
			return errMsg{err}
		}
		payload := csvgrid.FromCSV(csv, boq.HeaderRows).BulkPayload(id, id)
		data, err := api.DownloadWorkbook(ctx, "/api/v1/boqs/workbook", payload)
		if err != nil {
			return errMsg{err}
		}
		name := id + ".xlsx"
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return errMsg{err}
		}
		return statusMsg("wrote " + name)
	}
}

func (m model) exportBulkCmd() tea.Cmd {
	api := m.api
	boqs := m.boqs
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		var payloads []csvgrid.Payload
		for _, b := range boqs {
			csv, err := api.FetchCSV(ctx, "/api/v1/boqs/"+b.ID+"/csv")
			if err != nil {
				// Records without a grid are reported by the server
				// in the bulk summary; skip them here.
				continue
			}
			payloads = append(payloads, csvgrid.FromCSV(csv, boq.HeaderRows).BulkPayload(b.ID, b.ID))
		}
		if len(payloads) == 0 {
			return errMsg{errors.New("no BOQs with grids on this page")}
		}
		data, summary, err := api.DownloadWorkbookBulk(ctx, "/api/v1/boqs/workbook/bulk", payloads)
		if err != nil {
			return errMsg{err}
		}
		name := "boq_bulk.xlsx"
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return errMsg{err}
		}
		msg := fmt.Sprintf("wrote %s (%d ok", name, summary.Succeeded)
		if summary.Failed > 0 {
			msg += fmt.Sprintf(", %d failed: %s", summary.Failed, strings.Join(summary.FailedIDs, ","))
		}
		return statusMsg(msg + ")")
	}
}
