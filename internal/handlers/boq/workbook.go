package boq

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"boqops/internal/audit"
	"boqops/internal/csvgrid"
	"boqops/internal/response"
	"boqops/internal/validation"
)

// Workbook handles POST /api/v1/boqs/workbook. The body is a single grid
// payload; the response is an xlsx file with one sheet.
func (h *Handler) Workbook(w http.ResponseWriter, r *http.Request) {
	var p csvgrid.Payload
	if err := response.DecodeBody(r, &p); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := addSheet(f, p); err != nil {
		response.Err(w, err.Error(), 400)
		return
	}
	f.DeleteSheet("Sheet1")

	h.audit(r, audit.ActionExport, p.RecordID, "workbook export")
	writeWorkbook(w, f, validation.SanitizeFilename(p.RecordID)+".xlsx")
}

// WorkbookBulk handles POST /api/v1/boqs/workbook/bulk. The body is an
// array of grid payloads; each becomes one sheet of a single workbook.
// Records that cannot be rendered are skipped, and the response reports
// the split via X-Success-Count, X-Failed-Count and X-Failed-Records
// headers. All records failing is a 422.
func (h *Handler) WorkbookBulk(w http.ResponseWriter, r *http.Request) {
	var payloads []csvgrid.Payload
	if err := response.DecodeBody(r, &payloads); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if len(payloads) == 0 {
		response.Err(w, "no records in request", 400)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	var failed []string
	succeeded := 0
	seen := map[string]bool{}
	for i, p := range payloads {
		// a payload without a record id still needs an identifier in
		// X-Failed-Records, fall back to its position
		id := p.RecordID
		if id == "" {
			id = fmt.Sprintf("record-%d", i+1)
		}
		if seen[sheetName(p)] {
			failed = append(failed, id)
			continue
		}
		if err := addSheet(f, p); err != nil {
			failed = append(failed, id)
			continue
		}
		seen[sheetName(p)] = true
		succeeded++
	}

	w.Header().Set("X-Success-Count", strconv.Itoa(succeeded))
	w.Header().Set("X-Failed-Count", strconv.Itoa(len(failed)))
	if len(failed) > 0 {
		w.Header().Set("X-Failed-Records", strings.Join(failed, ","))
	}
	if succeeded == 0 {
		response.Err(w, "no records could be rendered", 422)
		return
	}
	f.DeleteSheet("Sheet1")

	h.audit(r, audit.ActionExport, "", fmt.Sprintf("bulk workbook export (%d ok, %d failed)", succeeded, len(failed)))
	writeWorkbook(w, f, "boq_bulk.xlsx")
}

func sheetName(p csvgrid.Payload) string {
	name := p.Label
	if name == "" {
		name = p.RecordID
	}
	// excelize rejects sheet names over 31 chars or containing these.
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func addSheet(f *excelize.File, p csvgrid.Payload) error {
	if p.RecordID == "" {
		return fmt.Errorf("record_id is required")
	}
	if len(p.Grid) == 0 {
		return fmt.Errorf("record %s has an empty grid", p.RecordID)
	}
	name := sheetName(p)
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("record %s: %w", p.RecordID, err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDDDDD"}, Pattern: 1},
	})
	for i, row := range p.Grid {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("record %s: %w", p.RecordID, err)
			}
			if v, perr := strconv.ParseFloat(cell, 64); perr == nil && i >= HeaderRows {
				f.SetCellValue(name, ref, v)
			} else {
				f.SetCellValue(name, ref, cell)
			}
		}
		if i < HeaderRows {
			end, _ := excelize.CoordinatesToCellName(len(row), i+1)
			start, _ := excelize.CoordinatesToCellName(1, i+1)
			f.SetCellStyle(name, start, end, headerStyle)
		}
	}
	cols := 0
	for _, row := range p.Grid {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols > 0 {
		last, _ := excelize.ColumnNumberToName(cols)
		f.SetColWidth(name, "A", last, 18)
	}
	return nil
}

func writeWorkbook(w http.ResponseWriter, f *excelize.File, filename string) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	f.Write(w)
}
