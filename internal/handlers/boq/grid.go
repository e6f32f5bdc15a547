package boq

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"boqops/internal/audit"
	"boqops/internal/csvgrid"
	"boqops/internal/models"
	"boqops/internal/response"
	"boqops/internal/validation"
)

// gridColumns is the column header row of a generated grid, and the row
// uploads are checked against.
var gridColumns = []string{"Item Code", "Description", "Category", "UOM", "Unit Price", "Quantity", "Total"}

const (
	colUnitPrice = 4
	colQuantity  = 5
	colTotal     = 6
)

func (h *Handler) loadGrid(boqID string) (csvgrid.Grid, error) {
	rows, err := h.DB.Query("SELECT cells FROM boq_rows WHERE boq_id = ? ORDER BY row_index", boqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grid csvgrid.Grid
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("corrupt grid row for %s: %w", boqID, err)
		}
		grid = append(grid, cells)
	}
	return grid, rows.Err()
}

func (h *Handler) saveGrid(boqID string, grid csvgrid.Grid) error {
	tx, err := h.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM boq_rows WHERE boq_id = ?", boqID); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO boq_rows (boq_id, row_index, cells) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, row := range grid {
		raw, _ := json.Marshal(row)
		if _, err := stmt.Exec(boqID, i, string(raw)); err != nil {
			return err
		}
	}
	total := gridTotal(grid)
	if _, err := tx.Exec("UPDATE boqs SET total_value = ?, updated_at = ? WHERE id = ?",
		total, time.Now().UTC().Format(time.RFC3339), boqID); err != nil {
		return err
	}
	return tx.Commit()
}

// gridTotal sums the Total column of the item rows. Header rows and
// unparsable cells contribute zero.
func gridTotal(grid csvgrid.Grid) float64 {
	var sum float64
	for i := HeaderRows; i < len(grid); i++ {
		row := grid[i]
		if len(row) <= colTotal {
			continue
		}
		v, err := strconv.ParseFloat(row[colTotal], 64)
		if err != nil {
			continue
		}
		sum += v
	}
	return sum
}

// Generate handles POST /api/v1/boqs/:id/generate. It builds a fresh grid
// from the BOQ's site and price book: six header rows followed by one row
// per price book item with quantity zero, replaces any stored grid, and
// returns the CSV text.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.loadBOQ(id)
	if err != nil {
		response.Err(w, "BOQ not found", 404)
		return
	}
	if b.PriceBookID == "" {
		response.Err(w, "BOQ has no price book assigned", 400)
		return
	}

	var projectName, siteName, region string
	h.DB.QueryRow("SELECT name FROM projects WHERE id = ?", b.ProjectID).Scan(&projectName)
	h.DB.QueryRow("SELECT name, region FROM sites WHERE id = ?", b.SiteID).Scan(&siteName, &region)

	var pbName, currency string
	if err := h.DB.QueryRow("SELECT name, currency FROM price_books WHERE id = ?", b.PriceBookID).Scan(&pbName, &currency); err != nil {
		response.Err(w, "price book not found", 404)
		return
	}

	grid := csvgrid.Grid{
		{"Bill of Quantities", b.ID},
		{"Project", b.ProjectID, projectName},
		{"Site", b.SiteID, siteName, region},
		{"Price Book", b.PriceBookID, pbName, currency},
		{"Type", b.BOQType, "Generated", time.Now().UTC().Format("2006-01-02")},
		append([]string(nil), gridColumns...),
	}

	rows, err := h.DB.Query(`SELECT item_code, description, category, uom, unit_price
		FROM price_book_items WHERE price_book_id = ? ORDER BY item_code`, b.PriceBookID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var it models.PriceBookItem
		rows.Scan(&it.ItemCode, &it.Description, &it.Category, &it.UOM, &it.UnitPrice)
		grid = append(grid, []string{
			it.ItemCode, it.Description, it.Category, it.UOM,
			strconv.FormatFloat(it.UnitPrice, 'f', 2, 64), "0", "0.00",
		})
	}

	if err := h.saveGrid(id, grid); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionGenerate, id, fmt.Sprintf("generated grid from %s (%d items)", b.PriceBookID, len(grid)-HeaderRows))
	h.broadcast(id, "update")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Write([]byte(csvgrid.Encode(grid)))
}

// CSV handles GET /api/v1/boqs/:id/csv, serving the stored grid as a
// download.
func (h *Handler) CSV(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.loadBOQ(id); err != nil {
		response.Err(w, "BOQ not found", 404)
		return
	}
	grid, err := h.loadGrid(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if len(grid) == 0 {
		response.Err(w, "BOQ has no grid, generate or upload one first", 404)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+validation.SanitizeFilename(id)+".csv")
	w.Write([]byte(csvgrid.Encode(grid)))
}

// Upload handles POST /api/v1/boqs/:id/upload, a multipart form with a
// single "file" part. Only .csv files are accepted and the parsed grid
// must match the expected column header row.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.loadBOQ(id); err != nil {
		response.Err(w, "BOQ not found", 404)
		return
	}

	if err := r.ParseMultipartForm(validation.MaxUploadBytes); err != nil {
		response.Err(w, "invalid multipart form: "+err.Error(), 400)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Err(w, "missing file field", 400)
		return
	}
	defer file.Close()

	ve := &validation.ValidationErrors{}
	validation.ValidateCSVUpload(ve, header.Filename, header.Size)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, validation.MaxUploadBytes+1))
	if err != nil {
		response.Err(w, "read failed: "+err.Error(), 500)
		return
	}
	if int64(len(data)) > validation.MaxUploadBytes {
		response.Err(w, "file exceeds upload limit", 400)
		return
	}

	grid := csvgrid.Parse(string(data))
	validation.ValidateGridShape(ve, "file", grid)
	if !ve.HasErrors() {
		if len(grid) < HeaderRows {
			ve.Add("file", fmt.Sprintf("grid must include the %d header rows", HeaderRows))
		} else if !columnsMatch(grid[HeaderRows-1]) {
			ve.Add("file", "column header row does not match the expected BOQ layout")
		}
	}
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	if err := h.saveGrid(id, grid); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionUpload, id, fmt.Sprintf("uploaded %s (%d rows)", header.Filename, len(grid)))
	h.broadcast(id, "update")
	response.JSON(w, map[string]interface{}{"id": id, "rows": len(grid)})
}

// SaveGrid handles PUT /api/v1/boqs/:id/grid. The body carries the edited
// grid as CSV text; the stored rows and total are replaced.
func (h *Handler) SaveGrid(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.loadBOQ(id); err != nil {
		response.Err(w, "BOQ not found", 404)
		return
	}

	var req struct {
		CSV string `json:"csv"`
	}
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	grid := csvgrid.Parse(req.CSV)

	ve := &validation.ValidationErrors{}
	validation.ValidateGridShape(ve, "csv", grid)
	if !ve.HasErrors() && len(grid) < HeaderRows {
		ve.Add("csv", fmt.Sprintf("grid must include the %d header rows", HeaderRows))
	}
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	if err := h.saveGrid(id, grid); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionUpdate, id, fmt.Sprintf("saved grid (%d rows)", len(grid)))
	h.broadcast(id, "update")
	response.JSON(w, map[string]interface{}{"id": id, "rows": len(grid), "total_value": gridTotal(grid)})
}

func columnsMatch(row []string) bool {
	if len(row) < len(gridColumns) {
		return false
	}
	for i, want := range gridColumns {
		if row[i] != want {
			return false
		}
	}
	return true
}
