// Package pricing implements price book endpoints: CRUD, item listing,
// CSV bulk upload of items and csv/xlsx export.
package pricing

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"boqops/internal/audit"
	"boqops/internal/csvgrid"
	"boqops/internal/handlers/common"
	"boqops/internal/models"
	"boqops/internal/response"
	"boqops/internal/validation"
	"boqops/internal/websocket"
)

// itemColumns is the header row expected on item uploads.
var itemColumns = []string{"Item Code", "Description", "Category", "UOM", "Unit Price"}

// Handler holds dependencies for price book handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	NextID func(prefix, table string, digits int) string
	Audit  func(r *http.Request, action, module, recordID, summary string)
}

func (h *Handler) audit(r *http.Request, action, recordID, summary string) {
	if h.Audit != nil {
		h.Audit(r, action, "pricebook", recordID, summary)
	}
}

func (h *Handler) broadcast(id, action string) {
	if h.Hub != nil {
		h.Hub.Broadcast(websocket.Event{Module: "pricebook", ID: id, Action: action})
	}
}

// List handles GET /api/v1/pricebooks.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := common.ParseListParams(r)
	status := r.URL.Query().Get("status")

	where := " WHERE 1=1"
	var args []interface{}
	if p.Search != "" {
		where += " AND (id LIKE ? OR name LIKE ? OR vendor LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term, term)
	}
	if status != "" {
		where += " AND status = ?"
		args = append(args, status)
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM price_books"+where, args...).Scan(&total)

	rows, err := h.DB.Query(`SELECT id, name, vendor, currency, status, created_at, updated_at
		FROM price_books`+where+" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.PriceBook{}
	for rows.Next() {
		var pb models.PriceBook
		rows.Scan(&pb.ID, &pb.Name, &pb.Vendor, &pb.Currency, &pb.Status, &pb.CreatedAt, &pb.UpdatedAt)
		h.DB.QueryRow("SELECT COUNT(*) FROM price_book_items WHERE price_book_id = ?", pb.ID).Scan(&pb.ItemCount)
		items = append(items, pb)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// Get handles GET /api/v1/pricebooks/:id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, id string) {
	pb, err := h.load(id)
	if err != nil {
		response.Err(w, "price book not found", 404)
		return
	}
	h.DB.QueryRow("SELECT COUNT(*) FROM price_book_items WHERE price_book_id = ?", id).Scan(&pb.ItemCount)
	response.JSON(w, pb)
}

func (h *Handler) load(id string) (*models.PriceBook, error) {
	var pb models.PriceBook
	err := h.DB.QueryRow(`SELECT id, name, vendor, currency, status, created_at, updated_at
		FROM price_books WHERE id = ?`, id).
		Scan(&pb.ID, &pb.Name, &pb.Vendor, &pb.Currency, &pb.Status, &pb.CreatedAt, &pb.UpdatedAt)
	return &pb, err
}

// Create handles POST /api/v1/pricebooks.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var pb models.PriceBook
	if err := response.DecodeBody(r, &pb); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", pb.Name)
	validation.ValidateMaxLength(ve, "name", pb.Name, 200)
	if pb.Status == "" {
		pb.Status = "draft"
	}
	validation.ValidateEnum(ve, "status", pb.Status, validation.ValidBookStatuses)
	if pb.Currency == "" {
		pb.Currency = "USD"
	}
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	pb.ID = h.NextID("PB", "price_books", 4)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := h.DB.Exec(`INSERT INTO price_books (id, name, vendor, currency, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pb.ID, pb.Name, pb.Vendor, pb.Currency, pb.Status, now, now)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionCreate, pb.ID, "created price book "+pb.Name)
	h.broadcast(pb.ID, "create")
	pb.CreatedAt, pb.UpdatedAt = now, now
	response.JSON(w, pb)
}

// Update handles PUT /api/v1/pricebooks/:id.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := h.load(id)
	if err != nil {
		response.Err(w, "price book not found", 404)
		return
	}

	var pb models.PriceBook
	if err := response.DecodeBody(r, &pb); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if pb.Name == "" {
		pb.Name = existing.Name
	}
	if pb.Status == "" {
		pb.Status = existing.Status
	}
	if pb.Currency == "" {
		pb.Currency = existing.Currency
	}

	ve := &validation.ValidationErrors{}
	validation.ValidateMaxLength(ve, "name", pb.Name, 200)
	validation.ValidateEnum(ve, "status", pb.Status, validation.ValidBookStatuses)
	if ve.HasErrors() {
		response.ValidationErr(w, ve)
		return
	}

	_, err = h.DB.Exec(`UPDATE price_books SET name = ?, vendor = ?, currency = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		pb.Name, pb.Vendor, pb.Currency, pb.Status, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionUpdate, id, "updated price book")
	h.broadcast(id, "update")
	updated, _ := h.load(id)
	response.JSON(w, updated)
}

// Delete handles DELETE /api/v1/pricebooks/:id. Items cascade.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.load(id); err != nil {
		response.Err(w, "price book not found", 404)
		return
	}
	var inUse int
	h.DB.QueryRow("SELECT COUNT(*) FROM boqs WHERE price_book_id = ?", id).Scan(&inUse)
	if inUse > 0 {
		response.Err(w, fmt.Sprintf("price book is referenced by %d BOQs", inUse), 409)
		return
	}

	if _, err := h.DB.Exec("DELETE FROM price_books WHERE id = ?", id); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	h.audit(r, audit.ActionDelete, id, "deleted price book")
	h.broadcast(id, "delete")
	response.JSON(w, map[string]string{"status": "deleted"})
}

// Items handles GET /api/v1/pricebooks/:id/items.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.load(id); err != nil {
		response.Err(w, "price book not found", 404)
		return
	}
	p := common.ParseListParams(r)

	where := " WHERE price_book_id = ?"
	args := []interface{}{id}
	if p.Search != "" {
		where += " AND (item_code LIKE ? OR description LIKE ? OR category LIKE ?)"
		term := "%" + p.Search + "%"
		args = append(args, term, term, term)
	}

	var total int
	h.DB.QueryRow("SELECT COUNT(*) FROM price_book_items"+where, args...).Scan(&total)

	rows, err := h.DB.Query(`SELECT id, price_book_id, item_code, description, category, uom, unit_price
		FROM price_book_items`+where+" ORDER BY item_code LIMIT ? OFFSET ?",
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.PriceBookItem{}
	for rows.Next() {
		var it models.PriceBookItem
		rows.Scan(&it.ID, &it.PriceBookID, &it.ItemCode, &it.Description, &it.Category, &it.UOM, &it.UnitPrice)
		items = append(items, it)
	}
	response.JSONMeta(w, items, total, p.Page, p.Limit)
}

// UploadItems handles POST /api/v1/pricebooks/:id/upload, a multipart
// CSV of items. Existing items with the same code are replaced.
func (h *Handler) UploadItems(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.load(id); err != nil {
		response.Err(w, "price book not found", 404)
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

	grid := csvgrid.Parse(string(data))
	if len(grid) < 2 {
		response.Err(w, "file has no item rows", 400)
		return
	}
	for i, want := range itemColumns {
		if i >= len(grid[0]) || grid[0][i] != want {
			response.Err(w, "column header row does not match the expected item layout", 400)
			return
		}
	}

	tx, err := h.DB.Begin()
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO price_book_items (price_book_id, item_code, description, category, uom, unit_price)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(price_book_id, item_code) DO UPDATE SET
			description = excluded.description, category = excluded.category,
			uom = excluded.uom, unit_price = excluded.unit_price`)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer stmt.Close()

	imported := 0
	for i, row := range grid[1:] {
		if len(row) == 1 && row[0] == "" {
			continue
		}
		if len(row) < len(itemColumns) || row[0] == "" {
			ve.Add("file", fmt.Sprintf("row %d: missing item code or columns", i+2))
			continue
		}
		price, perr := strconv.ParseFloat(row[4], 64)
		if perr != nil || price < 0 {
			ve.Add("file", fmt.Sprintf("row %d: invalid unit price %q", i+2, row[4]))
			continue
		}
		if _, err := stmt.Exec(id, row[0], row[1], row[2], row[3], price); err != nil {
			ve.Add("file", fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		imported++
	}
	if imported == 0 {
		if !ve.HasErrors() {
			ve.Add("file", "file has no item rows")
		}
		response.ValidationErr(w, ve)
		return
	}
	if err := tx.Commit(); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	h.audit(r, audit.ActionUpload, id, fmt.Sprintf("imported %d items from %s", imported, header.Filename))
	h.broadcast(id, "update")
	response.JSON(w, map[string]interface{}{"imported": imported, "skipped": len(grid) - 1 - imported})
}

// Export handles GET /api/v1/pricebooks/:id/export?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.load(id); err != nil {
		response.Err(w, "price book not found", 404)
		return
	}
	rows, err := h.DB.Query(`SELECT item_code, description, category, uom, unit_price
		FROM price_book_items WHERE price_book_id = ? ORDER BY item_code`, id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	var data [][]string
	for rows.Next() {
		var it models.PriceBookItem
		rows.Scan(&it.ItemCode, &it.Description, &it.Category, &it.UOM, &it.UnitPrice)
		data = append(data, []string{
			it.ItemCode, it.Description, it.Category, it.UOM,
			strconv.FormatFloat(it.UnitPrice, 'f', 2, 64),
		})
	}

	h.audit(r, audit.ActionExport, id, "exported price book items")
	if r.URL.Query().Get("format") == "xlsx" {
		common.ExportExcel(w, validation.SanitizeFilename(id), itemColumns, data)
		return
	}
	common.ExportCSV(w, validation.SanitizeFilename(id)+".csv", itemColumns, data)
}
