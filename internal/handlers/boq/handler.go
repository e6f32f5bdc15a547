// Package boq implements the bill-of-quantities endpoints: CRUD and list
// views, grid generation from a price book, CSV upload/download of the
// grid, and single/bulk workbook export.
package boq

import (
	"database/sql"
	"net/http"

	"boqops/internal/websocket"
)

// HeaderRows is the count of leading metadata/header rows in a generated
// BOQ grid. Clients treat these rows as non-deletable.
const HeaderRows = 6

// Handler holds dependencies for BOQ handlers.
type Handler struct {
	DB     *sql.DB
	Hub    *websocket.Hub
	NextID func(prefix, table string, digits int) string

	// Audit records an audit entry for a mutating request.
	Audit func(r *http.Request, action, module, recordID, summary string)
}

func (h *Handler) audit(r *http.Request, action, recordID, summary string) {
	if h.Audit != nil {
		h.Audit(r, action, "boq", recordID, summary)
	}
}

func (h *Handler) broadcast(id, action string) {
	if h.Hub != nil {
		h.Hub.Broadcast(websocket.Event{Module: "boq", ID: id, Action: action})
	}
}
