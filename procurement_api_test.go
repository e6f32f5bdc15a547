package main

import (
	"net/http"
	"testing"
)

func seedPO(t *testing.T, h http.Handler, cookie *http.Cookie) string {
	t.Helper()
	w := doJSON(t, h, "POST", "/api/v1/pos", map[string]interface{}{
		"project_id": "PRJ-2026-001",
		"vendor":     "Gridline Services",
		"lines": []map[string]interface{}{
			{"item_code": "ANT-PNL-18", "description": "Panel antenna", "uom": "EA", "qty": 2, "unit_price": 420.0},
			{"item_code": "LBR-RIG-D", "description": "Rigging crew", "uom": "DAY", "qty": 3, "unit_price": 900.0},
		},
	}, cookie)
	if w.Code != 200 {
		t.Fatalf("create PO: got %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &created)
	return created.ID
}

func TestPOCreateDerivesTotal(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedPO(t, h, cookie)

	w := doJSON(t, h, "GET", "/api/v1/pos/"+id, nil, cookie)
	if w.Code != 200 {
		t.Fatalf("get: got %d", w.Code)
	}
	var po struct {
		Status     string  `json:"status"`
		TotalValue float64 `json:"total_value"`
		Lines      []struct {
			ItemCode string `json:"item_code"`
		} `json:"lines"`
	}
	decodeData(t, w, &po)
	if po.Status != "draft" {
		t.Errorf("default status: got %q", po.Status)
	}
	// 2*420 + 3*900
	if po.TotalValue != 3540 {
		t.Errorf("total: got %v", po.TotalValue)
	}
	if len(po.Lines) != 2 {
		t.Errorf("lines: got %d", len(po.Lines))
	}
}

func TestPOCreateLineValidation(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "POST", "/api/v1/pos", map[string]interface{}{
		"vendor": "Gridline Services",
		"lines": []map[string]interface{}{
			{"item_code": "", "qty": 0, "unit_price": -1},
		},
	}, cookie)
	if w.Code != 400 {
		t.Errorf("bad line: expected 400, got %d (body %s)", w.Code, w.Body.String())
	}
}

func TestPOCreateUnknownBOQ(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "POST", "/api/v1/pos", map[string]interface{}{
		"vendor": "Gridline Services",
		"boq_id": "BOQ-2026-9999",
	}, cookie)
	if w.Code != 400 {
		t.Errorf("unknown boq: expected 400, got %d", w.Code)
	}
}

func TestPOLifecycle(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedPO(t, h, cookie)

	// draft cannot jump straight to delivered.
	w := doJSON(t, h, "PUT", "/api/v1/pos/"+id, map[string]string{"status": "delivered"}, cookie)
	if w.Code != 400 {
		t.Fatalf("skip transition: expected 400, got %d", w.Code)
	}

	for _, status := range []string{"issued", "acknowledged", "delivered", "closed"} {
		w = doJSON(t, h, "PUT", "/api/v1/pos/"+id, map[string]string{"status": status}, cookie)
		if w.Code != 200 {
			t.Fatalf("to %s: got %d, body %s", status, w.Code, w.Body.String())
		}
	}

	// closed is terminal.
	w = doJSON(t, h, "PUT", "/api/v1/pos/"+id, map[string]string{"status": "cancelled"}, cookie)
	if w.Code != 400 {
		t.Errorf("closed to cancelled: expected 400, got %d", w.Code)
	}
}

func TestPOUpdateReplacesLines(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedPO(t, h, cookie)

	w := doJSON(t, h, "PUT", "/api/v1/pos/"+id, map[string]interface{}{
		"lines": []map[string]interface{}{
			{"item_code": "CBL-FDR-12", "uom": "M", "qty": 100, "unit_price": 3.8},
		},
	}, cookie)
	if w.Code != 200 {
		t.Fatalf("update: got %d, body %s", w.Code, w.Body.String())
	}
	var po struct {
		TotalValue float64 `json:"total_value"`
		Lines      []struct {
			ItemCode string `json:"item_code"`
		} `json:"lines"`
	}
	decodeData(t, w, &po)
	if len(po.Lines) != 1 || po.Lines[0].ItemCode != "CBL-FDR-12" {
		t.Errorf("lines not replaced: %+v", po.Lines)
	}
	if po.TotalValue != 380 {
		t.Errorf("total: got %v", po.TotalValue)
	}
}

func TestPODeleteDraftOnly(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedPO(t, h, cookie)

	if w := doJSON(t, h, "PUT", "/api/v1/pos/"+id, map[string]string{"status": "issued"}, cookie); w.Code != 200 {
		t.Fatalf("issue: got %d", w.Code)
	}
	if w := doJSON(t, h, "DELETE", "/api/v1/pos/"+id, nil, cookie); w.Code != 409 {
		t.Errorf("issued delete: expected 409, got %d", w.Code)
	}

	draft := seedPO(t, h, cookie)
	if w := doJSON(t, h, "DELETE", "/api/v1/pos/"+draft, nil, cookie); w.Code != 200 {
		t.Errorf("draft delete: got %d", w.Code)
	}
	var lines int
	db.QueryRow("SELECT COUNT(*) FROM po_lines WHERE po_id = ?", draft).Scan(&lines)
	if lines != 0 {
		t.Errorf("lines not cascaded: %d", lines)
	}
}

func TestPOListFilters(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	seedPO(t, h, cookie)

	w := doJSON(t, h, "GET", "/api/v1/pos?vendor=Gridline+Services", nil, cookie)
	if total := envelopeTotal(t, w); total != 1 {
		t.Errorf("vendor filter: total %d", total)
	}
	w = doJSON(t, h, "GET", "/api/v1/pos?status=closed", nil, cookie)
	if total := envelopeTotal(t, w); total != 0 {
		t.Errorf("status filter: total %d", total)
	}
}
