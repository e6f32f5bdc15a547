package main

import (
	"net/http"
	"strings"
	"testing"
)

func seedSheet(t *testing.T, h http.Handler, cookie *http.Cookie) string {
	t.Helper()
	w := doJSON(t, h, "POST", "/api/v1/rollout", map[string]string{
		"project_id":   "PRJ-2026-001",
		"site_id":      "TLC-0001",
		"phase":        "civil",
		"planned_date": "2026-09-15",
		"owner":        "field-ops",
	}, cookie)
	if w.Code != 200 {
		t.Fatalf("create sheet: got %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &created)
	return created.ID
}

func TestRolloutCreateDefaults(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "POST", "/api/v1/rollout", map[string]string{"site_id": "TLC-0001"}, cookie)
	if w.Code != 200 {
		t.Fatalf("create: got %d, body %s", w.Code, w.Body.String())
	}
	var rs struct {
		Phase  string `json:"phase"`
		Status string `json:"status"`
	}
	decodeData(t, w, &rs)
	if rs.Phase != "survey" || rs.Status != "planned" {
		t.Errorf("defaults: got %+v", rs)
	}
}

func TestRolloutCreateUnknownSite(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "POST", "/api/v1/rollout", map[string]string{"site_id": "TLC-9999"}, cookie)
	if w.Code != 400 {
		t.Errorf("unknown site: expected 400, got %d", w.Code)
	}
}

func TestRolloutDoneRequiresActualDate(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedSheet(t, h, cookie)

	w := doJSON(t, h, "PUT", "/api/v1/rollout/"+id, map[string]string{"status": "done"}, cookie)
	if w.Code != 400 {
		t.Fatalf("done without actual_date: expected 400, got %d", w.Code)
	}
	w = doJSON(t, h, "PUT", "/api/v1/rollout/"+id, map[string]string{
		"status":      "done",
		"actual_date": "2026-09-20",
	}, cookie)
	if w.Code != 200 {
		t.Errorf("done with actual_date: got %d, body %s", w.Code, w.Body.String())
	}
}

func TestRolloutListFilters(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	seedSheet(t, h, cookie)

	w := doJSON(t, h, "GET", "/api/v1/rollout?phase=civil", nil, cookie)
	if total := envelopeTotal(t, w); total != 1 {
		t.Errorf("phase filter: total %d", total)
	}
	// Region comes from the joined site.
	w = doJSON(t, h, "GET", "/api/v1/rollout?region=North", nil, cookie)
	if total := envelopeTotal(t, w); total != 1 {
		t.Errorf("region filter: total %d", total)
	}
	w = doJSON(t, h, "GET", "/api/v1/rollout?phase=acceptance", nil, cookie)
	if total := envelopeTotal(t, w); total != 0 {
		t.Errorf("empty filter: total %d", total)
	}
}

func TestRolloutImport(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedSheet(t, h, cookie)

	csv := "Sheet ID,Project,Site,Phase,Status,Planned Date,Actual Date,Owner,Notes\n" +
		id + ",PRJ-2026-001,TLC-0001,civil,in_progress,2026-09-15,,field-ops,crew on site\n" +
		",PRJ-2026-001,TLC-0001,installation,planned,2026-10-01,,rigging,\n" +
		"RS-2026-9999,PRJ-2026-001,TLC-0001,civil,planned,2026-10-01,,x,\n"
	w := doUpload(t, h, "/api/v1/rollout/import", "rollout.csv", csv, cookie)
	if w.Code != 200 {
		t.Fatalf("import: got %d, body %s", w.Code, w.Body.String())
	}
	var result struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	decodeData(t, w, &result)
	if result.Created != 1 || result.Updated != 1 {
		t.Errorf("created/updated: got %d/%d", result.Created, result.Updated)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0].Message, "RS-2026-9999") {
		t.Errorf("expected unknown-sheet error, got %+v", result.Errors)
	}

	var status string
	db.QueryRow("SELECT status FROM rollout_sheets WHERE id = ?", id).Scan(&status)
	if status != "in_progress" {
		t.Errorf("imported status: got %q", status)
	}
}

func TestRolloutImportBadHeader(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doUpload(t, h, "/api/v1/rollout/import", "rollout.csv", "ID,Site\nx,y\n", cookie)
	if w.Code != 400 {
		t.Errorf("bad header: expected 400, got %d", w.Code)
	}
}

func TestRolloutExportImportRoundTrip(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	seedSheet(t, h, cookie)

	w := doJSON(t, h, "GET", "/api/v1/rollout/export", nil, cookie)
	if w.Code != 200 {
		t.Fatalf("export: got %d", w.Code)
	}
	csv := w.Body.String()
	if !strings.HasPrefix(csv, "Sheet ID,") {
		t.Fatalf("export header: %s", csv)
	}

	// Re-importing the export updates every row in place.
	w = doUpload(t, h, "/api/v1/rollout/import", "rollout.csv", csv, cookie)
	if w.Code != 200 {
		t.Fatalf("re-import: got %d, body %s", w.Code, w.Body.String())
	}
	var result struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	}
	decodeData(t, w, &result)
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("round trip created/updated: got %d/%d", result.Created, result.Updated)
	}
}

func TestRolloutDelete(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedSheet(t, h, cookie)

	if w := doJSON(t, h, "DELETE", "/api/v1/rollout/"+id, nil, cookie); w.Code != 200 {
		t.Fatalf("delete: got %d", w.Code)
	}
	if w := doJSON(t, h, "GET", "/api/v1/rollout/"+id, nil, cookie); w.Code != 404 {
		t.Errorf("after delete: got %d", w.Code)
	}
}
