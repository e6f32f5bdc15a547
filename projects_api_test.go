package main

import (
	"testing"
)

func TestProjectCRUD(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "POST", "/api/v1/projects", map[string]string{
		"name":     "Coastal Densification",
		"customer": "Northwind Telecom",
		"region":   "West",
	}, cookie)
	if w.Code != 200 {
		t.Fatalf("create: got %d, body %s", w.Code, w.Body.String())
	}
	var pr struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, w, &pr)
	if pr.Status != "active" {
		t.Errorf("default status: got %q", pr.Status)
	}

	w = doJSON(t, h, "PUT", "/api/v1/projects/"+pr.ID, map[string]string{"status": "on_hold"}, cookie)
	if w.Code != 200 {
		t.Fatalf("update: got %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/api/v1/projects?status=on_hold", nil, cookie)
	if total := envelopeTotal(t, w); total != 1 {
		t.Errorf("status filter: total %d", total)
	}

	if w = doJSON(t, h, "DELETE", "/api/v1/projects/"+pr.ID, nil, cookie); w.Code != 200 {
		t.Fatalf("delete: got %d", w.Code)
	}
}

func TestProjectDeleteWithBOQs(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	seedBOQ(t, h, cookie)

	w := doJSON(t, h, "DELETE", "/api/v1/projects/PRJ-2026-001", nil, cookie)
	if w.Code != 409 {
		t.Errorf("in-use delete: expected 409, got %d", w.Code)
	}
}

func TestSiteCreateValidation(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	// Site IDs are caller supplied and must look like record IDs.
	w := doJSON(t, h, "POST", "/api/v1/sites", map[string]string{
		"id":         "bad id!",
		"project_id": "PRJ-2026-001",
	}, cookie)
	if w.Code != 400 {
		t.Errorf("bad id: expected 400, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/v1/sites", map[string]string{
		"id":         "TLC-0002",
		"project_id": "PRJ-2026-999",
	}, cookie)
	if w.Code != 400 {
		t.Errorf("unknown project: expected 400, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/v1/sites", map[string]string{
		"id":         "TLC-0002",
		"project_id": "PRJ-2026-001",
		"name":       "Ridge Tower",
		"region":     "North",
		"site_type":  "macro",
	}, cookie)
	if w.Code != 200 {
		t.Fatalf("create: got %d, body %s", w.Code, w.Body.String())
	}

	// Duplicate tower ID.
	w = doJSON(t, h, "POST", "/api/v1/sites", map[string]string{
		"id":         "TLC-0002",
		"project_id": "PRJ-2026-001",
	}, cookie)
	if w.Code != 409 {
		t.Errorf("duplicate: expected 409, got %d", w.Code)
	}
}

func TestSiteListFilters(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "GET", "/api/v1/sites?type=rooftop", nil, cookie)
	if total := envelopeTotal(t, w); total != 1 {
		t.Errorf("type filter: total %d", total)
	}
	w = doJSON(t, h, "GET", "/api/v1/sites?region=South", nil, cookie)
	if total := envelopeTotal(t, w); total != 0 {
		t.Errorf("empty region: total %d", total)
	}
	w = doJSON(t, h, "GET", "/api/v1/sites?q=Harbor", nil, cookie)
	if total := envelopeTotal(t, w); total != 1 {
		t.Errorf("search: total %d", total)
	}
}

func TestSiteDeleteWithBOQs(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	seedBOQ(t, h, cookie)

	w := doJSON(t, h, "DELETE", "/api/v1/sites/TLC-0001", nil, cookie)
	if w.Code != 409 {
		t.Errorf("in-use delete: expected 409, got %d", w.Code)
	}

	w = doJSON(t, h, "PUT", "/api/v1/sites/TLC-0001", map[string]string{"status": "on_air"}, cookie)
	if w.Code != 200 {
		t.Fatalf("update: got %d, body %s", w.Code, w.Body.String())
	}
	var s struct {
		Status string `json:"status"`
		Name   string `json:"name"`
	}
	decodeData(t, w, &s)
	if s.Status != "on_air" || s.Name != "Harbor Hill Rooftop" {
		t.Errorf("partial update: %+v", s)
	}
}
