package main

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUserCreateAndUpdate(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "POST", "/api/v1/users", map[string]string{
		"username": "planner1",
		"password": "short",
	}, cookie)
	if w.Code != 400 {
		t.Fatalf("short password: expected 400, got %d", w.Code)
	}

	// Long enough but a single character class.
	w = doJSON(t, h, "POST", "/api/v1/users", map[string]string{
		"username": "planner1",
		"password": "alllowercaseonly",
	}, cookie)
	if w.Code != 400 {
		t.Fatalf("weak password: expected 400, got %d", w.Code)
	}

	w = doJSON(t, h, "POST", "/api/v1/users", map[string]string{
		"username":     "planner1",
		"password":     "Planner-2026-one",
		"display_name": "Planner One",
	}, cookie)
	if w.Code != 200 {
		t.Fatalf("create: got %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID   int64  `json:"id"`
		Role string `json:"role"`
	}
	decodeData(t, w, &created)
	if created.Role != "user" {
		t.Errorf("default role: got %q", created.Role)
	}

	// Duplicate username.
	w = doJSON(t, h, "POST", "/api/v1/users", map[string]string{
		"username": "planner1",
		"password": "Planner-2026-one",
	}, cookie)
	if w.Code != 409 {
		t.Errorf("duplicate: expected 409, got %d", w.Code)
	}

	w = doJSON(t, h, "PUT", fmt.Sprintf("/api/v1/users/%d", created.ID),
		map[string]string{"role": "readonly"}, cookie)
	if w.Code != 200 {
		t.Fatalf("update: got %d, body %s", w.Code, w.Body.String())
	}
	var role string
	db.QueryRow("SELECT role FROM users WHERE id = ?", created.ID).Scan(&role)
	if role != "readonly" {
		t.Errorf("role after update: got %q", role)
	}
}

func TestUserDeactivationKillsSessions(t *testing.T) {
	h := setupTest(t)
	admin := loginAs(t, "admin")
	userCookie := loginAs(t, "user")

	var id int
	db.QueryRow("SELECT id FROM users WHERE username = 'test_user'").Scan(&id)

	w := doJSON(t, h, "PUT", fmt.Sprintf("/api/v1/users/%d", id),
		map[string]interface{}{"active": false}, admin)
	if w.Code != 200 {
		t.Fatalf("deactivate: got %d, body %s", w.Code, w.Body.String())
	}

	// The deactivated user's session is gone.
	w = doJSON(t, h, "GET", "/api/v1/boqs", nil, userCookie)
	if w.Code != 401 {
		t.Errorf("after deactivation: expected 401, got %d", w.Code)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "POST", "/api/v1/apikeys", map[string]string{"name": "ci-export"}, cookie)
	if w.Code != 200 {
		t.Fatalf("create key: got %d, body %s", w.Code, w.Body.String())
	}
	var key struct {
		ID    int    `json:"id"`
		Token string `json:"token"`
	}
	decodeData(t, w, &key)
	if key.Token == "" {
		t.Fatal("creation response carries no token")
	}

	// The token works as a bearer credential.
	req := httptest.NewRequest("GET", "/api/v1/boqs", nil)
	req.Header.Set("Authorization", "Bearer "+key.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Errorf("bearer request: got %d", rec.Code)
	}

	// Listing never echoes tokens.
	w = doJSON(t, h, "GET", "/api/v1/apikeys", nil, cookie)
	if strings.Contains(w.Body.String(), key.Token) {
		t.Error("key listing leaked a token")
	}

	w = doJSON(t, h, "DELETE", fmt.Sprintf("/api/v1/apikeys/%d", key.ID), nil, cookie)
	if w.Code != 200 {
		t.Fatalf("delete key: got %d", w.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Errorf("revoked bearer: expected 401, got %d", rec.Code)
	}
}

func TestAuditTrail(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")
	id := seedBOQ(t, h, cookie)

	w := doJSON(t, h, "GET", "/api/v1/audit?module=boq&action=CREATE", nil, cookie)
	if w.Code != 200 {
		t.Fatalf("audit list: got %d", w.Code)
	}
	if total := envelopeTotal(t, w); total != 1 {
		t.Errorf("boq create entries: total %d", total)
	}
	var entries []struct {
		RecordID string `json:"record_id"`
		Username string `json:"username"`
	}
	decodeData(t, w, &entries)
	if len(entries) != 1 || entries[0].RecordID != id {
		t.Errorf("entry: %+v", entries)
	}
	if entries[0].Username == "" {
		t.Error("audit entry has no username")
	}

	w = doJSON(t, h, "GET", "/api/v1/audit/export", nil, cookie)
	if w.Code != 200 {
		t.Fatalf("audit export: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), id) {
		t.Error("export missing the BOQ entry")
	}
}

func TestNotificationsRead(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	db.Exec(`INSERT INTO notifications (title, message, module, record_id)
		VALUES ('BOQ approved', 'BOQ-2026-0001 was approved', 'boq', 'BOQ-2026-0001')`)

	w := doJSON(t, h, "GET", "/api/v1/notifications?unread=true", nil, cookie)
	if total := envelopeTotal(t, w); total != 1 {
		t.Fatalf("unread: total %d", total)
	}
	var items []struct {
		ID int `json:"id"`
	}
	decodeData(t, w, &items)

	w = doJSON(t, h, "POST", fmt.Sprintf("/api/v1/notifications/%d/read", items[0].ID), nil, cookie)
	if w.Code != 200 {
		t.Fatalf("mark read: got %d", w.Code)
	}
	w = doJSON(t, h, "GET", "/api/v1/notifications?unread=true", nil, cookie)
	if total := envelopeTotal(t, w); total != 0 {
		t.Errorf("after read: total %d", total)
	}

	w = doJSON(t, h, "POST", "/api/v1/notifications/99999/read", nil, cookie)
	if w.Code != 404 {
		t.Errorf("unknown notification: expected 404, got %d", w.Code)
	}
}
