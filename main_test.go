package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boqops/internal/auth"
	"boqops/internal/websocket"
)

// setupTest initializes an in-memory database with seed data and returns
// the full handler chain as the server runs it.
func setupTest(t *testing.T) http.Handler {
	t.Helper()
	if err := initDB("file::memory:?cache=shared"); err != nil {
		t.Fatalf("initDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	seedDB()
	hub = websocket.NewHub()
	return logging(requireAuth(requireRBAC(buildMux(defaultConfig()))))
}

// loginAs creates a user with the given role and returns its session
// cookie. The seeded admin is reused for role "admin".
func loginAs(t *testing.T, role string) *http.Cookie {
	t.Helper()
	username := "admin"
	if role != "admin" {
		username = "test_" + role
		hash, err := auth.HashPassword("password123")
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		db.Exec("INSERT OR IGNORE INTO users (username, password_hash, display_name, role) VALUES (?, ?, ?, ?)",
			username, hash, "Test "+role, role)
	}

	var userID int
	if err := db.QueryRow("SELECT id FROM users WHERE username = ?", username).Scan(&userID); err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	token := auth.GenerateToken()
	_, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, time.Now().Add(time.Hour).Format("2006-01-02 15:04:05"))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return &http.Cookie{Name: sessionCookie, Value: token}
}

// doJSON issues a request with an optional JSON body and session cookie.
func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// doUpload issues a multipart upload with a single "file" part.
func doUpload(t *testing.T, h http.Handler, path, filename, content string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the "data" field of the standard envelope.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
		Meta *struct {
			Total int `json:"total"`
			Page  int `json:"page"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v (body: %s)", err, w.Body.String())
		}
	}
}

// envelopeTotal returns the meta.total of a list response.
func envelopeTotal(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var envelope struct {
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope.Meta.Total
}

func TestLoginAndMe(t *testing.T) {
	h := setupTest(t)

	w := doJSON(t, h, "POST", "/auth/login", map[string]string{
		"username": "admin", "password": "changeme",
	}, nil)
	if w.Code != 200 {
		t.Fatalf("login: got %d, body %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no cookie")
	}

	w = doJSON(t, h, "GET", "/auth/me", nil, cookies[0])
	if w.Code != 200 {
		t.Fatalf("me: got %d", w.Code)
	}
	var me struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	decodeData(t, w, &me)
	if me.Username != "admin" || me.Role != "admin" {
		t.Errorf("me: got %+v", me)
	}
}

func TestLoginBadPassword(t *testing.T) {
	h := setupTest(t)
	w := doJSON(t, h, "POST", "/auth/login", map[string]string{
		"username": "admin", "password": "wrong",
	}, nil)
	if w.Code != 401 {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestLoginLockout(t *testing.T) {
	h := setupTest(t)
	loginAs(t, "user") // creates test_user with a known password

	for i := 0; i < auth.MaxFailedLoginAttempts; i++ {
		w := doJSON(t, h, "POST", "/auth/login", map[string]string{
			"username": "test_user", "password": "wrong",
		}, nil)
		if w.Code != 401 {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, w.Code)
		}
	}

	// Even the correct password is rejected while the lock holds.
	w := doJSON(t, h, "POST", "/auth/login", map[string]string{
		"username": "test_user", "password": "password123",
	}, nil)
	if w.Code != 403 {
		t.Errorf("locked account: expected 403, got %d (body %s)", w.Code, w.Body.String())
	}

	var attempts int
	db.QueryRow("SELECT failed_login_attempts FROM users WHERE username = 'test_user'").Scan(&attempts)
	if attempts < auth.MaxFailedLoginAttempts {
		t.Errorf("failed_login_attempts: got %d", attempts)
	}
}

func TestUnauthenticatedAPIRejected(t *testing.T) {
	h := setupTest(t)
	w := doJSON(t, h, "GET", "/api/v1/boqs", nil, nil)
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED code, got %q", body.Code)
	}
}

func TestBearerAPIKey(t *testing.T) {
	h := setupTest(t)
	db.Exec("INSERT INTO api_keys (name, token) VALUES ('ci', 'testkey123')")

	req := httptest.NewRequest("GET", "/api/v1/boqs", nil)
	req.Header.Set("Authorization", "Bearer testkey123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Errorf("bearer request: got %d, body %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/v1/boqs", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Errorf("bad bearer: expected 401, got %d", w.Code)
	}
}

func TestRBACReadonly(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "readonly")

	if w := doJSON(t, h, "GET", "/api/v1/boqs", nil, cookie); w.Code != 200 {
		t.Errorf("readonly GET: got %d", w.Code)
	}
	w := doJSON(t, h, "POST", "/api/v1/projects", map[string]string{"name": "X"}, cookie)
	if w.Code != 403 {
		t.Errorf("readonly POST: expected 403, got %d", w.Code)
	}
}

func TestRBACAdminOnlyRoutes(t *testing.T) {
	h := setupTest(t)
	userCookie := loginAs(t, "user")

	if w := doJSON(t, h, "GET", "/api/v1/users", nil, userCookie); w.Code != 403 {
		t.Errorf("user on /users: expected 403, got %d", w.Code)
	}
	if w := doJSON(t, h, "GET", "/api/v1/apikeys", nil, userCookie); w.Code != 403 {
		t.Errorf("user on /apikeys: expected 403, got %d", w.Code)
	}
	// Non-admin modules stay open to the user role.
	if w := doJSON(t, h, "GET", "/api/v1/projects", nil, userCookie); w.Code != 200 {
		t.Errorf("user on /projects: got %d", w.Code)
	}

	adminCookie := loginAs(t, "admin")
	if w := doJSON(t, h, "GET", "/api/v1/users", nil, adminCookie); w.Code != 200 {
		t.Errorf("admin on /users: got %d", w.Code)
	}
}

func TestDashboard(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "admin")

	w := doJSON(t, h, "GET", "/api/v1/dashboard", nil, cookie)
	if w.Code != 200 {
		t.Fatalf("dashboard: got %d", w.Code)
	}
	var d struct {
		Projects int `json:"projects"`
		Sites    int `json:"sites"`
	}
	decodeData(t, w, &d)
	if d.Projects < 1 || d.Sites < 1 {
		t.Errorf("expected seeded counts, got %+v", d)
	}
}

func TestMeta(t *testing.T) {
	h := setupTest(t)
	cookie := loginAs(t, "readonly")

	w := doJSON(t, h, "GET", "/api/v1/meta", nil, cookie)
	if w.Code != 200 {
		t.Fatalf("meta: got %d", w.Code)
	}
	var meta struct {
		CompanyName string `json:"company_name"`
	}
	decodeData(t, w, &meta)
	if meta.CompanyName == "" {
		t.Error("meta carries no company name")
	}
}

func TestNextIDSequence(t *testing.T) {
	setupTest(t)
	year := time.Now().Format("2006")

	first := nextID("BOQ", "boqs", 4)
	if first != "BOQ-"+year+"-0001" {
		t.Fatalf("first ID: got %s", first)
	}
	db.Exec("INSERT INTO boqs (id) VALUES (?)", first)
	second := nextID("BOQ", "boqs", 4)
	if second != "BOQ-"+year+"-0002" {
		t.Errorf("second ID: got %s", second)
	}
}
