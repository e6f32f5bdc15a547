package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"boqops/internal/audit"
	"boqops/internal/handlers/admin"
	"boqops/internal/handlers/boq"
	"boqops/internal/handlers/pricing"
	"boqops/internal/handlers/procurement"
	"boqops/internal/handlers/projects"
	"boqops/internal/handlers/rollout"
	"boqops/internal/response"
	"boqops/internal/websocket"
)

var hub *websocket.Hub

func main() {
	configPath := flag.String("config", "boqops.yaml", "Path to YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		log.Fatal(err)
	}
	cfg.applyEnv()
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := initDB(cfg.DBPath); err != nil {
		log.Fatal("DB init failed:", err)
	}
	seedDB()

	hub = websocket.NewHub()

	mux := buildMux(cfg)
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("%s BOQ operations server listening on %s", cfg.CompanyName, addr)
	log.Fatal(http.ListenAndServe(addr, logging(requireAuth(requireRBAC(mux)))))
}

func buildMux(cfg Config) *http.ServeMux {
	logAudit := func(r *http.Request, action, module, recordID, summary string) {
		audit.Log(db, hub, r, action, module, recordID, summary)
	}

	boqH := &boq.Handler{DB: db, Hub: hub, NextID: nextID, Audit: logAudit}
	pricingH := &pricing.Handler{DB: db, Hub: hub, NextID: nextID, Audit: logAudit}
	poH := &procurement.Handler{DB: db, Hub: hub, NextID: nextID, Audit: logAudit}
	rolloutH := &rollout.Handler{DB: db, Hub: hub, NextID: nextID, Audit: logAudit}
	projectsH := &projects.Handler{DB: db, Hub: hub, NextID: nextID, Audit: logAudit}
	adminH := &admin.Handler{DB: db, Audit: logAudit}

	mux := http.NewServeMux()

	// Static files for the web UI
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, cfg.StaticDir+"/index.html")
	})

	// Auth routes
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogin(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogout(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/me", handleMe)

	// Live updates
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r)
	})

	// API routes - simple path router
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Dashboard
		case path == "meta" && r.Method == "GET":
			response.JSON(w, map[string]string{
				"company_name":  cfg.CompanyName,
				"company_email": cfg.CompanyEmail,
			})

		case path == "dashboard" && r.Method == "GET":
			adminH.Dashboard(w, r)

		// Projects
		case path == "projects" && r.Method == "GET":
			projectsH.List(w, r)
		case path == "projects" && r.Method == "POST":
			projectsH.Create(w, r)
		case parts[0] == "projects" && len(parts) == 2 && r.Method == "GET":
			projectsH.Get(w, r, parts[1])
		case parts[0] == "projects" && len(parts) == 2 && r.Method == "PUT":
			projectsH.Update(w, r, parts[1])
		case parts[0] == "projects" && len(parts) == 2 && r.Method == "DELETE":
			projectsH.Delete(w, r, parts[1])

		// Sites
		case path == "sites" && r.Method == "GET":
			projectsH.Sites(w, r)
		case path == "sites" && r.Method == "POST":
			projectsH.SiteCreate(w, r)
		case parts[0] == "sites" && len(parts) == 2 && r.Method == "GET":
			projectsH.SiteGet(w, r, parts[1])
		case parts[0] == "sites" && len(parts) == 2 && r.Method == "PUT":
			projectsH.SiteUpdate(w, r, parts[1])
		case parts[0] == "sites" && len(parts) == 2 && r.Method == "DELETE":
			projectsH.SiteDelete(w, r, parts[1])

		// Price books
		case path == "pricebooks" && r.Method == "GET":
			pricingH.List(w, r)
		case path == "pricebooks" && r.Method == "POST":
			pricingH.Create(w, r)
		case parts[0] == "pricebooks" && len(parts) == 2 && r.Method == "GET":
			pricingH.Get(w, r, parts[1])
		case parts[0] == "pricebooks" && len(parts) == 2 && r.Method == "PUT":
			pricingH.Update(w, r, parts[1])
		case parts[0] == "pricebooks" && len(parts) == 2 && r.Method == "DELETE":
			pricingH.Delete(w, r, parts[1])
		case parts[0] == "pricebooks" && len(parts) == 3 && parts[2] == "items" && r.Method == "GET":
			pricingH.Items(w, r, parts[1])
		case parts[0] == "pricebooks" && len(parts) == 3 && parts[2] == "upload" && r.Method == "POST":
			pricingH.UploadItems(w, r, parts[1])
		case parts[0] == "pricebooks" && len(parts) == 3 && parts[2] == "export" && r.Method == "GET":
			pricingH.Export(w, r, parts[1])

		// BOQs
		case path == "boqs" && r.Method == "GET":
			boqH.List(w, r)
		case path == "boqs" && r.Method == "POST":
			boqH.Create(w, r)
		case path == "boqs/export" && r.Method == "GET":
			boqH.Export(w, r)
		case path == "boqs/workbook" && r.Method == "POST":
			boqH.Workbook(w, r)
		case path == "boqs/workbook/bulk" && r.Method == "POST":
			boqH.WorkbookBulk(w, r)
		case parts[0] == "boqs" && len(parts) == 2 && r.Method == "GET":
			boqH.Get(w, r, parts[1])
		case parts[0] == "boqs" && len(parts) == 2 && r.Method == "PUT":
			boqH.Update(w, r, parts[1])
		case parts[0] == "boqs" && len(parts) == 2 && r.Method == "DELETE":
			boqH.Delete(w, r, parts[1])
		case parts[0] == "boqs" && len(parts) == 3 && parts[2] == "generate" && r.Method == "POST":
			boqH.Generate(w, r, parts[1])
		case parts[0] == "boqs" && len(parts) == 3 && parts[2] == "csv" && r.Method == "GET":
			boqH.CSV(w, r, parts[1])
		case parts[0] == "boqs" && len(parts) == 3 && parts[2] == "upload" && r.Method == "POST":
			boqH.Upload(w, r, parts[1])
		case parts[0] == "boqs" && len(parts) == 3 && parts[2] == "grid" && r.Method == "PUT":
			boqH.SaveGrid(w, r, parts[1])

		// Purchase orders
		case path == "pos" && r.Method == "GET":
			poH.List(w, r)
		case path == "pos" && r.Method == "POST":
			poH.Create(w, r)
		case path == "pos/export" && r.Method == "GET":
			poH.Export(w, r)
		case parts[0] == "pos" && len(parts) == 2 && r.Method == "GET":
			poH.Get(w, r, parts[1])
		case parts[0] == "pos" && len(parts) == 2 && r.Method == "PUT":
			poH.Update(w, r, parts[1])
		case parts[0] == "pos" && len(parts) == 2 && r.Method == "DELETE":
			poH.Delete(w, r, parts[1])

		// Rollout sheets
		case path == "rollout" && r.Method == "GET":
			rolloutH.List(w, r)
		case path == "rollout" && r.Method == "POST":
			rolloutH.Create(w, r)
		case path == "rollout/export" && r.Method == "GET":
			rolloutH.Export(w, r)
		case path == "rollout/import" && r.Method == "POST":
			rolloutH.Import(w, r)
		case parts[0] == "rollout" && len(parts) == 2 && r.Method == "GET":
			rolloutH.Get(w, r, parts[1])
		case parts[0] == "rollout" && len(parts) == 2 && r.Method == "PUT":
			rolloutH.Update(w, r, parts[1])
		case parts[0] == "rollout" && len(parts) == 2 && r.Method == "DELETE":
			rolloutH.Delete(w, r, parts[1])

		// Audit trail
		case path == "audit" && r.Method == "GET":
			adminH.AuditList(w, r)
		case path == "audit/export" && r.Method == "GET":
			adminH.AuditExport(w, r)

		// Notifications
		case path == "notifications" && r.Method == "GET":
			adminH.Notifications(w, r)
		case parts[0] == "notifications" && len(parts) == 3 && parts[2] == "read" && r.Method == "POST":
			adminH.NotificationRead(w, r, parts[1])

		// Users and API keys (admin-only, enforced by requireRBAC)
		case path == "users" && r.Method == "GET":
			adminH.Users(w, r)
		case path == "users" && r.Method == "POST":
			adminH.UserCreate(w, r)
		case parts[0] == "users" && len(parts) == 2 && r.Method == "PUT":
			adminH.UserUpdate(w, r, parts[1])
		case path == "apikeys" && r.Method == "GET":
			adminH.APIKeys(w, r)
		case path == "apikeys" && r.Method == "POST":
			adminH.APIKeyCreate(w, r)
		case parts[0] == "apikeys" && len(parts) == 2 && r.Method == "DELETE":
			adminH.APIKeyDelete(w, r, parts[1])

		default:
			response.Err(w, "not found", 404)
		}
	})

	return mux
}
