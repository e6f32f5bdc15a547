package main

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"boqops/internal/auth"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Some drivers don't parse connection string params; set pragmas explicitly
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations()
}

func runMigrations() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT DEFAULT '',
			role TEXT DEFAULT 'user' CHECK(role IN ('admin','user','readonly')),
			active INTEGER DEFAULT 1,
			failed_login_attempts INTEGER DEFAULT 0,
			locked_until TIMESTAMP,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			token TEXT UNIQUE NOT NULL,
			active INTEGER DEFAULT 1,
			last_used TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT '',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT DEFAULT '',
			summary TEXT DEFAULT '',
			ip_address TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			customer TEXT DEFAULT '',
			region TEXT DEFAULT '',
			status TEXT DEFAULT 'active' CHECK(status IN ('active','on_hold','completed','cancelled')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sites (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT DEFAULT '',
			region TEXT DEFAULT '',
			site_type TEXT DEFAULT 'macro' CHECK(site_type IN ('macro','micro','rooftop','indoor','greenfield')),
			address TEXT DEFAULT '',
			latitude TEXT DEFAULT '',
			longitude TEXT DEFAULT '',
			status TEXT DEFAULT 'planned' CHECK(status IN ('planned','surveyed','in_progress','on_air','accepted')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS price_books (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			vendor TEXT DEFAULT '',
			currency TEXT DEFAULT 'USD',
			status TEXT DEFAULT 'active' CHECK(status IN ('draft','active','retired')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_book_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			price_book_id TEXT NOT NULL,
			item_code TEXT NOT NULL,
			description TEXT DEFAULT '',
			category TEXT DEFAULT '',
			uom TEXT DEFAULT 'EA',
			unit_price REAL DEFAULT 0 CHECK(unit_price >= 0),
			FOREIGN KEY (price_book_id) REFERENCES price_books(id) ON DELETE CASCADE,
			UNIQUE (price_book_id, item_code)
		)`,
		`CREATE TABLE IF NOT EXISTS boqs (
			id TEXT PRIMARY KEY,
			project_id TEXT DEFAULT '',
			site_id TEXT DEFAULT '',
			price_book_id TEXT DEFAULT '',
			boq_type TEXT DEFAULT 'installation' CHECK(boq_type IN ('installation','civil','electrical','transmission')),
			status TEXT DEFAULT 'draft' CHECK(status IN ('draft','submitted','approved','rejected')),
			total_value REAL DEFAULT 0,
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS boq_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			boq_id TEXT NOT NULL,
			row_index INTEGER NOT NULL,
			cells TEXT NOT NULL DEFAULT '[]',
			FOREIGN KEY (boq_id) REFERENCES boqs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_orders (
			id TEXT PRIMARY KEY,
			project_id TEXT DEFAULT '',
			boq_id TEXT DEFAULT '',
			vendor TEXT DEFAULT '',
			status TEXT DEFAULT 'draft' CHECK(status IN ('draft','issued','acknowledged','delivered','closed','cancelled')),
			expected_date TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS po_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			po_id TEXT NOT NULL,
			item_code TEXT NOT NULL,
			description TEXT DEFAULT '',
			uom TEXT DEFAULT 'EA',
			qty REAL NOT NULL CHECK(qty > 0),
			unit_price REAL DEFAULT 0,
			FOREIGN KEY (po_id) REFERENCES purchase_orders(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS rollout_sheets (
			id TEXT PRIMARY KEY,
			project_id TEXT DEFAULT '',
			site_id TEXT DEFAULT '',
			phase TEXT DEFAULT 'survey' CHECK(phase IN ('survey','civil','installation','integration','acceptance')),
			status TEXT DEFAULT 'planned' CHECK(status IN ('planned','in_progress','blocked','done')),
			planned_date TEXT DEFAULT '',
			actual_date TEXT DEFAULT '',
			owner TEXT DEFAULT '',
			notes TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			message TEXT DEFAULT '',
			module TEXT DEFAULT '',
			record_id TEXT DEFAULT '',
			read INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_boq_rows_boq ON boq_rows(boq_id, row_index)`,
		`CREATE INDEX IF NOT EXISTS idx_sites_project ON sites(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pb_items_book ON price_book_items(price_book_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_po_lines_po ON po_lines(po_id)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("index creation failed: %w", err)
		}
	}
	return nil
}

func seedDB() {
	// Always ensure admin user exists
	var userCount int
	db.QueryRow("SELECT COUNT(*) FROM users WHERE username = 'admin'").Scan(&userCount)
	if userCount == 0 {
		hash, err := auth.HashPassword("changeme")
		if err != nil {
			log.Printf("Failed to hash admin password: %v", err)
		} else {
			db.Exec("INSERT INTO users (username, password_hash, display_name, role) VALUES (?, ?, ?, ?)",
				"admin", hash, "Administrator", "admin")
		}
	}

	var projCount int
	db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&projCount)
	if projCount > 0 {
		return
	}

	// Starter data so a fresh install renders something
	db.Exec("INSERT INTO projects (id, name, customer, region) VALUES (?, ?, ?, ?)",
		"PRJ-2026-001", "Metro North 5G Rollout", "Northwind Telecom", "North")
	db.Exec("INSERT INTO sites (id, project_id, name, region, site_type) VALUES (?, ?, ?, ?, ?)",
		"TLC-0001", "PRJ-2026-001", "Harbor Hill Rooftop", "North", "rooftop")
	db.Exec("INSERT INTO price_books (id, name, vendor, currency) VALUES (?, ?, ?, ?)",
		"PB-2026-001", "Standard Installation Rates 2026", "Gridline Services", "USD")
	items := [][]interface{}{
		{"PB-2026-001", "ANT-PNL-18", "Panel antenna 1800MHz", "Antennas", "EA", 420.0},
		{"PB-2026-001", "RRU-32T", "Remote radio unit 32T32R", "Radio", "EA", 2150.0},
		{"PB-2026-001", "CBL-FDR-12", "1/2\" feeder cable", "Cabling", "M", 3.8},
		{"PB-2026-001", "LBR-RIG-D", "Rigging crew, day rate", "Labour", "DAY", 900.0},
	}
	for _, it := range items {
		db.Exec(`INSERT INTO price_book_items (price_book_id, item_code, description, category, uom, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)`, it...)
	}
}

// nextID generates sequential record ids like BOQ-2026-0007.
func nextID(prefix string, table string, digits int) string {
	year := time.Now().Format("2006")
	pattern := prefix + "-" + year + "-%"
	var maxID sql.NullString
	db.QueryRow("SELECT id FROM "+table+" WHERE id LIKE ? ORDER BY id DESC LIMIT 1", pattern).Scan(&maxID)

	next := 1
	if maxID.Valid {
		parts := strings.Split(maxID.String, "-")
		if len(parts) >= 3 {
			if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
				next = n + 1
			}
		}
	}
	return fmt.Sprintf("%s-%s-%0*d", prefix, year, digits, next)
}
