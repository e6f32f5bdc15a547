package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrAccountLocked      = errors.New("account locked, try again later")
)

// SessionTTL is how long a session lives without activity; the middleware
// slides the expiry forward on each authenticated request.
const SessionTTL = 24 * time.Hour

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken returns a 64-hex-char random token for sessions and API keys.
func GenerateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// User is the authenticated identity attached to a request.
type User struct {
	ID          int
	Username    string
	DisplayName string
	Role        string
}

// Login verifies credentials and creates a session, returning the session
// token and user.
func Login(db *sql.DB, username, password string) (string, *User, error) {
	var u User
	var passwordHash string
	var active int
	err := db.QueryRow(`SELECT id, password_hash, display_name, role, active
		FROM users WHERE username = ?`, username).
		Scan(&u.ID, &passwordHash, &u.DisplayName, &u.Role, &active)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if locked, err := IsAccountLocked(db, username); err == nil && locked {
		return "", nil, ErrAccountLocked
	}
	if !CheckPassword(passwordHash, password) {
		RecordFailedLogin(db, username)
		return "", nil, ErrInvalidCredentials
	}
	if active == 0 {
		return "", nil, ErrAccountDeactivated
	}
	u.Username = username
	ClearFailedLogins(db, username)

	// Clean expired sessions opportunistically
	db.Exec("DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP")

	expires := time.Now().Add(SessionTTL)
	var token string
	for i := 0; i < 3; i++ {
		token = GenerateToken()
		_, err = db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
			token, u.ID, expires.Format("2006-01-02 15:04:05"))
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", nil, err
	}
	db.Exec("UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?", u.ID)
	return token, &u, nil
}

// Logout deletes the session for a token.
func Logout(db *sql.DB, token string) {
	db.Exec("DELETE FROM sessions WHERE token = ?", token)
}

// SessionUser resolves a session token to its user, or nil when the token
// is unknown or expired.
func SessionUser(db *sql.DB, token string) *User {
	var u User
	var active int
	err := db.QueryRow(`SELECT u.id, u.username, u.display_name, u.role, u.active
		FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP`, token).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &active)
	if err != nil || active == 0 {
		return nil
	}
	return &u
}

// ValidateAPIKey reports whether a bearer token matches an active API key,
// updating its last-used timestamp when it does.
func ValidateAPIKey(db *sql.DB, token string) bool {
	var id int
	err := db.QueryRow("SELECT id FROM api_keys WHERE token = ? AND active = 1", token).Scan(&id)
	if err != nil {
		return false
	}
	db.Exec("UPDATE api_keys SET last_used = CURRENT_TIMESTAMP WHERE id = ?", id)
	return true
}
