package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// RequireField checks a required string field is non-empty.
func RequireField(ve *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateDate checks a field is a valid date (YYYY-MM-DD).
func ValidateDate(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		ve.Add(field, "must be a valid date (YYYY-MM-DD)")
	}
}

// ValidatePositiveFloat checks a field is > 0.
func ValidatePositiveFloat(ve *ValidationErrors, field string, value float64) {
	if value <= 0 {
		ve.Add(field, "must be a positive number")
	}
}

// ValidateNonNegativeFloat checks a field is >= 0.
func ValidateNonNegativeFloat(ve *ValidationErrors, field string, value float64) {
	if value < 0 {
		ve.Add(field, "must be non-negative")
	}
}

// Maximum value constants to prevent overflow and runaway uploads.
const (
	MaxPrice        = 10000000.0
	MaxQuantity     = 1000000.0
	MaxStringLength = 10000
	MaxUploadBytes  = 10 << 20
	MaxGridRows     = 10000
	MaxGridCols     = 256
)

// ValidateMaxLength checks a string field length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("exceeds maximum length of %d characters", max))
	}
}

var recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRecordID checks an identifier is safe for paths and filenames.
func ValidateRecordID(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	if !recordIDPattern.MatchString(value) {
		ve.Add(field, "contains invalid characters")
	}
}

// ValidateCSVUpload checks an uploaded file is an acceptably sized .csv.
func ValidateCSVUpload(ve *ValidationErrors, filename string, size int64) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		ve.Add("file", "a .csv file is required")
	}
	if size > MaxUploadBytes {
		ve.Add("file", fmt.Sprintf("exceeds maximum upload size of %d bytes", int64(MaxUploadBytes)))
	}
}

// ValidateGridShape checks a grid payload is within bounds.
func ValidateGridShape(ve *ValidationErrors, field string, grid [][]string) {
	if len(grid) == 0 {
		ve.Add(field, "grid is empty")
		return
	}
	if len(grid) > MaxGridRows {
		ve.Add(field, fmt.Sprintf("exceeds maximum of %d rows", MaxGridRows))
	}
	for _, row := range grid {
		if len(row) > MaxGridCols {
			ve.Add(field, fmt.Sprintf("exceeds maximum of %d columns", MaxGridCols))
			return
		}
	}
}

// SanitizeFilename strips path separators and control characters from a
// client-supplied filename.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, r == '/', r == '\\', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
