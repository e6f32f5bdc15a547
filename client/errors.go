package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized means the stored credentials were rejected. The
	// client has already cleared the token and triggered the login
	// redirect; callers must not surface this inline.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotCSV is returned by UploadCSV for files without a .csv
	// extension, before any request is made.
	ErrNotCSV = errors.New("a .csv file is required")
)

// FieldError is one backend validation failure, tied to a form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError carries a non-2xx backend response: the human-readable detail
// text and, for validation failures, the per-field errors.
type APIError struct {
	Status int
	Detail string
	Fields []FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		msgs := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			msgs[i] = f.Field + ": " + f.Message
		}
		return fmt.Sprintf("HTTP %d: %s", e.Status, strings.Join(msgs, "; "))
	}
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// IsValidation reports whether the error carries field-level details.
func (e *APIError) IsValidation() bool { return len(e.Fields) > 0 }

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"` // string or structured object
		Errors []FieldError    `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Fields = payload.Errors
		apiErr.Detail = payload.Error
		if apiErr.Detail == "" && len(payload.Detail) > 0 {
			var s string
			if json.Unmarshal(payload.Detail, &s) == nil {
				apiErr.Detail = s
			} else {
				apiErr.Detail = string(payload.Detail)
			}
		}
	}
	return apiErr
}
