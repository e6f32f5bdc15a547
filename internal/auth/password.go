package auth

import (
	"errors"
	"regexp"
)

var (
	upperClass   = regexp.MustCompile(`[A-Z]`)
	lowerClass   = regexp.MustCompile(`[a-z]`)
	digitClass   = regexp.MustCompile(`[0-9]`)
	specialClass = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>_\-+=]`)
)

// ValidatePasswordStrength checks password complexity: at least 12
// characters and 3 of the 4 character classes.
func ValidatePasswordStrength(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}

	checks := 0
	for _, class := range []*regexp.Regexp{upperClass, lowerClass, digitClass, specialClass} {
		if class.MatchString(password) {
			checks++
		}
	}
	if checks < 3 {
		return errors.New("password must contain at least 3 of: uppercase, lowercase, numbers, special characters")
	}
	return nil
}
