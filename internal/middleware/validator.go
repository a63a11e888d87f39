package middleware

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
)

// Input validation and sanitization utilities

const (
	minPasswordLength = 6
	maxFileNameLength = 255
)

// ValidateEmail checks a sign-in or registration address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePassword enforces the backend's minimum length.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// ValidateEvidenceID accepts UUIDs only.
func ValidateEvidenceID(id string) error {
	if id == "" {
		return fmt.Errorf("evidence ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid evidence ID format")
	}
	return nil
}

var storagePathRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}/[0-9]+-[A-Za-z0-9._-]+$`)

// ValidateStoragePath checks the {userID}/{millis}-{name} object key shape.
func ValidateStoragePath(path string) error {
	if path == "" {
		return nil // Optional field
	}
	if evidence.Traverses(path) {
		return fmt.Errorf("path traversal detected")
	}
	if !storagePathRe.MatchString(path) {
		return fmt.Errorf("invalid storage path")
	}
	return nil
}

// ValidateFileName bounds the name length and rejects control characters.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if len(name) > maxFileNameLength {
		return fmt.Errorf("file name too long (max %d bytes)", maxFileNameLength)
	}
	if SanitizeString(name) != name {
		return fmt.Errorf("invalid characters in file name")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
