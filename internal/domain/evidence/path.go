package evidence

import (
	"fmt"
	"strings"
	"time"
)

const fallbackFileName = "evidence"

// SanitizeFileName strips every character outside [A-Za-z0-9._-] and
// collapses runs of dots, so a key never carries a ".." sequence.
func SanitizeFileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, name)
	for strings.Contains(clean, "..") {
		clean = strings.ReplaceAll(clean, "..", ".")
	}
	if clean == "" {
		return fallbackFileName
	}
	return clean
}

// StoragePath builds the object key {userID}/{unixMillis}-{sanitized name}.
func StoragePath(userID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d-%s", userID, at.UnixMilli(), SanitizeFileName(fileName))
}

// OwnedBy reports whether path lives under userID's prefix.
func OwnedBy(path, userID string) bool {
	return userID != "" && strings.HasPrefix(path, userID+"/") && !Traverses(path)
}

// Traverses reports whether any segment of path is "." or "..". Dots inside
// a file name are fine.
func Traverses(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
