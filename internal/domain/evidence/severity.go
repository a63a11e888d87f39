package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// SeverityFromScore maps a 0..1 score onto the categorical scale.
func SeverityFromScore(score float64) Severity {
	switch {
	case score < 0.25:
		return SeverityLow
	case score < 0.5:
		return SeverityMedium
	case score < 0.75:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// ParseSeverity accepts a category name in any case or a numeric score
// written as text. The second result is false when raw is neither.
func ParseSeverity(raw string) (Severity, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	switch strings.ToLower(v) {
	case "low", "info", "informational":
		return SeverityLow, true
	case "medium", "moderate":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return SeverityFromScore(f), true
	}
	return "", false
}

// Valid reports whether s is one of the four categories.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// UnmarshalJSON accepts either a category string or a numeric score.
func (s *Severity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		if raw == "" {
			*s = ""
			return nil
		}
		parsed, ok := ParseSeverity(raw)
		if !ok {
			return fmt.Errorf("unknown severity %q", raw)
		}
		*s = parsed
		return nil
	}
	var score float64
	if err := json.Unmarshal(b, &score); err != nil {
		return fmt.Errorf("severity must be a string or a number: %w", err)
	}
	*s = SeverityFromScore(score)
	return nil
}

// Rank orders severities for sorting, Critical highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}
