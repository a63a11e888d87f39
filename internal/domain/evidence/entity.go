package evidence

import (
	"strings"
	"time"
)

// Evidence is one uploaded file plus its metadata and optional AI analysis.
type Evidence struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	FileType   string    `json:"file_type"`
	CreatedAt  time.Time `json:"created_at"`
	AISummary  string    `json:"ai_summary,omitempty"`
	AILabels   []string  `json:"ai_labels,omitempty"`
	AISeverity Severity  `json:"ai_severity,omitempty"`
}

// Analyzed reports whether an AI summary is attached.
func (e Evidence) Analyzed() bool {
	return strings.TrimSpace(e.AISummary) != ""
}

// WithAnalysis returns a copy of e carrying a's summary, labels and severity.
func (e Evidence) WithAnalysis(a Analysis) Evidence {
	e.AISummary = a.Summary
	e.AILabels = append([]string(nil), a.Labels...)
	e.AISeverity = a.Severity
	return e
}

// NewRecord is the row inserted after a successful file upload.
type NewRecord struct {
	UserID   string `json:"user_id"`
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	FileType string `json:"file_type"`
}

// Analysis is the normalized result of one analysis run.
type Analysis struct {
	Summary    string    `json:"summary"`
	Labels     []string  `json:"labels"`
	Severity   Severity  `json:"severity"`
	Score      *float64  `json:"score,omitempty"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// Report is a generated downloadable artifact. It lives only in the client
// workspace that requested it.
type Report struct {
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AnalyzedSubset keeps the items that carry a summary, preserving order.
func AnalyzedSubset(items []Evidence) []Evidence {
	out := make([]Evidence, 0, len(items))
	for _, it := range items {
		if it.Analyzed() {
			out = append(out, it)
		}
	}
	return out
}

// IDs returns the identifiers of items in order.
func IDs(items []Evidence) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}
