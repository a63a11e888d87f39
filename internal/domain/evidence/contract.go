package evidence

// Wire envelopes shared by the client invokers and the function handlers.

type AnalyzeRequest struct {
	EvidenceID string `json:"evidenceId"`
	FilePath   string `json:"filePath"`
}

type AnalysisPayload struct {
	Summary    string   `json:"summary"`
	Labels     []string `json:"labels"`
	Severity   Severity `json:"severity"`
	Score      *float64 `json:"score,omitempty"`
	AnalyzedAt string   `json:"analyzedAt"`
}

type AnalyzeResponse struct {
	Result *AnalysisPayload `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

type ReportRequest struct {
	EvidenceIDs []string `json:"evidenceIds"`
}

type ReportResponse struct {
	ReportURL string `json:"reportUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}
