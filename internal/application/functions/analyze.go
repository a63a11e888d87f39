package functions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/reclaimai/reclaim/internal/domain/ai"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/infra/extract"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

const defaultMaxTextBytes = 5 << 20

// AnalyzeService backs the analyze-evidence function: it reads the stored
// file, runs the analyzer and persists the result on the row.
type AnalyzeService struct {
	Records      evidence.Repository
	Objects      evidence.ObjectReader
	Analyzer     ai.Client
	MaxTextBytes int64
	Log          *logger.Logger
}

func (s *AnalyzeService) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

// Analyze runs one analysis for userID. Re-analysis is allowed.
func (s *AnalyzeService) Analyze(ctx context.Context, userID string, req evidence.AnalyzeRequest) (evidence.Analysis, error) {
	id := strings.TrimSpace(req.EvidenceID)
	path := strings.TrimSpace(req.FilePath)
	if id == "" || path == "" {
		return evidence.Analysis{}, failure.Validation("`evidenceId` and `filePath` are required in the request body.")
	}

	rec, err := s.Records.Get(ctx, id)
	if err != nil {
		return evidence.Analysis{}, err
	}
	// another user's row reads as missing
	if rec.UserID != userID {
		return evidence.Analysis{}, failure.Wrap(failure.ErrNotFound, "analyze evidence", fmt.Errorf("evidence %s", id))
	}
	if rec.FilePath != path || !evidence.OwnedBy(path, userID) {
		return evidence.Analysis{}, failure.Validation("File path does not match the evidence record.")
	}

	in := ai.Input{FileName: rec.FileName, FileType: rec.FileType, Text: s.readText(ctx, rec)}
	result, err := s.Analyzer.Analyze(ctx, in)
	if err != nil {
		return evidence.Analysis{}, fmt.Errorf("analyzer: %w", err)
	}
	if err := s.Records.SaveAnalysis(ctx, id, result); err != nil {
		return evidence.Analysis{}, fmt.Errorf("save analysis: %w", err)
	}

	s.log().Info("evidence analyzed", "evidence_id", id, "severity", result.Severity, "labels", len(result.Labels), "has_text", in.HasText())
	return result, nil
}

// readText returns "" when the file holds no text or cannot be read; the
// analyzer then works from the name and type.
func (s *AnalyzeService) readText(ctx context.Context, rec *evidence.Evidence) string {
	rc, err := s.Objects.Open(ctx, rec.FilePath)
	if err != nil {
		s.log().Warn("evidence object unavailable", "evidence_id", rec.ID, "path", rec.FilePath, "error", err)
		return ""
	}
	defer rc.Close()

	limit := s.MaxTextBytes
	if limit <= 0 {
		limit = defaultMaxTextBytes
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		s.log().Warn("read evidence object", "evidence_id", rec.ID, "error", err)
		return ""
	}
	text, err := extract.Text(rec.FileName, rec.FileType, data)
	switch {
	case errors.Is(err, extract.ErrUnsupported):
		s.log().Debug("no text in evidence", "evidence_id", rec.ID, "file_type", rec.FileType)
		return ""
	case err != nil:
		s.log().Warn("extract evidence text", "evidence_id", rec.ID, "error", err)
		return ""
	}
	return text
}
