package functions

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/infra/reportpdf"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

const defaultReportExpiry = 24 * time.Hour

// ReportService backs the generate-report function.
type ReportService struct {
	Records   evidence.Repository
	Artifacts evidence.ArtifactStore
	Expiry    time.Duration
	Clock     application.Clock
	Log       *logger.Logger
}

func (s *ReportService) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

func (s *ReportService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

// ReportKey is where a user's report is stored.
func ReportKey(userID, reportID string) string {
	return fmt.Sprintf("%s/reports/%s.pdf", userID, reportID)
}

// Generate renders the caller's analyzed records among ids and returns a
// download URL. Ids the caller does not own are ignored.
func (s *ReportService) Generate(ctx context.Context, userID string, req evidence.ReportRequest) (string, error) {
	ids := make([]string, 0, len(req.EvidenceIDs))
	for _, id := range req.EvidenceIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", failure.Validation("`evidenceIds` must list at least one evidence id.")
	}

	rows, err := s.Records.ListByIDs(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("load evidence: %w", err)
	}
	items := make([]evidence.Evidence, 0, len(rows))
	for _, r := range rows {
		if r.UserID == userID && r.Analyzed() {
			items = append(items, r)
		}
	}
	if len(items) == 0 {
		return "", failure.Validation("No analyzed evidence found for the requested ids.")
	}

	now := s.now()
	doc, err := reportpdf.Render(reportpdf.Document{GeneratedAt: now, Items: items})
	if err != nil {
		return "", err
	}

	key := ReportKey(userID, uuid.NewString())
	if err := s.Artifacts.Put(ctx, key, bytes.NewReader(doc), int64(len(doc)), reportpdf.ContentType); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	expiry := s.Expiry
	if expiry <= 0 {
		expiry = defaultReportExpiry
	}
	url, err := s.Artifacts.URL(ctx, key, expiry)
	if err != nil {
		return "", fmt.Errorf("sign report url: %w", err)
	}

	s.log().Info("report generated", "key", key, "items", len(items), "requested", len(ids))
	return url, nil
}
