package evidence

import (
	"context"
	"io"
	"strings"

	"github.com/reclaimai/reclaim/internal/application"
	domain "github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

// File is an upload as received from the browser.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Service is the evidence repository: the table plus the file bucket.
type Service struct {
	Table domain.Table
	Files domain.FileStore
	Clock application.Clock
	Log   *logger.Logger
}

func (s *Service) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

func (s *Service) now() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

// List returns userID's evidence, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Evidence, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, failure.Validation("You must be signed in to view evidence")
	}
	items, err := s.Table.ListByUser(ctx, userID)
	if err != nil {
		return nil, &domain.FetchError{UserID: userID, Err: err}
	}
	return items, nil
}

// Upload writes the file to the bucket, then inserts its row. The two writes
// are independent: a failed insert leaves the stored object without a row
// and is returned as *OrphanedUploadError.
func (s *Service) Upload(ctx context.Context, userID string, f *File) (domain.NewRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.NewRecord{}, failure.Validation("You must be signed in to upload evidence")
	}
	if f == nil || f.Body == nil || f.Size <= 0 || strings.TrimSpace(f.Name) == "" {
		return domain.NewRecord{}, failure.Validation("Please select a file to upload")
	}

	contentType := strings.TrimSpace(f.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	path := domain.StoragePath(userID, s.now().Now(), f.Name)

	if err := s.Files.Upload(ctx, path, f.Body, f.Size, contentType); err != nil {
		return domain.NewRecord{}, err
	}

	rec := domain.NewRecord{
		UserID:   userID,
		FileName: f.Name,
		FilePath: path,
		FileType: contentType,
	}
	if err := s.Table.Insert(ctx, rec); err != nil {
		s.log().Warn("evidence stored without metadata row", "user_id", userID, "path", path, "error", err)
		return domain.NewRecord{}, &domain.OrphanedUploadError{Path: path, Err: err}
	}
	s.log().Info("evidence uploaded", "user_id", userID, "path", path, "size", f.Size)
	return rec, nil
}

// Remove deletes the stored object, then the row. The row delete is attempted
// whatever the storage outcome.
func (s *Service) Remove(ctx context.Context, evidenceID, filePath string) domain.RemoveOutcome {
	var out domain.RemoveOutcome
	if strings.TrimSpace(evidenceID) == "" {
		out.RecordErr = failure.Validation("Missing evidence id")
		return out
	}

	if strings.TrimSpace(filePath) != "" {
		out.StorageErr = s.Files.Remove(ctx, filePath)
		if out.StorageErr != nil {
			s.log().Warn("evidence object not removed", "evidence_id", evidenceID, "path", filePath, "error", out.StorageErr)
		}
	}
	out.RecordErr = s.Table.Delete(ctx, evidenceID)
	if out.RecordErr != nil {
		s.log().Warn("evidence row not deleted", "evidence_id", evidenceID, "error", out.RecordErr)
	}
	return out
}
