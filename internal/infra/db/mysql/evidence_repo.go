package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

type EvidenceRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewEvidenceRepository(db *sql.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db, now: time.Now}
}

var _ evidence.Repository = (*EvidenceRepository)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS evidence (
  id          CHAR(36) NOT NULL PRIMARY KEY,
  user_id     VARCHAR(64) NOT NULL,
  file_name   VARCHAR(512) NOT NULL,
  file_path   VARCHAR(1024) NOT NULL,
  file_type   VARCHAR(255) NOT NULL,
  created_at  DATETIME(6) NOT NULL,
  ai_summary  TEXT NULL,
  ai_labels   JSON NULL,
  ai_severity VARCHAR(16) NULL,
  ai_score    DOUBLE NULL,
  analyzed_at DATETIME(6) NULL,
  KEY evidence_user_created_idx (user_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// EnsureSchema creates the evidence table when missing.
func (r *EvidenceRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

const selectColumns = `SELECT id, user_id, file_name, file_path, file_type, created_at, ai_summary, ai_labels, ai_severity FROM evidence`

// ListByUser returns userID's rows, newest first.
func (r *EvidenceRepository) ListByUser(ctx context.Context, userID string) ([]evidence.Evidence, error) {
	const q = selectColumns + `
WHERE user_id=?
ORDER BY created_at DESC, id DESC;
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows)
}

func (r *EvidenceRepository) Insert(ctx context.Context, rec evidence.NewRecord) error {
	const q = `
INSERT INTO evidence (id, user_id, file_name, file_path, file_type, created_at)
VALUES (?,?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q, uuid.NewString(), rec.UserID, rec.FileName, rec.FilePath, rec.FileType, r.now().UTC())
	return err
}

func (r *EvidenceRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM evidence WHERE id=?;`, id)
	return err
}

func (r *EvidenceRepository) Get(ctx context.Context, id string) (*evidence.Evidence, error) {
	const q = selectColumns + `
WHERE id=?;
`
	e, err := scanOne(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, failure.Wrap(failure.ErrNotFound, "get evidence", fmt.Errorf("evidence %s", id))
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListByIDs returns the rows among ids, newest first. Unknown ids are skipped.
func (r *EvidenceRepository) ListByIDs(ctx context.Context, ids []string) ([]evidence.Evidence, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := selectColumns + `
WHERE id IN (` + placeholders(len(ids)) + `)
ORDER BY created_at DESC, id DESC;
`
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows)
}

func (r *EvidenceRepository) SaveAnalysis(ctx context.Context, id string, a evidence.Analysis) error {
	const q = `
UPDATE evidence
SET ai_summary=?, ai_labels=?, ai_severity=?, ai_score=?, analyzed_at=?
WHERE id=?;
`
	labels := a.Labels
	if labels == nil {
		labels = []string{}
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	var score sql.NullFloat64
	if a.Score != nil {
		score = sql.NullFloat64{Float64: *a.Score, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, q, a.Summary, string(labelsJSON), nullIfBlank(string(a.Severity)), score, a.AnalyzedAt.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows for an identical update, so confirm the row exists
	if n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM evidence WHERE id=?;`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return failure.Wrap(failure.ErrNotFound, "save analysis", fmt.Errorf("evidence %s", id))
		}
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(s scanner) (*evidence.Evidence, error) {
	var (
		e        evidence.Evidence
		summary  sql.NullString
		labels   []byte
		severity sql.NullString
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.FileName, &e.FilePath, &e.FileType, &e.CreatedAt, &summary, &labels, &severity); err != nil {
		return nil, err
	}
	e.AISummary = summary.String
	if len(labels) > 0 {
		var out []string
		if err := json.Unmarshal(labels, &out); err != nil {
			return nil, fmt.Errorf("decode ai_labels for %s: %w", e.ID, err)
		}
		if len(out) > 0 {
			e.AILabels = out
		}
	}
	if sev, ok := evidence.ParseSeverity(severity.String); ok {
		e.AISeverity = sev
	}
	return &e, nil
}

func scanAll(rows *sql.Rows) ([]evidence.Evidence, error) {
	var out []evidence.Evidence
	for rows.Next() {
		e, err := scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
