package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

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
  id          UUID PRIMARY KEY,
  user_id     TEXT NOT NULL,
  file_name   TEXT NOT NULL,
  file_path   TEXT NOT NULL,
  file_type   TEXT NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  ai_summary  TEXT,
  ai_labels   TEXT[],
  ai_severity TEXT,
  ai_score    DOUBLE PRECISION,
  analyzed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS evidence_user_created_idx ON evidence (user_id, created_at DESC);
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
WHERE user_id=$1
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
VALUES ($1,$2,$3,$4,$5,$6);
`
	_, err := r.db.ExecContext(ctx, q, uuid.NewString(), rec.UserID, rec.FileName, rec.FilePath, rec.FileType, r.now().UTC())
	return err
}

func (r *EvidenceRepository) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM evidence WHERE id=$1;`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func (r *EvidenceRepository) Get(ctx context.Context, id string) (*evidence.Evidence, error) {
	const q = selectColumns + `
WHERE id=$1;
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
	const q = selectColumns + `
WHERE id = ANY($1)
ORDER BY created_at DESC, id DESC;
`
	rows, err := r.db.QueryContext(ctx, q, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows)
}

func (r *EvidenceRepository) SaveAnalysis(ctx context.Context, id string, a evidence.Analysis) error {
	const q = `
UPDATE evidence
SET ai_summary=$2, ai_labels=$3, ai_severity=$4, ai_score=$5, analyzed_at=$6
WHERE id=$1;
`
	var score sql.NullFloat64
	if a.Score != nil {
		score = sql.NullFloat64{Float64: *a.Score, Valid: true}
	}
	labels := a.Labels
	if labels == nil {
		labels = []string{}
	}
	res, err := r.db.ExecContext(ctx, q, id, a.Summary, pq.Array(labels), string(a.Severity), score, a.AnalyzedAt.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return failure.Wrap(failure.ErrNotFound, "save analysis", fmt.Errorf("evidence %s", id))
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
		labels   pq.StringArray
		severity sql.NullString
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.FileName, &e.FilePath, &e.FileType, &e.CreatedAt, &summary, &labels, &severity); err != nil {
		return nil, err
	}
	e.AISummary = summary.String
	if len(labels) > 0 {
		e.AILabels = []string(labels)
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
