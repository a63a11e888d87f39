package functions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/reclaimai/reclaim/internal/domain/ai"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

type fakeRepo struct {
	mu    sync.Mutex
	rows  map[string]evidence.Evidence
	saved map[string]evidence.Analysis
}

func newFakeRepo(rows ...evidence.Evidence) *fakeRepo {
	r := &fakeRepo{rows: map[string]evidence.Evidence{}, saved: map[string]evidence.Analysis{}}
	for _, e := range rows {
		r.rows[e.ID] = e
	}
	return r
}

func (r *fakeRepo) ListByUser(ctx context.Context, userID string) ([]evidence.Evidence, error) {
	return nil, nil
}
func (r *fakeRepo) Insert(ctx context.Context, rec evidence.NewRecord) error { return nil }
func (r *fakeRepo) Delete(ctx context.Context, id string) error              { return nil }

func (r *fakeRepo) Get(ctx context.Context, id string) (*evidence.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, failure.Wrap(failure.ErrNotFound, "get", fmt.Errorf("evidence %s", id))
	}
	return &e, nil
}

func (r *fakeRepo) ListByIDs(ctx context.Context, ids []string) ([]evidence.Evidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []evidence.Evidence
	for _, id := range ids {
		if e, ok := r.rows[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) SaveAnalysis(ctx context.Context, id string, a evidence.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return failure.ErrNotFound
	}
	r.rows[id] = e.WithAnalysis(a)
	r.saved[id] = a
	return nil
}

type fakeObjects map[string][]byte

func (f fakeObjects) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	b, ok := f[path]
	if !ok {
		return nil, failure.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type fakeAnalyzer struct {
	got ai.Input
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, in ai.Input) (evidence.Analysis, error) {
	f.got = in
	if f.err != nil {
		return evidence.Analysis{}, f.err
	}
	return evidence.Analysis{
		Summary:    "summary of " + in.FileName,
		Labels:     []string{"threat"},
		Severity:   evidence.SeverityHigh,
		AnalyzedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type fakeArtifacts struct {
	keys   []string
	sizes  []int64
	putErr error
}

func (f *fakeArtifacts) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.keys = append(f.keys, key)
	f.sizes = append(f.sizes, size)
	return nil
}

func (f *fakeArtifacts) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://files.test/%s?expires=%d", key, int(expiry.Seconds())), nil
}
