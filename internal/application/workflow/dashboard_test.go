package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevidence "github.com/reclaimai/reclaim/internal/application/evidence"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
)

type fakeRepo struct {
	mu         sync.Mutex
	rows       []evidence.Evidence
	listErr    error
	uploadErr  error
	storageErr error
	recordErr  error
	calls      int
}

func (f *fakeRepo) List(_ context.Context, _ string) ([]evidence.Evidence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]evidence.Evidence(nil), f.rows...), nil
}

func (f *fakeRepo) Upload(_ context.Context, userID string, file *appevidence.File) (evidence.NewRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.uploadErr != nil {
		return evidence.NewRecord{}, f.uploadErr
	}
	rec := evidence.NewRecord{UserID: userID, FileName: file.Name, FilePath: userID + "/1-" + file.Name, FileType: file.ContentType}
	f.rows = append([]evidence.Evidence{{ID: "new-" + file.Name, UserID: userID, FileName: file.Name, FilePath: rec.FilePath}}, f.rows...)
	return rec, nil
}

func (f *fakeRepo) Remove(_ context.Context, id, _ string) evidence.RemoveOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := evidence.RemoveOutcome{StorageErr: f.storageErr, RecordErr: f.recordErr}
	if f.recordErr == nil {
		kept := f.rows[:0]
		for _, r := range f.rows {
			if r.ID != id {
				kept = append(kept, r)
			}
		}
		f.rows = kept
	}
	return out
}

type fakeAnalyzer struct {
	result  evidence.Analysis
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, _ string) (evidence.Analysis, error) {
	f.calls++
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.result, f.err
}

type fakeReports struct {
	urls  []string
	err   error
	calls int
	ids   [][]string
	// during runs while the call is in flight.
	during func()
}

func (f *fakeReports) Generate(_ context.Context, ids []string) (evidence.Report, error) {
	f.calls++
	f.ids = append(f.ids, ids)
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return evidence.Report{}, f.err
	}
	url := f.urls[0]
	f.urls = f.urls[1:]
	return evidence.Report{URL: url, GeneratedAt: time.Now()}, nil
}

func newDashboard(repo *fakeRepo, an *fakeAnalyzer, rep *fakeReports) (*Dashboard, *Notices) {
	n := NewNotices()
	d := NewDashboard(Deps{Repository: repo, Analyzer: an, Reports: rep, Notices: n})
	d.Bind("u1")
	return d, n
}

func lastNotice(t *testing.T, n *Notices) Notice {
	t.Helper()
	all := n.Drain()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func TestUploadWithoutFileWarnsWithoutCalls(t *testing.T) {
	repo := &fakeRepo{}
	d, n := newDashboard(repo, &fakeAnalyzer{}, &fakeReports{})

	err := d.Upload(context.Background(), nil)
	assert.True(t, failure.Is(err, failure.ErrValidation))
	assert.Zero(t, repo.calls)
	assert.Equal(t, Notice{Level: LevelWarning, Text: msgSelectFile}, lastNotice(t, n))
	assert.False(t, d.View().Uploading)
}

func TestUploadRefreshesList(t *testing.T) {
	repo := &fakeRepo{}
	d, n := newDashboard(repo, &fakeAnalyzer{}, &fakeReports{})

	err := d.Upload(context.Background(), &appevidence.File{Name: "a.txt", Size: 1, Body: strings.NewReader("a")})
	require.NoError(t, err)
	v := d.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, StateUploaded, v.Items[0].State)
	assert.True(t, v.Items[0].CanAnalyze)
	assert.False(t, v.Uploading)
	assert.Equal(t, LevelSuccess, lastNotice(t, n).Level)
}

func TestUploadOrphanNotice(t *testing.T) {
	repo := &fakeRepo{uploadErr: &evidence.OrphanedUploadError{Path: "u1/1-a.txt", Err: failure.Backend("insert evidence", 403, "permission denied")}}
	d, n := newDashboard(repo, &fakeAnalyzer{}, &fakeReports{})

	err := d.Upload(context.Background(), &appevidence.File{Name: "a.txt", Size: 1, Body: strings.NewReader("a")})
	require.Error(t, err)
	assert.Equal(t, Notice{Level: LevelError, Text: "File uploaded but saving its details failed: permission denied"}, lastNotice(t, n))
	assert.False(t, d.View().Uploading)
}

func TestAnalyzeMarksItemAnalyzedForWorkspaceLifetime(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1", FilePath: "u1/1-a.txt"}}}
	an := &fakeAnalyzer{result: evidence.Analysis{Summary: "Harassment detected", Labels: []string{"harassment"}, Severity: evidence.SeverityHigh}}
	d, _ := newDashboard(repo, an, &fakeReports{})
	require.NoError(t, d.Refresh(context.Background()))

	require.NoError(t, d.Analyze(context.Background(), "e1"))

	// the backend row still has no summary; the local result keeps it analyzed
	v := d.View()
	require.Len(t, v.Items, 1)
	assert.Equal(t, StateAnalyzed, v.Items[0].State)
	assert.False(t, v.Items[0].CanAnalyze)
	assert.Equal(t, "Harassment detected", v.Items[0].AISummary)

	require.NoError(t, d.Refresh(context.Background()))
	assert.Equal(t, StateAnalyzed, d.View().Items[0].State)

	err := d.Analyze(context.Background(), "e1")
	assert.ErrorIs(t, err, ErrRefused)
	assert.Equal(t, 1, an.calls)
}

func TestAnalyzeRefusedWhileInFlight(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1", FilePath: "u1/1-a.txt"}}}
	an := &fakeAnalyzer{
		result:  evidence.Analysis{Summary: "ok"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	d, _ := newDashboard(repo, an, &fakeReports{})
	require.NoError(t, d.Refresh(context.Background()))

	done := make(chan error, 1)
	go func() { done <- d.Analyze(context.Background(), "e1") }()
	<-an.started

	assert.Equal(t, StateAnalyzing, d.View().Items[0].State)
	assert.ErrorIs(t, d.Analyze(context.Background(), "e1"), ErrRefused)
	assert.ErrorIs(t, d.Delete(context.Background(), "e1", true), ErrRefused)

	close(an.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, an.calls)
}

func TestAnalyzeFailureResetsFlag(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1", FilePath: "u1/1-a.txt"}}}
	an := &fakeAnalyzer{err: failure.Backend("analyze evidence", 0, "Function error: boom")}
	d, n := newDashboard(repo, an, &fakeReports{})
	require.NoError(t, d.Refresh(context.Background()))

	require.Error(t, d.Analyze(context.Background(), "e1"))
	assert.Equal(t, Notice{Level: LevelError, Text: "Analysis failed: Function error: boom"}, lastNotice(t, n))
	v := d.View()
	assert.Equal(t, StateUploaded, v.Items[0].State)
	assert.True(t, v.Items[0].CanAnalyze)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1"}}}
	d, _ := newDashboard(repo, &fakeAnalyzer{}, &fakeReports{})
	require.NoError(t, d.Refresh(context.Background()))
	calls := repo.calls

	assert.ErrorIs(t, d.Delete(context.Background(), "e1", false), ErrRefused)
	assert.Equal(t, calls, repo.calls)
}

func TestDeleteWithStorageFailureStillRemovesItem(t *testing.T) {
	repo := &fakeRepo{
		rows:       []evidence.Evidence{{ID: "e1", UserID: "u1"}, {ID: "e2", UserID: "u1"}},
		storageErr: errors.New("object locked"),
	}
	d, n := newDashboard(repo, &fakeAnalyzer{}, &fakeReports{})
	require.NoError(t, d.Refresh(context.Background()))

	err := d.Delete(context.Background(), "e1", true)
	require.Error(t, err)
	assert.Equal(t, Notice{Level: LevelError, Text: "Failed to delete file from storage: object locked"}, lastNotice(t, n))

	ids := []string{}
	for _, it := range d.View().Items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"e2"}, ids)
}

func TestGenerateReportWithoutAnalyzedEvidenceWarns(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1"}}}
	rep := &fakeReports{}
	d, n := newDashboard(repo, &fakeAnalyzer{}, rep)
	require.NoError(t, d.Refresh(context.Background()))

	assert.ErrorIs(t, d.GenerateReport(context.Background()), ErrRefused)
	assert.Zero(t, rep.calls)
	assert.Equal(t, Notice{Level: LevelWarning, Text: msgNeedAnalyzed}, lastNotice(t, n))
	assert.False(t, d.View().CanGenerate)
}

func TestReportsAccumulateMostRecentFirst(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{
		{ID: "e1", UserID: "u1", AISummary: "threat"},
		{ID: "e2", UserID: "u1"},
		{ID: "e3", UserID: "u1", AISummary: "insult"},
	}}
	rep := &fakeReports{urls: []string{"https://r/A.pdf", "https://r/B.pdf"}}
	d, _ := newDashboard(repo, &fakeAnalyzer{}, rep)
	require.NoError(t, d.Refresh(context.Background()))

	require.NoError(t, d.GenerateReport(context.Background()))
	require.NoError(t, d.GenerateReport(context.Background()))

	v := d.View()
	require.Len(t, v.Reports, 2)
	assert.Equal(t, "https://r/B.pdf", v.Reports[0].URL)
	assert.Equal(t, "https://r/A.pdf", v.Reports[1].URL)
	assert.Equal(t, TabReports, v.Tab)
	assert.Equal(t, ReportReady, v.ReportState)
	assert.Equal(t, []string{"e1", "e3"}, rep.ids[0])
}

func TestReportFailureAfterUserSwitchLeavesNewUserAlone(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1", AISummary: "x"}}}
	rep := &fakeReports{urls: []string{"https://r/A.pdf"}}
	d, n := newDashboard(repo, &fakeAnalyzer{}, rep)
	require.NoError(t, d.Refresh(context.Background()))
	require.NoError(t, d.GenerateReport(context.Background()))
	require.Equal(t, ReportReady, d.View().ReportState)
	n.Drain()

	rep.err = errors.New("functions down")
	rep.during = func() { d.Bind("u2") }
	require.Error(t, d.GenerateReport(context.Background()))

	v := d.View()
	assert.Equal(t, ReportIdle, v.ReportState)
	assert.Empty(t, v.Reports)
	assert.Empty(t, n.Drain())
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1"}}}
	d, n := newDashboard(repo, &fakeAnalyzer{}, &fakeReports{})
	require.NoError(t, d.Refresh(context.Background()))

	repo.listErr = errors.New("timeout")
	require.Error(t, d.Refresh(context.Background()))
	v := d.View()
	assert.Len(t, v.Items, 1)
	assert.NotEmpty(t, v.LoadError)
	assert.Equal(t, LevelError, lastNotice(t, n).Level)
}

func TestBindOtherUserResets(t *testing.T) {
	repo := &fakeRepo{rows: []evidence.Evidence{{ID: "e1", UserID: "u1", AISummary: "x"}}}
	rep := &fakeReports{urls: []string{"https://r/A.pdf"}}
	d, _ := newDashboard(repo, &fakeAnalyzer{}, rep)
	require.NoError(t, d.Refresh(context.Background()))
	require.NoError(t, d.GenerateReport(context.Background()))

	d.Bind("u2")
	v := d.View()
	assert.Empty(t, v.Items)
	assert.Empty(t, v.Reports)
	assert.Equal(t, TabEvidence, v.Tab)
}

func TestParseTab(t *testing.T) {
	assert.Equal(t, TabReports, ParseTab("Reports"))
	assert.Equal(t, TabEvidence, ParseTab("bogus"))
}

func TestNoticesDropOldest(t *testing.T) {
	n := NewNotices()
	for i := 0; i < maxNotices+5; i++ {
		n.Info(strings.Repeat("x", i+1))
	}
	all := n.Drain()
	require.Len(t, all, maxNotices)
	assert.Len(t, all[0].Text, 6)
	assert.Empty(t, n.Drain())
}
