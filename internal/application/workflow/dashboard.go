package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	appevidence "github.com/reclaimai/reclaim/internal/application/evidence"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

type Tab string

const (
	TabEvidence  Tab = "evidence"
	TabReports   Tab = "reports"
	TabResources Tab = "resources"
	TabSettings  Tab = "settings"
)

// ParseTab falls back to the evidence tab for unknown values.
func ParseTab(raw string) Tab {
	switch t := Tab(strings.ToLower(strings.TrimSpace(raw))); t {
	case TabEvidence, TabReports, TabResources, TabSettings:
		return t
	}
	return TabEvidence
}

// ItemState is the lifecycle position of one evidence item.
type ItemState string

const (
	StateUploaded  ItemState = "uploaded"
	StateAnalyzing ItemState = "analyzing"
	StateAnalyzed  ItemState = "analyzed"
	StateDeleting  ItemState = "deleting"
)

type ReportState string

const (
	ReportIdle       ReportState = "idle"
	ReportGenerating ReportState = "generating"
	ReportReady      ReportState = "ready"
)

const (
	msgSelectFile      = "Please select a file to upload"
	msgNeedAnalyzed    = "Please analyze at least one piece of evidence before generating a report"
	msgAlreadyAnalyzed = "This evidence has already been analyzed"
	msgAnalysisBusy    = "Analysis already in progress for this evidence"
	msgReportBusy      = "A report is already being generated"
	msgUnknownItem     = "Evidence not found"
	msgItemBusy        = "Please wait for the current operation on this evidence to finish"
)

// ErrRefused marks an action the current state does not allow. No network
// call was made.
var ErrRefused = errors.New("action not allowed in current state")

type Repository interface {
	List(ctx context.Context, userID string) ([]evidence.Evidence, error)
	Upload(ctx context.Context, userID string, f *appevidence.File) (evidence.NewRecord, error)
	Remove(ctx context.Context, evidenceID, filePath string) evidence.RemoveOutcome
}

type Analyzer interface {
	Analyze(ctx context.Context, evidenceID, filePath string) (evidence.Analysis, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, evidenceIDs []string) (evidence.Report, error)
}

type Deps struct {
	Repository Repository
	Analyzer   Analyzer
	Reports    ReportGenerator
	Notices    *Notices
	Log        *logger.Logger
}

// Dashboard drives upload, analyze, delete and report for one workspace.
// Its lock is never held across a network call.
type Dashboard struct {
	repo     Repository
	analyzer Analyzer
	reports  ReportGenerator
	notices  *Notices
	log      *logger.Logger

	mu          sync.Mutex
	userID      string
	items       []evidence.Evidence
	loaded      bool
	loadErr     string
	local       map[string]evidence.Analysis
	analyzing   map[string]bool
	deleting    map[string]bool
	uploading   bool
	reportState ReportState
	generated   []evidence.Report
	tab         Tab
}

func NewDashboard(d Deps) *Dashboard {
	if d.Notices == nil {
		d.Notices = NewNotices()
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Dashboard{
		repo:        d.Repository,
		analyzer:    d.Analyzer,
		reports:     d.Reports,
		notices:     d.Notices,
		log:         d.Log.With("component", "Dashboard"),
		local:       make(map[string]evidence.Analysis),
		analyzing:   make(map[string]bool),
		deleting:    make(map[string]bool),
		reportState: ReportIdle,
		tab:         TabEvidence,
	}
}

// Bind attaches the dashboard to userID. A different user starts from a
// clean slate.
func (d *Dashboard) Bind(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.userID == userID {
		return
	}
	d.userID = userID
	d.items = nil
	d.loaded = false
	d.loadErr = ""
	d.local = make(map[string]evidence.Analysis)
	d.analyzing = make(map[string]bool)
	d.deleting = make(map[string]bool)
	d.uploading = false
	d.reportState = ReportIdle
	d.generated = nil
	d.tab = TabEvidence
}

func (d *Dashboard) user() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.userID
}

// Loaded reports whether a list fetch has been attempted.
func (d *Dashboard) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Refresh refetches the evidence list. On failure the previous list is kept
// and a retryable error is shown.
func (d *Dashboard) Refresh(ctx context.Context) error {
	userID := d.user()
	items, err := d.repo.List(ctx, userID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if userID != d.userID {
		return nil
	}
	d.loaded = true
	if err != nil {
		d.loadErr = "Failed to load evidence. Please try again."
		d.notices.Error(d.loadErr)
		d.log.Warn("evidence list failed", "user_id", userID, "error", err)
		return err
	}
	d.loadErr = ""
	d.items = items
	return nil
}

func (d *Dashboard) Upload(ctx context.Context, f *appevidence.File) error {
	if f == nil || f.Body == nil || f.Size <= 0 {
		d.notices.Warning(msgSelectFile)
		return failure.Validation(msgSelectFile)
	}

	d.mu.Lock()
	userID := d.userID
	d.uploading = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.uploading = false
		d.mu.Unlock()
	}()

	if _, err := d.repo.Upload(ctx, userID, f); err != nil {
		var orphan *evidence.OrphanedUploadError
		if errors.As(err, &orphan) {
			d.notices.Error("File uploaded but saving its details failed: " + failure.Message(orphan.Err))
		} else {
			d.notices.Error("Upload failed: " + failure.Message(err))
		}
		return err
	}
	d.notices.Success("Evidence uploaded successfully")
	_ = d.Refresh(ctx)
	return nil
}

// Analyze runs the analysis for one unanalyzed, idle item.
func (d *Dashboard) Analyze(ctx context.Context, id string) error {
	d.mu.Lock()
	item, ok := d.find(id)
	switch {
	case !ok:
		d.mu.Unlock()
		d.notices.Warning(msgUnknownItem)
		return failure.Wrap(ErrRefused, "analyze", failure.ErrNotFound)
	case d.analyzedLocked(item):
		d.mu.Unlock()
		d.notices.Warning(msgAlreadyAnalyzed)
		return ErrRefused
	case d.analyzing[id]:
		d.mu.Unlock()
		d.notices.Info(msgAnalysisBusy)
		return ErrRefused
	case d.deleting[id]:
		d.mu.Unlock()
		d.notices.Warning(msgItemBusy)
		return ErrRefused
	}
	d.analyzing[id] = true
	userID := d.userID
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.analyzing, id)
		d.mu.Unlock()
	}()

	a, err := d.analyzer.Analyze(ctx, id, item.FilePath)
	if err != nil {
		d.notices.Error("Analysis failed: " + failure.Message(err))
		d.log.Warn("analysis failed", "evidence_id", id, "error", err)
		return err
	}

	d.mu.Lock()
	if d.userID == userID {
		d.local[id] = a
	}
	d.mu.Unlock()
	d.notices.Success("Analysis complete")
	_ = d.Refresh(ctx)
	return nil
}

// Delete removes an item after explicit confirmation. Storage and row
// failures are reported separately.
func (d *Dashboard) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrRefused
	}
	d.mu.Lock()
	item, ok := d.find(id)
	switch {
	case !ok:
		d.mu.Unlock()
		d.notices.Warning(msgUnknownItem)
		return failure.Wrap(ErrRefused, "delete", failure.ErrNotFound)
	case d.analyzing[id] || d.deleting[id]:
		d.mu.Unlock()
		d.notices.Warning(msgItemBusy)
		return ErrRefused
	}
	d.deleting[id] = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.deleting, id)
		d.mu.Unlock()
	}()

	out := d.repo.Remove(ctx, id, item.FilePath)
	if out.StorageErr != nil {
		d.notices.Error("Failed to delete file from storage: " + failure.Message(out.StorageErr))
	}
	if out.RecordErr != nil {
		d.notices.Error("Failed to delete evidence record: " + failure.Message(out.RecordErr))
		return out.Err()
	}

	d.mu.Lock()
	delete(d.local, id)
	for i := range d.items {
		if d.items[i].ID == id {
			d.items = append(d.items[:i:i], d.items[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	if out.StorageErr == nil {
		d.notices.Success("Evidence deleted")
	}
	_ = d.Refresh(ctx)
	return out.Err()
}

// GenerateReport requests a report for the analyzed subset. An empty subset
// produces a warning and no call.
func (d *Dashboard) GenerateReport(ctx context.Context) error {
	d.mu.Lock()
	if d.reportState == ReportGenerating {
		d.mu.Unlock()
		d.notices.Info(msgReportBusy)
		return ErrRefused
	}
	analyzed := evidence.AnalyzedSubset(d.effectiveLocked())
	if len(analyzed) == 0 {
		d.mu.Unlock()
		d.notices.Warning(msgNeedAnalyzed)
		return ErrRefused
	}
	prev := d.reportState
	d.reportState = ReportGenerating
	userID := d.userID
	d.mu.Unlock()

	rep, err := d.reports.Generate(ctx, evidence.IDs(analyzed))

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.log.Warn("report generation failed", "user_id", userID, "error", err)
		if d.userID != userID {
			return err
		}
		d.reportState = prev
		d.notices.Error("Report generation failed: " + failure.Message(err))
		return err
	}
	if d.userID != userID {
		return nil
	}
	d.generated = append([]evidence.Report{rep}, d.generated...)
	d.reportState = ReportReady
	d.tab = TabReports
	d.notices.Success("Report generated successfully")
	return nil
}

func (d *Dashboard) SetTab(t Tab) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tab = t
}

func (d *Dashboard) find(id string) (evidence.Evidence, bool) {
	for _, it := range d.items {
		if it.ID == id {
			return it, true
		}
	}
	return evidence.Evidence{}, false
}

func (d *Dashboard) analyzedLocked(it evidence.Evidence) bool {
	if it.Analyzed() {
		return true
	}
	_, ok := d.local[it.ID]
	return ok
}

// effectiveLocked overlays locally known analyses on rows the backend has
// not caught up with yet.
func (d *Dashboard) effectiveLocked() []evidence.Evidence {
	out := make([]evidence.Evidence, 0, len(d.items))
	for _, it := range d.items {
		if a, ok := d.local[it.ID]; ok && !it.Analyzed() {
			it = it.WithAnalysis(a)
		}
		out = append(out, it)
	}
	return out
}

type ItemView struct {
	evidence.Evidence
	State      ItemState
	CanAnalyze bool
	CanDelete  bool
}

type View struct {
	Tab           Tab
	Items         []ItemView
	Reports       []evidence.Report
	Uploading     bool
	ReportState   ReportState
	CanGenerate   bool
	AnalyzedCount int
	Loaded        bool
	LoadError     string
}

// View snapshots the dashboard for rendering.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Tab:         d.tab,
		Reports:     append([]evidence.Report(nil), d.generated...),
		Uploading:   d.uploading,
		ReportState: d.reportState,
		Loaded:      d.loaded,
		LoadError:   d.loadErr,
	}
	for _, it := range d.effectiveLocked() {
		iv := ItemView{Evidence: it, State: StateUploaded}
		switch {
		case d.deleting[it.ID]:
			iv.State = StateDeleting
		case d.analyzing[it.ID]:
			iv.State = StateAnalyzing
		case it.Analyzed():
			iv.State = StateAnalyzed
		}
		iv.CanAnalyze = iv.State == StateUploaded
		iv.CanDelete = iv.State == StateUploaded || iv.State == StateAnalyzed
		if it.Analyzed() {
			v.AnalyzedCount++
		}
		v.Items = append(v.Items, iv)
	}
	v.CanGenerate = v.AnalyzedCount > 0 && d.reportState != ReportGenerating
	return v
}
