package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/application/session"
	"github.com/reclaimai/reclaim/internal/application/workflow"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

// Workspace is the state of one browser session: its identity, its dashboard
// and its pending notices. Discarding it is the equivalent of a page reload.
type Workspace struct {
	ID        string
	Session   *session.Store
	Dashboard *workflow.Dashboard
	Notices   *workflow.Notices

	mu       sync.Mutex
	lastSeen time.Time
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) close() {
	w.Session.Close()
}

type Deps struct {
	Session    session.Deps
	Repository workflow.Repository
	Analyzer   workflow.Analyzer
	Reports    workflow.ReportGenerator
	Clock      application.Clock
	Log        *logger.Logger

	IdleTTL time.Duration
	// AnonymousTTL is the idle limit for workspaces nobody signed into.
	AnonymousTTL time.Duration
	// MaxWorkspaces caps live workspaces; the least recently used one is
	// closed to make room.
	MaxWorkspaces int
	InitTimeout   time.Duration
}

// Registry owns every live workspace. Idle workspaces are closed by Run.
type Registry struct {
	deps Deps
	log  *logger.Logger

	mu    sync.Mutex
	items map[string]*Workspace
}

func NewRegistry(d Deps) *Registry {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.IdleTTL <= 0 {
		d.IdleTTL = 30 * time.Minute
	}
	if d.AnonymousTTL <= 0 || d.AnonymousTTL > d.IdleTTL {
		d.AnonymousTTL = min(5*time.Minute, d.IdleTTL)
	}
	if d.MaxWorkspaces <= 0 {
		d.MaxWorkspaces = 10000
	}
	if d.InitTimeout <= 0 {
		d.InitTimeout = 10 * time.Second
	}
	if d.Session.Clock == nil {
		d.Session.Clock = d.Clock
	}
	if d.Session.Log == nil {
		d.Session.Log = d.Log
	}
	return &Registry{
		deps:  d,
		log:   d.Log.With("component", "WorkspaceRegistry"),
		items: make(map[string]*Workspace),
	}
}

// Acquire returns the workspace for id, creating it (and starting its
// session restore in the background) when it does not exist. An empty id
// gets a fresh one.
func (r *Registry) Acquire(id string) *Workspace {
	now := r.deps.Clock.Now()

	r.mu.Lock()
	if id != "" {
		if ws, ok := r.items[id]; ok {
			r.mu.Unlock()
			ws.touch(now)
			return ws
		}
	} else {
		id = uuid.NewString()
	}
	evicted := r.evictLocked()
	ws := r.build(id)
	ws.lastSeen = now
	r.items[id] = ws
	r.mu.Unlock()

	if evicted != nil {
		evicted.close()
		r.log.Warn("workspace limit reached, least recently used closed", "workspace", evicted.ID, "limit", r.deps.MaxWorkspaces)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.deps.InitTimeout)
		defer cancel()
		if err := ws.Session.Initialize(ctx); err != nil {
			r.log.Warn("workspace session init failed", "workspace", id, "error", err)
		}
	}()
	r.log.Debug("workspace created", "workspace", id)
	return ws
}

// Lookup returns an existing workspace without creating one.
func (r *Registry) Lookup(id string) (*Workspace, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	ws, ok := r.items[id]
	r.mu.Unlock()
	if ok {
		ws.touch(r.deps.Clock.Now())
	}
	return ws, ok
}

// evictLocked removes the least recently used workspace when the registry
// is full and returns it for closing outside the lock.
func (r *Registry) evictLocked() *Workspace {
	if len(r.items) < r.deps.MaxWorkspaces {
		return nil
	}
	var oldest *Workspace
	for _, ws := range r.items {
		if oldest == nil || ws.idleSince().Before(oldest.idleSince()) {
			oldest = ws
		}
	}
	if oldest != nil {
		delete(r.items, oldest.ID)
	}
	return oldest
}

func (r *Registry) build(id string) *Workspace {
	notices := workflow.NewNotices()
	return &Workspace{
		ID:      id,
		Session: session.NewStore(id, r.deps.Session),
		Dashboard: workflow.NewDashboard(workflow.Deps{
			Repository: r.deps.Repository,
			Analyzer:   r.deps.Analyzer,
			Reports:    r.deps.Reports,
			Notices:    notices,
			Log:        r.deps.Log,
		}),
		Notices: notices,
	}
}

// Discard closes and forgets the workspace.
func (r *Registry) Discard(id string) {
	r.mu.Lock()
	ws, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if ok {
		ws.close()
	}
}

// Sweep closes workspaces idle for longer than the TTL (the shorter
// anonymous TTL when nobody is signed in) and returns how many were closed.
func (r *Registry) Sweep() int {
	now := r.deps.Clock.Now()
	cutoff := now.Add(-r.deps.IdleTTL)
	anonCutoff := now.Add(-r.deps.AnonymousTTL)

	r.mu.Lock()
	var stale []*Workspace
	for id, ws := range r.items {
		limit := cutoff
		if ws.Session.User() == nil && !ws.Session.Loading() {
			limit = anonCutoff
		}
		if ws.idleSince().Before(limit) {
			stale = append(stale, ws)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, ws := range stale {
		ws.close()
	}
	if len(stale) > 0 {
		r.log.Info("idle workspaces closed", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	interval := r.deps.AnonymousTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Close closes every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Workspace, 0, len(r.items))
	for _, ws := range r.items {
		all = append(all, ws)
	}
	r.items = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, ws := range all {
		ws.close()
	}
}
