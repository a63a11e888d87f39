package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	appevidence "github.com/reclaimai/reclaim/internal/application/evidence"
	"github.com/reclaimai/reclaim/internal/application/workflow"
	"github.com/reclaimai/reclaim/internal/application/workspace"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/middleware"
)

// authorized binds the dashboard to the signed-in user and returns a
// context carrying the access token. The first call per user loads the list.
func authorized(req *http.Request) (context.Context, *workspace.Workspace, error) {
	ws := workspaceFrom(req.Context())
	ctx, err := ws.Session.Authorize(req.Context())
	if err != nil {
		return nil, ws, err
	}
	user := ws.Session.User()
	if user == nil {
		return nil, ws, failure.ErrUnauthorized
	}
	ws.Dashboard.Bind(user.ID)
	if !ws.Dashboard.Loaded() {
		// a failed load leaves an error notice and an empty list
		_ = ws.Dashboard.Refresh(ctx)
	}
	return ctx, ws, nil
}

func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	_, ws, err := authorized(req)
	if err != nil {
		return err
	}
	if raw := req.URL.Query().Get("tab"); raw != "" {
		ws.Dashboard.SetTab(workflow.ParseTab(raw))
	}
	r.render(w, req, http.StatusOK, "dashboard", page{
		Title: "Reclaim AI Dashboard",
		User:  ws.Session.User(),
		Data:  ws.Dashboard.View(),
	})
	return nil
}

func backToDashboard(w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, "/dashboard", http.StatusSeeOther)
}

// handleUpload reads the multipart "file" field. A missing file is passed on
// as nil so the dashboard raises its own warning.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	ctx, ws, err := authorized(req)
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)

	var f *appevidence.File
	file, header, ferr := req.FormFile("file")
	switch {
	case ferr == nil:
		defer file.Close()
		if verr := middleware.ValidateFileName(header.Filename); verr != nil {
			ws.Notices.Warning("Upload failed: " + verr.Error())
			r.metrics.Record(middleware.EventUpload, middleware.OutcomeRefused)
			backToDashboard(w, req)
			return nil
		}
		f = &appevidence.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	case errors.Is(ferr, http.ErrMissingFile):
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(ferr, &tooLarge) {
			ws.Notices.Error("File is too large to upload")
			r.metrics.Record(middleware.EventUpload, middleware.OutcomeRefused)
			backToDashboard(w, req)
			return nil
		}
		r.log.Warn("upload form unreadable", "workspace", ws.ID, "error", ferr)
	}

	err = ws.Dashboard.Upload(ctx, f)
	r.metrics.Record(middleware.EventUpload, outcome(err))
	backToDashboard(w, req)
	return nil
}

// evidenceID reads the {id} route parameter. A malformed id is refused with
// a notice and no backend call.
func (r *Router) evidenceID(w http.ResponseWriter, req *http.Request, ws *workspace.Workspace, event string) (string, bool) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateEvidenceID(id); err != nil {
		ws.Notices.Warning("Evidence not found")
		r.metrics.Record(event, middleware.OutcomeRefused)
		backToDashboard(w, req)
		return "", false
	}
	return id, true
}

func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	ctx, ws, err := authorized(req)
	if err != nil {
		return err
	}
	id, ok := r.evidenceID(w, req, ws, middleware.EventAnalyze)
	if !ok {
		return nil
	}
	err = ws.Dashboard.Analyze(ctx, id)
	r.metrics.Record(middleware.EventAnalyze, outcome(err))
	backToDashboard(w, req)
	return nil
}

// handleDelete asks for confirmation first; only confirm=yes deletes.
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	ctx, ws, err := authorized(req)
	if err != nil {
		return err
	}
	id, ok := r.evidenceID(w, req, ws, middleware.EventDelete)
	if !ok {
		return nil
	}
	if req.PostFormValue("confirm") != "yes" {
		for _, it := range ws.Dashboard.View().Items {
			if it.ID == id {
				r.render(w, req, http.StatusOK, "confirm_delete", page{
					Title: "Delete evidence",
					User:  ws.Session.User(),
					Data:  it,
				})
				return nil
			}
		}
		ws.Notices.Warning("Evidence not found")
		backToDashboard(w, req)
		return nil
	}
	err = ws.Dashboard.Delete(ctx, id, true)
	r.metrics.Record(middleware.EventDelete, outcome(err))
	backToDashboard(w, req)
	return nil
}

func (r *Router) handleGenerateReport(w http.ResponseWriter, req *http.Request) error {
	ctx, ws, err := authorized(req)
	if err != nil {
		return err
	}
	err = ws.Dashboard.GenerateReport(ctx)
	r.metrics.Record(middleware.EventReport, outcome(err))
	if err == nil {
		http.Redirect(w, req, "/dashboard?tab=reports", http.StatusSeeOther)
		return nil
	}
	backToDashboard(w, req)
	return nil
}
