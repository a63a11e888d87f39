package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/reclaimai/reclaim/internal/application/workspace"
)

type workspaceKey struct{}

func workspaceFrom(ctx context.Context) *workspace.Workspace {
	ws, _ := ctx.Value(workspaceKey{}).(*workspace.Workspace)
	return ws
}

func (r *Router) cookieID(req *http.Request) string {
	c, err := req.Cookie(r.cookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// withWorkspace resolves the workspace named by the session cookie,
// creating one (and setting the cookie) when there is none.
func (r *Router) withWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.cookieID(req)
		ws := r.registry.Acquire(id)
		if ws.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     r.cookieName,
				Value:    ws.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.cookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), workspaceKey{}, ws)))
	})
}

// peekWorkspace attaches the workspace only when it already exists. Public
// pages render without one.
func (r *Router) peekWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if ws, ok := r.registry.Lookup(r.cookieID(req)); ok {
			req = req.WithContext(context.WithValue(req.Context(), workspaceKey{}, ws))
		}
		next.ServeHTTP(w, req)
	})
}

// requireSession waits briefly for the session restore, then renders a
// loading placeholder (still restoring), redirects to /login (no user), or
// serves the page.
func (r *Router) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ws := workspaceFrom(req.Context())
		if ws.Session.Loading() {
			t := time.NewTimer(r.restoreWait)
			select {
			case <-ws.Session.Ready():
			case <-t.C:
			case <-req.Context().Done():
			}
			t.Stop()
		}
		if ws.Session.Loading() {
			r.render(w, req, http.StatusOK, "loading", page{Title: "Loading", Refresh: 1})
			return
		}
		if ws.Session.User() == nil {
			http.Redirect(w, req, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, req)
	})
}
