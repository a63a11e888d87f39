package httpserver

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/reclaimai/reclaim/internal/application/workflow"
	"github.com/reclaimai/reclaim/internal/domain/auth"
	"github.com/reclaimai/reclaim/internal/domain/evidence"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"landing", "login", "register", "onboarding", "dashboard",
	"calculator", "loading", "confirm_delete",
}

// page is the data every template receives.
type page struct {
	Title   string
	Notices []workflow.Notice
	User    *auth.User
	// Refresh, when positive, adds a meta refresh after that many seconds.
	Refresh int
	Data    any
}

type views struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"reportNumber": func(i, total int) int { return total - i },
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"severityClass": func(s evidence.Severity) string {
		if s == "" {
			return "severity-none"
		}
		return "severity-" + strings.ToLower(string(s))
	},
	"join": strings.Join,
	"tabs": func() []workflow.Tab {
		return []workflow.Tab{workflow.TabEvidence, workflow.TabReports, workflow.TabResources, workflow.TabSettings}
	},
	"title": func(t workflow.Tab) string {
		s := string(t)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

func mustParseViews() *views {
	layout := template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	v := &views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t := template.Must(layout.Clone())
		v.pages[name] = template.Must(t.ParseFS(templateFS, "templates/"+name+".html"))
	}
	return v
}

// render drains the workspace notices into p and writes the page. The page
// is buffered so a template error never leaves a half-written response.
func (r *Router) render(w http.ResponseWriter, req *http.Request, status int, name string, p page) {
	t, ok := r.views.pages[name]
	if !ok {
		r.log.Error("unknown template", "name", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ws := workspaceFrom(req.Context()); ws != nil {
		p.Notices = ws.Notices.Drain()
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		r.log.Error("render failed", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
