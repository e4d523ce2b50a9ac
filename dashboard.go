package main

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/hangyeol-kang/d3RW/session"
	"github.com/pkg/errors"
)

//go:embed templates
var templatesFS embed.FS

var dashboardTmpl = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html"))

type dashboardData struct {
	GitRev   string
	Target   session.Target
	Settings session.Settings
	Sidebar  bool
}

func (p *panel) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := dashboardData{
		GitRev:   gitRev,
		Target:   p.sess.Target(),
		Settings: p.sess.Settings(),
		Sidebar:  p.sess.SidebarCollapsed(),
	}
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		logger.Error(errors.Wrap(err, "render dashboard"))
		http.Error(w, "render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
