package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/favicon.ico
var faviconICO []byte

const (
	pageIndex        = "index.html"
	pageContribute   = "contribute.html"
	pageError        = "payment_error.html"
	pageFailed       = "payment_failed.html"
	pageConfirmation = "payment_confirmation.html"
)

// pages holds one template set per page, each parsed together with the shared layout.
type pages struct {
	byName map[string]*template.Template
}

func mustLoadPages() *pages {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}
	out := &pages{byName: make(map[string]*template.Template)}
	for _, name := range names {
		base := name[len("templates/"):]
		if base == "layout.html" {
			continue
		}
		out.byName[base] = template.Must(template.ParseFS(templateFS, "templates/layout.html", name))
	}
	return out
}

// render buffers the page so a template error never produces a half-written response.
func (p *pages) render(w http.ResponseWriter, logger *slog.Logger, status int, name string, data any) {
	tmpl, ok := p.byName[name]
	if !ok {
		logger.Error("render_page", "status", "unknown_template", "template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Error("render_page", "status", "template_error", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
