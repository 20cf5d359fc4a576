// Package web renders the HTML pages of the feed queue front end
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/feed"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	IndexPage      = "index.html"
	ProcessingPage = "processing.html"
	FeedPage       = "feed.html"
)

// FeedSource is a sample feed offered on the index page
type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// IndexData feeds index.html
type IndexData struct {
	Feeds []FeedSource
}

// ProcessingData feeds processing.html
type ProcessingData struct {
	JobID          string
	RefreshSeconds int
}

// FeedData feeds feed.html. Raw is used when the job result is not a feed result.
type FeedData struct {
	JobID  string
	Result *feed.Result
	Raw    string
}

// Renderer executes the embedded templates
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"date": formatDate,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render writes page name with data. Nothing is written if execution fails.
func (r *Renderer) Render(w http.ResponseWriter, name string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("Jan 2, 2006 15:04 MST")
}
