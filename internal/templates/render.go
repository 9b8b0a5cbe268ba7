// Package templates renders the HTML fragments used in feature popups and
// Datastar SSE patches.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"
)

// Fragment names.
const (
	PopupFragment     = "popup"
	LayerListFragment = "layer-list"
	NoticeFragment    = "notice"
)

//go:embed fragments/*.html
var embedded embed.FS

// Renderer manages HTML fragment templates.
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
}

// New creates a renderer over the built-in fragments. When overrideDir is
// set, every *.html in it is parsed on top, so a deployment can redefine
// single fragments and keep the rest.
func New(overrideDir string) (*Renderer, error) {
	tmpl, err := parse(overrideDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// MustDefault returns a renderer over the built-in fragments.
func MustDefault() *Renderer {
	r, err := New("")
	if err != nil {
		panic(err)
	}
	return r
}

func parse(overrideDir string) (*template.Template, error) {
	tmpl, err := template.New("").ParseFS(embedded, "fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse built-in fragments: %w", err)
	}
	if overrideDir == "" {
		return tmpl, nil
	}
	if _, err := os.Stat(overrideDir); err != nil {
		return nil, fmt.Errorf("fragments dir: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(overrideDir, "*.html"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return tmpl, nil
	}
	if tmpl, err = tmpl.ParseFiles(files...); err != nil {
		return nil, fmt.Errorf("parse %s: %w", overrideDir, err)
	}
	return tmpl, nil
}

// Render executes the named fragment.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Reload re-parses the fragments, for editing overrides without a restart.
func (r *Renderer) Reload(overrideDir string) error {
	tmpl, err := parse(overrideDir)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}
