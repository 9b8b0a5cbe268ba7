package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/joeblew999/plat-maps/internal/auth"
)

const loginPath = "/login"

// pages serves the HTML shell from the web directory. Everything but the
// login page needs a valid token.
func (s *Server) pages(r chi.Router) {
	if s.cfg.WebDir == "" {
		return
	}
	staticDir := filepath.Join(s.cfg.WebDir, "static")
	if _, err := os.Stat(staticDir); err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	r.Get(loginPath, s.page("login.html"))
	r.Group(func(r chi.Router) {
		r.Use(auth.PageGuard(s.verifier, loginPath))
		r.Get("/", s.page("dashboard.html"))
		r.Get("/dashboard", s.page("dashboard.html"))
		r.Get("/project/{projectId}", s.page("project.html"))
	})
}

func (s *Server) page(name string) http.HandlerFunc {
	path := filepath.Join(s.cfg.WebDir, "templates", name)
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
