package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/site"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.svc.CacheTTL()))
	_, _ = w.Write([]byte(s.svc.HighlightCSS()))
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	viewer := s.viewer(r)
	editMode := isTruthy(query.Get("edit"))
	if editMode && viewer == nil {
		writeError(w, http.StatusUnauthorized, "editor token required")
		return
	}

	lang := s.svc.NegotiateLanguage(query.Get("lang"), r.Header.Get("Accept-Language"))
	res, err := s.svc.RenderPage(r.Context(), site.PageRequest{
		Path:     r.URL.Path,
		Language: lang,
		Viewer:   viewer,
		EditMode: editMode,
	})
	if err != nil {
		s.writeRenderError(w, r, err)
		return
	}

	header := w.Header()
	header.Set("X-Request-Id", res.RequestID)
	header.Set("Content-Language", res.Language)
	header.Add("Vary", "Accept-Language")
	if res.Cacheable && viewer == nil {
		header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.svc.CacheTTL()))
	} else {
		header.Set("Cache-Control", "private, no-cache")
	}
	writeHTML(w, http.StatusOK, res.HTML)
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewer(r)
	if viewer == nil {
		writeError(w, http.StatusUnauthorized, "editor token required")
		return
	}
	query := r.URL.Query()
	path := query.Get("path")
	if strings.TrimSpace(path) == "" {
		path = "/"
	}
	res, err := s.svc.RenderStructure(r.Context(), site.PageRequest{
		Path:     path,
		Language: s.svc.NegotiateLanguage(query.Get("lang"), r.Header.Get("Accept-Language")),
		Viewer:   viewer,
		EditMode: true,
	})
	if err != nil {
		s.writeRenderError(w, r, err)
		return
	}
	w.Header().Set("X-Request-Id", res.RequestID)
	w.Header().Set("Cache-Control", "private, no-cache")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Webhook.Enabled {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !s.authorizeWebhook(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.svc.PurgeCache(r.Context()); err != nil {
		s.logger.Error("purge", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (s *Server) writeRenderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, content.ErrPageNotFound),
		errors.Is(err, content.ErrPlaceholderNotFound),
		errors.Is(err, content.ErrInvalidPath),
		errors.Is(err, site.ErrReservedPath):
		writeError(w, http.StatusNotFound, "page not found")
	case errors.Is(err, site.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		s.logger.Error("render", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "")
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
