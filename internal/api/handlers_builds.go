package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/dgallion1/doccompile/internal/parser"
	"github.com/dgallion1/doccompile/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid build request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if msg := s.validateBuild(&req); msg != "" {
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(req)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"build_id": job.ID,
		"status":   pipeline.StatusQueued,
		"pages":    len(req.Pages),
		"poll_url": fmt.Sprintf("/api/builds/%s", job.ID),
	})
}

// validateBuild checks the request and cleans page file names in place.
// It returns the reason the request is rejected, or "".
func (s *Server) validateBuild(req *pipeline.Request) string {
	if len(req.Pages) == 0 {
		return "at least one page is required"
	}
	if len(req.Pages) > s.cfg.MaxPages {
		return fmt.Sprintf("too many pages (%d > %d)", len(req.Pages), s.cfg.MaxPages)
	}
	if f, ok := s.orchestrator.Worker().Formats(req.Formats); !ok {
		return fmt.Sprintf("unknown format: %s", f)
	}
	if req.TOCDepth < 0 || req.TOCDepth > 6 {
		return "toc_depth must be between 0 and 6"
	}
	seen := map[string]bool{}
	for i := range req.Pages {
		p := &req.Pages[i]
		p.File = sanitizeFilename(p.File)
		if !parser.IsSupportedExtension(p.File) {
			return fmt.Sprintf("unsupported file type: %s", path.Ext(p.File))
		}
		if seen[p.File] {
			return fmt.Sprintf("duplicate page: %s", p.File)
		}
		seen[p.File] = true
	}
	return ""
}

func (s *Server) jobOrError(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "buildID"))
	if job == nil {
		jsonError(w, "build not found", http.StatusNotFound)
	}
	return job
}

// outputOrError returns the finished output of the requested build.
func (s *Server) outputOrError(w http.ResponseWriter, r *http.Request) *pipeline.Output {
	job := s.jobOrError(w, r)
	if job == nil {
		return nil
	}
	out := job.Output()
	if out == nil {
		jsonError(w, fmt.Sprintf("build is %s", job.Snapshot().Status), http.StatusConflict)
	}
	return out
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobOrError(w, r)
	if job == nil {
		return
	}
	writeJSON(w, job.Snapshot())
}

func (s *Server) handleBuildXref(w http.ResponseWriter, r *http.Request) {
	if out := s.outputOrError(w, r); out != nil {
		writeJSON(w, map[string]any{"references": out.Xref})
	}
}

func (s *Server) handleBuildTOC(w http.ResponseWriter, r *http.Request) {
	out := s.outputOrError(w, r)
	if out == nil {
		return
	}
	pages := map[string]any{}
	for _, p := range out.Pages {
		pages[p.File] = p.TOC
	}
	writeJSON(w, map[string]any{"toc": out.TOC, "pages": pages})
}

func (s *Server) handleBuildIndex(w http.ResponseWriter, r *http.Request) {
	if out := s.outputOrError(w, r); out != nil {
		writeJSON(w, map[string]any{"terms": out.Index})
	}
}

func (s *Server) handleBuildPage(w http.ResponseWriter, r *http.Request) {
	out := s.outputOrError(w, r)
	if out == nil {
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "page"))
	if err != nil {
		jsonError(w, "invalid page", http.StatusBadRequest)
		return
	}
	page := out.Page(key)
	if page == nil {
		jsonError(w, "page not found", http.StatusNotFound)
		return
	}
	format := chi.URLParam(r, "format")
	res, ok := page.Outputs[format]
	if !ok {
		msg := fmt.Sprintf("no %s output for %s", format, page.File)
		if page.Error != "" {
			msg += ": " + page.Error
		}
		jsonError(w, msg, http.StatusNotFound)
		return
	}

	name := strings.TrimSuffix(path.Base(page.File), path.Ext(page.File)) + res.Ext
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(res.Payload)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// sanitizeFilename keeps a page's relative path but drops anything that
// would climb out of the project.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean("/" + name)
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
