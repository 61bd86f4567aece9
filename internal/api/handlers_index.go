package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erykwalder/quoth/internal/pipeline"
)

func (s *Server) handleReferences(w http.ResponseWriter, r *http.Request) {
	source := cleanVaultPath(r.URL.Query().Get("source"))
	if source == "" {
		jsonError(w, "source query parameter is required", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"source":     source,
		"references": s.index.References(source),
	})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.submit(w, pipeline.NewJob(pipeline.KindRebuild, "", ""))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

type fileEvent struct {
	Path    string `json:"path"`
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
}

func (s *Server) handleFileModified(w http.ResponseWriter, r *http.Request) {
	var ev fileEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	p := cleanVaultPath(ev.Path)
	if p == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	s.submit(w, pipeline.NewJob(pipeline.KindModify, p, ""))
}

func (s *Server) handleFileRenamed(w http.ResponseWriter, r *http.Request) {
	var ev fileEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	oldPath, newPath := cleanVaultPath(ev.OldPath), cleanVaultPath(ev.NewPath)
	if oldPath == "" || newPath == "" {
		jsonError(w, "old_path and new_path are required", http.StatusBadRequest)
		return
	}
	s.submit(w, pipeline.NewJob(pipeline.KindRename, oldPath, newPath))
}

func (s *Server) handleFileDeleted(w http.ResponseWriter, r *http.Request) {
	p := cleanVaultPath(r.URL.Query().Get("path"))
	if p == "" {
		jsonError(w, "path query parameter is required", http.StatusBadRequest)
		return
	}
	s.submit(w, pipeline.NewJob(pipeline.KindDelete, p, ""))
}

func (s *Server) submit(w http.ResponseWriter, job *pipeline.Job) {
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"kind":     job.Kind,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/index/jobs/%s", job.ID),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// cleanVaultPath returns p relative to the vault root, or "" if it would
// escape it.
func cleanVaultPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}
