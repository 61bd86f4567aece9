package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	entries := s.index.Entries()
	sources := make(map[string]struct{})
	refFiles := make(map[string]struct{})
	for _, e := range entries {
		sources[e.SourceFile] = struct{}{}
		refFiles[e.RefFile] = struct{}{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"entries":     len(entries),
		"sources":     len(sources),
		"ref_files":   len(refFiles),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
