package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/dgallion1/doccompile/internal/pipeline"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	formats := make([]string, 0)
	for name := range pipeline.DefaultBackends() {
		formats = append(formats, name)
	}
	slices.Sort(formats)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"queue_depth":  s.orchestrator.QueueDepth(),
		"queue_size":   s.cfg.MaxQueueSize,
		"workers":      s.cfg.WorkerCount,
		"page_workers": s.cfg.PageWorkers,
		"formats":      formats,
	})
}
