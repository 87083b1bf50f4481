package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/doccompile/internal/indexentry"
)

type indexEntriesRequest struct {
	Text string `json:"text"`
}

// handleIndexEntries parses an index annotation body the way the {index}
// directive does and returns the entries with any rejected lines.
func (s *Server) handleIndexEntries(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req indexEntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	entries, errs := indexentry.ParseDirective(req.Text)
	if entries == nil {
		entries = []indexentry.Entry{}
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	writeJSON(w, map[string]any{"entries": entries, "errors": msgs})
}
