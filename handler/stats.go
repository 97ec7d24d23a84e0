package handler

import (
	"net/http"
)

// Stat writes [summary, outcomes] from one consistent snapshot.
func (h *Handler) Stat(w http.ResponseWriter, r *http.Request) {
	snap := h.ledger.Snapshot()
	writeJSON(w, []interface{}{snap.Summary, snap.Outcomes})
}

func (h *Handler) Errors(w http.ResponseWriter, r *http.Request) {
	n, ok := queryInt(r, "n", h.cfg.RecentErrors)
	if !ok {
		writeError(w, http.StatusBadRequest, "n must be a positive integer")
		return
	}
	writeJSON(w, h.ledger.RecentFailureMessages(n))
}
