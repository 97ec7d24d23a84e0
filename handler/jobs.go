package handler

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"jobledger/model"
	"jobledger/storage"
	"jobledger/store"
)

type jobView struct {
	*model.Job
	NextRun *time.Time `json:"nextRun,omitempty"`
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	var next map[string]time.Time
	if h.opts.Schedule != nil {
		next = h.opts.Schedule.Entries()
	}
	out := make([]jobView, 0)
	for _, j := range h.jobs.List() {
		v := jobView{Job: j}
		if t, ok := next[j.Name]; ok && !t.IsZero() {
			t := t
			v.NextRun = &t
		}
		out = append(out, v)
	}
	writeJSON(w, out)
}

func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.opts.History == nil {
		writeError(w, http.StatusServiceUnavailable, "execution history is not configured")
		return
	}
	jobName := r.URL.Query().Get("job")
	if jobName != "" && !model.ValidJobName(jobName) {
		writeError(w, http.StatusBadRequest, "invalid job name")
		return
	}
	limit, ok := queryInt(r, "limit", 50)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	execs, err := h.opts.History.ListExecutions(r.Context(), jobName, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if execs == nil {
		execs = []model.Execution{}
	}
	writeJSON(w, execs)
}

func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if h.opts.History == nil {
		writeError(w, http.StatusServiceUnavailable, "execution history is not configured")
		return
	}
	e, err := h.opts.History.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, e)
}

func (h *Handler) GetOutput(w http.ResponseWriter, r *http.Request) {
	if h.opts.Outputs == nil {
		writeError(w, http.StatusServiceUnavailable, "output archive is not configured")
		return
	}
	key := storage.OutputKey(chi.URLParam(r, "jobName"), chi.URLParam(r, "execId"))
	data, err := h.opts.Outputs.GetOutput(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "output not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeText(w, http.StatusOK, data)
}
