package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"jobledger/model"
	"jobledger/saga"
)

func (h *Handler) GetSagaEvents(w http.ResponseWriter, r *http.Request) {
	if h.opts.Sagas == nil {
		writeError(w, http.StatusServiceUnavailable, "saga log is not configured")
		return
	}
	events, err := h.opts.Sagas.ListBySaga(r.Context(), chi.URLParam(r, "sagaId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []saga.Event{}
	}
	writeJSON(w, events)
}

func (h *Handler) ListRecentSaga(w http.ResponseWriter, r *http.Request) {
	if h.opts.Sagas == nil {
		writeError(w, http.StatusServiceUnavailable, "saga log is not configured")
		return
	}
	limit, ok := queryInt(r, "limit", 50)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	var (
		events []saga.Event
		err    error
	)
	if jobName := r.URL.Query().Get("job"); jobName != "" {
		if !model.ValidJobName(jobName) {
			writeError(w, http.StatusBadRequest, "invalid job name")
			return
		}
		events, err = h.opts.Sagas.ListByJob(r.Context(), jobName, limit)
	} else {
		events, err = h.opts.Sagas.ListRecent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []saga.Event{}
	}
	writeJSON(w, events)
}
