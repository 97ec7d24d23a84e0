package handler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"jobledger/job"
	"jobledger/runtime"
)

// failureBody is what a failed run returns, whatever the cause.
var failureBody = []byte("error")

// retryAfterSeconds is advertised when the engine could not be reached.
const retryAfterSeconds = "5"

func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, chi.URLParam(r, "jobName"))
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, name string) {
	execution, err := h.exec.Run(r.Context(), name)
	if errors.Is(err, job.ErrUnknownJob) {
		writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}
	if execution != nil {
		w.Header().Set("X-Execution-Id", execution.ID)
	}
	if err != nil {
		if runtime.IsRetryable(err) {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		writeText(w, failureStatus(err), failureBody)
		return
	}
	writeText(w, http.StatusOK, []byte(execution.Output))
}

func failureStatus(err error) int {
	switch runtime.KindOf(err) {
	case runtime.KindConnection:
		return http.StatusServiceUnavailable
	case runtime.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
