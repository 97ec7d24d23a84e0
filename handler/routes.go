package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// legacyJobs are served at /<name> as well as /run/<name>.
var legacyJobs = []string{"date", "version", "hello", "fail"}

// Mount registers every route on r.
func (h *Handler) Mount(r chi.Router) {
	r.With(h.RateLimit, ValidateJobName).Get("/run/{jobName}", h.RunJob)

	if h.cfg.LegacyRoutes {
		for _, name := range legacyJobs {
			if _, ok := h.jobs.Get(name); !ok {
				continue
			}
			r.With(h.RateLimit).Get("/"+name, h.runNamed(name))
		}
	}

	r.Get("/stat", h.Stat)
	r.Get("/errors", h.Errors)
	r.Get("/jobs", h.ListJobs)

	r.Get("/executions", h.ListExecutions)
	r.Get("/executions/{id}", h.GetExecution)
	r.With(ValidateJobName).Get("/outputs/{jobName}/{execId}", h.GetOutput)

	r.Get("/saga", h.ListRecentSaga)
	r.Get("/saga/{sagaId}", h.GetSagaEvents)

	r.Get("/health", h.Health)
	r.Get("/info", h.Info)
}

func (h *Handler) runNamed(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.run(w, r, name)
	}
}
