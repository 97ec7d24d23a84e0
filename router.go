package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"jobledger/config"
	"jobledger/handler"
	"jobledger/hub"
	"jobledger/ledger"
	"jobledger/model"
)

// newRouter assembles the HTTP surface. probes back /health, which is also
// the target of the Consul check.
func newRouter(cfg *config.Config, exec handler.Executor, l *ledger.Ledger, jobs *model.JobTable,
	opts handler.Options, probes map[string]handler.Probe, ws *hub.Hub, allowedOrigins []string) http.Handler {
	opts.Probes = probes
	opts.Listeners = ws
	h := handler.New(cfg, exec, l, jobs, opts)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"X-Execution-Id"},
	}))

	h.Mount(r)
	r.Get("/ws", ws.HandleConnect)
	return r
}
