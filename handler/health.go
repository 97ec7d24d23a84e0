package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const probeTimeout = 3 * time.Second

// Health probes every configured dependency concurrently.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	var mu sync.Mutex
	services := make(map[string]string, len(h.opts.Probes))

	var g errgroup.Group
	for name, probe := range h.opts.Probes {
		name, probe := name, probe
		g.Go(func() error {
			state := "up"
			if err := probe(ctx); err != nil {
				state = "down"
			}
			mu.Lock()
			services[name] = state
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	status := "ok"
	for _, v := range services {
		if v == "down" {
			status = "degraded"
			break
		}
	}

	writeJSON(w, map[string]interface{}{
		"status":   status,
		"services": services,
	})
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version": h.opts.Version,
		"runtime": h.opts.Runtime,
		"jobs":    h.jobs.Names(),
	}
	if h.opts.Listeners != nil {
		info["listeners"] = h.opts.Listeners.Clients()
	}
	writeJSON(w, info)
}
