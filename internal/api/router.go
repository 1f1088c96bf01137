package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/gray-logic-node/internal/node"
)

const (
	// healthCheckTimeout bounds each dependency check.
	healthCheckTimeout = 2 * time.Second

	// submitTimeout bounds waiting for room in the command queue.
	submitTimeout = 2 * time.Second
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanics)
	r.Use(middleware.RequestSize(maxRequestBody))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/status", s.handleStatus)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Get("/{name}", s.handleGetEntity)
		})

		r.Post("/session/{command}", s.handleSessionCommand)
	})

	return r
}

// handleHealth reports the node and its optional dependencies. Any failed
// check turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checks))
	status, code := "ok", http.StatusOK
	for name, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	snap := s.node.Snapshot()
	writeJSON(w, code, map[string]any{
		"status":       status,
		"version":      s.version,
		"coarse_ready": snap.Sequence.CoarseReady,
		"fine_ready":   snap.Sequence.FineReady,
		"checks":       checks,
	})
}

// statusResponse is the snapshot without the entity table.
type statusResponse struct {
	DeviceID  string             `json:"device_id"`
	Version   string             `json:"version"`
	BootID    string             `json:"boot_id"`
	StartedAt time.Time          `json:"started_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Link      node.LinkStatus    `json:"link"`
	Session   node.SessionStatus `json:"session"`
	Sequence  any                `json:"sequence"`
	Entities  int                `json:"entities"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.node.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		DeviceID:  snap.DeviceID,
		Version:   snap.Version,
		BootID:    snap.BootID,
		StartedAt: snap.StartedAt,
		UpdatedAt: snap.UpdatedAt,
		Link:      snap.Link,
		Session:   snap.Session,
		Sequence:  snap.Sequence,
		Entities:  len(snap.Entities),
	})
}

func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	snap := s.node.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": snap.Entities,
		"count":    len(snap.Entities),
	})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, e := range s.node.Snapshot().Entities {
		if e.Name == name {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	writeError(w, http.StatusNotFound, ErrCodeNotFound, "entity not found: "+name)
}

func (s *Server) handleSessionCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := node.ParseCommand(chi.URLParam(r, "command"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	if err := s.node.Submit(ctx, cmd); err != nil {
		if errors.Is(err, node.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"command": cmd.String(),
		"status":  "queued",
	})
}
