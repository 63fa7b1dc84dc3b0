// Package httpapi exposes a thin JSON-over-HTTP read and check surface for
// the workflow service. Mutations stay behind the service API; the endpoints
// here never write.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"obsflow/internal/core"
	"obsflow/internal/telemetry"
	"obsflow/pkg/workflow"
)

// API serves the read-only workflow endpoints over a *core.Service.
type API struct {
	service  *core.Service
	logger   *telemetry.Logger
	gatherer prometheus.Gatherer
}

// New constructs an API. A nil logger falls back to a no-op logger; a nil
// gatherer disables the /metrics endpoint.
func New(service *core.Service, logger *telemetry.Logger, gatherer prometheus.Gatherer) *API {
	if logger == nil {
		logger = telemetry.NewNop()
	}
	return &API{service: service, logger: logger, gatherer: gatherer}
}

// Register installs the API routes on mux.
func (api *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/observations/{id}/workflow", api.handleGetWorkflow)
	mux.HandleFunc("POST /v1/observations/edit-check", api.handleEditCheck)
	mux.HandleFunc("GET /healthz", api.handleHealthz)
	if api.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns a mux with the API routes registered.
func (api *API) Handler() http.Handler {
	mux := http.NewServeMux()
	api.Register(mux)
	return mux
}

func (api *API) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		api.writeError(w, r, http.StatusBadRequest, "observation_id_required")
		return
	}
	wf, err := api.service.GetWorkflow(r.Context(), id)
	if err != nil {
		var notFound core.ErrNotFound
		if errors.As(err, &notFound) {
			api.writeError(w, r, http.StatusNotFound, "observation_not_found")
			return
		}
		api.logger.Error("workflow lookup failed", "observation_id", id, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, wf)
}

type editCheckRequest struct {
	ObservationIDs []string               `json:"observation_ids"`
	Actor          workflow.Actor         `json:"actor"`
	Operation      workflow.OperationKind `json:"operation"`
}

func (api *API) handleEditCheck(w http.ResponseWriter, r *http.Request) {
	var req editCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.ObservationIDs) == 0 {
		api.writeError(w, r, http.StatusBadRequest, "observation_ids_required")
		return
	}
	if req.Operation == "" {
		api.writeError(w, r, http.StatusBadRequest, "operation_required")
		return
	}
	check, err := api.service.CheckEditable(r.Context(), req.ObservationIDs, req.Actor, req.Operation)
	if err != nil {
		var notFound core.ErrNotFound
		if errors.As(err, &notFound) {
			api.writeError(w, r, http.StatusNotFound, "observation_not_found")
			return
		}
		api.logger.Error("edit check failed", "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, check)
}

func (api *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *API) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

// Server wraps http.Server with sane timeouts and graceful shutdown.
type Server struct {
	srv    *http.Server
	logger *telemetry.Logger
}

// NewServer builds an HTTP server listening on addr serving handler.
func NewServer(addr string, handler http.Handler, logger *telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// swallowed so graceful shutdown reads as a clean exit.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
