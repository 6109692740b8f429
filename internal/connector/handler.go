package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Handler exposes connector management and the integration trigger.
type Handler struct {
	store   *Store
	capture *Capture
	logger  *slog.Logger

	// pingFn is swappable for tests.
	pingFn func(context.Context, Connector) error
}

// NewHandler creates a connector handler. capture may be nil, disabling the
// integration endpoint.
func NewHandler(store *Store, capture *Capture, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		capture: capture,
		logger:  logger,
		pingFn:  Ping,
	}
}

// RegisterRoutes registers connector routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/connectors", h.HandleList)
	mux.HandleFunc("POST /v1/connectors", h.HandleCreate)
	mux.HandleFunc("DELETE /v1/connectors/{id}", h.HandleDelete)
	mux.HandleFunc("POST /v1/integrations/connect", h.HandleConnect)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// HandleList handles GET /v1/connectors.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	connectors, err := h.store.List()
	if err != nil {
		h.logger.Error("failed to list connectors", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load connectors")
		return
	}
	if connectors == nil {
		connectors = []Connector{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connectors": connectors,
		"total":      len(connectors),
	})
}

// HandleCreate handles POST /v1/connectors.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var c Connector
	if err := json.Unmarshal(body, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.store.Create(c)
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to save connector", "connector_id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save connector")
		return
	}

	h.logger.Info("connector created", "connector_id", created.ID, "type", created.Type)
	writeJSON(w, http.StatusCreated, created)
}

// HandleDelete handles DELETE /v1/connectors/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("failed to delete connector", "connector_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete connector")
		return
	}

	h.logger.Info("connector deleted", "connector_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ConnectRequest is the request body for the integration trigger.
type ConnectRequest struct {
	ConnectorID string `json:"connector_id"`
}

// HandleConnect handles POST /v1/integrations/connect: verifies the data
// source and starts the query-capture replay for it.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if h.capture == nil {
		writeError(w, http.StatusServiceUnavailable, "query capture is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req ConnectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	conn, err := h.store.Get(req.ConnectorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load connector")
		return
	}

	if err := h.pingFn(r.Context(), conn); err != nil {
		h.logger.Warn("connectivity check failed", "connector_id", conn.ID, "error", err)
		writeError(w, http.StatusBadGateway, "data source unreachable")
		return
	}

	h.capture.Start(context.Background(), conn)
	h.logger.Info("query capture started", "connector_id", conn.ID, "type", conn.Type)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Successfully connected to %s at %s", conn.Type, conn.Name),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "healthy"}
	if h.capture != nil {
		resp["capture_queue"] = h.capture.Metrics()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
