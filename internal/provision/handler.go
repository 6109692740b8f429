package provision

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Handler exposes the provisioning endpoints.
type Handler struct {
	provisioner *Provisioner
	logger      *slog.Logger
}

// NewHandler creates a provisioning handler.
func NewHandler(provisioner *Provisioner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{provisioner: provisioner, logger: logger}
}

// RegisterRoutes registers provisioning routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/provision/mongodb", h.HandleMongoDB)
	mux.HandleFunc("POST /v1/provision/postgres", h.HandlePostgreSQL)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// HandleMongoDB handles POST /v1/provision/mongodb.
func (h *Handler) HandleMongoDB(w http.ResponseWriter, r *http.Request) {
	id, err := h.provisioner.MongoDB(r.Context())
	if err != nil {
		h.logger.Error("mongodb provisioning failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to provision mongodb")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("MongoDB container %s created successfully.", id),
	})
}

// HandlePostgreSQL handles POST /v1/provision/postgres.
func (h *Handler) HandlePostgreSQL(w http.ResponseWriter, r *http.Request) {
	id, err := h.provisioner.PostgreSQL(r.Context())
	if err != nil {
		h.logger.Error("postgresql provisioning failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to provision postgresql")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("PostgreSQL container %s created successfully.", id),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
