package policy

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// Handler provides HTTP handlers for policy management.
type Handler struct {
	store *Store
}

// NewHandler creates a new policy handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers policy management routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/policies", h.HandleList)
	mux.HandleFunc("POST /v1/policies", h.HandleCreate)
	mux.HandleFunc("DELETE /v1/policies/{id}", h.HandleDelete)
}

// HandleList handles GET /v1/policies.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	policies, err := h.store.List()
	if err != nil {
		slog.Error("failed to list policies", "error", err)
		h.writeError(w, http.StatusInternalServerError, "store_error", "failed to load policies")
		return
	}
	if policies == nil {
		policies = []Policy{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"policies": policies,
		"total":    len(policies),
	})
}

// HandleCreate handles POST /v1/policies.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "read_error", "failed to read request body")
		return
	}

	var p Policy
	if err := json.Unmarshal(body, &p); err != nil {
		h.writeError(w, http.StatusBadRequest, "parse_error", "invalid JSON: "+err.Error())
		return
	}

	if err := p.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	created, err := h.store.Create(p)
	if err != nil {
		if errors.Is(err, ErrDuplicateID) {
			h.writeError(w, http.StatusConflict, "duplicate_id", err.Error())
			return
		}
		slog.Error("failed to save policy", "policy_id", p.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "store_error", "failed to save policy")
		return
	}

	slog.Info("policy created", "policy_id", created.ID, "data_type", created.DataType, "rules", len(created.Rules))
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleDelete handles DELETE /v1/policies/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		slog.Error("failed to delete policy", "policy_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "store_error", "failed to delete policy")
		return
	}

	slog.Info("policy deleted", "policy_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
