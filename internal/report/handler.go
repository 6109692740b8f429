package report

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"phalanx/internal/scoring"
)

// Handler exposes the compliance reporting endpoints.
type Handler struct {
	store    *Store
	uploader *Uploader
	logger   *slog.Logger
}

// NewHandler creates a compliance handler. uploader may be nil when S3
// archival is disabled.
func NewHandler(store *Store, uploader *Uploader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, uploader: uploader, logger: logger}
}

// RegisterRoutes registers the compliance routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/report-anomaly", h.HandleReportAnomaly)
	mux.HandleFunc("GET /v1/reports", h.HandleList)
	mux.HandleFunc("GET /v1/reports/{name}", h.HandleRead)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// HandleReportAnomaly handles POST /v1/report-anomaly: one verdict in, one
// incident report on disk.
func (h *Handler) HandleReportAnomaly(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var v scoring.Verdict
	if err := json.Unmarshal(body, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	now := time.Now().UTC()
	rep, err := h.store.Save(Build(&v, now), now)
	if err != nil {
		h.logger.Error("failed to save report", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save report")
		return
	}

	h.logger.Info("incident report generated", "report", rep.Name, "verdict_id", v.ID)
	h.archive(rep.Name, now)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "DORA report generated successfully.",
		"report":  rep.Name,
	})
}

// HandleList handles GET /v1/reports.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.List()
	if err != nil {
		h.logger.Error("failed to list reports", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"total":   len(reports),
	})
}

// HandleRead handles GET /v1/reports/{name}.
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	content, err := h.store.Read(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// archive uploads a saved report off the request path.
func (h *Handler) archive(name string, now time.Time) {
	if h.uploader == nil {
		return
	}
	content, err := h.store.Read(name)
	if err != nil {
		h.logger.Warn("report vanished before archival", "report", name, "error", err)
		return
	}
	go func() {
		ctx, cancel := contextWithTimeout()
		defer cancel()
		if err := h.uploader.Upload(ctx, name, content, now); err != nil {
			h.logger.Warn("report archival failed", "report", name, "error", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
