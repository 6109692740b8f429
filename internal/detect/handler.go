// Package detect exposes the anomaly decision engine over HTTP: historical
// bulk load, single-event checks, and the recorded-anomaly surfaces.
package detect

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"phalanx/internal/errors"
	"phalanx/internal/history"
	"phalanx/internal/schema"
	"phalanx/internal/scoring"
	"phalanx/internal/sink"
)

// Handler handles the detection service endpoints.
type Handler struct {
	validator *schema.Validator
	store     *history.Store
	engine    *scoring.Engine
	sink      *sink.Sink
	ws        *sink.WSHandler

	maxPayload int
	maxBatch   int
	startTime  time.Time

	eventsChecked  uint64
	anomaliesFound uint64
}

// NewHandler creates a detection handler.
func NewHandler(validator *schema.Validator, store *history.Store, engine *scoring.Engine, anomalies *sink.Sink) *Handler {
	return &Handler{
		validator:  validator,
		store:      store,
		engine:     engine,
		sink:       anomalies,
		ws:         sink.NewWSHandler(anomalies.Hub(), nil),
		maxPayload: 10 * 1024 * 1024, // 10MB default
		maxBatch:   1000,
		startTime:  time.Now(),
	}
}

// WithMaxPayload sets the maximum payload size.
func (h *Handler) WithMaxPayload(size int) *Handler {
	h.maxPayload = size
	return h
}

// WithMaxBatch sets the maximum historical batch size.
func (h *Handler) WithMaxBatch(size int) *Handler {
	h.maxBatch = size
	return h
}

// RegisterRoutes registers the detection routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/history", h.HandleHistory)
	mux.HandleFunc("POST /v1/check-event", h.HandleCheckEvent)
	mux.HandleFunc("GET /v1/anomalies", h.HandleAnomalies)
	mux.HandleFunc("POST /v1/anomalies/drain", h.HandleDrain)
	mux.Handle("GET /ws/anomalies", h.ws)
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /metrics", h.Metrics)
}

// HistoryRequest is the request body for historical bulk load.
type HistoryRequest struct {
	Events []*schema.Event `json:"events"`
}

// HandleHistory handles POST /v1/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req HistoryRequest
	if !h.readJSON(w, r, &req, requestID) {
		return
	}

	if len(req.Events) == 0 {
		respondError(w, http.StatusBadRequest, "no events provided", requestID)
		return
	}
	if len(req.Events) > h.maxBatch {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("batch size exceeds maximum of %d", h.maxBatch), requestID)
		return
	}

	for i, ev := range req.Events {
		if err := h.validator.Validate(ev); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("event[%d]: %s", i, errors.SafeMessage(err)), requestID)
			return
		}
	}

	count, err := h.store.Insert(req.Events)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errors.SafeMessage(err), requestID)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "historical data loaded",
		"count":      count,
		"request_id": requestID,
	})
}

// HandleCheckEvent handles POST /v1/check-event.
func (h *Handler) HandleCheckEvent(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var ev schema.Event
	if !h.readJSON(w, r, &ev, requestID) {
		return
	}

	if err := h.validator.Validate(&ev); err != nil {
		respondError(w, http.StatusBadRequest, errors.SafeMessage(err), requestID)
		return
	}

	verdict := h.engine.Evaluate(r.Context(), &ev)
	atomic.AddUint64(&h.eventsChecked, 1)
	if verdict.IsAnomaly {
		atomic.AddUint64(&h.anomaliesFound, 1)
	}

	respondJSON(w, http.StatusOK, verdict)
}

// HandleAnomalies handles GET /v1/anomalies: a peek at the recorded verdicts
// without clearing them.
func (h *Handler) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	anomalies := h.sink.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"total":     len(anomalies),
	})
}

// HandleDrain handles POST /v1/anomalies/drain: atomically return and clear
// the recorded verdicts. Used by the periodic compliance reporter.
func (h *Handler) HandleDrain(w http.ResponseWriter, r *http.Request) {
	anomalies := h.sink.Drain()
	respondJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"total":     len(anomalies),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"history_entries":  h.store.Len(),
		"pending_verdicts": h.sink.Len(),
		"subscribers":      h.sink.Hub().Len(),
		"uptime_seconds":   int(time.Since(h.startTime).Seconds()),
	})
}

// Metrics handles GET /metrics (Prometheus format).
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP phalanx_events_checked_total Total events evaluated\n")
	fmt.Fprintf(w, "# TYPE phalanx_events_checked_total counter\n")
	fmt.Fprintf(w, "phalanx_events_checked_total %d\n\n", atomic.LoadUint64(&h.eventsChecked))

	fmt.Fprintf(w, "# HELP phalanx_anomalies_total Total anomalous verdicts\n")
	fmt.Fprintf(w, "# TYPE phalanx_anomalies_total counter\n")
	fmt.Fprintf(w, "phalanx_anomalies_total %d\n\n", atomic.LoadUint64(&h.anomaliesFound))

	fmt.Fprintf(w, "# HELP phalanx_history_entries Stored history entries\n")
	fmt.Fprintf(w, "# TYPE phalanx_history_entries gauge\n")
	fmt.Fprintf(w, "phalanx_history_entries %d\n\n", h.store.Len())

	fmt.Fprintf(w, "# HELP phalanx_pending_verdicts Verdicts awaiting drain\n")
	fmt.Fprintf(w, "# TYPE phalanx_pending_verdicts gauge\n")
	fmt.Fprintf(w, "phalanx_pending_verdicts %d\n\n", h.sink.Len())

	fmt.Fprintf(w, "# HELP phalanx_subscribers Live anomaly subscribers\n")
	fmt.Fprintf(w, "# TYPE phalanx_subscribers gauge\n")
	fmt.Fprintf(w, "phalanx_subscribers %d\n\n", h.sink.Hub().Len())

	fmt.Fprintf(w, "# HELP phalanx_uptime_seconds Uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE phalanx_uptime_seconds gauge\n")
	fmt.Fprintf(w, "phalanx_uptime_seconds %d\n", int(time.Since(h.startTime).Seconds()))
}

// readJSON reads and unmarshals a bounded request body, writing the error
// response itself on failure.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxPayload))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		if err.Error() == "http: request body too large" {
			respondError(w, http.StatusRequestEntityTooLarge, "payload too large", requestID)
			return false
		}
		respondError(w, http.StatusBadRequest, "failed to read request body", requestID)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err), requestID)
		return false
	}
	return true
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, message, requestID string) {
	respondJSON(w, status, map[string]any{
		"error":      message,
		"request_id": requestID,
	})
}
