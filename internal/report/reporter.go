package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"phalanx/internal/scoring"
)

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Reporter periodically drains the detection service's anomaly log and
// writes a summary report for the period.
type Reporter struct {
	detectURL string
	store     *Store
	uploader  *Uploader
	interval  time.Duration
	client    *http.Client
	logger    *slog.Logger
}

// NewReporter creates a periodic reporter against the given detection
// service base URL.
func NewReporter(detectURL string, store *Store, uploader *Uploader, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		detectURL: detectURL,
		store:     store,
		uploader:  uploader,
		interval:  interval,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

// Run drains and reports on each tick until the context is canceled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("periodic reporter started", "interval", r.interval, "detect_url", r.detectURL)

	for {
		select {
		case <-ticker.C:
			if err := r.ReportOnce(ctx); err != nil {
				r.logger.Error("reporting cycle failed", "error", err)
			}
		case <-ctx.Done():
			r.logger.Info("periodic reporter stopped")
			return
		}
	}
}

// ReportOnce performs a single drain-and-report cycle.
func (r *Reporter) ReportOnce(ctx context.Context) error {
	verdicts, err := r.drain(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rep, err := r.store.Save(BuildMonthly(verdicts, now), now)
	if err != nil {
		return err
	}
	r.logger.Info("period summary generated", "report", rep.Name, "incidents", len(verdicts))

	if r.uploader != nil {
		content, err := r.store.Read(rep.Name)
		if err != nil {
			return err
		}
		if err := r.uploader.Upload(ctx, rep.Name, content, now); err != nil {
			r.logger.Warn("summary archival failed", "report", rep.Name, "error", err)
		}
	}
	return nil
}

// drain pulls and clears the detection service's recorded verdicts.
func (r *Reporter) drain(ctx context.Context) ([]*scoring.Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", r.detectURL+"/v1/anomalies/drain", nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("drain request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("drain returned status %d", resp.StatusCode)
	}

	var payload struct {
		Anomalies []*scoring.Verdict `json:"anomalies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode drain response: %w", err)
	}
	return payload.Anomalies, nil
}
