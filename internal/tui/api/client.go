// Package api provides the HTTP client the TUI uses to talk to the
// detection and policy services.
package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client handles API communication with the platform backends.
type Client struct {
	detectURL  string
	policyURL  string
	httpClient *http.Client
}

// NewClient creates a new API client. policyURL may equal detectURL when the
// policy surface is mounted on the detection service.
func NewClient(detectURL, policyURL string) *Client {
	if policyURL == "" {
		policyURL = detectURL
	}
	return &Client{
		detectURL: detectURL,
		policyURL: policyURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// HealthResponse represents the detection service health check.
type HealthResponse struct {
	Status          string `json:"status"`
	HistoryEntries  int    `json:"history_entries"`
	PendingVerdicts int    `json:"pending_verdicts"`
	Subscribers     int    `json:"subscribers"`
	UptimeSeconds   int    `json:"uptime_seconds"`
}

// Verdict is one recorded anomaly verdict.
type Verdict struct {
	ID        string    `json:"id"`
	IsAnomaly bool      `json:"is_anomaly"`
	Reason    string    `json:"reason"`
	Reasons   []string  `json:"reasons"`
	Event     *Event    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// Event carries the fields of the offending event the TUI displays.
type Event struct {
	UserID    string `json:"user_id"`
	EventType string `json:"event_type"`
}

// AnomaliesResponse is the anomaly feed payload.
type AnomaliesResponse struct {
	Anomalies []Verdict `json:"anomalies"`
	Total     int       `json:"total"`
}

// Policy is one behavioral policy definition.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DataType    string `json:"data_type"`
	Rules       []Rule `json:"rules"`
}

// Rule is one field condition inside a policy.
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// PoliciesResponse is the policy list payload.
type PoliciesResponse struct {
	Policies []Policy `json:"policies"`
	Total    int      `json:"total"`
}

// Stats represents the combined dashboard statistics.
type Stats struct {
	Healthy         bool
	HealthStatus    string
	StatusReason    string
	HistoryEntries  int
	PendingVerdicts int
	Subscribers     int
	EventsChecked   int64
	AnomaliesTotal  int64
	Uptime          string
	UptimeSeconds   int
}

// GetHealth fetches the detection service health status.
func (c *Client) GetHealth() (*HealthResponse, error) {
	resp, err := c.httpClient.Get(c.detectURL + "/health")
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &health, nil
}

// GetAnomalies fetches the recorded anomaly verdicts without clearing them.
func (c *Client) GetAnomalies() (*AnomaliesResponse, error) {
	resp, err := c.httpClient.Get(c.detectURL + "/v1/anomalies")
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	var anomalies AnomaliesResponse
	if err := json.NewDecoder(resp.Body).Decode(&anomalies); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &anomalies, nil
}

// GetPolicies fetches the policy list.
func (c *Client) GetPolicies() (*PoliciesResponse, error) {
	resp, err := c.httpClient.Get(c.policyURL + "/v1/policies")
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer resp.Body.Close()

	var policies PoliciesResponse
	if err := json.NewDecoder(resp.Body).Decode(&policies); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &policies, nil
}

// GetStats fetches combined stats for the dashboard.
func (c *Client) GetStats() (*Stats, error) {
	health, healthErr := c.GetHealth()

	stats := &Stats{
		Healthy:      false,
		HealthStatus: "unknown",
		StatusReason: "Unable to connect to detection service",
	}

	if healthErr != nil {
		stats.StatusReason = healthErr.Error()
		return stats, nil
	}

	stats.HealthStatus = health.Status
	stats.Healthy = health.Status == "healthy"
	stats.HistoryEntries = health.HistoryEntries
	stats.PendingVerdicts = health.PendingVerdicts
	stats.Subscribers = health.Subscribers
	stats.UptimeSeconds = health.UptimeSeconds
	stats.Uptime = formatUptime(float64(health.UptimeSeconds))
	if stats.Healthy {
		stats.StatusReason = "All systems operational"
	}

	// Counters come from the Prometheus endpoint.
	resp, err := c.httpClient.Get(c.detectURL + "/metrics")
	if err == nil {
		defer resp.Body.Close()
		buf := new(strings.Builder)
		buf.Grow(4096)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			buf.WriteString(scanner.Text())
			buf.WriteString("\n")
		}
		metrics := c.parsePrometheusMetrics(buf.String())

		if checked, ok := metrics["phalanx_events_checked_total"]; ok {
			stats.EventsChecked = int64(checked)
		}
		if anomalies, ok := metrics["phalanx_anomalies_total"]; ok {
			stats.AnomaliesTotal = int64(anomalies)
		}
	}

	return stats, nil
}

// parsePrometheusMetrics parses Prometheus-format metrics
func (c *Client) parsePrometheusMetrics(body string) map[string]float64 {
	metrics := make(map[string]float64)
	scanner := bufio.NewScanner(strings.NewReader(body))

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 {
			if val, err := strconv.ParseFloat(parts[1], 64); err == nil {
				metrics[parts[0]] = val
			}
		}
	}
	return metrics
}

func formatUptime(seconds float64) string {
	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
