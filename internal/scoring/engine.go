// Package scoring computes anomaly verdicts for incoming events by combining
// a novelty check against per-user history with a declarative policy pass.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"phalanx/internal/history"
	"phalanx/internal/policy"
	"phalanx/internal/schema"

	"github.com/google/uuid"
)

// Verdict is the outcome of evaluating one event.
type Verdict struct {
	ID        uuid.UUID     `json:"id"`
	IsAnomaly bool          `json:"is_anomaly"`
	Reason    string        `json:"reason,omitempty"`
	Reasons   []string      `json:"reasons,omitempty"`
	Event     *schema.Event `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink receives every positive verdict.
type Sink interface {
	Record(ctx context.Context, v *Verdict)
}

// EngineConfig configures the scoring engine.
type EngineConfig struct {
	// NoveltyK is how many nearest neighbors the novelty check retrieves.
	NoveltyK int
	// NoveltyThreshold is the mean-distance cutoff above which an event is
	// considered to deviate from the user's history.
	NoveltyThreshold float64
	// AmountField, when present in the event payload as a number, enables the
	// 10x-average amount check against the retrieved neighbors.
	AmountField string
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		NoveltyK:         5,
		NoveltyThreshold: 0.4,
		AmountField:      "amount",
	}
}

// Engine evaluates events. It owns no state of its own; the stores are
// injected so tests can exercise each path in isolation.
type Engine struct {
	config   EngineConfig
	history  *history.Store
	policies *policy.Store
	sink     Sink
	logger   *slog.Logger
}

// NewEngine creates a scoring engine. sink may be nil, in which case positive
// verdicts are only returned, not recorded.
func NewEngine(config EngineConfig, hist *history.Store, policies *policy.Store, sink Sink, logger *slog.Logger) *Engine {
	if config.NoveltyK <= 0 {
		config.NoveltyK = 5
	}
	if config.NoveltyThreshold <= 0 {
		config.NoveltyThreshold = 0.4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		config:   config,
		history:  hist,
		policies: policies,
		sink:     sink,
		logger:   logger,
	}
}

// Evaluate computes the verdict for one event. Reasons accumulate in
// evaluation order; Reason carries the last one for wire compatibility with
// older consumers that expect a single string. The checked event is never
// inserted into history. On a positive verdict the sink is notified before
// returning.
func (e *Engine) Evaluate(ctx context.Context, ev *schema.Event) *Verdict {
	v := &Verdict{
		ID:        uuid.New(),
		Event:     ev.Clone(),
		Timestamp: time.Now().UTC(),
	}

	e.noveltyCheck(v, ev)
	e.policyCheck(v, ev)

	if len(v.Reasons) > 0 {
		v.Reason = v.Reasons[len(v.Reasons)-1]
	}

	if v.IsAnomaly && e.sink != nil {
		e.sink.Record(ctx, v)
	}
	return v
}

// noveltyCheck retrieves the nearest neighbors for the event's user and type
// and flags the event when there is no baseline or the mean distance exceeds
// the threshold. A history backend failure degrades to a logged skip; the
// policy pass still runs.
func (e *Engine) noveltyCheck(v *Verdict, ev *schema.Event) {
	neighbors, err := e.history.QueryNearest(ev, e.config.NoveltyK, history.Filter{
		UserID:    ev.UserID,
		EventType: ev.EventType,
	})
	if err != nil {
		e.logger.Warn("novelty check skipped",
			"user_id", ev.UserID,
			"event_type", ev.EventType,
			"error", err)
		return
	}

	if len(neighbors) == 0 {
		v.IsAnomaly = true
		v.Reasons = append(v.Reasons, "No historical data found for this user.")
		return
	}

	sum := 0.0
	for _, n := range neighbors {
		sum += n.Distance
	}
	mean := sum / float64(len(neighbors))
	if mean <= e.config.NoveltyThreshold {
		return
	}

	v.IsAnomaly = true
	if reason, ok := e.amountReason(ev, neighbors); ok {
		v.Reasons = append(v.Reasons, reason)
	} else {
		v.Reasons = append(v.Reasons, "Event deviates significantly from user's past behavior.")
	}
}

// amountReason returns the more specific deviation reason when the event
// carries a numeric amount exceeding 10x the neighbors' average amount.
func (e *Engine) amountReason(ev *schema.Event, neighbors []history.Neighbor) (string, bool) {
	if e.config.AmountField == "" {
		return "", false
	}
	amount, ok := numericField(ev, e.config.AmountField)
	if !ok {
		return "", false
	}

	sum, count := 0.0, 0
	for _, n := range neighbors {
		if past, ok := numericField(n.Event, e.config.AmountField); ok {
			sum += past
			count++
		}
	}
	if count == 0 {
		return "", false
	}
	avg := sum / float64(count)
	if avg <= 0 || amount <= avg*10 {
		return "", false
	}
	return fmt.Sprintf("Amount %s is >10x the user's average of %.2f.", formatAmount(amount), avg), true
}

// policyCheck runs every policy whose data_type matches the event type. Each
// rule is evaluated independently; every true comparison appends a reason.
func (e *Engine) policyCheck(v *Verdict, ev *schema.Event) {
	if e.policies == nil {
		return
	}

	matched, err := e.policies.ByDataType(ev.EventType)
	if err != nil {
		e.logger.Warn("policy check skipped",
			"event_type", ev.EventType,
			"error", err)
		return
	}

	for _, p := range matched {
		for _, r := range p.Rules {
			value, ok := ev.Data.Get(r.Field)
			if !ok {
				continue
			}
			if !r.Matches(value) {
				continue
			}
			v.IsAnomaly = true
			v.Reasons = append(v.Reasons, fmt.Sprintf("Policy Violated: %s - %s (%v) %s %v.",
				p.Name, r.Field, value, r.Operator, r.Value))
		}
	}
}

func numericField(ev *schema.Event, field string) (float64, bool) {
	raw, ok := ev.Data.Get(field)
	if !ok {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		// Some producers send amounts as strings; coerce the same way rule
		// comparisons do.
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// formatAmount renders an amount the way the payload carried it: integral
// values without a trailing ".0".
func formatAmount(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
