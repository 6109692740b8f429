// Package sink records positive verdicts for the current reporting period and
// fans them out to live subscribers, the compliance collaborator, and optional
// mirrors.
package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"phalanx/internal/scoring"
)

// Forwarder sends a verdict to the compliance collaborator.
type Forwarder interface {
	Forward(ctx context.Context, v *scoring.Verdict) error
}

// Mirror publishes a verdict to an auxiliary destination (Redis list, Kafka
// topic, ClickHouse archive). Mirrors are best-effort.
type Mirror interface {
	Name() string
	Publish(ctx context.Context, v *scoring.Verdict) error
}

// Sink is the ordered in-memory anomaly log plus notification fan-out.
// Record never fails and never blocks on a slow collaborator: subscribers get
// bounded channels and the forward plus mirrors run off the caller's path.
type Sink struct {
	mu      sync.Mutex
	log     []*scoring.Verdict
	hub     *Hub
	forward Forwarder
	mirrors []Mirror
	logger  *slog.Logger

	// sideEffectTimeout bounds the outbound forward and mirror publishes.
	sideEffectTimeout time.Duration
}

// Option configures a Sink.
type Option func(*Sink)

// WithForwarder sets the compliance collaborator.
func WithForwarder(f Forwarder) Option {
	return func(s *Sink) { s.forward = f }
}

// WithMirror adds a best-effort mirror.
func WithMirror(m Mirror) Option {
	return func(s *Sink) { s.mirrors = append(s.mirrors, m) }
}

// WithSideEffectTimeout bounds outbound side effects per verdict.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(s *Sink) { s.sideEffectTimeout = d }
}

// New creates a Sink.
func New(logger *slog.Logger, opts ...Option) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		hub:               NewHub(logger),
		logger:            logger,
		sideEffectTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hub exposes the subscriber hub for the WebSocket surface.
func (s *Sink) Hub() *Hub {
	return s.hub
}

// Record appends the verdict to the log, notifies subscribers, and kicks off
// the best-effort forward and mirror publishes. It returns as soon as the
// verdict is durably in the log; side-effect failures are logged only.
func (s *Sink) Record(ctx context.Context, v *scoring.Verdict) {
	s.mu.Lock()
	s.log = append(s.log, v)
	s.mu.Unlock()

	s.hub.Broadcast(v)

	if s.forward == nil && len(s.mirrors) == 0 {
		return
	}
	go s.sideEffects(v)
}

func (s *Sink) sideEffects(v *scoring.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sideEffectTimeout)
	defer cancel()

	if s.forward != nil {
		if err := s.forward.Forward(ctx, v); err != nil {
			s.logger.Warn("compliance forward failed", "verdict_id", v.ID, "error", err)
		}
	}
	for _, m := range s.mirrors {
		if err := m.Publish(ctx, v); err != nil {
			s.logger.Warn("mirror publish failed", "mirror", m.Name(), "verdict_id", v.ID, "error", err)
		}
	}
}

// Snapshot returns a copy of the log without clearing it.
func (s *Sink) Snapshot() []*scoring.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*scoring.Verdict, len(s.log))
	copy(out, s.log)
	return out
}

// Drain atomically returns and clears the log. A verdict recorded
// concurrently lands either in this drain or the next, never both, never
// neither.
func (s *Sink) Drain() []*scoring.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.log
	s.log = nil
	return out
}

// Len returns the number of recorded verdicts.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}
