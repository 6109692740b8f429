package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"phalanx/internal/config"
	"phalanx/internal/scoring"
)

// Writer batches verdicts and flushes them to ClickHouse on size or
// interval. It doubles as a sink mirror.
type Writer struct {
	client *Client
	config config.BatchWriterConfig
	logger *slog.Logger

	buffer []*scoring.Verdict
	mu     sync.Mutex

	flushTimer *time.Timer
	closed     bool

	totalWritten uint64
	totalFailed  uint64
}

// NewWriter creates a batch writer and starts its flush timer.
func NewWriter(client *Client, cfg config.BatchWriterConfig, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		client: client,
		config: cfg,
		logger: logger,
		buffer: make([]*scoring.Verdict, 0, cfg.BatchSize),
	}
	w.flushTimer = time.AfterFunc(cfg.FlushInterval, w.timerFlush)
	return w
}

// Name implements the sink mirror interface.
func (w *Writer) Name() string { return "clickhouse" }

// Publish buffers one verdict, flushing when the batch fills.
func (w *Writer) Publish(ctx context.Context, v *scoring.Verdict) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &ArchiveError{Op: "publish", Err: errClosed}
	}

	w.buffer = append(w.buffer, v)
	if len(w.buffer) >= w.config.BatchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

func (w *Writer) timerFlush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if len(w.buffer) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := w.flushLocked(ctx); err != nil {
			w.logger.Error("archive timer flush failed", "error", err)
		}
		cancel()
	}
	w.flushTimer.Reset(w.config.FlushInterval)
}

// flushLocked writes the buffered verdicts with bounded retries. Callers
// must hold the mutex.
func (w *Writer) flushLocked(ctx context.Context) error {
	batch := w.buffer
	w.buffer = make([]*scoring.Verdict, 0, w.config.BatchSize)

	var err error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.config.RetryDelay)
		}
		if err = w.insert(ctx, batch); err == nil {
			atomic.AddUint64(&w.totalWritten, uint64(len(batch)))
			return nil
		}
	}

	atomic.AddUint64(&w.totalFailed, uint64(len(batch)))
	return &ArchiveError{Op: "flush", Err: err}
}

func (w *Writer) insert(ctx context.Context, verdicts []*scoring.Verdict) error {
	batch, err := w.client.conn.PrepareBatch(ctx, "INSERT INTO verdicts")
	if err != nil {
		return err
	}

	for _, v := range verdicts {
		eventJSON, err := json.Marshal(v.Event)
		if err != nil {
			return err
		}
		isAnomaly := uint8(0)
		if v.IsAnomaly {
			isAnomaly = 1
		}
		if err := batch.Append(
			v.ID,
			v.Event.UserID,
			v.Event.EventType,
			isAnomaly,
			v.Reason,
			v.Reasons,
			string(eventJSON),
			v.Timestamp,
		); err != nil {
			return err
		}
	}
	return batch.Send()
}

// Close flushes any remaining verdicts and stops the timer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.flushTimer.Stop()

	if len(w.buffer) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.flushLocked(ctx)
}

// Stats returns write counters for the health surface.
func (w *Writer) Stats() (written, failed uint64) {
	return atomic.LoadUint64(&w.totalWritten), atomic.LoadUint64(&w.totalFailed)
}
