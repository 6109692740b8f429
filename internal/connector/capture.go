package connector

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"phalanx/internal/queue"
	"phalanx/internal/schema"
)

// capturedQueries is the canned statement sequence the simulator replays.
// The last one is the kind of thing the detection side should flag.
var capturedQueries = []string{
	"SELECT * FROM users WHERE id = 1",
	"SELECT * FROM products WHERE category = 'electronics'",
	"INSERT INTO orders (customer_id, product_id, quantity) VALUES (1, 2, 3)",
	"DELETE FROM customers WHERE id = 1; DROP TABLE users;",
}

// Capture simulates query capture for a connected data source. Captured
// statements flow through a bounded ring buffer to a forwarding worker that
// submits them to the detection service as data_record events.
type Capture struct {
	detectURL string
	interval  time.Duration
	buf       *queue.RingBuffer
	client    *http.Client
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewCapture creates a capture pipeline targeting the detection service.
func NewCapture(detectURL string, interval time.Duration, queueSize int, logger *slog.Logger) *Capture {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		detectURL: detectURL,
		interval:  interval,
		buf:       queue.NewRingBuffer(queueSize),
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// Start begins one replay of the captured sequence for the given connector.
// The forwarding worker is started on first use and shared by all replays.
func (c *Capture) Start(ctx context.Context, conn Connector) {
	c.mu.Lock()
	if !c.running {
		c.running = true
		c.wg.Add(1)
		go c.forwardLoop()
	}
	c.mu.Unlock()

	c.wg.Add(1)
	go c.produce(ctx, conn)
}

func (c *Capture) produce(ctx context.Context, conn Connector) {
	defer c.wg.Done()

	for i, q := range capturedQueries {
		if i > 0 {
			select {
			case <-time.After(c.interval):
			case <-ctx.Done():
				return
			}
		}

		ev := &schema.Event{
			UserID:    conn.ID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			EventType: schema.EventTypeDataRecord,
		}
		ev.Data = schema.NewFields()
		ev.Data.Set("query", q)
		ev.Data.Set("source", conn.Type)

		if err := c.buf.Push(ev); err != nil {
			c.logger.Warn("captured query dropped", "connector_id", conn.ID, "error", err)
		}
	}
}

func (c *Capture) forwardLoop() {
	defer c.wg.Done()

	for {
		ev, err := c.buf.PopBlocking()
		if err != nil {
			return
		}
		if err := c.forward(ev); err != nil {
			c.logger.Warn("query forward failed", "user_id", ev.UserID, "error", err)
		}
	}
}

// forward submits one captured event for evaluation. The detection service
// owns recording and compliance reporting; the response is only logged.
func (c *Capture) forward(ev *schema.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	resp, err := c.client.Post(c.detectURL+"/v1/check-event", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("check-event returned status %d", resp.StatusCode)
	}

	var verdict struct {
		IsAnomaly bool   `json:"is_anomaly"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return err
	}
	if verdict.IsAnomaly {
		c.logger.Info("captured query flagged", "user_id", ev.UserID, "reason", verdict.Reason)
	}
	return nil
}

// Close stops the forwarding worker after the buffer drains.
func (c *Capture) Close() {
	c.buf.Close()
	c.wg.Wait()
}

// Metrics exposes the capture queue counters.
func (c *Capture) Metrics() queue.Metrics {
	return c.buf.Metrics()
}

// Ping verifies live connectivity for PostgreSQL connectors. Other types
// report success without a probe; the simulator does not speak their wire
// protocols.
func Ping(ctx context.Context, conn Connector) error {
	if conn.Type != "postgresql" {
		return nil
	}

	db, err := sql.Open("postgres", conn.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	return nil
}
