// Package archive persists verdicts to ClickHouse for long-term analysis.
// The archive is optional; the decision engine works without it.
package archive

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"phalanx/internal/config"
)

var errClosed = errors.New("writer is closed")

// ArchiveError wraps a ClickHouse failure.
type ArchiveError struct {
	Op  string
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Client wraps the ClickHouse connection.
type Client struct {
	conn   driver.Conn
	config config.ClickHouseConfig
}

// NewClient opens and verifies a ClickHouse connection.
func NewClient(cfg config.ClickHouseConfig) (*Client, error) {
	opts := &clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionZSTD,
		},
		DialTimeout:     cfg.DialTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	if cfg.TLSEnabled {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, &ArchiveError{Op: "open", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, &ArchiveError{Op: "ping", Err: err}
	}

	return &Client{conn: conn, config: cfg}, nil
}

// Ping checks if the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

const verdictsTable = `
CREATE TABLE IF NOT EXISTS verdicts (
    id          UUID,
    user_id     String,
    event_type  String,
    is_anomaly  UInt8,
    reason      String,
    reasons     Array(String),
    event       String,
    detected_at DateTime64(3, 'UTC')
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(detected_at)
ORDER BY (user_id, detected_at)
TTL toDateTime(detected_at) + INTERVAL 1 YEAR
`

// EnsureSchema creates the verdicts table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, verdictsTable); err != nil {
		return &ArchiveError{Op: "ensure schema", Err: err}
	}
	return nil
}
