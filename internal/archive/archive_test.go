package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"phalanx/internal/config"
	"phalanx/internal/scoring"
)

func TestArchiveError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ArchiveError{Op: "ping", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("ArchiveError must unwrap to the inner error")
	}
	if err.Error() != "archive ping: connection refused" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestWriter_PublishAfterClose(t *testing.T) {
	cfg := config.BatchWriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		MaxRetries:    0,
		RetryDelay:    time.Millisecond,
	}
	w := NewWriter(&Client{}, cfg, nil)

	// Nothing buffered, so Close never reaches the connection.
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	err := w.Publish(context.Background(), &scoring.Verdict{})
	var ae *ArchiveError
	if !errors.As(err, &ae) {
		t.Fatalf("expected ArchiveError after close, got %v", err)
	}
}
