package queue

import (
	"errors"
	"sync"
	"testing"

	"phalanx/internal/schema"
)

func queueEvent(userID string) *schema.Event {
	return &schema.Event{UserID: userID, Timestamp: "2026-08-01T10:00:00Z", EventType: "data_record"}
}

func TestRingBuffer_FIFO(t *testing.T) {
	rb := NewRingBuffer(4)

	for _, id := range []string{"a", "b", "c"} {
		if err := rb.Push(queueEvent(id)); err != nil {
			t.Fatalf("push %s: %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		ev, err := rb.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if ev.UserID != want {
			t.Errorf("popped %s, want %s", ev.UserID, want)
		}
	}

	if _, err := rb.Pop(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("empty pop err = %v", err)
	}
}

func TestRingBuffer_FullRejects(t *testing.T) {
	rb := NewRingBuffer(2)

	rb.Push(queueEvent("a"))
	rb.Push(queueEvent("b"))
	if err := rb.Push(queueEvent("c")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("full push err = %v", err)
	}

	m := rb.Metrics()
	if m.Dropped != 1 || m.Pushed != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	rb := NewRingBuffer(2)

	rb.Push(queueEvent("a"))
	rb.Pop()
	rb.Push(queueEvent("b"))
	rb.Push(queueEvent("c"))

	ev, _ := rb.Pop()
	if ev.UserID != "b" {
		t.Errorf("popped %s, want b", ev.UserID)
	}
	ev, _ = rb.Pop()
	if ev.UserID != "c" {
		t.Errorf("popped %s, want c", ev.UserID)
	}
}

func TestRingBuffer_PopBlockingUnblocksOnClose(t *testing.T) {
	rb := NewRingBuffer(2)

	var wg sync.WaitGroup
	wg.Add(1)
	var popErr error
	go func() {
		defer wg.Done()
		_, popErr = rb.PopBlocking()
	}()

	rb.Close()
	wg.Wait()
	if !errors.Is(popErr, ErrQueueClosed) {
		t.Errorf("blocked pop err after close = %v", popErr)
	}
}

func TestRingBuffer_CloseDrainsBuffered(t *testing.T) {
	rb := NewRingBuffer(2)
	rb.Push(queueEvent("a"))
	rb.Close()

	if err := rb.Push(queueEvent("b")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("push after close err = %v", err)
	}
	ev, err := rb.PopBlocking()
	if err != nil || ev.UserID != "a" {
		t.Errorf("buffered event not drained: %v, %v", ev, err)
	}
	if _, err := rb.PopBlocking(); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("drained queue err = %v", err)
	}
}
