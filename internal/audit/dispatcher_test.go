package audit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	if d := NewDispatcher(Config{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	var d *Dispatcher
	d.Emit(context.Background(), Event{Type: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Type: "sign_in"})
	}
	d.Close()
	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}
}

func TestDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// first event is picked up by the worker and blocks in the sink
	d.Emit(context.Background(), Event{Type: "a"})
	time.Sleep(20 * time.Millisecond)
	d.Emit(context.Background(), Event{Type: "b"})
	d.Emit(context.Background(), Event{Type: "c"})

	if d.Dropped() == 0 {
		t.Fatal("expected at least one dropped event")
	}
	close(sink.gate)
	d.Close()
}

type panicSink struct {
	delivered atomic.Int64
}

func (s *panicSink) Emit(_ context.Context, event Event) {
	if event.Type == "boom" {
		panic("sink failure")
	}
	s.delivered.Add(1)
}

func TestSinkPanicKeepsDraining(t *testing.T) {
	sink := &panicSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	d.Emit(context.Background(), Event{Type: "sign_in"})
	d.Emit(context.Background(), Event{Type: "boom"})
	d.Emit(context.Background(), Event{Type: "sign_up"})
	d.Close()

	if got := sink.delivered.Load(); got != 2 {
		t.Fatalf("expected 2 delivered events, got %d", got)
	}
	if got := d.SinkPanics(); got != 1 {
		t.Fatalf("expected 1 sink panic, got %d", got)
	}
}

func TestDropsCountedPerType(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	d.Emit(context.Background(), Event{Type: "sign_in"})
	time.Sleep(20 * time.Millisecond)
	// The worker is parked in the sink; the buffer holds one event.
	d.Emit(context.Background(), Event{Type: "sign_in"})
	d.Emit(context.Background(), Event{Type: "sign_in"})
	d.Emit(context.Background(), Event{Type: "password_change"})

	byType := d.DroppedByType()
	if byType["sign_in"] != 1 || byType["password_change"] != 1 {
		t.Fatalf("unexpected drops by type: %v", byType)
	}
	if d.Dropped() != 2 {
		t.Fatalf("expected 2 drops in total, got %d", d.Dropped())
	}

	byType["sign_in"] = 99
	if d.DroppedByType()["sign_in"] != 1 {
		t.Fatal("DroppedByType must return a copy")
	}
	close(sink.gate)
	d.Close()
}

func TestBlockingEmitCountsCancelledContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	d.Emit(context.Background(), Event{Type: "sign_in"})
	time.Sleep(20 * time.Millisecond)
	d.Emit(context.Background(), Event{Type: "sign_in"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Emit(ctx, Event{Type: "flags_update"})

	if got := d.DroppedByType()["flags_update"]; got != 1 {
		t.Fatalf("expected cancelled emit counted as a drop, got %d", got)
	}
	close(sink.gate)
	d.Close()
}
