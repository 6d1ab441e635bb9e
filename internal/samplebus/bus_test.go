package samplebus

import (
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/events"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/frame"
	"github.com/e7canasta/orion-care-sensor/modules/framelatency/internal/reporter"
)

// TestBasicPublishSubscribe verifies basic functionality.
func TestBasicPublishSubscribe(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ch := make(chan Sample, 10)
	if err := bus.Subscribe("test", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	bus.Publish(Sample{Kind: KindFrame, Frame: frame.Info{SequenceNumber: 7}})

	select {
	case got := <-ch:
		if got.Frame.SequenceNumber != 7 {
			t.Errorf("Expected sequence 7, got %d", got.Frame.SequenceNumber)
		}
		if got.Seq != 1 {
			t.Errorf("Expected bus seq 1, got %d", got.Seq)
		}
		if got.Timestamp.IsZero() {
			t.Errorf("Expected publish timestamp")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for sample")
	}
}

// TestNonBlockingPublish verifies Publish never blocks on a full channel.
func TestNonBlockingPublish(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ch := make(chan Sample, 1)
	bus.Subscribe("slow", ch)

	done := make(chan bool)
	go func() {
		bus.Publish(Sample{})
		bus.Publish(Sample{})
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked (should be non-blocking)")
	}

	if got := (<-ch).Seq; got != 1 {
		t.Errorf("Expected seq 1, got %d", got)
	}

	stats := bus.Stats()
	sub := stats.Subscribers["slow"]
	if sub.Sent != 1 || sub.Dropped != 1 {
		t.Errorf("Expected 1 sent and 1 dropped, got %+v", sub)
	}
	if rate := stats.DropRate(); rate != 0.5 {
		t.Errorf("Expected drop rate 0.5, got %f", rate)
	}
}

// TestStatsConservation verifies sent + dropped == published × subscribers.
func TestStatsConservation(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	bus.Subscribe("big", make(chan Sample, 10))
	bus.Subscribe("small", make(chan Sample, 1))
	rx, _ := bus.SubscribeDropOld("latest")
	defer rx.Close()

	for i := 0; i < 5; i++ {
		bus.Publish(Sample{})
	}

	stats := bus.Stats()
	expected := stats.TotalPublished * uint64(len(stats.Subscribers))
	if actual := stats.TotalSent + stats.TotalDropped; actual != expected {
		t.Errorf("Conservation law violated: %d sent + %d dropped != %d",
			stats.TotalSent, stats.TotalDropped, expected)
	}
	if stats.Subscribers["latest"].Sent != 5 {
		t.Errorf("Expected DropOld subscriber to accept all 5, got %d", stats.Subscribers["latest"].Sent)
	}
	if stats.Subscribers["small"].Dropped != 4 {
		t.Errorf("Expected 4 drops for small buffer, got %d", stats.Subscribers["small"].Dropped)
	}
}

// TestDropOldKeepsLatest verifies the DropOld receiver only holds the last
// sample.
func TestDropOldKeepsLatest(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	rx, err := bus.SubscribeDropOld("latest")
	if err != nil {
		t.Fatalf("SubscribeDropOld failed: %v", err)
	}

	if _, ok := rx.TryReceive(); ok {
		t.Fatalf("Expected empty receiver")
	}
	for i := 0; i < 3; i++ {
		bus.Publish(Sample{})
	}

	got, ok := rx.TryReceive()
	if !ok || got.Seq != 3 {
		t.Errorf("Expected latest seq 3, got %d (ok=%v)", got.Seq, ok)
	}
	if _, ok := rx.TryReceive(); ok {
		t.Errorf("Expected sample consumed")
	}
}

// TestReceiveUnblocksOnClose verifies a blocked Receive returns when the bus
// closes.
func TestReceiveUnblocksOnClose(t *testing.T) {
	bus := New(nil)
	rx, _ := bus.SubscribeDropOld("latest")

	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	go func() {
		defer wg.Done()
		_, ok = rx.Receive()
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Close()
	wg.Wait()

	if ok {
		t.Errorf("Expected Receive to report closed")
	}
}

// TestSubscriptionErrors verifies error handling.
func TestSubscriptionErrors(t *testing.T) {
	bus := New(nil)

	if err := bus.Subscribe("nil", nil); err != ErrNilChannel {
		t.Errorf("Expected ErrNilChannel, got %v", err)
	}
	bus.Subscribe("a", make(chan Sample, 1))
	if err := bus.Subscribe("a", make(chan Sample, 1)); err != ErrSubscriberExists {
		t.Errorf("Expected ErrSubscriberExists, got %v", err)
	}
	if _, err := bus.SubscribeDropOld("a"); err != ErrSubscriberExists {
		t.Errorf("Expected ErrSubscriberExists, got %v", err)
	}
	if err := bus.Unsubscribe("missing"); err != ErrSubscriberNotFound {
		t.Errorf("Expected ErrSubscriberNotFound, got %v", err)
	}
	if err := bus.Unsubscribe("a"); err != nil {
		t.Errorf("Unsubscribe failed: %v", err)
	}

	bus.Close()
	if err := bus.Subscribe("b", make(chan Sample, 1)); err != ErrBusClosed {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Expected idempotent Close, got %v", err)
	}

	// Publishing after close is a no-op.
	bus.Publish(Sample{})
	if got := bus.Stats().TotalPublished; got != 0 {
		t.Errorf("Expected 0 published after close, got %d", got)
	}
}

// TestConcurrentPublish verifies publishing from many goroutines.
func TestConcurrentPublish(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	ch := make(chan Sample, 1000)
	bus.Subscribe("sink", ch)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				bus.Publish(Sample{})
			}
		}()
	}
	wg.Wait()

	stats := bus.Stats()
	if stats.TotalPublished != 500 {
		t.Errorf("Expected 500 published, got %d", stats.TotalPublished)
	}
	if stats.Subscribers["sink"].Sent != 500 {
		t.Errorf("Expected 500 sent, got %d", stats.Subscribers["sink"].Sent)
	}
}

// TestObserverPublishesSamples verifies the reporter observer adapter.
func TestObserverPublishesSamples(t *testing.T) {
	bus := New(nil)
	defer bus.Close()
	ch := make(chan Sample, 4)
	bus.Subscribe("obs", ch)

	obs := &Observer{Bus: bus}
	args := frame.Args{ID: frame.ID{SourceID: 1, SequenceNumber: 3}}
	obs.OnFrameFinalized(args, frame.Info{FinalState: frame.Dropped})
	obs.OnEventLatencies(args, nil)
	obs.OnEventLatencies(args, []reporter.EventLatencyData{
		{Type: events.KeyPressed, Total: 5 * time.Millisecond},
	})

	if got := len(ch); got != 2 {
		t.Fatalf("Expected 2 samples (empty latencies skipped), got %d", got)
	}
	first, second := <-ch, <-ch
	if first.Kind != KindFrame || first.Frame.FinalState != frame.Dropped {
		t.Errorf("Expected dropped frame sample, got %+v", first)
	}
	if second.Kind != KindEventLatency || len(second.Events) != 1 {
		t.Errorf("Expected one event latency, got %+v", second)
	}
	if second.Args.ID != args.ID {
		t.Errorf("Expected args %s, got %s", args.ID, second.Args.ID)
	}
}

// TestParseDropPolicy verifies config names.
func TestParseDropPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want DropPolicy
		ok   bool
	}{
		{"", DropNew, true},
		{"drop_new", DropNew, true},
		{"drop_old", DropOld, true},
		{"latest", DropNew, false},
	}
	for _, tt := range tests {
		got, ok := ParseDropPolicy(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDropPolicy(%q): expected (%v, %v), got (%v, %v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}
