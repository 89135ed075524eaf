package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestBasicPublishSubscribe verifies basic functionality.
func TestBasicPublishSubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch := make(chan Sample, 10)
	if err := bus.Subscribe("test", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	sample := Sample{Seq: 1, Degrees: 45}
	bus.Publish(sample)

	select {
	case received := <-ch:
		if received.Seq != sample.Seq || received.Degrees != sample.Degrees {
			t.Errorf("Expected %+v, got %+v", sample, received)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for sample")
	}
}

// TestNonBlockingPublish verifies Publish never blocks on a full subscriber.
func TestNonBlockingPublish(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch := make(chan Sample, 1)
	if err := bus.Subscribe("slow", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		bus.Publish(Sample{Seq: 1})
		bus.Publish(Sample{Seq: 2})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked (should be non-blocking)")
	}

	if received := <-ch; received.Seq != 1 {
		t.Errorf("Expected seq 1, got %d", received.Seq)
	}

	sub := bus.Stats().Subscribers["slow"]
	if sub.Sent != 1 {
		t.Errorf("Expected 1 sent, got %d", sub.Sent)
	}
	if sub.Dropped != 1 {
		t.Errorf("Expected 1 dropped, got %d", sub.Dropped)
	}
}

// TestStatsConservation verifies sent + dropped == published × subscribers.
func TestStatsConservation(t *testing.T) {
	bus := New()
	defer bus.Close()

	bus.Subscribe("a", make(chan Sample, 10))
	bus.Subscribe("b", make(chan Sample, 1))
	bus.Subscribe("c", make(chan Sample, 3))

	for i := uint64(1); i <= 5; i++ {
		bus.Publish(Sample{Seq: i})
	}

	stats := bus.Stats()
	if stats.TotalPublished != 5 {
		t.Errorf("Expected 5 published, got %d", stats.TotalPublished)
	}

	expected := stats.TotalPublished * uint64(len(stats.Subscribers))
	if got := stats.TotalSent + stats.TotalDropped; got != expected {
		t.Errorf("Conservation violated: %d sent + %d dropped != %d",
			stats.TotalSent, stats.TotalDropped, expected)
	}
	if stats.Subscribers["b"].Dropped != 4 {
		t.Errorf("Expected b to drop 4, got %d", stats.Subscribers["b"].Dropped)
	}
}

// TestZeroSubscribers verifies publishing with nobody listening is harmless.
func TestZeroSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()

	bus.Publish(Sample{Seq: 1})

	stats := bus.Stats()
	if stats.TotalPublished != 1 {
		t.Errorf("Expected 1 published, got %d", stats.TotalPublished)
	}
	if stats.TotalSent != 0 || stats.TotalDropped != 0 {
		t.Errorf("Expected no deliveries, got sent=%d dropped=%d", stats.TotalSent, stats.TotalDropped)
	}
}

func TestSubscribeErrors(t *testing.T) {
	bus := New()
	defer bus.Close()

	if err := bus.Subscribe("nil", nil); !errors.Is(err, ErrNilChannel) {
		t.Errorf("Expected ErrNilChannel, got %v", err)
	}

	if err := bus.Subscribe("dup", make(chan Sample, 1)); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := bus.Subscribe("dup", make(chan Sample, 1)); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("Expected ErrSubscriberExists, got %v", err)
	}
	if _, err := bus.SubscribeLatest("dup"); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("Expected ErrSubscriberExists, got %v", err)
	}
	if err := bus.Unsubscribe("missing"); !errors.Is(err, ErrSubscriberNotFound) {
		t.Errorf("Expected ErrSubscriberNotFound, got %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch := make(chan Sample, 10)
	bus.Subscribe("gone", ch)
	bus.Publish(Sample{Seq: 1})

	if err := bus.Unsubscribe("gone"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	bus.Publish(Sample{Seq: 2})

	if len(ch) != 1 {
		t.Errorf("Expected 1 buffered sample after unsubscribe, got %d", len(ch))
	}
	if _, ok := bus.Stats().Subscribers["gone"]; ok {
		t.Error("Unsubscribed id still present in stats")
	}
}

func TestClosedBus(t *testing.T) {
	bus := New()
	bus.Close()
	bus.Close() // idempotent

	if err := bus.Subscribe("late", make(chan Sample, 1)); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}
	if _, err := bus.SubscribeLatest("late"); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}
	if err := bus.Unsubscribe("late"); !errors.Is(err, ErrBusClosed) {
		t.Errorf("Expected ErrBusClosed, got %v", err)
	}

	// no panic, no count
	bus.Publish(Sample{Seq: 1})
	if got := bus.Stats().TotalPublished; got != 0 {
		t.Errorf("Expected 0 published after close, got %d", got)
	}
}

func TestLatestReceiver(t *testing.T) {
	bus := New()
	defer bus.Close()

	rx, err := bus.SubscribeLatest("status")
	if err != nil {
		t.Fatalf("SubscribeLatest failed: %v", err)
	}

	if _, ok := rx.TryReceive(); ok {
		t.Error("TryReceive returned a sample before any publish")
	}

	for i := uint64(1); i <= 3; i++ {
		bus.Publish(Sample{Seq: i, Degrees: float64(i * 10)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := rx.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if got.Seq != 3 {
		t.Errorf("Expected latest seq 3, got %d", got.Seq)
	}

	sub := bus.Stats().Subscribers["status"]
	if sub.Policy != DropOld {
		t.Errorf("Expected DropOld policy, got %v", sub.Policy)
	}
	if sub.Sent != 3 || sub.Dropped != 2 {
		t.Errorf("Expected sent=3 dropped=2, got sent=%d dropped=%d", sub.Sent, sub.Dropped)
	}

	// consumed: Receive blocks until the next publish
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, err := rx.Receive(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}

	// TryReceive still exposes the last value without consuming
	if last, ok := rx.TryReceive(); !ok || last.Seq != 3 {
		t.Errorf("TryReceive = %+v, %v; want seq 3", last, ok)
	}
}

func TestLatestReceiverWakesOnPublish(t *testing.T) {
	bus := New()
	defer bus.Close()

	rx, _ := bus.SubscribeLatest("waiter")

	result := make(chan Sample, 1)
	go func() {
		s, err := rx.Receive(context.Background())
		if err == nil {
			result <- s
		}
		close(result)
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Publish(Sample{Seq: 42})

	select {
	case s := <-result:
		if s.Seq != 42 {
			t.Errorf("Expected seq 42, got %d", s.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not wake on publish")
	}
}

func TestLatestReceiverClosedOnUnsubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	rx, _ := bus.SubscribeLatest("closing")

	errCh := make(chan error, 1)
	go func() {
		_, err := rx.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	if err := bus.Unsubscribe("closing"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrReceiverClosed) {
			t.Errorf("Expected ErrReceiverClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after unsubscribe")
	}
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(Sample{Seq: uint64(j)})
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sub-%d", n)
			bus.Subscribe(id, make(chan Sample, 4))
			bus.Unsubscribe(id)
		}(i)
	}

	wg.Wait()

	if got := bus.Stats().TotalPublished; got != 400 {
		t.Errorf("Expected 400 published, got %d", got)
	}
}
