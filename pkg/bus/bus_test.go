package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBus_PublishReachesSubscriber(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	received := make(chan any, 1)
	b.Subscribe("fetch.applied", func(payload any) {
		received <- payload
	})

	b.Publish("fetch.applied", 42)

	select {
	case got := <-received:
		if got != 42 {
			t.Errorf("Payload = %v, want 42", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Handler was not invoked")
	}
}

func TestBus_AllSubscribersReceive(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	var wg sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		b.Subscribe("refresh", func(payload any) {
			count.Add(1)
			wg.Done()
		})
	}

	b.Publish("refresh", nil)
	wg.Wait()

	if got := count.Load(); got != 3 {
		t.Errorf("Expected 3 deliveries, got %d", got)
	}
}

func TestBus_TopicsAreIsolated(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	received := make(chan string, 2)
	b.Subscribe("a", func(payload any) { received <- "a" })
	b.Subscribe("b", func(payload any) { received <- "b" })

	b.Publish("a", nil)

	select {
	case got := <-received:
		if got != "a" {
			t.Errorf("Wrong topic delivered: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Handler was not invoked")
	}

	select {
	case got := <-received:
		t.Errorf("Unexpected extra delivery on topic %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_PublishUnknownTopic(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	// Must not panic or block.
	b.Publish("nobody-listens", "payload")
}

func TestBus_CancelStopsDelivery(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	var count atomic.Int32
	done := make(chan struct{}, 1)
	cancel := b.Subscribe("topic", func(payload any) {
		count.Add(1)
		done <- struct{}{}
	})

	b.Publish("topic", nil)
	<-done

	cancel()
	b.Publish("topic", nil)
	time.Sleep(50 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("Expected 1 delivery after cancel, got %d", got)
	}
}

func TestBus_CancelIsIdempotent(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	cancel := b.Subscribe("topic", func(payload any) {})
	keep := make(chan any, 1)
	b.Subscribe("topic", func(payload any) { keep <- payload })

	cancel()
	cancel()

	b.Publish("topic", "still works")
	select {
	case <-keep:
	case <-time.After(time.Second):
		t.Fatal("Remaining subscriber was not invoked")
	}
}

func TestBus_CloseStopsDelivery(t *testing.T) {
	b := New(zerolog.Nop())

	var count atomic.Int32
	b.Subscribe("topic", func(payload any) { count.Add(1) })

	b.Close()
	b.Publish("topic", nil)
	time.Sleep(50 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("Expected no deliveries after close, got %d", got)
	}
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	b := New(zerolog.Nop())
	b.Close()

	cancel := b.Subscribe("topic", func(payload any) {
		t.Error("Handler must not be invoked after close")
	})
	cancel()

	b.Publish("topic", nil)
	time.Sleep(50 * time.Millisecond)
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	b := New(zerolog.Nop())
	b.Close()
	b.Close()
}

func TestBus_ConcurrentPublishSmoke(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(100)
	b.Subscribe("load", func(payload any) {
		count.Add(1)
		wg.Done()
	})

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				b.Publish("load", j)
			}
		}()
	}

	wg.Wait()
	if got := count.Load(); got != 100 {
		t.Errorf("Expected 100 deliveries, got %d", got)
	}
}
