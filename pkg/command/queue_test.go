package command_test

import (
	"sync"
	"testing"
	"time"

	"github.com/irisvoice/go-iris/pkg/command"
)

func TestQueueOrdering(t *testing.T) {
	t.Run("stop before news", func(t *testing.T) {
		q := command.NewQueue()
		q.Enqueue(command.New(command.KindNewsRequest, "aapl price", "AAPL price"))
		q.Enqueue(command.New(command.KindStop, "", "stop"))

		first, ok := q.Dequeue(10 * time.Millisecond)
		if !ok || first.Kind != command.KindStop {
			t.Fatalf("expected stop first, got %v (ok=%v)", first.Kind, ok)
		}

		second, ok := q.Dequeue(10 * time.Millisecond)
		if !ok || second.Kind != command.KindNewsRequest {
			t.Fatalf("expected news second, got %v (ok=%v)", second.Kind, ok)
		}
	})

	t.Run("equal priority pops oldest", func(t *testing.T) {
		q := command.NewQueue()
		first := command.New(command.KindNewsRequest, "first", "first")
		second := command.New(command.KindNewsRequest, "second", "second")
		second.CreatedAt = first.CreatedAt.Add(time.Millisecond)
		q.Enqueue(second)
		q.Enqueue(first)

		got, ok := q.Dequeue(10 * time.Millisecond)
		if !ok || got.Payload != "first" {
			t.Fatalf("expected oldest first, got %q", got.Payload)
		}
	})
}

func TestQueueRefinementEviction(t *testing.T) {
	q := command.NewQueue()
	q.Enqueue(command.New(command.KindNewsRequest, "tech news", "tech news"))
	q.Enqueue(command.New(command.KindStockRequest, "aapl", "aapl stock"))

	refinement := command.New(command.KindWeatherRequest, "weather instead", "actually the weather instead")
	if refinement.Priority != command.PriorityRefinement {
		t.Fatalf("setup: expected refinement priority, got %v", refinement.Priority)
	}
	q.Enqueue(refinement)

	if got := q.Len(); got != 1 {
		t.Fatalf("expected pending commands evicted, queue len = %d", got)
	}

	cmd, ok := q.Dequeue(10 * time.Millisecond)
	if !ok || cmd.Kind != command.KindWeatherRequest {
		t.Fatalf("expected the refinement to survive, got %v (ok=%v)", cmd.Kind, ok)
	}

	if _, ok := q.Dequeue(5 * time.Millisecond); ok {
		t.Error("expected empty queue after refinement dequeue")
	}
}

func TestQueueDequeueTimeout(t *testing.T) {
	q := command.NewQueue()

	start := time.Now()
	_, ok := q.Dequeue(20 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("expected no command from empty queue")
	}
	if elapsed < 15*time.Millisecond {
		t.Errorf("returned before timeout: %v", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("wait not bounded: %v", elapsed)
	}
}

func TestQueueWakesBlockedDequeue(t *testing.T) {
	q := command.NewQueue()

	done := make(chan command.Command, 1)
	go func() {
		cmd, ok := q.Dequeue(time.Second)
		if ok {
			done <- cmd
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(command.New(command.KindStop, "", "stop"))

	select {
	case cmd := <-done:
		if cmd.Kind != command.KindStop {
			t.Errorf("expected stop, got %v", cmd.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestQueueExpiredDemotion(t *testing.T) {
	q := command.NewQueue()

	stale := command.New(command.KindNewsRequest, "old", "old request")
	stale.CreatedAt = time.Now().Add(-command.MaxAge - time.Second)
	q.Enqueue(stale)
	q.Enqueue(command.New(command.KindNewsRequest, "fresh", "fresh request"))

	first, ok := q.Dequeue(10 * time.Millisecond)
	if !ok || first.Payload != "fresh" {
		t.Fatalf("expected fresh request first, got %q (ok=%v)", first.Payload, ok)
	}

	second, ok := q.Dequeue(10 * time.Millisecond)
	if !ok || second.Payload != "old" {
		t.Fatalf("expected stale request second, got %q (ok=%v)", second.Payload, ok)
	}
	if second.Priority != command.PriorityExpired {
		t.Errorf("expected stale request demoted to expired, got %v", second.Priority)
	}
}

func TestQueueExactlyOnce(t *testing.T) {
	q := command.NewQueue()
	const n = 200

	for i := 0; i < n; i++ {
		q.Enqueue(command.New(command.KindNewsRequest, "x", "news please"))
	}

	var mu sync.Mutex
	received := 0
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, ok := q.Dequeue(20 * time.Millisecond)
				if !ok {
					return
				}
				mu.Lock()
				received++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if received != n {
		t.Errorf("expected %d deliveries, got %d", n, received)
	}
	if q.Len() != 0 {
		t.Errorf("expected drained queue, len = %d", q.Len())
	}
}
