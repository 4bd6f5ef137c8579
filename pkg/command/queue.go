package command

import (
	"container/heap"
	"sync"
	"time"
)

// Queue arbitrates pending commands by urgency. It is safe for
// concurrent use by any number of producers and consumers; every
// enqueued command is delivered to exactly one caller of Dequeue.
//
// Enqueueing a refinement command first evicts everything pending at
// PriorityNormal or better, so "actually, tell me the weather instead"
// cancels the news request the user no longer wants.
type Queue struct {
	mu     sync.Mutex
	items  itemHeap
	seq    uint64
	signal chan struct{}
}

// NewQueue creates an empty command queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue inserts a command. Refinement commands evict all pending
// entries (effective priority at or better than PriorityNormal) before
// insertion, so no superseded command survives.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()

	if cmd.Priority == PriorityRefinement {
		now := time.Now()
		kept := q.items[:0]
		for _, it := range q.items {
			if it.cmd.EffectivePriority(now) > PriorityNormal {
				kept = append(kept, it)
			}
		}
		q.items = kept
		heap.Init(&q.items)
	}

	q.seq++
	heap.Push(&q.items, &item{cmd: cmd, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the most urgent command, waiting up to
// timeout for one to arrive. The wait is always bounded: on an empty
// queue it returns the zero Command and false once the timeout lapses,
// keeping callers responsive to other events.
func (q *Queue) Dequeue(timeout time.Duration) (Command, bool) {
	deadline := time.Now().Add(timeout)

	for {
		if cmd, ok := q.pop(); ok {
			return cmd, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Command{}, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pop removes the minimum (priority, timestamp) entry, demoting
// commands that expired while queued.
func (q *Queue) pop() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for q.items.Len() > 0 {
		it := q.items[0]
		effective := it.cmd.EffectivePriority(now)
		if effective != it.cmd.Priority {
			// Aged out while queued. Demote and re-sink so younger
			// commands get ahead of it.
			it.cmd.Priority = effective
			heap.Fix(&q.items, 0)
			continue
		}
		heap.Pop(&q.items)
		return it.cmd, true
	}
	return Command{}, false
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// item is a heap entry. seq breaks ties between commands created in
// the same nanosecond, preserving insertion order.
type item struct {
	cmd Command
	seq uint64
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].cmd.Priority != h[j].cmd.Priority {
		return h[i].cmd.Priority < h[j].cmd.Priority
	}
	if !h[i].cmd.CreatedAt.Equal(h[j].cmd.CreatedAt) {
		return h[i].cmd.CreatedAt.Before(h[j].cmd.CreatedAt)
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
