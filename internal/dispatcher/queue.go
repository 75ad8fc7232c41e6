package dispatcher

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/vodarr/vodarr/internal/models"
)

// Queue errors returned by Push.
var (
	ErrQueueFull   = errors.New("dispatch queue is full")
	ErrQueueClosed = errors.New("dispatch queue is closed")
)

// DefaultQueueCapacity bounds the in-memory queue when no explicit
// capacity is configured.
const DefaultQueueCapacity = 1024

type queueItem struct {
	jobID    models.ULID
	priority int
	// seq keeps same-priority items FIFO.
	seq uint64
}

type itemHeap []queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(queueItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PriorityQueue is a bounded, concurrency-safe max-priority queue of job
// IDs. Pop blocks until an item is available or the queue is closed.
type PriorityQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    itemHeap
	capacity int
	closed   bool
	nextSeq  uint64
}

// NewPriorityQueue creates a queue holding at most capacity items.
// A non-positive capacity falls back to DefaultQueueCapacity.
func NewPriorityQueue(capacity int) *PriorityQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &PriorityQueue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a job at the given priority.
func (q *PriorityQueue) Push(jobID models.ULID, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}

	heap.Push(&q.items, queueItem{jobID: jobID, priority: priority, seq: q.nextSeq})
	q.nextSeq++
	q.cond.Signal()
	return nil
}

// Pop removes and returns the highest-priority job ID, blocking while
// the queue is empty. The second return is false once the queue is
// closed and drained.
func (q *PriorityQueue) Pop() (models.ULID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return models.ULID{}, false
		}
		q.cond.Wait()
	}

	item := heap.Pop(&q.items).(queueItem)
	return item.jobID, true
}

// Len returns the number of queued jobs.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further pushes and wakes all blocked Pop calls. Items
// already queued remain poppable until drained.
func (q *PriorityQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
