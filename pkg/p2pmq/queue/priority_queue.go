// Package queue implements the bounded, typed queues that couple the
// app/receiver/sender workers together (spec.md §3, §5).
package queue

import (
	"sync"

	"github.com/pyl1b/p2p0mq/pkg/p2pmq/types"
)

// PriorityQueue is the FAST/MEDIUM/SLOW outbound lane triple. Dequeue
// returns items in strict priority order; within a lane, FIFO.
// Producers and consumers live on different goroutines; Enqueue
// signals Wake so an idle consumer can resume without polling.
type PriorityQueue struct {
	mu    sync.Mutex
	lanes map[types.Priority][]*types.Message

	// Wake is signalled (non-blocking) whenever a message is
	// enqueued, so the sender worker can wait on it instead of
	// spinning.
	Wake chan struct{}
}

// NewPriorityQueue builds an empty triple of lanes.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{
		lanes: map[types.Priority][]*types.Message{
			types.SpeedFast:   nil,
			types.SpeedMedium: nil,
			types.SpeedSlow:   nil,
		},
		Wake: make(chan struct{}, 1),
	}
}

func (q *PriorityQueue) signal() {
	select {
	case q.Wake <- struct{}{}:
	default:
	}
}

// Enqueue appends m to the given lane.
func (q *PriorityQueue) Enqueue(priority types.Priority, m *types.Message) {
	q.mu.Lock()
	q.lanes[priority] = append(q.lanes[priority], m)
	q.mu.Unlock()
	q.signal()
}

// EnqueueAll appends every message in ms to the given lane in order.
func (q *PriorityQueue) EnqueueAll(priority types.Priority, ms []*types.Message) {
	if len(ms) == 0 {
		return
	}
	q.mu.Lock()
	q.lanes[priority] = append(q.lanes[priority], ms...)
	q.mu.Unlock()
	q.signal()
}

// Dequeue returns up to n messages, draining FAST before MEDIUM before
// SLOW, FIFO within a lane. It never blocks.
func (q *PriorityQueue) Dequeue(n int) []*types.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*types.Message, 0, n)
	for _, priority := range types.Priorities {
		lane := q.lanes[priority]
		if len(lane) == 0 {
			continue
		}
		take := n - len(out)
		if take <= 0 {
			break
		}
		if take >= len(lane) {
			out = append(out, lane...)
			q.lanes[priority] = nil
		} else {
			out = append(out, lane[:take]...)
			q.lanes[priority] = append([]*types.Message(nil), lane[take:]...)
		}
		if len(out) >= n {
			break
		}
	}
	return out
}

// Empty reports whether every lane is empty. Cheap: a single locked
// length check per lane.
func (q *PriorityQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, priority := range types.Priorities {
		if len(q.lanes[priority]) != 0 {
			return false
		}
	}
	return true
}

// DepthByLane reports the current length of each lane, for telemetry.
func (q *PriorityQueue) DepthByLane() map[types.Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[types.Priority]int, len(types.Priorities))
	for _, priority := range types.Priorities {
		out[priority] = len(q.lanes[priority])
	}
	return out
}
