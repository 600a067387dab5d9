package statsclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// eventQueue hands events to a sink from one background goroutine so that a slow sink
// never delays a request. Every queued event gets a sequence number; gaps in Seq on the
// sink side mean events were dropped.
type eventQueue struct {
	sink       EventSink
	dropIfFull bool
	onDrop     func(Event)

	// mu guards queue against close while senders are in flight.
	mu       sync.RWMutex
	queue    chan Event
	stop     chan struct{}
	finished chan struct{}
	stopOnce sync.Once

	seq     atomic.Uint64
	dropped atomic.Uint64
}

func newEventQueue(cfg EventsConfig, sink EventSink, onDrop func(Event)) *eventQueue {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	q := &eventQueue{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		onDrop:     onDrop,
		queue:      make(chan Event, size),
		stop:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	go q.deliver()
	return q
}

func (q *eventQueue) deliver() {
	defer close(q.finished)
	for event := range q.queue {
		q.sink.Emit(context.Background(), event)
	}
}

// Emit stamps and queues event. A full queue either drops the event or blocks until
// there is room, ctx ends or the queue is closed.
func (q *eventQueue) Emit(ctx context.Context, event Event) {
	if q == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	select {
	case <-q.stop:
		return
	default:
	}

	event.Seq = q.seq.Add(1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if q.dropIfFull {
		select {
		case q.queue <- event:
		default:
			q.drop(event)
		}
		return
	}

	select {
	case q.queue <- event:
	case <-ctx.Done():
		q.drop(event)
	case <-q.stop:
	}
}

func (q *eventQueue) drop(event Event) {
	q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop(event)
	}
}

// Close rejects further events and waits until every queued event reached the sink.
func (q *eventQueue) Close() {
	if q == nil {
		return
	}
	q.stopOnce.Do(func() {
		close(q.stop)
		// blocked senders observe stop and release the read lock
		q.mu.Lock()
		close(q.queue)
		q.mu.Unlock()
	})
	<-q.finished
}

// Dropped returns the number of events that never reached the sink.
func (q *eventQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
