package goCampus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// auditDispatcher hands session audit events to a sink on one goroutine so that a
// slow sink never stalls a session operation. Events are stamped with the owning
// client and a per-client sequence number when queued, so sinks shared by several
// clients can tell the streams apart and restore their order.
//
// A nil *auditDispatcher is the disabled state; every method accepts it.
type auditDispatcher struct {
	sink       AuditSink
	clientID   string
	dropIfFull bool
	now        func() time.Time

	seq     atomic.Uint64
	dropped atomic.Uint64

	// mu guards closing queue against a concurrent send.
	mu     sync.RWMutex
	closed bool
	queue  chan AuditEvent
	stop   chan struct{}
	worker sync.WaitGroup
	once   sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, clientID string) *auditDispatcher {
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

	d := &auditDispatcher{
		sink:       sink,
		clientID:   clientID,
		dropIfFull: cfg.DropIfFull,
		now:        time.Now,
		queue:      make(chan AuditEvent, size),
		stop:       make(chan struct{}),
	}
	d.worker.Add(1)
	go d.deliver()
	return d
}

// deliver runs until queue is closed and drained.
func (d *auditDispatcher) deliver() {
	defer d.worker.Done()
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

func (d *auditDispatcher) stamp(event AuditEvent) AuditEvent {
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now()
	}
	event.ClientID = d.clientID
	event.Seq = d.seq.Add(1)
	return event
}

// Emit stamps and queues event. With DropIfFull a full queue drops the event and
// counts it; otherwise Emit waits for room, for ctx, or for Close.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	event = d.stamp(event)

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Close stops intake, delivers what is already queued and waits for the sink to
// finish. Later calls return immediately.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		close(d.stop)

		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		d.worker.Wait()
	})
}

// Dropped counts events lost to a full queue, a cancelled context or Close.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
