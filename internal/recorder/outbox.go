package recorder

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"palace-backend/internal/models"
)

// outboxEntry is one durable write waiting to land. The closure owns value
// copies of everything it writes, so local state can keep moving.
type outboxEntry struct {
	userID uuid.UUID
	label  string
	fn     func(ctx context.Context) error
}

// Outbox is a bounded queue of best-effort writes with retry. Event-recording
// writes go through here instead of being fired and forgotten: a transient
// store failure is retried with backoff, and the pending count is observable
// so the UI can tell the user when work has not been made durable yet.
// When the queue is full the write degrades to a logged drop.
type Outbox struct {
	mu       sync.RWMutex
	stopped  bool
	ch       chan outboxEntry
	pending  atomic.Int64
	dropped  atomic.Int64
	publish  func(userID uuid.UUID, msg models.WSMessage)
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

const (
	outboxAttempts     = 3
	outboxBackoffBase  = 500 * time.Millisecond
	outboxWriteTimeout = 10 * time.Second
)

func NewOutbox(capacity int, publish func(userID uuid.UUID, msg models.WSMessage)) *Outbox {
	if capacity <= 0 {
		capacity = 256
	}
	o := &Outbox{
		ch:      make(chan outboxEntry, capacity),
		publish: publish,
		done:    make(chan struct{}),
	}
	o.wg.Add(1)
	go o.drain()
	return o
}

// Enqueue never blocks the caller. A full or stopped queue drops the write.
func (o *Outbox) Enqueue(userID uuid.UUID, label string, fn func(ctx context.Context) error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.stopped {
		o.dropped.Add(1)
		log.Printf("outbox stopped, dropping write %q for user %s", label, userID)
		o.notify(userID)
		return
	}

	select {
	case o.ch <- outboxEntry{userID: userID, label: label, fn: fn}:
		o.pending.Add(1)
		o.notify(userID)
	default:
		o.dropped.Add(1)
		log.Printf("outbox full, dropping write %q for user %s", label, userID)
		o.notify(userID)
	}
}

// Pending reports the number of writes not yet landed.
func (o *Outbox) Pending() int {
	return int(o.pending.Load())
}

// Dropped reports the number of writes abandoned after exhausting retries or
// because the queue was full.
func (o *Outbox) Dropped() int {
	return int(o.dropped.Load())
}

// Stop lets queued writes finish, then stops the drain loop. Writes enqueued
// after Stop are dropped, never sent on the closed channel.
func (o *Outbox) Stop() {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.stopped = true
		o.mu.Unlock()
		close(o.done)
		close(o.ch)
	})
	o.wg.Wait()
}

func (o *Outbox) drain() {
	defer o.wg.Done()
	for entry := range o.ch {
		o.attempt(entry)
		o.pending.Add(-1)
		o.notify(entry.userID)
	}
}

func (o *Outbox) attempt(entry outboxEntry) {
	backoff := outboxBackoffBase
	for i := 0; i < outboxAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), outboxWriteTimeout)
		err := entry.fn(ctx)
		cancel()
		if err == nil {
			return
		}

		log.Printf("outbox write %q failed (attempt %d/%d): %v", entry.label, i+1, outboxAttempts, err)

		if i == outboxAttempts-1 {
			break
		}
		select {
		case <-o.done:
			// Shutting down; one last immediate try happens on next loop.
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	o.dropped.Add(1)
}

func (o *Outbox) notify(userID uuid.UUID) {
	if o.publish == nil {
		return
	}
	o.publish(userID, models.WSMessage{
		Type: "outbox_update",
		Payload: models.OutboxUpdate{
			Pending: o.Pending(),
			Dropped: o.Dropped(),
		},
	})
}
