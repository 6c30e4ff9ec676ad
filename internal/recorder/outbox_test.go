package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"palace-backend/internal/models"
)

func TestOutbox_RetriesFailedWrite(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	o := NewOutbox(4, nil)
	defer o.Stop()

	o.Enqueue(uuid.New(), "flaky-write", func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := calls >= 3
		mu.Unlock()
		if done && o.Pending() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if o.Dropped() != 0 {
		t.Fatalf("a write that eventually lands must not count as dropped, got %d", o.Dropped())
	}
}

func TestOutbox_GivesUpAfterMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	o := NewOutbox(4, nil)
	defer o.Stop()

	o.Enqueue(uuid.New(), "dead-write", func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errors.New("store unavailable")
	})

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if o.Dropped() == 1 && o.Pending() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != outboxAttempts {
		t.Fatalf("expected %d attempts, got %d", outboxAttempts, calls)
	}
	if o.Dropped() != 1 {
		t.Fatalf("exhausted write should count as dropped, got %d", o.Dropped())
	}
}

func TestOutbox_EnqueueAfterStopDropsWrite(t *testing.T) {
	o := NewOutbox(4, nil)
	o.Stop()

	called := false
	o.Enqueue(uuid.New(), "late-write", func(ctx context.Context) error {
		called = true
		return nil
	})

	if called {
		t.Fatal("a write enqueued after stop must not run")
	}
	if o.Dropped() != 1 {
		t.Fatalf("expected the late write to count as dropped, got %d", o.Dropped())
	}
	if o.Pending() != 0 {
		t.Fatalf("expected no pending writes, got %d", o.Pending())
	}
}

func TestOutbox_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	o := NewOutbox(1, nil)

	blocker := func(ctx context.Context) error {
		<-release
		return nil
	}

	// First entry occupies the drain loop, second fills the buffer, third
	// has nowhere to go.
	o.Enqueue(uuid.New(), "blocker", blocker)
	time.Sleep(50 * time.Millisecond)
	o.Enqueue(uuid.New(), "buffered", func(ctx context.Context) error { return nil })
	o.Enqueue(uuid.New(), "overflow", func(ctx context.Context) error { return nil })

	if o.Dropped() != 1 {
		t.Fatalf("expected 1 dropped write on a full queue, got %d", o.Dropped())
	}

	close(release)
	o.Stop()

	if o.Pending() != 0 {
		t.Fatalf("expected all accepted writes drained, pending %d", o.Pending())
	}
}

func TestOutbox_PublishesBacklogUpdates(t *testing.T) {
	var mu sync.Mutex
	var updates []models.OutboxUpdate

	o := NewOutbox(4, func(userID uuid.UUID, msg models.WSMessage) {
		mu.Lock()
		defer mu.Unlock()
		if u, ok := msg.Payload.(models.OutboxUpdate); ok {
			updates = append(updates, u)
		}
	})

	o.Enqueue(uuid.New(), "write", func(ctx context.Context) error { return nil })
	o.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(updates) < 2 {
		t.Fatalf("expected enqueue and completion notifications, got %d", len(updates))
	}
	if updates[0].Pending != 1 {
		t.Errorf("first update should show backlog of 1, got %d", updates[0].Pending)
	}
	last := updates[len(updates)-1]
	if last.Pending != 0 {
		t.Errorf("final update should show empty backlog, got %d", last.Pending)
	}
}
