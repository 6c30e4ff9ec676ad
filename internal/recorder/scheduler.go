package recorder

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"palace-backend/internal/models"
)

// The auto-save scheduler is one goroutine per active session. Its lifetime
// is tied exactly to "a session is active for this user": arming a new
// session (start or load) disarms the previous scheduler first, and ending,
// deleting, or archiving the session cancels it.

// armSchedulerLocked starts the flush loop for the user's current session.
// Caller holds r.mu.
func (r *Recorder) armSchedulerLocked(us *userState, userID uuid.UUID) {
	ctx, cancel := context.WithCancel(context.Background())
	us.cancelScheduler = cancel

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.flush(context.Background(), userID)
			}
		}
	}()
}

// disarmLocked cancels the scheduler if one is armed. Caller holds r.mu.
func (r *Recorder) disarmLocked(us *userState) {
	if us.cancelScheduler != nil {
		us.cancelScheduler()
		us.cancelScheduler = nil
	}
}

// flush is one auto-save tick: accumulate the elapsed wall-clock interval
// into the session's duration, then write the session row and the full tab
// list back to the store. A session that has reached saved no longer
// auto-saves. Failures are logged and waited out until the next tick; the
// locally accumulated duration is kept either way, so no interval is ever
// counted twice.
func (r *Recorder) flush(ctx context.Context, userID uuid.UUID) {
	r.mu.Lock()
	us := r.userState(userID)
	s := us.active
	if s == nil || s.Status == models.SessionStatusSaved || s.Status == models.SessionStatusArchived {
		r.mu.Unlock()
		return
	}

	now := r.now()
	elapsed := int(now.Sub(us.anchor).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	// Consume whole seconds only; the remainder stays on the anchor so it
	// is not lost to truncation across ticks.
	us.anchor = us.anchor.Add(time.Duration(elapsed) * time.Second)
	s.TotalDurationSeconds += elapsed

	sessionID := s.ID
	duration := s.TotalDurationSeconds
	state := s.SessionState
	if len(state) == 0 {
		state = []byte("{}")
	}
	tabs := append([]models.Tab(nil), s.Tabs...)
	r.mu.Unlock()

	update := models.SessionUpdate{
		LastAutoSaveAt:       &now,
		TotalDurationSeconds: &duration,
		SessionState:         state,
	}
	if err := r.store.UpdateSession(ctx, sessionID, update); err != nil {
		log.Printf("auto-save failed for session %s: %v", sessionID, err)
		return
	}
	if err := r.store.ReplaceTabs(ctx, sessionID, tabs); err != nil {
		log.Printf("auto-save tab flush failed for session %s: %v", sessionID, err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	us = r.userState(userID)
	if us.active != nil && us.active.ID == sessionID {
		us.active.LastAutoSaveAt = &now
	}
}

// UpdateSessionState replaces the opaque session-state blob. It rides along
// with the next flush rather than writing immediately.
func (r *Recorder) UpdateSessionState(userID uuid.UUID, state []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	us := r.userState(userID)
	if us.active == nil {
		return ErrNoActiveSession
	}
	us.active.SessionState = state
	return nil
}
