package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"palace-backend/internal/models"
)

// StartSession creates a remote draft row and arms the in-memory aggregate
// and the auto-save scheduler. Starting while an unsaved session is active
// fails with ErrSessionActive; callers must end the current session first
// instead of silently discarding it.
func (r *Recorder) StartSession(ctx context.Context, userID uuid.UUID, title string) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, ErrAuthRequired
	}
	if title == "" {
		title = "Untitled Session"
	}

	r.mu.Lock()
	us := r.userState(userID)
	if us.active != nil && us.active.Status == models.SessionStatusDraft {
		r.mu.Unlock()
		return uuid.Nil, ErrSessionActive
	}
	r.mu.Unlock()

	id, err := r.store.CreateSession(ctx, userID, title, models.SessionStatusDraft)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create session: %w", err)
	}

	now := r.now()
	session := &models.StudySession{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Status:    models.SessionStatusDraft,
		StartedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	us = r.userState(userID)
	r.disarmLocked(us)
	us.active = session
	us.anchor = now
	r.armSchedulerLocked(us, userID)
	r.mu.Unlock()

	return id, nil
}

// SaveSession merges metadata, accumulates the elapsed interval once, and
// promotes the session draft -> saved. The transition is one-way: saving an
// already-saved session re-affirms saved. Local state is committed only after
// the remote write succeeds.
func (r *Recorder) SaveSession(ctx context.Context, userID uuid.UUID, req models.SaveSessionRequest) (*models.StudySession, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	r.mu.Lock()
	us := r.userState(userID)
	if us.active == nil {
		r.mu.Unlock()
		return nil, ErrNoActiveSession
	}

	s := us.active
	if s.Status == models.SessionStatusArchived {
		r.mu.Unlock()
		return nil, ErrArchived
	}
	now := r.now()
	elapsed := int(now.Sub(us.anchor).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	title := s.Title
	if req.Title != "" {
		title = req.Title
	}
	description := s.Description
	if req.Description != "" {
		d := req.Description
		description = &d
	}
	tags := s.Tags
	if req.Tags != nil {
		tags = req.Tags
	}
	newDuration := s.TotalDurationSeconds + elapsed
	status := models.SessionStatusSaved
	sessionID := s.ID
	state := s.SessionState
	if len(state) == 0 {
		state = []byte("{}")
	}
	r.mu.Unlock()

	desc := ""
	if description != nil {
		desc = *description
	}
	update := models.SessionUpdate{
		Title:                &title,
		Description:          &desc,
		Tags:                 tags,
		Status:               &status,
		SavedAt:              &now,
		TotalDurationSeconds: &newDuration,
		SessionState:         state,
	}
	if err := r.store.UpdateSession(ctx, sessionID, update); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	us = r.userState(userID)
	if us.active == nil || us.active.ID != sessionID {
		// Session was swapped out while the write was in flight; the
		// remote row still got saved.
		return nil, ErrNoActiveSession
	}
	s = us.active
	s.Title = title
	s.Description = description
	s.Tags = tags
	s.Status = models.SessionStatusSaved
	s.SavedAt = &now
	s.TotalDurationSeconds = newDuration
	// Advance the anchor by exactly the whole seconds consumed so the
	// sub-second remainder carries into the next interval.
	us.anchor = us.anchor.Add(time.Duration(elapsed) * time.Second)

	return snapshotSession(s), nil
}

// EndSession performs one final flush, then discards the in-memory aggregate
// and disarms the scheduler. The remote status is deliberately untouched: a
// draft that is merely ended stays a draft.
func (r *Recorder) EndSession(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrAuthRequired
	}

	r.mu.Lock()
	us := r.userState(userID)
	if us.active == nil {
		r.mu.Unlock()
		return ErrNoActiveSession
	}
	r.mu.Unlock()

	// Final flush is best-effort, like any auto-save tick.
	r.flush(ctx, userID)

	r.mu.Lock()
	defer r.mu.Unlock()
	us = r.userState(userID)
	r.disarmLocked(us)
	us.active = nil
	return nil
}

// LoadSession fetches the session row plus all five child collections and
// arms the reconstructed aggregate. The child reads run in parallel and the
// load is all-or-nothing: if any one fails, the previously active session is
// left untouched.
func (r *Recorder) LoadSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	r.mu.Lock()
	us := r.userState(userID)
	if us.active != nil && us.active.ID != sessionID && us.active.Status == models.SessionStatusDraft {
		r.mu.Unlock()
		return nil, ErrSessionActive
	}
	r.mu.Unlock()

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadIncomplete, err)
	}
	if session.UserID != userID {
		return nil, ErrNotOwner
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tabs, err := r.store.ListTabs(gctx, sessionID)
		session.Tabs = tabs
		return err
	})
	g.Go(func() error {
		visits, err := r.store.ListVerseVisits(gctx, sessionID)
		session.VerseVisits = visits
		return err
	})
	g.Go(func() error {
		items, err := r.store.ListPrincipleInteractions(gctx, sessionID)
		session.PrincipleInteractions = items
		return err
	})
	g.Go(func() error {
		items, err := r.store.ListAssistantInteractions(gctx, sessionID)
		session.AssistantInteractions = items
		return err
	})
	g.Go(func() error {
		notes, err := r.store.ListNotes(gctx, sessionID)
		session.Notes = notes
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadIncomplete, err)
	}

	r.mu.Lock()
	us = r.userState(userID)
	r.disarmLocked(us)
	us.active = session
	us.anchor = r.now()
	r.armSchedulerLocked(us, userID)
	snap := snapshotSession(session)
	r.mu.Unlock()

	return snap, nil
}

// Sessions lists the actor's sessions as summary rows (no child collections),
// most recently updated first.
func (r *Recorder) Sessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}
	return r.store.ListSessions(ctx, userID)
}

// DeleteSession removes the remote row. If the deleted session is the active
// one, the local slot is cleared too; child-row cleanup is the store's
// referential-integrity policy, not the recorder's.
func (r *Recorder) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrAuthRequired
	}

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch session: %w", err)
	}
	if session.UserID != userID {
		return ErrNotOwner
	}

	if err := r.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	us := r.userState(userID)
	if us.active != nil && us.active.ID == sessionID {
		r.disarmLocked(us)
		us.active = nil
	}
	return nil
}

// ShareSession mints a fresh share token, flips the session public, and
// returns the share URL.
func (r *Recorder) ShareSession(ctx context.Context, userID, sessionID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", ErrAuthRequired
	}

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch session: %w", err)
	}
	if session.UserID != userID {
		return "", ErrNotOwner
	}

	token, err := r.store.IssueShareToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to issue share token: %w", err)
	}

	public := true
	if err := r.store.UpdateSession(ctx, sessionID, models.SessionUpdate{
		ShareToken: &token,
		IsPublic:   &public,
	}); err != nil {
		return "", fmt.Errorf("failed to publish session: %w", err)
	}

	r.mu.Lock()
	us := r.userState(userID)
	if us.active != nil && us.active.ID == sessionID {
		us.active.ShareToken = &token
		us.active.IsPublic = true
	}
	r.mu.Unlock()

	return fmt.Sprintf("%s/shared/%s", r.shareBaseURL, token), nil
}

// ArchiveSession moves a session to the terminal archived state. Allowed from
// draft or saved; archived sessions never come back.
func (r *Recorder) ArchiveSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrAuthRequired
	}

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch session: %w", err)
	}
	if session.UserID != userID {
		return ErrNotOwner
	}
	if session.Status == models.SessionStatusArchived {
		return nil
	}

	status := models.SessionStatusArchived
	if err := r.store.UpdateSession(ctx, sessionID, models.SessionUpdate{Status: &status}); err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	us := r.userState(userID)
	if us.active != nil && us.active.ID == sessionID {
		// Archived sessions take no further mutation.
		r.disarmLocked(us)
		us.active = nil
	}
	return nil
}
