package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"palace-backend/internal/models"
)

// memStore is an in-memory Store with injectable failures.
type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.StudySession
	tabs     map[uuid.UUID][]models.Tab
	visits   map[uuid.UUID][]models.VerseVisit
	prins    map[uuid.UUID][]models.PrincipleInteraction
	assists  map[uuid.UUID][]models.AssistantInteraction
	notes    map[uuid.UUID][]models.SessionNote

	failCreate      bool
	failUpdate      bool
	failListVisits  bool
	insertTabCalls  int
	replaceTabCalls int
	updateHook      func()
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[uuid.UUID]*models.StudySession),
		tabs:     make(map[uuid.UUID][]models.Tab),
		visits:   make(map[uuid.UUID][]models.VerseVisit),
		prins:    make(map[uuid.UUID][]models.PrincipleInteraction),
		assists:  make(map[uuid.UUID][]models.AssistantInteraction),
		notes:    make(map[uuid.UUID][]models.SessionNote),
	}
}

func (m *memStore) CreateSession(ctx context.Context, ownerID uuid.UUID, title, status string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return uuid.Nil, errors.New("store unavailable")
	}
	id := uuid.New()
	now := time.Now()
	m.sessions[id] = &models.StudySession{
		ID: id, UserID: ownerID, Title: title, Status: status,
		StartedAt: now, UpdatedAt: now, SessionState: []byte("{}"),
	}
	return id, nil
}

func (m *memStore) UpdateSession(ctx context.Context, id uuid.UUID, u models.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate {
		return errors.New("store unavailable")
	}
	s, ok := m.sessions[id]
	if !ok {
		return errors.New("not found")
	}
	if u.Title != nil {
		s.Title = *u.Title
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.IsPublic != nil {
		s.IsPublic = *u.IsPublic
	}
	if u.ShareToken != nil {
		s.ShareToken = u.ShareToken
	}
	if u.LastAutoSaveAt != nil {
		s.LastAutoSaveAt = u.LastAutoSaveAt
	}
	if u.SavedAt != nil {
		s.SavedAt = u.SavedAt
	}
	if u.TotalDurationSeconds != nil {
		s.TotalDurationSeconds = *u.TotalDurationSeconds
	}
	if u.SessionState != nil {
		s.SessionState = u.SessionState
	}
	s.UpdatedAt = time.Now()
	if m.updateHook != nil {
		h := m.updateHook
		m.updateHook = nil
		h()
	}
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *s
	return &copied, nil
}

func (m *memStore) ListSessions(ctx context.Context, ownerID uuid.UUID) ([]*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.StudySession
	for _, s := range m.sessions {
		if s.UserID == ownerID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.tabs, id)
	return nil
}

func (m *memStore) IssueShareToken(ctx context.Context) (string, error) {
	return fmt.Sprintf("token-%s", uuid.NewString()[:8]), nil
}

func (m *memStore) InsertTab(ctx context.Context, tab *models.Tab) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertTabCalls++
	m.tabs[tab.SessionID] = append(m.tabs[tab.SessionID], *tab)
	return nil
}

func (m *memStore) SetActiveTab(ctx context.Context, sessionID, tabID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tabs := m.tabs[sessionID]
	for i := range tabs {
		tabs[i].IsActive = tabs[i].ID == tabID
	}
	return nil
}

func (m *memStore) DeactivateTab(ctx context.Context, sessionID uuid.UUID, tabType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tabs := m.tabs[sessionID]
	for i := range tabs {
		if tabs[i].TabType == tabType {
			tabs[i].IsActive = false
		}
	}
	return nil
}

func (m *memStore) ReplaceTabs(ctx context.Context, sessionID uuid.UUID, tabs []models.Tab) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceTabCalls++
	m.tabs[sessionID] = append([]models.Tab(nil), tabs...)
	return nil
}

func (m *memStore) ListTabs(ctx context.Context, sessionID uuid.UUID) ([]models.Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Tab(nil), m.tabs[sessionID]...), nil
}

func (m *memStore) InsertVerseVisit(ctx context.Context, v *models.VerseVisit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits[v.SessionID] = append(m.visits[v.SessionID], *v)
	return nil
}

func (m *memStore) ListVerseVisits(ctx context.Context, sessionID uuid.UUID) ([]models.VerseVisit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failListVisits {
		return nil, errors.New("store unavailable")
	}
	return append([]models.VerseVisit(nil), m.visits[sessionID]...), nil
}

func (m *memStore) InsertPrincipleInteraction(ctx context.Context, p *models.PrincipleInteraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prins[p.SessionID] = append(m.prins[p.SessionID], *p)
	return nil
}

func (m *memStore) ListPrincipleInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.PrincipleInteraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PrincipleInteraction(nil), m.prins[sessionID]...), nil
}

func (m *memStore) InsertAssistantInteraction(ctx context.Context, a *models.AssistantInteraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assists[a.SessionID] = append(m.assists[a.SessionID], *a)
	return nil
}

func (m *memStore) ListAssistantInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.AssistantInteraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AssistantInteraction(nil), m.assists[sessionID]...), nil
}

func (m *memStore) InsertNote(ctx context.Context, n *models.SessionNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.SessionID] = append(m.notes[n.SessionID], *n)
	return nil
}

func (m *memStore) ListNotes(ctx context.Context, sessionID uuid.UUID) ([]models.SessionNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SessionNote(nil), m.notes[sessionID]...), nil
}

// fakeClock is a controllable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRecorder(t *testing.T, store Store, clock *fakeClock) *Recorder {
	t.Helper()
	r := New(store, Options{
		AutoSaveInterval: time.Hour, // ticks are driven manually via flush
		PromptThreshold:  2,
		OutboxCapacity:   64,
		ShareBaseURL:     "http://localhost:5173",
		Now:              clock.Now,
	})
	t.Cleanup(r.Stop)
	return r
}

func TestTrackTabOpen_SingleActiveTab(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	if _, err := r.StartSession(context.Background(), userID, "Romans Study"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	for _, tabType := range []string{"bible-reader", "notes", "palace"} {
		r.TrackTabOpen(userID, models.TabOpenRequest{TabType: tabType})

		s := r.ActiveSession(userID)
		active := 0
		for _, tab := range s.Tabs {
			if tab.IsActive {
				active++
				if tab.TabType != tabType {
					t.Errorf("expected most recent tab %q to be active, got %q", tabType, tab.TabType)
				}
			}
		}
		if active != 1 {
			t.Fatalf("expected exactly 1 active tab after opening %q, got %d", tabType, active)
		}
	}
}

func TestTrackTabClose_CounterNeverNegative(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	// Close tabs that were never opened.
	r.TrackTabClose(userID, "phantom")
	r.TrackTabClose(userID, "phantom")

	if got := r.Prompt(userID).OpenTabCount; got != 0 {
		t.Fatalf("expected open tab count 0, got %d", got)
	}

	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "a"})
	r.TrackTabClose(userID, "a")
	r.TrackTabClose(userID, "a")

	if got := r.Prompt(userID).OpenTabCount; got != 0 {
		t.Fatalf("expected open tab count floored at 0, got %d", got)
	}
}

func TestPromptGate_ThresholdAndDismissal(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "a"})
	if r.Prompt(userID).Visible {
		t.Fatal("prompt should not show below threshold")
	}

	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "b"})
	if !r.Prompt(userID).Visible {
		t.Fatal("prompt should show once threshold is reached")
	}

	r.DismissPrompt(userID)
	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "c"})
	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "d"})
	if r.Prompt(userID).Visible {
		t.Fatal("prompt must stay hidden after dismissal")
	}
}

func TestPromptGate_HiddenWhileSessionActive(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	if _, err := r.StartSession(context.Background(), userID, "Romans Study"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "bible-reader"})
	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "notes"})

	state := r.Prompt(userID)
	if state.Visible {
		t.Fatal("prompt must not show while a session is active")
	}
	if state.OpenTabCount != 2 {
		t.Fatalf("expected open tab count 2, got %d", state.OpenTabCount)
	}
}

func TestStatusMonotonicity(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	id, err := r.StartSession(context.Background(), userID, "Exodus Study")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if _, err := r.SaveSession(context.Background(), userID, models.SaveSessionRequest{}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Further saves and auto-save ticks must never revert saved -> draft.
	clock.Advance(90 * time.Second)
	r.flush(context.Background(), userID)
	if _, err := r.SaveSession(context.Background(), userID, models.SaveSessionRequest{Title: "renamed"}); err != nil {
		t.Fatalf("second SaveSession failed: %v", err)
	}

	remote, _ := store.GetSession(context.Background(), id)
	if remote.Status != models.SessionStatusSaved {
		t.Fatalf("expected status saved, got %q", remote.Status)
	}
	if r.ActiveSession(userID).Status != models.SessionStatusSaved {
		t.Fatal("local status must stay saved")
	}
}

func TestAutoSave_DurationNeverDoubleCounted(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	if _, err := r.StartSession(context.Background(), userID, "Psalms Study"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	clock.Advance(60 * time.Second)
	r.flush(context.Background(), userID)

	if got := r.ActiveSession(userID).TotalDurationSeconds; got != 60 {
		t.Fatalf("expected 60s after first tick, got %d", got)
	}

	// Save 5 seconds after the tick: only the new 5 seconds are added.
	clock.Advance(5 * time.Second)
	saved, err := r.SaveSession(context.Background(), userID, models.SaveSessionRequest{})
	if err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if saved.TotalDurationSeconds != 65 {
		t.Fatalf("expected 65s total, got %d", saved.TotalDurationSeconds)
	}

	// A saved session no longer auto-saves.
	clock.Advance(120 * time.Second)
	r.flush(context.Background(), userID)
	if got := r.ActiveSession(userID).TotalDurationSeconds; got != 65 {
		t.Fatalf("saved session must skip ticks, expected 65s, got %d", got)
	}
}

func TestAutoSave_SubSecondRemainderCarries(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	if _, err := r.StartSession(context.Background(), userID, "Isaiah Study"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	// Each tick lands mid-second; the fractions must accumulate instead of
	// being truncated away tick by tick.
	for i := 0; i < 4; i++ {
		clock.Advance(60*time.Second + 500*time.Millisecond)
		r.flush(context.Background(), userID)
	}

	// 4 x 60.5s = 242s; truncating every tick would report 240.
	if got := r.ActiveSession(userID).TotalDurationSeconds; got != 242 {
		t.Fatalf("expected 242s accumulated, got %d", got)
	}
}

func TestSaveSession_SlotSwappedDuringWrite(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	id, err := r.StartSession(context.Background(), userID, "Jonah Study")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	// The session ends concurrently while the save write is in flight.
	store.mu.Lock()
	store.updateHook = func() {
		r.mu.Lock()
		us := r.userState(userID)
		r.disarmLocked(us)
		us.active = nil
		r.mu.Unlock()
	}
	store.mu.Unlock()

	saved, err := r.SaveSession(context.Background(), userID, models.SaveSessionRequest{})
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession for a swapped-out save, got %v", err)
	}
	if saved != nil {
		t.Fatal("swapped-out save must not return a session snapshot")
	}

	// The remote row was still promoted before the swap was noticed.
	remote, _ := store.GetSession(context.Background(), id)
	if remote.Status != models.SessionStatusSaved {
		t.Fatalf("expected remote status saved, got %q", remote.Status)
	}
}

func TestAutoSave_FailureKeepsLocalDuration(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	if _, err := r.StartSession(context.Background(), userID, "Acts Study"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	store.mu.Lock()
	store.failUpdate = true
	store.mu.Unlock()

	clock.Advance(60 * time.Second)
	r.flush(context.Background(), userID)

	// Flush failed remotely but the interval was consumed locally.
	if got := r.ActiveSession(userID).TotalDurationSeconds; got != 60 {
		t.Fatalf("expected local duration 60s, got %d", got)
	}
	if r.ActiveSession(userID).LastAutoSaveAt != nil {
		t.Fatal("lastAutoSave must not move on a failed flush")
	}

	store.mu.Lock()
	store.failUpdate = false
	store.mu.Unlock()

	clock.Advance(60 * time.Second)
	r.flush(context.Background(), userID)
	if got := r.ActiveSession(userID).TotalDurationSeconds; got != 120 {
		t.Fatalf("expected 120s, got %d", got)
	}
	if r.ActiveSession(userID).LastAutoSaveAt == nil {
		t.Fatal("lastAutoSave should be set after a successful flush")
	}
}

func TestStartSession_RequiresAuth(t *testing.T) {
	store := newMemStore()
	r := newTestRecorder(t, store, newFakeClock())

	if _, err := r.StartSession(context.Background(), uuid.Nil, "x"); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestStartSession_RefusesToDiscardUnsavedSession(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	first, err := r.StartSession(context.Background(), userID, "first")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if _, err := r.StartSession(context.Background(), userID, "second"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if r.ActiveSession(userID).ID != first {
		t.Fatal("active session must be unchanged after refused start")
	}
}

func TestEndSession_LeavesDraftStatus(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	id, err := r.StartSession(context.Background(), userID, "Ruth Study")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	clock.Advance(30 * time.Second)
	if err := r.EndSession(context.Background(), userID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	if r.ActiveSession(userID) != nil {
		t.Fatal("active session must be discarded after end")
	}

	// Ending never promotes draft -> saved; the row stays listed as draft.
	remote, err := store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("session row should survive end: %v", err)
	}
	if remote.Status != models.SessionStatusDraft {
		t.Fatalf("expected remote status draft, got %q", remote.Status)
	}
	if remote.TotalDurationSeconds != 30 {
		t.Fatalf("final flush should record 30s, got %d", remote.TotalDurationSeconds)
	}
}

func TestLoadSession_AllOrNothing(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	// Build a session with children, then end it.
	id, err := r.StartSession(context.Background(), userID, "Hebrews Study")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	r.TrackTabOpen(userID, models.TabOpenRequest{TabType: "bible-reader"})
	r.TrackVerseAccess(userID, models.VerseAccessRequest{Book: "Hebrews", Chapter: 4})
	r.AddSessionNote(userID, models.SessionNoteRequest{Content: "rest", NoteType: "insight"})
	waitForOutbox(t, r)
	if err := r.EndSession(context.Background(), userID); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	// A failing child fetch aborts the whole load and arms nothing.
	store.mu.Lock()
	store.failListVisits = true
	store.mu.Unlock()

	if _, err := r.LoadSession(context.Background(), userID, id); !errors.Is(err, ErrLoadIncomplete) {
		t.Fatalf("expected ErrLoadIncomplete, got %v", err)
	}
	if r.ActiveSession(userID) != nil {
		t.Fatal("failed load must not arm a partial session")
	}

	store.mu.Lock()
	store.failListVisits = false
	store.mu.Unlock()

	loaded, err := r.LoadSession(context.Background(), userID, id)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if len(loaded.Tabs) != 1 || len(loaded.VerseVisits) != 1 || len(loaded.Notes) != 1 {
		t.Fatalf("expected full child collections, got tabs=%d visits=%d notes=%d",
			len(loaded.Tabs), len(loaded.VerseVisits), len(loaded.Notes))
	}
}

func TestLoadSession_RejectsForeignSession(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	owner := uuid.New()
	intruder := uuid.New()

	id, err := r.StartSession(context.Background(), owner, "private")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := r.EndSession(context.Background(), owner); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	if _, err := r.LoadSession(context.Background(), intruder, id); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestDeleteSession_ClearsActiveSlot(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	id, err := r.StartSession(context.Background(), userID, "temp")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if err := r.DeleteSession(context.Background(), userID, id); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if r.ActiveSession(userID) != nil {
		t.Fatal("deleting the active session must clear the slot")
	}
	if _, err := store.GetSession(context.Background(), id); err == nil {
		t.Fatal("remote row should be gone")
	}
}

func TestShareSession_MintsTokenAndURL(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	id, err := r.StartSession(context.Background(), userID, "shareable")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	url, err := r.ShareSession(context.Background(), userID, id)
	if err != nil {
		t.Fatalf("ShareSession failed: %v", err)
	}
	if url == "" {
		t.Fatal("expected a share URL")
	}

	remote, _ := store.GetSession(context.Background(), id)
	if !remote.IsPublic || remote.ShareToken == nil {
		t.Fatal("shared session must be public with a token")
	}
}

func TestArchiveSession_TerminalState(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	id, err := r.StartSession(context.Background(), userID, "old study")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	if err := r.ArchiveSession(context.Background(), userID, id); err != nil {
		t.Fatalf("ArchiveSession failed: %v", err)
	}
	if r.ActiveSession(userID) != nil {
		t.Fatal("archiving the active session must clear the slot")
	}

	remote, _ := store.GetSession(context.Background(), id)
	if remote.Status != models.SessionStatusArchived {
		t.Fatalf("expected archived, got %q", remote.Status)
	}

	// Archiving twice is a no-op, not an error.
	if err := r.ArchiveSession(context.Background(), userID, id); err != nil {
		t.Fatalf("second archive should be a no-op: %v", err)
	}
}

func TestTracking_NoopWithoutSession(t *testing.T) {
	store := newMemStore()
	clock := newFakeClock()
	r := newTestRecorder(t, store, clock)
	userID := uuid.New()

	r.TrackVerseAccess(userID, models.VerseAccessRequest{Book: "John", Chapter: 3})
	r.AddSessionNote(userID, models.SessionNoteRequest{Content: "x", NoteType: "y"})
	r.TrackPrincipleInteraction(userID, models.PrincipleInteractionRequest{InteractionType: "view"})
	waitForOutbox(t, r)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.visits) != 0 || len(store.notes) != 0 || len(store.prins) != 0 {
		t.Fatal("tracking without a session must not write to the store")
	}
}

func waitForOutbox(t *testing.T, r *Recorder) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.outbox.Pending() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("outbox did not drain in time")
}
