package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"palace-backend/internal/models"
)

// Recorder holds the per-user active-session slot and the process-wide tab
// counters, and turns tracking calls into immediate local mutations plus
// best-effort durable writes through the outbox.
//
// Exactly one session may be active per user. Tracking calls made with no
// active session still maintain the open-tab counter, because that counter
// drives the session-start prompt.
type Recorder struct {
	mu    sync.Mutex
	users map[uuid.UUID]*userState

	store    Store
	outbox   *Outbox
	interval time.Duration
	// threshold is the open-tab count at which the start prompt appears.
	threshold    int
	shareBaseURL string
	now          func() time.Time
}

// userState is one user's slot: the active session (if any) plus counters
// that outlive individual sessions.
type userState struct {
	active          *models.StudySession
	anchor          time.Time // start of the not-yet-counted duration interval
	cancelScheduler context.CancelFunc

	openTabs        int
	promptDismissed bool
}

type Options struct {
	AutoSaveInterval time.Duration
	PromptThreshold  int
	OutboxCapacity   int
	ShareBaseURL     string
	// Publish pushes recorder events (outbox backlog) to the user's
	// websocket channel. Optional.
	Publish func(userID uuid.UUID, msg models.WSMessage)
	// Now is injectable for tests.
	Now func() time.Time
}

func New(store Store, opts Options) *Recorder {
	if opts.AutoSaveInterval <= 0 {
		opts.AutoSaveInterval = 60 * time.Second
	}
	if opts.PromptThreshold <= 0 {
		opts.PromptThreshold = 2
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{
		users:        make(map[uuid.UUID]*userState),
		store:        store,
		outbox:       NewOutbox(opts.OutboxCapacity, opts.Publish),
		interval:     opts.AutoSaveInterval,
		threshold:    opts.PromptThreshold,
		shareBaseURL: opts.ShareBaseURL,
		now:          opts.Now,
	}
}

// Stop flushes queued writes and tears down all schedulers.
func (r *Recorder) Stop() {
	r.mu.Lock()
	for _, us := range r.users {
		if us.cancelScheduler != nil {
			us.cancelScheduler()
			us.cancelScheduler = nil
		}
	}
	r.mu.Unlock()
	r.outbox.Stop()
}

func (r *Recorder) userState(userID uuid.UUID) *userState {
	us, ok := r.users[userID]
	if !ok {
		us = &userState{}
		r.users[userID] = us
	}
	return us
}

// TrackTabOpen records a new study surface. The new tab becomes the single
// active tab; all previously active tabs are deactivated first. Counting
// happens even when no session is active.
func (r *Recorder) TrackTabOpen(userID uuid.UUID, req models.TabOpenRequest) *models.Tab {
	r.mu.Lock()
	us := r.userState(userID)
	us.openTabs++

	if us.active == nil {
		r.mu.Unlock()
		return nil
	}

	s := us.active
	for i := range s.Tabs {
		s.Tabs[i].IsActive = false
	}
	tab := models.Tab{
		ID:        uuid.New(),
		SessionID: s.ID,
		TabType:   req.TabType,
		Position:  len(s.Tabs),
		IsActive:  true,
		TabState:  req.TabState,
		OpenedAt:  r.now(),
	}
	s.Tabs = append(s.Tabs, tab)
	sessionID := s.ID
	r.mu.Unlock()

	row := tab
	r.outbox.Enqueue(userID, "tab-open", func(ctx context.Context) error {
		if err := r.store.InsertTab(ctx, &row); err != nil {
			return err
		}
		// Single-statement swap keeps at most one remote row active even
		// when two opens race.
		return r.store.SetActiveTab(ctx, sessionID, row.ID)
	})

	return &tab
}

// TrackTabClose removes the most recent tab of the given type from local
// state and deactivates its remote rows. The counter never goes below zero.
func (r *Recorder) TrackTabClose(userID uuid.UUID, tabType string) {
	r.mu.Lock()
	us := r.userState(userID)
	if us.openTabs > 0 {
		us.openTabs--
	}

	if us.active == nil {
		r.mu.Unlock()
		return
	}

	s := us.active
	removed := false
	for i := len(s.Tabs) - 1; i >= 0; i-- {
		if s.Tabs[i].TabType == tabType {
			s.Tabs = append(s.Tabs[:i], s.Tabs[i+1:]...)
			removed = true
			break
		}
	}
	sessionID := s.ID
	r.mu.Unlock()

	if !removed {
		return
	}

	r.outbox.Enqueue(userID, "tab-close", func(ctx context.Context) error {
		return r.store.DeactivateTab(ctx, sessionID, tabType)
	})
}

// TrackVerseAccess appends an immutable verse-visit record.
func (r *Recorder) TrackVerseAccess(userID uuid.UUID, req models.VerseAccessRequest) {
	r.mu.Lock()
	us := r.userState(userID)
	if us.active == nil {
		r.mu.Unlock()
		return
	}

	visit := models.VerseVisit{
		ID:         uuid.New(),
		SessionID:  us.active.ID,
		Book:       req.Book,
		Chapter:    req.Chapter,
		VerseStart: req.VerseStart,
		VerseEnd:   req.VerseEnd,
		VisitedAt:  r.now(),
	}
	us.active.VerseVisits = append(us.active.VerseVisits, visit)
	r.mu.Unlock()

	row := visit
	r.outbox.Enqueue(userID, "verse-visit", func(ctx context.Context) error {
		return r.store.InsertVerseVisit(ctx, &row)
	})
}

// TrackPrincipleInteraction appends a room/floor/principle interaction.
func (r *Recorder) TrackPrincipleInteraction(userID uuid.UUID, req models.PrincipleInteractionRequest) {
	r.mu.Lock()
	us := r.userState(userID)
	if us.active == nil {
		r.mu.Unlock()
		return
	}

	p := models.PrincipleInteraction{
		ID:              uuid.New(),
		SessionID:       us.active.ID,
		InteractionType: req.InteractionType,
		RoomCode:        req.RoomCode,
		FloorNumber:     req.FloorNumber,
		PrincipleCode:   req.PrincipleCode,
		DataJSON:        req.Data,
		CreatedAt:       r.now(),
	}
	us.active.PrincipleInteractions = append(us.active.PrincipleInteractions, p)
	r.mu.Unlock()

	row := p
	r.outbox.Enqueue(userID, "principle-interaction", func(ctx context.Context) error {
		return r.store.InsertPrincipleInteraction(ctx, &row)
	})
}

// TrackAssistantInteraction appends one AI prompt/response exchange.
func (r *Recorder) TrackAssistantInteraction(userID uuid.UUID, req models.AssistantInteractionRequest) {
	r.mu.Lock()
	us := r.userState(userID)
	if us.active == nil {
		r.mu.Unlock()
		return
	}

	a := models.AssistantInteraction{
		ID:           uuid.New(),
		SessionID:    us.active.ID,
		Prompt:       req.Prompt,
		Response:     req.Response,
		AnalysisType: req.AnalysisType,
		MetaJSON:     req.Meta,
		CreatedAt:    r.now(),
	}
	us.active.AssistantInteractions = append(us.active.AssistantInteractions, a)
	r.mu.Unlock()

	row := a
	r.outbox.Enqueue(userID, "assistant-interaction", func(ctx context.Context) error {
		return r.store.InsertAssistantInteraction(ctx, &row)
	})
}

// AddSessionNote appends a free-text annotation.
func (r *Recorder) AddSessionNote(userID uuid.UUID, req models.SessionNoteRequest) {
	r.mu.Lock()
	us := r.userState(userID)
	if us.active == nil {
		r.mu.Unlock()
		return
	}

	n := models.SessionNote{
		ID:        uuid.New(),
		SessionID: us.active.ID,
		Content:   req.Content,
		NoteType:  req.NoteType,
		VerseRef:  req.VerseRef,
		RoomCode:  req.RoomCode,
		CreatedAt: r.now(),
	}
	us.active.Notes = append(us.active.Notes, n)
	r.mu.Unlock()

	row := n
	r.outbox.Enqueue(userID, "session-note", func(ctx context.Context) error {
		return r.store.InsertNote(ctx, &row)
	})
}

// PromptState is what the UI needs to decide whether to suggest starting a
// tracked session.
type PromptState struct {
	Visible      bool `json:"visible"`
	OpenTabCount int  `json:"open_tab_count"`
	Dismissed    bool `json:"dismissed"`
}

// Prompt reports whether the start-session suggestion should be visible:
// the user has opened enough tabs while untracked and has not dismissed it.
func (r *Recorder) Prompt(userID uuid.UUID) PromptState {
	r.mu.Lock()
	defer r.mu.Unlock()

	us := r.userState(userID)
	return PromptState{
		Visible:      us.active == nil && !us.promptDismissed && us.openTabs >= r.threshold,
		OpenTabCount: us.openTabs,
		Dismissed:    us.promptDismissed,
	}
}

// DismissPrompt hides the suggestion for the rest of the recorder's lifetime.
func (r *Recorder) DismissPrompt(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userState(userID).promptDismissed = true
}

// ActiveSession returns a snapshot of the user's active session, or nil.
func (r *Recorder) ActiveSession(userID uuid.UUID) *models.StudySession {
	r.mu.Lock()
	defer r.mu.Unlock()

	us := r.userState(userID)
	if us.active == nil {
		return nil
	}
	return snapshotSession(us.active)
}

// PendingWrites reports the outbox backlog.
func (r *Recorder) PendingWrites() models.OutboxUpdate {
	return models.OutboxUpdate{
		Pending: r.outbox.Pending(),
		Dropped: r.outbox.Dropped(),
	}
}

// snapshotSession copies the aggregate so callers outside the lock cannot
// observe later mutations.
func snapshotSession(s *models.StudySession) *models.StudySession {
	out := *s
	out.Tags = append([]string(nil), s.Tags...)
	out.Tabs = append([]models.Tab(nil), s.Tabs...)
	out.VerseVisits = append([]models.VerseVisit(nil), s.VerseVisits...)
	out.PrincipleInteractions = append([]models.PrincipleInteraction(nil), s.PrincipleInteractions...)
	out.AssistantInteractions = append([]models.AssistantInteraction(nil), s.AssistantInteractions...)
	out.Notes = append([]models.SessionNote(nil), s.Notes...)
	return &out
}
