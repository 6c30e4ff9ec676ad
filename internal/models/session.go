package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session lifecycle states. Transitions are one-way:
// draft -> saved, and draft|saved -> archived. There is no path out of archived.
const (
	SessionStatusDraft    = "draft"
	SessionStatusSaved    = "saved"
	SessionStatusArchived = "archived"
)

// StudySession is the aggregate root for one tracked study period. The row is
// the system of record; the recorder's in-memory copy is discarded on end.
type StudySession struct {
	ID                   uuid.UUID       `json:"id"`
	UserID               uuid.UUID       `json:"user_id"`
	Title                string          `json:"title"`
	Description          *string         `json:"description,omitempty"`
	Tags                 []string        `json:"tags"`
	Status               string          `json:"status"`
	IsPublic             bool            `json:"is_public"`
	ShareToken           *string         `json:"share_token,omitempty"`
	StartedAt            time.Time       `json:"started_at"`
	LastAutoSaveAt       *time.Time      `json:"last_auto_save_at,omitempty"`
	SavedAt              *time.Time      `json:"saved_at,omitempty"`
	TotalDurationSeconds int             `json:"total_duration_seconds"`
	SessionState         json.RawMessage `json:"session_state"`
	AISummary            *string         `json:"ai_summary,omitempty"`
	AISummaryGeneratedAt *time.Time      `json:"ai_summary_generated_at,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`

	// Child collections, populated only by a full load.
	Tabs                  []Tab                  `json:"tabs,omitempty"`
	VerseVisits           []VerseVisit           `json:"verse_visits,omitempty"`
	PrincipleInteractions []PrincipleInteraction `json:"principle_interactions,omitempty"`
	AssistantInteractions []AssistantInteraction `json:"assistant_interactions,omitempty"`
	Notes                 []SessionNote          `json:"notes,omitempty"`
}

// Tab is one study surface opened within a session. At most one tab per
// session is active at a time; opening a tab deactivates all others.
type Tab struct {
	ID        uuid.UUID       `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	TabType   string          `json:"tab_type"`
	Position  int             `json:"position"`
	IsActive  bool            `json:"is_active"`
	TabState  json.RawMessage `json:"tab_state"`
	OpenedAt  time.Time       `json:"opened_at"`
}

// VerseVisit records one Scripture reference viewed during the session.
// Immutable once written.
type VerseVisit struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Book       string    `json:"book"`
	Chapter    int       `json:"chapter"`
	VerseStart *int      `json:"verse_start,omitempty"`
	VerseEnd   *int      `json:"verse_end,omitempty"`
	VisitedAt  time.Time `json:"visited_at"`
}

// PrincipleInteraction records engagement with a room/floor/principle
// teaching unit. Append-only.
type PrincipleInteraction struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       uuid.UUID       `json:"session_id"`
	InteractionType string          `json:"interaction_type"`
	RoomCode        *string         `json:"room_code,omitempty"`
	FloorNumber     *int            `json:"floor_number,omitempty"`
	PrincipleCode   *string         `json:"principle_code,omitempty"`
	DataJSON        json.RawMessage `json:"data"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AssistantInteraction records one prompt/response exchange with the AI
// assistant. Append-only.
type AssistantInteraction struct {
	ID           uuid.UUID       `json:"id"`
	SessionID    uuid.UUID       `json:"session_id"`
	Prompt       string          `json:"prompt"`
	Response     string          `json:"response"`
	AnalysisType *string         `json:"analysis_type,omitempty"`
	MetaJSON     json.RawMessage `json:"meta"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SessionNote is a free-text annotation, optionally linked to a verse
// reference or a room. Append-only from the recorder's point of view.
type SessionNote struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Content   string    `json:"content"`
	NoteType  string    `json:"note_type"`
	VerseRef  *string   `json:"verse_ref,omitempty"`
	RoomCode  *string   `json:"room_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionUpdate names the fields a session update may touch. Nil fields are
// left untouched server-side (upsert semantics, not a protocol-level patch).
type SessionUpdate struct {
	Title                *string
	Description          *string
	Tags                 []string
	Status               *string
	IsPublic             *bool
	ShareToken           *string
	LastAutoSaveAt       *time.Time
	SavedAt              *time.Time
	TotalDurationSeconds *int
	SessionState         json.RawMessage
	AISummary            *string
	AISummaryGeneratedAt *time.Time
}

// Request payloads

type StartSessionRequest struct {
	Title string `json:"title"`
}

type SaveSessionRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type TabOpenRequest struct {
	TabType  string          `json:"tab_type"`
	TabState json.RawMessage `json:"tab_state"`
}

type TabCloseRequest struct {
	TabType string `json:"tab_type"`
}

type VerseAccessRequest struct {
	Book       string `json:"book"`
	Chapter    int    `json:"chapter"`
	VerseStart *int   `json:"verse_start"`
	VerseEnd   *int   `json:"verse_end"`
}

type PrincipleInteractionRequest struct {
	InteractionType string          `json:"interaction_type"`
	RoomCode        *string         `json:"room_code"`
	FloorNumber     *int            `json:"floor_number"`
	PrincipleCode   *string         `json:"principle_code"`
	Data            json.RawMessage `json:"data"`
}

type AssistantInteractionRequest struct {
	Prompt       string          `json:"prompt"`
	Response     string          `json:"response"`
	AnalysisType *string         `json:"analysis_type"`
	Meta         json.RawMessage `json:"meta"`
}

type SessionNoteRequest struct {
	Content  string  `json:"content"`
	NoteType string  `json:"note_type"`
	VerseRef *string `json:"verse_ref"`
	RoomCode *string `json:"room_code"`
}
