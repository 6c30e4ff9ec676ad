package models

import (
	"time"

	"github.com/google/uuid"
)

// MemoryVerse is a verse a user is memorizing.
type MemoryVerse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Reference string    `json:"reference"` // e.g. "Romans 8:28"
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PracticeAttempt is one recitation attempt against a memory verse. Feedback
// is filled in asynchronously by the practice-feedback job.
type PracticeAttempt struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	VerseID     uuid.UUID  `json:"verse_id"`
	Submission  string     `json:"submission"`
	Feedback    *string    `json:"feedback,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type CreateMemoryVerseRequest struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`
}

type SubmitAttemptRequest struct {
	Submission string `json:"submission"`
}
