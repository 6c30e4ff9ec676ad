package recorder

import (
	"context"

	"github.com/google/uuid"

	"palace-backend/internal/models"
)

// Store is the persistence client the recorder writes through. Implemented by
// repository.SessionRepo in production and by an in-memory fake in tests.
type Store interface {
	CreateSession(ctx context.Context, ownerID uuid.UUID, title, status string) (uuid.UUID, error)
	UpdateSession(ctx context.Context, id uuid.UUID, u models.SessionUpdate) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	ListSessions(ctx context.Context, ownerID uuid.UUID) ([]*models.StudySession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	IssueShareToken(ctx context.Context) (string, error)

	InsertTab(ctx context.Context, tab *models.Tab) error
	SetActiveTab(ctx context.Context, sessionID, tabID uuid.UUID) error
	DeactivateTab(ctx context.Context, sessionID uuid.UUID, tabType string) error
	ReplaceTabs(ctx context.Context, sessionID uuid.UUID, tabs []models.Tab) error
	ListTabs(ctx context.Context, sessionID uuid.UUID) ([]models.Tab, error)

	InsertVerseVisit(ctx context.Context, v *models.VerseVisit) error
	ListVerseVisits(ctx context.Context, sessionID uuid.UUID) ([]models.VerseVisit, error)

	InsertPrincipleInteraction(ctx context.Context, p *models.PrincipleInteraction) error
	ListPrincipleInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.PrincipleInteraction, error)

	InsertAssistantInteraction(ctx context.Context, a *models.AssistantInteraction) error
	ListAssistantInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.AssistantInteraction, error)

	InsertNote(ctx context.Context, n *models.SessionNote) error
	ListNotes(ctx context.Context, sessionID uuid.UUID) ([]models.SessionNote, error)
}
