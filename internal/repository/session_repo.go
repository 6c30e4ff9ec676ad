package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"palace-backend/internal/models"
)

// SessionRepo is the persistence side of the recorder: the study_sessions row
// plus its five child tables. The recorder only sees the recorder.Store
// interface; this is the pgx implementation behind it.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) CreateSession(ctx context.Context, ownerID uuid.UUID, title, status string) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO study_sessions (id, user_id, title, status, session_state)
		VALUES ($1, $2, $3, $4, '{}')
	`
	if _, err := r.pool.Exec(ctx, query, id, ownerID, title, status); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// UpdateSession applies only the fields set on u; everything else is left
// untouched server-side.
func (r *SessionRepo) UpdateSession(ctx context.Context, id uuid.UUID, u models.SessionUpdate) error {
	sets := []string{"updated_at = NOW()"}
	var args []interface{}
	argIdx := 1

	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Tags != nil {
		add("tags", u.Tags)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.IsPublic != nil {
		add("is_public", *u.IsPublic)
	}
	if u.ShareToken != nil {
		add("share_token", *u.ShareToken)
	}
	if u.LastAutoSaveAt != nil {
		add("last_auto_save_at", *u.LastAutoSaveAt)
	}
	if u.SavedAt != nil {
		add("saved_at", *u.SavedAt)
	}
	if u.TotalDurationSeconds != nil {
		add("total_duration_seconds", *u.TotalDurationSeconds)
	}
	if u.SessionState != nil {
		add("session_state", u.SessionState)
	}
	if u.AISummary != nil {
		add("ai_summary", *u.AISummary)
	}
	if u.AISummaryGeneratedAt != nil {
		add("ai_summary_generated_at", *u.AISummaryGeneratedAt)
	}

	query := fmt.Sprintf("UPDATE study_sessions SET %s WHERE id = $%d", strings.Join(sets, ", "), argIdx)
	args = append(args, id)

	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

const sessionColumns = `id, user_id, title, description, tags, status, is_public, share_token,
	started_at, last_auto_save_at, saved_at, total_duration_seconds, session_state,
	ai_summary, ai_summary_generated_at, updated_at`

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	s := &models.StudySession{}
	query := "SELECT " + sessionColumns + " FROM study_sessions WHERE id = $1"

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Title, &s.Description, &s.Tags, &s.Status, &s.IsPublic, &s.ShareToken,
		&s.StartedAt, &s.LastAutoSaveAt, &s.SavedAt, &s.TotalDurationSeconds, &s.SessionState,
		&s.AISummary, &s.AISummaryGeneratedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessions returns summary rows (no child collections), most recently
// updated first.
func (r *SessionRepo) ListSessions(ctx context.Context, ownerID uuid.UUID) ([]*models.StudySession, error) {
	query := "SELECT " + sessionColumns + " FROM study_sessions WHERE user_id = $1 ORDER BY updated_at DESC"

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.StudySession
	for rows.Next() {
		s := &models.StudySession{}
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Title, &s.Description, &s.Tags, &s.Status, &s.IsPublic, &s.ShareToken,
			&s.StartedAt, &s.LastAutoSaveAt, &s.SavedAt, &s.TotalDurationSeconds, &s.SessionState,
			&s.AISummary, &s.AISummaryGeneratedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// DeleteSession removes the row; child rows go with it via ON DELETE CASCADE.
func (r *SessionRepo) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM study_sessions WHERE id = $1", id)
	return err
}

// IssueShareToken mints an opaque token. Idempotent in the sense that every
// call yields a fresh usable token.
func (r *SessionRepo) IssueShareToken(ctx context.Context) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to mint share token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Tabs

func (r *SessionRepo) InsertTab(ctx context.Context, tab *models.Tab) error {
	if len(tab.TabState) == 0 {
		tab.TabState = json.RawMessage("{}")
	}
	query := `
		INSERT INTO session_tabs (id, session_id, tab_type, position, is_active, tab_state)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, tab.ID, tab.SessionID, tab.TabType, tab.Position, tab.IsActive, tab.TabState)
	return err
}

// SetActiveTab flips the session's active tab in one statement so two
// near-simultaneous opens cannot leave more than one row active.
func (r *SessionRepo) SetActiveTab(ctx context.Context, sessionID, tabID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE session_tabs
		SET is_active = (id = $2)
		WHERE session_id = $1
	`, sessionID, tabID)
	return err
}

// DeactivateTab marks remote rows of the given type inactive when a tab is
// closed, so closed tabs do not linger as stale active rows.
func (r *SessionRepo) DeactivateTab(ctx context.Context, sessionID uuid.UUID, tabType string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE session_tabs
		SET is_active = FALSE
		WHERE session_id = $1 AND tab_type = $2
	`, sessionID, tabType)
	return err
}

// ReplaceTabs full-overwrites the session's tab list, used by the auto-save
// flush. Delete-and-insert inside one transaction.
func (r *SessionRepo) ReplaceTabs(ctx context.Context, sessionID uuid.UUID, tabs []models.Tab) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM session_tabs WHERE session_id = $1", sessionID); err != nil {
		return err
	}

	for _, tab := range tabs {
		state := tab.TabState
		if len(state) == 0 {
			state = json.RawMessage("{}")
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO session_tabs (id, session_id, tab_type, position, is_active, tab_state, opened_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, tab.ID, sessionID, tab.TabType, tab.Position, tab.IsActive, state, tab.OpenedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *SessionRepo) ListTabs(ctx context.Context, sessionID uuid.UUID) ([]models.Tab, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, tab_type, position, is_active, tab_state, opened_at
		FROM session_tabs WHERE session_id = $1 ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tabs []models.Tab
	for rows.Next() {
		var t models.Tab
		if err := rows.Scan(&t.ID, &t.SessionID, &t.TabType, &t.Position, &t.IsActive, &t.TabState, &t.OpenedAt); err != nil {
			return nil, err
		}
		tabs = append(tabs, t)
	}
	return tabs, rows.Err()
}

// Verse visits

func (r *SessionRepo) InsertVerseVisit(ctx context.Context, v *models.VerseVisit) error {
	query := `
		INSERT INTO verse_visits (id, session_id, book, chapter, verse_start, verse_end)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, v.ID, v.SessionID, v.Book, v.Chapter, v.VerseStart, v.VerseEnd)
	return err
}

func (r *SessionRepo) ListVerseVisits(ctx context.Context, sessionID uuid.UUID) ([]models.VerseVisit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, book, chapter, verse_start, verse_end, visited_at
		FROM verse_visits WHERE session_id = $1 ORDER BY visited_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []models.VerseVisit
	for rows.Next() {
		var v models.VerseVisit
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Book, &v.Chapter, &v.VerseStart, &v.VerseEnd, &v.VisitedAt); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Principle interactions

func (r *SessionRepo) InsertPrincipleInteraction(ctx context.Context, p *models.PrincipleInteraction) error {
	if len(p.DataJSON) == 0 {
		p.DataJSON = json.RawMessage("{}")
	}
	query := `
		INSERT INTO principle_interactions (id, session_id, interaction_type, room_code, floor_number, principle_code, data_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query, p.ID, p.SessionID, p.InteractionType, p.RoomCode, p.FloorNumber, p.PrincipleCode, p.DataJSON)
	return err
}

func (r *SessionRepo) ListPrincipleInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.PrincipleInteraction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, interaction_type, room_code, floor_number, principle_code, data_json, created_at
		FROM principle_interactions WHERE session_id = $1 ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.PrincipleInteraction
	for rows.Next() {
		var p models.PrincipleInteraction
		if err := rows.Scan(&p.ID, &p.SessionID, &p.InteractionType, &p.RoomCode, &p.FloorNumber, &p.PrincipleCode, &p.DataJSON, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// Assistant interactions

func (r *SessionRepo) InsertAssistantInteraction(ctx context.Context, a *models.AssistantInteraction) error {
	if len(a.MetaJSON) == 0 {
		a.MetaJSON = json.RawMessage("{}")
	}
	query := `
		INSERT INTO assistant_interactions (id, session_id, prompt, response, analysis_type, meta_json)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, a.ID, a.SessionID, a.Prompt, a.Response, a.AnalysisType, a.MetaJSON)
	return err
}

func (r *SessionRepo) ListAssistantInteractions(ctx context.Context, sessionID uuid.UUID) ([]models.AssistantInteraction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, prompt, response, analysis_type, meta_json, created_at
		FROM assistant_interactions WHERE session_id = $1 ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.AssistantInteraction
	for rows.Next() {
		var a models.AssistantInteraction
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Prompt, &a.Response, &a.AnalysisType, &a.MetaJSON, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// Notes

func (r *SessionRepo) InsertNote(ctx context.Context, n *models.SessionNote) error {
	query := `
		INSERT INTO session_notes (id, session_id, content, note_type, verse_ref, room_code)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query, n.ID, n.SessionID, n.Content, n.NoteType, n.VerseRef, n.RoomCode)
	return err
}

func (r *SessionRepo) ListNotes(ctx context.Context, sessionID uuid.UUID) ([]models.SessionNote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, content, note_type, verse_ref, room_code, created_at
		FROM session_notes WHERE session_id = $1 ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.SessionNote
	for rows.Next() {
		var n models.SessionNote
		if err := rows.Scan(&n.ID, &n.SessionID, &n.Content, &n.NoteType, &n.VerseRef, &n.RoomCode, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
