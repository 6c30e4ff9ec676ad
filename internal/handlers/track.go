package handlers

import (
	"encoding/json"
	"net/http"

	"palace-backend/internal/middleware"
	"palace-backend/internal/models"
	"palace-backend/internal/recorder"
)

// TrackHandler exposes the event-recording surface. Tracking endpoints always
// return 202: the local mutation is synchronous, durability is best-effort.
type TrackHandler struct {
	recorder *recorder.Recorder
}

func NewTrackHandler(rec *recorder.Recorder) *TrackHandler {
	return &TrackHandler{recorder: rec}
}

func (h *TrackHandler) TabOpen(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.TabOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.TabType == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "tab_type is required", r))
		return
	}

	tab := h.recorder.TrackTabOpen(userID, req)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"tab":    tab,
		"prompt": h.recorder.Prompt(userID),
	})
}

func (h *TrackHandler) TabClose(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.TabCloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.TabType == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "tab_type is required", r))
		return
	}

	h.recorder.TrackTabClose(userID, req.TabType)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Tab close recorded"})
}

func (h *TrackHandler) VerseAccess(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.VerseAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Book == "" || req.Chapter <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "book and chapter are required", r))
		return
	}

	h.recorder.TrackVerseAccess(userID, req)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Verse access recorded"})
}

func (h *TrackHandler) PrincipleInteraction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.PrincipleInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.InteractionType == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "interaction_type is required", r))
		return
	}

	h.recorder.TrackPrincipleInteraction(userID, req)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Interaction recorded"})
}

func (h *TrackHandler) AssistantInteraction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.AssistantInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "prompt is required", r))
		return
	}

	h.recorder.TrackAssistantInteraction(userID, req)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Interaction recorded"})
}

func (h *TrackHandler) Note(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.SessionNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "content is required", r))
		return
	}

	h.recorder.AddSessionNote(userID, req)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Note recorded"})
}

func (h *TrackHandler) PromptState(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	writeJSON(w, http.StatusOK, h.recorder.Prompt(userID))
}

func (h *TrackHandler) DismissPrompt(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	h.recorder.DismissPrompt(userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Prompt dismissed"})
}

func (h *TrackHandler) PendingWrites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.recorder.PendingWrites())
}
