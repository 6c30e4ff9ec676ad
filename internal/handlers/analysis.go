package handlers

import (
	"encoding/json"
	"net/http"

	"palace-backend/internal/middleware"
	"palace-backend/internal/models"
	"palace-backend/internal/recorder"
	"palace-backend/internal/services"
)

// AnalysisHandler serves synchronous verse analysis. The exchange is also
// tracked against the active session when one exists.
type AnalysisHandler struct {
	analysis *services.AnalysisService
	recorder *recorder.Recorder
}

func NewAnalysisHandler(analysis *services.AnalysisService, rec *recorder.Recorder) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis, recorder: rec}
}

func (h *AnalysisHandler) AnalyzeVerse(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.VerseAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Book == "" || req.Chapter <= 0 || req.Verse <= 0 || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "book, chapter, verse, and text are required", r))
		return
	}

	analysis, err := h.analysis.AnalyzeVerse(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	analysisType := "verse_analysis"
	responseJSON, _ := json.Marshal(analysis)
	h.recorder.TrackAssistantInteraction(userID, models.AssistantInteractionRequest{
		Prompt:       analysis.Reference,
		Response:     string(responseJSON),
		AnalysisType: &analysisType,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"analysis": analysis})
}
