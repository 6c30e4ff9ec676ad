package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"palace-backend/internal/middleware"
	"palace-backend/internal/models"
	"palace-backend/internal/repository"
	"palace-backend/internal/worker"
)

type PracticeHandler struct {
	practiceRepo *repository.PracticeRepo
	jobRepo      *repository.JobRepo
	redis        *redis.Client
}

func NewPracticeHandler(practiceRepo *repository.PracticeRepo, jobRepo *repository.JobRepo, redisClient *redis.Client) *PracticeHandler {
	return &PracticeHandler{
		practiceRepo: practiceRepo,
		jobRepo:      jobRepo,
		redis:        redisClient,
	}
}

func (h *PracticeHandler) CreateVerse(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.CreateMemoryVerseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Reference == "" || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "reference and text are required", r))
		return
	}

	verse := &models.MemoryVerse{
		UserID:    userID,
		Reference: req.Reference,
		Text:      req.Text,
	}
	if err := h.practiceRepo.CreateVerse(r.Context(), verse); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create memory verse", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"verse": verse})
}

func (h *PracticeHandler) ListVerses(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	verses, err := h.practiceRepo.ListVerses(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list memory verses", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"verses": verses})
}

func (h *PracticeHandler) DeleteVerse(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	verseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid verse ID", r))
		return
	}

	if err := h.practiceRepo.DeleteVerse(r.Context(), verseID, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete memory verse", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Memory verse deleted"})
}

// SubmitAttempt stores a recitation attempt and queues the feedback job.
func (h *PracticeHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	verseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid verse ID", r))
		return
	}

	var req models.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Submission == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "submission is required", r))
		return
	}

	verse, err := h.practiceRepo.GetVerse(r.Context(), verseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Memory verse not found", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to get memory verse", r))
		return
	}
	if verse.UserID != userID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Memory verse belongs to another user", r))
		return
	}

	attempt := &models.PracticeAttempt{
		UserID:     userID,
		VerseID:    verseID,
		Submission: req.Submission,
	}
	if err := h.practiceRepo.CreateAttempt(r.Context(), attempt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save attempt", r))
		return
	}

	job := &models.Job{
		UserID:      userID,
		Type:        "practice-feedback",
		ReferenceID: attempt.ID,
	}
	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	jobBytes, _ := json.Marshal(job)
	if err := h.redis.LPush(r.Context(), worker.QueueName(job.Type), string(jobBytes)).Err(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"attempt": attempt,
		"job_id":  job.ID,
	})
}

func (h *PracticeHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	verseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid verse ID", r))
		return
	}

	attempts, err := h.practiceRepo.ListAttempts(r.Context(), verseID, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list attempts", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}
