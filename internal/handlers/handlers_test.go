package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"palace-backend/internal/models"
	"palace-backend/internal/recorder"
	"palace-backend/internal/services"
)

// ─── Error Mapping Tests ───

func TestHandleServiceError_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &services.ValidationError{Fields: map[string]string{"email": "bad"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "taken"}, http.StatusConflict, "CONFLICT"},
		{"not found", &services.NotFoundError{Message: "gone"}, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", &services.UnauthorizedError{Message: "nope"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"rate limited", &services.RateLimitError{Message: "slow down"}, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"quota exhausted", &services.PaymentRequiredError{Message: "quota"}, http.StatusPaymentRequired, "QUOTA_EXHAUSTED"},
		{"malformed ai output", &services.MalformedResponseError{}, http.StatusBadGateway, "MALFORMED_AI_RESPONSE"},
		{"auth required", recorder.ErrAuthRequired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no active session", recorder.ErrNoActiveSession, http.StatusNotFound, "NO_ACTIVE_SESSION"},
		{"session active", recorder.ErrSessionActive, http.StatusConflict, "SESSION_ACTIVE"},
		{"not owner", recorder.ErrNotOwner, http.StatusForbidden, "FORBIDDEN"},
		{"load incomplete", recorder.ErrLoadIncomplete, http.StatusInternalServerError, "LOAD_INCOMPLETE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", "req-123")

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error.Code != tc.wantCode {
				t.Errorf("expected code %q, got %q", tc.wantCode, resp.Error.Code)
			}
			if resp.Error.RequestID != "req-123" {
				t.Errorf("expected request ID to be echoed, got %q", resp.Error.RequestID)
			}
		})
	}
}

func TestErrorRespWithFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", nil)
	req.Header.Set("X-Request-ID", "abc")

	resp := errorRespWithFields("VALIDATION_ERROR", "Validation failed",
		map[string]string{"password": "too short"}, req)

	if resp.Error.Fields["password"] != "too short" {
		t.Errorf("expected field error to survive, got %v", resp.Error.Fields)
	}
	if resp.Error.RequestID != "abc" {
		t.Errorf("expected request ID 'abc', got %q", resp.Error.RequestID)
	}
}

// ─── Track Handler Validation Tests ───

func TestTrackHandler_RejectsMissingFields(t *testing.T) {
	// Validation happens before any recorder call.
	h := NewTrackHandler(nil)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    map[string]interface{}
	}{
		{"tab open without type", h.TabOpen, map[string]interface{}{}},
		{"tab close without type", h.TabClose, map[string]interface{}{}},
		{"verse without book", h.VerseAccess, map[string]interface{}{"chapter": 3}},
		{"verse without chapter", h.VerseAccess, map[string]interface{}{"book": "John"}},
		{"principle without type", h.PrincipleInteraction, map[string]interface{}{}},
		{"assistant without prompt", h.AssistantInteraction, map[string]interface{}{"response": "x"}},
		{"note without content", h.Note, map[string]interface{}{"note_type": "insight"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jsonBody, _ := json.Marshal(tc.body)
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(jsonBody))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			tc.handler(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestWriteJSON_SetsContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusAccepted, map[string]string{"message": "ok"})

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}
