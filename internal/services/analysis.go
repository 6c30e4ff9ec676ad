package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"palace-backend/internal/models"
)

// AnalysisService wraps Gemini for verse analysis, practice feedback, and
// session summaries. Callers decide what happens on failure; there is no
// automatic retry here.
type AnalysisService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	redis    *redis.Client
	rateChan chan struct{} // Token bucket
}

func NewAnalysisService(apiKey string, concurrentReqs int, redisClient *redis.Client) (*AnalysisService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &AnalysisService{
		client:   client,
		model:    model,
		redis:    redisClient,
		rateChan: rateChan,
	}, nil
}

func (s *AnalysisService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *AnalysisService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *AnalysisService) releaseRate() {
	s.rateChan <- struct{}{}
}

// PublishUpdate sends a WebSocket update via Redis pub/sub
func (s *AnalysisService) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	s.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}

// AnalyzeVerse returns the structured interpretive tagging for one passage.
func (s *AnalysisService) AnalyzeVerse(ctx context.Context, req models.VerseAnalysisRequest) (*models.VerseAnalysis, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	prompt := buildVerseAnalysisPrompt(req)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, mapGeminiError(err)
	}

	rawText := stripCodeFence(extractText(resp))

	var analysis models.VerseAnalysis
	if err := json.Unmarshal([]byte(rawText), &analysis); err != nil {
		// Try to extract JSON object
		start := strings.Index(rawText, "{")
		end := strings.LastIndex(rawText, "}")
		if start < 0 || end <= start {
			return nil, &MalformedResponseError{Raw: rawText}
		}
		if err := json.Unmarshal([]byte(rawText[start:end+1]), &analysis); err != nil {
			return nil, &MalformedResponseError{Raw: rawText}
		}
	}

	if analysis.Reference == "" {
		analysis.Reference = fmt.Sprintf("%s %d:%d", req.Book, req.Chapter, req.Verse)
	}

	return &analysis, nil
}

// VerseFeedback returns free-text feedback on a memorization attempt.
func (s *AnalysisService) VerseFeedback(ctx context.Context, req models.PracticeFeedbackRequest) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	prompt := buildPracticeFeedbackPrompt(req)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", mapGeminiError(err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		log.Println("WARNING: Gemini returned empty feedback. Using fallback.")
		text = "We could not generate feedback for this attempt. Please try again."
	}

	return text, nil
}

// SessionSummary produces the prose summary stored on the session row.
func (s *AnalysisService) SessionSummary(ctx context.Context, session *models.StudySession) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	prompt := buildSessionSummaryPrompt(session)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", mapGeminiError(err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", &MalformedResponseError{Raw: ""}
	}

	return text, nil
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func mapGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &RateLimitError{Message: "AI provider rate limit exceeded, please retry later"}
		case http.StatusPaymentRequired:
			return &PaymentRequiredError{Message: "AI provider quota exhausted"}
		}
	}
	return fmt.Errorf("Gemini API error: %w", err)
}

func buildVerseAnalysisPrompt(req models.VerseAnalysisRequest) string {
	var b strings.Builder

	b.WriteString("You are a biblical studies assistant. Analyze the passage below against a memory-palace study framework.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON object. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(`JSON schema:
{"reference": "string", "dimensions": ["string"], "cycles": ["string"], "sanctuary_items": ["string"], "cross_references": ["string"], "commentary": "string"}

dimensions: interpretive dimension codes the passage touches (e.g. "literal", "christological", "prophetic").
cycles: redemptive-cycle codes present in the passage.
sanctuary_items: sanctuary furniture the passage references or evokes, empty if none.
cross_references: up to 5 related passages as plain references.
commentary: 2-4 sentences, under 120 words.
`)

	b.WriteString(fmt.Sprintf("\nPassage: %s %d:%d\n", req.Book, req.Chapter, req.Verse))
	b.WriteString("---TEXT---\n")
	b.WriteString(req.Text)
	b.WriteString("\n---END---\n")

	return b.String()
}

func buildPracticeFeedbackPrompt(req models.PracticeFeedbackRequest) string {
	var b strings.Builder

	b.WriteString("You are a patient scripture-memorization coach. Compare the student's recitation attempt with the actual verse text.\n\n")
	b.WriteString("Point out omitted, added, or substituted words, then give one short encouragement. Return plain text only, under 120 words. Do not use markdown.\n\n")

	b.WriteString(fmt.Sprintf("Verse (%s):\n%s\n\n", req.VerseRef, req.VerseText))
	b.WriteString("Student's attempt:\n")
	b.WriteString(req.Submission)
	b.WriteString("\n")

	return b.String()
}

func buildSessionSummaryPrompt(session *models.StudySession) string {
	var b strings.Builder

	b.WriteString("You are a study journal assistant. Summarize the Bible study session described below in 3-5 sentences of flowing prose. Mention the passages visited and the main themes of the notes. Return plain text only.\n\n")

	b.WriteString(fmt.Sprintf("Session title: %s\n", session.Title))
	b.WriteString(fmt.Sprintf("Duration: %d minutes\n", session.TotalDurationSeconds/60))

	if len(session.VerseVisits) > 0 {
		b.WriteString("\nPassages visited:\n")
		for _, v := range session.VerseVisits {
			if v.VerseStart != nil {
				b.WriteString(fmt.Sprintf("- %s %d:%d\n", v.Book, v.Chapter, *v.VerseStart))
			} else {
				b.WriteString(fmt.Sprintf("- %s %d\n", v.Book, v.Chapter))
			}
		}
	}

	if len(session.Notes) > 0 {
		b.WriteString("\nNotes:\n")
		for _, n := range session.Notes {
			b.WriteString(fmt.Sprintf("- [%s] %s\n", n.NoteType, n.Content))
		}
	}

	if len(session.PrincipleInteractions) > 0 {
		b.WriteString(fmt.Sprintf("\nThe student worked through %d study-principle exercises.\n", len(session.PrincipleInteractions)))
	}

	return b.String()
}

// Errors specific to the AI provider

type PaymentRequiredError struct{ Message string }

func (e *PaymentRequiredError) Error() string { return e.Message }

type MalformedResponseError struct{ Raw string }

func (e *MalformedResponseError) Error() string { return "AI provider returned unparseable output" }
