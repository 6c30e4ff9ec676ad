package services

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"palace-backend/internal/models"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripCodeFence(tc.input); got != tc.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestMapGeminiError(t *testing.T) {
	var rateErr *RateLimitError
	if err := mapGeminiError(&googleapi.Error{Code: 429}); !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError for 429, got %T", err)
	}

	var payErr *PaymentRequiredError
	if err := mapGeminiError(&googleapi.Error{Code: 402}); !errors.As(err, &payErr) {
		t.Fatalf("expected PaymentRequiredError for 402, got %T", err)
	}

	plain := errors.New("connection reset")
	if err := mapGeminiError(plain); !errors.Is(err, plain) {
		t.Fatalf("expected wrapped original error, got %v", err)
	}
}

func TestBuildVerseAnalysisPrompt(t *testing.T) {
	prompt := buildVerseAnalysisPrompt(models.VerseAnalysisRequest{
		Book: "Romans", Chapter: 8, Verse: 28,
		Text: "And we know that all things work together for good",
	})

	for _, want := range []string{"Romans 8:28", "sanctuary_items", "cross_references", "ONLY a valid JSON object"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSessionSummaryPrompt(t *testing.T) {
	start := 16
	session := &models.StudySession{
		Title:                "Evening study",
		TotalDurationSeconds: 600,
		VerseVisits: []models.VerseVisit{
			{Book: "John", Chapter: 3, VerseStart: &start},
			{Book: "Psalms", Chapter: 23},
		},
		Notes: []models.SessionNote{
			{NoteType: "insight", Content: "God's love precedes belief"},
		},
	}

	prompt := buildSessionSummaryPrompt(session)

	for _, want := range []string{"Evening study", "10 minutes", "John 3:16", "Psalms 23", "[insight]"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
