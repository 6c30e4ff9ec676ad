package models

// VerseAnalysisRequest asks the AnalysisService for a structured reading of a
// passage.
type VerseAnalysisRequest struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// VerseAnalysis is the fixed interpretive-tag schema the AnalysisService
// returns. The recorder consumes it as-is; it does not validate theology.
type VerseAnalysis struct {
	Reference       string   `json:"reference"`
	Dimensions      []string `json:"dimensions"`
	Cycles          []string `json:"cycles"`
	SanctuaryItems  []string `json:"sanctuary_items"`
	CrossReferences []string `json:"cross_references"`
	Commentary      string   `json:"commentary"`
}

// PracticeFeedbackRequest carries one recitation attempt for AI feedback.
type PracticeFeedbackRequest struct {
	VerseRef   string `json:"verse_ref"`
	VerseText  string `json:"verse_text"`
	Submission string `json:"submission"`
}

type PracticeFeedbackResponse struct {
	Feedback string `json:"feedback"`
}
