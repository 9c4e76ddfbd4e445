package transcript_test

import (
	"context"
	"testing"
	"time"

	"github.com/Metzpapa/bleai/internal/transcript"
	"github.com/Metzpapa/bleai/internal/transcript/llmcorrect"
	"github.com/Metzpapa/bleai/internal/transcript/phonetic"
	"github.com/Metzpapa/bleai/pkg/provider/llm"
	"github.com/Metzpapa/bleai/pkg/provider/llm/mock"
	"github.com/Metzpapa/bleai/pkg/types"
)

// makeMockLLM creates a mock LLM provider that returns the given corrected
// text with a single declared correction.
func makeMockLLM(correctedText, origWord, corrWord string) *mock.Provider {
	return &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "` + correctedText + `", "corrections": [{"original": "` + origWord + `", "corrected": "` + corrWord + `", "confidence": 0.9}]}`,
		},
	}
}

func makeTranscript(text string, words ...types.Word) types.Transcript {
	return types.Transcript{
		Text:     text,
		Words:    words,
		Duration: 3 * time.Second,
	}
}

// --- Both stages ---

func TestCorrectionPipeline_BothStages(t *testing.T) {
	t.Parallel()

	phonMatcher := phonetic.New()
	mockLLM := makeMockLLM("Meridian fits the budget.", "budgot.", "budget.")
	llmCorrector := llmcorrect.New(mockLLM)

	pipeline := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonMatcher),
		transcript.WithLLMCorrector(llmCorrector),
		transcript.WithLLMOnLowConfidence(0.5),
	)

	// "budgot" carries a low confidence score to trigger the LLM stage;
	// "maridian" is handled by the phonetic stage.
	words := []types.Word{
		{Word: "maridian", Start: 0, End: time.Second, Confidence: 0.8},
		{Word: "fits", Start: time.Second, End: 2 * time.Second, Confidence: 0.9},
		{Word: "budgot", Start: 2 * time.Second, End: 3 * time.Second, Confidence: 0.25},
	}

	tr := makeTranscript("maridian fits the budgot.", words...)
	result, err := pipeline.Correct(context.Background(), tr, []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if result == nil {
		t.Fatal("Correct returned nil result")
	}
	if result.Original.Text != tr.Text {
		t.Errorf("Original.Text=%q, want %q", result.Original.Text, tr.Text)
	}
	// Corrections slice must be non-nil.
	if result.Corrections == nil {
		t.Error("Corrections is nil, want non-nil (even if empty)")
	}
	if len(mockLLM.CompleteCalls) != 1 {
		t.Errorf("LLM called %d times, want 1 (one low-confidence word)", len(mockLLM.CompleteCalls))
	}
	// The phonetic stage must have fixed the product name before the LLM ran.
	var phoneticFound bool
	for _, c := range result.Corrections {
		if c.Method == "phonetic" && c.Corrected == "Meridian" {
			phoneticFound = true
		}
	}
	if !phoneticFound {
		t.Errorf("no phonetic Meridian correction in %+v", result.Corrections)
	}
}

// --- Phonetic only ---

func TestCorrectionPipeline_PhoneticOnly(t *testing.T) {
	t.Parallel()

	phonMatcher := phonetic.New()
	pipeline := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonMatcher),
	)

	tr := makeTranscript("maridian is expensive.")
	result, err := pipeline.Correct(context.Background(), tr, []string{"Meridian", "Kovacs"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if result.Corrections == nil {
		t.Error("Corrections is nil, want non-nil")
	}
	if result.Corrected != "Meridian is expensive." {
		t.Errorf("Corrected=%q, want %q", result.Corrected, "Meridian is expensive.")
	}
	for _, c := range result.Corrections {
		if c.Method != "phonetic" {
			t.Errorf("expected phonetic correction, got method=%q", c.Method)
		}
	}
}

// --- LLM only ---

func TestCorrectionPipeline_LLMOnly(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "Meridian arrived.", "corrections": [{"original": "maridiam", "corrected": "Meridian", "confidence": 0.88}]}`,
		},
	}
	llmCorrector := llmcorrect.New(mockLLM)
	pipeline := transcript.NewPipeline(
		transcript.WithLLMCorrector(llmCorrector),
	)

	// No per-word data → LLM always runs.
	tr := makeTranscript("maridiam arrived.")
	result, err := pipeline.Correct(context.Background(), tr, []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	if result == nil {
		t.Fatal("result is nil")
	}
	if len(mockLLM.CompleteCalls) == 0 {
		t.Fatal("LLM was not called")
	}
	if result.Corrected != "Meridian arrived." {
		t.Errorf("Corrected=%q, want %q", result.Corrected, "Meridian arrived.")
	}
	llmCorrectionFound := false
	for _, c := range result.Corrections {
		if c.Method == "llm" {
			llmCorrectionFound = true
			break
		}
	}
	if !llmCorrectionFound {
		t.Error("no LLM correction found in result.Corrections")
	}
}

// --- Low-confidence filtering ---

func TestCorrectionPipeline_LowConfidenceFiltering(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "Meridian ships quarterly.", "corrections": []}`,
		},
	}
	llmCorrector := llmcorrect.New(mockLLM)
	pipeline := transcript.NewPipeline(
		transcript.WithLLMCorrector(llmCorrector),
		transcript.WithLLMOnLowConfidence(0.5),
	)

	// All words above threshold → LLM should NOT be called.
	words := []types.Word{
		{Word: "meridian", Confidence: 0.95},
		{Word: "ships", Confidence: 0.98},
		{Word: "quarterly", Confidence: 0.92},
	}
	tr := makeTranscript("meridian ships quarterly.", words...)
	result, err := pipeline.Correct(context.Background(), tr, []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(mockLLM.CompleteCalls) != 0 {
		t.Errorf("LLM called %d times, want 0 (all words high-confidence)", len(mockLLM.CompleteCalls))
	}
}

func TestCorrectionPipeline_LLMRunsOnLowConfidence(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "Meridian ships quarterly.", "corrections": []}`,
		},
	}
	llmCorrector := llmcorrect.New(mockLLM)
	pipeline := transcript.NewPipeline(
		transcript.WithLLMCorrector(llmCorrector),
		transcript.WithLLMOnLowConfidence(0.5),
	)

	// One word below threshold → LLM should be called.
	words := []types.Word{
		{Word: "maridiam", Confidence: 0.2}, // low confidence
		{Word: "ships", Confidence: 0.98},
		{Word: "quarterly", Confidence: 0.92},
	}
	tr := makeTranscript("maridiam ships quarterly.", words...)
	_, err := pipeline.Correct(context.Background(), tr, []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if len(mockLLM.CompleteCalls) != 1 {
		t.Errorf("LLM called %d times, want 1 (one low-confidence word)", len(mockLLM.CompleteCalls))
	}
}

func TestCorrectionPipeline_UnscoredWordsRunLLM(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"corrected_text": "Meridian ships quarterly.", "corrections": []}`,
		},
	}
	llmCorrector := llmcorrect.New(mockLLM)
	pipeline := transcript.NewPipeline(
		transcript.WithLLMCorrector(llmCorrector),
	)

	// Words with timing but zero confidence scores count as unscored, so the
	// LLM pass runs unconditionally.
	words := []types.Word{
		{Word: "meridian", Start: 0, End: time.Second},
		{Word: "ships", Start: time.Second, End: 2 * time.Second},
	}
	tr := makeTranscript("meridian ships quarterly.", words...)
	_, err := pipeline.Correct(context.Background(), tr, []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if len(mockLLM.CompleteCalls) != 1 {
		t.Errorf("LLM called %d times, want 1 (unscored words)", len(mockLLM.CompleteCalls))
	}
}

// --- No stages configured ---

func TestCorrectionPipeline_NoStages(t *testing.T) {
	t.Parallel()

	pipeline := transcript.NewPipeline()
	tr := makeTranscript("maridian ships quarterly.")
	result, err := pipeline.Correct(context.Background(), tr, []string{"Meridian"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	if result.Corrected != tr.Text {
		t.Errorf("Corrected=%q, want original %q when no stages configured", result.Corrected, tr.Text)
	}
	if len(result.Corrections) != 0 {
		t.Errorf("expected 0 corrections with no stages, got %d", len(result.Corrections))
	}
}

// --- Original preserved ---

func TestCorrectionPipeline_OriginalPreserved(t *testing.T) {
	t.Parallel()

	phonMatcher := phonetic.New()
	pipeline := transcript.NewPipeline(
		transcript.WithPhoneticMatcher(phonMatcher),
	)

	tr := makeTranscript("kovacs entered the room.")
	result, err := pipeline.Correct(context.Background(), tr, []string{"Kovacs"})
	if err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	// Original must always equal the input transcript.
	if result.Original.Text != tr.Text {
		t.Errorf("Original.Text=%q, want %q", result.Original.Text, tr.Text)
	}
}
