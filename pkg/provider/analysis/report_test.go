package analysis

import (
	"testing"
	"time"

	"github.com/Metzpapa/bleai/pkg/types"
)

const sampleReport = `{
	"overallScore": 72,
	"summary": "A solid attempt with room to tighten the opening.",
	"strengths": ["Clear voice", "Good pacing"],
	"areasForImprovement": ["Eye contact"],
	"feedback": [
		{
			"startTime": 42.5,
			"endTime": 48.0,
			"category": "improvement",
			"title": "Looked away during the ask",
			"feedback": "You broke eye contact right at the key moment.",
			"suggestion": "Hold your gaze through the question."
		},
		{
			"startTime": 3.0,
			"endTime": 9.5,
			"category": "positive",
			"title": "Strong opening",
			"feedback": "You stated the purpose within the first ten seconds."
		}
	]
}`

func TestParseReport(t *testing.T) {
	report, err := ParseReport(sampleReport)
	if err != nil {
		t.Fatalf("ParseReport() error = %v", err)
	}

	if report.OverallScore != 72 {
		t.Errorf("OverallScore = %d, want 72", report.OverallScore)
	}
	if report.Summary == "" {
		t.Error("Summary is empty")
	}
	if len(report.Strengths) != 2 {
		t.Errorf("len(Strengths) = %d, want 2", len(report.Strengths))
	}
	if len(report.AreasForImprovement) != 1 {
		t.Errorf("len(AreasForImprovement) = %d, want 1", len(report.AreasForImprovement))
	}
	if len(report.Feedback) != 2 {
		t.Fatalf("len(Feedback) = %d, want 2", len(report.Feedback))
	}

	// Items come back sorted by start time.
	first := report.Feedback[0]
	if first.StartTime != 3*time.Second {
		t.Errorf("Feedback[0].StartTime = %v, want 3s", first.StartTime)
	}
	if first.Category != types.CategoryPositive {
		t.Errorf("Feedback[0].Category = %q, want positive", first.Category)
	}
	if first.Suggestion != "" {
		t.Errorf("Feedback[0].Suggestion = %q, want empty", first.Suggestion)
	}

	second := report.Feedback[1]
	if second.StartTime != 42500*time.Millisecond {
		t.Errorf("Feedback[1].StartTime = %v, want 42.5s", second.StartTime)
	}
	if second.EndTime != 48*time.Second {
		t.Errorf("Feedback[1].EndTime = %v, want 48s", second.EndTime)
	}
	if second.Suggestion == "" {
		t.Error("Feedback[1].Suggestion is empty")
	}
}

func TestParseReportMarkdownFenced(t *testing.T) {
	fenced := "```json\n" + sampleReport + "\n```"
	report, err := ParseReport(fenced)
	if err != nil {
		t.Fatalf("ParseReport() error = %v", err)
	}
	if report.OverallScore != 72 {
		t.Errorf("OverallScore = %d, want 72", report.OverallScore)
	}
}

func TestParseReportClampsScore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"above range", `{"overallScore": 150, "summary": "s"}`, 100},
		{"below range", `{"overallScore": -3, "summary": "s"}`, 0},
		{"fractional", `{"overallScore": 71.6, "summary": "s"}`, 72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseReport(tt.raw)
			if err != nil {
				t.Fatalf("ParseReport() error = %v", err)
			}
			if report.OverallScore != tt.want {
				t.Errorf("OverallScore = %d, want %d", report.OverallScore, tt.want)
			}
		})
	}
}

func TestParseReportDropsUnknownCategory(t *testing.T) {
	raw := `{
		"overallScore": 50,
		"summary": "s",
		"feedback": [
			{"startTime": 1, "endTime": 2, "category": "observation", "title": "t", "feedback": "f"},
			{"startTime": 3, "endTime": 4, "category": "CRITICAL", "title": "t", "feedback": "f"}
		]
	}`
	report, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("ParseReport() error = %v", err)
	}
	if len(report.Feedback) != 1 {
		t.Fatalf("len(Feedback) = %d, want 1", len(report.Feedback))
	}
	if report.Feedback[0].Category != types.CategoryCritical {
		t.Errorf("Category = %q, want critical", report.Feedback[0].Category)
	}
}

func TestParseReportNormalizesTimes(t *testing.T) {
	raw := `{
		"overallScore": 50,
		"summary": "s",
		"feedback": [
			{"startTime": -2, "endTime": 1, "category": "positive", "title": "t", "feedback": "f"},
			{"startTime": 10, "endTime": 4, "category": "positive", "title": "t", "feedback": "f"}
		]
	}`
	report, err := ParseReport(raw)
	if err != nil {
		t.Fatalf("ParseReport() error = %v", err)
	}
	if got := report.Feedback[0].StartTime; got != 0 {
		t.Errorf("negative start clamped to %v, want 0", got)
	}
	if got := report.Feedback[1].EndTime; got != report.Feedback[1].StartTime {
		t.Errorf("inverted end = %v, want pinned to start %v", got, report.Feedback[1].StartTime)
	}
}

func TestParseReportMalformed(t *testing.T) {
	if _, err := ParseReport("the attempt was fine I guess"); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding space", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripMarkdown(tt.in); got != tt.want {
				t.Errorf("stripMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

