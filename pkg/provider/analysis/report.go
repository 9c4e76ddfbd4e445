package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Metzpapa/bleai/pkg/types"
)

// reportPayload mirrors the JSON object the model is instructed to return.
// Times are seconds from recording start; OverallScore tolerates fractional
// values because models do not always return clean integers.
type reportPayload struct {
	OverallScore        float64           `json:"overallScore"`
	Summary             string            `json:"summary"`
	Strengths           []string          `json:"strengths"`
	AreasForImprovement []string          `json:"areasForImprovement"`
	Feedback            []feedbackPayload `json:"feedback"`
}

type feedbackPayload struct {
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Category   string  `json:"category"`
	Title      string  `json:"title"`
	Feedback   string  `json:"feedback"`
	Suggestion string  `json:"suggestion"`
}

// ParseReport decodes a model response into a feedback report.
//
// The response may be wrapped in markdown code fences. Feedback items with
// an unrecognised category are dropped; the score is clamped to [0, 100];
// items are sorted by start time.
func ParseReport(raw string) (*types.FeedbackReport, error) {
	cleaned := stripMarkdown(raw)

	var payload reportPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("analysis: parse report JSON: %w", err)
	}

	report := &types.FeedbackReport{
		OverallScore:        clampScore(payload.OverallScore),
		Summary:             strings.TrimSpace(payload.Summary),
		Strengths:           payload.Strengths,
		AreasForImprovement: payload.AreasForImprovement,
	}

	for _, item := range payload.Feedback {
		category := types.FeedbackCategory(strings.ToLower(strings.TrimSpace(item.Category)))
		if !category.IsValid() {
			// Models occasionally invent categories; drop those items.
			continue
		}
		start := secondsToDuration(item.StartTime)
		if start < 0 {
			start = 0
		}
		end := secondsToDuration(item.EndTime)
		if end < start {
			end = start
		}
		report.Feedback = append(report.Feedback, types.FeedbackItem{
			StartTime:  start,
			EndTime:    end,
			Category:   category,
			Title:      strings.TrimSpace(item.Title),
			Feedback:   strings.TrimSpace(item.Feedback),
			Suggestion: strings.TrimSpace(item.Suggestion),
		})
	}

	sort.SliceStable(report.Feedback, func(i, j int) bool {
		return report.Feedback[i].StartTime < report.Feedback[j].StartTime
	})

	return report, nil
}

// stripMarkdown removes a wrapping markdown code fence, if present.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

func clampScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
