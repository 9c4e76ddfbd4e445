package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/Metzpapa/bleai/pkg/types"
)

// systemPromptTemplate is filled with the task title, the rubric, and a
// sentence describing which evidence accompanies the images.
const systemPromptTemplate = `You are an experienced communication coach reviewing one recorded practice attempt.

The user practiced the task: %q.

Grade the attempt against this rubric:

%s

The attempt is provided as a sequence of contact sheets: 3x3 grids of video frames in chronological order, each frame labelled with its M:SS.s timestamp. Use the frames to judge body language, eye contact, setting, and visual aids. %s

Respond ONLY with a JSON object in this exact format:
{
  "overallScore": <integer 0-100>,
  "summary": "<2-4 sentence overall assessment>",
  "strengths": ["<what went well>", ...],
  "areasForImprovement": ["<what to work on>", ...],
  "feedback": [
    {
      "startTime": <seconds from recording start>,
      "endTime": <seconds from recording start>,
      "category": "positive" | "improvement" | "critical",
      "title": "<short headline>",
      "feedback": "<what happened and why it matters>",
      "suggestion": "<optional concrete alternative phrasing or behavior>"
    }
  ]
}

Anchor every feedback item to the moment it refers to using the frame labels and transcript timestamps.`

const (
	transcriptEvidence   = "The transcript of the attempt follows in the user message, with [M:SS] markers."
	conversationEvidence = "The turn-by-turn log of the live conversation follows in the user message, with [M:SS] markers."
	noSpeechEvidence     = "No speech was detected in the recording; grade on the visual evidence alone."
)

// SystemPrompt renders the coach instruction for the given request.
func SystemPrompt(req Request) string {
	evidence := transcriptEvidence
	switch {
	case req.Interactive:
		evidence = conversationEvidence
	case req.Transcript == nil || strings.TrimSpace(req.Transcript.Text) == "":
		evidence = noSpeechEvidence
	}
	return fmt.Sprintf(systemPromptTemplate, req.TaskTitle, req.Rubric, evidence)
}

// UserText renders the textual evidence (transcript or conversation log)
// that accompanies the contact sheet images in the user message.
func UserText(req Request) string {
	if req.Interactive && len(req.Conversation) > 0 {
		return "Conversation log:\n" + renderConversation(req.Conversation)
	}
	if req.Transcript != nil && strings.TrimSpace(req.Transcript.Text) != "" {
		return "Transcript:\n" + renderTranscript(req.Transcript)
	}
	return "No speech was detected in the recording."
}

// renderTranscript lays the transcript out in timestamped lines of roughly
// ten seconds each, so the model can anchor feedback to playback positions.
// Without word timings it falls back to the plain text.
func renderTranscript(t *types.Transcript) string {
	if len(t.Words) == 0 {
		return strings.TrimSpace(t.Text)
	}

	var b strings.Builder
	var lineStart time.Duration
	var line []string

	flush := func() {
		if len(line) == 0 {
			return
		}
		fmt.Fprintf(&b, "[%s] %s\n", formatClock(lineStart), strings.Join(line, " "))
		line = line[:0]
	}

	for _, w := range t.Words {
		if len(line) == 0 {
			lineStart = w.Start
		}
		line = append(line, w.Word)
		if w.End-lineStart >= 10*time.Second {
			flush()
		}
	}
	flush()

	return strings.TrimRight(b.String(), "\n")
}

func renderConversation(turns []types.ConversationTurn) string {
	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "[%s] %s: %s\n", formatClock(turn.Timestamp), turn.Role, turn.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
