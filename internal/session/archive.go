package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Metzpapa/bleai/pkg/types"
)

// Record is one line in the report archive: a compact summary of a
// completed session, not the full report.
type Record struct {
	// Timestamp is when the report was archived (UTC).
	Timestamp time.Time `json:"timestamp"`

	// SessionID and TaskID identify the run.
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`

	// OverallScore is the report's 0-100 score.
	OverallScore int `json:"overall_score"`

	// Summary is the report's one-paragraph assessment.
	Summary string `json:"summary,omitempty"`

	// FeedbackItems is the number of timestamped feedback items.
	FeedbackItems int `json:"feedback_items"`
}

// FileArchive records completed reports as append-only JSON lines in a
// local file, one [Record] per line. This keeps a score history across
// restarts of the ephemeral session store and is sufficient for a small
// deployment; for durable storage swap in a database-backed archiver.
//
// FileArchive is safe for concurrent use.
type FileArchive struct {
	mu   sync.Mutex
	path string
}

var _ ReportArchiver = (*FileArchive)(nil)

// NewFileArchive creates an archive writing to the given file path.
// The file is created on first save if it does not exist.
func NewFileArchive(path string) *FileArchive {
	return &FileArchive{path: path}
}

// SaveReport appends a summary line for the completed session.
func (a *FileArchive) SaveReport(sessionID, taskID string, report *types.FeedbackReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := Record{
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		TaskID:    taskID,
	}
	if report != nil {
		rec.OverallScore = report.OverallScore
		rec.Summary = report.Summary
		rec.FeedbackItems = len(report.Feedback)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal archive record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("session: open archive file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("session: write archive record: %w", err)
	}
	return nil
}
