package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Metzpapa/bleai/internal/coordinator"
	"github.com/Metzpapa/bleai/internal/session"
	"github.com/Metzpapa/bleai/internal/task"
	"github.com/Metzpapa/bleai/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// Wire shapes
// ─────────────────────────────────────────────────────────────────────────────

// sessionResponse is the JSON shape of a session record.
type sessionResponse struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	State     string          `json:"state"`
	Stage     string          `json:"stage,omitempty"`
	Fraction  float64         `json:"fraction"`
	Report    *reportResponse `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// reportResponse mirrors types.FeedbackReport with second-based timestamps,
// which is what the review player seeks with.
type reportResponse struct {
	OverallScore        int                `json:"overall_score"`
	Summary             string             `json:"summary"`
	Strengths           []string           `json:"strengths,omitempty"`
	AreasForImprovement []string           `json:"areas_for_improvement,omitempty"`
	Feedback            []feedbackResponse `json:"feedback,omitempty"`
}

type feedbackResponse struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Category   string  `json:"category"`
	Title      string  `json:"title"`
	Feedback   string  `json:"feedback"`
	Suggestion string  `json:"suggestion,omitempty"`
}

func toSessionResponse(sess session.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		TaskID:    sess.TaskID,
		State:     sess.State.String(),
		Stage:     sess.Stage,
		Fraction:  sess.Fraction,
		Report:    toReportResponse(sess.Report),
		Error:     sess.Error,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}

func toReportResponse(r *types.FeedbackReport) *reportResponse {
	if r == nil {
		return nil
	}
	resp := &reportResponse{
		OverallScore:        r.OverallScore,
		Summary:             r.Summary,
		Strengths:           r.Strengths,
		AreasForImprovement: r.AreasForImprovement,
	}
	for _, item := range r.Feedback {
		resp.Feedback = append(resp.Feedback, feedbackResponse{
			StartTime:  item.StartTime.Seconds(),
			EndTime:    item.EndTime.Seconds(),
			Category:   item.Category.String(),
			Title:      item.Title,
			Feedback:   item.Feedback,
			Suggestion: item.Suggestion,
		})
	}
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

// handleCreateSession takes a multipart upload with a task_id field and, for
// recorded tasks, a video part. The video is spooled to disk, the session is
// created, and processing starts in the background; the response is a 202
// with the fresh record.
//
// Interactive tasks upload no video here: the client runs the live session
// first and attaches its recording through the media endpoint afterwards.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	form, err := s.readUploadForm(r)
	if err != nil {
		s.uploadError(w, err)
		return
	}
	keepMedia := false
	defer func() {
		if !keepMedia && form.mediaPath != "" {
			os.Remove(form.mediaPath)
		}
	}()

	if form.taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id field is required")
		return
	}
	t, err := s.tasks.Get(r.Context(), form.taskID)
	if errors.Is(err, task.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "load task", err)
		return
	}

	if t.Interactive {
		if form.mediaPath != "" {
			writeError(w, http.StatusBadRequest, "interactive tasks run the live session first; upload the recording through the media endpoint")
			return
		}
	} else if form.mediaPath == "" {
		writeError(w, http.StatusBadRequest, "video field is required")
		return
	}

	sess, err := s.sessions.Create(t.ID)
	if err != nil {
		s.internalError(w, "create session", err)
		return
	}

	if !t.Interactive {
		keepMedia = true
		go s.runSession(sess.ID, t, form.mediaPath, nil)
	}

	s.log.Info("session created",
		"session_id", sess.ID,
		"task_id", t.ID,
		"interactive", t.Interactive,
	)
	writeJSON(w, http.StatusAccepted, toSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// handleCancelSession cancels an in-flight run. The pipeline goroutine
// observes the cancellation and discards the session; a run that has not
// started yet is discarded directly.
func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if sess.State.Terminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("session already %s", sess.State))
		return
	}

	if !s.cancelRun(id) {
		if err := s.sessions.Discard(id); err != nil && !errors.Is(err, session.ErrInvalidTransition) {
			s.internalError(w, "discard session", err)
			return
		}
	}

	s.log.Info("session cancelled", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionMedia attaches the recorded video to a pending session and
// starts processing. This is the second half of the interactive flow: the
// live relay has already stored the conversation log on the record.
func (s *Server) handleSessionMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.sessions.Get(id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if sess.State != session.StatePending {
		writeError(w, http.StatusConflict, fmt.Sprintf("session is %s; media attaches to a pending session", sess.State))
		return
	}

	t, err := s.tasks.Get(r.Context(), sess.TaskID)
	if err != nil {
		s.internalError(w, "load task", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	form, err := s.readUploadForm(r)
	if err != nil {
		s.uploadError(w, err)
		return
	}
	if form.mediaPath == "" {
		writeError(w, http.StatusBadRequest, "video field is required")
		return
	}

	go s.runSession(id, t, form.mediaPath, sess.Turns)

	writeJSON(w, http.StatusAccepted, toSessionResponse(sess))
}

// ─────────────────────────────────────────────────────────────────────────────
// Upload intake
// ─────────────────────────────────────────────────────────────────────────────

// uploadForm is the parsed result of a session upload request.
type uploadForm struct {
	taskID    string
	mediaPath string
}

// readUploadForm streams the multipart body, spooling the video part to a
// temporary file so the request can return before processing starts. The
// caller owns the spool file.
func (s *Server) readUploadForm(r *http.Request) (uploadForm, error) {
	var form uploadForm

	mr, err := r.MultipartReader()
	if err != nil {
		return form, fmt.Errorf("multipart form required: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			os.Remove(form.mediaPath)
			return uploadForm{}, err
		}

		switch part.FormName() {
		case "task_id":
			data, err := io.ReadAll(io.LimitReader(part, 256))
			if err != nil {
				os.Remove(form.mediaPath)
				return uploadForm{}, err
			}
			form.taskID = strings.TrimSpace(string(data))
		case "video":
			path, err := spool(part)
			if err != nil {
				return uploadForm{}, err
			}
			form.mediaPath = path
		default:
			// Unknown parts are drained so the reader can advance.
			_, _ = io.Copy(io.Discard, part)
		}
		part.Close()
	}
}

// spool copies the upload to a temporary file and returns its path.
func spool(r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "bleai-upload-*")
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// uploadError maps intake failures onto status codes: an overrun body limit
// is a 413, anything else a 400.
func (s *Server) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds the %d MiB limit", tooLarge.Limit/mib))
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// ─────────────────────────────────────────────────────────────────────────────
// Background run
// ─────────────────────────────────────────────────────────────────────────────

// runSession drives the pipeline for one session and maps the outcome onto
// the record: report → complete, cancellation → discarded, anything else →
// failed. Runs on its own goroutine; owns the spooled media file.
func (s *Server) runSession(id string, t task.Task, mediaPath string, conversation []types.ConversationTurn) {
	defer os.Remove(mediaPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.registerCancel(id, cancel)
	defer s.dropCancel(id)

	if err := s.sessions.Start(id); err != nil {
		// Cancelled between upload and start; nothing to clean up.
		s.log.Debug("session start skipped", "session_id", id, "error", err)
		return
	}

	f, err := os.Open(mediaPath)
	if err != nil {
		_ = s.sessions.Fail(id, "reopen upload: "+err.Error())
		return
	}
	defer f.Close()

	report, err := s.processor.Process(ctx, coordinator.ProcessRequest{
		Media:        f,
		Task:         t,
		Conversation: conversation,
		Interactive:  t.Interactive,
		OnProgress: func(stage string, fraction float64) {
			_ = s.sessions.SetProgress(id, stage, fraction)
		},
	})
	switch {
	case errors.Is(err, context.Canceled):
		_ = s.sessions.Discard(id)
	case err != nil:
		s.log.Error("session processing failed", "session_id", id, "task_id", t.ID, "error", err)
		_ = s.sessions.Fail(id, err.Error())
	default:
		if err := s.sessions.Complete(id, report); err != nil {
			s.log.Warn("session completion rejected", "session_id", id, "error", err)
			return
		}
		s.log.Info("session complete",
			"session_id", id,
			"task_id", t.ID,
			"score", report.OverallScore,
		)
	}
}
