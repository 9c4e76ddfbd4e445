package coordinator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Metzpapa/bleai/internal/task"
	"github.com/Metzpapa/bleai/internal/transcript"
	"github.com/Metzpapa/bleai/pkg/media"
	analysismock "github.com/Metzpapa/bleai/pkg/provider/analysis/mock"
	transcribemock "github.com/Metzpapa/bleai/pkg/provider/transcribe/mock"
	"github.com/Metzpapa/bleai/pkg/types"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// fakeSource is an in-memory Source producing tiny synthetic frames.
type fakeSource struct {
	duration   time.Duration
	hasAudio   bool
	audio      []byte
	audioErr   error
	frameDelay time.Duration

	mu        sync.Mutex
	extracted int
	closed    bool
}

func (f *fakeSource) Duration() time.Duration { return f.duration }
func (f *fakeSource) HasAudio() bool          { return f.hasAudio }

func (f *fakeSource) ExtractFrame(ctx context.Context, at time.Duration) (image.Image, error) {
	if f.frameDelay > 0 {
		select {
		case <-time.After(f.frameDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.extracted++
	f.mu.Unlock()
	return image.NewGray(image.Rect(0, 0, 8, 8)), nil
}

func (f *fakeSource) ExtractAudio(context.Context) ([]byte, error) {
	if f.audioErr != nil {
		return nil, f.audioErr
	}
	if !f.hasAudio {
		return nil, errors.New("fake source has no audio track")
	}
	return f.audio, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// openerFor returns an OpenFunc that drains the upload and hands back src.
func openerFor(src *fakeSource) OpenFunc {
	return func(_ context.Context, r io.Reader) (Source, error) {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return nil, err
		}
		return src, nil
	}
}

// fakeRefiner is a canned transcript.Pipeline.
type fakeRefiner struct {
	corrected string
	err       error

	mu       sync.Mutex
	calls    int
	gotVocab []string
}

func (f *fakeRefiner) Correct(_ context.Context, tr types.Transcript, vocabulary []string) (*transcript.CorrectedTranscript, error) {
	f.mu.Lock()
	f.calls++
	f.gotVocab = vocabulary
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return &transcript.CorrectedTranscript{
		Original:  tr,
		Corrected: f.corrected,
		Corrections: []transcript.Correction{
			{Original: "maridian", Corrected: "Meridian", Confidence: 0.95, Method: "phonetic"},
		},
	}, nil
}

// progressLog is a concurrency-safe recorder for progress callbacks.
type progressEvent struct {
	stage    string
	fraction float64
}

type progressLog struct {
	mu     sync.Mutex
	events []progressEvent
}

func (p *progressLog) record(stage string, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, progressEvent{stage: stage, fraction: fraction})
}

func (p *progressLog) snapshot() []progressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]progressEvent(nil), p.events...)
}

func testTask() task.Task {
	return task.Task{
		ID:         "discovery-call-101",
		Title:      "Discovery call",
		Rubric:     "Ask open questions. Establish a next step.",
		Vocabulary: []string{"Meridian", "Brightline Analytics Suite"},
	}
}

// ---------------------------------------------------------------------------
// Recorded attempts
// ---------------------------------------------------------------------------

func TestProcess_RecordedAttempt(t *testing.T) {
	src := &fakeSource{duration: 10 * time.Second, hasAudio: true, audio: []byte("wav-bytes")}
	transcriber := &transcribemock.Provider{
		Transcript: &types.Transcript{Text: "we evaluated maridian last quarter"},
	}
	analyzer := &analysismock.Provider{
		Report: &types.FeedbackReport{OverallScore: 81, Summary: "Solid discovery."},
	}
	progress := &progressLog{}

	c := New(transcriber, analyzer, WithOpen(openerFor(src)))
	report, err := c.Process(t.Context(), ProcessRequest{
		Media:      strings.NewReader("video-bytes"),
		Task:       testTask(),
		OnProgress: progress.record,
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if report == nil || report.OverallScore != 81 {
		t.Fatalf("report = %+v, want score 81", report)
	}

	// Transcription ran once over the extracted audio with the task
	// vocabulary as recognition hints.
	if transcriber.CallCount() != 1 {
		t.Fatalf("transcriber called %d times, want 1", transcriber.CallCount())
	}
	call := transcriber.TranscribeCalls[0]
	if call.AudioLen != len("wav-bytes") {
		t.Errorf("transcribed %d audio bytes, want %d", call.AudioLen, len("wav-bytes"))
	}
	if len(call.Opts.Vocabulary) != 2 || call.Opts.Vocabulary[0] != "Meridian" {
		t.Errorf("vocabulary hints = %v, want the task vocabulary", call.Opts.Vocabulary)
	}

	// The analysis request carries the joined evidence. A 10 s recording
	// samples into three contact sheets.
	if analyzer.CallCount() != 1 {
		t.Fatalf("analyzer called %d times, want 1", analyzer.CallCount())
	}
	areq := analyzer.AnalyzeCalls[0].Req
	if len(areq.Sheets) != 3 {
		t.Errorf("analysis got %d sheets, want 3", len(areq.Sheets))
	}
	if areq.Transcript == nil || areq.Transcript.Text == "" {
		t.Error("analysis request is missing the transcript")
	}
	if areq.TaskTitle != "Discovery call" || areq.Rubric == "" {
		t.Errorf("analysis request task fields = %q/%q", areq.TaskTitle, areq.Rubric)
	}
	if areq.Interactive {
		t.Error("recorded attempt must not be marked interactive")
	}

	// Progress: three ascending sheet fractions, then analysis start/end.
	want := []progressEvent{
		{StageSheets, 1.0 / 3.0},
		{StageSheets, 2.0 / 3.0},
		{StageSheets, 1},
		{StageAnalyzing, 0},
		{StageAnalyzing, 1},
	}
	got := progress.snapshot()
	if len(got) != len(want) {
		t.Fatalf("progress events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("progress[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if !src.isClosed() {
		t.Error("source must be closed after a successful run")
	}
}

func TestProcess_NoAudioTrack(t *testing.T) {
	src := &fakeSource{duration: 5 * time.Second, hasAudio: false}
	transcriber := &transcribemock.Provider{}
	analyzer := &analysismock.Provider{}

	c := New(transcriber, analyzer, WithOpen(openerFor(src)))
	if _, err := c.Process(t.Context(), ProcessRequest{
		Media: strings.NewReader("video"),
		Task:  testTask(),
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if transcriber.CallCount() != 0 {
		t.Errorf("transcriber called %d times for a silent recording, want 0", transcriber.CallCount())
	}
	if areq := analyzer.AnalyzeCalls[0].Req; areq.Transcript != nil {
		t.Errorf("analysis transcript = %+v, want nil for a silent recording", areq.Transcript)
	}
}

// ---------------------------------------------------------------------------
// Interactive attempts
// ---------------------------------------------------------------------------

func TestProcess_InteractiveSkipsTranscription(t *testing.T) {
	src := &fakeSource{duration: 5 * time.Second, hasAudio: true, audio: []byte("wav")}
	transcriber := &transcribemock.Provider{}
	analyzer := &analysismock.Provider{}

	turns := []types.ConversationTurn{
		{Role: types.RoleUser, Content: "Thanks for taking the call.", Timestamp: 2 * time.Second},
		{Role: types.RoleAgent, Content: "Make it quick.", Timestamp: 5 * time.Second},
	}

	c := New(transcriber, analyzer, WithOpen(openerFor(src)))
	if _, err := c.Process(t.Context(), ProcessRequest{
		Media:        strings.NewReader("video"),
		Task:         testTask(),
		Conversation: turns,
		Interactive:  true,
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if transcriber.CallCount() != 0 {
		t.Errorf("transcriber called %d times for an interactive run, want 0", transcriber.CallCount())
	}

	areq := analyzer.AnalyzeCalls[0].Req
	if !areq.Interactive {
		t.Error("analysis request must be marked interactive")
	}
	if len(areq.Conversation) != 2 {
		t.Errorf("analysis got %d conversation turns, want 2", len(areq.Conversation))
	}
	if areq.Transcript != nil {
		t.Error("interactive run must not carry a transcript")
	}
	if len(areq.Sheets) == 0 {
		t.Error("interactive run must still sample contact sheets")
	}
}

// ---------------------------------------------------------------------------
// Refinement
// ---------------------------------------------------------------------------

func TestProcess_RefinementApplied(t *testing.T) {
	src := &fakeSource{duration: 5 * time.Second, hasAudio: true, audio: []byte("wav")}
	transcriber := &transcribemock.Provider{
		Transcript: &types.Transcript{Text: "we evaluated maridian last quarter"},
	}
	analyzer := &analysismock.Provider{}
	refiner := &fakeRefiner{corrected: "we evaluated Meridian last quarter"}

	c := New(transcriber, analyzer, WithOpen(openerFor(src)), WithRefiner(refiner))
	if _, err := c.Process(t.Context(), ProcessRequest{
		Media: strings.NewReader("video"),
		Task:  testTask(),
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if refiner.calls != 1 {
		t.Fatalf("refiner called %d times, want 1", refiner.calls)
	}
	if len(refiner.gotVocab) != 2 {
		t.Errorf("refiner vocabulary = %v, want the task vocabulary", refiner.gotVocab)
	}
	if got := analyzer.AnalyzeCalls[0].Req.Transcript.Text; got != "we evaluated Meridian last quarter" {
		t.Errorf("analysis transcript = %q, want the refined text", got)
	}
}

func TestProcess_RefinementFailureKeepsRaw(t *testing.T) {
	src := &fakeSource{duration: 5 * time.Second, hasAudio: true, audio: []byte("wav")}
	transcriber := &transcribemock.Provider{
		Transcript: &types.Transcript{Text: "we evaluated maridian last quarter"},
	}
	analyzer := &analysismock.Provider{}
	refiner := &fakeRefiner{err: errors.New("corrector offline")}

	c := New(transcriber, analyzer, WithOpen(openerFor(src)), WithRefiner(refiner))
	if _, err := c.Process(t.Context(), ProcessRequest{
		Media: strings.NewReader("video"),
		Task:  testTask(),
	}); err != nil {
		t.Fatalf("refinement failure must not fail the run: %v", err)
	}

	if got := analyzer.AnalyzeCalls[0].Req.Transcript.Text; got != "we evaluated maridian last quarter" {
		t.Errorf("analysis transcript = %q, want the raw text", got)
	}
}

// ---------------------------------------------------------------------------
// Failure paths
// ---------------------------------------------------------------------------

func TestProcess_MediaOpenError(t *testing.T) {
	transcriber := &transcribemock.Provider{}
	analyzer := &analysismock.Provider{}

	open := func(context.Context, io.Reader) (Source, error) {
		return nil, fmt.Errorf("probe recording: %w", media.ErrUnreadable)
	}

	c := New(transcriber, analyzer, WithOpen(open))
	_, err := c.Process(t.Context(), ProcessRequest{
		Media: strings.NewReader("not-a-video"),
		Task:  testTask(),
	})
	if !errors.Is(err, media.ErrUnreadable) {
		t.Fatalf("error = %v, want media.ErrUnreadable in the chain", err)
	}
	if analyzer.CallCount() != 0 {
		t.Error("analyzer must not run when the media cannot be opened")
	}
}

func TestProcess_TranscriptionFailureFailsRun(t *testing.T) {
	src := &fakeSource{duration: 10 * time.Second, hasAudio: true, audio: []byte("wav")}
	transcriber := &transcribemock.Provider{TranscribeErr: errors.New("backend 500")}
	analyzer := &analysismock.Provider{}

	c := New(transcriber, analyzer, WithOpen(openerFor(src)))
	_, err := c.Process(t.Context(), ProcessRequest{
		Media: strings.NewReader("video"),
		Task:  testTask(),
	})
	if err == nil || !strings.Contains(err.Error(), "transcribe") {
		t.Fatalf("error = %v, want the transcription failure", err)
	}
	if analyzer.CallCount() != 0 {
		t.Error("analyzer must not run after a transcription failure")
	}
	if !src.isClosed() {
		t.Error("source must be closed after a failed run")
	}
}

func TestProcess_AnalysisFailure(t *testing.T) {
	src := &fakeSource{duration: 5 * time.Second, hasAudio: false}
	analyzer := &analysismock.Provider{AnalyzeErr: errors.New("model overloaded")}

	c := New(&transcribemock.Provider{}, analyzer, WithOpen(openerFor(src)))
	_, err := c.Process(t.Context(), ProcessRequest{
		Media: strings.NewReader("video"),
		Task:  testTask(),
	})
	if err == nil || !strings.Contains(err.Error(), "analyze") {
		t.Fatalf("error = %v, want the analysis failure", err)
	}
	if !src.isClosed() {
		t.Error("source must be closed after a failed run")
	}
}

func TestProcess_RequestValidation(t *testing.T) {
	c := New(&transcribemock.Provider{}, &analysismock.Provider{})

	t.Run("missing media", func(t *testing.T) {
		if _, err := c.Process(t.Context(), ProcessRequest{Task: testTask()}); err == nil {
			t.Fatal("expected an error for a request without media")
		}
	})

	t.Run("missing rubric", func(t *testing.T) {
		req := ProcessRequest{Media: strings.NewReader("video"), Task: task.Task{Title: "No rubric"}}
		if _, err := c.Process(t.Context(), req); err == nil {
			t.Fatal("expected an error for a task without a rubric")
		}
	})
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestProcess_CancellationMidRun(t *testing.T) {
	// Three sheets planned; the run is cancelled from the progress callback
	// after the first completes.
	src := &fakeSource{duration: 10 * time.Second, hasAudio: false, frameDelay: time.Millisecond}
	analyzer := &analysismock.Provider{}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	c := New(&transcribemock.Provider{}, analyzer, WithOpen(openerFor(src)))
	_, err := c.Process(ctx, ProcessRequest{
		Media: strings.NewReader("video"),
		Task:  testTask(),
		OnProgress: func(stage string, fraction float64) {
			if stage == StageSheets {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if analyzer.CallCount() != 0 {
		t.Error("analyzer must not run after cancellation")
	}
	if !src.isClosed() {
		t.Error("source must be closed after a cancelled run")
	}
}
