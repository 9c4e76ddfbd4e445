// Package coordinator runs the full evidence pipeline for one practice
// attempt: media intake, contact-sheet extraction and transcription in
// parallel, transcript refinement, and a single analysis request that
// turns the evidence into a feedback report.
//
// The coordinator itself holds no session state. Callers own the session
// record and map the outcome of [Coordinator.Process] onto it: a report
// completes the session, a context cancellation discards it, anything
// else fails it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Metzpapa/bleai/internal/observe"
	"github.com/Metzpapa/bleai/internal/task"
	"github.com/Metzpapa/bleai/internal/transcript"
	"github.com/Metzpapa/bleai/pkg/media"
	"github.com/Metzpapa/bleai/pkg/provider/analysis"
	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
	"github.com/Metzpapa/bleai/pkg/sheet"
	"github.com/Metzpapa/bleai/pkg/types"
)

// Stage names reported through [ProgressFunc]. Sheet extraction reports
// granular fractions; analysis reports its start and end.
const (
	StageSheets    = "sheets"
	StageAnalyzing = "analyzing"
)

// Source is the recording handle the pipeline drives. It extends the sheet
// package's frame source with the audio and lifecycle operations the full
// run needs. *media.Source implements it.
type Source interface {
	sheet.FrameSource

	// HasAudio reports whether the recording carries an audio track.
	HasAudio() bool

	// ExtractAudio demuxes the audio track into the WAV form the
	// transcription providers expect.
	ExtractAudio(ctx context.Context) ([]byte, error)

	// Close releases the handle.
	Close() error
}

// OpenFunc materializes an uploaded recording into a [Source].
type OpenFunc func(ctx context.Context, r io.Reader) (Source, error)

// ProgressFunc receives pipeline progress: the stage currently running and
// the fraction completed within it, in [0, 1]. Fractions never decrease
// within a stage. May be called from the extraction goroutine.
type ProgressFunc func(stage string, fraction float64)

// ProcessRequest carries everything one pipeline run needs.
type ProcessRequest struct {
	// Media is the uploaded recording, read exactly once.
	Media io.Reader

	// Task supplies the title, rubric, and vocabulary the attempt is
	// graded against.
	Task task.Task

	// Conversation is the turn log of a live scenario, captured by the
	// voice relay. Nil for recorded (solo) attempts.
	Conversation []types.ConversationTurn

	// Interactive marks the attempt as a live conversation with the voice
	// agent: transcription is skipped and Conversation stands in for the
	// transcript.
	Interactive bool

	// OnProgress, when non-nil, receives stage progress as the run
	// advances.
	OnProgress ProgressFunc
}

// Coordinator fans one recording out into visual and speech evidence and
// joins the results into a single analysis request.
//
// Coordinator is safe for concurrent use; each Process call owns its media
// source exclusively.
type Coordinator struct {
	transcriber transcribe.Provider
	analyzer    analysis.Provider
	refiner     transcript.Pipeline
	sheets      *sheet.Pipeline
	open        OpenFunc
	metrics     *observe.Metrics
	log         *slog.Logger
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// WithRefiner attaches a transcript correction pipeline. When nil (the
// default), transcripts go to analysis unrefined.
func WithRefiner(p transcript.Pipeline) Option {
	return func(c *Coordinator) { c.refiner = p }
}

// WithSheetPipeline replaces the default contact-sheet pipeline.
func WithSheetPipeline(p *sheet.Pipeline) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.sheets = p
		}
	}
}

// WithOpen replaces how recordings are materialized into sources. The
// default shells out to ffmpeg via [media.Open]; tests substitute an
// in-memory source.
func WithOpen(open OpenFunc) Option {
	return func(c *Coordinator) {
		if open != nil {
			c.open = open
		}
	}
}

// WithMetrics overrides the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the coordinator's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// New constructs a Coordinator backed by the given providers.
func New(transcriber transcribe.Provider, analyzer analysis.Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		transcriber: transcriber,
		analyzer:    analyzer,
		sheets:      sheet.NewPipeline(),
		open:        openMedia,
		metrics:     observe.DefaultMetrics(),
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// openMedia is the default OpenFunc, materializing the recording to a
// temporary file behind an exclusive ffmpeg-backed source.
func openMedia(ctx context.Context, r io.Reader) (Source, error) {
	src, err := media.Open(ctx, r)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Process runs the full pipeline for one practice attempt and returns the
// feedback report.
//
// The run opens the media source (an unreadable recording surfaces
// [media.ErrUnreadable] in the error chain), pulls the audio track off the
// shared decoder up front, then extracts contact sheets and the transcript
// in parallel. After the join the transcript is refined against the task
// vocabulary and the assembled evidence goes to the analyzer in one request.
//
// A run cancelled through ctx returns an error satisfying
// errors.Is(err, context.Canceled) with no partial result; every other
// failure reports the stage that broke. The media source is closed on all
// paths.
func (c *Coordinator) Process(ctx context.Context, req ProcessRequest) (*types.FeedbackReport, error) {
	if req.Media == nil {
		return nil, errors.New("coordinator: request carries no media")
	}
	if req.Task.Rubric == "" {
		return nil, errors.New("coordinator: task carries no rubric")
	}

	start := time.Now()
	c.metrics.ActiveRuns.Add(ctx, 1)
	defer c.metrics.ActiveRuns.Add(ctx, -1)

	src, err := c.open(ctx, req.Media)
	if err != nil {
		return nil, fmt.Errorf("coordinator: open media: %w", err)
	}
	defer src.Close()

	// Pull the audio track before frame sampling starts: both share the
	// source's single decode position, and demuxing audio mid-extraction
	// would stall the sheet loop.
	var wav []byte
	if !req.Interactive && src.HasAudio() {
		wav, err = src.ExtractAudio(ctx)
		if err != nil {
			return nil, fmt.Errorf("coordinator: extract audio: %w", err)
		}
	}

	// ── Fan out: contact sheets ∥ transcription ──────────────────────────

	g, gctx := errgroup.WithContext(ctx)

	var sheets []sheet.ContactSheet
	g.Go(func() error {
		stageStart := time.Now()
		var err error
		sheets, err = c.sheets.ExtractAll(gctx, src, func(fraction float64) {
			if req.OnProgress != nil {
				req.OnProgress(StageSheets, fraction)
			}
		})
		if err != nil {
			return fmt.Errorf("coordinator: contact sheets: %w", err)
		}
		c.metrics.SheetDuration.Record(gctx, time.Since(stageStart).Seconds())
		c.metrics.RecordSheetsComposed(gctx, len(sheets))
		return nil
	})

	var tr *types.Transcript
	if wav != nil {
		g.Go(func() error {
			stageStart := time.Now()
			var err error
			tr, err = c.transcriber.Transcribe(gctx, wav, transcribe.Options{
				Vocabulary: req.Task.Vocabulary,
			})
			if err != nil {
				c.metrics.RecordProviderRequest(gctx, c.transcriber.Name(), "transcription", "error")
				c.metrics.RecordProviderError(gctx, c.transcriber.Name(), "transcription")
				return fmt.Errorf("coordinator: transcribe: %w", err)
			}
			c.metrics.RecordProviderRequest(gctx, c.transcriber.Name(), "transcription", "ok")
			c.metrics.TranscriptionDuration.Record(gctx, time.Since(stageStart).Seconds())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// A cancelled sheet extraction returns quietly with no sheets;
		// surface the context error so the caller can discard the run.
		return nil, err
	}

	// ── Join: refine, then analyze ───────────────────────────────────────

	tr = c.refine(ctx, tr, req.Task.Vocabulary)

	if req.OnProgress != nil {
		req.OnProgress(StageAnalyzing, 0)
	}

	areq := analysis.Request{
		Sheets:       sheets,
		Transcript:   tr,
		Conversation: req.Conversation,
		Interactive:  req.Interactive,
		TaskTitle:    req.Task.Title,
		Rubric:       req.Task.Rubric,
	}

	stageStart := time.Now()
	report, err := c.analyzer.Analyze(ctx, areq)
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, c.analyzer.Name(), "analysis", "error")
		c.metrics.RecordProviderError(ctx, c.analyzer.Name(), "analysis")
		return nil, fmt.Errorf("coordinator: analyze: %w", err)
	}
	c.metrics.RecordProviderRequest(ctx, c.analyzer.Name(), "analysis", "ok")
	c.metrics.AnalysisDuration.Record(ctx, time.Since(stageStart).Seconds())

	if req.OnProgress != nil {
		req.OnProgress(StageAnalyzing, 1)
	}

	c.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
	c.metrics.RecordReportScore(ctx, report.OverallScore)

	c.log.Info("processing complete",
		"task", req.Task.Title,
		"sheets", len(sheets),
		"interactive", req.Interactive,
		"score", report.OverallScore,
		"duration", time.Since(start),
	)
	return report, nil
}

// refine runs the transcript through the correction pipeline. Refinement is
// best-effort: a correction failure keeps the raw transcript rather than
// failing a run whose evidence is otherwise intact.
func (c *Coordinator) refine(ctx context.Context, tr *types.Transcript, vocabulary []string) *types.Transcript {
	if c.refiner == nil || tr == nil || tr.Text == "" || len(vocabulary) == 0 {
		return tr
	}

	corrected, err := c.refiner.Correct(ctx, *tr, vocabulary)
	if err != nil {
		c.log.Warn("transcript refinement failed, keeping raw transcript", "error", err)
		return tr
	}
	if len(corrected.Corrections) > 0 {
		c.log.Debug("transcript refined", "corrections", len(corrected.Corrections))
	}

	// Word timings keep referring to the original audio tokens; only the
	// text is replaced.
	out := *tr
	out.Text = corrected.Corrected
	return &out
}
