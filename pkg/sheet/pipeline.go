package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ProgressFunc receives fractional extraction progress in (0, 1],
// non-decreasing across calls. It is invoked once after each completed
// sheet, on the extraction goroutine.
type ProgressFunc func(fraction float64)

// Pipeline drives contact-sheet extraction across one whole recording:
// plan the interval once, then compose sheets back to back until the
// runtime is covered or the sheet ceiling is reached.
type Pipeline struct {
	comp *Compositor
	log  *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCompositor replaces the default compositor.
func WithCompositor(c *Compositor) PipelineOption {
	return func(p *Pipeline) {
		if c != nil {
			p.comp = c
		}
	}
}

// WithLogger sets the pipeline's logger.
func WithLogger(log *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// NewPipeline returns a Pipeline with a default compositor.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		comp: NewCompositor(),
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ExtractAll produces the full ordered sheet sequence for the recording.
//
// Sheets are composed strictly one after another — all sampling shares the
// source's single decode position — and onProgress (may be nil) is called
// with (index+1)/sheetCount after each sheet completes. Sheet timestamps
// increase by exactly one sheet span; at most [MaxSheets] sheets are
// produced.
//
// Cancellation is coarse-grained: the context is checked between sheets,
// so a sheet in progress runs to completion first. A cancelled run returns
// (nil, nil) — no error and no partial result; callers that need the
// reason consult ctx.Err().
//
// A per-frame failure never fails the run. A completed run in which not a
// single frame could be sampled returns an error, since an all-empty
// sequence means the source is broken, not sparse.
func (p *Pipeline) ExtractAll(ctx context.Context, src FrameSource, onProgress ProgressFunc) ([]ContactSheet, error) {
	videoDuration := src.Duration()
	if videoDuration <= 0 {
		return nil, fmt.Errorf("sheet: source reports non-positive duration %s", videoDuration)
	}

	interval := PlanInterval(videoDuration)
	sheetSpan := interval * FramesPerSheet
	sheetCount := int((videoDuration + sheetSpan - 1) / sheetSpan)
	if sheetCount > MaxSheets {
		sheetCount = MaxSheets
	}

	p.log.Debug("starting sheet extraction",
		"video_duration", videoDuration,
		"interval", interval,
		"sheet_count", sheetCount)

	sheets := make([]ContactSheet, 0, sheetCount)
	framesSampled := 0

	for i := 0; i < sheetCount; i++ {
		select {
		case <-ctx.Done():
			p.log.Info("sheet extraction cancelled",
				"completed", len(sheets), "planned", sheetCount)
			return nil, nil
		default:
		}

		start := time.Duration(i) * sheetSpan
		cs, err := p.comp.Compose(ctx, src, start, interval)
		if err != nil {
			return nil, fmt.Errorf("sheet: compose sheet %d of %d: %w", i+1, sheetCount, err)
		}
		sheets = append(sheets, cs)
		framesSampled += cs.FramesFilled

		if onProgress != nil {
			onProgress(float64(i+1) / float64(sheetCount))
		}
	}

	if framesSampled == 0 {
		return nil, fmt.Errorf("sheet: no frames could be sampled across %d sheets", sheetCount)
	}

	return sheets, nil
}
