package sheet

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	gridCols = 3
	gridRows = 3

	defaultCellSide = 320
	defaultQuality  = 80

	labelPad    = 3
	labelMargin = 4
)

// cellFill is the neutral background showing through unfilled grid cells.
var cellFill = color.RGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}

// Compositor composes one contact sheet from consecutive stills.
// A Compositor is stateless apart from its configuration and safe for
// concurrent use, though the [FrameSource] it samples from is not.
type Compositor struct {
	cellSide int
	quality  int
	log      *slog.Logger
}

// CompositorOption configures a Compositor.
type CompositorOption func(*Compositor)

// WithCellSide overrides the pixel edge length of one grid cell.
// Default: 320.
func WithCellSide(px int) CompositorOption {
	return func(c *Compositor) {
		if px > 0 {
			c.cellSide = px
		}
	}
}

// WithQuality overrides the JPEG quality (1–100) of the encoded grid.
// Default: 80.
func WithQuality(q int) CompositorOption {
	return func(c *Compositor) {
		if q >= 1 && q <= 100 {
			c.quality = q
		}
	}
}

// WithCompositorLogger sets the logger used to record skipped slots.
func WithCompositorLogger(log *slog.Logger) CompositorOption {
	return func(c *Compositor) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCompositor returns a Compositor with default geometry and encoding.
func NewCompositor(opts ...CompositorOption) *Compositor {
	c := &Compositor{
		cellSide: defaultCellSide,
		quality:  defaultQuality,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose samples up to nine stills starting at start, one interval apart,
// and lays them into a labeled 3×3 grid.
//
// The candidate offsets are fixed up front: the first slot is always
// start; trailing slots stop once a full interval of footage no longer
// remains past the offset, since seeks into the final instants of a
// recording fail in the decode layer. Extraction runs strictly
// sequentially. A slot whose extraction fails is logged and left as
// background fill; composition continues with the remaining slots.
//
// The returned sheet's Duration is the nominal interval×9 span. Only an
// encoding failure (wrapping [ErrEncode]) aborts the call.
func (c *Compositor) Compose(ctx context.Context, src FrameSource, start, interval time.Duration) (ContactSheet, error) {
	videoDuration := src.Duration()

	var offsets []time.Duration
	for k := 0; k < FramesPerSheet; k++ {
		at := start + time.Duration(k)*interval
		if at >= videoDuration {
			break
		}
		if k > 0 && at+interval >= videoDuration {
			break
		}
		offsets = append(offsets, at)
	}
	if len(offsets) == 0 {
		return ContactSheet{}, fmt.Errorf("sheet: no candidate offsets at %s (duration %s)", start, videoDuration)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, gridCols*c.cellSide, gridRows*c.cellSide))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: cellFill}, image.Point{}, draw.Src)

	filled := 0
	for k, at := range offsets {
		frame, err := src.ExtractFrame(ctx, at)
		if err != nil {
			ferr := &FrameError{At: at, Err: err}
			c.log.Debug("frame extraction failed, slot skipped",
				"offset", at, "sheet_start", start, "error", ferr)
			continue
		}

		cell := image.Rect(
			(k%gridCols)*c.cellSide,
			(k/gridCols)*c.cellSide,
			(k%gridCols+1)*c.cellSide,
			(k/gridCols+1)*c.cellSide,
		)
		c.drawFrame(canvas, cell, frame)
		c.drawLabel(canvas, cell, formatTimestamp(at))
		filled++
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: c.quality}); err != nil {
		return ContactSheet{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return ContactSheet{
		Timestamp:       start,
		Duration:        interval * FramesPerSheet,
		Image:           buf.Bytes(),
		FrameTimestamps: offsets,
		FramesFilled:    filled,
	}, nil
}

// drawFrame places a still into its grid cell, scaling when the still's
// bounds don't already match the cell.
func (c *Compositor) drawFrame(canvas *image.RGBA, cell image.Rectangle, frame image.Image) {
	if frame.Bounds().Dx() == cell.Dx() && frame.Bounds().Dy() == cell.Dy() {
		draw.Draw(canvas, cell, frame, frame.Bounds().Min, draw.Src)
		return
	}
	xdraw.ApproxBiLinear.Scale(canvas, cell, frame, frame.Bounds(), xdraw.Src, nil)
}

// drawLabel burns an opaque timestamp plate into the cell's bottom-left
// corner so the offset survives JPEG compression and model downscaling.
func (c *Compositor) drawLabel(canvas *image.RGBA, cell image.Rectangle, label string) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()
	metrics := face.Metrics()

	plate := image.Rect(
		cell.Min.X+labelMargin,
		cell.Max.Y-labelMargin-metrics.Height.Ceil()-2*labelPad,
		cell.Min.X+labelMargin+textWidth+2*labelPad,
		cell.Max.Y-labelMargin,
	).Intersect(cell)
	draw.Draw(canvas, plate, image.Black, image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  canvas,
		Src:  image.White,
		Face: face,
		Dot: fixed.P(
			plate.Min.X+labelPad,
			plate.Min.Y+labelPad+metrics.Ascent.Ceil(),
		),
	}
	d.DrawString(label)
}

// formatTimestamp renders an offset as M:SS.s — minutes, then zero-padded
// seconds with one decimal.
func formatTimestamp(d time.Duration) string {
	tenths := (d + 50*time.Millisecond) / (100 * time.Millisecond)
	minutes := tenths / 600
	rem := tenths % 600
	return fmt.Sprintf("%d:%02d.%d", minutes, rem/10, rem%10)
}
