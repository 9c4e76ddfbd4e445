// Package sheet turns an arbitrary-length video recording into a bounded
// sequence of contact sheets: 3×3 grids of timestamped stills dense enough
// for a vision model to follow what happened, small enough to fit a rate-
// and token-constrained request.
//
// The package has three parts. [PlanInterval] is the pure sampling planner:
// it picks the gap between stills so short recordings get maximum temporal
// density and long ones stretch uniformly to stay under the sheet ceiling.
// [Compositor] composes one sheet from consecutive stills, skipping slots
// whose extraction fails. [Pipeline] drives the planner and compositor
// across the whole recording, reporting fractional progress per completed
// sheet.
//
// All sampling is strictly sequential: stills come from a stateful
// [FrameSource] whose seek position is shared mutable state, so no two
// extractions may overlap on one source.
package sheet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"
)

const (
	// FramesPerSheet is the grid capacity of one contact sheet.
	FramesPerSheet = 9

	// MaxSheets is the hard cap on sheets produced for one recording,
	// bounding analysis request size and cost.
	MaxSheets = 50

	// BaselineInterval is the preferred gap between stills. Recordings
	// short enough to fit the cap at this density keep it unchanged.
	BaselineInterval = 500 * time.Millisecond
)

// FrameSource yields single decoded stills from one video recording.
// Implementations own a stateful decoder; callers must never issue
// overlapping ExtractFrame calls on the same source.
type FrameSource interface {
	// Duration returns the recording's total runtime.
	Duration() time.Duration

	// ExtractFrame seeks to the given offset and decodes one still.
	ExtractFrame(ctx context.Context, at time.Duration) (image.Image, error)
}

// ContactSheet is the unit of visual evidence submitted for analysis.
type ContactSheet struct {
	// Timestamp is the start offset of the span this sheet covers.
	Timestamp time.Duration

	// Duration is the nominal span: always interval × 9, even when the
	// recording ended before all slots could be sampled. Timeline
	// rendering downstream relies on uniform sheet spans, so the final
	// sheet keeps the nominal value rather than its actual coverage.
	Duration time.Duration

	// Image is the composed grid encoded as JPEG.
	Image []byte

	// FrameTimestamps lists the candidate offsets the compositor
	// attempted, in strictly increasing order. The list is fixed before
	// any extraction runs, so a failed slot still appears here.
	// Length 1..9.
	FrameTimestamps []time.Duration

	// FramesFilled counts the slots that actually produced a picture.
	FramesFilled int
}

// DataURI returns the sheet image as a base64 data URI, the form it takes
// inside an analysis request.
func (s ContactSheet) DataURI() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(s.Image)
}

// ErrEncode indicates the composed grid could not be encoded. Encoding
// failure signals resource exhaustion rather than a transient per-frame
// problem, so it aborts the whole run.
var ErrEncode = errors.New("sheet: encode grid image")

// FrameError reports a single failed frame extraction. Frame failures are
// recoverable: the compositor skips the slot and continues, so a
// FrameError surfaces in logs and counters, not as a pipeline failure.
type FrameError struct {
	// At is the requested frame offset.
	At time.Duration

	// Err is the underlying extraction failure.
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("sheet: extract frame at %s: %v", e.At, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// PlanInterval computes the gap between stills for a recording of the
// given length.
//
// At the baseline interval one sheet covers 4.5 seconds; recordings that
// fit within [MaxSheets] sheets at that density keep the baseline.
// Longer recordings stretch uniformly: the runtime is divided into
// [MaxSheets] equal sheet spans and the interval becomes a ninth of one
// span, trading temporal resolution for staying under the cap.
//
// The returned interval is always positive and monotonically
// non-decreasing in videoDuration. Callers must pass a positive duration.
func PlanInterval(videoDuration time.Duration) time.Duration {
	baselineSpan := BaselineInterval * FramesPerSheet
	if videoDuration <= MaxSheets*baselineSpan {
		return BaselineInterval
	}
	targetSheetSpan := videoDuration / MaxSheets
	return targetSheetSpan / FramesPerSheet
}
