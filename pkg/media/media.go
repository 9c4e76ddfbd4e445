// Package media provides the exclusive video-source handle the contact-sheet
// pipeline samples from.
//
// A [Source] wraps one uploaded recording: the blob is materialized to a
// temporary file, probed once for metadata, and then decoded frame by frame
// on demand. Seeking is stateful in the underlying decode layer, so a Source
// serializes all extraction calls behind a mutex — the handle is exclusively
// owned by one in-flight pipeline run and overlapping seeks are impossible
// by construction.
//
// Decoding shells out to ffmpeg/ffprobe, which must be on PATH. Every
// invocation is bounded by the caller's context.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

const (
	ffmpegBin  = "ffmpeg"
	ffprobeBin = "ffprobe"

	// defaultFrameSide is the square edge length of extracted stills.
	defaultFrameSide = 320
)

var (
	// ErrUnreadable indicates the recording's metadata could not be read.
	// This is fatal to a pipeline run; there is nothing to sample.
	ErrUnreadable = errors.New("media: unreadable source")

	// ErrNoAudio indicates the recording has no audio track to extract.
	ErrNoAudio = errors.New("media: source has no audio track")

	// ErrClosed indicates the source handle has already been released.
	ErrClosed = errors.New("media: source closed")
)

// Source is an exclusive handle over one video recording.
//
// All methods are safe for concurrent use, but extraction calls serialize:
// the decoder position is shared mutable state, so two extractions never
// overlap on the same Source. Close releases the backing file; the handle
// must not be used afterwards.
type Source struct {
	path      string
	duration  time.Duration
	hasAudio  bool
	frameSide int
	ownsFile  bool

	mu     sync.Mutex
	closed bool
}

// Option configures a Source during Open.
type Option func(*Source)

// WithFrameSide overrides the square edge length of extracted stills.
// Default: 320 pixels.
func WithFrameSide(px int) Option {
	return func(s *Source) {
		if px > 0 {
			s.frameSide = px
		}
	}
}

// Open materializes the recording from r into a temporary file, probes its
// metadata, and returns an exclusive Source handle. The temporary file is
// removed by Close.
//
// A recording whose metadata cannot be read (or that contains no video
// stream, or reports a non-positive duration) fails with an error wrapping
// [ErrUnreadable].
func Open(ctx context.Context, r io.Reader, opts ...Option) (*Source, error) {
	f, err := os.CreateTemp("", "bleai-recording-*")
	if err != nil {
		return nil, fmt.Errorf("media: create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("media: write recording: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("media: write recording: %w", err)
	}

	src, err := newSource(ctx, f.Name(), true, opts...)
	if err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return src, nil
}

// OpenFile opens an existing recording on disk without copying it. The file
// is left in place by Close.
func OpenFile(ctx context.Context, path string, opts ...Option) (*Source, error) {
	return newSource(ctx, path, false, opts...)
}

func newSource(ctx context.Context, path string, ownsFile bool, opts ...Option) (*Source, error) {
	info, err := probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	s := &Source{
		path:      path,
		duration:  info.duration,
		hasAudio:  info.hasAudio,
		frameSide: defaultFrameSide,
		ownsFile:  ownsFile,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Duration returns the recording's total runtime.
func (s *Source) Duration() time.Duration { return s.duration }

// HasAudio reports whether the recording carries an audio track.
func (s *Source) HasAudio() bool { return s.hasAudio }

// ExtractFrame seeks to the given offset and decodes a single still, scaled
// to fit a square raster with the remainder padded black so the full picture
// is preserved. Calls serialize on the Source; a call blocked behind another
// extraction waits its turn.
func (s *Source) ExtractFrame(ctx context.Context, at time.Duration) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if at < 0 || at >= s.duration {
		return nil, fmt.Errorf("media: offset %s outside recording (duration %s)", at, s.duration)
	}

	side := strconv.Itoa(s.frameSide)
	filter := "scale=" + side + ":" + side + ":force_original_aspect_ratio=decrease," +
		"pad=" + side + ":" + side + ":(ow-iw)/2:(oh-ih)/2:color=black"

	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-v", "error",
		"-ss", formatSeconds(at),
		"-i", s.path,
		"-frames:v", "1",
		"-vf", filter,
		"-f", "image2",
		"-vcodec", "png",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("media: decode frame at %s: %w: %s", at, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("media: decode frame at %s: no picture produced", at)
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("media: decode frame at %s: %w", at, err)
	}
	return img, nil
}

// ExtractAudio demuxes the audio track to 16 kHz mono PCM16 WAV, the input
// format the transcription providers expect. Fails with [ErrNoAudio] when
// the recording has no audio track.
func (s *Source) ExtractAudio(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if !s.hasAudio {
		return nil, ErrNoAudio
	}

	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-v", "error",
		"-i", s.path,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-f", "wav",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("media: extract audio: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Close releases the handle and removes the backing temporary file when the
// Source owns it. Close is idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.ownsFile {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("media: remove temp file: %w", err)
		}
	}
	return nil
}

// formatSeconds renders a duration as fractional seconds for ffmpeg args.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
