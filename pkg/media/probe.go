package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// probeResult holds the subset of ffprobe output the pipeline cares about.
type probeResult struct {
	duration time.Duration
	hasAudio bool
}

// probeOutput mirrors ffprobe's JSON document.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// probe runs ffprobe against the file and extracts duration and stream
// layout.
func probe(ctx context.Context, path string) (probeResult, error) {
	cmd := exec.CommandContext(ctx, ffprobeBin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return probeResult{}, fmt.Errorf("probe %q: %w: %s", path, err, stderr.String())
	}

	return parseProbe(stdout.Bytes())
}

// parseProbe interprets ffprobe JSON. A document without a video stream or
// with a non-positive duration is rejected: there is nothing to sample.
func parseProbe(data []byte) (probeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return probeResult{}, fmt.Errorf("parse probe output: %w", err)
	}

	secs, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return probeResult{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	if secs <= 0 {
		return probeResult{}, fmt.Errorf("non-positive duration %v", secs)
	}

	res := probeResult{duration: time.Duration(secs * float64(time.Second))}

	hasVideo := false
	for _, st := range out.Streams {
		switch st.CodecType {
		case "video":
			hasVideo = true
		case "audio":
			res.hasAudio = true
		}
	}
	if !hasVideo {
		return probeResult{}, fmt.Errorf("no video stream")
	}

	return res, nil
}
