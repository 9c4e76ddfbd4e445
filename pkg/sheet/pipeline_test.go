package sheet

import (
	"context"
	"testing"
	"time"
)

func TestExtractAllShortVideo(t *testing.T) {
	src := &fakeSource{duration: 10 * time.Second}
	p := NewPipeline()

	var progress []float64
	sheets, err := p.ExtractAll(context.Background(), src, func(f float64) {
		progress = append(progress, f)
	})
	if err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}

	if len(sheets) != 3 {
		t.Fatalf("len(sheets) = %d, want 3", len(sheets))
	}
	wantStarts := []time.Duration{0, 4500 * time.Millisecond, 9 * time.Second}
	for i, s := range sheets {
		if s.Timestamp != wantStarts[i] {
			t.Errorf("sheets[%d].Timestamp = %v, want %v", i, s.Timestamp, wantStarts[i])
		}
	}

	last := sheets[2]
	if len(last.FrameTimestamps) != 1 {
		t.Errorf("last sheet frame count = %d, want 1", len(last.FrameTimestamps))
	}

	if len(progress) != 3 {
		t.Fatalf("progress calls = %d, want 3", len(progress))
	}
	for i, f := range progress {
		want := float64(i+1) / 3
		if f != want {
			t.Errorf("progress[%d] = %v, want %v", i, f, want)
		}
	}
	if src.overlap {
		t.Error("frame extractions overlapped; sampling must be serialized")
	}
}

func TestExtractAllHourVideo(t *testing.T) {
	videoDuration := 3600 * time.Second
	src := &fakeSource{duration: videoDuration}
	p := NewPipeline()

	sheets, err := p.ExtractAll(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}

	if len(sheets) != MaxSheets {
		t.Fatalf("len(sheets) = %d, want %d", len(sheets), MaxSheets)
	}

	span := 72 * time.Second
	for i, s := range sheets {
		if want := time.Duration(i) * span; s.Timestamp != want {
			t.Errorf("sheets[%d].Timestamp = %v, want %v", i, s.Timestamp, want)
		}
		if n := len(s.FrameTimestamps); n < 1 || n > FramesPerSheet {
			t.Errorf("sheets[%d] frame count = %d, want 1..%d", i, n, FramesPerSheet)
		}
		prev := time.Duration(-1)
		for _, ts := range s.FrameTimestamps {
			if ts <= prev {
				t.Errorf("sheets[%d] frame timestamps not strictly increasing at %v", i, ts)
			}
			if ts < s.Timestamp || ts >= s.Timestamp+s.Duration {
				t.Errorf("sheets[%d] frame timestamp %v outside [%v, %v)", i, ts, s.Timestamp, s.Timestamp+s.Duration)
			}
			if ts >= videoDuration {
				t.Errorf("sheets[%d] frame timestamp %v past video end", i, ts)
			}
			prev = ts
		}
	}
}

func TestExtractAllSheetCounts(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     int
	}{
		{time.Second, 1},
		{4500 * time.Millisecond, 1},
		{10 * time.Second, 3},
		{225 * time.Second, 50},
		{226 * time.Second, 50},
		{3601 * time.Second, 50},
	}
	p := NewPipeline()
	for _, tt := range tests {
		src := &fakeSource{duration: tt.duration}
		sheets, err := p.ExtractAll(context.Background(), src, nil)
		if err != nil {
			t.Fatalf("ExtractAll(%v) error = %v", tt.duration, err)
		}
		if len(sheets) != tt.want {
			t.Errorf("ExtractAll(%v) produced %d sheets, want %d", tt.duration, len(sheets), tt.want)
		}
		if len(sheets) > MaxSheets {
			t.Errorf("ExtractAll(%v) exceeded sheet ceiling: %d", tt.duration, len(sheets))
		}
	}
}

func TestExtractAllCancellation(t *testing.T) {
	// 20s at baseline density plans 5 sheets; cancelling after the second
	// completes must yield no error and no partial result.
	src := &fakeSource{duration: 20 * time.Second}
	p := NewPipeline()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completed := 0
	sheets, err := p.ExtractAll(ctx, src, func(float64) {
		completed++
		if completed == 2 {
			cancel()
		}
	})

	if err != nil {
		t.Fatalf("ExtractAll() error = %v, want nil on cancellation", err)
	}
	if sheets != nil {
		t.Errorf("ExtractAll() = %d sheets, want nil on cancellation", len(sheets))
	}
	if completed != 2 {
		t.Errorf("completed sheets before cancellation = %d, want 2", completed)
	}
}

func TestExtractAllBrokenSource(t *testing.T) {
	src := &fakeSource{duration: 10 * time.Second, failAll: true}
	p := NewPipeline()

	if _, err := p.ExtractAll(context.Background(), src, nil); err == nil {
		t.Fatal("ExtractAll() error = nil, want broken-source error")
	}
}

func TestExtractAllNonPositiveDuration(t *testing.T) {
	src := &fakeSource{duration: 0}
	p := NewPipeline()

	if _, err := p.ExtractAll(context.Background(), src, nil); err == nil {
		t.Fatal("ExtractAll() error = nil, want duration error")
	}
}

func TestExtractAllIdempotent(t *testing.T) {
	p := NewPipeline()

	first, err := p.ExtractAll(context.Background(), &fakeSource{duration: 33 * time.Second}, nil)
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	second, err := p.ExtractAll(context.Background(), &fakeSource{duration: 33 * time.Second}, nil)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("sheet counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Timestamp != second[i].Timestamp {
			t.Errorf("sheets[%d] timestamps differ: %v vs %v", i, first[i].Timestamp, second[i].Timestamp)
		}
		if len(first[i].FrameTimestamps) != len(second[i].FrameTimestamps) {
			t.Errorf("sheets[%d] frame counts differ", i)
			continue
		}
		for j := range first[i].FrameTimestamps {
			if first[i].FrameTimestamps[j] != second[i].FrameTimestamps[j] {
				t.Errorf("sheets[%d] frame %d differs: %v vs %v",
					i, j, first[i].FrameTimestamps[j], second[i].FrameTimestamps[j])
			}
		}
	}
}
