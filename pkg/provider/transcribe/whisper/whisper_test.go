package whisper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}

	p, err := New("http://localhost:8080/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.serverURL != "http://localhost:8080" {
		t.Errorf("serverURL = %q, want trailing slash trimmed", p.serverURL)
	}
	if p.Name() != "whisper" {
		t.Errorf("Name() = %q, want %q", p.Name(), "whisper")
	}
}

func TestTranscribe(t *testing.T) {
	var gotLanguage, gotFormat, gotPrompt string
	var gotAudioLen int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")
		gotPrompt = r.FormValue("prompt")
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		gotAudioLen = n
		file.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"language": "en",
			"duration": 3.5,
			"text": " Hello there. General Kenobi.",
			"segments": [
				{"start": 0.0, "end": 1.5, "text": " Hello there."},
				{"start": 1.5, "end": 3.5, "text": " General Kenobi."}
			]
		}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	transcript, err := p.Transcribe(context.Background(), []byte("RIFF fake wav"), transcribe.Options{
		Language:   "de",
		Vocabulary: []string{"Kenobi", "Grievous"},
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if gotLanguage != "de" {
		t.Errorf("language field = %q, want %q", gotLanguage, "de")
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format field = %q, want %q", gotFormat, "verbose_json")
	}
	if gotPrompt != "Kenobi, Grievous" {
		t.Errorf("prompt field = %q, want %q", gotPrompt, "Kenobi, Grievous")
	}
	if gotAudioLen == 0 {
		t.Error("server received no audio bytes")
	}

	if transcript.Text != "Hello there. General Kenobi." {
		t.Errorf("Text = %q", transcript.Text)
	}
	if transcript.Duration != 3500*time.Millisecond {
		t.Errorf("Duration = %v, want 3.5s", transcript.Duration)
	}
	wantWords := []string{"Hello", "there.", "General", "Kenobi."}
	if len(transcript.Words) != len(wantWords) {
		t.Fatalf("len(Words) = %d, want %d", len(transcript.Words), len(wantWords))
	}
	for i, want := range wantWords {
		if transcript.Words[i].Word != want {
			t.Errorf("Words[%d].Word = %q, want %q", i, transcript.Words[i].Word, want)
		}
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := p.Transcribe(context.Background(), []byte("audio"), transcribe.Options{}); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	p, err := New("http://localhost:8080")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p.Transcribe(context.Background(), nil, transcribe.Options{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestTranscribeContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Transcribe(ctx, []byte("audio"), transcribe.Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestSegmentWords(t *testing.T) {
	words := segmentWords(segment{Start: 1.0, End: 4.0, Text: " one two three"})
	if len(words) != 3 {
		t.Fatalf("len(words) = %d, want 3", len(words))
	}

	wantStarts := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, want := range wantStarts {
		if words[i].Start != want {
			t.Errorf("words[%d].Start = %v, want %v", i, words[i].Start, want)
		}
	}
	if got := words[2].End; got != 4*time.Second {
		t.Errorf("last word End = %v, want 4s", got)
	}
	for i := 1; i < len(words); i++ {
		if words[i].Start < words[i-1].End {
			t.Errorf("words overlap at index %d: %v < %v", i, words[i].Start, words[i-1].End)
		}
	}
}

func TestSegmentWordsEmpty(t *testing.T) {
	if words := segmentWords(segment{Start: 0, End: 1, Text: "   "}); words != nil {
		t.Errorf("expected nil words for whitespace-only segment, got %v", words)
	}
}

func TestBuildTranscriptDurationFallback(t *testing.T) {
	resp := &inferenceResponse{
		Text: " word",
		Segments: []segment{
			{Start: 0, End: 2.5, Text: " word"},
		},
	}
	transcript := buildTranscript(resp, "en")
	if transcript.Duration != 2500*time.Millisecond {
		t.Errorf("Duration = %v, want 2.5s from last segment", transcript.Duration)
	}
	if transcript.Language != "en" {
		t.Errorf("Language = %q, want fallback %q", transcript.Language, "en")
	}
}
