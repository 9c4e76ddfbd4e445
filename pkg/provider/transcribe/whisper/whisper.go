// Package whisper implements a transcription provider backed by a
// whisper.cpp server.
//
// The provider talks to the server's /inference endpoint and requests
// the verbose response format. whisper.cpp reports timing per segment,
// not per word, so word-level offsets are synthesized by dividing each
// segment's span evenly across its words. That is coarse but keeps
// feedback alignment working against a fully self-hosted stack.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
	"github.com/Metzpapa/bleai/pkg/types"
)

const defaultLanguage = "en"

// Provider transcribes recordings through a whisper.cpp server.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

var _ transcribe.Provider = (*Provider)(nil)

// Option configures the whisper provider.
type Option func(*Provider)

// WithLanguage sets the default transcription language. Defaults to "en".
// A per-request language in transcribe.Options takes precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient sets a custom HTTP client, e.g. to adjust timeouts.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// New creates a whisper.cpp transcription provider.
//
// serverURL is the base URL of the whisper.cpp server, e.g.
// "http://localhost:8080".
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisper: server URL must not be empty")
	}

	p := &Provider{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		language:  defaultLanguage,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "whisper"
}

// Transcribe submits the WAV recording to the /inference endpoint and
// assembles the transcript from the returned segments.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, opts transcribe.Options) (*types.Transcript, error) {
	if len(wav) == 0 {
		return nil, fmt.Errorf("whisper: audio data must not be empty")
	}

	language := p.language
	if opts.Language != "" {
		language = opts.Language
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}
	if err := mw.WriteField("language", language); err != nil {
		return nil, fmt.Errorf("whisper: write language field: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if len(opts.Vocabulary) > 0 {
		if err := mw.WriteField("prompt", strings.Join(opts.Vocabulary, ", ")); err != nil {
			return nil, fmt.Errorf("whisper: write prompt field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("whisper: server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("whisper: decode response: %w", err)
	}

	return buildTranscript(&result, language), nil
}

// inferenceResponse mirrors the verbose_json payload of the whisper.cpp
// server.
type inferenceResponse struct {
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Text     string    `json:"text"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func buildTranscript(resp *inferenceResponse, fallbackLanguage string) *types.Transcript {
	language := resp.Language
	if language == "" {
		language = fallbackLanguage
	}

	transcript := &types.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: language,
		Duration: secondsToDuration(resp.Duration),
	}
	for _, seg := range resp.Segments {
		transcript.Words = append(transcript.Words, segmentWords(seg)...)
	}
	if transcript.Duration == 0 && len(transcript.Words) > 0 {
		transcript.Duration = transcript.Words[len(transcript.Words)-1].End
	}
	return transcript
}

// segmentWords splits a segment's text into words and spreads the
// segment's time span evenly across them.
func segmentWords(seg segment) []types.Word {
	fields := strings.Fields(seg.Text)
	if len(fields) == 0 {
		return nil
	}

	start := secondsToDuration(seg.Start)
	end := secondsToDuration(seg.End)
	if end < start {
		end = start
	}
	per := (end - start) / time.Duration(len(fields))

	words := make([]types.Word, len(fields))
	for i, field := range fields {
		wordStart := start + time.Duration(i)*per
		wordEnd := wordStart + per
		if i == len(fields)-1 {
			// Division truncates, so pin the final word to the segment
			// boundary instead of drifting short of it.
			wordEnd = end
		}
		words[i] = types.Word{
			Word:  field,
			Start: wordStart,
			End:   wordEnd,
		}
	}
	return words
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
