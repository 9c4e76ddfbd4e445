// Package openai implements a transcription provider backed by the
// OpenAI audio transcription API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/Metzpapa/bleai/pkg/provider/transcribe"
	"github.com/Metzpapa/bleai/pkg/types"
)

const defaultModel = oai.AudioModelWhisper1

// config holds the provider configuration.
type config struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures the OpenAI transcription provider.
type Option func(*config)

// WithBaseURL sets a custom API endpoint. Useful for OpenAI-compatible
// servers and proxies.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithHTTPClient sets a custom HTTP client, e.g. to adjust timeouts.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// Provider transcribes recordings through the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

var _ transcribe.Provider = (*Provider)(nil)

// New creates an OpenAI transcription provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key must not be empty")
	}

	cfg := &config{
		model: string(defaultModel),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client: oai.NewClient(clientOpts...),
		model:  cfg.model,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Transcribe sends the WAV recording to the transcription endpoint and
// maps the verbose response onto a transcript.
func (p *Provider) Transcribe(ctx context.Context, wav []byte, opts transcribe.Options) (*types.Transcript, error) {
	if len(wav) == 0 {
		return nil, fmt.Errorf("openai: audio data must not be empty")
	}

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model:          oai.AudioModel(p.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	// Word-level timestamps are a whisper feature. Newer transcription
	// models reject the granularity parameter and return text only.
	if p.model == string(defaultModel) {
		params.TimestampGranularities = []string{"word"}
	}
	if opts.Language != "" {
		params.Language = param.NewOpt(opts.Language)
	}
	if prompt := vocabularyPrompt(opts.Vocabulary); prompt != "" {
		params.Prompt = param.NewOpt(prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: transcription request: %w", err)
	}

	// The SDK decodes every response format into the plain Transcription
	// shape. The verbose fields (language, duration, words) survive in the
	// raw payload, so decode that.
	var verbose verboseTranscription
	if err := json.Unmarshal([]byte(resp.RawJSON()), &verbose); err != nil {
		return nil, fmt.Errorf("openai: parse verbose transcription: %w", err)
	}

	transcript := &types.Transcript{
		Text:     verbose.Text,
		Language: verbose.Language,
		Duration: secondsToDuration(verbose.Duration),
	}
	for _, w := range verbose.Words {
		transcript.Words = append(transcript.Words, types.Word{
			Word:  w.Word,
			Start: secondsToDuration(w.Start),
			End:   secondsToDuration(w.End),
		})
	}
	return transcript, nil
}

// verboseTranscription mirrors the verbose_json response payload.
type verboseTranscription struct {
	Language string        `json:"language"`
	Duration float64       `json:"duration"`
	Text     string        `json:"text"`
	Words    []verboseWord `json:"words"`
}

type verboseWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func vocabularyPrompt(vocabulary []string) string {
	if len(vocabulary) == 0 {
		return ""
	}
	// The prompt parameter biases recognition towards the terms it
	// contains. A comma-separated list is enough.
	prompt := "Vocabulary: " + vocabulary[0]
	for _, term := range vocabulary[1:] {
		prompt += ", " + term
	}
	return prompt
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
