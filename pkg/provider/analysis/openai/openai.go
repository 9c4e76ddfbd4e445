// Package openai implements an analysis provider backed by OpenAI
// vision-capable chat models.
//
// Contact sheets are attached to the request as data-URI image parts, so
// no separate upload step is needed and nothing persists on the OpenAI
// side beyond the completion call.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/Metzpapa/bleai/pkg/provider/analysis"
	"github.com/Metzpapa/bleai/pkg/types"
)

const (
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 4096
)

// config holds the provider configuration.
type config struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// Option configures the OpenAI analysis provider.
type Option func(*config)

// WithBaseURL sets a custom API endpoint. Useful for OpenAI-compatible
// servers and proxies.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the chat model. Must be vision-capable. Defaults to gpt-4o.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithMaxTokens caps the completion length. Defaults to 4096.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature. Zero uses the model default.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithHTTPClient sets a custom HTTP client, e.g. to adjust timeouts.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		c.httpClient = client
	}
}

// Provider evaluates practice attempts through the OpenAI chat API.
type Provider struct {
	client      oai.Client
	model       string
	maxTokens   int
	temperature float64
}

var _ analysis.Provider = (*Provider)(nil)

// New creates an OpenAI analysis provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key must not be empty")
	}

	cfg := &config{
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
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
		client:      oai.NewClient(clientOpts...),
		model:       cfg.model,
		maxTokens:   cfg.maxTokens,
		temperature: cfg.temperature,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// Analyze sends the evidence bundle to the chat API and parses the
// structured report from the response.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (*types.FeedbackReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.TextContentPart(analysis.UserText(req)),
	}
	for _, s := range req.Sheets {
		parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
			URL: s.DataURI(),
		}))
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(analysis.SystemPrompt(req)),
			oai.UserMessage(parts),
		},
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.maxTokens))
	}
	if p.temperature > 0 {
		params.Temperature = param.NewOpt(p.temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: analysis request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in analysis response")
	}

	report, err := analysis.ParseReport(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("openai: model %s returned an unparseable report: %w", p.model, err)
	}
	return report, nil
}
