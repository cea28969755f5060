// Package openai implements speech synthesis backed by the OpenAI
// text-to-speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/talandis/cadenza/pkg/pcm"
	"github.com/talandis/cadenza/pkg/synth"
)

const (
	// DefaultModel is the speech model used when none is set.
	DefaultModel = "gpt-4o-mini-tts"

	// DefaultVoice is used when the request names no voice.
	DefaultVoice = "alloy"

	// OutputSampleRate is the fixed rate of the raw PCM response format.
	OutputSampleRate = 24000
)

// Compile-time interface assertion.
var _ synth.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	model   string
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel overrides the default speech model.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements synth.Provider using the OpenAI speech API. The API
// has no multi-speaker mode, so requests with speakers are rejected.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new OpenAI speech Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: DefaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Voices returns the voice names accepted by the speech models.
func (p *Provider) Voices() []string {
	return []string{
		"alloy", "ash", "ballad", "coral", "echo",
		"fable", "nova", "onyx", "sage", "shimmer",
	}
}

// SampleRate returns the fixed output sample rate in Hz.
func (p *Provider) SampleRate() int { return OutputSampleRate }

// Synthesize implements synth.Provider. Style maps to the model's delivery
// instructions. An empty response body yields an empty payload and a nil
// error.
func (p *Provider) Synthesize(ctx context.Context, text string, cfg synth.Config) (string, error) {
	if len(cfg.Speakers) > 0 {
		return "", fmt.Errorf("%w: openai speech has no multi-speaker mode", synth.ErrValidation)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if cfg.Style != "" {
		params.Instructions = param.NewOpt(cfg.Style)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: speech request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: reading speech response: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}
	return pcm.EncodeBase64(raw), nil
}
