// Package gemini implements speech synthesis against the Gemini
// generateContent REST API with audio response modality.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/talandis/cadenza/pkg/synth"
)

const (
	// DefaultModel is the speech generation model used when none is set.
	DefaultModel = "gemini-2.5-flash-preview-tts"

	// DefaultBaseURL is the Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// OutputSampleRate is the fixed PCM sample rate of generated audio.
	OutputSampleRate = 24000
)

// Compile-time interface assertion.
var _ synth.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel overrides the speech model.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = u }
}

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider synthesises speech via the Gemini API. It is safe for concurrent
// use.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		model:      DefaultModel,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Voices returns the prebuilt voice names accepted by the speech models.
func (p *Provider) Voices() []string {
	return []string{
		"Zephyr", "Puck", "Charon", "Kore", "Fenrir", "Leda",
		"Orus", "Aoede", "Callirrhoe", "Autonoe", "Enceladus", "Iapetus",
	}
}

// SampleRate returns the fixed output sample rate in Hz.
func (p *Provider) SampleRate() int { return OutputSampleRate }

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig             *voiceConfig             `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConfig *multiSpeakerVoiceConfig `json:"multiSpeakerVoiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type multiSpeakerVoiceConfig struct {
	SpeakerVoiceConfigs []speakerVoiceConfig `json:"speakerVoiceConfigs"`
}

type speakerVoiceConfig struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Synthesize generates speech for text and returns the inline base64 PCM
// payload. A response without audio parts yields an empty payload and a nil
// error.
func (p *Provider) Synthesize(ctx context.Context, text string, cfg synth.Config) (string, error) {
	prompt := text
	if cfg.Style != "" {
		prompt = cfg.Style + "\n\n" + text
	}
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       buildSpeechConfig(cfg),
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("gemini: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini: calling API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini: API returned %s: %s", resp.Status, msg)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: decoding response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	for _, pt := range out.Candidates[0].Content.Parts {
		if pt.InlineData != nil && pt.InlineData.Data != "" {
			return pt.InlineData.Data, nil
		}
	}
	return "", nil
}

func buildSpeechConfig(cfg synth.Config) speechConfig {
	if len(cfg.Speakers) == 0 {
		return speechConfig{
			VoiceConfig: &voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}
	msc := &multiSpeakerVoiceConfig{}
	for _, s := range cfg.Speakers {
		if s.Name == "" || s.VoiceID == "" {
			continue
		}
		msc.SpeakerVoiceConfigs = append(msc.SpeakerVoiceConfigs, speakerVoiceConfig{
			Speaker: s.Name,
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: s.VoiceID},
			},
		})
	}
	return speechConfig{MultiSpeakerVoiceConfig: msc}
}
