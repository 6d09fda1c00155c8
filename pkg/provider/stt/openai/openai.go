// Package openai provides a batch STT provider backed by the OpenAI audio
// transcription endpoint.
//
// The newer gpt-4o-*-transcribe models only return plain JSON without a
// language field, while whisper-1 supports verbose_json, which includes the
// detected language as an English language name. The provider requests
// verbose_json whenever the model supports it and reports whatever language the
// backend returned.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

const defaultModel = "whisper-1"

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

var _ stt.Provider = (*Provider)(nil)

type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the transcription model. Default: "whisper-1".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI transcription Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	cfg := &config{model: defaultModel, timeout: 60 * time.Second}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.model == "" {
		cfg.model = defaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retrying is the fallback chain's job.
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.model }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("openai stt: empty audio")
	}
	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(req.Audio), filename, contentType),
		Model:          oai.AudioModel(p.model),
		ResponseFormat: responseFormat(p.model),
	}
	if req.LanguageHint != "" {
		params.Language = param.NewOpt(req.LanguageHint)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe with %s: %w", p.model, err)
	}

	return &stt.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: languageFromRaw(resp.RawJSON()),
	}, nil
}

// responseFormat picks verbose_json for models that support it so the
// detected language is included in the response.
func responseFormat(model string) oai.AudioResponseFormat {
	if strings.HasPrefix(model, "whisper") {
		return oai.AudioResponseFormatVerboseJSON
	}
	return oai.AudioResponseFormatJSON
}

// languageFromRaw extracts the optional "language" field from the raw
// response body. The typed SDK response does not expose it.
func languageFromRaw(raw string) string {
	if raw == "" {
		return ""
	}
	var body struct {
		Language string `json:"language"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Language)
}
