// Package whisper provides a batch STT provider backed by a self-hosted
// whisper.cpp server.
//
// The server exposes POST /inference, which accepts a multipart upload of a
// 16 kHz mono WAV file. With response_format=verbose_json the server reports
// the detected language next to the text, which lets this provider serve as an
// always-available secondary transcription model when the hosted one fails.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080")
//	tr, err := p.Transcribe(ctx, stt.Request{Audio: wav, Filename: "voice.wav"})
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

	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

// maxResponseBytes bounds how much of the server response is read.
const maxResponseBytes = 1 << 20

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server.
// Most deployments serve a single model and ignore this field.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage forces a recognition language. The default "auto" lets the
// server detect it.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		if lang != "" {
			p.language = lang
		}
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements stt.Provider against a whisper.cpp server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New returns a Provider talking to the whisper.cpp server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   "auto",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. The request hint, when set, takes
// precedence over the configured language.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	if !isWAV(req.Audio) {
		return nil, fmt.Errorf("whisper: audio is not a RIFF/WAVE file")
	}
	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	lang := p.language
	if req.LanguageHint != "" {
		lang = req.LanguageHint
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("whisper: write audio: %w", err)
	}
	fields := map[string]string{
		"response_format": "verbose_json",
		"language":        lang,
	}
	if p.model != "" {
		fields["model"] = p.model
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text             string `json:"text"`
		Language         string `json:"language"`
		DetectedLanguage string `json:"detected_language"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	language := result.Language
	if language == "" {
		language = result.DetectedLanguage
	}
	return &stt.Transcript{
		Text:     strings.TrimSpace(result.Text),
		Language: strings.TrimSpace(language),
	}, nil
}

// isWAV reports whether data starts with a RIFF/WAVE header.
func isWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}
