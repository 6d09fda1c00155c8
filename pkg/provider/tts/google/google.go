// Package google provides a TTS provider backed by the Google Cloud
// Text-to-Speech REST API. It implements the tts.Provider interface.
//
// Voices are classified into quality tiers by family name: Neural2, Studio,
// Chirp and Journey voices are premium; Wavenet, News and Polyglot voices are
// neural; everything else is standard.
package google

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

const defaultEncoding = "OGG_OPUS"

var contentTypes = map[string]string{
	"OGG_OPUS": "audio/ogg",
	"MP3":      "audio/mpeg",
	"LINEAR16": "audio/wav",
	"MULAW":    "audio/basic",
}

// Option is a functional option for configuring the Google Provider.
type Option func(*Provider)

// WithAPIKey authenticates with a Google Cloud API key instead of
// application default credentials.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		if key != "" {
			p.clientOpts = append(p.clientOpts, option.WithAPIKey(key))
		}
	}
}

// WithCredentialsFile authenticates with a service account JSON file.
func WithCredentialsFile(path string) Option {
	return func(p *Provider) {
		if path != "" {
			p.clientOpts = append(p.clientOpts, option.WithCredentialsFile(path))
		}
	}
}

// WithEndpoint overrides the API base URL. Used for tests and regional endpoints.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.clientOpts = append(p.clientOpts, option.WithEndpoint(url))
		}
	}
}

// WithHTTPClient supplies the HTTP client. Authentication options are ignored
// when a client is given; the client is expected to carry its own credentials.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, option.WithHTTPClient(c))
	}
}

// WithEncoding sets the audio encoding ("OGG_OPUS", "MP3", "LINEAR16", "MULAW").
func WithEncoding(enc string) Option {
	return func(p *Provider) {
		if enc != "" {
			p.encoding = strings.ToUpper(enc)
		}
	}
}

// Provider implements tts.Provider backed by Google Cloud Text-to-Speech.
type Provider struct {
	svc        *texttospeech.Service
	encoding   string
	clientOpts []option.ClientOption
}

// New creates a Google TTS Provider. Without WithAPIKey, WithCredentialsFile
// or WithHTTPClient the client uses application default credentials.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	p := &Provider{encoding: defaultEncoding}
	for _, o := range opts {
		o(p)
	}
	if _, ok := contentTypes[p.encoding]; !ok {
		return nil, fmt.Errorf("google tts: unsupported encoding %q", p.encoding)
	}
	svc, err := texttospeech.NewService(ctx, p.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("google tts: create service: %w", err)
	}
	p.svc = svc
	return p, nil
}

// Synthesize renders req.Text with the requested voice. When VoiceName is
// empty Google picks a voice for LanguageCode and the optional gender.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("google tts: text must not be empty")
	}
	if req.LanguageCode == "" && req.VoiceName == "" {
		return nil, errors.New("google tts: language code or voice name is required")
	}

	sel := &texttospeech.VoiceSelectionParams{
		LanguageCode: req.LanguageCode,
		Name:         req.VoiceName,
	}
	if sel.LanguageCode == "" {
		sel.LanguageCode = localeOf(req.VoiceName)
	}
	if req.Gender != tts.GenderUnspecified {
		sel.SsmlGender = string(req.Gender)
	}

	resp, err := p.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input:       &texttospeech.SynthesisInput{Text: req.Text},
		Voice:       sel,
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: p.encoding},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google tts: synthesize: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("google tts: decode audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("google tts: empty audio content")
	}
	return &tts.Audio{Data: data, ContentType: contentTypes[p.encoding]}, nil
}

// ListVoices returns the full Google voice catalogue.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	resp, err := p.svc.Voices.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google tts: list voices: %w", err)
	}
	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		if v == nil || v.Name == "" {
			continue
		}
		voices = append(voices, tts.Voice{
			Name:          v.Name,
			LanguageCodes: append([]string(nil), v.LanguageCodes...),
			Gender:        tts.ParseGender(v.SsmlGender),
			Tier:          TierOf(v.Name),
		})
	}
	return voices, nil
}

var (
	premiumFamilies = []string{"Neural2", "Studio", "Chirp", "Journey"}
	neuralFamilies  = []string{"Wavenet", "News", "Polyglot"}
)

// TierOf classifies a Google voice name such as "es-ES-Neural2-A".
func TierOf(name string) tts.Tier {
	for _, f := range premiumFamilies {
		if strings.Contains(name, f) {
			return tts.TierPremium
		}
	}
	for _, f := range neuralFamilies {
		if strings.Contains(name, f) {
			return tts.TierNeural
		}
	}
	return tts.TierStandard
}

// localeOf extracts "es-ES" from "es-ES-Neural2-A".
func localeOf(voiceName string) string {
	parts := strings.SplitN(voiceName, "-", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[0] + "-" + parts[1]
}

var _ tts.Provider = (*Provider)(nil)
