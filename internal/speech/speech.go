// Package speech turns a voice-note attachment into text plus a best-effort
// language code.
//
// [Pipeline.Process] downloads the attachment, normalizes it to mono 16 kHz
// WAV with an external transcoder, and transcribes it. Working files live in a
// per-message temporary directory that is removed on every exit path.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

const (
	defaultMaxDownloadBytes = 25 << 20
	defaultDownloadTimeout  = 30 * time.Second
)

// Detector identifies the language of a text. It returns "" when unsure.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// LanguageNamer maps a language name or locale reported by a transcription
// backend ("spanish", "es-ES") to a two-letter code.
type LanguageNamer interface {
	CodeForName(name string) (string, bool)
}

// Attachment is a downloaded media file.
type Attachment struct {
	Data        []byte
	ContentType string
}

// Result is the outcome of [Pipeline.Process].
type Result struct {
	Text     string
	Language string // two-letter code, or "" when neither backend nor detector knew
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithCredentials sets HTTP basic auth credentials for attachment downloads.
func WithCredentials(user, password string) Option {
	return func(p *Pipeline) { p.user, p.password = user, password }
}

// WithHTTPClient replaces the download HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithTempDir sets the parent directory for per-message working directories.
// Default: os.TempDir().
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithMaxDownloadBytes caps attachment size. Default: 25 MiB.
func WithMaxDownloadBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithDetector sets the text language detector used when transcription
// reports no language.
func WithDetector(d Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithLanguageNamer sets the mapping from reported language names to codes.
func WithLanguageNamer(n LanguageNamer) Option {
	return func(p *Pipeline) { p.namer = n }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline runs download, normalize and transcribe. Safe for concurrent use.
type Pipeline struct {
	stt        stt.Provider
	transcoder Transcoder
	detector   Detector
	namer      LanguageNamer
	metrics    *observe.Metrics

	client         *http.Client
	user, password string
	tempDir        string
	maxBytes       int64
}

// New creates a Pipeline. provider is typically a resilience.STTFallback
// chaining the primary and secondary transcription models.
func New(provider stt.Provider, transcoder Transcoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		stt:        provider,
		transcoder: transcoder,
		client:     &http.Client{Timeout: defaultDownloadTimeout},
		maxBytes:   defaultMaxDownloadBytes,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Download fetches url in a single attempt. Any transport failure or non-2xx
// status is returned as *[FetchError].
func (p *Pipeline) Download(ctx context.Context, url string) (att *Attachment, err error) {
	ctx, span := observe.StartSpan(ctx, "speech.download")
	defer span.End()
	defer func(start time.Time) { p.metrics.ObserveStage(ctx, observe.StageDownload, start, err) }(time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if p.user != "" {
		req.SetBasicAuth(p.user, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(data)) > p.maxBytes {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("attachment exceeds %d bytes", p.maxBytes)}
	}
	if len(data) == 0 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: errors.New("empty attachment")}
	}
	return &Attachment{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// Normalize writes raw into dir with an extension chosen from contentType,
// transcodes it and returns the path of the resulting WAV file. The caller
// owns dir and its cleanup.
func (p *Pipeline) Normalize(ctx context.Context, dir string, raw []byte, contentType string) (out string, err error) {
	ctx, span := observe.StartSpan(ctx, "speech.normalize")
	defer span.End()
	defer func(start time.Time) { p.metrics.ObserveStage(ctx, observe.StageTranscode, start, err) }(time.Now())

	in := filepath.Join(dir, "input"+extensionFor(contentType))
	if err := os.WriteFile(in, raw, 0o600); err != nil {
		return "", &TranscodeError{Err: err}
	}
	out = filepath.Join(dir, "normalized.wav")
	if err := p.transcoder.Transcode(ctx, in, out); err != nil {
		var te *TranscodeError
		if errors.As(err, &te) {
			return "", err
		}
		return "", &TranscodeError{Err: err}
	}
	return out, nil
}

// Transcribe turns normalized WAV audio into text. The language is reported
// as a two-letter code when the backend names one; otherwise it is left for
// the caller to detect. Failures, including an empty transcript, are returned
// as *[TranscriptionError].
func (p *Pipeline) Transcribe(ctx context.Context, wav []byte) (res *Result, err error) {
	ctx, span := observe.StartSpan(ctx, "speech.transcribe")
	defer span.End()
	defer func(start time.Time) { p.metrics.ObserveStage(ctx, observe.StageTranscription, start, err) }(time.Now())

	tr, err := p.stt.Transcribe(ctx, stt.Request{
		Audio:       wav,
		Filename:    "audio.wav",
		ContentType: "audio/wav",
	})
	if err != nil {
		return nil, &TranscriptionError{Err: err}
	}
	if tr == nil {
		return nil, &TranscriptionError{Err: errors.New("no transcript")}
	}
	if tr.Backend != "" {
		span.SetAttributes(attribute.String("stt.backend", tr.Backend))
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return nil, &TranscriptionError{Err: errors.New("empty transcript")}
	}
	return &Result{Text: text, Language: p.languageCode(tr.Language)}, nil
}

// Process runs the whole pipeline for one attachment. When transcription
// reports no language the configured [Detector] is asked; a detection failure
// is logged and leaves Language empty.
func (p *Pipeline) Process(ctx context.Context, url, contentTypeHint string) (*Result, error) {
	att, err := p.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	ct := att.ContentType
	if contentTypeHint != "" {
		ct = contentTypeHint
	}

	dir, err := os.MkdirTemp(p.tempDir, "voxbridge-*")
	if err != nil {
		return nil, &TranscodeError{Err: err}
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			observe.Logger(ctx).Warn("failed to remove working directory", "dir", dir, "err", rmErr)
		}
	}()

	wavPath, err := p.Normalize(ctx, dir, att.Data, ct)
	if err != nil {
		return nil, err
	}
	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, &TranscodeError{Err: err}
	}

	res, err := p.Transcribe(ctx, wav)
	if err != nil {
		return nil, err
	}
	if res.Language == "" && p.detector != nil {
		lang, derr := p.detector.DetectLanguage(ctx, res.Text)
		if derr != nil {
			observe.Logger(ctx).Warn("language detection failed", "err", derr)
		}
		res.Language = p.languageCode(lang)
	}
	return res, nil
}

func (p *Pipeline) languageCode(reported string) string {
	reported = strings.TrimSpace(reported)
	if reported == "" {
		return ""
	}
	if p.namer != nil {
		if code, ok := p.namer.CodeForName(reported); ok {
			return code
		}
	}
	// Unknown to the menu: keep a plain two-letter code, drop anything else.
	code := strings.ToLower(reported)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if len(code) == 2 {
		return code
	}
	return ""
}
