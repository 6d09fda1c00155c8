// Package translate produces translated text and spoken renderings of it.
//
// Translation and language detection are single LLM completions. Synthesis
// walks a voice fallback chain until one step yields audio:
//
//  1. the best voice of the contact's preferred gender
//  2. the best voice of any gender
//  3. the language code alone, letting the provider choose
//  4. a fixed default voice and locale
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxbridge/internal/contact"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/voicecatalog"
	"github.com/MrWong99/voxbridge/pkg/provider/llm"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// VoicePicker selects a catalog voice. Implemented by *voicecatalog.Catalog.
type VoicePicker interface {
	PickVoice(ctx context.Context, lang string, gender tts.Gender) (voicecatalog.Entry, error)
}

// LanguageNamer renders a code as a human-readable name for prompts.
type LanguageNamer interface {
	LanguageName(code string) string
}

// Option configures a [Service].
type Option func(*Service)

// WithDefaultVoice sets the last-resort voice and locale.
// Default: "en-US-Standard-C" / "en-US".
func WithDefaultVoice(name, locale string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultVoice = name
		}
		if locale != "" {
			s.defaultLocale = locale
		}
	}
}

// WithLanguageNamer sets the code-to-name mapping used in prompts.
func WithLanguageNamer(n LanguageNamer) Option {
	return func(s *Service) { s.namer = n }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service translates, detects languages and synthesizes speech. Safe for
// concurrent use.
type Service struct {
	llm    llm.Provider
	tts    tts.Provider
	voices VoicePicker
	namer  LanguageNamer

	defaultVoice  string
	defaultLocale string
	metrics       *observe.Metrics
}

// New creates a Service. tts and voices may be nil when synthesis is disabled.
func New(llmp llm.Provider, ttsp tts.Provider, voices VoicePicker, opts ...Option) *Service {
	s := &Service{
		llm:           llmp,
		tts:           ttsp,
		voices:        voices,
		defaultVoice:  "en-US-Standard-C",
		defaultLocale: "en-US",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

const translatePrompt = `You are a translation engine. Translate the user's message into %s (language code %q).
Reply with the translated text only: no quotes, notes, transliterations or explanations.
Keep names, numbers, emoji and line breaks. If the message is already in %s, return it unchanged.`

const detectPrompt = `Identify the language of the user's message.
Reply with its two-letter ISO 639-1 code in lowercase and nothing else.
If you cannot tell, reply "und".`

func (s *Service) languageName(code string) string {
	if s.namer != nil {
		return s.namer.LanguageName(code)
	}
	return code
}

// Translate renders text in destLang. An error from the model or an empty
// reply is returned as *[TranslationError]; neither is retried here.
func (s *Service) Translate(ctx context.Context, text, destLang string) (out string, err error) {
	ctx, span := observe.StartSpan(ctx, "translate.translate")
	defer span.End()
	defer func(start time.Time) { s.metrics.ObserveStage(ctx, observe.StageTranslation, start, err) }(time.Now())

	name := s.languageName(destLang)
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:  fmt.Sprintf(translatePrompt, name, destLang, name),
		Messages:      []llm.Message{llm.UserMessage(text)},
		Deterministic: true,
	})
	if err != nil {
		return "", &TranslationError{DestLang: destLang, Err: err}
	}
	if resp != nil {
		span.SetAttributes(
			attribute.String("llm.model", resp.Model),
			attribute.String("llm.backend", resp.Backend),
		)
	}
	if resp != nil && resp.Truncated {
		return "", &TranslationError{DestLang: destLang, Err: errors.New("translation cut off at the token limit")}
	}
	if resp != nil {
		out = cleanCompletion(resp.Content)
	}
	if out == "" {
		return "", &TranslationError{DestLang: destLang, Err: errors.New("empty translation")}
	}
	return out, nil
}

// DetectLanguage asks the model for the ISO 639-1 code of text. It returns ""
// with a nil error when the model is unsure or answers something that is not
// a code.
func (s *Service) DetectLanguage(ctx context.Context, text string) (code string, err error) {
	ctx, span := observe.StartSpan(ctx, "translate.detect")
	defer span.End()
	defer func(start time.Time) { s.metrics.ObserveStage(ctx, observe.StageDetection, start, err) }(time.Now())

	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:  detectPrompt,
		Messages:      []llm.Message{llm.UserMessage(text)},
		Deterministic: true,
		MaxTokens:     8,
	})
	if err != nil {
		return "", fmt.Errorf("translate: detect language: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return parseCode(resp.Content), nil
}

// cleanCompletion trims whitespace, a wrapping code fence and one pair of
// wrapping quotes.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```"))
	}
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"«", "»"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}

func parseCode(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-' && r != '_'
	})
	if len(fields) == 0 {
		return ""
	}
	code := fields[0]
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if len(code) != 2 {
		return ""
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return code
}

func genderOf(p contact.VoicePreference) tts.Gender {
	switch p {
	case contact.VoiceMale:
		return tts.GenderMale
	case contact.VoiceFemale:
		return tts.GenderFemale
	default:
		return tts.GenderUnspecified
	}
}
