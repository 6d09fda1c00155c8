// Package bot is the per-contact conversation engine. It drives onboarding
// (source language, target language, optional voice preference), gates
// translation behind a complete setup and the free allowance, and routes
// every message of a ready contact through transcription, language
// resolution, translation and synthesis.
//
// Every state change is persisted before the reply is returned, so a crash
// between persistence and delivery at worst repeats a prompt.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrWong99/voxbridge/internal/contact"
	"github.com/MrWong99/voxbridge/internal/langresolve"
	"github.com/MrWong99/voxbridge/internal/menu"
	"github.com/MrWong99/voxbridge/internal/speech"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// Attachment is an inbound media reference.
type Attachment struct {
	URL         string
	ContentType string
}

// IsAudio reports whether the attachment declares an audio content type.
func (a *Attachment) IsAudio() bool {
	return a != nil && strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.ContentType)), "audio/")
}

// Message is one inbound chat message.
type Message struct {
	ContactID  string
	Text       string
	Attachment *Attachment // nil when the message carries no media
}

// Kind classifies m for metrics: "audio", "text" or "other".
func (m Message) Kind() string {
	switch {
	case m.Attachment.IsAudio():
		return "audio"
	case strings.TrimSpace(m.Text) != "":
		return "text"
	default:
		return "other"
	}
}

// Outcome names how a message was answered.
type Outcome string

const (
	OutcomeWelcome         Outcome = "welcome"
	OutcomeReset           Outcome = "reset"
	OutcomeMenu            Outcome = "menu"
	OutcomeMenuRetry       Outcome = "menu_retry"
	OutcomeTranslated      Outcome = "translated"
	OutcomeTextOnly        Outcome = "text_only" // audio input, synthesis failed
	OutcomePaywall         Outcome = "paywall"
	OutcomeUnsupported     Outcome = "unsupported"
	OutcomeSetupIncomplete Outcome = "setup_incomplete"
)

// Reply is what the bot wants delivered to the contact.
type Reply struct {
	Text    string
	Audio   *tts.Audio // synthesized speech, nil for text-only replies
	Outcome Outcome
}

// SpeechProcessor turns an audio attachment into a transcript.
// Implemented by *speech.Pipeline.
type SpeechProcessor interface {
	Process(ctx context.Context, url, contentTypeHint string) (*speech.Result, error)
}

// Translator translates, detects and synthesizes. Implemented by
// *translate.Service.
type Translator interface {
	Translate(ctx context.Context, text, destLang string) (string, error)
	DetectLanguage(ctx context.Context, text string) (string, error)
	Synthesize(ctx context.Context, text, lang string, pref contact.VoicePreference) (*tts.Audio, error)
}

// Settings is the hot-reloadable behaviour of the bot.
type Settings struct {
	// ResetKeyword restarts onboarding when sent alone (case-insensitive).
	ResetKeyword string

	// FreeAllowance is the number of translations a free-plan contact gets.
	// Zero disables the paywall.
	FreeAllowance int64

	// PaywallURL is appended to the upsell reply when set.
	PaywallURL string

	// UnknownLanguagePolicy picks the destination for undetectable input.
	UnknownLanguagePolicy langresolve.Policy

	// VoicePreferenceStep inserts the voice menu after the target language.
	VoicePreferenceStep bool

	// Languages is the numbered language menu.
	Languages *menu.Catalog
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		ResetKeyword:          "reset",
		UnknownLanguagePolicy: langresolve.PolicyTarget,
		VoicePreferenceStep:   true,
		Languages:             menu.MustCatalog(nil),
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if strings.TrimSpace(s.ResetKeyword) == "" {
		s.ResetKeyword = d.ResetKeyword
	}
	if s.UnknownLanguagePolicy == "" {
		s.UnknownLanguagePolicy = d.UnknownLanguagePolicy
	}
	if s.Languages == nil {
		s.Languages = d.Languages
	}
	if s.FreeAllowance < 0 {
		s.FreeAllowance = 0
	}
	return s
}

// Option configures a [Bot].
type Option func(*Bot)

// WithSettings sets the initial settings. Default: [DefaultSettings].
func WithSettings(s Settings) Option {
	return func(b *Bot) { b.settings.Store(ptr(s.withDefaults())) }
}

// WithClock replaces time.Now. Used for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// WithIDGenerator replaces the translation record id generator.
func WithIDGenerator(fn func() string) Option {
	return func(b *Bot) { b.newID = fn }
}

// Bot is the session state machine. Safe for concurrent use; callers
// serialize messages of the same contact.
type Bot struct {
	store      contact.Store
	speech     SpeechProcessor
	translator Translator

	settings atomic.Pointer[Settings]
	now      func() time.Time
	newID    func() string
}

// New creates a Bot. speech may be nil, in which case voice notes are
// answered as unsupported.
func New(store contact.Store, sp SpeechProcessor, tr Translator, opts ...Option) (*Bot, error) {
	var errs []error
	if store == nil {
		errs = append(errs, errors.New("bot: store must not be nil"))
	}
	if tr == nil {
		errs = append(errs, errors.New("bot: translator must not be nil"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	b := &Bot{
		store:      store,
		speech:     sp,
		translator: tr,
		now:        time.Now,
		newID:      newRecordID,
	}
	b.settings.Store(ptr(DefaultSettings()))
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Settings returns a copy of the active settings.
func (b *Bot) Settings() Settings { return *b.settings.Load() }

// UpdateSettings atomically replaces the settings. Messages already in
// flight finish with the settings they started with.
func (b *Bot) UpdateSettings(s Settings) {
	b.settings.Store(ptr(s.withDefaults()))
}

func ptr[T any](v T) *T { return &v }
