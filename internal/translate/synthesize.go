package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/voxbridge/internal/contact"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// Synthesis fallback step names, used in logs and metrics.
const (
	StepPreferredVoice = "preferred_voice"
	StepBestVoice      = "best_voice"
	StepLanguageOnly   = "language_only"
	StepDefaultVoice   = "default_voice"
)

// Synthesize speaks text in lang. It tries the voice fallback chain in order
// and returns the first non-empty audio. When every step fails the error is a
// *[SynthesisError]; callers treat it as non-fatal and send text only.
func (s *Service) Synthesize(ctx context.Context, text, lang string, pref contact.VoicePreference) (audio *tts.Audio, err error) {
	ctx, span := observe.StartSpan(ctx, "translate.synthesize")
	defer span.End()
	defer func(start time.Time) { s.metrics.ObserveStage(ctx, observe.StageSynthesis, start, err) }(time.Now())

	if s.tts == nil {
		return nil, &SynthesisError{Lang: lang, Attempts: []error{errors.New("synthesis disabled")}}
	}

	var (
		attempts []error
		tried    = make(map[string]bool)
		gender   = genderOf(pref)
		log      = observe.Logger(ctx)
	)

	attempt := func(step string, req tts.Request) *tts.Audio {
		if len(attempts) > 0 {
			s.metrics.RecordFallback(ctx, "synthesis", step)
		}
		a, err := s.tts.Synthesize(ctx, req)
		if err == nil && (a == nil || len(a.Data) == 0) {
			err = errors.New("empty audio")
		}
		if err != nil {
			log.Debug("synthesis step failed", "step", step, "voice", req.VoiceName, "lang", req.LanguageCode, "err", err)
			attempts = append(attempts, fmt.Errorf("%s: %w", step, err))
			return nil
		}
		if len(attempts) > 0 {
			log.Info("synthesis recovered by fallback", "step", step, "failed_steps", len(attempts))
		}
		return a
	}

	pick := func(step string, g tts.Gender) *tts.Audio {
		if s.voices == nil {
			return nil
		}
		v, err := s.voices.PickVoice(ctx, lang, g)
		if err != nil {
			attempts = append(attempts, fmt.Errorf("%s: %w", step, err))
			return nil
		}
		if tried[v.Name] {
			return nil
		}
		tried[v.Name] = true
		return attempt(step, tts.Request{Text: text, LanguageCode: v.Locale, VoiceName: v.Name})
	}

	// 1. Preferred gender.
	if gender != tts.GenderUnspecified {
		if a := pick(StepPreferredVoice, gender); a != nil {
			return a, nil
		}
	}
	// 2. Any gender.
	if a := pick(StepBestVoice, tts.GenderUnspecified); a != nil {
		return a, nil
	}
	// 3. Language only.
	if a := attempt(StepLanguageOnly, tts.Request{Text: text, LanguageCode: lang, Gender: gender}); a != nil {
		return a, nil
	}
	// 4. Fixed default.
	if a := attempt(StepDefaultVoice, tts.Request{Text: text, LanguageCode: s.defaultLocale, VoiceName: s.defaultVoice}); a != nil {
		return a, nil
	}

	return nil, &SynthesisError{Lang: lang, Attempts: attempts}
}
