package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/voxbridge/internal/contact"
	"github.com/MrWong99/voxbridge/internal/langresolve"
	"github.com/MrWong99/voxbridge/internal/menu"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/translate"
)

func newRecordID() string { return uuid.NewString() }

// HandleMessage advances the contact's session by one message and returns the
// reply to deliver. A returned error means processing was aborted; the caller
// sends a generic failure reply. Synthesis failures are not errors: the reply
// then carries text only.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) (*Reply, error) {
	ctx, span := observe.StartSpan(observe.WithContact(ctx, msg.ContactID), "bot.handle_message")
	defer span.End()

	set := b.settings.Load()
	log := observe.Logger(ctx)

	sess, err := b.store.Load(ctx, msg.ContactID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = contact.NewSession(msg.ContactID, b.now())
		if err := b.store.Upsert(ctx, sess); err != nil {
			return nil, err
		}
		log.Info("new contact")
		return &Reply{Text: welcomeText(set.Languages), Outcome: OutcomeWelcome}, nil
	}
	span.SetAttributes(attribute.String("bot.step", string(sess.Step)))

	text := strings.TrimSpace(msg.Text)
	if text != "" && strings.EqualFold(text, strings.TrimSpace(set.ResetKeyword)) {
		sess.Reset()
		if err := b.save(ctx, sess); err != nil {
			return nil, err
		}
		log.Info("session reset")
		return &Reply{Text: resetText(set.Languages), Outcome: OutcomeReset}, nil
	}

	switch sess.Step {
	case contact.StepAwaitingSource:
		return b.chooseSource(ctx, set, sess, text)
	case contact.StepAwaitingTarget:
		return b.chooseTarget(ctx, set, sess, text)
	case contact.StepAwaitingVoice:
		return b.chooseVoice(ctx, set, sess, text)
	case contact.StepReady:
		return b.routeReady(ctx, set, sess, msg)
	default:
		log.Warn("session in unknown step", "step", sess.Step)
		return &Reply{Text: setupIncompleteText(set.ResetKeyword), Outcome: OutcomeSetupIncomplete}, nil
	}
}

func (b *Bot) save(ctx context.Context, sess *contact.Session) error {
	sess.UpdatedAt = b.now()
	return b.store.Upsert(ctx, sess)
}

func (b *Bot) chooseSource(ctx context.Context, set *Settings, sess *contact.Session, text string) (*Reply, error) {
	choice := set.Languages.MatchLanguage(text)
	if !choice.Matched() {
		return &Reply{Text: unrecognizedLine + "\n\n" + sourceQuestion(set.Languages), Outcome: OutcomeMenuRetry}, nil
	}
	sess.SourceLang = choice.Language.Code
	sess.Step = contact.StepAwaitingTarget
	if err := b.save(ctx, sess); err != nil {
		return nil, err
	}
	return &Reply{Text: sourceChosenText(set.Languages, sess.SourceLang), Outcome: OutcomeMenu}, nil
}

func (b *Bot) chooseTarget(ctx context.Context, set *Settings, sess *contact.Session, text string) (*Reply, error) {
	if sess.SourceLang == "" {
		return &Reply{Text: setupIncompleteText(set.ResetKeyword), Outcome: OutcomeSetupIncomplete}, nil
	}
	choice := set.Languages.MatchLanguage(text)
	if !choice.Matched() {
		return &Reply{Text: unrecognizedLine + "\n\n" + targetQuestion(set.Languages), Outcome: OutcomeMenuRetry}, nil
	}
	if menu.BaseCode(choice.Language.Code) == menu.BaseCode(sess.SourceLang) {
		return &Reply{Text: sameLanguageText(set.Languages, sess.SourceLang), Outcome: OutcomeMenuRetry}, nil
	}

	sess.TargetLang = choice.Language.Code
	if set.VoicePreferenceStep {
		sess.Step = contact.StepAwaitingVoice
	} else {
		sess.Step = contact.StepReady
	}
	if err := b.save(ctx, sess); err != nil {
		return nil, err
	}

	out := targetChosenText(set.Languages, sess.TargetLang, set.VoicePreferenceStep)
	if !set.VoicePreferenceStep {
		out += "\n\n" + readyText(set.Languages, sess.SourceLang, sess.TargetLang, set.ResetKeyword)
	}
	return &Reply{Text: out, Outcome: OutcomeMenu}, nil
}

func (b *Bot) chooseVoice(ctx context.Context, set *Settings, sess *contact.Session, text string) (*Reply, error) {
	if !sess.Complete() {
		return &Reply{Text: setupIncompleteText(set.ResetKeyword), Outcome: OutcomeSetupIncomplete}, nil
	}
	choice := menu.MatchVoice(text)
	if !choice.Matched() {
		return &Reply{Text: unrecognizedVoice + "\n\n" + voiceQuestion(), Outcome: OutcomeMenuRetry}, nil
	}
	sess.VoicePreference = choice.Preference
	sess.Step = contact.StepReady
	if err := b.save(ctx, sess); err != nil {
		return nil, err
	}
	return &Reply{
		Text:    readyText(set.Languages, sess.SourceLang, sess.TargetLang, set.ResetKeyword),
		Outcome: OutcomeMenu,
	}, nil
}

// routeReady handles a message from a READY contact.
func (b *Bot) routeReady(ctx context.Context, set *Settings, sess *contact.Session, msg Message) (*Reply, error) {
	if !sess.Complete() {
		return &Reply{Text: setupIncompleteText(set.ResetKeyword), Outcome: OutcomeSetupIncomplete}, nil
	}
	if set.FreeAllowance > 0 && sess.PlanTier == contact.PlanFree && sess.UsageCounter >= set.FreeAllowance {
		return &Reply{Text: paywallText(set.PaywallURL), Outcome: OutcomePaywall}, nil
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case msg.Attachment.IsAudio() && b.speech != nil:
		return b.translateAudio(ctx, set, sess, msg.Attachment)
	case text != "":
		return b.translateText(ctx, set, sess, text)
	default:
		return &Reply{Text: unsupportedText, Outcome: OutcomeUnsupported}, nil
	}
}

func (b *Bot) translateText(ctx context.Context, set *Settings, sess *contact.Session, text string) (*Reply, error) {
	detected, err := b.translator.DetectLanguage(ctx, text)
	if err != nil {
		return nil, err
	}
	dest := langresolve.Resolve(detected, sess, set.UnknownLanguagePolicy)

	translated, err := b.translator.Translate(ctx, text, dest)
	if err != nil {
		return nil, err
	}
	if err := b.commit(ctx, sess, text, translated, detected, dest); err != nil {
		return nil, err
	}
	return &Reply{Text: translated, Outcome: OutcomeTranslated}, nil
}

func (b *Bot) translateAudio(ctx context.Context, set *Settings, sess *contact.Session, att *Attachment) (*Reply, error) {
	res, err := b.speech.Process(ctx, att.URL, att.ContentType)
	if err != nil {
		return nil, err
	}
	dest := langresolve.Resolve(res.Language, sess, set.UnknownLanguagePolicy)

	translated, err := b.translator.Translate(ctx, res.Text, dest)
	if err != nil {
		return nil, err
	}

	reply := &Reply{
		Text:    audioReplyText(set.Languages, res.Text, translated, dest),
		Outcome: OutcomeTranslated,
	}
	audio, err := b.translator.Synthesize(ctx, translated, dest, sess.VoicePreference)
	var synthErr *translate.SynthesisError
	switch {
	case err == nil:
		reply.Audio = audio
	case errors.As(err, &synthErr):
		observe.Logger(ctx).Warn("synthesis failed, replying with text only", "lang", dest, "err", err)
		reply.Outcome = OutcomeTextOnly
	default:
		return nil, err
	}

	if err := b.commit(ctx, sess, res.Text, translated, res.Language, dest); err != nil {
		return nil, err
	}
	return reply, nil
}

// commit appends the translation record and bumps the usage counter. Both
// are durable before the reply is returned.
func (b *Bot) commit(ctx context.Context, sess *contact.Session, original, translated, detected, dest string) error {
	src := menu.BaseCode(detected)
	if src == "" {
		src = otherOf(sess, dest)
	}
	rec := &contact.Record{
		ID:             b.newID(),
		ContactID:      sess.ContactID,
		OriginalText:   original,
		TranslatedText: translated,
		SourceLang:     src,
		DestLang:       dest,
		CreatedAt:      b.now(),
	}
	if err := b.store.InsertRecord(ctx, rec); err != nil {
		return err
	}
	sess.UsageCounter++
	if err := b.save(ctx, sess); err != nil {
		return fmt.Errorf("bot: save usage: %w", err)
	}
	return nil
}

// otherOf returns the session language that is not dest.
func otherOf(sess *contact.Session, dest string) string {
	if dest == sess.SourceLang {
		return sess.TargetLang
	}
	return sess.SourceLang
}
