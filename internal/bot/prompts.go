package bot

import (
	"fmt"
	"strings"

	"github.com/MrWong99/voxbridge/internal/menu"
)

// GenericErrorText is sent when processing a message failed.
const GenericErrorText = "Sorry, something went wrong while processing your message. Please try again."

const (
	unsupportedText   = "Please send a text message or a voice note."
	unrecognizedLine  = "Sorry, I didn't recognize that language."
	unrecognizedVoice = "Sorry, I didn't get that. Reply with 1, 2 or 3."
)

func sourceQuestion(langs *menu.Catalog) string {
	return "Which language do you speak? Reply with a number or a name:\n" + langs.Render()
}

func targetQuestion(langs *menu.Catalog) string {
	return "Which language should I translate into? Reply with a number or a name:\n" + langs.Render()
}

func welcomeText(langs *menu.Catalog) string {
	return "Welcome! I translate your messages and voice notes between two languages.\n\n" + sourceQuestion(langs)
}

func resetText(langs *menu.Catalog) string {
	return "Your language settings were cleared.\n\n" + sourceQuestion(langs)
}

func sourceChosenText(langs *menu.Catalog, code string) string {
	return fmt.Sprintf("Your language: %s.\n\n%s", langs.LanguageName(code), targetQuestion(langs))
}

func sameLanguageText(langs *menu.Catalog, code string) string {
	return fmt.Sprintf("The translation language must differ from your own language (%s). Please pick another one.\n\n%s",
		langs.LanguageName(code), targetQuestion(langs))
}

func voiceQuestion() string {
	return "Which voice should I use for spoken replies?\n" + menu.RenderVoices()
}

func targetChosenText(langs *menu.Catalog, code string, askVoice bool) string {
	head := fmt.Sprintf("Translation language: %s.", langs.LanguageName(code))
	if askVoice {
		return head + "\n\n" + voiceQuestion()
	}
	return head
}

func readyText(langs *menu.Catalog, source, target, resetKeyword string) string {
	return fmt.Sprintf("All set: %s ⇄ %s. Send a message or a voice note and I will translate it. Send %q to change languages.",
		langs.LanguageName(source), langs.LanguageName(target), resetKeyword)
}

func setupIncompleteText(resetKeyword string) string {
	return fmt.Sprintf("Your setup is incomplete. Send %q to start over.", resetKeyword)
}

func paywallText(url string) string {
	msg := "You have used all of your free translations."
	if url != "" {
		msg += " Upgrade to keep translating: " + url
	}
	return msg
}

func audioReplyText(langs *menu.Catalog, transcript, translated, dest string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎙 %s\n", transcript)
	fmt.Fprintf(&b, "%s: %s", langs.LanguageName(dest), translated)
	return b.String()
}
