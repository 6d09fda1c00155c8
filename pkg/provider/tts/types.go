package tts

import "strings"

// Gender is the voice gender reported by a backend.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderNeutral     Gender = "NEUTRAL"
)

// ParseGender maps backend spellings ("male", "FEMALE", "SSML_VOICE_GENDER_UNSPECIFIED")
// onto a Gender.
func ParseGender(s string) Gender {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MALE":
		return GenderMale
	case "FEMALE":
		return GenderFemale
	case "NEUTRAL":
		return GenderNeutral
	default:
		return GenderUnspecified
	}
}

// Tier ranks voice quality. Higher is better.
type Tier int

const (
	// TierStandard is a concatenative or parametric voice.
	TierStandard Tier = iota
	// TierNeural is a mid-range neural voice.
	TierNeural
	// TierPremium is the provider's best neural voice family.
	TierPremium
)

// String returns the tier name used in logs and metrics.
func (t Tier) String() string {
	switch t {
	case TierPremium:
		return "premium"
	case TierNeural:
		return "neural"
	default:
		return "standard"
	}
}

// Voice describes one voice in a provider's catalogue.
type Voice struct {
	// Name is the provider-specific voice identifier passed back in Request.VoiceName.
	Name string

	// LanguageCodes lists the BCP-47 locales the voice speaks (e.g., "es-ES").
	LanguageCodes []string

	// Gender is the voice gender, if the provider reports one.
	Gender Gender

	// Tier is the quality tier derived from the voice family.
	Tier Tier
}

// Request describes one synthesis call.
type Request struct {
	// Text is the text to speak.
	Text string

	// LanguageCode is a BCP-47 locale ("es-ES") or a bare ISO 639-1 code ("es").
	LanguageCode string

	// VoiceName selects a specific voice. Empty lets the provider choose.
	VoiceName string

	// Gender is an optional hint used when VoiceName is empty.
	Gender Gender
}

// Audio is a synthesised clip.
type Audio struct {
	// Data holds the encoded audio bytes.
	Data []byte

	// ContentType is the MIME type of Data (e.g., "audio/ogg").
	ContentType string
}
