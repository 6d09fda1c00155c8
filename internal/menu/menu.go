// Package menu turns free-form onboarding replies into language and voice
// choices.
//
// A reply matches a language when it is the menu number, the ISO 639-1 code
// (or a locale such as "es-MX"), the English or native name, or an alias. As a
// last resort the name is compared with Jaro-Winkler similarity so small typos
// ("spansh") still match. Matching ignores case and diacritics.
package menu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/voxbridge/internal/contact"
)

const (
	defaultFuzzyThreshold = 0.88
	minFuzzyLen           = 3
)

// Language is one entry of the numbered language menu.
type Language struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Native  string   `yaml:"native"`
	Aliases []string `yaml:"aliases"`
}

// DefaultLanguages is the menu used when none is configured.
var DefaultLanguages = []Language{
	{Code: "en", Name: "English", Native: "English"},
	{Code: "es", Name: "Spanish", Native: "Español", Aliases: []string{"castellano"}},
	{Code: "fr", Name: "French", Native: "Français"},
	{Code: "de", Name: "German", Native: "Deutsch"},
	{Code: "it", Name: "Italian", Native: "Italiano"},
	{Code: "pt", Name: "Portuguese", Native: "Português"},
	{Code: "zh", Name: "Chinese", Native: "中文", Aliases: []string{"mandarin"}},
	{Code: "ja", Name: "Japanese", Native: "日本語"},
	{Code: "ko", Name: "Korean", Native: "한국어"},
	{Code: "ar", Name: "Arabic", Native: "العربية"},
	{Code: "hi", Name: "Hindi", Native: "हिन्दी"},
	{Code: "ru", Name: "Russian", Native: "Русский"},
}

// Via tags how a reply matched. The zero value is NoMatch.
type Via int

const (
	NoMatch Via = iota
	ByNumber
	ByCode
	ByName
	ByFuzzy
)

func (v Via) String() string {
	switch v {
	case ByNumber:
		return "number"
	case ByCode:
		return "code"
	case ByName:
		return "name"
	case ByFuzzy:
		return "fuzzy"
	default:
		return "no_match"
	}
}

// Choice is the result of [Catalog.MatchLanguage].
type Choice struct {
	Language Language
	Via      Via
}

// Matched reports whether the reply selected a language.
func (c Choice) Matched() bool { return c.Via != NoMatch }

// VoiceChoice is the result of [MatchVoice]. Preference may be VoiceUnset
// when the contact explicitly chose "no preference".
type VoiceChoice struct {
	Preference contact.VoicePreference
	Via        Via
}

// Matched reports whether the reply selected a voice option.
func (c VoiceChoice) Matched() bool { return c.Via != NoMatch }

// Option configures a [Catalog].
type Option func(*Catalog)

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a fuzzy name
// match. Default: 0.88. A value above 1 disables fuzzy matching.
func WithFuzzyThreshold(t float64) Option {
	return func(c *Catalog) { c.fuzzyThreshold = t }
}

// Catalog is an immutable numbered language menu. It is safe for concurrent use.
type Catalog struct {
	langs          []Language
	byCode         map[string]int
	byName         map[string]int
	names          []menuName // byName keys in menu order
	fuzzyThreshold float64
}

type menuName struct {
	key   string
	index int
}

// NewCatalog validates langs and builds the lookup indexes. An empty list
// selects [DefaultLanguages].
func NewCatalog(langs []Language, opts ...Option) (*Catalog, error) {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	c := &Catalog{
		langs:          make([]Language, len(langs)),
		byCode:         make(map[string]int, len(langs)),
		byName:         make(map[string]int, len(langs)*3),
		fuzzyThreshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	var errs []error
	for i, l := range langs {
		l.Code = strings.ToLower(strings.TrimSpace(l.Code))
		if len(l.Code) != 2 {
			errs = append(errs, fmt.Errorf("menu: language %d: code %q must be two letters", i+1, l.Code))
			continue
		}
		if _, dup := c.byCode[l.Code]; dup {
			errs = append(errs, fmt.Errorf("menu: language %d: duplicate code %q", i+1, l.Code))
			continue
		}
		if l.Name == "" {
			l.Name = l.Code
		}
		c.langs[i] = l
		c.byCode[l.Code] = i
		for _, n := range append([]string{l.Name, l.Native}, l.Aliases...) {
			if k := fold(n); k != "" {
				if _, taken := c.byName[k]; !taken {
					c.byName[k] = i
					c.names = append(c.names, menuName{key: k, index: i})
				}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error. Used for the default menu.
func MustCatalog(langs []Language, opts ...Option) *Catalog {
	c, err := NewCatalog(langs, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Languages returns a copy of the menu entries in display order.
func (c *Catalog) Languages() []Language {
	return append([]Language(nil), c.langs...)
}

// Has reports whether code is on the menu.
func (c *Catalog) Has(code string) bool {
	_, ok := c.byCode[BaseCode(code)]
	return ok
}

// MatchLanguage normalizes a reply into a menu choice.
func (c *Catalog) MatchLanguage(input string) Choice {
	in := fold(input)
	if in == "" {
		return Choice{}
	}

	if n, err := strconv.Atoi(in); err == nil {
		if n >= 1 && n <= len(c.langs) {
			return Choice{Language: c.langs[n-1], Via: ByNumber}
		}
		return Choice{}
	}
	if i, ok := c.byCode[BaseCode(in)]; ok && isCodeLike(in) {
		return Choice{Language: c.langs[i], Via: ByCode}
	}
	if i, ok := c.byName[in]; ok {
		return Choice{Language: c.langs[i], Via: ByName}
	}
	if i, ok := c.fuzzy(in); ok {
		return Choice{Language: c.langs[i], Via: ByFuzzy}
	}
	return Choice{}
}

func (c *Catalog) fuzzy(in string) (int, bool) {
	if len([]rune(in)) < minFuzzyLen || c.fuzzyThreshold > 1 {
		return 0, false
	}
	// Equal scores go to the earlier menu entry.
	best, bestScore := -1, 0.0
	for _, n := range c.names {
		if s := matchr.JaroWinkler(in, n.key, false); s >= c.fuzzyThreshold && s > bestScore {
			best, bestScore = n.index, s
		}
	}
	return best, best >= 0
}

// LanguageName returns the English name for code, or the code itself when it
// is not on the menu.
func (c *Catalog) LanguageName(code string) string {
	if i, ok := c.byCode[BaseCode(code)]; ok {
		return c.langs[i].Name
	}
	return code
}

// CodeForName maps a language name ("spanish", "Español") or code ("es",
// "es-ES") to a menu code. It never fuzzy matches.
func (c *Catalog) CodeForName(name string) (string, bool) {
	in := fold(name)
	if in == "" {
		return "", false
	}
	if i, ok := c.byCode[BaseCode(in)]; ok && isCodeLike(in) {
		return c.langs[i].Code, true
	}
	if i, ok := c.byName[in]; ok {
		return c.langs[i].Code, true
	}
	return "", false
}

// Render returns the numbered language menu, one entry per line.
func (c *Catalog) Render() string {
	var b strings.Builder
	for i, l := range c.langs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, l.Name)
		if l.Native != "" && l.Native != l.Name {
			fmt.Fprintf(&b, " (%s)", l.Native)
		}
	}
	return b.String()
}

var voiceKeywords = map[string]contact.VoicePreference{
	"female": contact.VoiceFemale, "woman": contact.VoiceFemale, "f": contact.VoiceFemale,
	"femenino": contact.VoiceFemale, "mujer": contact.VoiceFemale, "femme": contact.VoiceFemale,
	"male": contact.VoiceMale, "man": contact.VoiceMale, "m": contact.VoiceMale,
	"masculino": contact.VoiceMale, "hombre": contact.VoiceMale, "homme": contact.VoiceMale,
	"any": contact.VoiceUnset, "none": contact.VoiceUnset, "skip": contact.VoiceUnset,
	"no preference": contact.VoiceUnset,
}

// MatchVoice normalizes a reply to the voice preference menu rendered by
// [RenderVoices]: 1 female, 2 male, 3 no preference, or a keyword.
func MatchVoice(input string) VoiceChoice {
	in := fold(input)
	switch in {
	case "":
		return VoiceChoice{}
	case "1":
		return VoiceChoice{Preference: contact.VoiceFemale, Via: ByNumber}
	case "2":
		return VoiceChoice{Preference: contact.VoiceMale, Via: ByNumber}
	case "3":
		return VoiceChoice{Preference: contact.VoiceUnset, Via: ByNumber}
	}
	if p, ok := voiceKeywords[in]; ok {
		return VoiceChoice{Preference: p, Via: ByName}
	}
	return VoiceChoice{}
}

// RenderVoices returns the voice preference menu.
func RenderVoices() string {
	return "1. Female\n2. Male\n3. No preference"
}

// BaseCode reduces a locale ("es-MX", "pt_BR") to its lowercase two-letter
// language code.
func BaseCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}

func isCodeLike(s string) bool {
	base := BaseCode(s)
	if len(base) != 2 {
		return false
	}
	return len(s) == 2 || (len(s) >= 4 && (s[2] == '-' || s[2] == '_'))
}

// fold lowercases, trims surrounding punctuation and removes diacritics.
func fold(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if s == "" {
		return ""
	}
	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
