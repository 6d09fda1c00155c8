// Package langresolve decides which of a contact's two languages a message
// should be translated into, inferring conversational direction from the
// detected language of the message alone.
package langresolve

import (
	"fmt"
	"strings"

	"github.com/MrWong99/voxbridge/internal/contact"
)

// Policy selects the destination when the detected language is unknown.
type Policy string

const (
	// PolicyTarget translates undetectable input into the target language.
	PolicyTarget Policy = "target"
	// PolicySource translates undetectable input into the source language.
	PolicySource Policy = "source"
)

// ParsePolicy accepts "target", "source" or "" (meaning target).
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyTarget:
		return PolicyTarget, nil
	case PolicySource:
		return PolicySource, nil
	}
	return "", fmt.Errorf("langresolve: unknown policy %q (want target or source)", s)
}

// Resolve returns the destination language for a message detected as
// detected, given the session's source and target languages:
//
//   - unknown (empty) detection: chosen by policy
//   - detected == target: source (the contact is replying)
//   - detected == source: target (the contact is writing forward)
//   - any other language: source
//
// The result is always either s.SourceLang or s.TargetLang. Detected codes
// may be locales ("es-MX"); only the language part is compared.
func Resolve(detected string, s *contact.Session, policy Policy) string {
	d := base(detected)
	switch {
	case d == "":
		if policy == PolicySource {
			return s.SourceLang
		}
		return s.TargetLang
	case d == base(s.TargetLang):
		return s.SourceLang
	case d == base(s.SourceLang):
		return s.TargetLang
	default:
		return s.SourceLang
	}
}

func base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if code == "und" || code == "unknown" {
		return ""
	}
	return code
}
