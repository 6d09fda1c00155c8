package translate

import (
	"fmt"
	"strings"
)

// TranslationError reports a failed or empty translation.
type TranslationError struct {
	DestLang string
	Err      error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate: to %s: %v", e.DestLang, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// SynthesisError reports that every voice fallback step failed. Attempts
// holds one error per step tried, in order.
type SynthesisError struct {
	Lang     string
	Attempts []error
}

func (e *SynthesisError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("translate: synthesize %s: all %d attempts failed: %s",
		e.Lang, len(e.Attempts), strings.Join(parts, "; "))
}

func (e *SynthesisError) Unwrap() []error { return e.Attempts }
