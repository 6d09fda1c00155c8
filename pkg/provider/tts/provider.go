// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Google Cloud
// Text-to-Speech or ElevenLabs) and exposes two operations: listing the voice
// catalogue and synthesising one complete utterance. Voice selection policy
// (which voice to use for a language and gender) lives with the caller; the
// provider only reports what it has and renders what it is asked to.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req into a single encoded audio clip. An empty
	// VoiceName lets the backend choose a default voice for LanguageCode.
	// Implementations return an error rather than empty audio.
	Synthesize(ctx context.Context, req Request) (*Audio, error)

	// ListVoices returns every voice the backend offers. The list is expected to
	// change rarely; callers cache it.
	ListVoices(ctx context.Context) ([]Voice, error)
}
