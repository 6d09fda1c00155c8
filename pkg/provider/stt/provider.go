// Package stt defines the Provider interface for batch Speech-to-Text backends.
//
// A provider receives one complete, already normalised audio clip (a voice
// note) and returns the recognised text together with the language the backend
// believes was spoken. Backends differ in how they report the language: some
// return an ISO 639-1 code, some a lower-case English name ("spanish"), and some
// nothing at all. Callers are expected to normalise the Language field and to
// fall back to text-based language detection when it is empty.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Request is a single transcription job.
type Request struct {
	// Audio holds the complete encoded audio clip (typically 16 kHz mono WAV).
	Audio []byte

	// Filename is the name reported to the backend. Most backends infer the
	// container format from its extension, so it should match the encoding of
	// Audio (e.g., "voice.wav").
	Filename string

	// ContentType is the MIME type of Audio (e.g., "audio/wav").
	ContentType string

	// LanguageHint is an optional ISO 639-1 code biasing recognition. Leave
	// empty to let the backend detect the language.
	LanguageHint string
}

// Transcript is the result of a successful transcription.
type Transcript struct {
	// Text is the recognised text, trimmed of surrounding whitespace.
	Text string

	// Language is the spoken language as reported by the backend. It may be a
	// two-letter code, a language name, or empty when the backend does not
	// report one.
	Language string

	// Backend names the fallback entry that produced the transcript. Only
	// fallback chains set it.
	Backend string
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe sends req to the backend and waits for the final transcript.
	// It performs a single attempt; failover is the caller's concern.
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}
