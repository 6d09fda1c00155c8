package resilience

import (
	"context"

	"github.com/MrWong99/voxbridge/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] over a primary transcription model
// and its fallbacks, typically a higher-quality model backed by one that is
// always available. Each entry has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary tried first.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a backend to the chain.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe returns the first successful transcript with Backend set. An
// empty text counts as success; the caller decides what it means.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (*stt.Transcript, error) {
	res, served, err := Call(ctx, f.group, func(ctx context.Context, p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, req)
	})
	if err != nil || res == nil {
		return res, err
	}
	out := *res
	out.Backend = served
	return &out, nil
}
