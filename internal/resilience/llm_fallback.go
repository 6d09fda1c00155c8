package resilience

import (
	"context"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] over a primary translation backend
// and its fallbacks. Only an error moves on to the next backend: an empty
// or truncated reply is a successful call and is returned as is.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary tried first.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a backend to the chain.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete returns the first backend's answer, with Backend set to the
// entry that gave it.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, served, err := Call(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	if err != nil || resp == nil {
		return resp, err
	}
	out := *resp
	out.Backend = served
	return &out, nil
}
