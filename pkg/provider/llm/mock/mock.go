// Package mock provides a scripted llm.Provider for tests.
//
// A message that needs detection and translation makes two completions in a
// row; Script answers them in order:
//
//	p := &mock.Provider{Script: []mock.Reply{
//		{Content: "es"},           // detect
//		{Content: "Good morning"}, // translate
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

// Reply is one scripted answer.
type Reply struct {
	Content   string
	Truncated bool
	Err       error
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	Ctx context.Context
	Req llm.CompletionRequest
}

// Provider is a mock llm.Provider. Each call consumes the next Script entry;
// once Script is used up, CompleteFunc, then CompleteResponse and CompleteErr
// answer.
type Provider struct {
	mu sync.Mutex

	Script []Reply

	// CompleteFunc answers per request when set.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CompleteResponse may be nil, in which case Complete returns nil, nil.
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	calls []CompleteCall
	next  int
}

var _ llm.Provider = (*Provider)(nil)

// Complete records the call and returns the next scripted answer.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, CompleteCall{Ctx: ctx, Req: req})
	if p.next < len(p.Script) {
		r := p.Script[p.next]
		p.next++
		p.mu.Unlock()
		if r.Err != nil {
			return nil, r.Err
		}
		return &llm.CompletionResponse{Content: r.Content, Truncated: r.Truncated}, nil
	}
	fn, resp, err := p.CompleteFunc, p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

// Calls returns a copy of the recorded calls in order.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Reset clears recorded calls and rewinds Script.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.next = 0
}
