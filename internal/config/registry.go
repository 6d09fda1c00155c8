package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is registered under the entry's name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its configuration entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factoryTable holds the factories of one provider kind.
type factoryTable[T any] struct {
	kind string

	mu sync.RWMutex
	m  map[string]Factory[T]
}

func (t *factoryTable[T]) register(name string, f Factory[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[string]Factory[T])
	}
	t.m[name] = f
}

func (t *factoryTable[T]) create(entry ProviderEntry) (T, error) {
	t.mu.RLock()
	f, ok := t.m[entry.Name]
	t.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, t.kind, entry.Name)
	}
	return f(entry)
}

func (t *factoryTable[T]) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.m))
	for name := range t.m {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Registry maps provider names from the providers section to constructors,
// one table each for transcription, translation and synthesis backends.
// Registering a name twice replaces the earlier factory. Safe for concurrent
// use.
type Registry struct {
	llm factoryTable[llm.Provider]
	stt factoryTable[stt.Provider]
	tts factoryTable[tts.Provider]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.llm.kind, r.stt.kind, r.tts.kind = "llm", "stt", "tts"
	return r
}

func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) { r.llm.register(name, f) }
func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) { r.stt.register(name, f) }
func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) { r.tts.register(name, f) }

// CreateLLM builds the translation backend named by entry.Name. It wraps
// [ErrProviderNotRegistered] for unknown names; factory errors are returned
// unchanged.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) { return r.llm.create(entry) }

func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) { return r.stt.create(entry) }
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) { return r.tts.create(entry) }

// Names lists the registered names for kind ("llm", "stt" or "tts"), sorted.
// An unknown kind yields nil.
func (r *Registry) Names(kind string) []string {
	switch kind {
	case r.llm.kind:
		return r.llm.names()
	case r.stt.kind:
		return r.stt.names()
	case r.tts.kind:
		return r.tts.names()
	}
	return nil
}
