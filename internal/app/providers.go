package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/observe"
	"github.com/MrWong99/voxbridge/internal/resilience"
	"github.com/MrWong99/voxbridge/internal/secrets"
	"github.com/MrWong99/voxbridge/pkg/provider/llm"
	"github.com/MrWong99/voxbridge/pkg/provider/stt"
	"github.com/MrWong99/voxbridge/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. STT and LLM already include any configured
// fallback.
type Providers struct {
	STT stt.Provider
	LLM llm.Provider
	TTS tts.Provider
}

// ResolveSecrets replaces every secret reference in cfg with its value. An
// AWS SSM client is only created when an ssm: reference is present.
func ResolveSecrets(ctx context.Context, cfg *config.Config) error {
	fields := []*string{
		&cfg.Providers.STT.APIKey,
		&cfg.Providers.STTFallback.APIKey,
		&cfg.Providers.LLM.APIKey,
		&cfg.Providers.LLMFallback.APIKey,
		&cfg.Providers.TTS.APIKey,
		&cfg.Messaging.AuthToken,
		&cfg.Store.PostgresDSN,
	}

	r := &secrets.Resolver{}
	for _, f := range fields {
		if secrets.IsSSM(*f) {
			aws, err := secrets.NewAWS(ctx, cfg.Store.DynamoRegion)
			if err != nil {
				return err
			}
			r = aws
			break
		}
	}
	if err := r.ResolveAll(ctx, fields...); err != nil {
		return fmt.Errorf("app: resolve secrets: %w", err)
	}
	return nil
}

// BuildProviders instantiates all providers named in cfg using the registry.
// A configured fallback is chained behind its primary with one circuit
// breaker per backend.
func BuildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*Providers, error) {
	ps := &Providers{}
	fbCfg := fallbackConfig(metrics)

	if entry := cfg.Providers.STT; entry.Name != "" {
		primary, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		ps.STT = primary
		if fb := cfg.Providers.STTFallback; fb.Name != "" {
			secondary, err := reg.CreateSTT(fb)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
			}
			chain := resilience.NewSTTFallback(primary, label(entry), fbCfg)
			chain.AddFallback(label(fb), secondary)
			ps.STT = chain
		}
		slog.Info("provider created", "kind", "stt", "name", entry.Name, "fallback", cfg.Providers.STTFallback.Name)
	}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		primary, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		ps.LLM = primary
		if fb := cfg.Providers.LLMFallback; fb.Name != "" {
			secondary, err := reg.CreateLLM(fb)
			if err != nil {
				return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
			}
			chain := resilience.NewLLMFallback(primary, label(entry), fbCfg)
			chain.AddFallback(label(fb), secondary)
			ps.LLM = chain
		}
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "fallback", cfg.Providers.LLMFallback.Name)
	}

	if entry := cfg.Providers.TTS; entry.Name != "" {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", entry.Name)
	}

	if ps.LLM == nil {
		return nil, errors.New("app: an llm provider is required")
	}
	return ps, nil
}

// label names a breaker after provider and model so two entries of the same
// provider stay distinguishable.
func label(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

func fallbackConfig(m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
		OnFailover: func(from string, err error) {
			slog.Warn("provider failed, trying fallback", "provider", from, "err", err)
			m.RecordFallback(context.Background(), "provider", from)
		},
	}
}
