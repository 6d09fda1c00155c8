package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxbridge/internal/langresolve"
	"github.com/MrWong99/voxbridge/internal/menu"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"openai", "whisper"},
	"tts": {"google", "elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if u := cfg.Server.PublicBaseURL; u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("server.public_base_url %q must be an absolute URL", u))
		}
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required; every reply goes through translation"))
	}
	if cfg.Providers.LLMFallback.Name != "" && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallback requires providers.llm"))
	}
	if cfg.Providers.STTFallback.Name != "" && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallback requires providers.stt"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; voice notes will be answered as unsupported")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is not configured; voice notes will get text-only replies")
	} else if cfg.Server.PublicBaseURL == "" {
		slog.Warn("server.public_base_url is empty; synthesized audio cannot be linked and replies will be text-only")
	}

	// Messaging
	if cfg.Messaging.AccountSID == "" {
		errs = append(errs, errors.New("messaging.account_sid is required"))
	}
	if cfg.Messaging.AuthToken == "" {
		errs = append(errs, errors.New("messaging.auth_token is required"))
	}
	if cfg.Messaging.From == "" {
		errs = append(errs, errors.New("messaging.from is required"))
	}
	if cfg.Messaging.ValidateSignature && cfg.Server.PublicBaseURL == "" {
		errs = append(errs, errors.New("messaging.validate_signature requires server.public_base_url"))
	}

	// Store
	switch cfg.Store.Backend {
	case "", StoreMemory:
		slog.Warn("store.backend is memory; contact sessions are lost on restart")
	case StorePostgres:
		if cfg.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
		}
	case StoreDynamo:
		if cfg.Store.DynamoTable == "" {
			errs = append(errs, errors.New("store.dynamo_table is required when store.backend is dynamodb"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, postgres, dynamodb", cfg.Store.Backend))
	}

	// Bot
	errs = append(errs, validateBot(cfg.Bot)...)

	// Dispatch, media, speech
	if cfg.Dispatch.Workers < 0 {
		errs = append(errs, fmt.Errorf("dispatch.workers %d must not be negative", cfg.Dispatch.Workers))
	}
	if cfg.Dispatch.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("dispatch.queue_size %d must not be negative", cfg.Dispatch.QueueSize))
	}
	if cfg.Dispatch.TaskTimeout < 0 {
		errs = append(errs, fmt.Errorf("dispatch.task_timeout %s must not be negative", cfg.Dispatch.TaskTimeout))
	}
	if cfg.Media.TTL < 0 {
		errs = append(errs, fmt.Errorf("media.ttl %s must not be negative", cfg.Media.TTL))
	}
	if cfg.Speech.MaxDownloadBytes < 0 {
		errs = append(errs, fmt.Errorf("speech.max_download_bytes %d must not be negative", cfg.Speech.MaxDownloadBytes))
	}

	return errors.Join(errs...)
}

// validateBot checks the hot-reloadable section on its own so a reload can
// report problems in the same terms as startup.
func validateBot(b BotConfig) []error {
	var errs []error
	if b.FreeAllowance < 0 {
		errs = append(errs, fmt.Errorf("bot.free_allowance %d must not be negative", b.FreeAllowance))
	}
	if _, err := langresolve.ParsePolicy(b.UnknownLanguagePolicy); err != nil {
		errs = append(errs, fmt.Errorf("bot.unknown_language_policy: %w", err))
	}
	if len(b.Languages) > 0 {
		if _, err := menu.NewCatalog(b.Languages); err != nil {
			errs = append(errs, fmt.Errorf("bot.languages: %w", err))
		}
	}
	if b.DefaultVoice != "" && b.DefaultLocale == "" {
		errs = append(errs, errors.New("bot.default_locale is required when bot.default_voice is set"))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
