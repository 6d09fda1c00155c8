package config_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/menu"
)

func validConfig() *config.Config {
	return &config.Config{
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "openai"},
		},
		Messaging: config.MessagingConfig{
			AccountSID: "AC123",
			AuthToken:  "secret",
			From:       "whatsapp:+1555",
		},
	}
}

func TestValidate_Minimal(t *testing.T) {
	t.Parallel()
	if err := config.Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "invalid log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = "verbose" },
			want:   "server.log_level",
		},
		{
			name:   "relative public base url",
			mutate: func(c *config.Config) { c.Server.PublicBaseURL = "bot.example.com" },
			want:   "server.public_base_url",
		},
		{
			name:   "tls without key",
			mutate: func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "c.pem"} },
			want:   "server.tls",
		},
		{
			name:   "missing llm",
			mutate: func(c *config.Config) { c.Providers.LLM = config.ProviderEntry{} },
			want:   "providers.llm is required",
		},
		{
			name: "stt fallback without primary",
			mutate: func(c *config.Config) {
				c.Providers.STTFallback = config.ProviderEntry{Name: "whisper"}
			},
			want: "providers.stt_fallback",
		},
		{
			name:   "missing account sid",
			mutate: func(c *config.Config) { c.Messaging.AccountSID = "" },
			want:   "messaging.account_sid",
		},
		{
			name:   "missing auth token",
			mutate: func(c *config.Config) { c.Messaging.AuthToken = "" },
			want:   "messaging.auth_token",
		},
		{
			name:   "missing from",
			mutate: func(c *config.Config) { c.Messaging.From = "" },
			want:   "messaging.from",
		},
		{
			name:   "signature without public url",
			mutate: func(c *config.Config) { c.Messaging.ValidateSignature = true },
			want:   "messaging.validate_signature",
		},
		{
			name:   "unknown store backend",
			mutate: func(c *config.Config) { c.Store.Backend = "redis" },
			want:   "store.backend",
		},
		{
			name:   "postgres without dsn",
			mutate: func(c *config.Config) { c.Store.Backend = config.StorePostgres },
			want:   "store.postgres_dsn",
		},
		{
			name:   "dynamodb without table",
			mutate: func(c *config.Config) { c.Store.Backend = config.StoreDynamo },
			want:   "store.dynamo_table",
		},
		{
			name:   "negative allowance",
			mutate: func(c *config.Config) { c.Bot.FreeAllowance = -1 },
			want:   "bot.free_allowance",
		},
		{
			name:   "unknown language policy",
			mutate: func(c *config.Config) { c.Bot.UnknownLanguagePolicy = "guess" },
			want:   "bot.unknown_language_policy",
		},
		{
			name: "duplicate language code",
			mutate: func(c *config.Config) {
				c.Bot.Languages = []menu.Language{{Code: "en", Name: "English"}, {Code: "en", Name: "Englisch"}}
			},
			want: "bot.languages",
		},
		{
			name:   "default voice without locale",
			mutate: func(c *config.Config) { c.Bot.DefaultVoice = "en-US-Standard-C" },
			want:   "bot.default_locale",
		},
		{
			name:   "negative workers",
			mutate: func(c *config.Config) { c.Dispatch.Workers = -2 },
			want:   "dispatch.workers",
		},
		{
			name:   "negative media ttl",
			mutate: func(c *config.Config) { c.Media.TTL = -1 },
			want:   "media.ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_StoreBackendsWithSettings(t *testing.T) {
	t.Parallel()

	pg := validConfig()
	pg.Store = config.StoreConfig{Backend: config.StorePostgres, PostgresDSN: "env:DATABASE_URL"}
	if err := config.Validate(pg); err != nil {
		t.Errorf("postgres: unexpected error: %v", err)
	}

	ddb := validConfig()
	ddb.Store = config.StoreConfig{Backend: config.StoreDynamo, DynamoTable: "voxbridge", DynamoRegion: "eu-west-1"}
	if err := config.Validate(ddb); err != nil {
		t.Errorf("dynamodb: unexpected error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: "loud"},
		Store:  config.StoreConfig{Backend: "sqlite"},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("expected a joined error, got %T", err)
	}
	// log level, llm, account sid, auth token, from, store backend
	if n := len(joined.Unwrap()); n < 6 {
		t.Errorf("expected at least 6 errors, got %d: %v", n, err)
	}
}

func TestStoreBackend_IsValid(t *testing.T) {
	t.Parallel()
	for _, b := range []config.StoreBackend{config.StoreMemory, config.StorePostgres, config.StoreDynamo} {
		if !b.IsValid() {
			t.Errorf("%q should be valid", b)
		}
	}
	if config.StoreBackend("redis").IsValid() {
		t.Error("redis should not be valid")
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for kind, want := range map[string]string{"llm": "anthropic", "stt": "whisper", "tts": "google"} {
		if !slices.Contains(config.ValidProviderNames[kind], want) {
			t.Errorf("ValidProviderNames[%q] should contain %q", kind, want)
		}
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLMFallback.Name != "anthropic" {
		t.Errorf("llm providers = %q / %q", cfg.Providers.LLM.Name, cfg.Providers.LLMFallback.Name)
	}
	if cfg.Messaging.AuthToken != "env:TWILIO_AUTH_TOKEN" {
		t.Errorf("auth_token should stay an unresolved reference, got %q", cfg.Messaging.AuthToken)
	}
	if len(cfg.Bot.Languages) != 5 {
		t.Errorf("languages = %d, want 5", len(cfg.Bot.Languages))
	}
	if !cfg.Bot.VoiceStepEnabled() {
		t.Error("voice step should be enabled")
	}
}
