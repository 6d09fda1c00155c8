package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/voxbridge/internal/config"
	"github.com/MrWong99/voxbridge/internal/menu"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Bot.Languages = []menu.Language{{Code: "en", Name: "English"}}

	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("expected no restart sections, got %v", d.RestartRequired)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := validConfig()
	old.Server.LogLevel = config.LogInfo
	new := validConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone should not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_BotChanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.BotConfig)
	}{
		{"reset keyword", func(b *config.BotConfig) { b.ResetKeyword = "start over" }},
		{"allowance", func(b *config.BotConfig) { b.FreeAllowance = 5 }},
		{"voice step", func(b *config.BotConfig) {
			off := false
			b.VoicePreferenceStep = &off
		}},
		{"languages", func(b *config.BotConfig) { b.Languages = []menu.Language{{Code: "fr"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := validConfig()
			new := validConfig()
			tt.mutate(&new.Bot)

			d := config.Diff(old, new)
			if !d.BotChanged {
				t.Fatal("expected BotChanged=true")
			}
			if !d.Changed() {
				t.Error("Changed() should be true")
			}
			if d.LogLevelChanged {
				t.Error("log level did not change")
			}
		})
	}
}

func TestDiff_SameVoiceStepValueIsUnchanged(t *testing.T) {
	t.Parallel()
	a, b := true, true
	old := validConfig()
	old.Bot.VoicePreferenceStep = &a
	new := validConfig()
	new.Bot.VoicePreferenceStep = &b

	if d := config.Diff(old, new); d.BotChanged {
		t.Error("equal pointed-to values should not count as a change")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := validConfig()
	new := validConfig()
	new.Server.ListenAddr = ":9090"
	new.Dispatch.TaskTimeout = time.Minute
	new.Providers.TTS = config.ProviderEntry{Name: "google"}

	d := config.Diff(old, new)
	if d.Changed() {
		t.Error("no hot-reloadable field changed")
	}
	want := []string{"server", "providers", "dispatch"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
}
