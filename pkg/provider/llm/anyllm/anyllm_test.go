package anyllm

import (
	"context"
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "claude-3-5-haiku-latest"}

	tests := []struct {
		name      string
		req       llm.CompletionRequest
		wantMsgs  int
		wantTemp  bool
		wantLimit int
	}{
		{
			name: "deterministic translation",
			req: llm.CompletionRequest{
				SystemPrompt:  "Translate into English.",
				Messages:      []llm.Message{llm.UserMessage("Hola")},
				Deterministic: true,
				MaxTokens:     128,
			},
			wantMsgs:  2,
			wantTemp:  true,
			wantLimit: 128,
		},
		{
			name:     "backend defaults",
			req:      llm.CompletionRequest{Messages: []llm.Message{llm.UserMessage("x")}},
			wantMsgs: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := p.buildParams(tt.req)
			if params.Model != "claude-3-5-haiku-latest" {
				t.Errorf("Model = %q", params.Model)
			}
			if len(params.Messages) != tt.wantMsgs {
				t.Fatalf("len(Messages) = %d, want %d", len(params.Messages), tt.wantMsgs)
			}
			if tt.req.SystemPrompt != "" && params.Messages[0].Role != anyllmlib.RoleSystem {
				t.Errorf("first role = %q, want system", params.Messages[0].Role)
			}
			last := params.Messages[len(params.Messages)-1]
			if last.ContentString() != tt.req.Messages[0].Content {
				t.Errorf("user content = %q", last.ContentString())
			}
			switch {
			case tt.wantTemp && (params.Temperature == nil || *params.Temperature != 0):
				t.Errorf("Temperature = %v, want pointer to 0", params.Temperature)
			case !tt.wantTemp && params.Temperature != nil:
				t.Errorf("Temperature = %v, want nil", *params.Temperature)
			}
			switch {
			case tt.wantLimit > 0 && (params.MaxTokens == nil || *params.MaxTokens != tt.wantLimit):
				t.Errorf("MaxTokens = %v, want %d", params.MaxTokens, tt.wantLimit)
			case tt.wantLimit == 0 && params.MaxTokens != nil:
				t.Errorf("MaxTokens = %v, want nil", *params.MaxTokens)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("anthropic", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("cohere", "command-r"); err == nil {
		t.Error("expected error for unsupported backend")
	}
}

func TestSupportedProviders(t *testing.T) {
	got := SupportedProviders()
	if !slices.IsSorted(got) {
		t.Errorf("not sorted: %v", got)
	}
	for _, want := range []string{"anthropic", "gemini", "mistral", "groq", "deepseek", "ollama", "llamacpp", "llamafile", "openai"} {
		if !slices.Contains(got, want) {
			t.Errorf("missing %q in %v", want, got)
		}
	}
}

func TestComplete_NoMessages(t *testing.T) {
	p := &Provider{model: "m", name: "anthropic"}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
