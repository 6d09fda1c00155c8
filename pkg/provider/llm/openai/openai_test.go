package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/voxbridge/pkg/provider/llm"
)

// fakeChat answers /chat/completions with content and finishReason and
// sends each decoded request body to bodies.
func fakeChat(t *testing.T, content, finishReason string, bodies chan<- map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini-2024-07-18",
			"choices":[{"index":0,"finish_reason":%q,"message":{"role":"assistant","content":%q}}],
			"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`, finishReason, content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		req           llm.CompletionRequest
		finishReason  string
		wantTruncated bool
		wantSeed      bool
	}{
		{
			name: "deterministic translation",
			req: llm.CompletionRequest{
				SystemPrompt:  "Translate into English.",
				Messages:      []llm.Message{llm.UserMessage("Hola")},
				Deterministic: true,
			},
			finishReason: "stop",
			wantSeed:     true,
		},
		{
			name: "cut off at token limit",
			req: llm.CompletionRequest{
				Messages:  []llm.Message{llm.UserMessage("Hola")},
				MaxTokens: 1,
			},
			finishReason:  "length",
			wantTruncated: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bodies := make(chan map[string]any, 1)
			srv := fakeChat(t, "Hello", tt.finishReason, bodies)

			p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			resp, err := p.Complete(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if resp.Content != "Hello" {
				t.Errorf("Content = %q, want Hello", resp.Content)
			}
			if resp.Model != "gpt-4o-mini-2024-07-18" {
				t.Errorf("Model = %q", resp.Model)
			}
			if resp.Truncated != tt.wantTruncated {
				t.Errorf("Truncated = %v, want %v", resp.Truncated, tt.wantTruncated)
			}
			if resp.Usage.TotalTokens != 6 {
				t.Errorf("TotalTokens = %d, want 6", resp.Usage.TotalTokens)
			}

			body := <-bodies
			if body["model"] != "gpt-4o-mini" {
				t.Errorf("request model = %v", body["model"])
			}
			_, hasSeed := body["seed"]
			if hasSeed != tt.wantSeed {
				t.Errorf("seed present = %v, want %v (body %v)", hasSeed, tt.wantSeed, body)
			}
			if tt.wantSeed {
				if temp, ok := body["temperature"].(float64); !ok || temp != 0 {
					t.Errorf("temperature = %v, want 0", body["temperature"])
				}
			} else if _, ok := body["temperature"]; ok {
				t.Errorf("temperature should be left to the backend, got %v", body["temperature"])
			}
		})
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o-mini"}

	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "translate",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "hola"},
			{Role: llm.RoleAssistant, Content: "hello"},
			{Role: llm.RoleUser, Content: "adiós"},
		},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("len(Messages) = %d, want 4", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil || params.Messages[2].OfAssistant == nil {
		t.Error("system prompt must come first and roles must be kept")
	}
	if params.MaxCompletionTokens.Value != 256 {
		t.Errorf("MaxCompletionTokens = %v, want 256", params.MaxCompletionTokens.Value)
	}

	if _, err := p.buildParams(llm.CompletionRequest{}); err == nil {
		t.Error("expected error for a request without messages")
	}
	if _, err := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: "tool", Content: "x"}}}); err == nil {
		t.Error("expected error for an unknown role")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("sk", ""); err == nil {
		t.Error("expected error for empty model")
	}
}
