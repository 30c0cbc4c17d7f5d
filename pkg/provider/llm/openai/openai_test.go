package openai

import (
	"testing"

	"github.com/MrWong99/barkeep/pkg/provider/llm"
)

func TestConvertMessage_Roles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role    string
		wantErr bool
		check   func(t *testing.T, m llm.Message)
	}{
		{role: "system"},
		{role: "user"},
		{role: "assistant"},
		{role: "tool", wantErr: true},
		{role: "narrator", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			p, err := convertMessage(llm.Message{Role: tt.role, Content: "two mojitos"})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("convertMessage(%q): expected error", tt.role)
				}
				return
			}
			if err != nil {
				t.Fatalf("convertMessage(%q): %v", tt.role, err)
			}
			switch tt.role {
			case "system":
				if p.OfSystem == nil {
					t.Error("expected OfSystem to be set")
				}
			case "user":
				if p.OfUser == nil {
					t.Error("expected OfUser to be set")
				}
			case "assistant":
				if p.OfAssistant == nil {
					t.Error("expected OfAssistant to be set")
				}
			}
		})
	}
}

func TestBuildParams_JSONMode(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o-mini"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "pick an intent",
		Messages:     []llm.Message{{Role: "user", Content: "maybe a beer"}},
		JSONMode:     true,
		MaxTokens:    200,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected system + user message, got %d", len(params.Messages))
	}
	if params.ResponseFormat.OfJSONObject == nil {
		t.Error("expected JSON object response format")
	}
}

func TestBuildParams_JSONModeUnsupportedModel(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params.ResponseFormat.OfJSONObject != nil {
		t.Error("gpt-4 does not support JSON mode; response format must stay unset")
	}
}

func TestBuildParams_ResponseSchema(t *testing.T) {
	t.Parallel()

	schema := map[string]any{"type": "object"}
	req := llm.CompletionRequest{
		Messages:       []llm.Message{{Role: "user", Content: "the usual"}},
		JSONMode:       true,
		ResponseSchema: &llm.ResponseSchema{Name: "order_reply", Schema: schema},
	}

	params, err := (&Provider{model: "gpt-4o-mini"}).buildParams(req)
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	js := params.ResponseFormat.OfJSONSchema
	if js == nil {
		t.Fatal("expected json_schema response format")
	}
	if js.JSONSchema.Name != "order_reply" {
		t.Errorf("schema name = %q", js.JSONSchema.Name)
	}
	if params.ResponseFormat.OfJSONObject != nil {
		t.Error("json_object must not be set alongside a schema")
	}

	params, err = (&Provider{model: "o1-mini"}).buildParams(req)
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params.ResponseFormat.OfJSONSchema != nil || params.ResponseFormat.OfJSONObject != nil {
		t.Error("o1-mini has no JSON mode; response format must stay unset")
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model       string
		wantContext int
		wantJSON    bool
	}{
		{"gpt-4o-mini", 128_000, true},
		{"gpt-4", 8_192, false},
		{"gpt-3.5-turbo", 16_385, true},
		{"o3-mini", 200_000, true},
		{"o1-mini", 128_000, false},
		{"GPT-4.1-nano", 128_000, true},
		{"my-custom-model", 128_000, true},
	}
	for _, tt := range tests {
		caps := modelCapabilities(tt.model)
		if caps.ContextWindow != tt.wantContext {
			t.Errorf("modelCapabilities(%q).ContextWindow = %d, want %d", tt.model, caps.ContextWindow, tt.wantContext)
		}
		if caps.SupportsJSONMode != tt.wantJSON {
			t.Errorf("modelCapabilities(%q).SupportsJSONMode = %v, want %v", tt.model, caps.SupportsJSONMode, tt.wantJSON)
		}
		if caps.MaxOutputTokens <= 0 {
			t.Errorf("modelCapabilities(%q): expected positive MaxOutputTokens", tt.model)
		}
	}
}

func TestCountTokens_Positive(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o"}
	n, err := p.CountTokens([]llm.Message{{Role: "user", Content: "two mojitos and a diet coke"}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if n <= 4 {
		t.Errorf("expected more than the per-message overhead, got %d", n)
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("http://localhost:1234/v1"), WithOrganization("org-1"), WithTimeout(0)); err != nil {
		t.Errorf("New with options: %v", err)
	}
}
