package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/barkeep/pkg/provider/llm"
	llmmock "github.com/MrWong99/barkeep/pkg/provider/llm/mock"
	"github.com/MrWong99/barkeep/pkg/types"
)

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		primaryErr  error
		wantContent string
		wantErr     bool
		secondErr   error
	}{
		{name: "primary answers", wantContent: `{"intent":"add_item"}`},
		{name: "failover", primaryErr: errors.New("503"), wantContent: `{"intent":"help"}`},
		{name: "all fail", primaryErr: errors.New("503"), secondErr: errors.New("timeout"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			primary := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: `{"intent":"add_item"}`},
				CompleteErr:      tt.primaryErr,
			}
			secondary := &llmmock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: `{"intent":"help"}`},
				CompleteErr:      tt.secondErr,
			}
			fb := NewLLMFallback(primary, "openai", FallbackConfig{})
			fb.AddFallback("ollama", secondary)

			resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
			if tt.wantErr {
				if !errors.Is(err, ErrAllFailed) {
					t.Fatalf("expected ErrAllFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", resp.Content, tt.wantContent)
			}
			if tt.primaryErr == nil && len(secondary.Calls()) != 0 {
				t.Error("secondary must not be called when the primary succeeds")
			}
		})
	}
}

func TestLLMFallback_StaticMetadataUsesPrimary(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{TokenCount: 42, ModelCapabilities: types.ModelCapabilities{ContextWindow: 8_192}}
	secondary := &llmmock.Provider{TokenCount: 7, ModelCapabilities: types.ModelCapabilities{ContextWindow: 1}}
	fb := NewLLMFallback(primary, "openai", FallbackConfig{})
	fb.AddFallback("ollama", secondary)

	n, err := fb.CountTokens([]llm.Message{{Role: "user", Content: "x"}})
	if err != nil || n != 42 {
		t.Errorf("CountTokens = (%d, %v), want (42, nil)", n, err)
	}
	if got := fb.Capabilities().ContextWindow; got != 8_192 {
		t.Errorf("ContextWindow = %d, want 8192", got)
	}
	if st := fb.States(); len(st) != 2 {
		t.Errorf("expected two breaker states, got %v", st)
	}
}
