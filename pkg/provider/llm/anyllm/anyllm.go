// Package anyllm provides an LLM provider backed by
// github.com/mozilla-ai/any-llm-go, so the ambiguity resolver can run against
// Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, llama.cpp or llamafile
// with the same configuration surface as OpenAI.
//
//	p, err := anyllm.New("ollama", "llama3.1", anyllmlib.WithBaseURL("http://localhost:11434"))
package anyllm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/barkeep/pkg/provider/llm"
	"github.com/MrWong99/barkeep/pkg/types"
)

type constructor func(...anyllmlib.Option) (anyllmlib.Provider, error)

func wrap[T anyllmlib.Provider](fn func(...anyllmlib.Option) (T, error)) constructor {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		p, err := fn(opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var backends = map[string]constructor{
	"openai":    wrap(anyllmoai.New),
	"anthropic": wrap(anthropic.New),
	"gemini":    wrap(gemini.New),
	"ollama":    wrap(ollama.New),
	"deepseek":  wrap(deepseek.New),
	"mistral":   wrap(mistral.New),
	"groq":      wrap(groq.New),
	"llamacpp":  wrap(llamacpp.New),
	"llamafile": wrap(llamafile.New),
}

// SupportedBackends lists the backend names accepted by New, sorted.
var SupportedBackends = slices.Sorted(maps.Keys(backends))

// Provider implements llm.Provider by wrapping an any-llm-go backend.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider for the named backend. Without an API key option
// the backend reads its usual environment variable (OPENAI_API_KEY,
// ANTHROPIC_API_KEY, ...).
func New(backendName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	name := strings.ToLower(backendName)
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q; supported: %s", backendName, strings.Join(SupportedBackends, ", "))
	}
	backend, err := ctor(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", name, err)
	}
	return &Provider{backend: backend, name: name, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s: empty choices in response", p.name)
	}

	choice := resp.Choices[0]
	out := &llm.CompletionResponse{Content: choice.Message.ContentString()}
	if resp.Usage != nil {
		out.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// CountTokens implements llm.Provider. Non-OpenAI models are counted with
// the cl100k_base encoding, which is close enough for budget checks.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.CountTokens(p.model, messages), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: messages}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

// modelFamilies maps a lower-cased model prefix to its limits. The first
// match wins; unknown models get the zero-override defaults.
var modelFamilies = []struct {
	prefix  string
	context int
	output  int
	json    bool
	noTools bool
}{
	{prefix: "gpt-4o", output: 16_384, json: true},
	{prefix: "gpt-3.5-turbo", context: 16_385, json: true},
	{prefix: "claude", context: 200_000, output: 8_192},
	{prefix: "gemini-1.5-pro", context: 2_097_152, output: 8_192},
	{prefix: "gemini", context: 1_048_576, output: 8_192},
	{prefix: "llama", context: 32_768, noTools: true},
	{prefix: "mistral", context: 32_768, noTools: true},
	{prefix: "qwen", context: 32_768, noTools: true},
}

func modelCapabilities(model string) types.ModelCapabilities {
	caps := types.ModelCapabilities{
		ContextWindow:       128_000,
		MaxOutputTokens:     4_096,
		SupportsToolCalling: true,
		SupportsStreaming:   true,
	}
	lower := strings.ToLower(model)
	for _, f := range modelFamilies {
		if !strings.HasPrefix(lower, f.prefix) {
			continue
		}
		if f.context > 0 {
			caps.ContextWindow = f.context
		}
		if f.output > 0 {
			caps.MaxOutputTokens = f.output
		}
		caps.SupportsJSONMode = f.json
		caps.SupportsToolCalling = !f.noTools
		break
	}
	return caps
}

var _ llm.Provider = (*Provider)(nil)
