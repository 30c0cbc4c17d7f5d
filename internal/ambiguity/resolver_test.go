package ambiguity_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/barkeep/internal/ambiguity"
	"github.com/MrWong99/barkeep/internal/intent"
	"github.com/MrWong99/barkeep/internal/order"
	"github.com/MrWong99/barkeep/pkg/provider/llm"
	"github.com/MrWong99/barkeep/pkg/provider/llm/mock"
)

func localGuess() intent.Result {
	return intent.Result{
		Intent:             order.IntentModifyItem,
		Confidence:         0.35,
		AlternativeIntents: []order.Intent{order.IntentQuantityChange},
		NeedsClarification: true,
	}
}

func request() ambiguity.Request {
	oc := order.NewContext(time.Now())
	oc = oc.WithCommand("2 mojitos").WithCommand("change it")
	return ambiguity.Request{Text: "change it maybe", Local: localGuess(), Context: oc}
}

func TestResolve_ValidReply(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "```json\n" + `{"intent":"quantity_change","conversational_response":"How many would you like?","confidence":0.82}` + "\n```",
	}}
	r := ambiguity.New(p)

	res := r.Resolve(context.Background(), request())
	if res.Err != nil {
		t.Fatalf("unexpected err: %v", res.Err)
	}
	if res.Source != ambiguity.SourceLLM || res.Intent != order.IntentQuantityChange || res.Confidence != 0.82 {
		t.Errorf("resolution = %+v", res)
	}
	if res.SuggestedResponse != "How many would you like?" {
		t.Errorf("suggested response = %q", res.SuggestedResponse)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	req := calls[0].Req
	if !req.JSONMode || !strings.Contains(req.SystemPrompt, "check_inventory") {
		t.Error("request missing JSON mode or intent list")
	}
	msg := req.Messages[0].Content
	for _, want := range []string{"change it maybe", "modify_item", "quantity_change", `"previousCommands"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("user message missing %q:\n%s", want, msg)
		}
	}
}

func TestResolve_MissingConfidenceUsesDefault(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"intent":"add_item","conversational_response":"Coming up.","suggestedResponse":"One mojito, coming up."}`,
	}}
	res := ambiguity.New(p).Resolve(context.Background(), request())
	if res.Source != ambiguity.SourceLLM || res.Confidence <= 0 || res.SuggestedResponse != "One mojito, coming up." {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolve_FormatErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, content string
	}{
		{"not json", "I think they want a drink"},
		{"missing intent", `{"conversational_response":"ok"}`},
		{"missing response", `{"intent":"add_item"}`},
		{"unknown intent", `{"intent":"order_pizza","conversational_response":"ok"}`},
		{"wrong type", `{"intent":"add_item","conversational_response":42}`},
		{"confidence out of range", `{"intent":"add_item","conversational_response":"ok","confidence":1.7}`},
		{"array", `["add_item"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: tt.content}}
			res := ambiguity.New(p).Resolve(context.Background(), request())
			if !errors.Is(res.Err, ambiguity.ErrUpstreamFormat) {
				t.Fatalf("err = %v, want ErrUpstreamFormat", res.Err)
			}
			if res.Source != ambiguity.SourceLocal || res.Intent != order.IntentModifyItem || res.Confidence != 0.35 {
				t.Errorf("fallback = %+v, want best local guess", res)
			}
			if res.Clarification == "" {
				t.Error("fallback must carry a clarification prompt")
			}
		})
	}
}

func TestResolve_Timeout(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := ambiguity.New(p, ambiguity.WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := r.Resolve(context.Background(), request())
	if !errors.Is(res.Err, ambiguity.ErrUpstreamTimeout) {
		t.Fatalf("err = %v, want ErrUpstreamTimeout", res.Err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("resolve did not honour the timeout")
	}
	if res.Source != ambiguity.SourceLocal {
		t.Errorf("source = %q", res.Source)
	}
}

func TestResolve_ProviderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	p := &mock.Provider{CompleteErr: boom}
	res := ambiguity.New(p).Resolve(context.Background(), request())
	if !errors.Is(res.Err, boom) || res.Source != ambiguity.SourceLocal {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolve_NoProvider(t *testing.T) {
	t.Parallel()
	r := ambiguity.New(nil)
	if !r.LocalOnly() {
		t.Fatal("nil provider must be local-only")
	}
	res := r.Resolve(context.Background(), request())
	if !errors.Is(res.Err, ambiguity.ErrNoProvider) || res.Intent != order.IntentModifyItem {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolve_TrimsContextToBudget(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"intent":"help","conversational_response":"Sure."}`},
		TokenCount:       5000,
	}
	r := ambiguity.New(p, ambiguity.WithTokenBudget(100))
	res := r.Resolve(context.Background(), request())
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	msg := p.Calls()[0].Req.Messages[0].Content
	if strings.Contains(msg, "2 mojitos") {
		t.Errorf("old commands not trimmed:\n%s", msg)
	}
}

func TestClarify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		res  intent.Result
		want string
	}{
		{intent.Result{Intent: order.IntentUnknown}, ambiguity.GenericClarification},
		{intent.Result{Intent: order.IntentAddItem}, "Just to check, did you want to add something?"},
		{localGuess(), "Did you want to change a drink or change the quantity?"},
	}
	for _, tt := range tests {
		if got := ambiguity.Clarify(tt.res); got != tt.want {
			t.Errorf("Clarify(%v) = %q, want %q", tt.res.Intent, got, tt.want)
		}
	}
}
