package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// FakeClient returns deterministic JSON payloads per agent kind for
// offline/testing. Responses and Errors are keyed by the agent kind stored
// in the context; unmatched kinds fall back to an empty result.
type FakeClient struct {
	Responses map[string]string
	Errors    map[string]error

	mu    sync.Mutex
	calls []string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Responses: map[string]string{},
		Errors:    map[string]error{},
	}
}

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

// Calls returns the agent kinds seen so far. Fan-out makes the order
// nondeterministic; assert on membership, not position.
func (f *FakeClient) CallKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	kind := AgentKindFrom(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.mu.Unlock()
	if err, ok := f.Errors[kind]; ok {
		return nil, err
	}
	if body, ok := f.Responses[kind]; ok {
		return json.RawMessage(body), nil
	}
	return json.RawMessage(`{"findings": [], "summary": "no issues"}`), nil
}
