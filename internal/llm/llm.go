package llm

import (
	"context"
	"encoding/json"
)

// Client is the single-call text completion interface every pipeline stage
// talks to. The prompt is one formatted instruction string; the response is
// expected to parse as a JSON object.
type Client interface {
	Name() string
	Close() error
	GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error)
}

type ctxKeyAgent struct{}

// WithAgentKind tags the context with the agent kind issuing the call.
// Clients use it for logging; the fake client uses it to pick a canned
// response.
func WithAgentKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, ctxKeyAgent{}, kind)
}

// AgentKindFrom returns the agent kind stored in the context.
func AgentKindFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyAgent{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}
