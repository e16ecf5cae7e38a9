package llm

import "context"

// Provider sends one prompt to one model endpoint. Implementations hide
// vendor request/response shapes; callers never branch on vendor identity.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single completion request.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Response is the raw endpoint output plus token usage.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
