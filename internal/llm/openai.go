package llm

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider speaks the OpenAI chat-completions protocol, including
// self-hosted deployments behind alternate base URLs.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIOptions configures one OpenAI-compatible endpoint.
type OpenAIOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	VerifySSL bool
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	cfg := openai.DefaultConfig(strings.TrimSpace(opts.APIKey))
	if v := strings.TrimSpace(opts.BaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	cfg.HTTPClient = newHTTPClient(opts.Timeout, opts.VerifySSL)

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  strings.TrimSpace(opts.Model),
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: openai: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: openai: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: openai: nil request")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	r := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		r.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, r)
	if err != nil {
		return nil, Classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &EndpointError{Kind: KindTransient, Message: "empty choices"}
	}

	return &Response{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func newHTTPClient(timeout time.Duration, verifySSL bool) *http.Client {
	c := &http.Client{Timeout: timeout}
	if !verifySSL {
		c.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return c
}
