package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const anthropicVersionHeader = "2023-06-01"

// ClaudeProvider speaks the Anthropic messages API. SDK-level retries are
// disabled; the retry controller owns backoff for every provider.
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
}

// ClaudeOptions configures one Anthropic endpoint.
type ClaudeOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	VerifySSL bool
}

func NewClaudeProvider(opts ClaudeOptions) *ClaudeProvider {
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(opts.APIKey)),
		option.WithHTTPClient(newHTTPClient(opts.Timeout, opts.VerifySSL)),
		option.WithMaxRetries(0),
		option.WithHeader("anthropic-version", anthropicVersionHeader),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1")))
	}

	client := anthropic.NewClient(sdkOpts...)
	return &ClaudeProvider{
		client: &client,
		model:  strings.TrimSpace(opts.Model),
	}
}

func (p *ClaudeProvider) Name() string {
	return "anthropic"
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: claude: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: claude: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.User)},
			},
		},
	}
	if system := strings.TrimSpace(req.System); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, Classify(err)
	}

	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}

	return &Response{
		Text:             sb.String(),
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}, nil
}
