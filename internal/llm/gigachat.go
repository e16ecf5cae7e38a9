package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultGigaChatBaseURL = "https://gigachat.devices.sberbank.ru/api/v1"
	defaultGigaChatAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	defaultGigaChatScope   = "GIGACHAT_API_CORP"

	// Access tokens live 30 minutes; refresh a little early.
	tokenRefreshSlack = 2 * time.Minute
)

// GigaChatProvider speaks the GigaChat chat API with OAuth credential
// exchange. Tokens are cached and refreshed before expiry.
type GigaChatProvider struct {
	credentials    string
	scope          string
	baseURL        string
	authURL        string
	model          string
	profanityCheck bool
	httpClient     *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// GigaChatOptions configures one GigaChat endpoint.
type GigaChatOptions struct {
	Credentials    string
	Scope          string
	BaseURL        string
	AuthURL        string
	Model          string
	ProfanityCheck bool
	Timeout        time.Duration
	VerifySSL      bool
}

func NewGigaChatProvider(opts GigaChatOptions) *GigaChatProvider {
	scope := strings.TrimSpace(opts.Scope)
	if scope == "" {
		scope = defaultGigaChatScope
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultGigaChatBaseURL
	}
	authURL := strings.TrimSpace(opts.AuthURL)
	if authURL == "" {
		authURL = defaultGigaChatAuthURL
	}

	return &GigaChatProvider{
		credentials:    strings.TrimSpace(opts.Credentials),
		scope:          scope,
		baseURL:        strings.TrimRight(baseURL, "/"),
		authURL:        authURL,
		model:          strings.TrimSpace(opts.Model),
		profanityCheck: opts.ProfanityCheck,
		httpClient:     newHTTPClient(opts.Timeout, opts.VerifySSL),
	}
}

func (p *GigaChatProvider) Name() string {
	return "gigachat"
}

type gigaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type gigaChatRequest struct {
	Model             string            `json:"model"`
	Messages          []gigaChatMessage `json:"messages"`
	Temperature       float64           `json:"temperature,omitempty"`
	TopP              *float64          `json:"top_p,omitempty"`
	MaxTokens         int               `json:"max_tokens,omitempty"`
	ProfanityCheck    bool              `json:"profanity_check"`
	RepetitionPenalty float64           `json:"repetition_penalty,omitempty"`
}

type gigaChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *GigaChatProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.httpClient == nil {
		return nil, errors.New("llm: gigachat: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: gigachat: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: gigachat: nil request")
	}

	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	msgs := make([]gigaChatMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		msgs = append(msgs, gigaChatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, gigaChatMessage{Role: "user", Content: req.User})

	body := gigaChatRequest{
		Model:          p.model,
		Messages:       msgs,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ProfanityCheck: p.profanityCheck,
	}
	// GigaChat rejects temperature 0; the deterministic equivalent is
	// temperature 1 with top_p 0.
	if req.Temperature == 0 {
		topP := 0.0
		body.Temperature = 1
		body.TopP = &topP
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: gigachat: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("llm: gigachat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, Classify(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &EndpointError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	var out gigaChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &EndpointError{Kind: KindTransient, Message: "malformed response body", Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &EndpointError{Kind: KindTransient, Message: "empty choices"}
	}

	return &Response{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}

func (p *GigaChatProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.expiresAt.Add(-tokenRefreshSlack)) {
		return p.accessToken, nil
	}
	if p.credentials == "" {
		return "", &EndpointError{Kind: KindFatal, Message: "missing gigachat credentials"}
	}

	form := url.Values{}
	form.Set("scope", p.scope)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("llm: gigachat: build auth request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "Basic "+p.credentials)
	httpReq.Header.Set("RqUID", uuid.NewString())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", Classify(err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &EndpointError{
			Kind:       KindFatal,
			StatusCode: resp.StatusCode,
			Message:    "auth rejected: " + strings.TrimSpace(string(body)),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &EndpointError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // unix millis
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", &EndpointError{Kind: KindTransient, Message: "malformed auth response", Err: err}
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", &EndpointError{Kind: KindFatal, Message: "auth response without access_token"}
	}

	p.accessToken = tok.AccessToken
	if tok.ExpiresAt > 0 {
		p.expiresAt = time.UnixMilli(tok.ExpiresAt)
	} else {
		p.expiresAt = time.Now().Add(30 * time.Minute)
	}
	return p.accessToken, nil
}
