package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Technolog796/DeathMath/internal/config"
)

// Pool holds one provider per configured endpoint of a model and hands
// requests to them round-robin.
type Pool struct {
	providers []Provider
	next      atomic.Uint64
}

// NewPool builds providers for every endpoint of a model config.
func NewPool(mc *config.ModelConfig) (*Pool, error) {
	if mc == nil {
		return nil, errors.New("llm: nil model config")
	}
	if len(mc.Endpoints) == 0 {
		return nil, fmt.Errorf("llm: model %q: no endpoints", mc.Name)
	}

	pool := &Pool{providers: make([]Provider, 0, len(mc.Endpoints))}
	for i := range mc.Endpoints {
		p, err := newProvider(mc, &mc.Endpoints[i])
		if err != nil {
			return nil, fmt.Errorf("llm: model %q endpoint %d: %w", mc.Name, i, err)
		}
		pool.providers = append(pool.providers, p)
	}
	return pool, nil
}

// Name returns the vendor name of the pool's providers.
func (p *Pool) Name() string {
	if p == nil || len(p.providers) == 0 {
		return ""
	}
	return p.providers[0].Name()
}

// Complete dispatches to the next endpoint in round-robin order.
func (p *Pool) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || len(p.providers) == 0 {
		return nil, errors.New("llm: empty provider pool")
	}
	idx := (p.next.Add(1) - 1) % uint64(len(p.providers))
	return p.providers[idx].Complete(ctx, req)
}

// Size returns the number of endpoints behind the pool.
func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return len(p.providers)
}

func newProvider(mc *config.ModelConfig, ep *config.Endpoint) (Provider, error) {
	verifySSL := true
	if ep.VerifySSL != nil {
		verifySSL = *ep.VerifySSL
	}

	switch strings.ToLower(strings.TrimSpace(mc.APIType)) {
	case "", "openai":
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:    ep.APIKey,
			BaseURL:   ep.URL(),
			Model:     mc.ModelName,
			Timeout:   ep.EffectiveTimeout(),
			VerifySSL: verifySSL,
		}), nil
	case "gigachat":
		profanity := true
		if ep.ProfanityCheck != nil {
			profanity = *ep.ProfanityCheck
		}
		return NewGigaChatProvider(GigaChatOptions{
			Credentials:    ep.Credentials,
			Scope:          ep.Scope,
			BaseURL:        ep.URL(),
			Model:          mc.ModelName,
			ProfanityCheck: profanity,
			Timeout:        ep.EffectiveTimeout(),
			VerifySSL:      verifySSL,
		}), nil
	case "anthropic", "claude":
		return NewClaudeProvider(ClaudeOptions{
			APIKey:    ep.APIKey,
			BaseURL:   ep.URL(),
			Model:     mc.ModelName,
			Timeout:   ep.EffectiveTimeout(),
			VerifySSL: verifySSL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown api type %q", mc.APIType)
	}
}
