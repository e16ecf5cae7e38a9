package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Technolog796/DeathMath/internal/config"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "gpt-test" || body.MaxTokens != 512 {
			t.Errorf("request: %+v", body)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
			t.Errorf("messages: %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "Ответ: 4"}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 7}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIOptions{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		Model:     "gpt-test",
		Timeout:   5 * time.Second,
		VerifySSL: true,
	})

	resp, err := p.Complete(context.Background(), &Request{
		System:    "Решай аккуратно.",
		User:      "Сколько будет 2+2?",
		MaxTokens: 512,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Ответ: 4" || resp.PromptTokens != 20 || resp.CompletionTokens != 7 {
		t.Fatalf("response: %+v", resp)
	}
}

func TestOpenAIProvider_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, Model: "gpt-test", VerifySSL: true})

	_, err := p.Complete(context.Background(), &Request{User: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !Transient(err) {
		t.Fatalf("503 should classify transient: %v", err)
	}
}

func TestGigaChatProvider_Complete(t *testing.T) {
	t.Parallel()

	var authCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Basic secret-credentials" {
			t.Errorf("auth header = %q", got)
		}
		if r.Header.Get("RqUID") == "" {
			t.Error("missing RqUID header")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("scope"); got != "GIGACHAT_API_PERS" {
			t.Errorf("scope = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "tok-123", "expires_at": 99999999999999}`))
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("bearer = %q", got)
		}

		var body gigaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// Temperature zero is sent as temperature 1 with top_p 0.
		if body.Temperature != 1 || body.TopP == nil || *body.TopP != 0 {
			t.Errorf("sampling params: temp=%v top_p=%v", body.Temperature, body.TopP)
		}
		if body.ProfanityCheck {
			t.Error("profanity check should be off")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "Ответ: 84"}}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 9}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGigaChatProvider(GigaChatOptions{
		Credentials: "secret-credentials",
		Scope:       "GIGACHAT_API_PERS",
		BaseURL:     srv.URL,
		AuthURL:     srv.URL + "/oauth",
		Model:       "GigaChat-Max",
		Timeout:     5 * time.Second,
		VerifySSL:   true,
	})

	for i := 0; i < 2; i++ {
		resp, err := p.Complete(context.Background(), &Request{User: "Найдите площадь.", MaxTokens: 256})
		if err != nil {
			t.Fatalf("Complete #%d: %v", i+1, err)
		}
		if resp.Text != "Ответ: 84" || resp.PromptTokens != 30 {
			t.Fatalf("response: %+v", resp)
		}
	}
	if got := authCalls.Load(); got != 1 {
		t.Fatalf("auth calls = %d, want 1 (token cached)", got)
	}
}

func TestGigaChatProvider_AuthRejectedIsFatal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "bad credentials"}`))
	}))
	defer srv.Close()

	p := NewGigaChatProvider(GigaChatOptions{
		Credentials: "wrong",
		BaseURL:     srv.URL,
		AuthURL:     srv.URL + "/oauth",
		Model:       "GigaChat-Max",
		VerifySSL:   true,
	})

	_, err := p.Complete(context.Background(), &Request{User: "hi"})
	if err == nil {
		t.Fatal("expected auth error")
	}
	var ee *EndpointError
	if !errors.As(err, &ee) || ee.Kind != KindFatal {
		t.Fatalf("err = %v, want fatal", err)
	}
}

type stubProvider struct {
	name  string
	calls atomic.Int64
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	s.calls.Add(1)
	return &Response{Text: s.name}, nil
}

func TestPool_RoundRobin(t *testing.T) {
	t.Parallel()

	a := &stubProvider{name: "ep-a"}
	b := &stubProvider{name: "ep-b"}
	pool := &Pool{providers: []Provider{a, b}}

	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		resp, err := pool.Complete(context.Background(), &Request{User: "x"})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		seen[resp.Text]++
	}
	if seen["ep-a"] != 3 || seen["ep-b"] != 3 {
		t.Fatalf("distribution: %v", seen)
	}
	if pool.Size() != 2 {
		t.Fatalf("size = %d", pool.Size())
	}
}

func TestNewPool(t *testing.T) {
	t.Parallel()

	mc := &config.ModelConfig{
		Name:      "gpt-test",
		ModelName: "gpt-test",
		APIType:   "openai",
		MaxTokens: 256,
		Endpoints: []config.Endpoint{
			{BaseURL: "http://localhost:1", APIKey: "k1"},
			{BaseURL: "http://localhost:2", APIKey: "k2"},
		},
	}
	pool, err := NewPool(mc)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if pool.Size() != 2 || pool.Name() != "openai" {
		t.Fatalf("pool: size=%d name=%q", pool.Size(), pool.Name())
	}

	mc.APIType = "grpc"
	if _, err := NewPool(mc); err == nil {
		t.Fatal("expected error for unknown api type")
	}

	if _, err := NewPool(&config.ModelConfig{Name: "empty"}); err == nil {
		t.Fatal("expected error for missing endpoints")
	}
}
