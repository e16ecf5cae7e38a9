// Package scheduler executes the cross product of models × examples under
// a global and a per-model concurrency bound. Failures are isolated per
// work item: a run always completes with a result for every item.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Technolog796/DeathMath/internal/cache"
	"github.com/Technolog796/DeathMath/internal/config"
	"github.com/Technolog796/DeathMath/internal/dataset"
	"github.com/Technolog796/DeathMath/internal/grader"
	"github.com/Technolog796/DeathMath/internal/llm"
	"github.com/Technolog796/DeathMath/internal/retry"
)

// Dispatcher sends one request to a model endpoint. *llm.Pool satisfies
// it; tests substitute fakes.
type Dispatcher interface {
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Scheduler fans work items out to providers and fans graded results back
// in. Construct with New; immutable afterwards.
type Scheduler struct {
	cfg    *config.Config
	cache  *cache.Store
	policy retry.Policy
	log    zerolog.Logger

	dispatchers map[string]Dispatcher
	limiters    map[string]*rateLimiter

	globalSem chan struct{}
}

// New builds a Scheduler for every model in cfg's model list.
func New(cfg *config.Config, store *cache.Store, policy retry.Policy, log zerolog.Logger) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("scheduler: nil config")
	}
	if store == nil {
		return nil, errors.New("scheduler: nil cache")
	}

	models := cfg.Listed()
	if len(models) == 0 {
		return nil, errors.New("scheduler: no models configured")
	}

	s := &Scheduler{
		cfg:         cfg,
		cache:       store,
		policy:      policy,
		log:         log,
		dispatchers: make(map[string]Dispatcher, len(models)),
		limiters:    make(map[string]*rateLimiter, len(models)),
		globalSem:   make(chan struct{}, cfg.MaxWorkers),
	}

	for _, mc := range models {
		pool, err := llm.NewPool(mc)
		if err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
		s.dispatchers[mc.Name] = pool
		s.limiters[mc.Name] = newRateLimiter(time.Duration(mc.RequestDelay))
	}
	return s, nil
}

// SetDispatcher replaces the dispatcher for a model. Test hook.
func (s *Scheduler) SetDispatcher(model string, d Dispatcher) {
	if s == nil || d == nil {
		return
	}
	s.dispatchers[model] = d
}

// Run evaluates every listed model on every given dataset and blocks until
// all work items reach a terminal state. Cancellation stops new dispatches
// promptly; items not yet dispatched are recorded as failed with the
// context error, so the report stays complete.
func (s *Scheduler) Run(ctx context.Context, datasets []dataset.Dataset) (*Report, error) {
	if s == nil {
		return nil, errors.New("scheduler: nil scheduler")
	}
	if ctx == nil {
		return nil, errors.New("scheduler: nil context")
	}
	if len(datasets) == 0 {
		return nil, errors.New("scheduler: no datasets")
	}

	start := time.Now()

	type loaded struct {
		kind     dataset.Kind
		examples []dataset.Example
	}
	sets := make([]loaded, 0, len(datasets))
	for _, ds := range datasets {
		examples, err := ds.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("scheduler: load dataset %q: %w", ds.Name(), err)
		}
		sets = append(sets, loaded{kind: ds.Kind(), examples: examples})
	}

	models := s.cfg.Listed()

	// One result slot per work item, filled in place so no ordering is
	// imposed on completion.
	var items []WorkItem
	for _, mc := range models {
		limit := s.cfg.ExamplesFor(mc)
		for _, set := range sets {
			for _, ex := range dataset.Take(set.examples, limit) {
				items = append(items, WorkItem{
					Model:   mc,
					Example: ex,
					Kind:    set.kind,
					Prompt:  FormatPrompt(set.kind, &ex),
				})
			}
		}
	}

	report := &Report{Results: make([]GradedResult, len(items))}

	modelSems := make(map[string]chan struct{}, len(models))
	for _, mc := range models {
		modelSems[mc.Name] = make(chan struct{}, mc.Parallel)
	}

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			item := &items[idx]
			report.Results[idx] = s.runItem(ctx, item, modelSems[item.Model.Name])
		}(i)
	}
	wg.Wait()

	for i := range report.Results {
		r := &report.Results[i]
		report.TotalTokens += r.Raw.PromptTokens + r.Raw.CompletionTokens
	}
	report.Elapsed = time.Since(start)
	return report, ctx.Err()
}

func (s *Scheduler) runItem(ctx context.Context, item *WorkItem, modelSem chan struct{}) GradedResult {
	out := GradedResult{
		Model:     item.Model.Name,
		Dataset:   item.Example.Dataset,
		ExampleID: item.Example.ID,
		Subject:   item.Example.Subject,
	}

	key := cache.Key(item.Model.Name, item.Model.SystemPrompt, item.Model.MaxTokens, item.Example.ID, item.Prompt)

	// Cache hits complete without consuming a live-dispatch slot.
	if entry, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		out.CacheHit = true
		out.Raw = RawResult{
			Text:             entry.Text,
			PromptTokens:     entry.PromptTokens,
			CompletionTokens: entry.CompletionTokens,
			Latency:          time.Duration(entry.LatencyMs) * time.Millisecond,
		}
		s.grade(&out, entry.Text, item)
		if out.Status == StatusGraded {
			out.Status = StatusCached
		}
		return out
	} else if err != nil {
		s.log.Warn().Str("model", item.Model.Name).Str("example", item.Example.ID).Err(err).
			Msg("cache lookup failed, dispatching live")
	}

	if err := acquire(ctx, modelSem); err != nil {
		out.Status = StatusFailed
		out.Raw.Err = err
		return out
	}
	defer func() { <-modelSem }()

	if err := acquire(ctx, s.globalSem); err != nil {
		out.Status = StatusFailed
		out.Raw.Err = err
		return out
	}
	defer func() { <-s.globalSem }()

	raw := s.dispatch(ctx, item)
	out.Raw = raw
	if raw.Err != nil {
		out.Status = StatusFailed
		s.log.Warn().Str("model", item.Model.Name).Str("example", item.Example.ID).
			Int("attempts", raw.Attempts).Err(raw.Err).Msg("work item failed")
		return out
	}

	entry := &cache.Entry{
		Text:             raw.Text,
		PromptTokens:     raw.PromptTokens,
		CompletionTokens: raw.CompletionTokens,
		LatencyMs:        raw.Latency.Milliseconds(),
	}
	if err := s.cache.Put(ctx, key, entry); err != nil {
		s.log.Warn().Str("model", item.Model.Name).Str("example", item.Example.ID).Err(err).
			Msg("cache write failed")
	}

	s.grade(&out, raw.Text, item)
	return out
}

func (s *Scheduler) grade(out *GradedResult, text string, item *WorkItem) {
	out.Verdict = grader.Grade(text, &item.Example, item.Kind)
	if out.Verdict.DataFault {
		out.Status = StatusDataFault
		return
	}
	out.Status = StatusGraded
}

// dispatch performs the live endpoint call under the retry policy.
func (s *Scheduler) dispatch(ctx context.Context, item *WorkItem) RawResult {
	d, ok := s.dispatchers[item.Model.Name]
	if !ok {
		return RawResult{Err: fmt.Errorf("scheduler: no dispatcher for model %q", item.Model.Name)}
	}
	limiter := s.limiters[item.Model.Name]

	req := &llm.Request{
		System:      item.Model.SystemPrompt,
		User:        item.Prompt,
		MaxTokens:   item.Model.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	var raw RawResult
	start := time.Now()
	attempts, err := s.policy.Do(ctx, func(ctx context.Context) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		s.log.Debug().Str("model", item.Model.Name).Str("example", item.Example.ID).Msg("api request")

		resp, err := d.Complete(ctx, req)
		if err != nil {
			return err
		}
		if err := llm.ScreenResponse(resp); err != nil {
			return err
		}

		raw.Text = resp.Text
		raw.PromptTokens = resp.PromptTokens
		raw.CompletionTokens = resp.CompletionTokens
		return nil
	})

	raw.Latency = time.Since(start)
	raw.Attempts = attempts
	raw.Err = err
	return raw
}

func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FormatPrompt renders the user prompt for one example.
func FormatPrompt(kind dataset.Kind, ex *dataset.Example) string {
	if ex == nil {
		return ""
	}

	var sb strings.Builder
	switch kind {
	case dataset.KindChoice:
		sb.WriteString("Выберите правильный вариант ответа.\n\n")
		sb.WriteString(strings.TrimSpace(ex.Statement))
		sb.WriteString("\n\n")
		for i, c := range ex.Choices {
			sb.WriteByte(byte('A' + i))
			sb.WriteString(". ")
			sb.WriteString(strings.TrimSpace(c))
			sb.WriteByte('\n')
		}
		sb.WriteString("\nВ последней строке напишите «Ответ: X», где X — буква варианта.\n")
	default:
		sb.WriteString("Решите задачу.\n\n")
		sb.WriteString(strings.TrimSpace(ex.Statement))
		sb.WriteString("\n\nВ последней строке напишите «Ответ: ...».\n")
	}
	return sb.String()
}

// rateLimiter enforces a minimum delay between consecutive requests to one
// model across all of its workers.
type rateLimiter struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
}

func newRateLimiter(delay time.Duration) *rateLimiter {
	if delay <= 0 {
		return nil
	}
	return &rateLimiter{delay: delay}
}

func (l *rateLimiter) Wait(ctx context.Context) error {
	if l == nil || l.delay <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	next := l.last.Add(l.delay)
	if next.Before(now) {
		next = now
	}
	l.last = next
	wait := next.Sub(now)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
