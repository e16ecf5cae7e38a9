package scheduler

import (
	"time"

	"github.com/Technolog796/DeathMath/internal/config"
	"github.com/Technolog796/DeathMath/internal/dataset"
	"github.com/Technolog796/DeathMath/internal/grader"
)

// Status is the terminal state of one work item.
type Status string

const (
	// StatusGraded: a live dispatch succeeded and the answer was graded.
	StatusGraded Status = "graded"
	// StatusCached: the response came from the cache; no live dispatch.
	StatusCached Status = "cached"
	// StatusFailed: dispatch failed fatally or exhausted retries.
	StatusFailed Status = "failed"
	// StatusDataFault: the reference answer itself is malformed.
	StatusDataFault Status = "data_fault"
)

// WorkItem is one (model, example) unit of scheduled evaluation.
type WorkItem struct {
	Model   *config.ModelConfig
	Example dataset.Example
	Kind    dataset.Kind
	Prompt  string
}

// RawResult is the outcome of dispatching one work item.
type RawResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
	Attempts         int
	Err              error
}

// GradedResult pairs a raw result with its grading verdict.
type GradedResult struct {
	Model     string
	Dataset   string
	ExampleID string
	Subject   string
	Status    Status
	CacheHit  bool
	Verdict   grader.Verdict
	Raw       RawResult
}

// Report is everything a run produced, in no guaranteed order.
type Report struct {
	Results     []GradedResult
	Elapsed     time.Duration
	TotalTokens int
}
