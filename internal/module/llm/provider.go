// Package llm contains the text-generation provider used by the generation service: the
// Gemini REST client, a circuit-breaking decorator and a canned provider for local runs.
package llm

import (
	"context"
	"time"
)

// Finish reasons, normalized across providers.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
	FinishOther         = "other"
)

// Task labels a completion request. Providers use it for logs and metrics only; the canned
// provider also picks its response by task.
type Task string

const (
	TaskTailoredCV   Task = "tailored_cv"
	TaskCoverLetter  Task = "cover_letter"
	TaskStructuredCV Task = "structured_cv"
	TaskProfessional Task = "professional_profile"
	TaskUnclassified Task = ""
)

// Provider produces a completion for a single prompt.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Complete sends the prompt and returns the generated text.
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// CompletionRequest is one prompt with its sampling settings.
type CompletionRequest struct {
	Task        Task
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion is the provider's answer.
type Completion struct {
	Text         string
	FinishReason string
	Model        string
	Usage        Usage
	Duration     time.Duration
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Recorder receives provider telemetry. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordProviderRequest(provider, model, status, finishReason string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderRequest(string, string, string, string, time.Duration) {}
