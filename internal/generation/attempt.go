package generation

import (
	"context"
	"time"

	"agenticos/internal/recovery"
	"agenticos/internal/types"
)

// Attempt records one request to one candidate model.
type Attempt struct {
	Provider   types.Provider `json:"provider"`
	Model      string         `json:"model"`
	Started    time.Time      `json:"started"`
	Duration   time.Duration  `json:"duration"`
	StatusCode int            `json:"status_code,omitempty"`
	Usage      types.Usage    `json:"usage"`
	Err        error          `json:"-"`
}

// Succeeded reports whether the attempt produced non-empty text.
func (a Attempt) Succeeded() bool { return a.Err == nil }

// Result is a successful generation with its provenance.
type Result struct {
	Artifact types.Artifact
	Provider types.Provider
	Model    string
	Attempts []Attempt
	Usage    types.Usage
	Duration time.Duration

	// Recovery details from recovery.Analyze.
	Strategy    recovery.Strategy
	BracesAdded int
	Diagnostic  bool
	RecoveryErr error
}

// Observer is notified as a generation progresses. Calls are synchronous
// on the generating goroutine and must not block.
type Observer interface {
	AttemptFinished(ctx context.Context, req types.GenerationRequest, a Attempt)
	// GenerationFinished receives either a result or an error, never both.
	GenerationFinished(ctx context.Context, req types.GenerationRequest, res *Result, err error)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (obs Observers) AttemptFinished(ctx context.Context, req types.GenerationRequest, a Attempt) {
	for _, o := range obs {
		o.AttemptFinished(ctx, req, a)
	}
}

func (obs Observers) GenerationFinished(ctx context.Context, req types.GenerationRequest, res *Result, err error) {
	for _, o := range obs {
		o.GenerationFinished(ctx, req, res, err)
	}
}
