// Package generation turns a GenerationRequest into an Artifact: it picks the
// provider from stored credentials, builds the prompts once, tries each model
// of the fallback plan in turn and recovers the first non-empty completion.
package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"agenticos/internal/logging"
	"agenticos/internal/provider"
	"agenticos/internal/recovery"
	"agenticos/internal/types"
)

// CredentialProvider resolves the provider for a generation. It is consulted
// once per Generate so credential edits take effect on the next request.
type CredentialProvider interface {
	ActiveProvider() (types.ProviderSelection, bool)
}

// PromptBuilder builds the prompts for a request. It must not fail.
type PromptBuilder interface {
	Build(ctx context.Context, req types.GenerationRequest) types.PromptPair
}

// Completer issues exactly one request to one model.
type Completer interface {
	Complete(ctx context.Context, sel types.ProviderSelection, model string, pair types.PromptPair) (provider.Completion, error)
}

// Orchestrator runs generations. It is safe for concurrent use; each call to
// Generate has at most one request in flight.
type Orchestrator struct {
	creds          CredentialProvider
	builder        PromptBuilder
	client         Completer
	attemptTimeout time.Duration
	fallbacks      func(types.Provider) []string
	observers      Observers
	now            func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAttemptTimeout bounds each candidate model. Zero means no bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.attemptTimeout = d }
}

// WithFallbackModels replaces DefaultFallbackModels.
func WithFallbackModels(fn func(types.Provider) []string) Option {
	return func(o *Orchestrator) { o.fallbacks = fn }
}

// WithObserver adds observers notified per attempt and per generation.
func WithObserver(obs ...Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

// New creates an orchestrator.
func New(creds CredentialProvider, builder PromptBuilder, client Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		creds:     creds,
		builder:   builder,
		client:    client,
		fallbacks: DefaultFallbackModels,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate returns the artifact for req. Errors are always *Error.
func (o *Orchestrator) Generate(ctx context.Context, req types.GenerationRequest) (types.Artifact, error) {
	res, err := o.Run(ctx, req)
	if err != nil {
		return types.Artifact{}, err
	}
	return res.Artifact, nil
}

// Run is Generate with the attempt log and recovery details.
func (o *Orchestrator) Run(ctx context.Context, req types.GenerationRequest) (*Result, error) {
	start := o.now()
	log := logging.Get(logging.CategoryGeneration)

	sel, ok := o.creds.ActiveProvider()
	if !ok {
		log.Warn("generation refused: no provider has an API key")
		return o.fail(ctx, req, &Error{Kind: KindNoCredential})
	}

	plan := NewFallbackPlan(sel.Model, o.fallbacks(sel.Provider))
	log.Info("generating for %s with %s (%d candidates)", req.Agent.ID(), sel.Redacted(), plan.Len())

	if err := ctx.Err(); err != nil {
		return o.fail(ctx, req, &Error{Kind: KindCancelled, Err: err})
	}

	pair := o.builder.Build(ctx, req)

	var (
		attempts []Attempt
		lastErr  error
	)
	for _, model := range plan.Models() {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, req, &Error{Kind: KindCancelled, Attempts: attempts, Err: err})
		}

		attempt, text := o.attempt(ctx, sel, model, pair)
		attempts = append(attempts, attempt)
		o.observers.AttemptFinished(ctx, req, attempt)

		if attempt.Err != nil {
			if err := ctx.Err(); err != nil {
				log.Info("generation cancelled during %s", model)
				return o.fail(ctx, req, &Error{Kind: KindCancelled, Attempts: attempts, Err: err})
			}
			log.Warn("model %s failed after %v: %v", model, attempt.Duration, attempt.Err)
			lastErr = attempt.Err
			continue
		}

		outcome := recovery.Analyze(text, req.Prompt)
		if outcome.Diagnostic {
			logging.RecoveryWarn("recovery failed (strategy=%s): %v", outcome.Strategy, outcome.Err)
		} else if outcome.BracesAdded > 0 {
			logging.RecoveryDebug("closed %d braces (strategy=%s)", outcome.BracesAdded, outcome.Strategy)
		}

		res := &Result{
			Artifact:    outcome.Artifact,
			Provider:    sel.Provider,
			Model:       model,
			Attempts:    attempts,
			Usage:       attempt.Usage,
			Duration:    o.now().Sub(start),
			Strategy:    outcome.Strategy,
			BracesAdded: outcome.BracesAdded,
			Diagnostic:  outcome.Diagnostic,
			RecoveryErr: outcome.Err,
		}
		log.Info("generated %q with %s after %d attempts in %v", res.Artifact.Name, model, len(attempts), res.Duration)
		o.observers.GenerationFinished(ctx, req, res, nil)
		return res, nil
	}

	log.Error("all %d models failed, last error: %v", len(attempts), lastErr)
	return o.fail(ctx, req, &Error{Kind: KindAllModelsFailed, Attempts: attempts, Err: lastErr})
}

// attempt issues one request. A timeout on the per-attempt context is a
// failure of this model only; the caller's context stays live.
func (o *Orchestrator) attempt(ctx context.Context, sel types.ProviderSelection, model string, pair types.PromptPair) (Attempt, string) {
	actx := ctx
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	a := Attempt{Provider: sel.Provider, Model: model, Started: o.now()}
	logging.APIDebug("requesting %s from %s", model, sel.Provider)

	completion, err := o.client.Complete(actx, sel, model, pair)
	a.Duration = o.now().Sub(a.Started)
	if err == nil && strings.TrimSpace(completion.Text) == "" {
		err = provider.ErrEmptyCompletion
	}
	if err != nil {
		var se *provider.StatusError
		if errors.As(err, &se) {
			a.StatusCode = se.Code
		}
		a.Err = err
		return a, ""
	}
	a.Usage = completion.Usage
	return a, completion.Text
}

func (o *Orchestrator) fail(ctx context.Context, req types.GenerationRequest, err *Error) (*Result, error) {
	o.observers.GenerationFinished(ctx, req, nil, err)
	return nil, err
}
