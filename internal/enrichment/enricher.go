// Package enrichment supplies current information for the info agent's prompt.
//
// An Enricher never returns a bare error. Failure travels inside the Outcome so
// the prompt builder can substitute its fallback note and carry on.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agenticos/internal/types"
)

// ErrDisabled is reported by the Disabled enricher.
var ErrDisabled = errors.New("enrichment disabled")

// ErrNoResults marks a search that completed but found nothing.
var ErrNoResults = errors.New("no results")

// Outcome is the result of one enrichment call.
type Outcome struct {
	Result types.SearchResult
	Err    error
}

// Failed reports whether the outcome should be replaced by the fallback note.
func (o Outcome) Failed() bool {
	return o.Err != nil || len(o.Result.Items) == 0
}

// Enricher looks up current information for a query.
type Enricher interface {
	Enrich(ctx context.Context, query string) Outcome
}

// Func adapts a function to the Enricher interface.
type Func func(ctx context.Context, query string) Outcome

// Enrich calls f.
func (f Func) Enrich(ctx context.Context, query string) Outcome { return f(ctx, query) }

// Disabled always fails with ErrDisabled.
type Disabled struct{}

// Enrich implements Enricher.
func (Disabled) Enrich(_ context.Context, query string) Outcome {
	return Outcome{Result: types.SearchResult{Query: query, SearchedAt: time.Now()}, Err: ErrDisabled}
}

// Safe wraps e so a panic inside it becomes a failed Outcome.
func Safe(e Enricher) Enricher {
	return Func(func(ctx context.Context, query string) (out Outcome) {
		defer func() {
			if r := recover(); r != nil {
				out = Outcome{
					Result: types.SearchResult{Query: query, SearchedAt: time.Now()},
					Err:    fmt.Errorf("enricher panic: %v", r),
				}
			}
		}()
		return e.Enrich(ctx, query)
	})
}

// normalizeQuery is the cache key for a query.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
