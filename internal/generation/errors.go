package generation

import (
	"errors"
	"fmt"
)

// Kind classifies a failed generation.
type Kind int

const (
	// KindNoCredential means no provider has a usable API key.
	KindNoCredential Kind = iota + 1
	// KindCancelled means the caller's context was cancelled.
	KindCancelled
	// KindAllModelsFailed means every candidate model failed.
	KindAllModelsFailed
)

func (k Kind) String() string {
	switch k {
	case KindNoCredential:
		return "no_credential"
	case KindCancelled:
		return "cancelled"
	case KindAllModelsFailed:
		return "all_models_failed"
	default:
		return "unknown"
	}
}

var (
	ErrNoCredential    = errors.New("no API key configured")
	ErrCancelled       = errors.New("generation cancelled")
	ErrAllModelsFailed = errors.New("all models failed")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNoCredential:
		return ErrNoCredential
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrAllModelsFailed
	}
}

// Error is the only error type Generate returns.
type Error struct {
	Kind     Kind
	Attempts []Attempt
	// Err is the last provider error for KindAllModelsFailed and the
	// context error for KindCancelled.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNoCredential:
		return "no API key configured: add a key for openai, anthropic or openrouter"
	case KindCancelled:
		return "generation cancelled"
	default:
		if e.Err == nil {
			return fmt.Sprintf("all models failed after %d attempts", len(e.Attempts))
		}
		return fmt.Sprintf("all models failed after %d attempts. Last error: %v", len(e.Attempts), e.Err)
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf returns the kind of a generation error, or 0 when err is not one.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}
