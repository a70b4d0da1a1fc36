package generation

import (
	"context"
	"sync"
)

// Session enforces one active generation per user: beginning a new one
// cancels the previous token.
type Session struct {
	mu     sync.Mutex
	seq    uint64
	active uint64
	cancel context.CancelFunc
}

// Begin cancels any in-flight generation and returns a fresh context for the
// next one with its id. Pass the id to End when the generation returns.
func (s *Session) Begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.active = s.seq
	s.cancel = cancel
	return ctx, s.seq
}

// Cancel aborts the active generation. It reports whether one was running.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.active = 0
	return true
}

// End releases the token for id. Ending a superseded id is a no-op.
func (s *Session) End(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.active || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.active = 0
}

// Active reports whether a generation is in flight.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
