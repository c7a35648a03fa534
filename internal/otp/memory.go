package otp

import (
	"context"
	"sync"
)

// MemoryRegistry keeps challenges in process memory behind a single mutex.
// The lock is never held while a code is being delivered.
type MemoryRegistry struct {
	mu      sync.Mutex
	pending map[string]Challenge
	opts    Options
}

func NewMemoryRegistry(opts Options) *MemoryRegistry {
	return &MemoryRegistry{
		pending: make(map[string]Challenge),
		opts:    opts.withDefaults(),
	}
}

func (r *MemoryRegistry) Issue(_ context.Context, p Pending) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.Username] = newChallenge(p, code, r.opts.Now(), r.opts.TTL)
	return code, nil
}

func (r *MemoryRegistry) Verify(_ context.Context, username, code string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.pending[username]
	if !ok {
		return Result{Outcome: NotFound}, nil
	}

	outcome, updated, remove := evaluate(c, code, r.opts.Now(), r.opts.MaxAttempts)
	if remove {
		delete(r.pending, username)
	} else {
		r.pending[username] = updated
	}

	if outcome == Verified {
		return Result{Outcome: Verified, Challenge: updated}, nil
	}
	return Result{Outcome: outcome}, nil
}

// Purge drops challenges that expired more than expiredGrace ago and returns
// how many were removed.
func (r *MemoryRegistry) Purge() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	removed := 0
	for username, c := range r.pending {
		if now.After(c.ExpiresAt.Add(expiredGrace)) {
			delete(r.pending, username)
			removed++
		}
	}
	return removed
}

// Len reports the number of pending challenges.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
