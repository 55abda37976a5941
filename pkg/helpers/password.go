package helpers

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher hashes and verifies passwords with bcrypt. Concurrent
// computations are capped at GOMAXPROCS so hashing bursts cannot starve
// request goroutines of CPU.
type PasswordHasher struct {
	cost  int
	slots *semaphore.Weighted
	dummy []byte
}

// NewPasswordHasher builds a hasher for the given bcrypt cost.
// Out-of-range costs fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h := &PasswordHasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
	// used by DummyVerify; the plaintext is irrelevant
	h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	return h
}

// Cost returns the configured bcrypt cost.
func (h *PasswordHasher) Cost() int { return h.cost }

// Hash returns the salted bcrypt hash of plain. ctx only bounds the wait for
// a hashing slot; once started the computation runs to completion.
func (h *PasswordHasher) Hash(ctx context.Context, plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches hash. Comparison is constant-time.
func (h *PasswordHasher) Verify(ctx context.Context, hash, plain string) bool {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.slots.Release(1)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// DummyVerify spends the same work as Verify against a throwaway hash. Used
// when no account exists so response timing does not reveal that fact.
func (h *PasswordHasher) DummyVerify(ctx context.Context, plain string) {
	_ = h.Verify(ctx, string(h.dummy), plain)
}
