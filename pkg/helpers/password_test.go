package helpers

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashVerify(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	ctx := context.Background()

	passwords := []string{"password1", "pässwörd-ünïcode", "with spaces inside", strings.Repeat("x", 64)}
	for _, pw := range passwords {
		hash, err := h.Hash(ctx, pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, hash)

		assert.True(t, h.Verify(ctx, hash, pw), "own password must verify")
		assert.False(t, h.Verify(ctx, hash, pw+"!"), "other password must not verify")
		assert.False(t, h.Verify(ctx, hash, ""), "empty password must not verify")
	}
}

func TestPasswordHasher_Salted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	ctx := context.Background()

	a, err := h.Hash(ctx, "password1")
	require.NoError(t, err)
	b, err := h.Hash(ctx, "password1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_Cost(t *testing.T) {
	assert.Equal(t, 12, NewPasswordHasher(12).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).Cost())

	h := NewPasswordHasher(bcrypt.MinCost)
	hash, err := h.Hash(context.Background(), "password1")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestPasswordHasher_EmptyPassword(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost).Hash(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestPasswordHasher_Concurrent(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hash, err := h.Hash(ctx, "password1")
			if err != nil {
				errs <- err
				return
			}
			if !h.Verify(ctx, hash, "password1") {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
