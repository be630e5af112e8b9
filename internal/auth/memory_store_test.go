package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryOTPStore_TTL(t *testing.T) {
	store := NewMemoryOTPStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", &OTPEntry{Hash: "h"}, time.Minute))
	entry, err := store.Load(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h", entry.Hash)

	now = now.Add(2 * time.Minute)
	_, err = store.Load(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOTPNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryOTPStore_SaveEvictsExpired(t *testing.T) {
	store := NewMemoryOTPStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "old@example.com", &OTPEntry{Hash: "1"}, time.Second))
	now = now.Add(time.Minute)
	require.NoError(t, store.Save(ctx, "new@example.com", &OTPEntry{Hash: "2"}, time.Minute))

	assert.Equal(t, 1, store.Len())
}

func TestMemoryOTPStore_Delete(t *testing.T) {
	store := NewMemoryOTPStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a@example.com", &OTPEntry{Hash: "h"}, time.Minute))
	require.NoError(t, store.Delete(ctx, "a@example.com"))
	require.NoError(t, store.Delete(ctx, "a@example.com"))

	_, err := store.Load(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestMemoryOTPStore_IncrAttempts(t *testing.T) {
	store := NewMemoryOTPStore()
	ctx := context.Background()

	_, err := store.IncrAttempts(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOTPNotFound)

	require.NoError(t, store.Save(ctx, "a@example.com", &OTPEntry{Hash: "h", Attempts: 3}, time.Minute))
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrAttempts(ctx, "a@example.com")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry, err := store.Load(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 10, entry.Attempts)

	require.NoError(t, store.Save(ctx, "a@example.com", &OTPEntry{Hash: "h2"}, time.Minute))
	n, err := store.IncrAttempts(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryOTPStore_TakeRedeemsOnce(t *testing.T) {
	store := NewMemoryOTPStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "a@example.com", &OTPEntry{Hash: "h"}, time.Minute))

	entry, err := store.Take(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h", entry.Hash)

	_, err = store.Take(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}
