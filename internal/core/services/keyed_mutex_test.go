package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	ctx := context.Background()

	unlock, err := k.Lock(ctx, "foo", nil)
	require.NoError(t, err)

	waited := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		unlock2, err := k.Lock(ctx, "foo", func() { close(waited) })
		if err == nil {
			close(acquired)
			unlock2()
		}
	}()

	<-waited
	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	<-acquired
}

func TestKeyedMutex_DifferentKeysConcurrent(t *testing.T) {
	k := newKeyedMutex()
	ctx := context.Background()

	unlockA, err := k.Lock(ctx, "a", func() { t.Error("a should be free") })
	require.NoError(t, err)
	unlockB, err := k.Lock(ctx, "b", func() { t.Error("b should be free") })
	require.NoError(t, err)

	unlockA()
	unlockB()
	assert.Empty(t, k.locks)
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	k := newKeyedMutex()
	unlock, err := k.Lock(context.Background(), "foo", nil)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = k.Lock(ctx, "foo", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, k.locks["foo"].refs)
}

func TestKeyedMutex_TryLock(t *testing.T) {
	k := newKeyedMutex()

	unlock, ok := k.TryLock("foo")
	require.True(t, ok)

	_, ok = k.TryLock("foo")
	assert.False(t, ok)

	unlock()
	unlock() // idempotent

	unlock, ok = k.TryLock("foo")
	require.True(t, ok)
	unlock()
	assert.Empty(t, k.locks)
}
