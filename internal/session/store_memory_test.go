package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store := NewInMemory()
	store.now = func() time.Time { return now }

	state := &State{Flow: "add_seat", Step: "username", Values: map[string]string{}}
	require.NoError(t, store.Put(ctx, 42, state, time.Minute))

	got, err := store.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "add_seat", got.Flow)

	now = now.Add(time.Minute + time.Second)
	got, err = store.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	require.NoError(t, store.Put(ctx, 7, &State{Flow: "add_seat"}, time.Hour))
	require.NoError(t, store.Delete(ctx, 7))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryStoreMiss(t *testing.T) {
	store := NewInMemory()
	got, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}
