package inmemorystore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct{ volume float64 }

func TestPutAndGet(t *testing.T) {
	s := New[*result]()
	ctx := context.Background()

	// Get of a hash that was never stored
	got, ok := s.Get(ctx, "abc")
	assert.False(t, ok)
	assert.Nil(t, got)

	// Put
	want := &result{volume: 8}
	s.Put(ctx, "abc", want)

	// Get again
	got, ok = s.Get(ctx, "abc")
	require.True(t, ok)
	assert.Same(t, want, got)
	assert.Equal(t, 1, s.Len())
}

func TestPutOverwriteKeepsCount(t *testing.T) {
	s := New[int]()
	ctx := context.Background()

	s.Put(ctx, "h", 1)
	s.Put(ctx, "h", 2)

	got, ok := s.Get(ctx, "h")
	require.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, s.Len())
}

func TestPurge(t *testing.T) {
	s := New[int]()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.Put(ctx, fmt.Sprintf("h%d", i), i)
	}
	require.Equal(t, 5, s.Len())

	s.Purge(ctx)

	assert.Equal(t, 0, s.Len())
	_, ok := s.Get(ctx, "h0")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	s := New[int]()
	ctx := context.Background()
	var wg sync.WaitGroup
	numGoroutines := 100

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("hash-%d", i%10)
			s.Put(ctx, key, i)
			_, ok := s.Get(ctx, key)
			assert.True(t, ok)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
}
