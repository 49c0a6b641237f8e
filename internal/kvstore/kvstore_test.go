package kvstore

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.Set(ctx, "session:1", []byte("x")))
	require.NoError(t, s.Set(ctx, "session:2", []byte("y")))
	require.NoError(t, s.Set(ctx, "other:1", []byte("z")))

	keys, err := s.Keys(ctx, "session:")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"session:1", "session:2"}, keys)

	all, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
