package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *RelationshipStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}
	s, err := NewRelationshipStore(context.Background(), addr)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKey(t *testing.T) {
	assert.Equal(t, "contacts:ana", key("ana"))
}

func TestRelationshipStore_Integration(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	a := "test-" + uuid.NewString()
	t.Cleanup(func() { s.client.Del(context.Background(), key(a)) })

	none, err := s.Contacts(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.AddContact(ctx, a, "c"))
	require.NoError(t, s.AddContact(ctx, a, "b"))
	require.NoError(t, s.AddContact(ctx, a, "b"))

	ids, err := s.Contacts(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)

	require.NoError(t, s.RemoveContact(ctx, a, "b"))
	ids, err = s.Contacts(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)
}
