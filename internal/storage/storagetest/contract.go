// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rryowa/dangbai_session/internal/storage"
)

func fullEntries(access string) storage.Entries {
	return storage.Entries{
		storage.KeyAccessToken:  access,
		storage.KeyRefreshToken: "refresh-" + access,
		storage.KeyUser:         `{"userId":1,"username":"alice","roles":["ROLE_USER"]}`,
	}
}

// RunBackendContract exercises a fresh backend returned by newBackend.
func RunBackendContract(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Run("empty backend loads nothing", func(t *testing.T) {
		b := newBackend(t)
		entries, err := b.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("replace then load", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		require.NoError(t, b.Replace(ctx, fullEntries("A1")))
		entries, err := b.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, fullEntries("A1"), entries)
	})

	t.Run("replace drops keys missing from the new set", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		require.NoError(t, b.Replace(ctx, fullEntries("A1")))
		partial := storage.Entries{storage.KeyAccessToken: "A2"}
		require.NoError(t, b.Replace(ctx, partial))

		entries, err := b.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, partial, entries)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		require.NoError(t, b.Replace(ctx, fullEntries("A1")))
		require.NoError(t, b.Clear(ctx))
		require.NoError(t, b.Clear(ctx))

		entries, err := b.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("caller cannot mutate stored entries", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		in := fullEntries("A1")
		require.NoError(t, b.Replace(ctx, in))
		in[storage.KeyAccessToken] = "mutated"

		out, err := b.Load(ctx)
		require.NoError(t, err)
		out[storage.KeyRefreshToken] = "mutated"

		again, err := b.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, fullEntries("A1"), again)
	})
}
