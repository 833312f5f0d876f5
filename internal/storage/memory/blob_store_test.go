package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pricefetch/internal/storage"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "sessions/shop.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://sessions/shop.json", uri)

	payload[0] = 'C'
	got, err := store.GetObject(context.Background(), "sessions/shop.json")
	require.NoError(t, err)
	require.Equal(t, "content", string(got))

	got[0] = 'X'
	again, err := store.GetObject(context.Background(), "sessions/shop.json")
	require.NoError(t, err)
	require.Equal(t, "content", string(again))
}

func TestBlobStoreMissingObject(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
