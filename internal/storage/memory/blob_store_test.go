package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "path/page.html", "text/html", bytes.NewReader([]byte("content")))
	require.NoError(t, err)
	assert.Equal(t, "memory://path/page.html", uri)

	got, ok := store.Object("path/page.html")
	require.True(t, ok)
	got[0] = 'C'

	again, _ := store.Object("path/page.html")
	assert.Equal(t, "content", string(again))
}

func TestBlobStoreOverwrites(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "error.txt", "", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "error.txt", "", bytes.NewReader([]byte("two")))
	require.NoError(t, err)

	got, ok := store.Object("error.txt")
	require.True(t, ok)
	assert.Equal(t, "two", string(got))

	_, ok = store.Object("missing")
	assert.False(t, ok)
}
