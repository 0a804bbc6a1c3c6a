package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	var got sample
	found, err := store.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set("k", sample{Name: "a", Count: 2}))
	found, err = store.Get("k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sample{Name: "a", Count: 2}, got)

	require.NoError(t, store.Delete("k"))
	found, err = store.Get("k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStorePersistsOnDisk(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("settings", sample{Name: "persisted"}))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	var got sample
	found, err := reopened.Get("settings", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "persisted", got.Name)
}
