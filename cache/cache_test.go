package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	disk, err := OpenBadger(t.TempDir(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = disk.Close() })

	return map[string]Store{
		"memory": NewMemory(time.Minute, time.Minute),
		"badger": disk,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key{Placeholder: 7, Language: "en", SiteID: 1}
			record := Record{
				Content: "<p>hello</p>",
				Assets:  map[string][]string{"css": {"/theme/chroma.css"}},
			}
			require.NoError(t, store.Set(ctx, key, record))

			got, ok, err := store.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, record, got)

			_, ok, err = store.Get(ctx, Key{Placeholder: 7, Language: "de", SiteID: 1})
			require.NoError(t, err)
			require.False(t, ok)

			_, ok, err = store.Get(ctx, Key{Placeholder: 7, Language: "en", SiteID: 2})
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestStore_Purge(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key{Placeholder: 1, Language: "en", SiteID: 1}
			require.NoError(t, store.Set(ctx, key, Record{Content: "x"}))
			require.NoError(t, store.Purge(ctx))

			_, ok, err := store.Get(ctx, key)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0, 0)
	key := Key{Placeholder: 1, Language: "en", SiteID: 1}
	require.NoError(t, store.Set(ctx, key, Record{Content: "x", Assets: map[string][]string{"js": {"a.js"}}}))

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	got.Assets["js"][0] = "mutated.js"

	again, _, _ := store.Get(ctx, key)
	require.Equal(t, "a.js", again.Assets["js"][0])
	require.Equal(t, 1, store.Len())
}

func TestKey_String(t *testing.T) {
	require.Equal(t, "cms:placeholder:1:en:42", Key{Placeholder: 42, Language: "en", SiteID: 1}.String())
}

func TestBadger_InMemory(t *testing.T) {
	store, err := OpenBadger("", 0)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	key := Key{Placeholder: 3, Language: "fr", SiteID: 1}
	require.NoError(t, store.Set(ctx, key, Record{Content: "bonjour"}))
	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bonjour", got.Content)
}
