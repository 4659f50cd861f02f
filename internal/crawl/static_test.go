package crawl

import (
	"context"
	"testing"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChampions []corpus.Champion

func (f fakeChampions) Champions(context.Context) ([]corpus.Champion, error) { return f, nil }

func TestCacheData(t *testing.T) {
	ctx := context.Background()
	store := corpus.NewMemoryStore()
	require.NoError(t, store.ReplaceChampions(ctx, []corpus.Champion{{ID: 999, Key: "Old", Name: "Old"}}))

	n, err := CacheData(ctx, fakeChampions{
		{ID: 266, Key: "Aatrox", Name: "Aatrox"},
		{ID: 103, Key: "Ahri", Name: "Ahri"},
	}, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Champions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 103, got[0].ID)

	_, err = CacheData(ctx, fakeChampions{}, store)
	assert.Error(t, err)
}
