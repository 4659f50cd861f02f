package corpus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FindMatchingAfterCursor(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	for i := range 6 {
		s := &Summoner{Platform: "EUW1", SummonerID: int64(i)}
		if i%2 == 0 {
			s.ApplicableQuestions = []string{"guess-main(3,3)"}
		}
		require.NoError(t, m.UpsertSummoner(ctx, s))
		require.Equal(t, uint(i+1), s.ID)
	}

	f := Filter{Question: "guess-main(3,3)"}
	got, err := m.FindMatching(ctx, f, 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint(1), got[0].ID)
	assert.Equal(t, uint(3), got[1].ID)

	got, err = m.FindMatching(ctx, f, 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint(5), got[0].ID)

	got, err = m.FindMatching(ctx, Filter{}, 4, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryStore_UpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	first := &Summoner{Platform: "NA1", SummonerID: 42, DisplayName: "old"}
	require.NoError(t, m.UpsertSummoner(ctx, first))

	again := &Summoner{Platform: "NA1", SummonerID: 42, DisplayName: "new"}
	require.NoError(t, m.UpsertSummoner(ctx, again))

	assert.Equal(t, first.ID, again.ID)
	n, _ := m.CountSummoners(ctx)
	assert.EqualValues(t, 1, n)

	got, err := m.FindMatching(ctx, Filter{}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].DisplayName)
}

func TestMemoryStore_UpsertWithoutNameKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.UpsertSummoner(ctx, &Summoner{Platform: "EUW1", SummonerID: 9, DisplayName: "Faker", ProfileIcon: 6}))

	crawled := &Summoner{Platform: "EUW1", SummonerID: 9, Masteries: []Mastery{{ChampionID: 1, Level: 5}}}
	require.NoError(t, m.UpsertSummoner(ctx, crawled))
	assert.Equal(t, "Faker", crawled.DisplayName)

	got, err := m.FindMatching(ctx, Filter{}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Faker", got[0].DisplayName)
	assert.Equal(t, 6, got[0].ProfileIcon)
	assert.Len(t, got[0].Masteries, 1)
}
