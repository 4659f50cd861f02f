package crawl

import (
	"context"
	"fmt"
	"slices"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
)

type ChampionSource interface {
	Champions(ctx context.Context) ([]corpus.Champion, error)
}

// CacheData replaces the stored champion catalog with the current static
// data and reports how many champions were written.
func CacheData(ctx context.Context, src ChampionSource, store corpus.Store) (int, error) {
	champs, err := src.Champions(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch champions: %w", err)
	}
	if len(champs) == 0 {
		return 0, fmt.Errorf("fetch champions: empty response")
	}
	slices.SortFunc(champs, func(a, b corpus.Champion) int { return a.ID - b.ID })
	if err := store.ReplaceChampions(ctx, champs); err != nil {
		return 0, err
	}
	return len(champs), nil
}
