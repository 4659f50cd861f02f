package corpus

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Store is the queryable corpus. FindMatching returns up to limit summoners
// matching f whose ID is greater than after, ordered by ID ascending.
type Store interface {
	FindMatching(ctx context.Context, f Filter, after uint, limit int) ([]Summoner, error)
	UpsertSummoner(ctx context.Context, s *Summoner) error
	CountSummoners(ctx context.Context) (int64, error)
	Champions(ctx context.Context) ([]Champion, error)
	ReplaceChampions(ctx context.Context, champions []Champion) error
}
