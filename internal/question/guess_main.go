package question

import (
	"fmt"
	"slices"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/samber/lo"
)

// GuessMain shows NumMastered level-5 champions of a summoner and asks which
// of NumChoices champions is their main.
type GuessMain struct {
	NumMastered int
	NumChoices  int
}

func (g GuessMain) ID() string { return fmt.Sprintf("guess-main(%d,%d)", g.NumMastered, g.NumChoices) }

func (g GuessMain) Applicable(masteries []corpus.Mastery) bool {
	return len(mastered(masteries)) >= g.NumMastered+1
}

func (g GuessMain) Generate(cat *corpus.Catalog, rec corpus.Summoner) (Question, error) {
	if !g.Applicable(rec.Masteries) {
		return nil, fmt.Errorf("%s for summoner %d: %w", g.ID(), rec.ID, ErrNotApplicable)
	}
	skilled := mastered(rec.Masteries)[:g.NumMastered+1]
	main := skilled[0]

	candidates := lo.FilterMap(cat.All(), func(ch corpus.Champion, _ int) (int, bool) {
		return ch.ID, !slices.Contains(skilled, ch.ID)
	})
	if len(candidates) < g.NumChoices-1 {
		return nil, fmt.Errorf("%s: catalog has %d spare champions, need %d", g.ID(), len(candidates), g.NumChoices-1)
	}
	shuffle(candidates)

	choices := append(candidates[:g.NumChoices-1:g.NumChoices-1], main)
	shuffle(choices)

	return &singleChoice{
		family:   "guess-main",
		summoner: rec.DisplayName,
		answer:   main,
		mastered: championViews(cat, skilled[1:]),
		choices:  championViews(cat, choices),
	}, nil
}
