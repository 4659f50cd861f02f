package question

import (
	"fmt"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/samber/lo"
)

// GuessLeast shows NumMastered level-5 champions and asks which of three
// choices the summoner has never played: two more mastered champions and one
// without any mastery.
type GuessLeast struct {
	NumMastered int
}

func (g GuessLeast) ID() string { return fmt.Sprintf("guess-least(%d,3)", g.NumMastered) }

func (g GuessLeast) Applicable(masteries []corpus.Mastery) bool {
	return len(mastered(masteries)) >= g.NumMastered+2 && len(masteries) < 100
}

func (g GuessLeast) Generate(cat *corpus.Catalog, rec corpus.Summoner) (Question, error) {
	if !g.Applicable(rec.Masteries) {
		return nil, fmt.Errorf("%s for summoner %d: %w", g.ID(), rec.ID, ErrNotApplicable)
	}
	skilled := mastered(rec.Masteries)[:g.NumMastered+2]

	played := lo.SliceToMap(rec.Masteries, func(m corpus.Mastery) (int, bool) {
		return m.ChampionID, true
	})
	unplayed := lo.FilterMap(cat.All(), func(ch corpus.Champion, _ int) (int, bool) {
		return ch.ID, !played[ch.ID]
	})
	if len(unplayed) == 0 {
		return nil, fmt.Errorf("%s for summoner %d: every champion played: %w", g.ID(), rec.ID, ErrNotApplicable)
	}
	shuffle(unplayed)
	least := unplayed[0]

	choices := []int{skilled[g.NumMastered], skilled[g.NumMastered+1], least}
	shuffle(choices)

	return &singleChoice{
		family:   "guess-least",
		summoner: rec.DisplayName,
		answer:   least,
		mastered: championViews(cat, skilled[:g.NumMastered]),
		choices:  championViews(cat, choices),
	}, nil
}
