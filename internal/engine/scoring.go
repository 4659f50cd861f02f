package engine

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// Standing is one player's score as the rules see it.
type Standing struct {
	Index int
	Score int
}

// Tally adds PointsPerAnswer to every standing whose index is in correct and
// returns the updated standings and the indexes that scored.
func Tally(standings []Standing, correct func(index int) bool) ([]Standing, []int) {
	out := slices.Clone(standings)
	var scored []int
	for i := range out {
		if correct(out[i].Index) {
			out[i].Score += PointsPerAnswer
			scored = append(scored, out[i].Index)
		}
	}
	return out, scored
}

// Results splits standings into winners, everyone tied on the top score,
// and runners, the rest by score descending. Ties among runners keep their
// current order.
func Results(standings []Standing) (winners, runners []Standing) {
	if len(standings) == 0 {
		return nil, nil
	}
	top := lo.MaxBy(standings, func(a, b Standing) bool { return a.Score > b.Score }).Score

	winners, runners = lo.FilterReject(standings, func(s Standing, _ int) bool {
		return s.Score == top
	})
	slices.SortStableFunc(runners, func(a, b Standing) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return winners, runners
}
