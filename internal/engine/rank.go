package engine

// Tier is a named rank bucket derived from the share of rounds answered
// correctly.
type Tier struct {
	Name     string
	MinShare float64
}

// Tiers is ordered from highest to lowest.
var Tiers = []Tier{
	{Name: "challenger", MinShare: 1.0},
	{Name: "master", MinShare: 0.8},
	{Name: "diamond", MinShare: 0.6},
	{Name: "platinum", MinShare: 0.45},
	{Name: "gold", MinShare: 0.3},
	{Name: "silver", MinShare: 0.15},
	{Name: "bronze", MinShare: 0},
}

// RankLabel buckets score out of the maximum reachable in numRounds.
func RankLabel(score, numRounds int) string {
	if numRounds <= 0 {
		return Tiers[len(Tiers)-1].Name
	}
	share := float64(score) / float64(numRounds*PointsPerAnswer)
	for _, t := range Tiers {
		if share >= t.MinShare {
			return t.Name
		}
	}
	return Tiers[len(Tiers)-1].Name
}
