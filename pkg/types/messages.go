// Package types holds the JSON payloads clients receive from a lobby's
// update feed. Field names are part of the client protocol.
package types

type UpdateType string

const (
	UpdArrangeLobby UpdateType = "arrange-lobby"
	UpdSetReady     UpdateType = "set-ready"
	UpdStartGame    UpdateType = "start-game"
	UpdJoinUser     UpdateType = "join-user"
	UpdRound        UpdateType = "round"
	UpdSecondsLeft  UpdateType = "seconds-left"
	UpdCorrection   UpdateType = "correction"
	UpdScores       UpdateType = "scores"
	UpdGameComplete UpdateType = "game-complete"
	UpdCloseLobby   UpdateType = "close-lobby"
)

// Update is one entry of a lobby's append-only feed. SequenceID is the
// feed length at the time it was appended.
type Update struct {
	Type       UpdateType `json:"type"`
	SequenceID int        `json:"sequenceId"`
	Data       any        `json:"data"`
}

type Empty struct{}

type Summoner struct {
	DisplayName string `json:"displayName"`
	ProfileIcon string `json:"profileIcon"`
}

type SetReady struct {
	Index int `json:"index"`
}

type JoinUser struct {
	Index    int      `json:"index"`
	Summoner Summoner `json:"summoner"`
}

type Round struct {
	Round     int `json:"round"`
	NumRounds int `json:"numRounds"`
	Question  any `json:"question"`
}

type SecondsLeft struct {
	Seconds int `json:"seconds"`
}

type Correction struct {
	Answer any `json:"answer"`
}

type PlayerScore struct {
	Index int `json:"index"`
	Score int `json:"score"`
}

// PlayerDelta lists a player who scored this round; Score is the amount
// gained, for client-side animation.
type PlayerDelta struct {
	Index    int      `json:"index"`
	Summoner Summoner `json:"summoner"`
	Score    int      `json:"score"`
}

type Scores struct {
	Absolute []PlayerScore `json:"absolute"`
	Delta    []PlayerDelta `json:"delta"`
}

type Placement struct {
	Index    int      `json:"index"`
	Summoner Summoner `json:"summoner"`
	Score    int      `json:"score"`
	Rank     string   `json:"rank"`
}

type GameComplete struct {
	Winners []Placement `json:"winners"`
	Runners []Placement `json:"runners"`
}
