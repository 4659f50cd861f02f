// Package question builds trivia questions from summoner mastery snapshots.
package question

import (
	"errors"
	"math/rand/v2"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/samber/lo"
)

var ErrNotApplicable = errors.New("summoner cannot feed this question")

// Answer is what a player locks in for a round.
type Answer struct {
	ChampionID int `json:"championId"`
}

type Question interface {
	CorrectAnswer() Answer
	CheckAnswer(candidate Answer) bool
	// PublicView is sent to players and never contains the solution.
	PublicView() any
}

// Builder is one question family.
type Builder interface {
	ID() string
	Applicable(masteries []corpus.Mastery) bool
	Generate(cat *corpus.Catalog, rec corpus.Summoner) (Question, error)
}

func DefaultBuilders() []Builder {
	return []Builder{
		GuessMain{NumMastered: 3, NumChoices: 3},
		GuessLeast{NumMastered: 3},
	}
}

// Applicable lists the ids of every family rec's masteries can feed.
func Applicable(builders []Builder, masteries []corpus.Mastery) []string {
	return lo.FilterMap(builders, func(b Builder, _ int) (string, bool) {
		return b.ID(), b.Applicable(masteries)
	})
}

type ChampionView struct {
	ID          int    `json:"id"`
	ChampionImg string `json:"championImg"`
	Name        string `json:"name"`
}

func championViews(cat *corpus.Catalog, ids []int) []ChampionView {
	return lo.FilterMap(ids, func(id int, _ int) (ChampionView, bool) {
		ch, ok := cat.Get(id)
		if !ok {
			return ChampionView{}, false
		}
		return ChampionView{ID: ch.ID, ChampionImg: cat.ImageURL(ch), Name: ch.Name}, true
	})
}

// mastered returns the champion ids the summoner has at level 5, in the
// order the API reported them (highest points first).
func mastered(masteries []corpus.Mastery) []int {
	return lo.FilterMap(masteries, func(m corpus.Mastery, _ int) (int, bool) {
		return m.ChampionID, m.Level == 5
	})
}

func shuffle(ids []int) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// singleChoice is the shared shape of the multiple-choice families.
type singleChoice struct {
	family   string
	summoner string
	answer   int
	mastered []ChampionView
	choices  []ChampionView
}

type singleChoiceView struct {
	QuestionType string         `json:"questionType"`
	Summoner     string         `json:"summoner"`
	Mastered     []ChampionView `json:"mastered"`
	Choices      []ChampionView `json:"choices"`
}

func (q *singleChoice) CorrectAnswer() Answer { return Answer{ChampionID: q.answer} }

func (q *singleChoice) CheckAnswer(candidate Answer) bool { return candidate.ChampionID == q.answer }

func (q *singleChoice) PublicView() any {
	return singleChoiceView{
		QuestionType: q.family,
		Summoner:     q.summoner,
		Mastered:     q.mastered,
		Choices:      q.choices,
	}
}
