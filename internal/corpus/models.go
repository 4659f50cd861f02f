// Package corpus stores the material trivia questions are built from:
// summoner mastery snapshots gathered by the crawlers and the static
// champion catalog.
package corpus

import (
	"slices"
	"time"
)

type Mastery struct {
	ChampionID   int    `json:"championId"`
	Points       int64  `json:"points"`
	Level        int    `json:"level"`
	LastPlayTime int64  `json:"lastPlayTime"`
	HighestGrade string `json:"highestGrade,omitempty"`
	ChestGranted bool   `json:"chestGranted"`
}

// Summoner is one corpus record. ID is the stable ordering key the sampler
// scans by; it is assigned on first insert and never reused.
type Summoner struct {
	ID                  uint      `gorm:"primaryKey"`
	Platform            string    `gorm:"size:8;not null;uniqueIndex:idx_platform_summoner"`
	SummonerID          int64     `gorm:"not null;uniqueIndex:idx_platform_summoner"`
	DisplayName         string    `gorm:"size:64"`
	ProfileIcon         int
	Masteries           []Mastery `gorm:"serializer:json"`
	ApplicableQuestions []string  `gorm:"serializer:json"`
	MasteriesTime       time.Time
}

// Applicability indexes which question families a summoner can feed.
type Applicability struct {
	SummonerID uint   `gorm:"primaryKey"`
	QuestionID string `gorm:"primaryKey;size:64;index"`
}

type Champion struct {
	ID   int    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Key  string `gorm:"size:64" json:"key"`
	Name string `gorm:"size:64" json:"name"`
}

// Filter is the eligibility predicate of a sample. A zero Filter matches
// every summoner.
type Filter struct {
	Question string
}

func (f Filter) Match(s Summoner) bool {
	return f.Question == "" || slices.Contains(s.ApplicableQuestions, f.Question)
}

func (f Filter) String() string {
	if f.Question == "" {
		return "*"
	}
	return f.Question
}
