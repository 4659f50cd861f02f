// Package crawl fills the corpus from the Riot API. The realtime crawler
// resolves players signing in; the background crawler walks recent games
// outward from summoners already stored. Both pace their calls through one
// rate-limited queue per platform.
package crawl

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/ratelimit"
	"github.com/DoyleJ11/lol-trivia-backend/internal/riot"
)

// API is the part of *riot.Client the crawlers call.
type API interface {
	SummonerByName(ctx context.Context, platform, name string) (riot.Summoner, error)
	Masteries(ctx context.Context, platform string, summonerID int64) ([]corpus.Mastery, error)
	RecentGames(ctx context.Context, platform string, summonerID int64) ([]riot.Game, error)
	SummonersByID(ctx context.Context, platform string, ids []int64) (map[int64]riot.Summoner, error)
}

// Limiters hands out one queue per platform, created on first use.
type Limiters struct {
	rate   int
	window time.Duration

	mu     sync.Mutex
	queues map[string]*ratelimit.Queue
}

func NewLimiters(rate int, window time.Duration) *Limiters {
	return &Limiters{rate: rate, window: window, queues: map[string]*ratelimit.Queue{}}
}

func (l *Limiters) For(platform string) *ratelimit.Queue {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.queues[platform]
	if !ok {
		q = ratelimit.NewQueue(l.rate, l.window)
		l.queues[platform] = q
	}
	return q
}

func (l *Limiters) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, q := range l.queues {
		q.Stop()
	}
}

// refresher writes a summoner's current masteries into the corpus.
type refresher struct {
	api      API
	store    corpus.Store
	builders []question.Builder
	limits   *Limiters
}

// refresh fetches masteries and upserts the record. An empty name keeps
// whatever identity is already stored.
func (r refresher) refresh(ctx context.Context, platform string, summonerID int64, name string, icon int) (corpus.Summoner, error) {
	var masteries []corpus.Mastery
	err := r.limits.For(platform).Do(ctx, func(ctx context.Context) error {
		var err error
		masteries, err = r.api.Masteries(ctx, platform, summonerID)
		return err
	})
	if err != nil {
		return corpus.Summoner{}, fmt.Errorf("masteries %s/%d: %w", platform, summonerID, err)
	}

	rec := corpus.Summoner{
		Platform:            platform,
		SummonerID:          summonerID,
		DisplayName:         name,
		ProfileIcon:         icon,
		Masteries:           masteries,
		ApplicableQuestions: question.Applicable(r.builders, masteries),
		MasteriesTime:       time.Now(),
	}
	if err := r.store.UpsertSummoner(ctx, &rec); err != nil {
		return corpus.Summoner{}, err
	}
	return rec, nil
}

func iconURL(base string, icon int) string {
	return base + strconv.Itoa(icon) + ".png"
}
