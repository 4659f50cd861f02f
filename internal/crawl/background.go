package crawl

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/riot"
	"github.com/DoyleJ11/lol-trivia-backend/internal/sampler"
	"github.com/cenkalti/backoff/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type BackgroundOptions struct {
	Limits   *Limiters
	Builders []question.Builder
	Goal     int64 // stop once the corpus holds this many summoners; 0 runs forever
	Sampler  sampler.Options
	// Retry bounds the pause after a failed step.
	MinRetry time.Duration
	MaxRetry time.Duration
	Logger   *zap.Logger
}

// Background grows the corpus by crawling the fellow players of recent
// games of randomly chosen stored summoners.
type Background struct {
	refresher
	goal    int64
	seeds   *sampler.Sampler
	backoff *backoff.ExponentialBackOff
	log     *zap.Logger
}

func NewBackground(api API, store corpus.Store, opts BackgroundOptions) *Background {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Builders == nil {
		opts.Builders = question.DefaultBuilders()
	}
	if opts.MinRetry <= 0 {
		opts.MinRetry = time.Second
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = time.Minute
	}
	log := opts.Logger.Named("background")

	so := opts.Sampler
	so.Logger = log

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.MinRetry
	b.MaxInterval = opts.MaxRetry

	return &Background{
		refresher: refresher{api: api, store: store, builders: opts.Builders, limits: opts.Limits},
		goal:      opts.Goal,
		seeds:     sampler.New(store, corpus.Filter{}, so),
		backoff:   b,
		log:       log,
	}
}

// Run crawls until ctx is done or the goal is reached.
func (b *Background) Run(ctx context.Context) error {
	defer b.seeds.Close()
	b.log.Info("background crawler started", zap.Int64("goal", b.goal))

	for {
		if done, err := b.goalReached(ctx); err == nil && done {
			b.log.Info("summoner goal reached", zap.Int64("goal", b.goal))
			return nil
		}

		err := b.step(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			b.backoff.Reset()
			continue
		}

		wait := b.backoff.NextBackOff()
		b.log.Warn("crawl step failed", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (b *Background) goalReached(ctx context.Context) (bool, error) {
	if b.goal <= 0 {
		return false, nil
	}
	n, err := b.store.CountSummoners(ctx)
	if err != nil {
		return false, err
	}
	return n >= b.goal, nil
}

// step crawls outward from one sampled summoner. Individual fellow players
// that fail are skipped.
func (b *Background) step(ctx context.Context) error {
	seed, err := b.seeds.Sample(ctx)
	if err != nil {
		return err
	}

	var games []riot.Game
	err = b.limits.For(seed.Platform).Do(ctx, func(ctx context.Context) error {
		var err error
		games, err = b.api.RecentGames(ctx, seed.Platform, seed.SummonerID)
		return err
	})
	if err != nil {
		return err
	}

	seen := map[int64]bool{seed.SummonerID: true}
	var fellows []int64
	for _, g := range games {
		for _, p := range g.FellowPlayers {
			if !seen[p.SummonerID] {
				seen[p.SummonerID] = true
				fellows = append(fellows, p.SummonerID)
			}
		}
	}

	for _, chunk := range lo.Chunk(fellows, riot.MaxSummonerIDs) {
		names := b.names(ctx, seed.Platform, chunk)
		for _, id := range chunk {
			known := names[id]
			_, err := b.refresh(ctx, seed.Platform, id, known.Name, known.ProfileIconID)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, riot.ErrNotFound):
			default:
				b.log.Warn("refresh fellow player failed",
					zap.String("platform", seed.Platform), zap.Int64("summoner", id), zap.Error(err))
			}
		}
	}
	return nil
}

// names looks up display names for ids. Records whose lookup failed are
// stored without a name and keep any name already known.
func (b *Background) names(ctx context.Context, platform string, ids []int64) map[int64]riot.Summoner {
	var out map[int64]riot.Summoner
	err := b.limits.For(platform).Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.api.SummonersByID(ctx, platform, ids)
		return err
	})
	if err != nil && ctx.Err() == nil {
		b.log.Warn("summoner name lookup failed", zap.String("platform", platform), zap.Int("ids", len(ids)), zap.Error(err))
	}
	return out
}
