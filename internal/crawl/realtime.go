package crawl

import (
	"context"
	"fmt"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/riot"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"go.uber.org/zap"
)

type RealtimeOptions struct {
	Limits         *Limiters
	Builders       []question.Builder
	ProfileIconURL string
	Logger         *zap.Logger
}

// Realtime resolves summoner names for players signing in.
type Realtime struct {
	refresher
	iconBase string
	log      *zap.Logger
}

func NewRealtime(api API, store corpus.Store, opts RealtimeOptions) *Realtime {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Builders == nil {
		opts.Builders = question.DefaultBuilders()
	}
	return &Realtime{
		refresher: refresher{api: api, store: store, builders: opts.Builders, limits: opts.Limits},
		iconBase:  opts.ProfileIconURL,
		log:       opts.Logger.Named("realtime"),
	}
}

// ResolveSummoner looks a summoner up by name and refreshes its masteries.
// A failed mastery refresh is logged and does not fail the sign-in.
func (r *Realtime) ResolveSummoner(ctx context.Context, platform, name string) (session.Identity, error) {
	if _, ok := riot.Platforms[platform]; !ok {
		return session.Identity{}, fmt.Errorf("%w: %q", riot.ErrUnknownPlatform, platform)
	}

	var sum riot.Summoner
	err := r.limits.For(platform).Do(ctx, func(ctx context.Context) error {
		var err error
		sum, err = r.api.SummonerByName(ctx, platform, name)
		return err
	})
	if err != nil {
		return session.Identity{}, err
	}

	if _, err := r.refresh(ctx, platform, sum.ID, sum.Name, sum.ProfileIconID); err != nil {
		r.log.Warn("mastery refresh failed",
			zap.String("platform", platform), zap.Int64("summoner", sum.ID), zap.Error(err))
	}

	return session.Identity{
		Platform:    platform,
		SummonerID:  sum.ID,
		DisplayName: sum.Name,
		ProfileIcon: iconURL(r.iconBase, sum.ProfileIconID),
	}, nil
}
