package question

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/DoyleJ11/lol-trivia-backend/internal/sampler"
	"go.uber.org/zap"
)

var ErrNoQuestion = errors.New("no question family could produce a question")

type family struct {
	builder Builder
	sampler *sampler.Sampler
}

// Pool picks a question family at random and builds a question from a
// record sampled for that family. Each family owns one sampler.
type Pool struct {
	catalog  *corpus.Catalog
	families []family
	log      *zap.Logger
}

func NewPool(cat *corpus.Catalog, store corpus.Store, opts sampler.Options, builders ...Builder) *Pool {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &Pool{catalog: cat, log: opts.Logger}
	for _, b := range builders {
		o := opts
		o.Logger = opts.Logger.With(zap.String("family", b.ID()))
		p.families = append(p.families, family{
			builder: b,
			sampler: sampler.New(store, corpus.Filter{Question: b.ID()}, o),
		})
	}
	return p
}

// Next returns a question, trying families in random order until one
// succeeds.
func (p *Pool) Next(ctx context.Context) (Question, error) {
	for _, i := range rand.Perm(len(p.families)) {
		f := p.families[i]

		rec, err := f.sampler.Sample(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.log.Warn("sample failed", zap.String("family", f.builder.ID()), zap.Error(err))
			continue
		}

		q, err := f.builder.Generate(p.catalog, rec)
		if err != nil {
			p.log.Warn("build question failed", zap.String("family", f.builder.ID()), zap.Error(err))
			continue
		}
		return q, nil
	}
	return nil, fmt.Errorf("%d families tried: %w", len(p.families), ErrNoQuestion)
}

func (p *Pool) Close() {
	for _, f := range p.families {
		f.sampler.Close()
	}
}
