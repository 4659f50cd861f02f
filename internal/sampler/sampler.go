// Package sampler hands out random corpus records matching a filter to many
// concurrent callers while running at most one backing query at a time.
//
// The sampler ring-scans the matching subset in key order, one small batch
// per query, shuffles each batch and serves it from a cache. Over one full
// traversal every matching record is handed out exactly once before any
// repeats.
package sampler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

var (
	// ErrExhausted is returned to queued callers after MaxMisses consecutive
	// fetches failed or found nothing matching.
	ErrExhausted = errors.New("sampler: no matching records")
	ErrClosed    = errors.New("sampler: closed")
)

type Options struct {
	Batch          int
	MaxMisses      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Batch <= 0 {
		o.Batch = 8
	}
	if o.MaxMisses <= 0 {
		o.MaxMisses = 5
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 250 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type Sampler struct {
	store  corpus.Store
	filter corpus.Filter
	opts   Options
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cursor   uint // 0 sorts before every key
	cache    []corpus.Summoner
	waiters  []*waiter
	fetching bool
	misses   int
	backoff  *backoff.ExponentialBackOff
}

type waiter struct {
	ctx context.Context
	out chan result
}

type result struct {
	rec corpus.Summoner
	err error
}

func New(store corpus.Store, filter corpus.Filter, opts Options) *Sampler {
	opts = opts.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialBackoff
	b.MaxInterval = opts.MaxBackoff

	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		store:   store,
		filter:  filter,
		opts:    opts,
		log:     opts.Logger.With(zap.Stringer("filter", filter)),
		ctx:     ctx,
		cancel:  cancel,
		backoff: b,
	}
}

func (s *Sampler) Filter() corpus.Filter { return s.filter }

// Sample returns one matching record. It returns immediately when a
// prefetched record is cached; otherwise it queues the caller behind the
// running fetch, starting one if none runs.
func (s *Sampler) Sample(ctx context.Context) (corpus.Summoner, error) {
	s.mu.Lock()
	if n := len(s.cache); n > 0 {
		rec := s.cache[n-1]
		s.cache = s.cache[:n-1]
		s.mu.Unlock()
		return rec, nil
	}
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return corpus.Summoner{}, ErrClosed
	}

	w := &waiter{ctx: ctx, out: make(chan result, 1)}
	s.waiters = append(s.waiters, w)
	if !s.fetching {
		s.fetching = true
		go s.fetchLoop()
	}
	s.mu.Unlock()

	select {
	case r := <-w.out:
		return r.rec, r.err
	case <-ctx.Done():
		// The fetch loop skips abandoned waiters.
		return corpus.Summoner{}, ctx.Err()
	}
}

// Close stops fetching and fails every queued caller with ErrClosed.
func (s *Sampler) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(ErrClosed)
}

func (s *Sampler) fetchLoop() {
	for {
		s.mu.Lock()
		from := s.cursor
		s.mu.Unlock()

		recs, err := s.store.FindMatching(s.ctx, s.filter, from, s.opts.Batch)

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.fetching = false
			s.failLocked(ErrClosed)
			s.mu.Unlock()
			return
		}

		missed := s.absorbLocked(from, recs, err)
		s.pruneLocked()

		if len(s.waiters) == 0 {
			s.fetching = false
			s.mu.Unlock()
			return
		}
		if s.misses >= s.opts.MaxMisses {
			s.log.Error("giving up on queued samples",
				zap.Int("misses", s.misses), zap.Int("waiters", len(s.waiters)))
			s.misses = 0
			s.backoff.Reset()
			s.fetching = false
			s.failLocked(ErrExhausted)
			s.mu.Unlock()
			return
		}

		var delay time.Duration
		if missed {
			delay = s.backoff.NextBackOff()
		}
		s.mu.Unlock()

		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-s.ctx.Done():
				t.Stop()
			}
		}
	}
}

// absorbLocked advances the cursor, hands fetched records to waiters in
// FIFO order and caches the rest. It reports whether the fetch counts as a
// miss: a query error, or an empty scan from the very start of the ring.
func (s *Sampler) absorbLocked(from uint, recs []corpus.Summoner, err error) bool {
	if err != nil {
		s.misses++
		s.log.Warn("sample query failed", zap.Uint("cursor", from), zap.Error(err))
		return true
	}

	if len(recs) < s.opts.Batch {
		s.cursor = 0
	} else {
		s.cursor = recs[len(recs)-1].ID
	}

	if len(recs) == 0 {
		if from == 0 {
			s.misses++
			s.log.Warn("no records match filter", zap.Int("misses", s.misses))
			return true
		}
		return false
	}
	s.misses = 0
	s.backoff.Reset()

	rand.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })
	for len(recs) > 0 && len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		if w.ctx.Err() != nil {
			continue
		}
		w.out <- result{rec: recs[0]}
		recs = recs[1:]
	}
	s.cache = append(s.cache, recs...)
	return false
}

func (s *Sampler) pruneLocked() {
	live := s.waiters[:0]
	for _, w := range s.waiters {
		if w.ctx.Err() == nil {
			live = append(live, w)
		}
	}
	clear(s.waiters[len(live):])
	s.waiters = live
}

func (s *Sampler) failLocked(err error) {
	for _, w := range s.waiters {
		w.out <- result{err: err}
	}
	s.waiters = nil
}
