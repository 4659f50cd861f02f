package corpus

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is a Store kept in process memory. It backs local runs
// without DATABASE_URL and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    uint
	summoners []Summoner // ordered by ID
	byKey     map[summonerKey]int
	champions []Champion
}

type summonerKey struct {
	platform string
	id       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: map[summonerKey]int{}}
}

func (m *MemoryStore) FindMatching(ctx context.Context, f Filter, after uint, limit int) ([]Summoner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, _ := slices.BinarySearchFunc(m.summoners, after+1, func(s Summoner, id uint) int {
		return int(s.ID) - int(id)
	})

	var out []Summoner
	for _, s := range m.summoners[start:] {
		if len(out) == limit {
			break
		}
		if f.Match(s) {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertSummoner(ctx context.Context, s *Summoner) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := summonerKey{platform: s.Platform, id: s.SummonerID}
	if i, ok := m.byKey[key]; ok {
		prev := m.summoners[i]
		s.ID = prev.ID
		if s.DisplayName == "" {
			s.DisplayName, s.ProfileIcon = prev.DisplayName, prev.ProfileIcon
		}
		m.summoners[i] = clone(*s)
		return nil
	}
	m.nextID++
	s.ID = m.nextID
	m.byKey[key] = len(m.summoners)
	m.summoners = append(m.summoners, clone(*s))
	return nil
}

func (m *MemoryStore) CountSummoners(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.summoners)), nil
}

func (m *MemoryStore) Champions(ctx context.Context) ([]Champion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.champions), nil
}

func (m *MemoryStore) ReplaceChampions(ctx context.Context, champions []Champion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.champions = slices.Clone(champions)
	return nil
}

func clone(s Summoner) Summoner {
	s.Masteries = slices.Clone(s.Masteries)
	s.ApplicableQuestions = slices.Clone(s.ApplicableQuestions)
	return s
}
