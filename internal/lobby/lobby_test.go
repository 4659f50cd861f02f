package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/engine"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuestion struct{ answer int }

func (q fakeQuestion) CorrectAnswer() question.Answer { return question.Answer{ChampionID: q.answer} }
func (q fakeQuestion) CheckAnswer(a question.Answer) bool {
	return a.ChampionID == q.answer
}
func (q fakeQuestion) PublicView() any { return map[string]any{"choices": []int{1, 2, q.answer}} }

type fakeQuestions struct {
	answer int
	err    error
	calls  atomic.Int32
}

func (f *fakeQuestions) Next(ctx context.Context) (question.Question, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return fakeQuestion{answer: f.answer}, nil
}

const correct = 7

func testRules() Rules {
	return Rules{
		NumRounds:    10,
		RoundSeconds: 15,
		Tick:         20 * time.Millisecond,
		Intermission: 20 * time.Millisecond,
		CloseDelay:   20 * time.Millisecond,
		PollTimeout:  200 * time.Millisecond,
		IdleWindow:   time.Hour,
		IdleCheck:    time.Hour,
	}
}

type harness struct {
	lobby     *Lobby
	questions *fakeQuestions
	closed    chan string
}

func newHarness(t *testing.T, mode engine.Mode, host *session.Session, rules Rules) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{questions: &fakeQuestions{answer: correct}, closed: make(chan string, 1)}
	h.lobby = Create(ctx, mode, host, Options{
		ID:        "LOBBY1",
		Name:      "test lobby",
		Rules:     rules,
		Questions: h.questions,
		OnClose:   func(id string) { h.closed <- id },
	})
	return h
}

func newSession(id, name string) *session.Session {
	return session.New(id, session.Identity{DisplayName: name, ProfileIcon: "http://icons/1.png"})
}

// feedReader long-polls a lobby the way a client does and checks that
// sequence ids arrive dense and in order.
type feedReader struct {
	t    *testing.T
	l    *Lobby
	seen []types.Update
	pos  int // first update not yet returned by until
}

func (r *feedReader) poll(ctx context.Context) []types.Update {
	r.t.Helper()
	updates, err := r.l.PollUpdates(ctx, len(r.seen))
	if err != nil && ctx.Err() != nil {
		return nil
	}
	require.NoError(r.t, err)
	for _, u := range updates {
		require.Equal(r.t, len(r.seen), u.SequenceID, "feed has a gap or duplicate")
		r.seen = append(r.seen, u)
	}
	return updates
}

// until returns the next update of typ past the current position, polling
// for more as needed.
func (r *feedReader) until(typ types.UpdateType, within time.Duration) types.Update {
	r.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), within)
	defer cancel()

	for {
		for r.pos < len(r.seen) {
			u := r.seen[r.pos]
			r.pos++
			if u.Type == typ {
				return u
			}
		}
		r.poll(ctx)
		if ctx.Err() != nil {
			r.t.Fatalf("timed out waiting for %q; feed so far: %v", typ, r.types())
		}
	}
}

func (r *feedReader) types() []types.UpdateType {
	out := make([]types.UpdateType, len(r.seen))
	for i, u := range r.seen {
		out[i] = u.Type
	}
	return out
}

// last returns the latest update of typ with a sequence id below before.
func (r *feedReader) last(typ types.UpdateType, before int) (types.Update, bool) {
	for i := min(before, len(r.seen)) - 1; i >= 0; i-- {
		if r.seen[i].Type == typ {
			return r.seen[i], true
		}
	}
	return types.Update{}, false
}

func TestLobby_PartyFlow_RoundScoresBothPlayers(t *testing.T) {
	host := newSession("s-host", "Faker")
	guest := newSession("s-guest", "Caps")
	h := newHarness(t, engine.ModeParty, host, testRules())
	r := &feedReader{t: t, l: h.lobby}

	require.True(t, h.lobby.Join(guest))
	require.False(t, h.lobby.Join(guest), "second join of the same session must fail")
	require.False(t, h.lobby.Join(host))

	require.True(t, h.lobby.SetReady(host))
	require.False(t, h.lobby.SetReady(host), "re-marking ready must fail")
	require.True(t, h.lobby.SetReady(guest))

	r.until(types.UpdStartGame, time.Second)
	round := r.until(types.UpdRound, time.Second)
	assert.Equal(t, 1, round.Data.(types.Round).Round)
	assert.Equal(t, 10, round.Data.(types.Round).NumRounds)

	require.True(t, h.lobby.LockAnswer(host, 1, question.Answer{ChampionID: correct}))
	require.True(t, h.lobby.LockAnswer(guest, 1, question.Answer{ChampionID: correct}))

	correction := r.until(types.UpdCorrection, time.Second)
	assert.Equal(t, question.Answer{ChampionID: correct}, correction.Data.(types.Correction).Answer)

	next := r.until(types.UpdScores, time.Second)
	require.Equal(t, correction.SequenceID+1, next.SequenceID, "scores follow the correction")
	scores := next.Data.(types.Scores)
	assert.Equal(t, []types.PlayerScore{{Index: 0, Score: 100}, {Index: 1, Score: 100}}, scores.Absolute)
	assert.Len(t, scores.Delta, 2)

	// Both answered right away, so the round ended long before the clock ran out.
	secs, found := r.last(types.UpdSecondsLeft, correction.SequenceID)
	require.True(t, found)
	assert.Greater(t, secs.Data.(types.SecondsLeft).Seconds, 0)

	joins := 0
	for _, u := range r.seen {
		if u.Type == types.UpdJoinUser {
			assert.Equal(t, joins, u.Data.(types.JoinUser).Index, "indexes follow join order")
			joins++
		}
	}
	assert.Equal(t, 2, joins)
}

func TestLobby_LockAnswer_Guards(t *testing.T) {
	host := newSession("s-host", "Faker")
	guest := newSession("s-guest", "Caps")
	stranger := newSession("s-x", "Nobody")
	h := newHarness(t, engine.ModeParty, host, testRules())
	r := &feedReader{t: t, l: h.lobby}

	require.True(t, h.lobby.Join(guest))
	assert.False(t, h.lobby.LockAnswer(host, 1, question.Answer{ChampionID: correct}), "no lock before the game starts")

	require.True(t, h.lobby.SetReady(host))
	require.True(t, h.lobby.SetReady(guest))
	r.until(types.UpdRound, time.Second)

	assert.False(t, h.lobby.LockAnswer(host, 2, question.Answer{ChampionID: correct}), "wrong round")
	assert.False(t, h.lobby.LockAnswer(stranger, 1, question.Answer{ChampionID: correct}), "not a player")
	assert.True(t, h.lobby.LockAnswer(host, 1, question.Answer{ChampionID: 1}))
	assert.False(t, h.lobby.LockAnswer(host, 1, question.Answer{ChampionID: correct}), "second lock in a round")

	v, e := h.lobby.View()
	require.NoError(t, e)
	assert.Equal(t, 0, v.Players[0].Score)
	assert.True(t, v.Players[0].Answered)
	assert.False(t, v.Players[1].Answered)
	assert.False(t, h.lobby.Join(newSession("s-late", "Late")), "no joins once active")
}

func TestLobby_RoundEndsWhenClockRunsOut(t *testing.T) {
	rules := testRules()
	rules.RoundSeconds = 3
	host := newSession("s-host", "Faker")
	h := newHarness(t, engine.ModeSolo, host, rules)
	r := &feedReader{t: t, l: h.lobby}

	r.until(types.UpdRound, time.Second)
	correction := r.until(types.UpdCorrection, time.Second)

	var clock []int
	for _, u := range r.seen[:correction.SequenceID] {
		if u.Type == types.UpdSecondsLeft {
			clock = append(clock, u.Data.(types.SecondsLeft).Seconds)
		}
	}
	assert.Equal(t, []int{3, 2, 1, 0}, clock)

	scores := r.until(types.UpdScores, time.Second).Data.(types.Scores)
	assert.Equal(t, []types.PlayerScore{{Index: 0, Score: 0}}, scores.Absolute)
	assert.Empty(t, scores.Delta)
}

func TestLobby_PollUpdates(t *testing.T) {
	rules := testRules()
	rules.PollTimeout = 50 * time.Millisecond
	host := newSession("s-host", "Faker")
	h := newHarness(t, engine.ModeParty, host, rules)
	ctx := context.Background()

	t.Run("catch-up returns the backlog at once", func(t *testing.T) {
		updates, e := h.lobby.PollUpdates(ctx, 0)
		require.NoError(t, e)
		require.Len(t, updates, 2)
		assert.Equal(t, types.UpdArrangeLobby, updates[0].Type)
		assert.Equal(t, types.UpdJoinUser, updates[1].Type)
	})

	t.Run("caught up times out empty", func(t *testing.T) {
		start := time.Now()
		updates, e := h.lobby.PollUpdates(ctx, 2)
		require.NoError(t, e)
		assert.Empty(t, updates)
		assert.GreaterOrEqual(t, time.Since(start), rules.PollTimeout)
	})

	t.Run("ahead of the feed is a protocol error", func(t *testing.T) {
		_, e := h.lobby.PollUpdates(ctx, 3)
		require.True(t, errors.Is(e, ErrSequenceAhead))
	})

	t.Run("caught up gets exactly the next update", func(t *testing.T) {
		got := make(chan []types.Update, 1)
		go func() {
			updates, _ := h.lobby.PollUpdates(ctx, 2)
			got <- updates
		}()
		time.Sleep(10 * time.Millisecond)
		require.True(t, h.lobby.Join(newSession("s-2", "Caps")))

		select {
		case updates := <-got:
			require.Len(t, updates, 1)
			assert.Equal(t, types.UpdJoinUser, updates[0].Type)
			assert.Equal(t, 2, updates[0].SequenceID)
		case <-time.After(time.Second):
			t.Fatalf("parked poller never woke up")
		}
	})

	t.Run("cancelled poll leaves the lobby untouched", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, e := h.lobby.PollUpdates(cctx, 3)
			done <- e
		}()
		time.Sleep(10 * time.Millisecond)
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)

		v, e := h.lobby.View()
		require.NoError(t, e)
		assert.Equal(t, 3, v.FeedLength)
	})
}

func TestLobby_FullGameCompletesAndCloses(t *testing.T) {
	rules := testRules()
	rules.NumRounds = 2
	host := newSession("s-host", "Faker")
	host.AttachLobby("LOBBY1")
	h := newHarness(t, engine.ModeSolo, host, rules)
	r := &feedReader{t: t, l: h.lobby}

	r.until(types.UpdRound, time.Second)
	require.True(t, h.lobby.LockAnswer(host, 1, question.Answer{ChampionID: correct}))
	r.until(types.UpdScores, time.Second)

	round := r.until(types.UpdRound, time.Second)
	assert.Equal(t, 2, round.Data.(types.Round).Round)
	require.True(t, h.lobby.LockAnswer(host, 2, question.Answer{ChampionID: 1}))

	complete := r.until(types.UpdGameComplete, time.Second).Data.(types.GameComplete)
	require.Len(t, complete.Winners, 1)
	assert.Equal(t, 100, complete.Winners[0].Score)
	assert.Equal(t, "Faker", complete.Winners[0].Summoner.DisplayName)
	assert.Equal(t, engine.RankLabel(100, 2), complete.Winners[0].Rank)
	assert.Empty(t, complete.Runners)

	r.until(types.UpdCloseLobby, time.Second)
	select {
	case id := <-h.closed:
		assert.Equal(t, "LOBBY1", id)
	case <-time.After(time.Second):
		t.Fatalf("registry was never told about the close")
	}
	<-h.lobby.Done()
	assert.Empty(t, host.Lobbies())
	assert.EqualValues(t, 2, h.questions.calls.Load())

	_, e := h.lobby.View()
	assert.ErrorIs(t, e, ErrLobbyClosed)
}

func TestLobby_IdleReapCancelsRoundTimers(t *testing.T) {
	rules := testRules()
	rules.IdleWindow = 30 * time.Millisecond
	rules.IdleCheck = 10 * time.Millisecond
	rules.Intermission = 10 * time.Millisecond
	host := newSession("s-host", "Faker")
	h := newHarness(t, engine.ModeSolo, host, rules)

	select {
	case <-h.lobby.Done():
	case <-time.After(time.Second):
		t.Fatalf("idle lobby was never reaped")
	}
	assert.Equal(t, "LOBBY1", <-h.closed)

	calls := h.questions.calls.Load()
	time.Sleep(20 * rules.Tick)
	assert.Equal(t, calls, h.questions.calls.Load(), "rounds kept running after teardown")
}

func TestLobby_QuestionFailureEndsGame(t *testing.T) {
	host := newSession("s-host", "Faker")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := Create(ctx, engine.ModeSolo, host, Options{
		ID:        "LOBBY2",
		Rules:     testRules(),
		Questions: &fakeQuestions{err: errors.New("corpus empty")},
	})
	r := &feedReader{t: t, l: l}

	complete := r.until(types.UpdGameComplete, time.Second).Data.(types.GameComplete)
	assert.Len(t, complete.Winners, 1)
	_, sawRound := r.last(types.UpdRound, len(r.seen))
	assert.False(t, sawRound)
}

func TestLobby_Shutdown(t *testing.T) {
	host := newSession("s-host", "Faker")
	h := newHarness(t, engine.ModeParty, host, testRules())
	r := &feedReader{t: t, l: h.lobby}

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.lobby.Shutdown()
	}()
	r.until(types.UpdCloseLobby, time.Second)
	<-h.lobby.Done()
	assert.False(t, h.lobby.Join(newSession("s-late", "Late")))
}

func TestLobby_MembershipFollowsLifecycle(t *testing.T) {
	host := newSession("s-host", "Faker")
	h := newHarness(t, engine.ModeParty, host, testRules())
	id := h.lobby.ID()
	assert.Equal(t, []string{id}, host.Lobbies())

	guests := make([]*session.Session, 8)
	var wg sync.WaitGroup
	for i := range guests {
		guests[i] = newSession(fmt.Sprintf("s-guest-%d", i), "Guest")
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			h.lobby.Join(s)
		}(guests[i])
	}
	// Shutdown races the joins; whichever way each one lands no session
	// may keep the dead lobby.
	h.lobby.Shutdown()
	wg.Wait()
	<-h.lobby.Done()

	assert.Empty(t, host.Lobbies())
	for _, g := range guests {
		assert.Empty(t, g.Lobbies(), "session %s", g.ID)
	}
}
