package lobby

import (
	"context"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/engine"
	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
	"go.uber.org/zap"
)

type timerKind int

const (
	timerTick timerKind = iota
	timerNextRound
	timerClose
)

// schedule arms the lobby's single timer, replacing whatever was pending.
// Fires from a replaced timer carry an old generation and are dropped.
func (l *Lobby) schedule(d time.Duration, kind timerKind) {
	l.stopTimer()
	gen := l.timerGen
	l.timer = time.AfterFunc(d, func() {
		select {
		case l.inbox <- timerFired{gen: gen, kind: kind}:
		case <-l.done:
		}
	})
}

func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerGen++
}

func (l *Lobby) onTimer(kind timerKind) {
	switch kind {
	case timerTick:
		l.tick()
	case timerNextRound:
		if l.currentRound >= l.rules.NumRounds {
			l.finish()
			return
		}
		l.beginRound()
	case timerClose:
		l.teardown()
	}
}

func (l *Lobby) startGame() {
	next, err := engine.Transition(l.state, engine.StateActive)
	if err != nil {
		l.log.Error("start game", zap.Error(err))
		return
	}
	l.state = next
	l.post(types.UpdStartGame, types.Empty{})
	l.log.Info("game started", zap.Int("players", len(l.players)))
	l.beginRound()
}

// beginRound advances the round counter and fetches a question off the
// lobby goroutine; the round opens when questionReady arrives.
func (l *Lobby) beginRound() {
	l.currentRound++
	l.question = nil
	for _, p := range l.players {
		p.Answer = nil
	}

	ctx, cancel := l.fetchContext()
	round := l.currentRound
	go func() {
		defer cancel()
		q, err := l.questions.Next(ctx)
		select {
		case l.inbox <- questionReady{round: round, q: q, err: err}:
		case <-l.done:
		}
	}()
}

func (l *Lobby) fetchContext() (context.Context, context.CancelFunc) {
	if l.cancelFetch != nil {
		l.cancelFetch()
	}
	ctx, cancel := context.WithCancel(l.ctx)
	l.cancelFetch = cancel
	return ctx, cancel
}

func (l *Lobby) onQuestion(msg questionReady) {
	if l.state != engine.StateActive || msg.round != l.currentRound || l.question != nil {
		return
	}
	if msg.err != nil {
		l.log.Error("no question for round, ending game", zap.Int("round", msg.round), zap.Error(msg.err))
		// The round never opened.
		l.currentRound--
		l.finish()
		return
	}

	l.question = msg.q
	l.post(types.UpdRound, types.Round{
		Round:     l.currentRound,
		NumRounds: l.rules.NumRounds,
		Question:  msg.q.PublicView(),
	})
	l.secondsLeft = l.rules.RoundSeconds
	l.post(types.UpdSecondsLeft, types.SecondsLeft{Seconds: l.secondsLeft})
	l.schedule(l.rules.Tick, timerTick)
}

func (l *Lobby) tick() {
	if l.question == nil {
		return
	}
	l.secondsLeft--
	l.post(types.UpdSecondsLeft, types.SecondsLeft{Seconds: l.secondsLeft})

	if l.secondsLeft <= 0 || l.allAnswered() {
		l.endRound()
		return
	}
	l.schedule(l.rules.Tick, timerTick)
}

func (l *Lobby) allAnswered() bool {
	for _, p := range l.players {
		if p.Answer == nil {
			return false
		}
	}
	return true
}

func (l *Lobby) endRound() {
	q := l.question
	l.question = nil
	l.stopTimer()

	l.post(types.UpdCorrection, types.Correction{Answer: q.CorrectAnswer()})

	standings := l.standings()
	updated, scored := engine.Tally(standings, func(index int) bool {
		a := l.players[index].Answer
		return a != nil && q.CheckAnswer(*a)
	})

	scores := types.Scores{Absolute: []types.PlayerScore{}, Delta: []types.PlayerDelta{}}
	for _, s := range updated {
		l.players[s.Index].Score = s.Score
		scores.Absolute = append(scores.Absolute, types.PlayerScore{Index: s.Index, Score: s.Score})
	}
	for _, idx := range scored {
		scores.Delta = append(scores.Delta, types.PlayerDelta{
			Index:    idx,
			Summoner: l.players[idx].Session.Identity.Summoner(),
			Score:    engine.PointsPerAnswer,
		})
	}
	l.post(types.UpdScores, scores)

	for _, p := range l.players {
		p.Answer = nil
	}
	l.schedule(l.rules.Intermission, timerNextRound)
}

func (l *Lobby) standings() []engine.Standing {
	out := make([]engine.Standing, len(l.players))
	for i, p := range l.players {
		out[i] = engine.Standing{Index: p.Index, Score: p.Score}
	}
	return out
}

func (l *Lobby) finish() {
	winners, runners := engine.Results(l.standings())
	l.post(types.UpdGameComplete, types.GameComplete{
		Winners: l.placements(winners),
		Runners: l.placements(runners),
	})
	l.log.Info("game complete", zap.Int("rounds", l.currentRound), zap.Int("winners", len(winners)))
	l.schedule(l.rules.CloseDelay, timerClose)
}

func (l *Lobby) placements(standings []engine.Standing) []types.Placement {
	out := make([]types.Placement, 0, len(standings))
	for _, s := range standings {
		out = append(out, types.Placement{
			Index:    s.Index,
			Summoner: l.players[s.Index].Session.Identity.Summoner(),
			Score:    s.Score,
			Rank:     engine.RankLabel(s.Score, l.rules.NumRounds),
		})
	}
	return out
}

// teardown kills the lobby: pending timers and question fetches are
// cancelled, close-lobby is posted, members are unlinked and the registry
// is told. Safe to call more than once.
func (l *Lobby) teardown() {
	next, err := engine.Transition(l.state, engine.StateDead)
	if err != nil {
		return
	}
	l.state = next
	l.stopTimer()
	if l.cancelFetch != nil {
		l.cancelFetch()
		l.cancelFetch = nil
	}

	l.post(types.UpdCloseLobby, types.Empty{})
	for _, p := range l.players {
		p.Session.DetachLobby(l.id)
	}
	if l.onClose != nil {
		l.onClose(l.id)
	}
	l.cancel()
	l.log.Info("lobby closed", zap.Int("rounds_played", l.currentRound))
}
