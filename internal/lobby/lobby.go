// Package lobby runs one trivia lobby as a single goroutine that owns all of
// its state: players, rounds, timers and the update feed. Client actions and
// timer callbacks reach it as messages on its inbox, so transitions never
// run in parallel for the same lobby.
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/engine"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrLobbyClosed = errors.New("lobby closed")

type Rules struct {
	NumRounds    int
	RoundSeconds int
	Tick         time.Duration // one "second" of the round clock
	Intermission time.Duration
	CloseDelay   time.Duration
	PollTimeout  time.Duration
	IdleWindow   time.Duration
	IdleCheck    time.Duration
}

func DefaultRules() Rules {
	return Rules{
		NumRounds:    10,
		RoundSeconds: 15,
		Tick:         time.Second,
		Intermission: 3 * time.Second,
		CloseDelay:   10 * time.Second,
		PollTimeout:  15 * time.Second,
		IdleWindow:   60 * time.Second,
		IdleCheck:    30 * time.Second,
	}
}

// QuestionSource produces the question for the next round.
type QuestionSource interface {
	Next(ctx context.Context) (question.Question, error)
}

type Options struct {
	ID        string
	Name      string
	Rules     Rules
	Questions QuestionSource
	Logger    *zap.Logger
	// OnClose runs on the lobby goroutine once the lobby is dead.
	OnClose func(id string)
}

type Player struct {
	Index   int
	Session *session.Session
	Ready   bool
	Answer  *question.Answer
	Score   int
}

type Lobby struct {
	id        string
	name      string
	rules     Rules
	questions QuestionSource
	log       *zap.Logger
	onClose   func(id string)

	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by loop
	state        engine.State
	players      []*Player
	currentRound int
	question     question.Question
	secondsLeft  int
	feed         []types.Update
	pollers      []*poller
	lastPoll     time.Time

	timer       *time.Timer
	timerGen    int
	cancelFetch context.CancelFunc
}

func NewLobby(parent context.Context, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &Lobby{
		id:        opts.ID,
		name:      opts.Name,
		rules:     opts.Rules,
		questions: opts.Questions,
		log:       opts.Logger.With(zap.String("lobby", opts.ID)),
		onClose:   opts.OnClose,
		inbox:     make(chan Msg, 64),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     engine.StateArranging,
		lastPoll:  time.Now(),
	}
	l.post(types.UpdArrangeLobby, types.Empty{})

	go l.loop()
	return l
}

// Create starts a lobby and joins host. A solo lobby readies the host at
// once, which starts the game.
func Create(parent context.Context, mode engine.Mode, host *session.Session, opts Options) *Lobby {
	l := NewLobby(parent, opts)
	l.Join(host)
	if mode == engine.ModeSolo {
		l.SetReady(host)
	}
	return l
}

func (l *Lobby) ID() string   { return l.id }
func (l *Lobby) Name() string { return l.name }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Inbox exposes the raw message channel for tests and transports.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	defer close(l.done)

	idle := time.NewTicker(l.rules.IdleCheck)
	defer idle.Stop()

	for {
		select {
		case <-l.ctx.Done():
			l.teardown()
			return

		case <-idle.C:
			if since := time.Since(l.lastPoll); since > l.rules.IdleWindow {
				l.log.Info("reaping idle lobby", zap.Duration("since_last_poll", since), zap.Stringer("state", l.state))
				l.teardown()
				return
			}

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- l.join(msg.Session)

			case SetReady:
				msg.Reply <- l.setReady(msg.Session)

			case LockAnswer:
				msg.Reply <- l.lockAnswer(msg.Session, msg.Round, msg.Answer)

			case Poll:
				l.handlePoll(msg)

			case GetState:
				msg.Reply <- l.view()

			case timerFired:
				if msg.gen != l.timerGen {
					break // superseded
				}
				l.timer = nil
				l.onTimer(msg.kind)

			case questionReady:
				l.onQuestion(msg)

			case Shutdown:
				l.teardown()
				return
			}
			if l.state == engine.StateDead {
				return
			}
		}
	}
}

// send delivers msg to the loop unless the lobby or ctx ends first.
func (l *Lobby) send(ctx context.Context, msg Msg) bool {
	select {
	case l.inbox <- msg:
		return true
	case <-l.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (l *Lobby) sendErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrLobbyClosed
}

func ask[T any](l *Lobby, build func(chan T) Msg) (T, bool) {
	reply := make(chan T, 1)
	var zero T
	if !l.send(context.Background(), build(reply)) {
		return zero, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-l.done:
		return zero, false
	}
}

// Join adds s as the next player. It fails once the game has started or if
// s already plays here.
func (l *Lobby) Join(s *session.Session) bool {
	ok, _ := ask(l, func(r chan bool) Msg { return Join{Session: s, Reply: r} })
	return ok
}

// SetReady marks s ready. When every player is ready the game starts.
func (l *Lobby) SetReady(s *session.Session) bool {
	ok, _ := ask(l, func(r chan bool) Msg { return SetReady{Session: s, Reply: r} })
	return ok
}

// LockAnswer records s's answer for round. It fails if round is not the
// current round or s already answered it.
func (l *Lobby) LockAnswer(s *session.Session, round int, answer question.Answer) bool {
	ok, _ := ask(l, func(r chan bool) Msg {
		return LockAnswer{Session: s, Round: round, Answer: answer, Reply: r}
	})
	return ok
}

func (l *Lobby) View() (View, error) {
	v, ok := ask(l, func(r chan View) Msg { return GetState{Reply: r} })
	if !ok {
		return View{}, ErrLobbyClosed
	}
	return v, nil
}

// Shutdown tears the lobby down without waiting for the game to finish.
func (l *Lobby) Shutdown() {
	select {
	case l.inbox <- Shutdown{}:
	case <-l.done:
	}
}

func (l *Lobby) findPlayer(s *session.Session) *Player {
	for _, p := range l.players {
		if p.Session.ID == s.ID {
			return p
		}
	}
	return nil
}

func (l *Lobby) join(s *session.Session) bool {
	if l.state != engine.StateArranging || !s.Alive() || l.findPlayer(s) != nil {
		return false
	}
	p := &Player{Index: len(l.players), Session: s}
	l.players = append(l.players, p)
	// attached here so teardown, on this goroutine, always sees it
	s.AttachLobby(l.id)
	l.post(types.UpdJoinUser, types.JoinUser{Index: p.Index, Summoner: s.Identity.Summoner()})
	return true
}

func (l *Lobby) setReady(s *session.Session) bool {
	p := l.findPlayer(s)
	if p == nil || p.Ready || l.state != engine.StateArranging {
		return false
	}
	p.Ready = true
	l.post(types.UpdSetReady, types.SetReady{Index: p.Index})

	for _, other := range l.players {
		if !other.Ready {
			return true
		}
	}
	l.startGame()
	return true
}

func (l *Lobby) lockAnswer(s *session.Session, round int, answer question.Answer) bool {
	if l.state != engine.StateActive || l.question == nil || round != l.currentRound {
		return false
	}
	p := l.findPlayer(s)
	if p == nil || p.Answer != nil {
		return false
	}
	p.Answer = &answer

	if l.allAnswered() {
		l.endRound()
	}
	return true
}

func (l *Lobby) view() View {
	v := View{
		ID:           l.id,
		Name:         l.name,
		State:        l.state.String(),
		CurrentRound: l.currentRound,
		NumRounds:    l.rules.NumRounds,
		SecondsLeft:  l.secondsLeft,
		FeedLength:   len(l.feed),
	}
	for _, p := range l.players {
		v.Players = append(v.Players, PlayerView{
			Index:    p.Index,
			Summoner: p.Session.Identity.Summoner(),
			Ready:    p.Ready,
			Answered: p.Answer != nil,
			Score:    p.Score,
		})
	}
	return v
}
