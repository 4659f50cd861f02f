package lobby

import (
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
)

type Msg interface{ isLobbyMsg() }

type Join struct {
	Session *session.Session
	Reply   chan bool
}

type SetReady struct {
	Session *session.Session
	Reply   chan bool
}

type LockAnswer struct {
	Session *session.Session
	Round   int
	Answer  question.Answer
	Reply   chan bool
}

// Poll asks for the feed from SequenceID on. The lobby either replies with
// the backlog, parks Waiter until the next update, or replies with an error.
type Poll struct {
	SequenceID int
	Waiter     *poller
	Reply      chan pollReply
}

type GetState struct {
	Reply chan View
}

type Shutdown struct{}

// internal
type timerFired struct {
	gen  int
	kind timerKind
}

type questionReady struct {
	round int
	q     question.Question
	err   error
}

func (Join) isLobbyMsg()          {}
func (SetReady) isLobbyMsg()      {}
func (LockAnswer) isLobbyMsg()    {}
func (Poll) isLobbyMsg()          {}
func (GetState) isLobbyMsg()      {}
func (Shutdown) isLobbyMsg()      {}
func (timerFired) isLobbyMsg()    {}
func (questionReady) isLobbyMsg() {}

type pollReply struct {
	updates []types.Update
	parked  bool
	err     error
}

// View is a point-in-time copy of lobby state for sites and tests.
type View struct {
	ID           string
	Name         string
	State        string
	CurrentRound int
	NumRounds    int
	SecondsLeft  int
	FeedLength   int
	Players      []PlayerView
}

type PlayerView struct {
	Index    int
	Summoner types.Summoner
	Ready    bool
	Answered bool
	Score    int
}
