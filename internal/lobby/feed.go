package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
)

// ErrSequenceAhead means the client asked for an update past the end of the
// feed. The client is out of sync and should restart from 0.
var ErrSequenceAhead = errors.New("sequence id beyond feed length")

type poller struct {
	ctx context.Context
	out chan types.Update
}

// post appends an update and hands it to every parked poller.
func (l *Lobby) post(typ types.UpdateType, data any) {
	u := types.Update{Type: typ, SequenceID: len(l.feed), Data: data}
	l.feed = append(l.feed, u)

	for _, p := range l.pollers {
		if p.ctx.Err() != nil {
			continue
		}
		p.out <- u
	}
	clear(l.pollers)
	l.pollers = l.pollers[:0]
}

func (l *Lobby) handlePoll(msg Poll) {
	l.lastPoll = time.Now()

	switch n := len(l.feed); {
	case msg.SequenceID < 0 || msg.SequenceID > n:
		msg.Reply <- pollReply{err: ErrSequenceAhead}
	case msg.SequenceID < n:
		backlog := make([]types.Update, n-msg.SequenceID)
		copy(backlog, l.feed[msg.SequenceID:])
		msg.Reply <- pollReply{updates: backlog}
	default:
		l.prunePollers()
		l.pollers = append(l.pollers, msg.Waiter)
		msg.Reply <- pollReply{parked: true}
	}
}

func (l *Lobby) prunePollers() {
	live := l.pollers[:0]
	for _, p := range l.pollers {
		if p.ctx.Err() == nil {
			live = append(live, p)
		}
	}
	clear(l.pollers[len(live):])
	l.pollers = live
}

// PollUpdates returns the feed from sequenceID on. A caller that is behind
// gets the whole backlog at once; a caller that is caught up waits for the
// single next update, or gets an empty result after the poll timeout.
// Cancelling ctx abandons the wait without touching lobby state.
func (l *Lobby) PollUpdates(ctx context.Context, sequenceID int) ([]types.Update, error) {
	wctx, cancel := context.WithTimeout(ctx, l.rules.PollTimeout)
	defer cancel()

	w := &poller{ctx: wctx, out: make(chan types.Update, 1)}
	reply := make(chan pollReply, 1)
	if !l.send(ctx, Poll{SequenceID: sequenceID, Waiter: w, Reply: reply}) {
		return nil, l.sendErr(ctx)
	}

	var r pollReply
	select {
	case r = <-reply:
	case <-l.done:
		return nil, ErrLobbyClosed
	}
	if r.err != nil || !r.parked {
		return r.updates, r.err
	}

	select {
	case u := <-w.out:
		return []types.Update{u}, nil
	case <-wctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []types.Update{}, nil
	case <-l.done:
		// close-lobby may have been handed over right before exit
		select {
		case u := <-w.out:
			return []types.Update{u}, nil
		default:
			return []types.Update{}, nil
		}
	}
}
