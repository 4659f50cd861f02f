// Package hub is the registry of live sessions and lobbies. A single
// goroutine owns both maps; everything else talks to it through its inbox.
package hub

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/DoyleJ11/lol-trivia-backend/internal/engine"
	"github.com/DoyleJ11/lol-trivia-backend/internal/lobby"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrLobbyNotFound   = errors.New("lobby not found")
	ErrHubClosed       = errors.New("hub closed")
)

const (
	sessionIDBytes = 32
	lobbyIDBytes   = 12
)

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Identity session.Identity
	Reply    chan *session.Session
}

type GetSession struct {
	ID    string
	Reply chan *session.Session
}

type InvalidateSession struct {
	ID    string
	Reply chan bool
}

type CreateLobby struct {
	Mode  engine.Mode
	Host  *session.Session
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	ID    string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	ID string
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg()     {}
func (GetSession) isHubMsg()        {}
func (InvalidateSession) isHubMsg() {}
func (CreateLobby) isHubMsg()       {}
func (GetLobby) isHubMsg()          {}
func (RemoveLobby) isHubMsg()       {}
func (ShutdownHub) isHubMsg()       {}

type Options struct {
	Rules     lobby.Rules
	Questions lobby.QuestionSource
	Logger    *zap.Logger
}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	lobbies  map[string]*lobby.Lobby
	opts     Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		lobbies:  make(map[string]*lobby.Lobby),
		opts:     opts,
		log:      opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed when the hub goroutine exits.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				id := h.uniqueID(sessionIDBytes, func(id string) bool { return h.sessions[id] != nil })
				s := session.New(id, msg.Identity)
				h.sessions[id] = s
				msg.Reply <- s

			case GetSession:
				msg.Reply <- h.sessions[msg.ID] // may be nil

			case InvalidateSession:
				s := h.sessions[msg.ID]
				if s != nil {
					s.Invalidate()
					delete(h.sessions, msg.ID)
				}
				msg.Reply <- s != nil

			case CreateLobby:
				msg.Reply <- h.createLobby(msg.Mode, msg.Host)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.ID] // may be nil

			case RemoveLobby:
				delete(h.lobbies, msg.ID)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) createLobby(mode engine.Mode, host *session.Session) *lobby.Lobby {
	id := h.uniqueID(lobbyIDBytes, func(id string) bool { return h.lobbies[id] != nil })
	lb := lobby.Create(h.ctx, mode, host, lobby.Options{
		ID:        id,
		Name:      fmt.Sprintf("%s's lobby", host.Identity.DisplayName),
		Rules:     h.opts.Rules,
		Questions: h.opts.Questions,
		Logger:    h.log,
		OnClose:   h.removeLater,
	})
	h.lobbies[id] = lb
	h.log.Info("lobby created", zap.String("lobby", id), zap.String("mode", string(mode)))
	return lb
}

// removeLater is called from lobby goroutines, so it must not wait on the
// hub loop.
func (h *Hub) removeLater(id string) {
	go func() {
		select {
		case h.inbox <- RemoveLobby{ID: id}:
		case <-h.done:
		}
	}()
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Shutdown()
	}
	clear(h.lobbies)
	for _, s := range h.sessions {
		s.Invalidate()
	}
	clear(h.sessions)
	h.cancel()
}

// uniqueID draws random ids until taken reports a free one.
func (h *Hub) uniqueID(n int, taken func(string) bool) string {
	for {
		id, err := randomID(n)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("hub: read random id: %v", err))
		}
		if !taken(id) {
			return id
		}
		h.log.Warn("id collision, regenerating")
	}
}

func randomID(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func request[T any](ctx context.Context, h *Hub, build func(chan T) HubMsg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case h.inbox <- build(reply):
	case <-h.done:
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, ErrHubClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Hub) CreateSession(ctx context.Context, identity session.Identity) (*session.Session, error) {
	return request(ctx, h, func(r chan *session.Session) HubMsg {
		return CreateSession{Identity: identity, Reply: r}
	})
}

func (h *Hub) Session(ctx context.Context, id string) (*session.Session, error) {
	s, err := request(ctx, h, func(r chan *session.Session) HubMsg { return GetSession{ID: id, Reply: r} })
	if err != nil {
		return nil, err
	}
	if s == nil || !s.Alive() {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (h *Hub) InvalidateSession(ctx context.Context, id string) error {
	ok, err := request(ctx, h, func(r chan bool) HubMsg { return InvalidateSession{ID: id, Reply: r} })
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// CreateLobby creates a lobby hosted by host; see lobby.Create.
func (h *Hub) CreateLobby(ctx context.Context, mode engine.Mode, host *session.Session) (*lobby.Lobby, error) {
	return request(ctx, h, func(r chan *lobby.Lobby) HubMsg {
		return CreateLobby{Mode: mode, Host: host, Reply: r}
	})
}

func (h *Hub) Lobby(ctx context.Context, id string) (*lobby.Lobby, error) {
	lb, err := request(ctx, h, func(r chan *lobby.Lobby) HubMsg { return GetLobby{ID: id, Reply: r} })
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, ErrLobbyNotFound
	}
	return lb, nil
}

// JoinLobby adds s to lb. The lobby records the membership on the session
// and drops it again at teardown.
func (h *Hub) JoinLobby(lb *lobby.Lobby, s *session.Session) bool {
	return lb.Join(s)
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}
