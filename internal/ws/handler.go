// Package ws streams a lobby's update feed over a websocket. It replays the
// same feed the long-poll endpoint serves, so a client may switch between the
// two at any sequence id.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/hub"
	"github.com/DoyleJ11/lol-trivia-backend/internal/lobby"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"github.com/DoyleJ11/lol-trivia-backend/internal/types"
	pub "github.com/DoyleJ11/lol-trivia-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := h.Lobby(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}
		seq, err := strconv.Atoi(r.URL.Query().Get("sequenceId"))
		if err != nil || seq < 0 {
			seq = 0
		}
		s := cookieSession(h, r)

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		clientID := uuid.NewString()
		log := log.With(zap.String("lobby", lb.ID()), zap.String("client", clientID))
		log.Debug("websocket connected", zap.Int("sequence", seq))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if s == nil {
			// spectators only read the feed
			ctx = conn.CloseRead(ctx)
		} else {
			go readLoop(ctx, cancel, conn, lb, s)
		}

		for {
			updates, err := lb.PollUpdates(ctx, seq)
			switch {
			case errors.Is(err, lobby.ErrSequenceAhead):
				writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "sequence-ahead"})
				conn.Close(websocket.StatusPolicyViolation, "sequence ahead")
				return
			case err != nil:
				conn.Close(websocket.StatusNormalClosure, "bye")
				return
			}

			for _, u := range updates {
				if err := writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgUpdate, Update: &u}); err != nil {
					log.Debug("websocket write failed", zap.Error(err))
					return
				}
				if u.Type == pub.UpdCloseLobby {
					conn.Close(websocket.StatusNormalClosure, "lobby closed")
					return
				}
			}
			seq += len(updates)
		}
	}
}

func readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, lb *lobby.Lobby, s *session.Session) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			_ = writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
			continue
		}

		switch cm.Type {
		case types.MsgReady:
			if !lb.SetReady(s) {
				_ = writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "ready-failed"})
			}
		case types.MsgLockAnswer:
			if !lb.LockAnswer(s, cm.Round, cm.Answer) {
				_ = writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "lock-failed"})
			}
		default:
			_ = writeMsg(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "unknown type"})
		}
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func cookieSession(h *hub.Hub, r *http.Request) *session.Session {
	c, err := r.Cookie("id")
	if err != nil {
		return nil
	}
	s, err := h.Session(r.Context(), c.Value)
	if err != nil {
		return nil
	}
	return s
}
