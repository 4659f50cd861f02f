package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/engine"
	"github.com/DoyleJ11/lol-trivia-backend/internal/hub"
	"github.com/DoyleJ11/lol-trivia-backend/internal/lobby"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/riot"
	"github.com/DoyleJ11/lol-trivia-backend/internal/session"
	"github.com/DoyleJ11/lol-trivia-backend/pkg/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const sessionCookie = "id"

// Resolver turns a summoner name into a signed-in identity.
type Resolver interface {
	ResolveSummoner(ctx context.Context, platform, name string) (session.Identity, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Hub      *hub.Hub
	Resolver Resolver
	DB       Pinger // nil when running on the in-memory corpus
	Logger   *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(reason string) types.ErrorResponse { return types.ErrorResponse{Error: &reason} }

var noError = types.ErrorResponse{}

func currentSession(d Deps, r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	s, err := d.Hub.Session(r.Context(), c.Value)
	if err != nil {
		return nil, false
	}
	return s, true
}

// withSession rejects requests without a live session cookie.
func withSession(d Deps, next func(w http.ResponseWriter, r *http.Request, s *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, found := currentSession(d, r)
		if !found {
			writeJSON(w, http.StatusForbidden, fail("no-session"))
			return
		}
		next(w, r, s)
	}
}

func lobbyFromPath(d Deps, w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	lb, err := d.Hub.Lobby(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, fail("unknown-lobby"))
		return nil, false
	}
	return lb, true
}

func PortalSite(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, found := currentSession(d, r)
		if !found {
			writeJSON(w, http.StatusOK, types.SiteResponse{State: "summoner-select"})
			return
		}
		user := s.Identity.Summoner()
		writeJSON(w, http.StatusOK, types.SiteResponse{State: "summoner-home", User: &user})
	}
}

type selectSummonerRequest struct {
	Platform     string `json:"platform"`
	SummonerName string `json:"summonerName"`
}

func SelectSummoner(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectSummonerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SummonerName == "" {
			writeJSON(w, http.StatusBadRequest, fail("bad-request"))
			return
		}

		identity, err := d.Resolver.ResolveSummoner(r.Context(), req.Platform, req.SummonerName)
		switch {
		case errors.Is(err, riot.ErrNotFound):
			writeJSON(w, http.StatusForbidden, fail("SummonerNotFound"))
			return
		case errors.Is(err, riot.ErrUnknownPlatform):
			writeJSON(w, http.StatusBadRequest, fail("UnknownPlatform"))
			return
		case err != nil:
			d.Logger.Error("resolve summoner failed",
				zap.String("platform", req.Platform), zap.String("name", req.SummonerName), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, fail("LookupFailed"))
			return
		}

		s, err := d.Hub.CreateSession(r.Context(), identity)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, fail("unavailable"))
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, noError)
	}
}

func Logout(d Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		_ = d.Hub.InvalidateSession(r.Context(), s.ID)
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, noError)
	})
}

// Play opens a lobby hosted by the caller. Solo lobbies start right away.
func Play(d Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		mode, valid := engine.ParseMode(chi.URLParam(r, "mode"))
		if !valid {
			writeJSON(w, http.StatusNotFound, fail("unknown-mode"))
			return
		}
		lb, err := d.Hub.CreateLobby(r.Context(), mode, s)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, fail("unavailable"))
			return
		}
		writeJSON(w, http.StatusOK, types.LobbyCreated{LobbyID: lb.ID()})
	})
}

func LobbySite(d Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		lb, found := lobbyFromPath(d, w, r)
		if !found {
			return
		}
		v, err := lb.View()
		if err != nil {
			writeJSON(w, http.StatusNotFound, fail("unknown-lobby"))
			return
		}

		state := "lobby-select"
		if v.State == engine.StateActive.String() {
			state = "active-game"
		}
		user := s.Identity.Summoner()
		writeJSON(w, http.StatusOK, types.SiteResponse{
			State: state,
			User:  &user,
			Lobby: &types.LobbyRef{ID: v.ID, Name: v.Name, State: v.State},
		})
	})
}

func JoinLobby(d Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		lb, found := lobbyFromPath(d, w, r)
		if !found {
			return
		}
		if !d.Hub.JoinLobby(lb, s) {
			writeJSON(w, http.StatusOK, fail("join-failed"))
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	})
}

func Ready(d Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		lb, found := lobbyFromPath(d, w, r)
		if !found {
			return
		}
		if !lb.SetReady(s) {
			writeJSON(w, http.StatusForbidden, fail("ready-failed"))
			return
		}
		writeJSON(w, http.StatusOK, noError)
	})
}

type lockAnswerRequest struct {
	Answer question.Answer `json:"answer"`
}

func LockAnswer(d Deps) http.HandlerFunc {
	return withSession(d, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		lb, found := lobbyFromPath(d, w, r)
		if !found {
			return
		}
		round, err := strconv.Atoi(r.URL.Query().Get("round"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, fail("bad-round"))
			return
		}
		var req lockAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, fail("bad-request"))
			return
		}
		if !lb.LockAnswer(s, round, req.Answer) {
			writeJSON(w, http.StatusForbidden, fail("lock-failed"))
			return
		}
		writeJSON(w, http.StatusOK, noError)
	})
}

// Updates is the long-poll endpoint. It answers with a JSON array, empty
// when the poll timed out.
func Updates(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, found := lobbyFromPath(d, w, r)
		if !found {
			return
		}
		seq, err := strconv.Atoi(r.URL.Query().Get("sequenceId"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, fail("bad-sequence"))
			return
		}

		updates, err := lb.PollUpdates(r.Context(), seq)
		switch {
		case errors.Is(err, lobby.ErrSequenceAhead):
			writeJSON(w, http.StatusConflict, fail("sequence-ahead"))
		case errors.Is(err, lobby.ErrLobbyClosed):
			writeJSON(w, http.StatusNotFound, fail("unknown-lobby"))
		case err != nil:
			// client went away
		default:
			writeJSON(w, http.StatusOK, updates)
		}
	}
}

func Healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.Ping(ctx); err != nil {
				d.Logger.Warn("database ping failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
